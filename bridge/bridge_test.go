package bridge

import (
	stderrors "errors"
	"strings"
	"testing"

	"github.com/wippyai/nativeguard/errors"
	"github.com/wippyai/nativeguard/guard"
	"github.com/wippyai/nativeguard/host"
)

type resource struct {
	freed int
}

func freeResource(r *resource) { r.freed++ }

type handleObject struct {
	box *host.Box
}

func (o *handleObject) HostType() string  { return "test/Handle" }
func (o *handleObject) Box() host.Object { return o.box }

var handleType = &host.Type{
	Name: "test/Handle",
	New: func(b *host.Box) (host.Object, error) {
		return &handleObject{box: b}, nil
	},
}

// newEnv returns an env that resolves handleType.
func newEnv(t *testing.T) *host.LocalEnv {
	t.Helper()
	types := host.NewTypeRegistry()
	if err := types.Define(handleType); err != nil {
		t.Fatalf("Define: %v", err)
	}
	return host.NewLocalEnv(types)
}

// faultyEnv fails at a chosen step.
type faultyEnv struct {
	*host.LocalEnv
	failNewBox    bool
	nilBox        bool
	failConstruct bool
	nilObject     bool
	raiseOnBox    bool
}

func (e *faultyEnv) NewBox(addr uint64) (*host.Box, error) {
	switch {
	case e.failNewBox:
		return nil, stderrors.New("out of host memory")
	case e.nilBox:
		return nil, nil
	case e.raiseOnBox:
		b, _ := e.LocalEnv.NewBox(addr)
		e.Raise(stderrors.New("host fault during box"))
		return b, nil
	}
	return e.LocalEnv.NewBox(addr)
}

func (e *faultyEnv) Construct(t *host.Type, box *host.Box) (host.Object, error) {
	switch {
	case e.failConstruct:
		return nil, stderrors.New("constructor threw")
	case e.nilObject:
		return nil, nil
	}
	return e.LocalEnv.Construct(t, box)
}

func register(t *testing.T, arena *guard.Arena, leakIndex int32) (*resource, guard.Address) {
	t.Helper()
	r := &resource{}
	addr, err := arena.Register(guard.New(leakIndex, r, freeResource))
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	return r, addr
}

func TestBuildObject(t *testing.T) {
	arena := guard.NewArena(nil)
	env := newEnv(t)
	r, addr := register(t, arena, 52)

	obj, err := BuildObject(env, handleType, arena, addr)
	if err != nil {
		t.Fatalf("BuildObject: %v", err)
	}
	h, err := ResolveCapability[*resource](env, arena, obj)
	if err != nil {
		t.Fatalf("ResolveCapability: %v", err)
	}
	if h.LeakIndex() != 52 {
		t.Fatalf("LeakIndex = %d, want 52", h.LeakIndex())
	}
	if got, _ := h.Resource(); got != r {
		t.Fatal("resolved a different resource")
	}
	if env.Fault() != nil {
		t.Fatalf("unexpected fault: %v", env.Fault())
	}
}

func TestBuildObject_PartialFailure(t *testing.T) {
	tests := []struct {
		name  string
		typ   *host.Type
		setup func(e *faultyEnv)
	}{
		{"nil type", nil, nil},
		{"nil constructor", &host.Type{Name: "test/Broken"}, nil},
		{"type not resolvable", &host.Type{Name: "test/Unknown", New: handleType.New}, nil},
		{"type redefined", &host.Type{Name: handleType.Name, New: handleType.New}, nil},
		{"pending fault", handleType, func(e *faultyEnv) { e.Raise(stderrors.New("earlier fault")) }},
		{"box fails", handleType, func(e *faultyEnv) { e.failNewBox = true }},
		{"box is nil", handleType, func(e *faultyEnv) { e.nilBox = true }},
		{"fault raised while boxing", handleType, func(e *faultyEnv) { e.raiseOnBox = true }},
		{"construct fails", handleType, func(e *faultyEnv) { e.failConstruct = true }},
		{"construct returns nil", handleType, func(e *faultyEnv) { e.nilObject = true }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			arena := guard.NewArena(nil)
			env := &faultyEnv{LocalEnv: newEnv(t)}
			if tt.setup != nil {
				tt.setup(env)
			}
			r, addr := register(t, arena, 7)

			obj, err := BuildObject(env, tt.typ, arena, addr)
			if obj != nil {
				t.Fatalf("object produced on failure: %#v", obj)
			}
			if err == nil {
				t.Fatal("expected error")
			}
			if r.freed != 1 {
				t.Fatalf("destructor ran %d times, want 1", r.freed)
			}
			if arena.Len() != 0 {
				t.Fatalf("arena still holds %d handles", arena.Len())
			}
			if env.Fault() == nil {
				t.Fatal("failure should leave a pending fault")
			}
		})
	}
}

func TestBuildObject_UnresolvableType(t *testing.T) {
	arena := guard.NewArena(nil)
	env := host.NewLocalEnv(nil)
	r, addr := register(t, arena, 4)

	obj, err := BuildObject(env, handleType, arena, addr)
	if obj != nil {
		t.Fatal("object produced for an unknown type")
	}
	var gerr *errors.Error
	if !stderrors.As(err, &gerr) || gerr.Kind != errors.KindNotFound {
		t.Fatalf("error = %v, want not_found", err)
	}
	if len(gerr.Path) != 2 || gerr.Path[1] != handleType.Name {
		t.Fatalf("Path = %v", gerr.Path)
	}
	if !stderrors.Is(gerr.Cause, &errors.Error{Phase: errors.PhaseHost, Kind: errors.KindNotFound}) {
		t.Fatalf("Cause = %v, want registry lookup error", gerr.Cause)
	}
	if r.freed != 1 {
		t.Fatalf("freed = %d, want 1", r.freed)
	}
}

func TestFailAndRelease(t *testing.T) {
	arena := guard.NewArena(nil)
	env := host.NewLocalEnv(nil)
	r, addr := register(t, arena, 1)

	if FailAndRelease(env, nil, arena, addr) {
		t.Fatal("no error and no fault should proceed")
	}
	if r.freed != 0 {
		t.Fatal("proceed must not release")
	}

	cause := stderrors.New("boom")
	if !FailAndRelease(env, cause, arena, addr) {
		t.Fatal("error should abort")
	}
	if r.freed != 1 {
		t.Fatalf("freed = %d, want 1", r.freed)
	}
	if env.Fault() != cause {
		t.Fatalf("Fault = %v, want cause", env.Fault())
	}

	// Pending fault is kept, second release is a no-op.
	if !FailAndRelease(env, stderrors.New("other"), arena, addr) {
		t.Fatal("pending fault should abort")
	}
	if env.Fault() != cause {
		t.Fatal("pending fault was replaced")
	}
	if r.freed != 1 {
		t.Fatalf("freed = %d, want 1", r.freed)
	}
}

func TestAddressRoundTrip(t *testing.T) {
	env := host.NewLocalEnv(nil)
	for _, addr := range []guard.Address{1, 0x2_0000_0001, 0xFFFF_FFFF_FFFF_FFFF} {
		box, err := WrapAddress(env, addr)
		if err != nil {
			t.Fatalf("WrapAddress: %v", err)
		}
		got, err := AddressFromBox(env, box)
		if err != nil {
			t.Fatalf("AddressFromBox: %v", err)
		}
		if got != addr {
			t.Fatalf("round trip = %v, want %v", got, addr)
		}
	}
}

func TestAddressFromBox_TypeMismatch(t *testing.T) {
	env := host.NewLocalEnv(nil)

	_, err := AddressFromBox(env, &handleObject{})
	if err == nil {
		t.Fatal("expected classification fault")
	}
	msg := err.Error()
	if !strings.Contains(msg, "expected nativeguard/Box but was test/Handle") {
		t.Fatalf("message = %q", msg)
	}
	if env.Fault() != err {
		t.Fatal("fault should be raised on the env")
	}

	env.ClearFault()
	_, err = AddressFromBox(env, "not an object")
	if err == nil || !strings.Contains(err.Error(), "but was string") {
		t.Fatalf("error = %v", err)
	}
	var gerr *errors.Error
	if !stderrors.As(err, &gerr) || gerr.Kind != errors.KindTypeMismatch {
		t.Fatalf("error kind = %v", err)
	}
}

func TestAddressFromBox_Absent(t *testing.T) {
	env := host.NewLocalEnv(nil)
	_, err := AddressFromBox(env, nil)
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseMarshal, Kind: errors.KindNotFound}) {
		t.Fatalf("AddressFromBox(nil) = %v", err)
	}

	env.ClearFault()
	var typedNil *host.Box
	if _, err := AddressFromBox(env, typedNil); err == nil {
		t.Fatal("typed nil box should fail")
	}
}

func TestBoxFromCapability(t *testing.T) {
	env := host.NewLocalEnv(nil)
	box := host.NewBox(9)

	got, err := BoxFromCapability(env, &handleObject{box: box})
	if err != nil || got != box {
		t.Fatalf("BoxFromCapability = %v, %v", got, err)
	}

	// A box is its own capability.
	got, err = BoxFromCapability(env, box)
	if err != nil || got != box {
		t.Fatalf("BoxFromCapability(box) = %v, %v", got, err)
	}

	_, err = BoxFromCapability(env, 42)
	if err == nil || !strings.Contains(err.Error(), "expected nativeguard/Capability but was int") {
		t.Fatalf("error = %v", err)
	}

	env.ClearFault()
	_, err = BoxFromCapability(env, &handleObject{})
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseMarshal, Kind: errors.KindNotFound}) {
		t.Fatalf("missing box = %v", err)
	}
}

func TestResolve_PendingFault(t *testing.T) {
	arena := guard.NewArena(nil)
	env := host.NewLocalEnv(nil)
	_, addr := register(t, arena, 3)
	box := host.NewBox(uint64(addr))

	pending := stderrors.New("pending")
	env.Raise(pending)
	if _, err := Resolve[*resource](env, arena, box); err == nil {
		t.Fatal("resolve should fail while a fault is pending")
	}
	if env.Fault() != pending {
		t.Fatal("pending fault replaced")
	}
}

func TestResolve_ErasedBox(t *testing.T) {
	arena := guard.NewArena(nil)
	env := host.NewLocalEnv(nil)
	_, addr := register(t, arena, 3)
	box := host.NewBox(uint64(addr))
	box.Erase()

	_, err := Resolve[*resource](env, arena, box)
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseResolve, Kind: errors.KindNotFound}) {
		t.Fatalf("Resolve erased = %v", err)
	}
}

func TestResolve_WrongResourceType(t *testing.T) {
	arena := guard.NewArena(nil)
	env := host.NewLocalEnv(nil)
	_, addr := register(t, arena, 3)

	_, err := Resolve[string](env, arena, host.NewBox(uint64(addr)))
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseResolve, Kind: errors.KindTypeMismatch}) {
		t.Fatalf("Resolve wrong type = %v", err)
	}
}

func TestResolve_ReleasedAddressPanics(t *testing.T) {
	arena := guard.NewArena(nil)
	env := host.NewLocalEnv(nil)
	_, addr := register(t, arena, 3)
	box := host.NewBox(uint64(addr))
	arena.Release(addr, guard.CodeExplicit)

	defer func() {
		if r := recover(); !guard.IsFatal(r) {
			t.Fatalf("recovered %v, want fatal", r)
		}
	}()
	Resolve[*resource](env, arena, box)
	t.Fatal("stale address should panic")
}
