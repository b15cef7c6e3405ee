package guard

import (
	stderrors "errors"
	"testing"

	"github.com/wippyai/nativeguard/errors"
)

type buffer struct {
	data  []byte
	freed int
}

func freeBuffer(b *buffer) {
	b.freed++
	b.data = nil
}

func expectFatal(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected panic")
		}
		if !IsFatal(r) {
			t.Fatalf("panic %v is not a guard contract violation", r)
		}
	}()
	fn()
}

func TestHandle_NewRequiresRelease(t *testing.T) {
	expectFatal(t, func() {
		New[*buffer](1, &buffer{}, nil)
	})
	expectFatal(t, func() {
		NewEmpty[*buffer](1, nil)
	})
}

func TestHandle_LiveMarkers(t *testing.T) {
	h := New(7, &buffer{}, freeBuffer)
	if h.header != liveHeader || h.footer != liveFooter {
		t.Fatalf("markers = %#x/%#x, want live pair", h.header, h.footer)
	}
	if h.State() != StateLive {
		t.Fatalf("State = %v, want live", h.State())
	}
}

func TestHandle_ReleaseOnce(t *testing.T) {
	b := &buffer{data: make([]byte, 16)}
	h := New(3, b, freeBuffer)

	if got := h.Release(CodeExplicit); got != StatusOK {
		t.Fatalf("first Release = %d, want %d", got, StatusOK)
	}
	if b.freed != 1 {
		t.Fatalf("freed = %d, want 1", b.freed)
	}

	if got := h.Release(CodeExplicit); got != StatusNull {
		t.Fatalf("second Release = %d, want %d", got, StatusNull)
	}
	if b.freed != 1 {
		t.Fatalf("freed after second release = %d, want 1", b.freed)
	}
}

func TestHandle_ReleaseNil(t *testing.T) {
	var h *Handle[*buffer]
	if got := h.Release(CodeExplicit); got != StatusNull {
		t.Fatalf("Release(nil) = %d, want %d", got, StatusNull)
	}
}

func TestHandle_PoisonedAfterRelease(t *testing.T) {
	h := New(1, &buffer{}, freeBuffer)
	h.Release(CodeExplicit)

	if h.header != deadHeader || h.footer != deadFooter {
		t.Fatalf("markers = %#x/%#x, want dead pair", h.header, h.footer)
	}
	if h.release != nil {
		t.Fatal("release closure should be dropped")
	}
	if h.State() != StateReleased {
		t.Fatalf("State = %v, want released", h.State())
	}
	if _, ok := h.Resource(); ok {
		t.Fatal("Resource should be empty after release")
	}
}

func TestHandle_LeakIndexPreserved(t *testing.T) {
	h := New(52, &buffer{}, freeBuffer)
	if h.LeakIndex() != 52 {
		t.Fatalf("LeakIndex = %d, want 52", h.LeakIndex())
	}
	h.Release(CodeExplicit)
	if h.LeakIndex() != 52 {
		t.Fatalf("LeakIndex after release = %d, want 52", h.LeakIndex())
	}
}

func TestHandle_DeferredAttach(t *testing.T) {
	calls := 0
	h := NewEmpty(9, func(*buffer) { calls++ })

	if _, ok := h.Resource(); ok {
		t.Fatal("empty handle should not report a resource")
	}

	b := &buffer{}
	if err := h.Attach(b); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	got, ok := h.Resource()
	if !ok || got != b {
		t.Fatalf("Resource = %v, %v", got, ok)
	}

	if err := h.Attach(&buffer{}); err == nil {
		t.Fatal("second Attach should fail")
	}

	h.Release(CodeExplicit)
	if calls != 1 {
		t.Fatalf("release calls = %d, want 1", calls)
	}

	err := h.Attach(&buffer{})
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseResolve, Kind: errors.KindReleased}) {
		t.Fatalf("Attach after release = %v, want released error", err)
	}
}

func TestHandle_EmptyReleaseSkipsDestructor(t *testing.T) {
	calls := 0
	h := NewEmpty(2, func(*buffer) { calls++ })

	if got := h.Release(CodeExplicit); got != StatusOK {
		t.Fatalf("Release = %d, want %d", got, StatusOK)
	}
	if calls != 0 {
		t.Fatalf("release function called %d times for empty handle", calls)
	}
	if h.State() != StateReleased {
		t.Fatalf("State = %v, want released", h.State())
	}
}

func TestHandle_CorruptedMarkersPanic(t *testing.T) {
	h := New(1, &buffer{}, freeBuffer)
	h.footer = 0x1234

	expectFatal(t, func() {
		h.Release(CodeExplicit)
	})
	expectFatal(t, func() {
		h.State()
	})
}

func TestHandle_ReleaseClearsSlotBeforeDestructor(t *testing.T) {
	var h *Handle[*buffer]
	h = New(1, &buffer{}, func(*buffer) {
		if _, ok := h.Resource(); ok {
			t.Error("slot should be empty while the destructor runs")
		}
	})
	h.Release(CodeExplicit)
}

func TestIsFatal(t *testing.T) {
	if IsFatal("boom") {
		t.Error("string panic is not fatal")
	}
	if IsFatal(errors.NotFound(errors.PhaseResolve, "x")) {
		t.Error("not_found is not fatal")
	}
	if !IsFatal(errors.Corrupted(errors.PhaseResolve, 1, "x")) {
		t.Error("corrupted should be fatal")
	}
}
