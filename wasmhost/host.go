package wasmhost

import (
	"context"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/nativeguard/errors"
	"github.com/wippyai/nativeguard/guard"
	"github.com/wippyai/nativeguard/msgctx"
)

// DefaultModuleName is the import module guests use.
const DefaultModuleName = "nativeguard"

// Config holds host configuration.
type Config struct {
	// ModuleName overrides DefaultModuleName.
	ModuleName string

	// MemoryLimitPages sets the maximum guest memory in pages (64KB each).
	// 0 means the wazero default.
	MemoryLimitPages uint32
}

// Host owns a wazero runtime with the nativeguard module instantiated.
type Host struct {
	binding *msgctx.Binding
	runtime wazero.Runtime
	module  api.Module
	name    string
}

// New creates a runtime and instantiates the host module in it.
func New(ctx context.Context, b *msgctx.Binding, cfg *Config) (*Host, error) {
	if b == nil {
		return nil, errors.NilPointer(errors.PhaseGuest, "binding")
	}

	runtimeCfg := wazero.NewRuntimeConfig()
	name := DefaultModuleName
	if cfg != nil {
		if cfg.ModuleName != "" {
			name = cfg.ModuleName
		}
		if cfg.MemoryLimitPages > 0 {
			runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
		}
	}

	rt := wazero.NewRuntimeWithConfig(ctx, runtimeCfg)
	mod, err := Instantiate(ctx, rt, b, name)
	if err != nil {
		rt.Close(ctx)
		return nil, err
	}
	return &Host{binding: b, runtime: rt, module: mod, name: name}, nil
}

// Instantiate builds the host module for b into rt under name.
func Instantiate(ctx context.Context, rt wazero.Runtime, b *msgctx.Binding, name string) (api.Module, error) {
	f := &funcs{binding: b}
	i32, i64 := api.ValueTypeI32, api.ValueTypeI64

	builder := rt.NewHostModuleBuilder(name)
	for _, fn := range []struct {
		name    string
		handler api.GoModuleFunc
		params  []api.ValueType
		results []api.ValueType
	}{
		{"create", f.create, []api.ValueType{i32}, []api.ValueType{i64}},
		{"read", f.read, []api.ValueType{i64, i32, i32}, []api.ValueType{i32}},
		{"message_len", f.messageLen, []api.ValueType{i64}, []api.ValueType{i32}},
		{"leak_index", f.leakIndex, []api.ValueType{i64}, []api.ValueType{i32}},
		{"release", f.release, []api.ValueType{i64}, []api.ValueType{i32}},
	} {
		builder.NewFunctionBuilder().
			WithGoModuleFunction(fn.handler, fn.params, fn.results).
			Export(fn.name)
	}

	mod, err := builder.Instantiate(ctx)
	if err != nil {
		return nil, errors.Registration(errors.PhaseGuest, name, err)
	}
	Logger().Debug("host module instantiated", zap.String("module", name))
	return mod, nil
}

// Runtime returns the underlying wazero runtime.
func (h *Host) Runtime() wazero.Runtime { return h.runtime }

// Module returns the instantiated host module.
func (h *Host) Module() api.Module { return h.module }

// RunGuest instantiates guest, calls its run(addr) export and returns the
// bytes it left at offset 0 of its memory.
func (h *Host) RunGuest(ctx context.Context, guest []byte, addr guard.Address) ([]byte, error) {
	mod, err := h.runtime.Instantiate(ctx, guest)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseGuest, errors.KindInvalidInput, err, "instantiate guest")
	}
	defer mod.Close(ctx)

	run := mod.ExportedFunction("run")
	if run == nil {
		return nil, errors.NotFound(errors.PhaseGuest, "guest export run")
	}
	results, err := run.Call(ctx, uint64(addr))
	if err != nil {
		return nil, errors.Wrap(errors.PhaseGuest, errors.KindHostFault, err, "guest run")
	}

	n := api.DecodeI32(results[0])
	if n < 0 {
		return nil, errors.NotFound(errors.PhaseGuest, "message at "+addr.String())
	}
	data, ok := mod.Memory().Read(0, uint32(n))
	if !ok {
		return nil, errors.OutOfBounds(errors.PhaseGuest, []string{"memory"}, int(n), int(mod.Memory().Size()))
	}
	return append([]byte(nil), data...), nil
}

// Close closes the runtime and every module in it.
func (h *Host) Close(ctx context.Context) error {
	return h.runtime.Close(ctx)
}

type funcs struct {
	binding *msgctx.Binding
}

func (f *funcs) create(ctx context.Context, mod api.Module, stack []uint64) {
	leakIndex := api.DecodeI32(stack[0])
	addr, err := f.binding.Allocate(leakIndex)
	if err != nil {
		Logger().Warn("guest create failed", zap.Int32("leakIndex", leakIndex), zap.Error(err))
		stack[0] = 0
		return
	}
	stack[0] = uint64(addr)
}

func (f *funcs) read(ctx context.Context, mod api.Module, stack []uint64) {
	addr := guard.Address(stack[0])
	ptr := api.DecodeU32(stack[1])
	size := api.DecodeI32(stack[2])

	mem := mod.Memory()
	if addr == guard.Null || mem == nil || size < 0 {
		stack[0] = api.EncodeI32(-1)
		return
	}
	data, err := f.binding.ReadAddress(addr)
	if err != nil {
		Logger().Debug("guest read failed", zap.Stringer("addr", addr), zap.Error(err))
		stack[0] = api.EncodeI32(-1)
		return
	}

	n := min(int(size), len(data))
	if !mem.Write(ptr, data[:n]) {
		stack[0] = api.EncodeI32(-1)
		return
	}
	stack[0] = api.EncodeI32(int32(n))
}

func (f *funcs) messageLen(ctx context.Context, mod api.Module, stack []uint64) {
	addr := guard.Address(stack[0])
	if addr == guard.Null {
		stack[0] = api.EncodeI32(-1)
		return
	}
	msg, err := f.binding.MessageAt(addr)
	if err != nil {
		stack[0] = api.EncodeI32(-1)
		return
	}
	stack[0] = api.EncodeI32(int32(msg.Len()))
}

func (f *funcs) leakIndex(ctx context.Context, mod api.Module, stack []uint64) {
	stack[0] = api.EncodeI32(f.binding.LeakIndexAddress(guard.Address(stack[0])))
}

func (f *funcs) release(ctx context.Context, mod api.Module, stack []uint64) {
	status := f.binding.ReleaseAddress(guard.Address(stack[0]))
	stack[0] = api.EncodeI32(int32(status))
}
