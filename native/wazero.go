package native

import (
	"context"
	"crypto/rand"
	stderrors "errors"
	"fmt"
	"io"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/tetratelabs/wazero/sys"
	"go.uber.org/zap"

	"github.com/wippyai/wasi-executor/errors"
	"github.com/wippyai/wasi-executor/memory"
)

// ShimModuleName is the instance name of the generated shim module.
const ShimModuleName = "wasi-executor-shim"

// Preopen maps a host directory into the guest file system.
type Preopen struct {
	HostPath  string
	GuestPath string
	ReadOnly  bool
}

// HostConfig configures the native environment the operations run in.
type HostConfig struct {
	Stdin        io.Reader
	Stdout       io.Writer
	Stderr       io.Writer
	RandSource   io.Reader
	Catalog      *Catalog
	Env          map[string]string
	Args         []string
	Preopens     []Preopen
	InitialPages uint32
	MaxPages     uint32
	HeapBase     uint32
}

// Host runs preview1 operations in a wazero runtime. Operations execute
// against the memory of a shim module that re-exports every host function,
// and the host's heap manages that memory.
type Host struct {
	runtime wazero.Runtime
	module  api.Module
	mem     *memory.Wrapper
	heap    *memory.Heap
	catalog *Catalog
	funcs   []api.Function
	mu      sync.Mutex
	exited  bool
}

// NewHost compiles the shim for cfg.Catalog (Preview1 when nil) and
// instantiates it with the preview1 host module.
func NewHost(ctx context.Context, cfg HostConfig) (*Host, error) {
	catalog := cfg.Catalog
	if catalog == nil {
		catalog = Preview1()
	}
	initial := cfg.InitialPages
	if initial == 0 {
		initial = 1
	}
	if cfg.MaxPages != 0 && cfg.MaxPages < initial {
		return nil, errors.InvalidInput(errors.PhaseConfig,
			fmt.Sprintf("max pages %d below initial pages %d", cfg.MaxPages, initial))
	}

	rcfg := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	if cfg.MaxPages != 0 {
		rcfg = rcfg.WithMemoryLimitPages(cfg.MaxPages)
	}
	r := wazero.NewRuntimeWithConfig(ctx, rcfg)

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, r); err != nil {
		_ = r.Close(ctx)
		return nil, errors.Wrap(errors.PhaseNative, errors.KindInvocation, err, "instantiate host module")
	}

	b := NewShimBuilder(ModuleName)
	b.AddCatalog(catalog)
	b.SetMemory(initial, cfg.MaxPages)
	compiled, err := r.CompileModule(ctx, b.Build())
	if err != nil {
		_ = r.Close(ctx)
		return nil, errors.Wrap(errors.PhaseNative, errors.KindInvocation, err, "compile shim")
	}

	mod, err := r.InstantiateModule(ctx, compiled, moduleConfig(cfg))
	if err != nil {
		_ = r.Close(ctx)
		return nil, errors.Wrap(errors.PhaseNative, errors.KindInvocation, err, "instantiate shim")
	}

	h := &Host{
		runtime: r,
		module:  mod,
		catalog: catalog,
		mem:     memory.Wrap(mod.Memory()),
		funcs:   make([]api.Function, catalog.Len()),
	}
	h.heap = memory.NewHeap(h.mem, cfg.HeapBase)
	for _, op := range catalog.Operations() {
		fn := mod.ExportedFunction(op.Name)
		if fn == nil {
			_ = r.Close(ctx)
			return nil, errors.NotFound(errors.PhaseNative, "shim export", op.Name)
		}
		h.funcs[op.ID] = fn
	}

	Logger().Debug("native host ready",
		zap.Int("operations", catalog.Len()),
		zap.Uint32("initial_pages", initial),
		zap.Uint32("max_pages", cfg.MaxPages),
		zap.Int("preopens", len(cfg.Preopens)))
	return h, nil
}

func moduleConfig(cfg HostConfig) wazero.ModuleConfig {
	mc := wazero.NewModuleConfig().
		WithName(ShimModuleName).
		WithStartFunctions().
		WithSysWalltime().
		WithSysNanotime().
		WithSysNanosleep()

	if len(cfg.Args) > 0 {
		mc = mc.WithArgs(cfg.Args...)
	}
	for k, v := range cfg.Env {
		mc = mc.WithEnv(k, v)
	}
	if cfg.Stdin != nil {
		mc = mc.WithStdin(cfg.Stdin)
	}
	if cfg.Stdout != nil {
		mc = mc.WithStdout(cfg.Stdout)
	}
	if cfg.Stderr != nil {
		mc = mc.WithStderr(cfg.Stderr)
	}
	if cfg.RandSource != nil {
		mc = mc.WithRandSource(cfg.RandSource)
	} else {
		mc = mc.WithRandSource(rand.Reader)
	}

	if len(cfg.Preopens) > 0 {
		fs := wazero.NewFSConfig()
		for _, p := range cfg.Preopens {
			if p.ReadOnly {
				fs = fs.WithReadOnlyDirMount(p.HostPath, p.GuestPath)
			} else {
				fs = fs.WithDirMount(p.HostPath, p.GuestPath)
			}
		}
		mc = mc.WithFSConfig(fs)
	}
	return mc
}

// Catalog returns the operation table the host was built for.
func (h *Host) Catalog() *Catalog { return h.catalog }

// Memory returns the linear memory operations read and write.
func (h *Host) Memory() *memory.Wrapper { return h.mem }

// Allocator returns the heap managing the linear memory.
func (h *Host) Allocator() *memory.Heap { return h.heap }

// Invoke runs op with already lowered arguments and returns its errno.
// Operations without a result report 0. A guest exit is returned as an
// exit error; the host cannot run further operations afterwards.
func (h *Host) Invoke(ctx context.Context, op *Operation, args []uint64) (int32, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.exited {
		return 0, errors.New(errors.PhaseNative, errors.KindInvocation).
			Detail("host exited, cannot run %s", op.Name).Build()
	}
	if int(op.ID) >= len(h.funcs) {
		return 0, errors.UnknownOperation(op.ID)
	}

	results, err := h.funcs[op.ID].Call(ctx, args...)
	if err != nil {
		var exit *sys.ExitError
		if stderrors.As(err, &exit) {
			h.exited = true
			Logger().Debug("guest exited", zap.String("op", op.Name), zap.Uint32("code", exit.ExitCode()))
			return 0, errors.Exit(exit.ExitCode())
		}
		return 0, errors.Wrap(errors.PhaseNative, errors.KindInvocation, err, op.Name)
	}
	if len(results) == 0 {
		return 0, nil
	}
	return int32(uint32(results[0])), nil
}

// Close releases the runtime and every module in it.
func (h *Host) Close(ctx context.Context) error {
	return h.runtime.Close(ctx)
}
