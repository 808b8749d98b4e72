package host

import (
	"context"
	"fmt"
	"sync"

	"github.com/tetratelabs/wazero"
	"go.uber.org/zap"
)

// Host manages the wazero runtime and compiled program caching. One Host
// serves many runs, but runs execute one at a time: the fern_host import
// module is registered under a fixed name and binds per-run state.
type Host struct {
	runtime  wazero.Runtime
	cache    wazero.CompilationCache
	compiled map[string]wazero.CompiledModule
	log      *zap.Logger

	mu     sync.RWMutex
	runMu  sync.Mutex
	closed bool
}

// New creates a Host.
func New(opts ...HostOption) (*Host, error) {
	cfg := defaultHostConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	ctx := context.Background()

	var cache wazero.CompilationCache
	var err error

	if cfg.diskCache {
		cacheDir := cfg.cacheDir
		if cacheDir == "" {
			cacheDir = defaultCacheDir()
		}
		cache, err = wazero.NewCompilationCacheWithDir(cacheDir)
		if err != nil {
			return nil, fmt.Errorf("create disk cache: %w", err)
		}
	}

	rtConfig := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	if cache != nil {
		rtConfig = rtConfig.WithCompilationCache(cache)
	}
	if cfg.memoryLimitPages > 0 {
		rtConfig = rtConfig.WithMemoryLimitPages(cfg.memoryLimitPages)
	}

	log := cfg.log
	if log == nil {
		log = zap.NewNop()
	}

	return &Host{
		runtime:  wazero.NewRuntimeWithConfig(ctx, rtConfig),
		cache:    cache,
		compiled: make(map[string]wazero.CompiledModule),
		log:      log,
	}, nil
}

// getCompiled returns a cached compiled module, compiling if necessary.
func (h *Host) getCompiled(ctx context.Context, prog Program) (wazero.CompiledModule, error) {
	name := prog.Name()

	h.mu.RLock()
	if compiled, ok := h.compiled[name]; ok {
		h.mu.RUnlock()
		return compiled, nil
	}
	h.mu.RUnlock()

	h.mu.Lock()
	defer h.mu.Unlock()

	if compiled, ok := h.compiled[name]; ok {
		return compiled, nil
	}

	compiled, err := h.runtime.CompileModule(ctx, prog.Module())
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", name, err)
	}

	h.compiled[name] = compiled
	return compiled, nil
}

// Close releases all resources held by the Host.
func (h *Host) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true

	ctx := context.Background()

	var errs []error
	if err := h.runtime.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	if h.cache != nil {
		if err := h.cache.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}
