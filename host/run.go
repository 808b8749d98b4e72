package host

import (
	"context"
	crand "crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/tetratelabs/wazero"
	"go.uber.org/zap"

	"github.com/fernlang/fernhost/abi"
	"github.com/fernlang/fernhost/bridge"
	"github.com/fernlang/fernhost/hostfn"
)

// entryExport is the guest's entry point: fern_entry(ret_ptr, arg_ptr).
const entryExport = "fern_entry"

// Exit union discriminants, numbered lexicographically: Done | Exit Int.
const (
	exitTagDone uint8 = iota
	exitTagExit
)

// The widest Exit payload is the i32 code.
var exitResult = abi.UnionLayout(4, 4)

// Result holds the outcome of one program run.
type Result struct {
	// ExitCode is 0 for success, 1 for crash or debug artifacts, and
	// passes explicit exit codes through verbatim.
	ExitCode   int
	Crashed    bool
	DebugFired bool
	Duration   time.Duration
	Err        error
}

// Run executes prog to completion with args as its argument list.
func (h *Host) Run(ctx context.Context, prog Program, args []string, opts ...RunOption) Result {
	start := time.Now()

	cfg := defaultRunConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.timeout)
		defer cancel()
	}

	fail := func(err error) Result {
		return Result{ExitCode: 1, Err: err, Duration: time.Since(start)}
	}

	compiled, err := h.getCompiled(ctx, prog)
	if err != nil {
		return fail(err)
	}

	h.runMu.Lock()
	defer h.runMu.Unlock()

	stderr := cfg.stderr
	if stderr == nil {
		stderr = os.Stderr
	}
	s := &session{stderr: stderr, log: h.log}

	imports, err := h.instantiateHostImports(ctx, s)
	if err != nil {
		return fail(fmt.Errorf("instantiate host imports: %w", err))
	}
	defer imports.Close(context.Background())

	moduleConfig := wazero.NewModuleConfig().
		WithName("").
		WithStartFunctions()

	mod, err := h.runtime.InstantiateModule(ctx, compiled, moduleConfig)
	if err != nil {
		return fail(fmt.Errorf("instantiate %s: %w", prog.Name(), err))
	}
	defer mod.Close(context.Background())

	if mod.Memory() == nil {
		return fail(fmt.Errorf("%s exports no memory", prog.Name()))
	}
	s.mem = guestMemory{mem: mod.Memory()}
	s.heap = bridge.NewHeap(s.mem)
	s.table = hostfn.Default()
	s.env, err = newEnv(s, cfg)
	if err != nil {
		return fail(err)
	}

	entry := mod.ExportedFunction(entryExport)
	if entry == nil {
		return fail(fmt.Errorf("%s exports no %s", prog.Name(), entryExport))
	}

	ret, arg, err := s.marshalEntry(args)
	if err != nil {
		return fail(fmt.Errorf("marshal arguments: %w", err))
	}

	_, callErr := entry.Call(ctx, uint64(ret), uint64(arg))

	result := Result{Duration: time.Since(start), DebugFired: s.debugFired}

	switch {
	case s.crashed:
		result.ExitCode = 1
		result.Crashed = true
	case s.oom:
		result.ExitCode = 1
		result.Err = bridge.ErrOutOfMemory
	case callErr != nil:
		result.ExitCode = 1
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			result.Err = fmt.Errorf("timeout after %v", cfg.timeout)
		} else {
			result.Err = fmt.Errorf("execution failed: %w", callErr)
		}
	default:
		result.ExitCode, result.Err = decodeExit(s.mem, ret)
	}

	result.ExitCode = finalExitCode(result.ExitCode, result.DebugFired)

	allocs, frees := s.heap.Stats()
	h.log.Info("run finished",
		zap.String("program", prog.Name()),
		zap.Int("exit_code", result.ExitCode),
		zap.Bool("crashed", result.Crashed),
		zap.Duration("duration", result.Duration),
		zap.Uint64("allocs", allocs),
		zap.Uint64("frees", frees),
		zap.Int("live_blocks", s.heap.Live()))

	return result
}

// newEnv assembles the capability bundle for the run. Sandboxed runs swap
// the storage and HTTP endpoints for in-memory stand-ins; everything else
// is identical.
func newEnv(s *session, cfg runConfig) (*hostfn.Env, error) {
	env := &hostfn.Env{
		Mem:     s.mem,
		Heap:    s.heap,
		Stdout:  cfg.stdout,
		Stdin:   cfg.stdin,
		Environ: cfg.environ,
		Seed:    cfg.hashSeed,
		Log:     s.log,
	}
	if !cfg.hashSeedSet {
		env.Seed = randomSeed()
	}

	env.Store = cfg.store
	env.HTTP = cfg.getter
	if cfg.sandboxed {
		if env.Store == nil {
			env.Store = hostfn.NewMemStore()
		}
		if env.HTTP == nil {
			env.HTTP = hostfn.StubGetter{}
		}
		return env, nil
	}

	if env.Store == nil {
		store, err := hostfn.NewDirStore(cfg.storageDir)
		if err != nil {
			return nil, err
		}
		env.Store = store
	}
	if env.HTTP == nil {
		env.HTTP = hostfn.NewClient(hostfn.HTTPConfig{
			AllowedHosts:   cfg.allowedHosts,
			MaxBodySize:    cfg.httpMaxBody,
			RequestTimeout: cfg.httpTimeout,
		})
	}
	return env, nil
}

func randomSeed() uint64 {
	var buf [8]byte
	if _, err := crand.Read(buf[:]); err != nil {
		return 0
	}
	return binary.LittleEndian.Uint64(buf[:])
}

// marshalEntry allocates the entry point's two buffers: the exit union
// return buffer and the argument record, whose single field is the
// argument list as List Str.
func (s *session) marshalEntry(args []string) (ret, arg uint32, err error) {
	items := make([][]byte, len(args))
	for i, a := range args {
		items[i] = []byte(a)
	}
	list, err := abi.NewStrList(s.mem, s.heap, items)
	if err != nil {
		return 0, 0, err
	}

	arg, err = s.heap.Alloc(abi.ListSize, abi.ListAlign)
	if err != nil {
		return 0, 0, err
	}
	if err := abi.WriteList(s.mem, arg, list); err != nil {
		return 0, 0, err
	}

	ret, err = s.heap.Alloc(exitResult.Size, exitResult.Align)
	if err != nil {
		return 0, 0, err
	}
	return ret, arg, nil
}

// finalExitCode applies the soft-fail guard: debug or assertion artifacts
// in an otherwise-successful run must never look like a pass.
func finalExitCode(code int, debugFired bool) int {
	if debugFired && code == 0 {
		return 1
	}
	return code
}

// decodeExit maps the exit union at ret to a process exit code:
// Done -> 0, Exit(code) -> code.
func decodeExit(m abi.Memory, ret uint32) (int, error) {
	tag, err := m.ReadU8(ret)
	if err != nil {
		return 1, err
	}
	switch tag {
	case exitTagDone:
		return 0, nil
	case exitTagExit:
		v, err := m.ReadU32(ret + exitResult.PayloadOffset)
		if err != nil {
			return 1, err
		}
		return int(int32(v)), nil
	default:
		return 1, fmt.Errorf("host: unknown exit discriminant %d", tag)
	}
}
