package host

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/fernlang/fernhost/abi"
	"github.com/fernlang/fernhost/bridge"
	"github.com/fernlang/fernhost/hostfn"
)

// hostModule is the import module name guests link against.
const hostModule = "fern_host"

// abort marks a deliberate session termination raised out of a host
// import. wazero recovers the panic and surfaces it as the entry call's
// error; the session flags say what actually happened.
type abort struct {
	reason string
}

func (a abort) Error() string { return "session aborted: " + a.reason }

// session is the per-run state behind the host imports: the heap, the
// effect environment, and the flags the exit mapping consults.
type session struct {
	mem   abi.GrowableMemory
	heap  *bridge.Heap
	env   *hostfn.Env
	table *hostfn.Table

	stderr io.Writer
	log    *zap.Logger

	debugFired bool
	crashed    bool
	oom        bool
}

// instantiateHostImports registers the fern_host module bound to s. The
// returned module must be closed when the run ends so the next run can
// register its own.
func (h *Host) instantiateHostImports(ctx context.Context, s *session) (api.Module, error) {
	b := h.runtime.NewHostModuleBuilder(hostModule)

	b.NewFunctionBuilder().
		WithFunc(func(_ context.Context, length, align uint32) uint32 {
			return s.alloc(length, align)
		}).Export("alloc")
	b.NewFunctionBuilder().
		WithFunc(func(_ context.Context, ptr, align uint32) {
			s.heap.Free(ptr, align)
		}).Export("dealloc")
	b.NewFunctionBuilder().
		WithFunc(func(_ context.Context, ptr, newLength, align uint32) uint32 {
			return s.realloc(ptr, newLength, align)
		}).Export("realloc")
	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, index, ret, arg uint32) {
			s.effect(ctx, index, ret, arg)
		}).Export("effect")
	b.NewFunctionBuilder().
		WithFunc(func(_ context.Context) uint32 {
			return s.table.Count()
		}).Export("effect_count")
	b.NewFunctionBuilder().
		WithFunc(func(_ context.Context, ptr, length uint32) {
			s.dbg(ptr, length)
		}).Export("dbg")
	b.NewFunctionBuilder().
		WithFunc(func(_ context.Context, ptr, length uint32) {
			s.expectFailed(ptr, length)
		}).Export("expect_failed")
	b.NewFunctionBuilder().
		WithFunc(func(_ context.Context, ptr, length uint32) {
			s.crash(ptr, length)
		}).Export("crash")

	return b.Instantiate(ctx)
}

func (s *session) alloc(length, align uint32) uint32 {
	ptr, err := s.heap.Alloc(length, align)
	if err != nil {
		s.fatalAlloc(err)
	}
	return ptr
}

func (s *session) realloc(ptr, newLength, align uint32) uint32 {
	next, err := s.heap.Realloc(ptr, newLength, align)
	if err != nil {
		s.fatalAlloc(err)
	}
	return next
}

// fatalAlloc aborts the run: the guest has no failure path for
// allocation, so there is nothing to hand back.
func (s *session) fatalAlloc(err error) {
	s.oom = true
	fmt.Fprintf(s.stderr, "fernhost: allocation failed: %v\n", err)
	s.log.Error("guest allocation failed", zap.Error(err))
	panic(abort{reason: "out of memory"})
}

func (s *session) effect(ctx context.Context, index, ret, arg uint32) {
	if err := s.table.Dispatch(ctx, s.env, index, ret, arg); err != nil {
		if errors.Is(err, bridge.ErrOutOfMemory) {
			s.fatalAlloc(err)
		}
	}
}

func (s *session) message(ptr, length uint32) string {
	b, err := s.mem.Read(ptr, length)
	if err != nil {
		return fmt.Sprintf("<unreadable message at %d+%d>", ptr, length)
	}
	return string(b)
}

// dbg prints the guest's debug message and marks the run, so a debug hook
// left in otherwise-passing code still fails it.
func (s *session) dbg(ptr, length uint32) {
	msg := s.message(ptr, length)
	fmt.Fprintln(s.stderr, msg)
	s.log.Debug("guest debug hook", zap.String("message", msg))
	s.debugFired = true
}

func (s *session) expectFailed(ptr, length uint32) {
	msg := s.message(ptr, length)
	fmt.Fprintf(s.stderr, "expectation failed: %s\n", msg)
	s.log.Warn("guest expectation failed", zap.String("message", msg))
	s.debugFired = true
}

// crash terminates the run immediately with the message on stderr. It
// never reaches the result-mapping path.
func (s *session) crash(ptr, length uint32) {
	msg := s.message(ptr, length)
	fmt.Fprintln(s.stderr, msg)
	s.log.Error("guest crashed", zap.String("message", msg))
	s.crashed = true
	panic(abort{reason: "crash: " + msg})
}
