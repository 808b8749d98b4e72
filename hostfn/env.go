package hostfn

import (
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/fernlang/fernhost/abi"
)

// Env is the capability bundle handed to every effect body: the guest
// memory, the bridge allocator, and the host-side endpoints the effects
// talk to. It replaces the opaque environment pointer of the C-style ABI
// with an explicit typed value.
type Env struct {
	Mem  abi.Memory
	Heap abi.Allocator

	Stdout  io.Writer
	Stdin   LineReader
	Store   Store
	HTTP    Getter
	Environ func() []string

	// Seed feeds the dictionary hash for every dict the host builds
	// during this run.
	Seed uint64

	Log *zap.Logger
}

func (e *Env) logger() *zap.Logger {
	if e.Log == nil {
		return zap.NewNop()
	}
	return e.Log
}

func (e *Env) stdout() io.Writer {
	if e.Stdout == nil {
		return os.Stdout
	}
	return e.Stdout
}

func (e *Env) environ() []string {
	if e.Environ == nil {
		return os.Environ()
	}
	return e.Environ()
}
