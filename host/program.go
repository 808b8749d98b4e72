package host

import (
	"fmt"
	"os"
	"path/filepath"
)

// Program is a compiled guest module the host can run. Name keys the
// compiled-module cache, so two distinct binaries must not share one.
type Program interface {
	// Name returns a unique identifier for this program.
	Name() string

	// Module returns the wasm binary.
	Module() []byte
}

type bytesProgram struct {
	name string
	wasm []byte
}

func (p bytesProgram) Name() string   { return p.name }
func (p bytesProgram) Module() []byte { return p.wasm }

// Bytes wraps an in-memory wasm binary as a Program.
func Bytes(name string, wasm []byte) Program {
	return bytesProgram{name: name, wasm: wasm}
}

// LoadFile reads a compiled program from disk. The cleaned path serves as
// the cache key.
func LoadFile(path string) (Program, error) {
	wasm, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load program: %w", err)
	}
	return bytesProgram{name: filepath.Clean(path), wasm: wasm}, nil
}
