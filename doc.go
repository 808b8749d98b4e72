// Package fernhost is the native host runtime for compiled Fern programs.
//
// # Overview
//
// The Fern compiler emits wasm32 guest modules with zero ambient
// capabilities: every allocation, every I/O effect, and the program's entry
// and exit cross a fixed binary ABI into this host. fernhost wires that ABI
// to OS services using wazero.
//
// # Basic Usage
//
//	h, _ := host.New()
//	defer h.Close()
//
//	prog := host.Bytes("demo", wasmBytes)
//	result := h.Run(ctx, prog, os.Args[2:])
//	os.Exit(result.ExitCode)
//
// # Capabilities
//
// Guest programs reach the outside world only through the hosted effect
// table: stdio lines, a sandboxed keyed storage directory, one HTTP GET,
// random seeds, and the process environment. Effects can be replaced with
// sandboxed stand-ins without changing the dispatch contract:
//
//	result := h.Run(ctx, prog, args, host.WithSandbox())
//
// See the [abi], [dict], [bridge], [hostfn], and [host] packages for
// detailed API documentation.
package fernhost
