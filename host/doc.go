// Package host runs compiled Fern programs.
//
// # Overview
//
// Host owns the wazero runtime and a cache of compiled programs. Each Run
// instantiates the guest, wires the fern_host import module over a fresh
// heap and effect table, marshals the process arguments into the guest's
// string-list representation, calls fern_entry, and maps the returned
// result to an exit code.
//
// # Basic Usage
//
//	h, err := host.New(host.WithDiskCache())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer h.Close()
//
//	prog, err := host.LoadFile("prog.wasm")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	res := h.Run(ctx, prog, os.Args[2:])
//	os.Exit(res.ExitCode)
//
// # Capabilities
//
// By default a program can print, read lines, and use keyed storage under
// the working directory. HTTP needs an explicit allow list; the sandboxed
// mode swaps storage and HTTP for in-memory stand-ins with identical
// effect indices:
//
//	h.Run(ctx, prog, nil,
//	    host.WithAllowedHosts([]string{"api.example.com"}),
//	    host.WithStorageDir("./state"),
//	)
package host
