// Package wasiexec is a request-driven executor for WASI preview1 system calls.
//
// A client describes one call at a time: the operation id, typed parameters
// and typed result slots. The executor lays the parameters out in a wasm32
// linear memory, invokes the real wasi_snapshot_preview1 host function
// against that memory and reads the results back into typed values.
//
// # Architecture Overview
//
//	wasiexec/           Root package with core Memory and Allocator interfaces
//	├── types/          Type/Value model, param and result specs, layout sizes
//	├── memory/         Linear memory adapters and the heap allocator
//	├── resource/       Resource table: 64-bit id -> (address, size)
//	├── marshal/        Materialize, read back and release typed values
//	├── native/         Preview1 operation table and the wazero invoker
//	├── dispatch/       Call state machine and partial I/O accumulation
//	├── protocol/       Length-prefixed framing and the CBOR message schema
//	├── session/        Request/response loop
//	├── metrics/        statsd metrics sink
//	├── config/         TOML configuration
//	├── errors/         Structured error types
//	└── cmd/wasi-exec/  Process entry point
//
// # Quick Start
//
//	host, err := native.NewHost(ctx, native.HostConfig{
//	    Preopens: []native.Preopen{{HostPath: "/tmp/sandbox", GuestPath: "/"}},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	d := dispatch.New(host.Catalog(), host, host.Memory(), host.Allocator())
//	s := session.New(d, session.WithCloser(func() error { return host.Close(ctx) }))
//	defer s.Close()
//	err = s.Serve(ctx, os.Stdin, os.Stdout)
//
// # Memory Model
//
// Pointers are 32-bit little-endian addresses into the shim module's linear
// memory. Memory handed to a call is either owned by that call and released
// when it completes, or borrowed from the resource table and left alone.
// WASM linear memory can only grow, never shrink.
package wasiexec
