// Package native runs wasi_snapshot_preview1 operations.
//
// The operation table assigns each preview1 function a stable id and
// records its lowered signature. Host executes operations through wazero:
// a generated shim module imports the preview1 functions, owns the linear
// memory the marshalling engine writes into and re-exports each function
// so it can be called with raw arguments.
//
//	host, err := native.NewHost(ctx, native.HostConfig{Stdout: os.Stdout})
//	op, _ := host.Catalog().ByName("fd_write")
//	errno, err := host.Invoke(ctx, op, args)
package native
