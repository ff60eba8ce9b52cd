// Package errors provides structured error types for the executor.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type includes rich context: value path, type descriptor name, and cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseEncode, errors.KindTypeMismatch).
//		Path("param[1]", "[0]", "buf_len").
//		Type("u32").
//		Detail("expected builtin value").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.ResourceNotFound(7)
//	err := errors.OutOfBounds(errors.PhaseReadBack, path, 10, 5)
//
// Every error maps onto one Class (framing, decode, usage, native) which the
// session uses to decide whether it can keep serving requests.
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
