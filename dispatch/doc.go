// Package dispatch executes declare and call requests.
//
// A call resolves each parameter to memory, either borrowing a resource
// table entry or materializing a literal, lowers the buffers to the native
// argument slots of the operation and pre-allocates zeroed out-pointers for
// the results. After the operation returns, results are read back and
// either stored in the resource table or released, and literal parameters
// are read back so that buffers filled by the operation are visible to the
// caller.
//
// Read and write shaped operations are re-invoked until the whole iovec
// list has been transferred. See accumulate for the exact rules.
package dispatch
