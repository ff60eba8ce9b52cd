// Package protocol defines the executor's wire format.
//
// Each message travels as one frame: an 8-byte little-endian body length
// followed by the body. Bodies are canonical CBOR maps with integer keys.
// Sum types carry a Which field naming the selected case, and only that
// case's fields are present.
//
// The conversion functions translate between wire messages and the types
// package. Conversion rejects structurally broken messages as decode errors;
// layout invariants such as record overlap are left to types.Validate.
package protocol
