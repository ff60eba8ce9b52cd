// Package types defines the recursive Type and Value model shared by the
// marshaller, the dispatcher and the wire protocol.
//
// Both Type and Value are closed sum types: the interfaces carry an
// unexported marker method so only this package can add cases. Consumers
// switch over the concrete types and treat anything else as unsupported.
//
//	rec := types.RecordType{
//		Members: []types.Member{
//			{Name: "a", Type: types.TypeU32, Offset: 0},
//			{Name: "b", Type: types.TypeU64, Offset: 8},
//		},
//		Size: 16,
//	}
//	val := types.Record{types.NewU32(7), types.NewU64(9)}
//
// A Resource value may stand in for any literal; it names an entry of the
// resource table whose bytes are copied in place of the literal.
package types
