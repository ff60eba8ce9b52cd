package native

import (
	"encoding/binary"

	"github.com/tetratelabs/wazero/api"
)

// EncodeULEB128 encodes v as unsigned LEB128, which is the same byte
// format as an encoding/binary uvarint.
func EncodeULEB128(v uint32) []byte {
	return binary.AppendUvarint(nil, uint64(v))
}

// DecodeULEB128 decodes an unsigned LEB128 value and returns it with the
// number of bytes consumed. n <= 0 reports truncated or overlong input.
func DecodeULEB128(data []byte) (v uint32, n int) {
	u, n := binary.Uvarint(data)
	if n > 0 && u > 0xffffffff {
		return 0, -n
	}
	return uint32(u), n
}

// ValTypeToWasm returns the binary encoding of t. wazero's value type
// constants are the encoding bytes themselves.
func ValTypeToWasm(t api.ValueType) byte {
	return t
}
