package protocol

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/wippyai/wasi-executor/errors"
)

// maxNesting bounds how deep types and values may nest on the wire.
const maxNesting = 256

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("protocol: failed to create CBOR enc mode: %v", err))
	}
	encMode = em

	dm, err := cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyEnforcedAPF,
		MaxNestedLevels:   maxNesting,
		ExtraReturnErrors: cbor.ExtraDecErrorUnknownField,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("protocol: failed to create CBOR dec mode: %v", err))
	}
	decMode = dm
}

// encodeFailed reports a message that could not be serialized. Nothing has
// been written to the stream yet, so the framing is still intact.
func encodeFailed(what string, err error) error {
	return errors.Wrap(errors.PhaseEncode, errors.KindUnsupported, err, "encode "+what)
}

// EncodeRequest serializes a Request.
func EncodeRequest(r *Request) ([]byte, error) {
	data, err := encMode.Marshal(r)
	if err != nil {
		return nil, encodeFailed("request", err)
	}
	return data, nil
}

// DecodeRequest deserializes a Request.
func DecodeRequest(data []byte) (*Request, error) {
	var r Request
	if err := decMode.Unmarshal(data, &r); err != nil {
		return nil, errors.Decode("unmarshal request", err)
	}
	return &r, nil
}

// EncodeResponse serializes a Response.
func EncodeResponse(r *Response) ([]byte, error) {
	data, err := encMode.Marshal(r)
	if err != nil {
		return nil, encodeFailed("response", err)
	}
	return data, nil
}

// DecodeResponse deserializes a Response.
func DecodeResponse(data []byte) (*Response, error) {
	var r Response
	if err := decMode.Unmarshal(data, &r); err != nil {
		return nil, errors.Decode("unmarshal response", err)
	}
	return &r, nil
}
