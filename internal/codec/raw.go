package codec

import "bytes"

// RawMessage holds an encoded value verbatim so that decoding of the result
// of an RPC response can be deferred until the caller's type is known.
//
// It satisfies both the JSON and CBOR (un)marshaler interfaces, so the same
// envelope types work with either codec.
type RawMessage []byte

var (
	jsonNull = []byte("null")

	cborNull      = []byte{0xf6}
	cborUndefined = []byte{0xf7}
	// SurrealDB encodes NONE as tag 6 wrapping null.
	cborNone = []byte{0xc6, 0xf6}
)

func (m RawMessage) MarshalJSON() ([]byte, error) {
	if len(m) == 0 {
		return jsonNull, nil
	}
	return m, nil
}

func (m *RawMessage) UnmarshalJSON(data []byte) error {
	*m = append((*m)[0:0], data...)
	return nil
}

func (m RawMessage) MarshalCBOR() ([]byte, error) {
	if len(m) == 0 {
		return cborNull, nil
	}
	return m, nil
}

func (m *RawMessage) UnmarshalCBOR(data []byte) error {
	*m = append((*m)[0:0], data...)
	return nil
}

// IsNull reports whether the message is empty or encodes null/none in
// either wire format.
func (m RawMessage) IsNull() bool {
	trimmed := bytes.TrimSpace(m)
	if len(trimmed) == 0 {
		return true
	}

	return bytes.Equal(trimmed, jsonNull) ||
		bytes.Equal(m, cborNull) ||
		bytes.Equal(m, cborUndefined) ||
		bytes.Equal(m, cborNone)
}
