package codec

import "io"

type Encoder interface {
	Encode(v any) error
}

type Decoder interface {
	Decode(v any) error
}

type Marshaler interface {
	Marshal(v any) ([]byte, error)
	NewEncoder(w io.Writer) Encoder
}

type Unmarshaler interface {
	Unmarshal(data []byte, dst any) error
	NewDecoder(r io.Reader) Decoder
}

// Codec is a wire format the RPC channel can speak.
//
// Subprotocol is offered during the WebSocket handshake, and Binary reports
// whether frames must be sent as binary rather than text messages.
type Codec interface {
	Marshaler
	Unmarshaler
	Subprotocol() string
	Binary() bool
	ContentType() string
}

// ForSubprotocol returns the codec negotiated by name, falling back to JSON.
func ForSubprotocol(name string) Codec {
	if name == CBORSubprotocol {
		return NewCBOR()
	}
	return JSON{}
}
