package codec

import (
	"io"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

const (
	CBORSubprotocol = "cbor"
	CBORContentType = "application/cbor"
)

// CBOR encodes RPC frames as binary messages.
type CBOR struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

var _ Codec = (*CBOR)(nil)

func NewCBOR() *CBOR {
	em, err := cbor.EncOptions{
		Time:    cbor.TimeRFC3339Nano,
		TimeTag: cbor.EncTagRequired,
	}.EncMode()
	if err != nil {
		panic(err)
	}

	dm, err := cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
		TimeTagToAny:   cbor.TimeTagToTime,
	}.DecMode()
	if err != nil {
		panic(err)
	}

	return &CBOR{enc: em, dec: dm}
}

func (c *CBOR) Marshal(v any) ([]byte, error) {
	return c.enc.Marshal(v)
}

func (c *CBOR) NewEncoder(w io.Writer) Encoder {
	return c.enc.NewEncoder(w)
}

func (c *CBOR) Unmarshal(data []byte, dst any) error {
	return c.dec.Unmarshal(data, dst)
}

func (c *CBOR) NewDecoder(r io.Reader) Decoder {
	return c.dec.NewDecoder(r)
}

func (c *CBOR) Subprotocol() string { return CBORSubprotocol }

func (c *CBOR) Binary() bool { return true }

func (c *CBOR) ContentType() string { return CBORContentType }
