package codec

import (
	"io"

	"github.com/buger/jsonparser"
	"github.com/goccy/go-json"
)

const (
	JSONSubprotocol = "json"
	JSONContentType = "application/json"
)

// JSON encodes RPC frames as text messages.
type JSON struct{}

var _ Codec = JSON{}

func (JSON) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (JSON) NewEncoder(w io.Writer) Encoder {
	return json.NewEncoder(w)
}

func (JSON) Unmarshal(data []byte, dst any) error {
	return json.Unmarshal(data, dst)
}

func (JSON) NewDecoder(r io.Reader) Decoder {
	return json.NewDecoder(r)
}

func (JSON) Subprotocol() string { return JSONSubprotocol }

func (JSON) Binary() bool { return false }

func (JSON) ContentType() string { return JSONContentType }

// PeekString returns the string at the given key path without decoding the
// whole document. It reports false when the key is missing or not a string.
func PeekString(data []byte, keys ...string) (string, bool) {
	v, err := jsonparser.GetString(data, keys...)
	if err != nil {
		return "", false
	}
	return v, true
}
