package codec_test

import (
	"testing"

	"github.com/Chooks22/surrealism/internal/codec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	ID     any              `json:"id,omitempty" cbor:"id,omitempty"`
	Result codec.RawMessage `json:"result,omitempty" cbor:"result,omitempty"`
}

func TestCodecsKeepResultRaw(t *testing.T) {
	for _, c := range []codec.Codec{codec.JSON{}, codec.NewCBOR()} {
		t.Run(c.Subprotocol(), func(t *testing.T) {
			inner, err := c.Marshal(map[string]any{"name": "tobie"})
			require.NoError(t, err)

			data, err := c.Marshal(envelope{ID: 7, Result: inner})
			require.NoError(t, err)

			var got envelope
			require.NoError(t, c.Unmarshal(data, &got))
			assert.False(t, got.Result.IsNull())

			var person map[string]any
			require.NoError(t, c.Unmarshal(got.Result, &person))
			assert.Equal(t, "tobie", person["name"])
		})
	}
}

func TestRawMessageIsNull(t *testing.T) {
	cases := map[string]struct {
		raw  codec.RawMessage
		null bool
	}{
		"empty":          {raw: nil, null: true},
		"json null":      {raw: codec.RawMessage(" null "), null: true},
		"json object":    {raw: codec.RawMessage(`{"a":1}`), null: false},
		"cbor null":      {raw: codec.RawMessage{0xf6}, null: true},
		"cbor undefined": {raw: codec.RawMessage{0xf7}, null: true},
		"cbor none":      {raw: codec.RawMessage{0xc6, 0xf6}, null: true},
		"cbor int":       {raw: codec.RawMessage{0x01}, null: false},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.null, tc.raw.IsNull())
		})
	}
}

func TestForSubprotocol(t *testing.T) {
	assert.True(t, codec.ForSubprotocol("cbor").Binary())
	assert.False(t, codec.ForSubprotocol("json").Binary())
	assert.Equal(t, codec.JSONSubprotocol, codec.ForSubprotocol("").Subprotocol())
}

func TestPeekString(t *testing.T) {
	v, ok := codec.PeekString([]byte(`{"token":"abc","nested":{"id":"x"}}`), "nested", "id")
	require.True(t, ok)
	assert.Equal(t, "x", v)

	_, ok = codec.PeekString([]byte(`{"token":null}`), "token")
	assert.False(t, ok)
}
