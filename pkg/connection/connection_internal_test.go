package connection

import (
	"testing"

	"github.com/Chooks22/surrealism/internal/codec"
	"github.com/Chooks22/surrealism/pkg/constants"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestIDsWrapAtMax(t *testing.T) {
	bc := NewBaseConnection()
	bc.lastID = constants.MaxRequestID - 1

	first, _, err := bc.CreateResponseChannel()
	require.NoError(t, err)
	second, _, err := bc.CreateResponseChannel()
	require.NoError(t, err)

	assert.Equal(t, uint64(0), first)
	assert.Equal(t, uint64(1), second)
}

func TestRequestIDZeroRoundTrip(t *testing.T) {
	for _, c := range []codec.Codec{codec.JSON{}, codec.NewCBOR()} {
		t.Run(c.Subprotocol(), func(t *testing.T) {
			bc := NewBaseConnection()
			bc.lastID = constants.MaxRequestID - 1

			id, ch, err := bc.CreateResponseChannel()
			require.NoError(t, err)
			require.Zero(t, id)

			// id 0 is still written on the request
			out, err := c.Marshal(RPCRequest{ID: id, Method: string(Info)})
			require.NoError(t, err)
			var sent map[string]any
			require.NoError(t, c.Unmarshal(out, &sent))
			require.Contains(t, sent, "id")

			// and the response echoing it is matched back to the caller
			in, err := c.Marshal(map[string]any{"id": sent["id"], "result": "ok"})
			require.NoError(t, err)
			var res RPCResponse[codec.RawMessage]
			require.NoError(t, c.Unmarshal(in, &res))
			require.NotNil(t, res.ID)

			got, ok := ParseRequestID(res.ID)
			require.True(t, ok)
			require.True(t, bc.ResolveResponse(got, res))

			delivered := <-ch
			result, err := Decode[string](c, *delivered.Result)
			require.NoError(t, err)
			assert.Equal(t, "ok", result)
		})
	}
}
