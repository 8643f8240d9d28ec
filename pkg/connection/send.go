package connection

import (
	"context"
	"fmt"

	"github.com/Chooks22/surrealism/internal/codec"
)

// Sender issues RPC calls and returns the raw response.
type Sender interface {
	Send(ctx context.Context, method RPCFunction, params ...any) (*RPCResponse[codec.RawMessage], error)
	GetUnmarshaler() codec.Unmarshaler
}

// Send calls method and decodes the result into res. A nil res discards the
// result.
func Send[Result any](c Sender, ctx context.Context, res *RPCResponse[Result], method RPCFunction, params ...any) error {
	rawRes, err := c.Send(ctx, method, params...)
	if err != nil {
		return err
	}

	if res == nil {
		return nil
	}

	res.ID = rawRes.ID
	res.Error = rawRes.Error

	if rawRes.Result == nil || rawRes.Result.IsNull() {
		res.Result = nil
		return nil
	}

	var r Result
	if err := c.GetUnmarshaler().Unmarshal(*rawRes.Result, &r); err != nil {
		return fmt.Errorf("Send: error unmarshaling result: %w", err)
	}
	res.Result = &r

	return nil
}

// Call is Send for callers that only want the result.
func Call[Result any](c Sender, ctx context.Context, method RPCFunction, params ...any) (*Result, error) {
	var res RPCResponse[Result]
	if err := Send(c, ctx, &res, method, params...); err != nil {
		return nil, err
	}
	return res.Result, nil
}
