package rpc

import (
	"context"

	"github.com/Chooks22/surrealism/internal/codec"
	"github.com/Chooks22/surrealism/pkg/connection"
)

func (c *Channel) Use(ctx context.Context, namespace, database string) error {
	return connection.Send[any](c, ctx, nil, connection.Use, namespace, database)
}

func (c *Channel) Info(ctx context.Context) (codec.RawMessage, error) {
	return c.call(ctx, connection.Info)
}

func (c *Channel) SignUp(ctx context.Context, authData any) (string, error) {
	return SignUp(c, ctx, authData)
}

func (c *Channel) SignIn(ctx context.Context, authData any) (string, error) {
	return SignIn(c, ctx, authData)
}

func (c *Channel) Authenticate(ctx context.Context, token string) error {
	return Authenticate(c, ctx, token)
}

func (c *Channel) Invalidate(ctx context.Context) error {
	return Invalidate(c, ctx)
}

func (c *Channel) Let(ctx context.Context, key string, value any) error {
	return connection.Send[any](c, ctx, nil, connection.Let, key, value)
}

func (c *Channel) Unset(ctx context.Context, key string) error {
	return connection.Send[any](c, ctx, nil, connection.Unset, key)
}

// Query runs sql with vars bound. The result is the list of statement
// results; see connection.DecodeQuery.
func (c *Channel) Query(ctx context.Context, sql string, vars map[string]any) (codec.RawMessage, error) {
	if len(vars) == 0 {
		return c.call(ctx, connection.Query, sql)
	}
	return c.call(ctx, connection.Query, sql, vars)
}

// Select reads a table or a single record, where thing is "table" or
// "table:id".
func (c *Channel) Select(ctx context.Context, thing string) (codec.RawMessage, error) {
	return c.call(ctx, connection.Select, thing)
}

func (c *Channel) Create(ctx context.Context, thing string, data any) (codec.RawMessage, error) {
	return c.call(ctx, connection.Create, thing, data)
}

func (c *Channel) Update(ctx context.Context, thing string, data any) (codec.RawMessage, error) {
	return c.call(ctx, connection.Update, thing, data)
}

func (c *Channel) Merge(ctx context.Context, thing string, data any) (codec.RawMessage, error) {
	return c.call(ctx, connection.Merge, thing, data)
}

// Patch applies JSON Patch operations and returns the diffs per record.
func (c *Channel) Patch(ctx context.Context, thing string, patches any) (codec.RawMessage, error) {
	return c.call(ctx, connection.Patch, thing, patches)
}

func (c *Channel) Delete(ctx context.Context, thing string) (codec.RawMessage, error) {
	return c.call(ctx, connection.Delete, thing)
}

// Kill stops the live query liveID on the server and ends every local
// registration for it.
func (c *Channel) Kill(ctx context.Context, liveID string) error {
	defer c.EndListeners(liveID)
	return connection.Send[any](c, ctx, nil, connection.Kill, liveID)
}
