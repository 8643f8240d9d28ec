package rpc

import (
	"context"

	"github.com/Chooks22/surrealism/pkg/connection"
)

// Authenticate attaches token to the session.
func Authenticate(c connection.Sender, ctx context.Context, token string) error {
	return connection.Send[any](c, ctx, nil, connection.Authenticate, token)
}

// Invalidate drops the session's authentication.
func Invalidate(c connection.Sender, ctx context.Context) error {
	return connection.Send[any](c, ctx, nil, connection.Invalidate)
}
