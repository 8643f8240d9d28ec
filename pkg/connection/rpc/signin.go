package rpc

import (
	"context"

	"github.com/Chooks22/surrealism/pkg/connection"
)

// SignIn returns the session token. Root users signing in without scope get
// a null token back, which is returned as "".
func SignIn(c connection.Sender, ctx context.Context, authData any) (string, error) {
	token, err := connection.Call[string](c, ctx, connection.SignIn, authData)
	if err != nil || token == nil {
		return "", err
	}
	return *token, nil
}
