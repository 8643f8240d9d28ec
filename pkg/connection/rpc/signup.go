package rpc

import (
	"context"

	"github.com/Chooks22/surrealism/pkg/connection"
)

func SignUp(c connection.Sender, ctx context.Context, authData any) (string, error) {
	token, err := connection.Call[string](c, ctx, connection.SignUp, authData)
	if err != nil || token == nil {
		return "", err
	}
	return *token, nil
}
