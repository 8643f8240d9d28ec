package surrealism

import (
	"context"
	"io"
	"net/http"

	"github.com/Chooks22/surrealism/pkg/connection"
	httpconn "github.com/Chooks22/surrealism/pkg/connection/http"
	"github.com/Chooks22/surrealism/pkg/connection/rpc"
)

// Info returns the record of the signed-in scope user.
func (db *DB) Info(ctx context.Context) (map[string]any, error) {
	return route(db, "info",
		func(ws *rpc.Channel) (map[string]any, error) {
			raw, err := ws.Info(ctx)
			if err != nil {
				return nil, err
			}
			return connection.Decode[map[string]any](ws.GetUnmarshaler(), raw)
		},
		nil,
	)
}

// Let binds a session variable on the RPC channel.
func (db *DB) Let(ctx context.Context, key string, value any) error {
	_, err := route(db, "let",
		func(ws *rpc.Channel) (struct{}, error) {
			return struct{}{}, ws.Let(ctx, key, value)
		},
		nil,
	)
	return err
}

func (db *DB) Unset(ctx context.Context, key string) error {
	_, err := route(db, "unset",
		func(ws *rpc.Channel) (struct{}, error) {
			return struct{}{}, ws.Unset(ctx, key)
		},
		nil,
	)
	return err
}

// Kill stops a live query started on this connection.
func (db *DB) Kill(ctx context.Context, liveID string) error {
	_, err := route(db, "kill",
		func(ws *rpc.Channel) (struct{}, error) {
			return struct{}{}, ws.Kill(ctx, liveID)
		},
		nil,
	)
	return err
}

// SignIn signs in again on every transport.
func (db *DB) SignIn(ctx context.Context, creds any) error {
	creds = credentials(creds)
	if ws := db.channel(); ws != nil {
		if _, err := ws.SignIn(ctx, creds); err != nil {
			return err
		}
	}
	if h := db.httpConn(); h != nil {
		authorization, err := h.SignIn(ctx, creds)
		if err != nil {
			return err
		}
		h.SetAuthorization(authorization)
	}
	return nil
}

// SignUp registers a scope user and returns its token. The session is not
// switched to the new user, see Authenticate.
func (db *DB) SignUp(ctx context.Context, data any) (string, error) {
	data = credentials(data)
	return route(db, "signup",
		func(ws *rpc.Channel) (string, error) {
			return ws.SignUp(ctx, data)
		},
		func(h *httpconn.Connection) (string, error) {
			return h.SignUp(ctx, data)
		},
	)
}

// Authenticate switches every transport to token.
func (db *DB) Authenticate(ctx context.Context, token string) error {
	if ws := db.channel(); ws != nil {
		if err := ws.Authenticate(ctx, token); err != nil {
			return err
		}
	}
	if h := db.httpConn(); h != nil {
		h.SetAuthorization("Bearer " + token)
	}
	return nil
}

// Invalidate drops the authentication of every transport.
func (db *DB) Invalidate(ctx context.Context) error {
	if ws := db.channel(); ws != nil {
		if err := ws.Invalidate(ctx); err != nil {
			return err
		}
	}
	if h := db.httpConn(); h != nil {
		h.SetAuthorization("")
	}
	return nil
}

// Health reports whether the server answers /health with 200.
func (db *DB) Health(ctx context.Context) (bool, error) {
	return route(db, "health",
		nil,
		func(h *httpconn.Connection) (bool, error) {
			code, err := h.Health(ctx)
			return code == http.StatusOK, err
		},
	)
}

// Status reports whether the server answers /status with 200.
func (db *DB) Status(ctx context.Context) (bool, error) {
	return route(db, "status",
		nil,
		func(h *httpconn.Connection) (bool, error) {
			code, err := h.Status(ctx)
			return code == http.StatusOK, err
		},
	)
}

func (db *DB) Version(ctx context.Context) (string, error) {
	return route(db, "version",
		nil,
		func(h *httpconn.Connection) (string, error) {
			return h.Version(ctx)
		},
	)
}

// Export streams a dump of the current database. The caller closes it.
func (db *DB) Export(ctx context.Context) (io.ReadCloser, error) {
	return route(db, "export",
		nil,
		func(h *httpconn.Connection) (io.ReadCloser, error) {
			return h.Export(ctx)
		},
	)
}

func (db *DB) Import(ctx context.Context, r io.Reader) error {
	_, err := route(db, "import",
		nil,
		func(h *httpconn.Connection) (struct{}, error) {
			_, err := h.Import(ctx, r)
			return struct{}{}, err
		},
	)
	return err
}
