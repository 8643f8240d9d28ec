package surrealism

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Chooks22/surrealism/pkg/connection"
	httpconn "github.com/Chooks22/surrealism/pkg/connection/http"
	"github.com/Chooks22/surrealism/pkg/connection/rpc"
	"github.com/Chooks22/surrealism/pkg/constants"
	"github.com/Chooks22/surrealism/pkg/live"
	"github.com/Chooks22/surrealism/pkg/logger"
	"golang.org/x/sync/errgroup"
)

// DB is a connection over HTTP, the RPC channel, or both.
type DB struct {
	t      transports
	target *connection.Target
	logger logger.Logger
	seq    *live.Sequence

	diagnostics []error

	mu        sync.Mutex
	namespace string
	database  string
}

// Connect resolves uri, signs in on every transport it yields and returns a
// handle over the ones that came up. A transport given explicitly must come
// up; an inferred one may fail and is left out.
func Connect(ctx context.Context, uri string, creds any, opts ...Option) (*DB, error) {
	target, err := connection.Resolve(uri)
	if err != nil {
		return nil, err
	}
	return connect(ctx, target, creds, opts)
}

// ConnectEndpoints is Connect with both endpoints given. Nothing is inferred.
func ConnectEndpoints(ctx context.Context, e connection.Endpoints, creds any, opts ...Option) (*DB, error) {
	target, err := connection.ResolveEndpoints(e)
	if err != nil {
		return nil, err
	}
	return connect(ctx, target, creds, opts)
}

// Open is Connect followed by Use.
func Open(ctx context.Context, uri string, creds any, namespace, database string, opts ...Option) (*DB, error) {
	db, err := Connect(ctx, uri, creds, opts...)
	if err != nil {
		return nil, err
	}

	if err := db.Use(ctx, namespace, database); err != nil {
		if closeErr := db.Close(ctx); closeErr != nil {
			db.logger.Debug("failed to close connection after use", "error", closeErr)
		}
		return nil, err
	}
	return db, nil
}

func connect(ctx context.Context, target *connection.Target, creds any, opts []Option) (*DB, error) {
	cfg := connection.NewConfig(opts...)
	creds = credentials(creds)

	db := &DB{
		target: target,
		logger: cfg.Logger,
		seq:    live.NewSequence(),
	}

	var (
		h  *httpconn.Connection
		ws *rpc.Channel
		mu sync.Mutex
	)

	// inferred failures are kept, explicit ones end the group
	failed := func(inference connection.Inference, transport, uri string, err error) error {
		if inference == connection.Explicit {
			return err
		}
		db.logger.Debug("inferred endpoint did not work", "transport", transport, "uri", uri, "error", err)
		mu.Lock()
		db.diagnostics = append(db.diagnostics, err)
		mu.Unlock()
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)

	if target.HasHTTP() {
		g.Go(func() error {
			c := httpconn.New(target.HTTP, cfg)
			authorization, err := c.SignIn(gctx, creds)
			if err != nil {
				err = fmt.Errorf("%w: http %s: %w", constants.ErrConnect, target.HTTP, err)
				return failed(target.HTTPInference, "http", target.HTTP, err)
			}
			c.SetAuthorization(authorization)

			mu.Lock()
			h = c
			mu.Unlock()
			return nil
		})
	}

	if target.HasWS() {
		g.Go(func() error {
			c, err := rpc.ConnectConfig(gctx, target.WS, creds, cfg)
			if err != nil {
				err = fmt.Errorf("ws %s: %w", target.WS, err)
				return failed(target.WSInference, "ws", target.WS, err)
			}

			mu.Lock()
			ws = c
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if ws != nil {
			if closeErr := ws.Close(context.WithoutCancel(ctx)); closeErr != nil {
				db.logger.Debug("failed to close channel", "error", closeErr)
			}
		}
		return nil, err
	}

	t, ok := newTransports(h, ws)
	if !ok {
		return nil, fmt.Errorf("%w: %w", constants.ErrNoDriversAvailable, errors.Join(db.diagnostics...))
	}
	db.t = t

	db.logger.Debug("connected", "transports", t.kind().String(), "target", target.String())
	return db, nil
}

// Kind reports the transports in use.
func (db *DB) Kind() Kind {
	return db.t.kind()
}

// Target is the resolved pair of endpoints the DB was built from.
func (db *DB) Target() connection.Target {
	return *db.target
}

// Diagnostics lists why inferred transports were left out.
func (db *DB) Diagnostics() []error {
	return append([]error(nil), db.diagnostics...)
}

// Use switches namespace and database. HTTP sends them with every request;
// the RPC channel is told right away.
func (db *DB) Use(ctx context.Context, namespace, database string) error {
	db.mu.Lock()
	db.namespace = namespace
	db.database = database
	db.mu.Unlock()

	if h := db.httpConn(); h != nil {
		h.Use(namespace, database)
	}
	if ws := db.channel(); ws != nil {
		return ws.Use(ctx, namespace, database)
	}
	return nil
}

// Session returns the namespace and database last passed to Use.
func (db *DB) Session() (namespace, database string) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.namespace, db.database
}

// Close closes the RPC channel. HTTP holds nothing open.
func (db *DB) Close(ctx context.Context) error {
	if ws := db.channel(); ws != nil {
		return ws.Close(ctx)
	}
	return nil
}
