package surrealism

import (
	"context"

	"github.com/Chooks22/surrealism/pkg/connection"
	httpconn "github.com/Chooks22/surrealism/pkg/connection/http"
	"github.com/Chooks22/surrealism/pkg/connection/rpc"
	"github.com/Chooks22/surrealism/pkg/live"
	"github.com/Chooks22/surrealism/pkg/surrealql"
)

// SQL runs q and decodes every statement result into T. Values of q are
// sent as a variables map over the RPC channel and as URL query parameters
// over HTTP. A failed statement is reported as ErrQuery.
func SQL[T any](ctx context.Context, db *DB, q surrealql.Template) ([]connection.QueryResult[T], error) {
	return route(db, "sql",
		func(ws *rpc.Channel) ([]connection.QueryResult[T], error) {
			sql, vars := q.Query()
			raw, err := ws.Query(ctx, sql, vars)
			if err != nil {
				return nil, err
			}
			return connection.DecodeQuery[T](ws.GetUnmarshaler(), raw)
		},
		func(h *httpconn.Connection) ([]connection.QueryResult[T], error) {
			sql, args, err := q.QueryArgs()
			if err != nil {
				return nil, err
			}
			raw, err := h.SQL(ctx, sql, args)
			if err != nil {
				return nil, err
			}
			return connection.DecodeQuery[T](h.GetUnmarshaler(), raw)
		},
	)
}

// Live declares a live query on the RPC channel. Nothing is sent until the
// query is started, subscribed to or iterated.
func Live[T any](db *DB, q surrealql.Template) (*live.Query[T], error) {
	return route(db, "live",
		func(ws *rpc.Channel) (*live.Query[T], error) {
			return live.New[T](ws, db.seq, q, db.logger), nil
		},
		nil,
	)
}

var _ live.Conn = (*rpc.Channel)(nil)
