// Package live turns a LIVE SELECT into a stream of notifications.
//
// A Query is only a declaration. Every Start, Subscribe or Iterator call
// registers its own live query on the server, binding the interpolated
// values as session variables under a fresh prefix. Live queries
// re-evaluate their variables on every push, so the values have to outlive
// the LIVE statement itself.
package live

import (
	"context"
	"fmt"

	"github.com/Chooks22/surrealism/internal/codec"
	"github.com/Chooks22/surrealism/pkg/connection"
	"github.com/Chooks22/surrealism/pkg/constants"
	"github.com/Chooks22/surrealism/pkg/logger"
	"github.com/Chooks22/surrealism/pkg/surrealql"
)

// Conn is the part of the RPC channel live queries use.
type Conn interface {
	Let(ctx context.Context, key string, value any) error
	Unset(ctx context.Context, key string) error
	Query(ctx context.Context, sql string, vars map[string]any) (codec.RawMessage, error)
	Kill(ctx context.Context, liveID string) error
	Listen(liveID string, fn func(connection.Notification)) *connection.Registration
	GetUnmarshaler() codec.Unmarshaler
}

// Notification is a decoded live query push.
type Notification[T any] struct {
	ID     string
	Action connection.Action
	Result T
}

type Query[T any] struct {
	conn   Conn
	seq    *Sequence
	tmpl   surrealql.Template
	logger logger.Logger
}

// New declares a live query. seq must be shared by every live query on conn.
func New[T any](conn Conn, seq *Sequence, q surrealql.Template, log logger.Logger) *Query[T] {
	if log == nil {
		log = logger.Nop()
	}
	return &Query[T]{conn: conn, seq: seq, tmpl: q, logger: log}
}

// handle is one started live query.
type handle struct {
	id   string
	vars []string
}

// Start registers the live query and returns its id. Notifications for it
// are only received by listeners registered on the channel.
func (q *Query[T]) Start(ctx context.Context) (string, error) {
	h, err := q.start(ctx)
	if err != nil {
		return "", err
	}
	return h.id, nil
}

func (q *Query[T]) start(ctx context.Context) (*handle, error) {
	prefix := q.seq.Next()
	h := &handle{vars: make([]string, 0, len(q.tmpl.Args))}

	for i, arg := range q.tmpl.Args {
		name := surrealql.ScopedName(prefix, i)
		if err := q.conn.Let(ctx, name, arg); err != nil {
			q.unset(ctx, h)
			return nil, fmt.Errorf("let %s: %w", name, err)
		}
		h.vars = append(h.vars, name)
	}

	raw, err := q.conn.Query(ctx, "LIVE "+q.tmpl.Scoped(prefix), nil)
	if err != nil {
		q.unset(ctx, h)
		return nil, err
	}

	u := q.conn.GetUnmarshaler()
	results, err := connection.DecodeQuery[codec.RawMessage](u, raw)
	if err != nil {
		q.unset(ctx, h)
		return nil, err
	}
	if len(results) == 0 {
		q.unset(ctx, h)
		return nil, constants.ErrNoLiveID
	}

	v, err := connection.Decode[any](u, results[0].Result)
	if err != nil {
		q.unset(ctx, h)
		return nil, err
	}
	id, ok := connection.ParseLiveID(v)
	if !ok {
		q.unset(ctx, h)
		return nil, fmt.Errorf("%w: got %v", constants.ErrNoLiveID, v)
	}
	h.id = id

	q.logger.Debug("live query started", "id", id, "vars", len(h.vars))
	return h, nil
}

// release deregisters reg, kills the live query unless it already ended and
// drops its variables. Variables are removed even when the kill fails.
func (q *Query[T]) release(ctx context.Context, h *handle, reg *connection.Registration) error {
	select {
	case <-reg.Done():
		// killed elsewhere, or the channel is gone with its session
		if reg.Err() == nil {
			q.unset(ctx, h)
		}
		return nil
	default:
	}

	reg.Stop()
	err := q.conn.Kill(ctx, h.id)
	q.unset(ctx, h)
	return err
}

func (q *Query[T]) unset(ctx context.Context, h *handle) {
	for _, name := range h.vars {
		if err := q.conn.Unset(ctx, name); err != nil {
			q.logger.Debug("failed to unset live query variable", "name", name, "error", err)
		}
	}
}

func (q *Query[T]) decode(n connection.Notification) (Notification[T], error) {
	id, _ := n.LiveID()
	result, err := connection.Decode[T](q.conn.GetUnmarshaler(), n.Result)
	if err != nil {
		return Notification[T]{}, fmt.Errorf("live query %s: %w", id, err)
	}
	return Notification[T]{ID: id, Action: n.Action, Result: result}, nil
}
