package surrealism

import (
	"context"

	"github.com/Chooks22/surrealism/internal/codec"
	"github.com/Chooks22/surrealism/pkg/connection"
	httpconn "github.com/Chooks22/surrealism/pkg/connection/http"
	"github.com/Chooks22/surrealism/pkg/connection/rpc"
)

// JSONPatch is one RFC 6902 operation.
type JSONPatch struct {
	Op    string `json:"op" cbor:"op"`
	Path  string `json:"path" cbor:"path"`
	From  string `json:"from,omitempty" cbor:"from,omitempty"`
	Value any    `json:"value,omitempty" cbor:"value,omitempty"`
}

func thing(table, id string) string {
	return table + ":" + id
}

// firstResult unwraps the HTTP envelope down to the first statement result.
func firstResult(u codec.Unmarshaler, raw codec.RawMessage) (codec.RawMessage, error) {
	results, err := connection.DecodeQuery[codec.RawMessage](u, raw)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	return results[0].Result, nil
}

func wsRecord[T any](call func(*rpc.Channel) (codec.RawMessage, error)) wsFunc[*T] {
	return func(ws *rpc.Channel) (*T, error) {
		raw, err := call(ws)
		if err != nil {
			return nil, err
		}
		return connection.DecodeRecord[T](ws.GetUnmarshaler(), raw)
	}
}

func wsRecords[T any](call func(*rpc.Channel) (codec.RawMessage, error)) wsFunc[[]T] {
	return func(ws *rpc.Channel) ([]T, error) {
		raw, err := call(ws)
		if err != nil {
			return nil, err
		}
		return connection.Decode[[]T](ws.GetUnmarshaler(), raw)
	}
}

func httpRecord[T any](call func(*httpconn.Connection) (codec.RawMessage, error)) httpFunc[*T] {
	return func(h *httpconn.Connection) (*T, error) {
		raw, err := call(h)
		if err != nil {
			return nil, err
		}
		res, err := firstResult(h.GetUnmarshaler(), raw)
		if err != nil {
			return nil, err
		}
		return connection.DecodeRecord[T](h.GetUnmarshaler(), res)
	}
}

func httpRecords[T any](call func(*httpconn.Connection) (codec.RawMessage, error)) httpFunc[[]T] {
	return func(h *httpconn.Connection) ([]T, error) {
		raw, err := call(h)
		if err != nil {
			return nil, err
		}
		res, err := firstResult(h.GetUnmarshaler(), raw)
		if err != nil {
			return nil, err
		}
		return connection.Decode[[]T](h.GetUnmarshaler(), res)
	}
}

// Get selects table:id. A missing record is nil without an error.
func Get[T any](ctx context.Context, db *DB, table, id string) (*T, error) {
	return route(db, "get",
		wsRecord[T](func(ws *rpc.Channel) (codec.RawMessage, error) {
			return ws.Select(ctx, thing(table, id))
		}),
		httpRecord[T](func(h *httpconn.Connection) (codec.RawMessage, error) {
			return h.Key(table).GetID(ctx, id)
		}),
	)
}

// GetAll selects every record of table.
func GetAll[T any](ctx context.Context, db *DB, table string) ([]T, error) {
	return route(db, "get",
		wsRecords[T](func(ws *rpc.Channel) (codec.RawMessage, error) {
			return ws.Select(ctx, table)
		}),
		httpRecords[T](func(h *httpconn.Connection) (codec.RawMessage, error) {
			return h.Key(table).Get(ctx)
		}),
	)
}

// Create inserts data into table under a generated id.
func Create[T any](ctx context.Context, db *DB, table string, data any) (*T, error) {
	return route(db, "create",
		wsRecord[T](func(ws *rpc.Channel) (codec.RawMessage, error) {
			return ws.Create(ctx, table, data)
		}),
		httpRecord[T](func(h *httpconn.Connection) (codec.RawMessage, error) {
			return h.Key(table).Post(ctx, data)
		}),
	)
}

func CreateWithID[T any](ctx context.Context, db *DB, table, id string, data any) (*T, error) {
	return route(db, "create",
		wsRecord[T](func(ws *rpc.Channel) (codec.RawMessage, error) {
			return ws.Create(ctx, thing(table, id), data)
		}),
		httpRecord[T](func(h *httpconn.Connection) (codec.RawMessage, error) {
			return h.Key(table).PostID(ctx, id, data)
		}),
	)
}

// Update replaces the content of table:id with data.
func Update[T any](ctx context.Context, db *DB, table, id string, data any) (*T, error) {
	return route(db, "update",
		wsRecord[T](func(ws *rpc.Channel) (codec.RawMessage, error) {
			return ws.Update(ctx, thing(table, id), data)
		}),
		httpRecord[T](func(h *httpconn.Connection) (codec.RawMessage, error) {
			return h.Key(table).Put(ctx, id, data)
		}),
	)
}

// Mutate merges data into table:id through HTTP PATCH. The RPC channel has
// no equivalent, so this needs the HTTP transport even when both are up.
func Mutate[T any](ctx context.Context, db *DB, table, id string, data any) (*T, error) {
	return route(db, "mutate",
		nil,
		httpRecord[T](func(h *httpconn.Connection) (codec.RawMessage, error) {
			return h.Key(table).Patch(ctx, id, data)
		}),
	)
}

// Merge merges data into table:id over the RPC channel.
func Merge[T any](ctx context.Context, db *DB, table, id string, data any) (*T, error) {
	return route(db, "merge",
		wsRecord[T](func(ws *rpc.Channel) (codec.RawMessage, error) {
			return ws.Merge(ctx, thing(table, id), data)
		}),
		nil,
	)
}

// Patch applies patches to every record of table. T receives what the
// server answers for each record.
func Patch[T any](ctx context.Context, db *DB, table string, patches []JSONPatch) ([]T, error) {
	return route(db, "patch",
		wsRecords[T](func(ws *rpc.Channel) (codec.RawMessage, error) {
			return ws.Patch(ctx, table, patches)
		}),
		nil,
	)
}

// PatchRecord applies patches to table:id.
func PatchRecord[T any](ctx context.Context, db *DB, table, id string, patches []JSONPatch) (*T, error) {
	return route(db, "patch",
		wsRecord[T](func(ws *rpc.Channel) (codec.RawMessage, error) {
			return ws.Patch(ctx, thing(table, id), patches)
		}),
		nil,
	)
}

// Delete removes table:id and returns it.
func Delete[T any](ctx context.Context, db *DB, table, id string) (*T, error) {
	return route(db, "delete",
		wsRecord[T](func(ws *rpc.Channel) (codec.RawMessage, error) {
			return ws.Delete(ctx, thing(table, id))
		}),
		httpRecord[T](func(h *httpconn.Connection) (codec.RawMessage, error) {
			return h.Key(table).DeleteID(ctx, id)
		}),
	)
}

// DeleteAll empties table and returns what was removed.
func DeleteAll[T any](ctx context.Context, db *DB, table string) ([]T, error) {
	return route(db, "delete",
		wsRecords[T](func(ws *rpc.Channel) (codec.RawMessage, error) {
			return ws.Delete(ctx, table)
		}),
		httpRecords[T](func(h *httpconn.Connection) (codec.RawMessage, error) {
			return h.Key(table).Delete(ctx)
		}),
	)
}
