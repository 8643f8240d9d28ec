package http

import (
	"context"
	"net/http"
	"net/url"

	"github.com/Chooks22/surrealism/internal/codec"
)

// Key addresses the /key/:table resource. Every method returns the raw
// statement list, see connection.DecodeQuery.
type Key struct {
	conn  *Connection
	table string
}

func (h *Connection) Key(table string) *Key {
	return &Key{conn: h, table: table}
}

func (k *Key) path(id ...string) string {
	p := "/key/" + url.PathEscape(k.table)
	if len(id) > 0 {
		p += "/" + url.PathEscape(id[0])
	}
	return p
}

// Get selects every record of the table.
func (k *Key) Get(ctx context.Context) (codec.RawMessage, error) {
	return k.conn.do(ctx, http.MethodGet, k.path(), nil, nil)
}

func (k *Key) GetID(ctx context.Context, id string) (codec.RawMessage, error) {
	return k.conn.do(ctx, http.MethodGet, k.path(id), nil, nil)
}

// Post creates records with generated ids.
func (k *Key) Post(ctx context.Context, data any) (codec.RawMessage, error) {
	body, err := k.conn.jsonBody(data)
	if err != nil {
		return nil, err
	}
	return k.conn.do(ctx, http.MethodPost, k.path(), nil, body)
}

func (k *Key) PostID(ctx context.Context, id string, data any) (codec.RawMessage, error) {
	body, err := k.conn.jsonBody(data)
	if err != nil {
		return nil, err
	}
	return k.conn.do(ctx, http.MethodPost, k.path(id), nil, body)
}

// Put replaces a record.
func (k *Key) Put(ctx context.Context, id string, data any) (codec.RawMessage, error) {
	body, err := k.conn.jsonBody(data)
	if err != nil {
		return nil, err
	}
	return k.conn.do(ctx, http.MethodPut, k.path(id), nil, body)
}

// Patch merges data into a record.
func (k *Key) Patch(ctx context.Context, id string, data any) (codec.RawMessage, error) {
	body, err := k.conn.jsonBody(data)
	if err != nil {
		return nil, err
	}
	return k.conn.do(ctx, http.MethodPatch, k.path(id), nil, body)
}

// Delete removes every record of the table.
func (k *Key) Delete(ctx context.Context) (codec.RawMessage, error) {
	return k.conn.do(ctx, http.MethodDelete, k.path(), nil, nil)
}

func (k *Key) DeleteID(ctx context.Context, id string) (codec.RawMessage, error) {
	return k.conn.do(ctx, http.MethodDelete, k.path(id), nil, nil)
}
