package surrealism

import (
	"fmt"

	httpconn "github.com/Chooks22/surrealism/pkg/connection/http"
	"github.com/Chooks22/surrealism/pkg/connection/rpc"
	"github.com/Chooks22/surrealism/pkg/constants"
)

// Kind tells which transports a DB ended up with.
type Kind int

const (
	KindHTTP Kind = iota + 1
	KindWS
	KindBoth
)

func (k Kind) String() string {
	switch k {
	case KindHTTP:
		return "http"
	case KindWS:
		return "ws"
	case KindBoth:
		return "http+ws"
	default:
		return "unknown"
	}
}

// transports is one of httpOnly, wsOnly or both.
type transports interface {
	kind() Kind
}

type httpOnly struct {
	http *httpconn.Connection
}

type wsOnly struct {
	ws *rpc.Channel
}

type both struct {
	http *httpconn.Connection
	ws   *rpc.Channel
}

func (httpOnly) kind() Kind { return KindHTTP }
func (wsOnly) kind() Kind   { return KindWS }
func (both) kind() Kind     { return KindBoth }

func newTransports(h *httpconn.Connection, ws *rpc.Channel) (transports, bool) {
	switch {
	case h != nil && ws != nil:
		return both{http: h, ws: ws}, true
	case ws != nil:
		return wsOnly{ws: ws}, true
	case h != nil:
		return httpOnly{http: h}, true
	default:
		return nil, false
	}
}

type (
	wsFunc[T any]   func(*rpc.Channel) (T, error)
	httpFunc[T any] func(*httpconn.Connection) (T, error)
)

// route runs op on the RPC channel when there is one and on HTTP otherwise.
// A nil func means the operation does not exist on that transport.
func route[T any](db *DB, op string, onWS wsFunc[T], onHTTP httpFunc[T]) (T, error) {
	var zero T
	switch t := db.t.(type) {
	case both:
		if onWS != nil {
			return onWS(t.ws)
		}
		return onHTTP(t.http)
	case wsOnly:
		if onWS == nil {
			return zero, required(op, "http")
		}
		return onWS(t.ws)
	case httpOnly:
		if onHTTP == nil {
			return zero, required(op, "ws")
		}
		return onHTTP(t.http)
	default:
		return zero, constants.ErrNoDriversAvailable
	}
}

func required(op, transport string) error {
	return fmt.Errorf("%w: %s needs the %s transport", constants.ErrTransportRequired, op, transport)
}

func (db *DB) channel() *rpc.Channel {
	switch t := db.t.(type) {
	case both:
		return t.ws
	case wsOnly:
		return t.ws
	default:
		return nil
	}
}

func (db *DB) httpConn() *httpconn.Connection {
	switch t := db.t.(type) {
	case both:
		return t.http
	case httpOnly:
		return t.http
	default:
		return nil
	}
}
