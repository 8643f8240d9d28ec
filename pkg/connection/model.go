package connection

import (
	"fmt"
	"strconv"

	"github.com/Chooks22/surrealism/internal/codec"
	"github.com/fxamacker/cbor/v2"
	"github.com/goccy/go-json"
	"github.com/gofrs/uuid"
)

// RPCError is an error returned by the server over the RPC channel.
type RPCError struct {
	Code        int    `json:"code" cbor:"code"`
	Message     string `json:"message,omitempty" cbor:"message,omitempty"`
	Description string `json:"description,omitempty" cbor:"description,omitempty"`
}

func (r *RPCError) Error() string {
	if r.Description != "" {
		return r.Description
	}
	return r.Message
}

func (r *RPCError) Is(target error) bool {
	if target == nil {
		return r == nil
	}

	_, ok := target.(*RPCError)
	return ok
}

// HTTPError is a non-2xx response from the HTTP transport.
type HTTPError struct {
	StatusCode  int    `json:"code"`
	Details     string `json:"details,omitempty"`
	Description string `json:"description,omitempty"`
	Information string `json:"information,omitempty"`
}

func (e *HTTPError) Error() string {
	msg := e.Information
	if msg == "" {
		msg = e.Description
	}
	if msg == "" {
		msg = e.Details
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, msg)
}

// RPCRequest is an outgoing frame.
type RPCRequest struct {
	ID     uint64 `json:"id" cbor:"id"`
	Method string `json:"method" cbor:"method"`
	Params []any  `json:"params,omitempty" cbor:"params,omitempty"`
}

// RPCResponse is an incoming frame. ID is nil for live notifications and is
// always nil for responses read from the HTTP transport.
type RPCResponse[T any] struct {
	ID     any       `json:"id,omitempty" cbor:"id,omitempty"`
	Error  *RPCError `json:"error,omitempty" cbor:"error,omitempty"`
	Result *T        `json:"result,omitempty" cbor:"result,omitempty"`
}

type RPCFunction string

const (
	Use          RPCFunction = "use"
	Info         RPCFunction = "info"
	SignUp       RPCFunction = "signup"
	SignIn       RPCFunction = "signin"
	Authenticate RPCFunction = "authenticate"
	Invalidate   RPCFunction = "invalidate"
	Let          RPCFunction = "let"
	Unset        RPCFunction = "unset"
	Kill         RPCFunction = "kill"
	Query        RPCFunction = "query"
	Select       RPCFunction = "select"
	Create       RPCFunction = "create"
	Update       RPCFunction = "update"
	Merge        RPCFunction = "merge"
	Patch        RPCFunction = "patch"
	Delete       RPCFunction = "delete"
)

type Action string

const (
	CreateAction Action = "CREATE"
	UpdateAction Action = "UPDATE"
	DeleteAction Action = "DELETE"
	KilledAction Action = "KILLED"
)

// Notification is a live query push. Result is left encoded so that
// consumers decode it into their own type.
type Notification struct {
	ID     any              `json:"id" cbor:"id"`
	Action Action           `json:"action" cbor:"action"`
	Result codec.RawMessage `json:"result" cbor:"result"`
}

// LiveID returns the subscription the notification belongs to.
func (n *Notification) LiveID() (string, bool) {
	return ParseLiveID(n.ID)
}

// QueryResult is one statement's outcome in a query response.
type QueryResult[T any] struct {
	Status string `json:"status" cbor:"status"`
	Time   string `json:"time" cbor:"time"`
	Result T      `json:"result" cbor:"result"`
}

// ParseRequestID normalizes a decoded request id. JSON numbers decode as
// float64 and CBOR integers as uint64 or int64.
func ParseRequestID(v any) (uint64, bool) {
	switch id := v.(type) {
	case uint64:
		return id, true
	case int64:
		if id < 0 {
			return 0, false
		}
		return uint64(id), true
	case float64:
		if id < 0 || id != float64(uint64(id)) {
			return 0, false
		}
		return uint64(id), true
	case json.Number:
		n, err := strconv.ParseUint(string(id), 10, 64)
		return n, err == nil
	case string:
		n, err := strconv.ParseUint(id, 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

// ParseLiveID renders a live query id as a string. Servers speaking CBOR send
// it as a binary UUID.
func ParseLiveID(v any) (string, bool) {
	switch id := v.(type) {
	case string:
		return id, id != ""
	case []byte:
		return uuidString(id)
	case cbor.Tag:
		b, ok := id.Content.([]byte)
		if !ok {
			return "", false
		}
		return uuidString(b)
	case uuid.UUID:
		return id.String(), true
	default:
		return "", false
	}
}

func uuidString(b []byte) (string, bool) {
	u, err := uuid.FromBytes(b)
	if err != nil {
		return "", false
	}
	return u.String(), true
}
