package constants

import "time"

const (
	HTTPScheme            = "http"
	HTTPSecureScheme      = "https"
	WebsocketScheme       = "ws"
	WebsocketSecureScheme = "wss"

	// RPCPath is the path segment the RPC endpoint lives under.
	RPCPath = "rpc"
)

const (
	// MaxRequestID is the bound request identifiers wrap at.
	// It matches the largest integer a JSON number can carry without loss.
	MaxRequestID uint64 = 1<<53 - 1

	// CloseMessageCode identifier the message id for a close request
	CloseMessageCode = 1000

	// DefaultHTTPTimeout applies to the HTTP transport only.
	// The RPC channel never times out on its own; use context.WithTimeout.
	DefaultHTTPTimeout = 10 * time.Second
)

const (
	// LiveVarSeparator joins a live query prefix and the placeholder name.
	LiveVarSeparator = "__"
)
