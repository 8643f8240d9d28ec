package connection

import (
	"context"
	"net/http"
)

// Handler receives socket events. OnMessage is called from the socket's
// read goroutine, one frame at a time, in arrival order. OnClose is called
// once when the read side ends.
type Handler interface {
	OnMessage(data []byte)
	OnClose(err error)
}

// Socket is an open WebSocket connection.
type Socket interface {
	// Write sends one frame, as binary or text according to the dial options.
	Write(data []byte) error
	// Close sends a close frame, then waits for the peer to acknowledge it
	// or for ctx to end before tearing down the connection.
	Close(ctx context.Context) error
	// Subprotocol reports what the server agreed to.
	Subprotocol() string
}

type DialOptions struct {
	Subprotocols []string
	Binary       bool
	Header       http.Header
	Compression  bool
}

// Dialer opens sockets. Dial returns once the connection is open.
type Dialer interface {
	Dial(ctx context.Context, uri string, h Handler, opts DialOptions) (Socket, error)
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context, uri string, h Handler, opts DialOptions) (Socket, error)

func (f DialerFunc) Dial(ctx context.Context, uri string, h Handler, opts DialOptions) (Socket, error) {
	return f(ctx, uri, h, opts)
}
