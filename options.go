package surrealism

import (
	"net/http"

	"github.com/Chooks22/surrealism/internal/codec"
	"github.com/Chooks22/surrealism/pkg/connection"
	"github.com/Chooks22/surrealism/pkg/logger"
)

type Option = connection.Option

func WithLogger(l logger.Logger) Option {
	return connection.WithLogger(l)
}

// WithDialer replaces the WebSocket implementation, see the gorillaws and
// gws packages.
func WithDialer(d connection.Dialer) Option {
	return connection.WithDialer(d)
}

// WithCBOR makes the RPC channel speak CBOR in binary frames.
func WithCBOR() Option {
	return connection.WithCodec(codec.NewCBOR())
}

// WithJSON makes the RPC channel speak JSON in text frames. This is the
// default.
func WithJSON() Option {
	return connection.WithCodec(codec.JSON{})
}

func WithHTTPClient(c *http.Client) Option {
	return connection.WithHTTPClient(c)
}

// WithHeader adds headers to the WebSocket handshake.
func WithHeader(h http.Header) Option {
	return connection.WithHeader(h)
}

func WithCompression(enabled bool) Option {
	return connection.WithCompression(enabled)
}
