package connection

import (
	"net/http"

	"github.com/Chooks22/surrealism/internal/codec"
	"github.com/Chooks22/surrealism/pkg/constants"
	"github.com/Chooks22/surrealism/pkg/logger"
)

// Config is shared by both transports.
type Config struct {
	// Codec frames RPC messages. Defaults to JSON.
	Codec codec.Codec
	// Dialer opens the RPC socket. Defaults to gorilla/websocket.
	Dialer Dialer
	Logger logger.Logger
	// HTTPClient is used by the HTTP transport.
	HTTPClient *http.Client
	// Header is sent with the WebSocket handshake.
	Header http.Header
	// Compression enables permessage-deflate on the socket.
	Compression bool
}

type Option func(*Config)

// NewConfig returns the defaults with opts applied. Dialer stays nil unless
// given; the RPC channel fills it in.
func NewConfig(opts ...Option) *Config {
	c := &Config{
		Codec:      codec.JSON{},
		Logger:     logger.Default(),
		HTTPClient: &http.Client{Timeout: constants.DefaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func WithLogger(l logger.Logger) Option {
	return func(c *Config) {
		c.Logger = l
	}
}

func WithDialer(d Dialer) Option {
	return func(c *Config) {
		c.Dialer = d
	}
}

func WithCodec(cd codec.Codec) Option {
	return func(c *Config) {
		c.Codec = cd
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Config) {
		c.HTTPClient = hc
	}
}

func WithHeader(h http.Header) Option {
	return func(c *Config) {
		c.Header = h
	}
}

func WithCompression(enabled bool) Option {
	return func(c *Config) {
		c.Compression = enabled
	}
}
