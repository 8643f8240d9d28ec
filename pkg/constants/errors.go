package constants

import "errors"

// Resolution and construction errors
var (
	ErrUnsupportedScheme  = errors.New("scheme not supported")
	ErrNoValidTarget      = errors.New("no valid connection uri found")
	ErrConnect            = errors.New("could not connect")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNoDriversAvailable = errors.New("can not initialize client without any drivers")
)

// Per-call errors
var (
	ErrTransportRequired = errors.New("method requires a driver that is not available")
	ErrClosed            = errors.New("connection closed")
	ErrIDInUse           = errors.New("id already in use")
	ErrQuery             = errors.New("error occurred processing the SurrealDB query")
	ErrNoLiveID          = errors.New("live query did not return an id")
	ErrIteratorConsumed  = errors.New("live iterator already consumed")
	ErrNoMarshaler       = errors.New("marshaler is not set")
)

// Query construction errors
var (
	ErrTemplateArity = errors.New("template needs exactly one more part than args")
)
