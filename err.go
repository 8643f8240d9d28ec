package surrealism

import "github.com/Chooks22/surrealism/pkg/constants"

var (
	ErrUnsupportedScheme  = constants.ErrUnsupportedScheme
	ErrNoValidTarget      = constants.ErrNoValidTarget
	ErrConnect            = constants.ErrConnect
	ErrInvalidCredentials = constants.ErrInvalidCredentials
	ErrNoDriversAvailable = constants.ErrNoDriversAvailable
	ErrTransportRequired  = constants.ErrTransportRequired
	ErrClosed             = constants.ErrClosed
	ErrQuery              = constants.ErrQuery
)
