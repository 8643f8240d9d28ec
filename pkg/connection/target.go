package connection

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/Chooks22/surrealism/pkg/constants"
)

// Inference records how an endpoint of a Target came to be.
type Inference int

const (
	// Absent means no endpoint exists for the transport.
	Absent Inference = iota
	// Explicit endpoints were supplied by the caller. Failures on them are fatal.
	Explicit
	// Inferred endpoints were derived from the other transport's URI.
	// Failures on them are only diagnostics.
	Inferred
)

func (i Inference) String() string {
	switch i {
	case Explicit:
		return "explicit"
	case Inferred:
		return "inferred"
	default:
		return "absent"
	}
}

// Endpoints names the HTTP and WebSocket endpoints separately.
// Empty fields are left absent.
type Endpoints struct {
	HTTP string `yaml:"http"`
	WS   string `yaml:"ws"`
}

// Target is the outcome of endpoint resolution.
type Target struct {
	HTTP string
	WS   string

	HTTPInference Inference
	WSInference   Inference
}

func (t *Target) HasHTTP() bool {
	return t.HTTPInference != Absent
}

func (t *Target) HasWS() bool {
	return t.WSInference != Absent
}

func (t *Target) String() string {
	return fmt.Sprintf("http=%q (%s) ws=%q (%s)", t.HTTP, t.HTTPInference, t.WS, t.WSInference)
}

// Resolve derives both endpoints from a single connection URI.
//
// An http(s) URI yields ws(s) at the same path with "rpc" appended, and a
// ws(s) URI yields http(s) with a trailing "rpc" removed. The supplied side
// is explicit and the derived side inferred.
func Resolve(uri string) (*Target, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", constants.ErrUnsupportedScheme, uri, err)
	}

	switch u.Scheme {
	case constants.HTTPScheme, constants.HTTPSecureScheme:
		ws := *u
		ws.Scheme = constants.WebsocketScheme
		if u.Scheme == constants.HTTPSecureScheme {
			ws.Scheme = constants.WebsocketSecureScheme
		}
		ws.Path = joinRPC(u.Path)
		ws.RawPath = ""

		return &Target{
			HTTP:          uri,
			WS:            ws.String(),
			HTTPInference: Explicit,
			WSInference:   Inferred,
		}, nil
	case constants.WebsocketScheme, constants.WebsocketSecureScheme:
		h := *u
		h.Scheme = constants.HTTPScheme
		if u.Scheme == constants.WebsocketSecureScheme {
			h.Scheme = constants.HTTPSecureScheme
		}
		h.Path = strings.TrimSuffix(u.Path, constants.RPCPath)
		h.RawPath = ""

		return &Target{
			HTTP:          h.String(),
			WS:            uri,
			HTTPInference: Inferred,
			WSInference:   Explicit,
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", constants.ErrUnsupportedScheme, uri)
	}
}

// ResolveEndpoints validates separately supplied endpoints. Nothing is
// inferred across them.
func ResolveEndpoints(e Endpoints) (*Target, error) {
	t := new(Target)

	if e.HTTP != "" {
		if !hasScheme(e.HTTP, constants.HTTPScheme, constants.HTTPSecureScheme) {
			return nil, fmt.Errorf("%w: http endpoint %q", constants.ErrUnsupportedScheme, e.HTTP)
		}
		t.HTTP = e.HTTP
		t.HTTPInference = Explicit
	}

	if e.WS != "" {
		if !hasScheme(e.WS, constants.WebsocketScheme, constants.WebsocketSecureScheme) {
			return nil, fmt.Errorf("%w: ws endpoint %q", constants.ErrUnsupportedScheme, e.WS)
		}
		t.WS = e.WS
		t.WSInference = Explicit
	}

	if !t.HasHTTP() && !t.HasWS() {
		return nil, constants.ErrNoValidTarget
	}

	return t, nil
}

func joinRPC(path string) string {
	if strings.HasSuffix(path, "/") {
		return path + constants.RPCPath
	}
	return path + "/" + constants.RPCPath
}

func hasScheme(uri string, schemes ...string) bool {
	u, err := url.Parse(uri)
	if err != nil {
		return false
	}
	for _, s := range schemes {
		if u.Scheme == s {
			return true
		}
	}
	return false
}
