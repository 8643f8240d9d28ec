// Package fakesdb provides a fake SurrealDB server for tests. It serves the
// HTTP interface with gorilla/mux and the RPC protocol on /rpc with gws, in
// JSON or CBOR depending on the subprotocol the client asks for.
//
// Records live in memory. Queries are not parsed: LIVE SELECT statements
// register live queries on the table they name, and anything else is
// answered by QueryHandler.
//
// To flexibly inject failures, you can configure stub responses that match
// specific RPC methods and parameters, along with failure configurations
// that specify how it fails (e.g., delays, invalid responses, closed
// connections).
package fakesdb

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/Chooks22/surrealism/pkg/connection"
	"github.com/gorilla/mux"
	"github.com/lxzan/gws"
)

// RequestMatcher defines criteria for matching incoming RPC requests.
type RequestMatcher struct {
	Method string
	// Matcher narrows the match by parameters. Nil matches any.
	Matcher func(params []any) bool
}

// StubResponse defines a pre-configured RPC response for matching requests.
type StubResponse struct {
	Matcher  RequestMatcher
	Result   any
	Error    *connection.RPCError
	Failures []FailureConfig
}

// Statement is one entry of a query response.
type Statement struct {
	Status string `json:"status" cbor:"status"`
	Time   string `json:"time" cbor:"time"`
	Result any    `json:"result" cbor:"result"`
}

func okStatement(result any) Statement {
	return Statement{Status: "OK", Time: "1µs", Result: result}
}

// QueryHandler answers queries that are not LIVE statements.
type QueryHandler func(sql string, vars map[string]any) []Statement

// EchoQuery answers every query with the query text and its variables.
func EchoQuery(sql string, vars map[string]any) []Statement {
	return []Statement{okStatement(map[string]any{"sql": sql, "vars": vars})}
}

// Server is a fake SurrealDB server.
type Server struct {
	// Users maps user names to passwords. Defaults to root:root.
	Users map[string]string
	// TokenSignIn is handed out by every successful signin.
	TokenSignIn string
	// TokenSignUp is handed out by every successful signup.
	TokenSignUp string
	// NoToken makes HTTP signin answer without a token, which makes clients
	// fall back to Basic auth.
	NoToken bool
	// DisableHTTP answers every HTTP route but /rpc with 404.
	DisableHTTP bool
	// DisableWS refuses every /rpc upgrade.
	DisableWS bool
	// QueryHandler defaults to EchoQuery.
	QueryHandler QueryHandler
	// Version is served on /version.
	Version string

	addr     string
	listener net.Listener
	http     *http.Server
	upgrader *gws.Upgrader
	store    *store

	mu             sync.RWMutex
	stubResponses  []StubResponse
	globalFailures []FailureConfig
	conns          map[*gws.Conn]*rpcConn
	lives          map[string]*liveQuery
	requests       []string
	headers        []http.Header
	imported       [][]byte
}

// NewServer creates a fake server. Use "127.0.0.1:0" to bind to a random
// available port.
func NewServer(addr string) *Server {
	s := &Server{
		Users:        map[string]string{"root": "root"},
		TokenSignIn:  "fake-signin-token",
		TokenSignUp:  "fake-signup-token",
		QueryHandler: EchoQuery,
		Version:      "surrealdb-1.0.0",
		addr:         addr,
		store:        newStore(),
		conns:        make(map[*gws.Conn]*rpcConn),
		lives:        make(map[string]*liveQuery),
	}

	s.upgrader = gws.NewUpgrader(&handler{server: s}, &gws.ServerOption{
		SubProtocols:      []string{jsonProtocol, cborProtocol},
		PermessageDeflate: gws.PermessageDeflate{Enabled: true},
	})

	r := mux.NewRouter()
	r.HandleFunc("/rpc", s.handleUpgrade).Methods(http.MethodGet)
	s.routes(r)
	s.http = &http.Server{Handler: r, ReadHeaderTimeout: 5 * time.Second}

	return s
}

// AddStubResponse adds a stub. Stubs are matched in the order they were added.
func (s *Server) AddStubResponse(stub StubResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stubResponses = append(s.stubResponses, stub)
}

// SetGlobalFailures sets failure configurations that apply to all RPC
// requests. These are checked before stub-specific failures.
func (s *Server) SetGlobalFailures(failures []FailureConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.globalFailures = failures
}

// Start begins accepting connections.
func (s *Server) Start() error {
	var lc net.ListenConfig
	listener, err := lc.Listen(context.Background(), "tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = listener

	go func() {
		if err := s.http.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Server error: %v", err)
		}
	}()

	return nil
}

// Stop closes the listener and every open connection.
func (s *Server) Stop() error {
	s.mu.Lock()
	conns := make([]*gws.Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		c.NetConn().Close()
	}
	return s.http.Close()
}

// Address returns the address the server is listening on.
func (s *Server) Address() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

func (s *Server) HTTPURL() string {
	return "http://" + s.Address()
}

func (s *Server) WSURL() string {
	return "ws://" + s.Address() + "/rpc"
}

// Requests lists the RPC methods received so far, in order.
func (s *Server) Requests() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.requests...)
}

// Headers lists the headers of every HTTP request received so far.
func (s *Server) Headers() []http.Header {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]http.Header(nil), s.headers...)
}

// Imported lists the bodies received on /import.
func (s *Server) Imported() [][]byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([][]byte(nil), s.imported...)
}

// Vars returns the session variables of every open RPC connection.
func (s *Server) Vars() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	vars := make(map[string]any)
	for _, c := range s.conns {
		for k, v := range c.session.Vars {
			vars[k] = v
		}
	}
	return vars
}

// LiveQueries returns the ids of the running live queries.
func (s *Server) LiveQueries() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.lives))
	for id := range s.lives {
		ids = append(ids, id)
	}
	return ids
}

// Put stores a record directly and notifies live queries on its table.
func (s *Server) Put(table, id string, content map[string]any) {
	rec := s.store.put(table, id, content)
	s.notify(table, createAction, rec)
}

func (s *Server) record(method string) {
	s.mu.Lock()
	s.requests = append(s.requests, method)
	s.mu.Unlock()
}

func (s *Server) checkPassword(user, pass string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	want, ok := s.Users[user]
	return ok && want == pass
}

func (s *Server) validToken(token string) bool {
	return token != "" && (token == s.TokenSignIn || token == s.TokenSignUp)
}
