package fakesdb

import (
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/Chooks22/surrealism/internal/codec"
	"github.com/Chooks22/surrealism/pkg/connection"
	"github.com/fxamacker/cbor/v2"
	"github.com/gofrs/uuid"
	"github.com/lxzan/gws"
)

const (
	jsonProtocol = codec.JSONSubprotocol
	cborProtocol = codec.CBORSubprotocol

	createAction = "CREATE"
	updateAction = "UPDATE"
	deleteAction = "DELETE"
	killedAction = "KILLED"
)

// Session is the server side state of one RPC connection.
type Session struct {
	Namespace string
	Database  string
	Username  string
	Vars      map[string]any
}

type rpcConn struct {
	server  *Server
	socket  *gws.Conn
	codec   codec.Codec
	session Session
}

type liveQuery struct {
	id    uuid.UUID
	table string
	conn  *rpcConn
}

// pickProtocol returns the first subprotocol offered by the client that the
// server speaks.
func pickProtocol(r *http.Request) string {
	for _, v := range r.Header.Values("Sec-WebSocket-Protocol") {
		for _, p := range strings.Split(v, ",") {
			p = strings.TrimSpace(p)
			if p == jsonProtocol || p == cborProtocol {
				return p
			}
		}
	}
	return jsonProtocol
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	if s.DisableWS {
		http.NotFound(w, r)
		return
	}

	c := &rpcConn{server: s, codec: codec.ForSubprotocol(pickProtocol(r))}

	socket, err := s.upgrader.Upgrade(w, r)
	if err != nil {
		log.Printf("Upgrade failed: %v", err)
		return
	}
	c.socket = socket

	s.mu.Lock()
	s.conns[socket] = c
	s.mu.Unlock()

	go socket.ReadLoop()
}

func (c *rpcConn) opcode() gws.Opcode {
	if c.codec.Binary() {
		return gws.OpcodeBinary
	}
	return gws.OpcodeText
}

func (c *rpcConn) write(v any) {
	data, err := c.codec.Marshal(v)
	if err != nil {
		log.Printf("Error marshaling frame: %v", err)
		return
	}
	if err := c.socket.WriteMessage(c.opcode(), data); err != nil {
		log.Printf("Error writing frame: %v", err)
	}
}

func (c *rpcConn) sendResponse(id, result any) {
	c.write(connection.RPCResponse[any]{ID: id, Result: &result})
}

func (c *rpcConn) sendError(id any, code int, message string) {
	c.write(connection.RPCResponse[any]{ID: id, Error: &connection.RPCError{Code: code, Message: message}})
}

// liveID renders a live query id the way the negotiated format carries it.
func (c *rpcConn) liveID(id uuid.UUID) any {
	if c.codec.Binary() {
		return cbor.Tag{Number: 37, Content: id.Bytes()}
	}
	return id.String()
}

func (c *rpcConn) push(lq *liveQuery, action string, result any) {
	c.write(map[string]any{
		"result": map[string]any{
			"id":     c.liveID(lq.id),
			"action": action,
			"result": result,
		},
	})
}

type handler struct {
	gws.BuiltinEventHandler
	server *Server
}

func (h *handler) OnClose(socket *gws.Conn, _ error) {
	s := h.server
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.conns[socket]
	delete(s.conns, socket)
	for id, lq := range s.lives {
		if lq.conn == c {
			delete(s.lives, id)
		}
	}
}

func (h *handler) OnPing(socket *gws.Conn, payload []byte) {
	if err := socket.WritePong(payload); err != nil {
		log.Printf("Error writing Pong: %v", err)
	}
}

func (h *handler) OnMessage(socket *gws.Conn, message *gws.Message) {
	defer message.Close()

	s := h.server
	s.mu.RLock()
	c := s.conns[socket]
	globalFailures := s.globalFailures
	s.mu.RUnlock()
	if c == nil {
		return
	}

	var req connection.RPCRequest
	if err := c.codec.Unmarshal(message.Bytes(), &req); err != nil {
		c.sendError(nil, -32700, "Parse error")
		return
	}
	s.record(req.Method)

	respond := func() { c.handle(&req) }

	for _, failure := range globalFailures {
		if shouldTriggerFailure(failure.Probability) {
			if err := c.applyFailure(failure, &req, respond); err != nil {
				return
			}
		}
	}

	if stub := s.matchStub(&req); stub != nil {
		respond = func() {
			if stub.Error != nil {
				c.sendError(req.ID, stub.Error.Code, stub.Error.Message)
			} else {
				c.sendResponse(req.ID, stub.Result)
			}
		}
		for _, failure := range stub.Failures {
			if shouldTriggerFailure(failure.Probability) {
				if err := c.applyFailure(failure, &req, respond); err != nil {
					return
				}
			}
		}
	}

	respond()
}

//nolint:gocyclo
func (c *rpcConn) handle(req *connection.RPCRequest) {
	switch req.Method {
	case "signin":
		c.handleSignIn(req)
		return
	case "signup":
		c.handleSignUp(req)
		return
	case "authenticate":
		c.handleAuthenticate(req)
		return
	}

	c.server.mu.RLock()
	signedIn := c.session.Username != ""
	c.server.mu.RUnlock()
	if !signedIn {
		c.sendError(req.ID, -32000, "There was a problem with the database: There was a problem with authentication: Not signed in")
		return
	}

	switch req.Method {
	case "use":
		c.handleUse(req)
	case "info":
		c.server.mu.RLock()
		user := c.session.Username
		c.server.mu.RUnlock()
		c.sendResponse(req.ID, map[string]any{"user": user})
	case "invalidate":
		c.server.mu.Lock()
		c.session.Username = ""
		c.server.mu.Unlock()
		c.sendResponse(req.ID, nil)
	case "let":
		c.handleLet(req)
	case "unset":
		c.handleUnset(req)
	case "query":
		c.handleQuery(req)
	case "kill":
		c.handleKill(req)
	case "select", "create", "update", "merge", "patch", "delete":
		c.handleRecord(req)
	default:
		c.sendError(req.ID, -32601, "Method not found")
	}
}

func credentialsOf(params []any) (user, pass string, ok bool) {
	if len(params) < 1 {
		return "", "", false
	}
	auth, isMap := params[0].(map[string]any)
	if !isMap {
		return "", "", false
	}
	user, _ = auth["user"].(string)
	pass, _ = auth["pass"].(string)
	return user, pass, user != ""
}

func (c *rpcConn) handleSignIn(req *connection.RPCRequest) {
	user, pass, ok := credentialsOf(req.Params)
	if !ok {
		c.sendError(req.ID, -32602, "handleSignIn: Signin requires username in auth data")
		return
	}
	if !c.server.checkPassword(user, pass) {
		c.sendError(req.ID, -32000, "There was a problem with authentication")
		return
	}

	c.server.mu.Lock()
	c.session.Username = user
	c.server.mu.Unlock()

	c.sendResponse(req.ID, c.server.TokenSignIn)
}

func (c *rpcConn) handleSignUp(req *connection.RPCRequest) {
	user, pass, ok := credentialsOf(req.Params)
	if !ok {
		c.sendError(req.ID, -32602, "handleSignUp: Signup requires username in auth data")
		return
	}

	c.server.mu.Lock()
	c.server.Users[user] = pass
	c.server.mu.Unlock()

	c.sendResponse(req.ID, c.server.TokenSignUp)
}

func (c *rpcConn) handleAuthenticate(req *connection.RPCRequest) {
	token, _ := param[string](req.Params, 0)
	if !c.server.validToken(token) {
		c.sendError(req.ID, -32000, "There was a problem with authentication: Token invalid")
		return
	}

	c.server.mu.Lock()
	c.session.Username = "token"
	c.server.mu.Unlock()

	c.sendResponse(req.ID, nil)
}

func (c *rpcConn) handleUse(req *connection.RPCRequest) {
	ns, ok1 := param[string](req.Params, 0)
	db, ok2 := param[string](req.Params, 1)
	if !ok1 || !ok2 {
		c.sendError(req.ID, -32602, "handleUse: invalid params: use requires namespace and database parameters")
		return
	}

	c.server.mu.Lock()
	c.session.Namespace = ns
	c.session.Database = db
	c.server.mu.Unlock()

	c.sendResponse(req.ID, nil)
}

func (c *rpcConn) handleLet(req *connection.RPCRequest) {
	key, ok := param[string](req.Params, 0)
	if !ok || len(req.Params) < 2 {
		c.sendError(req.ID, -32602, "handleLet: invalid params: let requires a key and a value")
		return
	}

	c.server.mu.Lock()
	if c.session.Vars == nil {
		c.session.Vars = make(map[string]any)
	}
	c.session.Vars[key] = req.Params[1]
	c.server.mu.Unlock()

	c.sendResponse(req.ID, nil)
}

func (c *rpcConn) handleUnset(req *connection.RPCRequest) {
	key, ok := param[string](req.Params, 0)
	if !ok {
		c.sendError(req.ID, -32602, "handleUnset: invalid params: unset keys must be strings")
		return
	}

	c.server.mu.Lock()
	delete(c.session.Vars, key)
	c.server.mu.Unlock()

	c.sendResponse(req.ID, nil)
}

func (c *rpcConn) handleQuery(req *connection.RPCRequest) {
	sql, ok := param[string](req.Params, 0)
	if !ok {
		c.sendError(req.ID, -32602, "handleQuery: invalid params: query must be a string")
		return
	}

	if table, ok := liveTable(sql); ok {
		lq := &liveQuery{id: uuid.Must(uuid.NewV4()), table: table, conn: c}
		c.server.mu.Lock()
		c.server.lives[lq.id.String()] = lq
		c.server.mu.Unlock()

		c.sendResponse(req.ID, []Statement{okStatement(c.liveID(lq.id))})
		return
	}

	vars, _ := param[map[string]any](req.Params, 1)
	c.sendResponse(req.ID, c.server.QueryHandler(sql, vars))
}

func (c *rpcConn) handleKill(req *connection.RPCRequest) {
	id, _ := param[string](req.Params, 0)

	c.server.mu.Lock()
	_, found := c.server.lives[id]
	delete(c.server.lives, id)
	c.server.mu.Unlock()

	if !found {
		c.sendError(req.ID, -32000, fmt.Sprintf("Can not execute KILL statement using id '%s'", id))
		return
	}
	c.sendResponse(req.ID, nil)
}

func (c *rpcConn) handleRecord(req *connection.RPCRequest) {
	what, ok := param[string](req.Params, 0)
	if !ok {
		c.sendError(req.ID, -32602, "invalid params: expected a table or record id")
		return
	}
	table, id := splitThing(what)

	result, err := c.server.apply(req.Method, table, id, paramAt(req.Params, 1))
	if err != nil {
		c.sendError(req.ID, -32000, err.Error())
		return
	}
	c.sendResponse(req.ID, result)
}

// KillLive ends a live query from the server side with a KILLED push.
func (s *Server) KillLive(id string) bool {
	s.mu.Lock()
	lq, found := s.lives[id]
	delete(s.lives, id)
	s.mu.Unlock()

	if found {
		lq.conn.push(lq, killedAction, nil)
	}
	return found
}

// notify pushes a change to every live query on table.
func (s *Server) notify(table, action string, rec map[string]any) {
	s.mu.RLock()
	var targets []*liveQuery
	for _, lq := range s.lives {
		if lq.table == table {
			targets = append(targets, lq)
		}
	}
	s.mu.RUnlock()

	for _, lq := range targets {
		lq.conn.push(lq, action, rec)
	}
}

// liveTable extracts the table of "LIVE SELECT ... FROM <table> ...".
func liveTable(sql string) (string, bool) {
	fields := strings.Fields(sql)
	if len(fields) < 2 || !strings.EqualFold(fields[0], "LIVE") {
		return "", false
	}
	for i, f := range fields {
		if strings.EqualFold(f, "FROM") && i+1 < len(fields) {
			return strings.TrimSuffix(fields[i+1], ";"), true
		}
	}
	return "", false
}

func paramAt(params []any, i int) any {
	if i < len(params) {
		return params[i]
	}
	return nil
}

func param[T any](params []any, i int) (T, bool) {
	v, ok := paramAt(params, i).(T)
	return v, ok
}
