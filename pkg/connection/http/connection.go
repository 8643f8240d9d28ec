// Package http is the request/response transport. Every call is a single
// HTTP request carrying the session as headers; nothing is kept open.
package http

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/Chooks22/surrealism/internal/codec"
	"github.com/Chooks22/surrealism/pkg/connection"
	"github.com/Chooks22/surrealism/pkg/constants"
	"github.com/Chooks22/surrealism/pkg/logger"
	"github.com/buger/jsonparser"
)

const (
	namespaceKey     = "namespace"
	databaseKey      = "database"
	authorizationKey = "authorization"

	octetStream = "application/octet-stream"
)

// Connection talks to the HTTP interface of the server.
type Connection struct {
	BaseURL     string
	Marshaler   codec.Marshaler
	Unmarshaler codec.Unmarshaler

	httpClient *http.Client
	logger     logger.Logger
	variables  sync.Map
}

// New builds a connection for baseURL. A trailing slash is dropped.
func New(baseURL string, p *connection.Config) *Connection {
	con := &Connection{
		BaseURL:     strings.TrimSuffix(baseURL, "/"),
		Marshaler:   codec.JSON{},
		Unmarshaler: codec.JSON{},
		httpClient:  p.HTTPClient,
		logger:      p.Logger,
	}

	if con.httpClient == nil {
		con.httpClient = &http.Client{
			Timeout: constants.DefaultHTTPTimeout,
		}
	}
	if con.logger == nil {
		con.logger = logger.Nop()
	}

	return con
}

func (h *Connection) GetUnmarshaler() codec.Unmarshaler {
	return h.Unmarshaler
}

// Use records the namespace and database sent with every later request.
func (h *Connection) Use(namespace, database string) {
	h.variables.Store(namespaceKey, namespace)
	h.variables.Store(databaseKey, database)
}

// SetAuthorization records the Authorization header value.
func (h *Connection) SetAuthorization(authorization string) {
	if authorization == "" {
		h.variables.Delete(authorizationKey)
		return
	}
	h.variables.Store(authorizationKey, authorization)
}

func (h *Connection) Authorization() string {
	return h.load(authorizationKey)
}

func (h *Connection) load(key string) string {
	v, ok := h.variables.Load(key)
	if !ok {
		return ""
	}
	return v.(string)
}

func (h *Connection) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Request, error) {
	u := h.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	if body == nil {
		body = http.NoBody
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", codec.JSONContentType)

	if auth := h.load(authorizationKey); auth != "" {
		req.Header.Set("Authorization", auth)
	}
	if ns := h.load(namespaceKey); ns != "" {
		req.Header.Set("NS", ns)
	}
	if db := h.load(databaseKey); db != "" {
		req.Header.Set("DB", db)
	}

	return req, nil
}

func (h *Connection) jsonBody(v any) (io.Reader, error) {
	data, err := h.Marshaler.Marshal(v)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(data), nil
}

// MakeRequest performs req and returns the body of a 2xx response. Any other
// status becomes a *connection.HTTPError.
func (h *Connection) MakeRequest(req *http.Request) ([]byte, error) {
	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error making HTTP request: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return respBytes, nil
	}

	return nil, h.httpError(resp, respBytes)
}

func (h *Connection) httpError(resp *http.Response, body []byte) error {
	httpErr := &connection.HTTPError{StatusCode: resp.StatusCode}

	contentType := strings.TrimSpace(strings.Split(resp.Header.Get("Content-Type"), ";")[0])
	if contentType == codec.JSONContentType {
		if err := h.Unmarshaler.Unmarshal(body, httpErr); err != nil {
			h.logger.Debug("failed to unmarshal error response", "error", err)
		}
		httpErr.StatusCode = resp.StatusCode
	}
	if httpErr.Details == "" && httpErr.Description == "" && httpErr.Information == "" {
		httpErr.Details = strings.TrimSpace(string(body))
	}

	return httpErr
}

func (h *Connection) do(ctx context.Context, method, path string, query url.Values, body io.Reader) (codec.RawMessage, error) {
	req, err := h.newRequest(ctx, method, path, query, body)
	if err != nil {
		return nil, err
	}
	return h.MakeRequest(req)
}

// SignIn exchanges credentials for an Authorization header value. A token in
// the response yields "Bearer <token>"; otherwise the user and pass fields of
// the credentials are sent as HTTP Basic auth.
func (h *Connection) SignIn(ctx context.Context, creds any) (string, error) {
	body, err := h.Marshaler.Marshal(creds)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.BaseURL+"/signin", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", codec.JSONContentType)

	res, err := h.MakeRequest(req)
	if err != nil {
		var httpErr *connection.HTTPError
		if errors.As(err, &httpErr) {
			return "", fmt.Errorf("%w: %w", constants.ErrInvalidCredentials, err)
		}
		return "", err
	}

	if token, err := jsonparser.GetString(res, "token"); err == nil && token != "" {
		return "Bearer " + token, nil
	}

	user, _ := jsonparser.GetString(body, "user")
	pass, _ := jsonparser.GetString(body, "pass")
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+pass)), nil
}

// SignUp registers a scope user and returns the issued token.
func (h *Connection) SignUp(ctx context.Context, data any) (string, error) {
	body, err := h.jsonBody(data)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.BaseURL+"/signup", body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", codec.JSONContentType)

	res, err := h.MakeRequest(req)
	if err != nil {
		return "", err
	}

	token, _ := jsonparser.GetString(res, "token")
	return token, nil
}

// SQL runs query with args bound as URL query parameters.
func (h *Connection) SQL(ctx context.Context, query string, args url.Values) (codec.RawMessage, error) {
	return h.do(ctx, http.MethodPost, "/sql", args, strings.NewReader(query))
}

// Health reports the status code of /health.
func (h *Connection) Health(ctx context.Context) (int, error) {
	return h.status(ctx, "/health")
}

// Status reports the status code of /status.
func (h *Connection) Status(ctx context.Context) (int, error) {
	return h.status(ctx, "/status")
}

func (h *Connection) status(ctx context.Context, path string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.BaseURL+path, http.NoBody)
	if err != nil {
		return 0, err
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("error making HTTP request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode, nil
}

func (h *Connection) Version(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.BaseURL+"/version", http.NoBody)
	if err != nil {
		return "", err
	}

	res, err := h.MakeRequest(req)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(res)), nil
}

// Export streams a dump of the current database. The caller closes the
// returned reader.
func (h *Connection) Export(ctx context.Context) (io.ReadCloser, error) {
	req, err := h.newRequest(ctx, http.MethodGet, "/export", nil, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", octetStream)

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error making HTTP request: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return nil, h.httpError(resp, body)
	}

	return resp.Body, nil
}

// Import loads a dump into the current database.
func (h *Connection) Import(ctx context.Context, r io.Reader) (codec.RawMessage, error) {
	return h.do(ctx, http.MethodPost, "/import", nil, r)
}
