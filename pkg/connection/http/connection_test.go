package http_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"net/url"
	"testing"

	"github.com/Chooks22/surrealism/pkg/connection"
	surrealhttp "github.com/Chooks22/surrealism/pkg/connection/http"
	"github.com/Chooks22/surrealism/pkg/constants"
	"github.com/Chooks22/surrealism/pkg/logger"
	"github.com/stretchr/testify/suite"
)

type RoundTripFunc func(req *http.Request) *http.Response

func (f RoundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req), nil
}

// NewTestClient returns *http.Client with Transport replaced to avoid making real calls
func NewTestClient(fn RoundTripFunc) *http.Client {
	return &http.Client{
		Transport: fn,
	}
}

func jsonResponse(status int, body string) *http.Response {
	header := make(http.Header)
	header.Set("Content-Type", "application/json")
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewBufferString(body)),
		Header:     header,
	}
}

type HTTPTestSuite struct {
	suite.Suite
	last *http.Request
	body string
	next *http.Response
	conn *surrealhttp.Connection
}

func TestHTTPTestSuite(t *testing.T) {
	suite.Run(t, new(HTTPTestSuite))
}

func (s *HTTPTestSuite) SetupTest() {
	s.last = nil
	s.body = ""
	s.next = jsonResponse(200, `[{"time":"1ms","status":"OK","result":[]}]`)

	client := NewTestClient(func(req *http.Request) *http.Response {
		s.last = req
		if req.Body != nil {
			data, _ := io.ReadAll(req.Body)
			s.body = string(data)
		}
		return s.next
	})

	cfg := connection.NewConfig(connection.WithHTTPClient(client), connection.WithLogger(logger.Nop()))
	s.conn = surrealhttp.New("http://test.surreal/", cfg)
}

func (s *HTTPTestSuite) TestSessionHeaders() {
	s.conn.Use("test", "db")
	s.conn.SetAuthorization("Bearer abc")

	_, err := s.conn.Key("person").GetID(context.Background(), "tobie")
	s.Require().NoError(err)

	s.Equal(http.MethodGet, s.last.Method)
	s.Equal("http://test.surreal/key/person/tobie", s.last.URL.String())
	s.Equal("Bearer abc", s.last.Header.Get("Authorization"))
	s.Equal("test", s.last.Header.Get("NS"))
	s.Equal("db", s.last.Header.Get("DB"))
	s.Equal("application/json", s.last.Header.Get("Accept"))
}

func (s *HTTPTestSuite) TestKeyVerbs() {
	ctx := context.Background()
	key := s.conn.Key("person")

	cases := []struct {
		call   func() error
		method string
		path   string
		body   string
	}{
		{func() error { _, err := key.Get(ctx); return err }, http.MethodGet, "/key/person", ""},
		{func() error { _, err := key.Post(ctx, map[string]any{"a": 1}); return err }, http.MethodPost, "/key/person", `{"a":1}`},
		{func() error { _, err := key.PostID(ctx, "x", map[string]any{"a": 1}); return err }, http.MethodPost, "/key/person/x", `{"a":1}`},
		{func() error { _, err := key.Put(ctx, "x", map[string]any{"a": 2}); return err }, http.MethodPut, "/key/person/x", `{"a":2}`},
		{func() error { _, err := key.Patch(ctx, "x", map[string]any{"b": 3}); return err }, http.MethodPatch, "/key/person/x", `{"b":3}`},
		{func() error { _, err := key.Delete(ctx); return err }, http.MethodDelete, "/key/person", ""},
		{func() error { _, err := key.DeleteID(ctx, "x"); return err }, http.MethodDelete, "/key/person/x", ""},
	}

	for _, tc := range cases {
		s.next = jsonResponse(200, `[{"time":"1ms","status":"OK","result":[]}]`)
		s.Require().NoError(tc.call())
		s.Equal(tc.method, s.last.Method)
		s.Equal(tc.path, s.last.URL.Path)
		if tc.body != "" {
			s.JSONEq(tc.body, s.body)
		}
	}
}

func (s *HTTPTestSuite) TestSQLSendsArgsAsQuery() {
	args := url.Values{}
	args.Set("a", "1")
	args.Set("b", `{"x":1}`)

	raw, err := s.conn.SQL(context.Background(), "SELECT * FROM person WHERE age > $a", args)
	s.Require().NoError(err)

	res, err := connection.DecodeQuery[[]any](s.conn.GetUnmarshaler(), raw)
	s.Require().NoError(err)
	s.Len(res, 1)

	s.Equal("/sql", s.last.URL.Path)
	s.Equal("1", s.last.URL.Query().Get("a"))
	s.Equal(`{"x":1}`, s.last.URL.Query().Get("b"))
	s.Equal("SELECT * FROM person WHERE age > $a", s.body)
}

func (s *HTTPTestSuite) TestSignInBearer() {
	s.next = jsonResponse(200, `{"code":200,"details":"Authentication succeeded","token":"jwt"}`)

	auth, err := s.conn.SignIn(context.Background(), map[string]any{"user": "root", "pass": "root"})
	s.Require().NoError(err)
	s.Equal("Bearer jwt", auth)
	s.Equal("/signin", s.last.URL.Path)
}

func (s *HTTPTestSuite) TestSignInBasicFallback() {
	s.next = jsonResponse(200, `{"code":200,"details":"Authentication succeeded"}`)

	auth, err := s.conn.SignIn(context.Background(), map[string]any{"user": "root", "pass": "secret"})
	s.Require().NoError(err)
	s.Equal("Basic "+base64.StdEncoding.EncodeToString([]byte("root:secret")), auth)
}

func (s *HTTPTestSuite) TestSignInRejected() {
	s.next = jsonResponse(403, `{"code":403,"details":"Authentication failed","information":"There was a problem with authentication"}`)

	_, err := s.conn.SignIn(context.Background(), map[string]any{"user": "root", "pass": "nope"})
	s.Require().ErrorIs(err, constants.ErrInvalidCredentials)

	var httpErr *connection.HTTPError
	s.Require().ErrorAs(err, &httpErr)
	s.Equal(403, httpErr.StatusCode)
}

func (s *HTTPTestSuite) TestErrorWithoutJSON() {
	s.next = &http.Response{StatusCode: 500, Body: io.NopCloser(bytes.NewBufferString("boom")), Header: make(http.Header)}

	_, err := s.conn.Key("person").Get(context.Background())
	var httpErr *connection.HTTPError
	s.Require().ErrorAs(err, &httpErr)
	s.Equal("boom", httpErr.Details)
}

func (s *HTTPTestSuite) TestHealthStatusVersion() {
	s.next = &http.Response{StatusCode: 200, Body: http.NoBody, Header: make(http.Header)}
	code, err := s.conn.Health(context.Background())
	s.Require().NoError(err)
	s.Equal(200, code)
	s.Equal("/health", s.last.URL.Path)

	s.next = &http.Response{StatusCode: 503, Body: http.NoBody, Header: make(http.Header)}
	code, err = s.conn.Status(context.Background())
	s.Require().NoError(err)
	s.Equal(503, code)

	s.next = &http.Response{StatusCode: 200, Body: io.NopCloser(bytes.NewBufferString("surrealdb-1.0.0\n")), Header: make(http.Header)}
	version, err := s.conn.Version(context.Background())
	s.Require().NoError(err)
	s.Equal("surrealdb-1.0.0", version)
}

func (s *HTTPTestSuite) TestExportImport() {
	s.conn.Use("ns", "db")

	s.next = &http.Response{StatusCode: 200, Body: io.NopCloser(bytes.NewBufferString("DEFINE TABLE person;")), Header: make(http.Header)}
	rc, err := s.conn.Export(context.Background())
	s.Require().NoError(err)
	dump, err := io.ReadAll(rc)
	s.Require().NoError(err)
	s.Require().NoError(rc.Close())
	s.Equal("DEFINE TABLE person;", string(dump))
	s.Equal("application/octet-stream", s.last.Header.Get("Accept"))

	_, err = s.conn.Import(context.Background(), bytes.NewReader(dump))
	s.Require().NoError(err)
	s.Equal(http.MethodPost, s.last.Method)
	s.Equal("/import", s.last.URL.Path)
	s.Equal("DEFINE TABLE person;", s.body)
	s.Equal("ns", s.last.Header.Get("NS"))
}
