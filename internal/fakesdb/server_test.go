package fakesdb_test

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/Chooks22/surrealism/internal/codec"
	"github.com/Chooks22/surrealism/internal/fakesdb"
	"github.com/Chooks22/surrealism/pkg/connection"
	"github.com/Chooks22/surrealism/pkg/connection/gws"
	"github.com/Chooks22/surrealism/pkg/connection/rpc"
	"github.com/Chooks22/surrealism/pkg/logger"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var root = map[string]any{"user": "root", "pass": "root"}

func start(t *testing.T, configure ...func(*fakesdb.Server)) *fakesdb.Server {
	t.Helper()
	server := fakesdb.NewServer("127.0.0.1:0")
	for _, fn := range configure {
		fn(server)
	}
	require.NoError(t, server.Start())
	t.Cleanup(func() {
		if err := server.Stop(); err != nil {
			t.Errorf("failed to stop server: %v", err)
		}
	})
	return server
}

func open(t *testing.T, server *fakesdb.Server, opts ...connection.Option) *rpc.Channel {
	t.Helper()
	opts = append([]connection.Option{connection.WithLogger(logger.Nop())}, opts...)
	ch, err := rpc.Open(context.Background(), server.WSURL(), root, "test", "test", opts...)
	require.NoError(t, err)
	t.Cleanup(func() { ch.Close(context.Background()) })
	return ch
}

func TestServer(t *testing.T) {
	server := fakesdb.NewServer("127.0.0.1:0")
	require.NoError(t, server.Start())
	assert.NotEmpty(t, server.Address())
	require.NoError(t, server.Stop())
}

func TestHTTPKeyRoutes(t *testing.T) {
	server := start(t)

	do := func(method, path, body string) []fakesdb.Statement {
		req, err := http.NewRequest(method, server.HTTPURL()+path, strings.NewReader(body))
		require.NoError(t, err)
		req.SetBasicAuth("root", "root")
		req.Header.Set("NS", "test")
		req.Header.Set("DB", "test")

		res, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer res.Body.Close()
		require.Equal(t, http.StatusOK, res.StatusCode)

		var out []fakesdb.Statement
		require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
		return out
	}

	out := do(http.MethodPost, "/key/person/tobie", `{"name":"Tobie"}`)
	require.Len(t, out, 1)
	assert.Equal(t, "OK", out[0].Status)

	out = do(http.MethodPatch, "/key/person/tobie", `{"age":30}`)
	rec := out[0].Result.([]any)[0].(map[string]any)
	assert.Equal(t, "Tobie", rec["name"])
	assert.EqualValues(t, 30, rec["age"])
	assert.Equal(t, "person:tobie", rec["id"])

	out = do(http.MethodGet, "/key/person", "")
	assert.Len(t, out[0].Result, 1)

	out = do(http.MethodPost, "/key/person/tobie", `{"name":"again"}`)
	assert.Equal(t, "ERR", out[0].Status)

	do(http.MethodDelete, "/key/person", "")
	out = do(http.MethodGet, "/key/person/tobie", "")
	assert.Empty(t, out[0].Result)
}

func TestHTTPRequiresAuthorization(t *testing.T) {
	server := start(t)

	res, err := http.Get(server.HTTPURL() + "/key/person")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusForbidden, res.StatusCode)
}

func TestHTTPSignIn(t *testing.T) {
	server := start(t)

	res, err := http.Post(server.HTTPURL()+"/signin", "application/json", strings.NewReader(`{"user":"root","pass":"root"}`))
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	assert.Equal(t, server.TokenSignIn, body["token"])

	res2, err := http.Post(server.HTTPURL()+"/signin", "application/json", strings.NewReader(`{"user":"root","pass":"nope"}`))
	require.NoError(t, err)
	defer res2.Body.Close()
	assert.Equal(t, http.StatusForbidden, res2.StatusCode)
}

func TestDisableHTTP(t *testing.T) {
	server := start(t, func(s *fakesdb.Server) { s.DisableHTTP = true })

	res, err := http.Get(server.HTTPURL() + "/health")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusNotFound, res.StatusCode)

	// the RPC endpoint keeps working
	open(t, server)
}

func TestRPCRequiresSignIn(t *testing.T) {
	server := start(t)

	_, err := rpc.Connect(context.Background(), server.WSURL(), map[string]any{"user": "root", "pass": "bad"},
		connection.WithLogger(logger.Nop()))
	require.Error(t, err)
}

func testRecords(t *testing.T, ch *rpc.Channel) {
	ctx := context.Background()
	u := ch.GetUnmarshaler()

	raw, err := ch.Create(ctx, "person:tobie", map[string]any{"name": "Tobie"})
	require.NoError(t, err)
	rec, err := connection.DecodeRecord[map[string]any](u, raw)
	require.NoError(t, err)
	assert.Equal(t, "person:tobie", (*rec)["id"])

	raw, err = ch.Patch(ctx, "person:tobie", []map[string]any{{"op": "replace", "path": "/name", "value": "Jaime"}})
	require.NoError(t, err)
	rec, err = connection.DecodeRecord[map[string]any](u, raw)
	require.NoError(t, err)
	assert.Equal(t, "Jaime", (*rec)["name"])

	raw, err = ch.Select(ctx, "person")
	require.NoError(t, err)
	all, err := connection.Decode[[]map[string]any](u, raw)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	raw, err = ch.Select(ctx, "person:nobody")
	require.NoError(t, err)
	rec, err = connection.DecodeRecord[map[string]any](u, raw)
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestRPCJSON(t *testing.T) {
	testRecords(t, open(t, start(t)))
}

func TestRPCCBOR(t *testing.T) {
	testRecords(t, open(t, start(t), connection.WithCodec(codec.NewCBOR())))
}

func TestRPCWithGWSDialer(t *testing.T) {
	testRecords(t, open(t, start(t), connection.WithDialer(gws.New())))
}

func TestQueryEchoesVariables(t *testing.T) {
	server := start(t)
	ch := open(t, server)

	raw, err := ch.Query(context.Background(), "SELECT * FROM $a", map[string]any{"a": "person"})
	require.NoError(t, err)

	res, err := connection.DecodeQuery[map[string]any](ch.GetUnmarshaler(), raw)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "SELECT * FROM $a", res[0].Result["sql"])
	assert.Equal(t, map[string]any{"a": "person"}, res[0].Result["vars"])
}

func testLive(t *testing.T, opts ...connection.Option) {
	server := start(t)
	ch := open(t, server, opts...)
	ctx := context.Background()

	raw, err := ch.Query(ctx, "LIVE SELECT * FROM person", nil)
	require.NoError(t, err)
	res, err := connection.DecodeQuery[any](ch.GetUnmarshaler(), raw)
	require.NoError(t, err)
	id, ok := connection.ParseLiveID(res[0].Result)
	require.True(t, ok)
	assert.Equal(t, []string{id}, server.LiveQueries())

	got := make(chan connection.Notification, 4)
	reg := ch.Listen(id, func(n connection.Notification) { got <- n })

	server.Put("person", "tobie", map[string]any{"name": "Tobie"})

	select {
	case n := <-got:
		assert.Equal(t, connection.CreateAction, n.Action)
		liveID, _ := n.LiveID()
		assert.Equal(t, id, liveID)
	case <-time.After(time.Second):
		t.Fatal("no notification")
	}

	require.True(t, server.KillLive(id))
	select {
	case <-reg.Done():
		require.NoError(t, reg.Err())
	case <-time.After(time.Second):
		t.Fatal("registration did not end")
	}
}

func TestLiveJSON(t *testing.T) {
	testLive(t)
}

func TestLiveCBOR(t *testing.T) {
	testLive(t, connection.WithCodec(codec.NewCBOR()))
}

func TestKillUnknownLiveQuery(t *testing.T) {
	ch := open(t, start(t))
	err := ch.Kill(context.Background(), "nope")
	var rpcErr *connection.RPCError
	require.ErrorAs(t, err, &rpcErr)
}

func TestStubResponse(t *testing.T) {
	server := start(t)
	server.AddStubResponse(fakesdb.SimpleStubResponse("select", []any{map[string]any{"id": "user:1"}}))
	server.AddStubResponse(fakesdb.ErrorStubResponse("delete", -32000, "denied"))
	ch := open(t, server)
	ctx := context.Background()

	raw, err := ch.Select(ctx, "anything")
	require.NoError(t, err)
	recs, err := connection.Decode[[]map[string]any](ch.GetUnmarshaler(), raw)
	require.NoError(t, err)
	assert.Equal(t, "user:1", recs[0]["id"])

	_, err = ch.Delete(ctx, "anything")
	require.ErrorContains(t, err, "denied")
}

func TestFailureNoResponse(t *testing.T) {
	server := start(t)
	server.AddStubResponse(fakesdb.StubResponse{
		Matcher:  fakesdb.MatchMethod("info"),
		Failures: []fakesdb.FailureConfig{{Type: fakesdb.FailureNoResponse, Probability: 1}},
	})
	ch := open(t, server)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := ch.Info(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFailureDropConnection(t *testing.T) {
	server := start(t)
	server.AddStubResponse(fakesdb.StubResponse{
		Matcher:  fakesdb.MatchMethod("info"),
		Failures: []fakesdb.FailureConfig{{Type: fakesdb.FailureDropConnection, Probability: 1}},
	})
	ch := open(t, server)

	_, err := ch.Info(context.Background())
	require.Error(t, err)

	select {
	case <-ch.Done():
	case <-time.After(time.Second):
		t.Fatal("channel did not notice the dropped connection")
	}
}

func TestLetAndUnset(t *testing.T) {
	server := start(t)
	ch := open(t, server)
	ctx := context.Background()

	require.NoError(t, ch.Let(ctx, "x", 1))
	assert.Contains(t, server.Vars(), "x")
	require.NoError(t, ch.Unset(ctx, "x"))
	assert.NotContains(t, server.Vars(), "x")
}
