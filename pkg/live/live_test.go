package live_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Chooks22/surrealism/internal/codec"
	"github.com/Chooks22/surrealism/pkg/connection"
	"github.com/Chooks22/surrealism/pkg/constants"
	"github.com/Chooks22/surrealism/pkg/live"
	"github.com/Chooks22/surrealism/pkg/surrealql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeConn struct {
	*connection.BaseConnection

	mu       sync.Mutex
	lets     map[string]any
	unsets   []string
	kills    []string
	queries  []string
	started  int
	letErr   error
	queryRaw func(n int) string
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		BaseConnection: connection.NewBaseConnection(),
		lets:           make(map[string]any),
	}
}

func (f *fakeConn) Let(_ context.Context, key string, value any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.letErr != nil {
		return f.letErr
	}
	f.lets[key] = value
	return nil
}

func (f *fakeConn) Unset(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.lets, key)
	f.unsets = append(f.unsets, key)
	return nil
}

func (f *fakeConn) Query(_ context.Context, sql string, _ map[string]any) (codec.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started++
	f.queries = append(f.queries, sql)
	if f.queryRaw != nil {
		return codec.RawMessage(f.queryRaw(f.started)), nil
	}
	return codec.RawMessage(fmt.Sprintf(`[{"status":"OK","time":"1ms","result":"live-%d"}]`, f.started)), nil
}

func (f *fakeConn) Kill(_ context.Context, liveID string) error {
	f.mu.Lock()
	f.kills = append(f.kills, liveID)
	f.mu.Unlock()
	f.EndListeners(liveID)
	return nil
}

func (f *fakeConn) GetUnmarshaler() codec.Unmarshaler {
	return codec.JSON{}
}

func (f *fakeConn) push(id string, action connection.Action, result string) {
	f.Dispatch(id, connection.Notification{ID: id, Action: action, Result: codec.RawMessage(result)})
}

type person struct {
	Name string `json:"name"`
}

func newQuery(conn *fakeConn) *live.Query[person] {
	q := surrealql.Build("SELECT * FROM person WHERE age > ", 18, " AND name != ", surrealql.Value("bob"))
	return live.New[person](conn, live.NewSequence(), q, nil)
}

func TestStartBindsScopedVariables(t *testing.T) {
	conn := newFakeConn()
	id, err := newQuery(conn).Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "live-1", id)

	require.Len(t, conn.queries, 1)
	sql := conn.queries[0]
	assert.True(t, strings.HasPrefix(sql, "LIVE SELECT * FROM person WHERE age > $"))

	require.Len(t, conn.lets, 2)
	values := make([]any, 0, 2)
	for name, v := range conn.lets {
		assert.Contains(t, sql, "$"+name)
		assert.Contains(t, name, constants.LiveVarSeparator)
		values = append(values, v)
	}
	assert.ElementsMatch(t, []any{18, "bob"}, values)
}

func TestConcurrentStartsUseDistinctPrefixes(t *testing.T) {
	conn := newFakeConn()
	q := newQuery(conn)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := q.Start(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Len(t, conn.lets, 16)
}

func TestStartWithoutID(t *testing.T) {
	conn := newFakeConn()
	conn.queryRaw = func(int) string { return `[]` }

	_, err := newQuery(conn).Start(context.Background())
	require.ErrorIs(t, err, constants.ErrNoLiveID)
	assert.Empty(t, conn.lets)
}

func TestStartFailedStatement(t *testing.T) {
	conn := newFakeConn()
	conn.queryRaw = func(int) string { return `[{"status":"ERR","time":"1ms","result":"no table"}]` }

	_, err := newQuery(conn).Start(context.Background())
	require.ErrorIs(t, err, constants.ErrQuery)
	assert.Empty(t, conn.lets)
	assert.Len(t, conn.unsets, 2)
}

func TestStartLetFailure(t *testing.T) {
	conn := newFakeConn()
	conn.letErr = errors.New("denied")

	_, err := newQuery(conn).Start(context.Background())
	require.Error(t, err)
	assert.Empty(t, conn.queries)
}

func TestSubscribeDeliversInOrder(t *testing.T) {
	conn := newFakeConn()

	got := make(chan live.Notification[person], 16)
	kill, err := newQuery(conn).Subscribe(context.Background(), func(n live.Notification[person]) {
		got <- n
	})
	require.NoError(t, err)

	names := []string{"a", "b", "c", "d", "e"}
	for _, name := range names {
		conn.push("live-1", connection.CreateAction, fmt.Sprintf(`{"name":%q}`, name))
	}

	for _, name := range names {
		select {
		case n := <-got:
			assert.Equal(t, "live-1", n.ID)
			assert.Equal(t, connection.CreateAction, n.Action)
			assert.Equal(t, name, n.Result.Name)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for notification")
		}
	}

	require.NoError(t, kill(context.Background()))
	require.NoError(t, kill(context.Background()))
	assert.Equal(t, []string{"live-1"}, conn.kills)
	assert.Empty(t, conn.lets)
}

func TestSlowCallbackDoesNotBlockDispatch(t *testing.T) {
	conn := newFakeConn()

	release := make(chan struct{})
	got := make(chan string, 16)
	kill, err := newQuery(conn).Subscribe(context.Background(), func(n live.Notification[person]) {
		<-release
		got <- n.Result.Name
	})
	require.NoError(t, err)

	pushed := make(chan struct{})
	go func() {
		defer close(pushed)
		for i := range 10 {
			conn.push("live-1", connection.UpdateAction, fmt.Sprintf(`{"name":"%d"}`, i))
		}
	}()

	select {
	case <-pushed:
	case <-time.After(time.Second):
		t.Fatal("push blocked on a slow callback")
	}

	close(release)
	for i := range 10 {
		assert.Equal(t, fmt.Sprint(i), <-got)
	}
	require.NoError(t, kill(context.Background()))
}

func TestEachSubscribeStartsItsOwnQuery(t *testing.T) {
	conn := newFakeConn()
	q := newQuery(conn)

	var (
		mu   sync.Mutex
		seen = map[string]int{}
	)
	fn := func(n live.Notification[person]) {
		mu.Lock()
		seen[n.ID]++
		mu.Unlock()
	}

	kill1, err := q.Subscribe(context.Background(), fn)
	require.NoError(t, err)
	kill2, err := q.Subscribe(context.Background(), fn)
	require.NoError(t, err)

	require.NoError(t, kill1(context.Background()))
	require.NoError(t, kill2(context.Background()))
	assert.ElementsMatch(t, []string{"live-1", "live-2"}, conn.kills)
}

func TestIteratorPullsNotifications(t *testing.T) {
	conn := newFakeConn()
	ctx := context.Background()

	it, err := newQuery(conn).Iterator(ctx)
	require.NoError(t, err)
	assert.Equal(t, "live-1", it.ID())

	conn.push("live-1", connection.CreateAction, `{"name":"a"}`)
	conn.push("live-1", connection.DeleteAction, `{"name":"b"}`)

	require.True(t, it.Next(ctx))
	assert.Equal(t, "a", it.Value().Result.Name)
	require.True(t, it.Next(ctx))
	assert.Equal(t, connection.DeleteAction, it.Value().Action)

	require.NoError(t, it.Close(ctx))
	assert.False(t, it.Next(ctx))
	require.NoError(t, it.Err())
	assert.Equal(t, []string{"live-1"}, conn.kills)
}

func TestIteratorWaitsForPush(t *testing.T) {
	conn := newFakeConn()
	ctx := context.Background()

	it, err := newQuery(conn).Iterator(ctx)
	require.NoError(t, err)
	defer it.Close(ctx)

	go func() {
		time.Sleep(20 * time.Millisecond)
		conn.push("live-1", connection.CreateAction, `{"name":"late"}`)
	}()

	require.True(t, it.Next(ctx))
	assert.Equal(t, "late", it.Value().Result.Name)
}

func TestIteratorKilledBeforePush(t *testing.T) {
	conn := newFakeConn()
	ctx := context.Background()

	it, err := newQuery(conn).Iterator(ctx)
	require.NoError(t, err)

	require.NoError(t, conn.Kill(ctx, it.ID()))

	count := 0
	for _, err := range it.All(ctx) {
		require.NoError(t, err)
		count++
	}
	assert.Zero(t, count)
	// the registration had already ended, so no second kill
	assert.Len(t, conn.kills, 1)
	assert.Empty(t, conn.lets)
}

func TestIteratorKilledNotificationEnds(t *testing.T) {
	conn := newFakeConn()
	ctx := context.Background()

	it, err := newQuery(conn).Iterator(ctx)
	require.NoError(t, err)

	conn.push("live-1", connection.CreateAction, `{"name":"a"}`)
	conn.push("live-1", connection.KilledAction, `null`)

	var names []string
	for n, err := range it.All(ctx) {
		require.NoError(t, err)
		names = append(names, n.Result.Name)
	}
	assert.Equal(t, []string{"a"}, names)
}

func TestIteratorChannelClosed(t *testing.T) {
	conn := newFakeConn()
	ctx := context.Background()

	it, err := newQuery(conn).Iterator(ctx)
	require.NoError(t, err)

	conn.Shutdown()

	assert.False(t, it.Next(ctx))
	require.ErrorIs(t, it.Err(), constants.ErrClosed)
	require.NoError(t, it.Close(ctx))
	assert.Empty(t, conn.kills)
}

func TestIteratorAllIsSingleUse(t *testing.T) {
	conn := newFakeConn()
	ctx := context.Background()

	it, err := newQuery(conn).Iterator(ctx)
	require.NoError(t, err)

	conn.push("live-1", connection.CreateAction, `{"name":"a"}`)
	for range it.All(ctx) {
		break
	}
	assert.Equal(t, []string{"live-1"}, conn.kills)

	for _, err := range it.All(ctx) {
		require.ErrorIs(t, err, constants.ErrIteratorConsumed)
	}
}

func TestIterateStartsLazily(t *testing.T) {
	conn := newFakeConn()
	ctx := context.Background()

	it := newQuery(conn).Iterate()
	assert.Empty(t, conn.queries)
	assert.Empty(t, it.ID())

	// the push may race the registration, so keep pushing until one lands
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case <-time.After(5 * time.Millisecond):
				conn.push("live-1", connection.CreateAction, `{"name":"a"}`)
			}
		}
	}()

	require.True(t, it.Next(ctx))
	close(done)
	assert.Len(t, conn.queries, 1)
	require.NoError(t, it.Close(ctx))
}

func TestIterateClosedBeforeStart(t *testing.T) {
	conn := newFakeConn()
	ctx := context.Background()

	it := newQuery(conn).Iterate()
	require.NoError(t, it.Close(ctx))

	assert.False(t, it.Next(ctx))
	require.ErrorIs(t, it.Err(), constants.ErrClosed)
	assert.Empty(t, conn.queries)
}

func TestIteratorHonorsContext(t *testing.T) {
	conn := newFakeConn()

	it, err := newQuery(conn).Iterator(context.Background())
	require.NoError(t, err)
	defer it.Close(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	assert.False(t, it.Next(ctx))
	require.ErrorIs(t, it.Err(), context.DeadlineExceeded)
}

func TestSequence(t *testing.T) {
	seq := live.NewSequence()
	seen := map[string]bool{}
	for range 1000 {
		p := seq.Next()
		require.False(t, seen[p], p)
		seen[p] = true
	}
}
