package live

import (
	"context"
	"sync"

	"github.com/Chooks22/surrealism/pkg/connection"
)

// KillFunc stops a subscription. Only the first call reaches the server.
type KillFunc func(ctx context.Context) error

// Subscribe starts a new live query and calls fn for every notification, in
// arrival order, on a goroutine of its own. A KILLED notification is passed
// to fn and ends the subscription.
func (q *Query[T]) Subscribe(ctx context.Context, fn func(Notification[T])) (KillFunc, error) {
	h, err := q.start(ctx)
	if err != nil {
		return nil, err
	}

	pending := newQueue[connection.Notification]()
	reg := q.conn.Listen(h.id, pending.push)
	stop := make(chan struct{})

	go q.dispatch(h.id, pending, reg, stop, fn)

	var (
		once    sync.Once
		killErr error
	)
	return func(ctx context.Context) error {
		once.Do(func() {
			close(stop)
			killErr = q.release(ctx, h, reg)
		})
		return killErr
	}, nil
}

func (q *Query[T]) dispatch(
	id string,
	pending *queue[connection.Notification],
	reg *connection.Registration,
	stop <-chan struct{},
	fn func(Notification[T]),
) {
	for {
		n, ok, _ := pending.pop(context.Background(), reg.Done(), stop)
		if !ok {
			q.logger.Debug("live query dispatcher stopped", "id", id, "error", reg.Err())
			return
		}

		decoded, err := q.decode(n)
		if err != nil {
			q.logger.Error("failed to decode live notification", "id", id, "error", err)
			continue
		}
		fn(decoded)
	}
}
