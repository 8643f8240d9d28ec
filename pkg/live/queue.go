package live

import (
	"context"
	"sync"
)

// queue is a FIFO filled by the channel's read goroutine and drained by one
// consumer. wake holds at most one pending signal.
type queue[T any] struct {
	mu    sync.Mutex
	items []T
	wake  chan struct{}
}

func newQueue[T any]() *queue[T] {
	return &queue[T]{wake: make(chan struct{}, 1)}
}

func (q *queue[T]) push(v T) {
	q.mu.Lock()
	q.items = append(q.items, v)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *queue[T]) tryPop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if len(q.items) == 0 {
		return zero, false
	}
	v := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]
	return v, true
}

// pop waits for the oldest item. Once done is closed, what is left in the
// queue is still handed out before pop reports false. Closing stop ends it
// right away. A nil error with false means done or stopped.
func (q *queue[T]) pop(ctx context.Context, done <-chan struct{}, stop <-chan struct{}) (T, bool, error) {
	var zero T
	for {
		select {
		case <-stop:
			return zero, false, nil
		default:
		}

		if v, ok := q.tryPop(); ok {
			return v, true, nil
		}

		select {
		case <-q.wake:
		case <-done:
			v, ok := q.tryPop()
			return v, ok, nil
		case <-stop:
			return zero, false, nil
		case <-ctx.Done():
			return zero, false, ctx.Err()
		}
	}
}
