package live

import (
	"context"
	"iter"
	"sync"
	"sync/atomic"

	"github.com/Chooks22/surrealism/pkg/connection"
	"github.com/Chooks22/surrealism/pkg/constants"
)

// Iterator pulls notifications of one live query.
//
//	for it.Next(ctx) {
//		n := it.Value()
//	}
//	err := it.Err()
//
// The live query ends when it is killed, when the channel is lost or when
// Close is called. A KILLED notification is not handed out.
type Iterator[T any] struct {
	q *Query[T]

	startOnce sync.Once
	h         *handle
	reg       *connection.Registration
	pending   *queue[connection.Notification]

	closed    chan struct{}
	closeOnce sync.Once
	closeErr  error
	consumed  atomic.Bool

	cur Notification[T]
	err error
}

// Iterator starts a live query right away.
func (q *Query[T]) Iterator(ctx context.Context) (*Iterator[T], error) {
	it := q.Iterate()
	if err := it.init(ctx); err != nil {
		return nil, err
	}
	return it, nil
}

// Iterate returns an iterator whose live query starts on the first Next.
func (q *Query[T]) Iterate() *Iterator[T] {
	return &Iterator[T]{
		q:       q,
		pending: newQueue[connection.Notification](),
		closed:  make(chan struct{}),
	}
}

func (it *Iterator[T]) init(ctx context.Context) error {
	var err error
	it.startOnce.Do(func() {
		select {
		case <-it.closed:
			err = constants.ErrClosed
			return
		default:
		}

		var h *handle
		h, err = it.q.start(ctx)
		if err != nil {
			return
		}
		it.h = h
		it.reg = it.q.conn.Listen(h.id, it.pending.push)
	})
	if err == nil && it.h == nil {
		err = constants.ErrClosed
	}
	return err
}

// ID is the live query id, empty until the query has started.
func (it *Iterator[T]) ID() string {
	if it.h == nil {
		return ""
	}
	return it.h.id
}

// Next waits for the next notification. It returns false once the live query
// has ended or an error occurred, see Err.
func (it *Iterator[T]) Next(ctx context.Context) bool {
	if it.err != nil {
		return false
	}
	if err := it.init(ctx); err != nil {
		it.err = err
		return false
	}

	n, ok, err := it.pending.pop(ctx, it.reg.Done(), it.closed)
	if err != nil {
		it.err = err
		return false
	}
	if !ok || n.Action == connection.KilledAction {
		it.err = it.reg.Err()
		return false
	}

	it.cur, it.err = it.q.decode(n)
	return it.err == nil
}

// Value is the notification read by the last successful Next.
func (it *Iterator[T]) Value() Notification[T] {
	return it.cur
}

// Err is nil when the live query was killed or the iterator closed, and
// ErrClosed when the channel went away.
func (it *Iterator[T]) Err() error {
	return it.err
}

// Close kills the live query if it is still running and drops its variables.
func (it *Iterator[T]) Close(ctx context.Context) error {
	it.closeOnce.Do(func() {
		close(it.closed)
		// keeps a later init from starting a query nobody will close
		it.startOnce.Do(func() {})

		if it.h == nil {
			return
		}
		it.closeErr = it.q.release(ctx, it.h, it.reg)
	})
	return it.closeErr
}

// All ranges over the remaining notifications and closes the iterator when
// the loop ends. It can be used once.
func (it *Iterator[T]) All(ctx context.Context) iter.Seq2[Notification[T], error] {
	return func(yield func(Notification[T], error) bool) {
		if !it.consumed.CompareAndSwap(false, true) {
			yield(Notification[T]{}, constants.ErrIteratorConsumed)
			return
		}

		defer func() {
			if err := it.Close(context.WithoutCancel(ctx)); err != nil {
				it.q.logger.Debug("failed to close live iterator", "id", it.ID(), "error", err)
			}
		}()

		for it.Next(ctx) {
			if !yield(it.Value(), nil) {
				return
			}
		}
		if err := it.Err(); err != nil {
			yield(Notification[T]{}, err)
		}
	}
}
