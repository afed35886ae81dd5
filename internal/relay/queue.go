package relay

import (
	"context"
	"sync"
)

// Queue is a bounded many-writer, single-reader channel. Writers wait while
// it is full. Close never closes the data channel itself, so concurrent
// writers are never at risk of sending on a closed channel.
type Queue struct {
	ch   chan Message
	done chan struct{}
	once sync.Once
}

// NewQueue creates a queue holding at most capacity undelivered messages.
func NewQueue(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{
		ch:   make(chan Message, capacity),
		done: make(chan struct{}),
	}
}

// Send enqueues msg, waiting for room. Returns ErrClosed once the queue is closed.
func (q *Queue) Send(ctx context.Context, msg Message) error {
	select {
	case <-q.done:
		return ErrClosed
	default:
	}

	select {
	case q.ch <- msg:
		return nil
	case <-q.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Receive returns the next message in arrival order.
func (q *Queue) Receive(ctx context.Context) (Message, error) {
	select {
	case msg := <-q.ch:
		return msg, nil
	case <-q.done:
		return Message{}, ErrClosed
	case <-ctx.Done():
		return Message{}, ctx.Err()
	}
}

// Done is closed when the queue is closed.
func (q *Queue) Done() <-chan struct{} {
	return q.done
}

// Len returns the number of buffered messages.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Close wakes every blocked writer and reader with ErrClosed. Idempotent.
func (q *Queue) Close() {
	q.once.Do(func() { close(q.done) })
}
