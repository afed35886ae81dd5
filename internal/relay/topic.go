package relay

import (
	"context"
	"fmt"
	"sync"
)

// LaggedError reports that a subscriber fell behind and Skipped messages were
// overwritten before it could read them. The subscription stays usable; the
// next call to Next resumes at the oldest message still buffered.
type LaggedError struct {
	Skipped uint64
}

func (e *LaggedError) Error() string {
	return fmt.Sprintf("subscriber lagged, %d messages skipped", e.Skipped)
}

// Topic is a bounded broadcast ring. Published messages are visible only to
// subscribers that existed at publish time.
type Topic struct {
	mu          sync.Mutex
	ring        []Message
	next        uint64 // sequence number assigned to the next published message
	subscribers int
	closed      bool
	wake        chan struct{}
}

// NewTopic creates a topic buffering at most capacity unread messages per subscriber.
func NewTopic(capacity int) *Topic {
	if capacity < 1 {
		capacity = 1
	}
	return &Topic{
		ring: make([]Message, capacity),
		wake: make(chan struct{}),
	}
}

// Publish appends msg to the ring and wakes every waiting subscriber.
// It never blocks: a full ring overwrites its oldest entry.
// Returns the number of subscribers the message was offered to.
func (t *Topic) Publish(msg Message) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return 0, ErrClosed
	}
	if t.subscribers == 0 {
		return 0, ErrNoSubscribers
	}

	t.ring[t.next%uint64(len(t.ring))] = msg
	t.next++
	t.notifyLocked()
	return t.subscribers, nil
}

// Subscribe returns a cursor positioned after the latest published message.
// Subscribing to a closed topic succeeds; the first Next reports ErrClosed.
func (t *Topic) Subscribe() *Subscription {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.subscribers++
	return &Subscription{topic: t, cursor: t.next}
}

// Subscribers returns the number of open subscriptions.
func (t *Topic) Subscribers() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.subscribers
}

// Close marks the topic closed. Subscribers drain what is still buffered and
// then receive ErrClosed. Safe to call more than once.
func (t *Topic) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}
	t.closed = true
	t.notifyLocked()
}

func (t *Topic) notifyLocked() {
	close(t.wake)
	t.wake = make(chan struct{})
}

func (t *Topic) oldestLocked() uint64 {
	size := uint64(len(t.ring))
	if t.next < size {
		return 0
	}
	return t.next - size
}

// Subscription is one reader's cursor into a Topic. It must be read from a
// single goroutine; Close may be called from any goroutine.
type Subscription struct {
	topic  *Topic
	cursor uint64
	once   sync.Once
}

// Next blocks until a message is available, the topic closes, or ctx ends.
// A *LaggedError means messages were dropped; call Next again to continue.
func (s *Subscription) Next(ctx context.Context) (Message, error) {
	t := s.topic
	for {
		t.mu.Lock()
		if s.cursor < t.next {
			if oldest := t.oldestLocked(); s.cursor < oldest {
				skipped := oldest - s.cursor
				s.cursor = oldest
				t.mu.Unlock()
				return Message{}, &LaggedError{Skipped: skipped}
			}
			msg := t.ring[s.cursor%uint64(len(t.ring))]
			s.cursor++
			t.mu.Unlock()
			return msg, nil
		}
		if t.closed {
			t.mu.Unlock()
			return Message{}, ErrClosed
		}
		wake := t.wake
		t.mu.Unlock()

		select {
		case <-wake:
		case <-ctx.Done():
			return Message{}, ctx.Err()
		}
	}
}

// Close releases the subscription. Idempotent.
func (s *Subscription) Close() {
	s.once.Do(func() {
		t := s.topic
		t.mu.Lock()
		t.subscribers--
		t.mu.Unlock()
	})
}
