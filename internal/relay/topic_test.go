package relay

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func text(s string) Message {
	return Message{Type: 1, Data: []byte(s)}
}

func nextWithin(t *testing.T, sub *Subscription, d time.Duration) (Message, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	return sub.Next(ctx)
}

func TestTopic_PublishWithoutSubscribers(t *testing.T) {
	topic := NewTopic(4)

	n, err := topic.Publish(text("ping"))

	assert.ErrorIs(t, err, ErrNoSubscribers)
	assert.Equal(t, 0, n)
}

func TestTopic_DeliversInOrder(t *testing.T) {
	topic := NewTopic(8)
	sub := topic.Subscribe()
	defer sub.Close()

	for i := range 5 {
		n, err := topic.Publish(text(strconv.Itoa(i)))
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	}

	for i := range 5 {
		msg, err := nextWithin(t, sub, time.Second)
		require.NoError(t, err)
		assert.Equal(t, strconv.Itoa(i), string(msg.Data))
	}
}

func TestTopic_NoReplayForLateSubscriber(t *testing.T) {
	topic := NewTopic(8)
	early := topic.Subscribe()
	defer early.Close()

	_, err := topic.Publish(text("before"))
	require.NoError(t, err)

	late := topic.Subscribe()
	defer late.Close()

	_, err = topic.Publish(text("after"))
	require.NoError(t, err)

	msg, err := nextWithin(t, early, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "before", string(msg.Data))

	msg, err = nextWithin(t, late, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "after", string(msg.Data), "late subscriber must not see earlier messages")
}

func TestTopic_LaggingSubscriberSkipsOldest(t *testing.T) {
	topic := NewTopic(3)
	sub := topic.Subscribe()
	defer sub.Close()

	for i := 1; i <= 5; i++ {
		_, err := topic.Publish(text(strconv.Itoa(i)))
		require.NoError(t, err)
	}

	_, err := nextWithin(t, sub, time.Second)
	lagErr, ok := errors.AsType[*LaggedError](err)
	require.True(t, ok, "expected LaggedError, got %v", err)
	assert.Equal(t, uint64(2), lagErr.Skipped)

	for _, want := range []string{"3", "4", "5"} {
		msg, err := nextWithin(t, sub, time.Second)
		require.NoError(t, err)
		assert.Equal(t, want, string(msg.Data))
	}
}

func TestTopic_NextWaitsForPublish(t *testing.T) {
	topic := NewTopic(2)
	sub := topic.Subscribe()
	defer sub.Close()

	got := make(chan Message, 1)
	go func() {
		msg, err := nextWithin(t, sub, 2*time.Second)
		if err == nil {
			got <- msg
		}
	}()

	time.Sleep(20 * time.Millisecond)
	_, err := topic.Publish(text("hello"))
	require.NoError(t, err)

	select {
	case msg := <-got:
		assert.Equal(t, "hello", string(msg.Data))
	case <-time.After(time.Second):
		t.Fatal("subscriber was not woken by publish")
	}
}

func TestTopic_NextHonorsContext(t *testing.T) {
	topic := NewTopic(2)
	sub := topic.Subscribe()
	defer sub.Close()

	_, err := nextWithin(t, sub, 20*time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTopic_CloseWakesSubscribersAfterDrain(t *testing.T) {
	topic := NewTopic(4)
	sub := topic.Subscribe()
	defer sub.Close()

	_, err := topic.Publish(text("last"))
	require.NoError(t, err)
	topic.Close()

	msg, err := nextWithin(t, sub, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "last", string(msg.Data))

	_, err = nextWithin(t, sub, time.Second)
	assert.ErrorIs(t, err, ErrClosed)

	_, err = topic.Publish(text("late"))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestTopic_CloseIsIdempotent(t *testing.T) {
	topic := NewTopic(1)
	topic.Close()
	assert.NotPanics(t, topic.Close)
}

func TestTopic_SubscribeAfterClose(t *testing.T) {
	topic := NewTopic(1)
	topic.Close()

	sub := topic.Subscribe()
	defer sub.Close()

	_, err := nextWithin(t, sub, time.Second)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestTopic_SubscriptionCloseReleasesSlot(t *testing.T) {
	topic := NewTopic(1)
	sub := topic.Subscribe()
	assert.Equal(t, 1, topic.Subscribers())

	sub.Close()
	sub.Close()
	assert.Equal(t, 0, topic.Subscribers())

	_, err := topic.Publish(text("nobody"))
	assert.ErrorIs(t, err, ErrNoSubscribers)
}

func TestPropertyTopicDeliversNewestInOrder(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		capacity := rapid.IntRange(1, 16).Draw(t, "capacity")
		published := rapid.IntRange(0, 64).Draw(t, "published")

		topic := NewTopic(capacity)
		sub := topic.Subscribe()
		for i := range published {
			if _, err := topic.Publish(text(strconv.Itoa(i))); err != nil {
				t.Fatalf("publish %d: %v", i, err)
			}
		}
		topic.Close()

		first := 0
		if published > capacity {
			first = published - capacity
		}

		var got []int
		var skipped uint64
		for {
			msg, err := sub.Next(context.Background())
			if errors.Is(err, ErrClosed) {
				break
			}
			if lagErr, ok := errors.AsType[*LaggedError](err); ok {
				skipped += lagErr.Skipped
				continue
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			n, _ := strconv.Atoi(string(msg.Data))
			got = append(got, n)
		}

		if skipped != uint64(first) {
			t.Fatalf("skipped %d, want %d", skipped, first)
		}
		if len(got) != published-first {
			t.Fatalf("received %d messages, want %d", len(got), published-first)
		}
		for i, n := range got {
			if n != first+i {
				t.Fatalf("message %d out of order: got %d want %d", i, n, first+i)
			}
		}
	})
}
