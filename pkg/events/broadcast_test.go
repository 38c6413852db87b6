package events

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Entry {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger.WithField("test", true)
}

func TestBroadcasterDeliversToAllSubscribers(t *testing.T) {
	b := NewBroadcaster[string]("test", testLogger())

	first, err := b.Subscribe("first", 4)
	require.NoError(t, err)
	second, err := b.Subscribe("second", 4)
	require.NoError(t, err)

	b.Publish("hello")

	assert.Equal(t, "hello", <-first)
	assert.Equal(t, "hello", <-second)
}

func TestBroadcasterLateSubscriberGetsNoReplay(t *testing.T) {
	b := NewBroadcaster[int]("test", testLogger())

	b.Publish(1)
	b.Publish(2)

	late, err := b.Subscribe("late", 4)
	require.NoError(t, err)

	b.Publish(3)

	assert.Equal(t, 3, <-late)
	select {
	case v := <-late:
		t.Fatalf("unexpected replayed event %d", v)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBroadcasterDuplicateSubscriberRejected(t *testing.T) {
	b := NewBroadcaster[int]("test", testLogger())

	_, err := b.Subscribe("dup", 1)
	require.NoError(t, err)
	_, err = b.Subscribe("dup", 1)
	assert.Error(t, err)
}

func TestBroadcasterSlowSubscriberDoesNotBlock(t *testing.T) {
	b := NewBroadcaster[int]("test", testLogger())

	slow, err := b.Subscribe("slow", 1)
	require.NoError(t, err)
	fast, err := b.Subscribe("fast", 16)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			b.Publish(i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publishing blocked on a slow subscriber")
	}

	// The fast subscriber saw everything; the slow one kept only what fit.
	count := 0
	for i := 0; i < 10; i++ {
		assert.Equal(t, i, <-fast)
	}
	for {
		select {
		case <-slow:
			count++
			continue
		default:
		}
		break
	}
	assert.LessOrEqual(t, count, 1)
}

func TestBroadcasterUnsubscribeClosesChannel(t *testing.T) {
	b := NewBroadcaster[int]("test", testLogger())

	ch, err := b.Subscribe("sub", 1)
	require.NoError(t, err)
	require.NoError(t, b.Unsubscribe("sub"))

	_, ok := <-ch
	assert.False(t, ok)
	assert.Error(t, b.Unsubscribe("sub"))
	assert.Equal(t, 0, b.SubscriberCount())
}

func TestBroadcasterClose(t *testing.T) {
	b := NewBroadcaster[int]("test", testLogger())

	ch, err := b.Subscribe("sub", 1)
	require.NoError(t, err)

	b.Close()

	_, ok := <-ch
	assert.False(t, ok)

	// Publishing after close is a no-op, subscribing fails.
	b.Publish(1)
	_, err = b.Subscribe("after", 1)
	assert.Error(t, err)

	// Closing again is safe.
	b.Close()
}
