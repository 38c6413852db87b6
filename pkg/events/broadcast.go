package events

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"liveinsights-client/pkg/metrics"
)

// Broadcaster fans one event stream out to any number of independent
// subscribers. Late subscribers receive only events published after they
// attach; there is no replay buffer. Publishing never blocks on a slow
// subscriber: a full subscriber channel drops that subscriber's copy of the
// event.
type Broadcaster[T any] struct {
	name   string
	logger *logrus.Entry

	subscribers    map[string]chan T
	subscribersMux sync.RWMutex
	closed         bool
}

// NewBroadcaster creates a broadcaster for one event category. The name is
// used for logging and subscriber-drop metrics.
func NewBroadcaster[T any](name string, logger *logrus.Entry) *Broadcaster[T] {
	return &Broadcaster[T]{
		name:        name,
		logger:      logger.WithField("channel", name),
		subscribers: make(map[string]chan T),
	}
}

// Subscribe adds a subscriber with its own buffered channel.
func (b *Broadcaster[T]) Subscribe(subscriberID string, bufferSize int) (<-chan T, error) {
	b.subscribersMux.Lock()
	defer b.subscribersMux.Unlock()

	if b.closed {
		return nil, fmt.Errorf("channel %s is closed", b.name)
	}
	if _, exists := b.subscribers[subscriberID]; exists {
		return nil, fmt.Errorf("subscriber %s already exists on channel %s", subscriberID, b.name)
	}
	if bufferSize <= 0 {
		bufferSize = 16
	}

	ch := make(chan T, bufferSize)
	b.subscribers[subscriberID] = ch

	b.logger.WithField("subscriber_id", subscriberID).Debug("New subscriber added")
	return ch, nil
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Broadcaster[T]) Unsubscribe(subscriberID string) error {
	b.subscribersMux.Lock()
	defer b.subscribersMux.Unlock()

	if ch, exists := b.subscribers[subscriberID]; exists {
		close(ch)
		delete(b.subscribers, subscriberID)
		b.logger.WithField("subscriber_id", subscriberID).Debug("Subscriber removed")
		return nil
	}

	return fmt.Errorf("subscriber %s not found on channel %s", subscriberID, b.name)
}

// Publish delivers an event to every current subscriber. Subscribers whose
// channel is full lose this event. Publishing after Close is a no-op.
func (b *Broadcaster[T]) Publish(event T) {
	b.subscribersMux.RLock()
	defer b.subscribersMux.RUnlock()

	if b.closed {
		return
	}

	for subscriberID, ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			b.logger.WithField("subscriber_id", subscriberID).Warning("Subscriber channel full, dropping event")
			metrics.RecordSubscriberDrop(b.name)
		}
	}
}

// Close closes all subscriber channels and rejects further subscriptions.
func (b *Broadcaster[T]) Close() {
	b.subscribersMux.Lock()
	defer b.subscribersMux.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	for id, ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, id)
	}
}

// SubscriberCount returns the number of attached subscribers.
func (b *Broadcaster[T]) SubscriberCount() int {
	b.subscribersMux.RLock()
	defer b.subscribersMux.RUnlock()
	return len(b.subscribers)
}
