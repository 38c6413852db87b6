package messaging

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func TestDefaultPublisherConfig(t *testing.T) {
	config := DefaultPublisherConfig()
	assert.Equal(t, "liveinsights.events", config.Exchange)
	assert.Equal(t, "liveinsights", config.RoutingKey)
	assert.Greater(t, config.QueueSize, 0)
}

func TestStartWithoutURL(t *testing.T) {
	p := NewPublisher(&PublisherConfig{QueueSize: 4}, testLogger())
	assert.Error(t, p.Start())
	assert.False(t, p.IsStarted())
}

func TestEnqueueDropsWhenFull(t *testing.T) {
	p := NewPublisher(&PublisherConfig{QueueSize: 2}, testLogger())

	// Nothing drains the queue; the third enqueue must not block.
	for i := 0; i < 3; i++ {
		p.enqueue(&EventMessage{EventType: "transcript"})
	}
	assert.Len(t, p.queue, 2)
}

func TestStopBeforeStartIsNoop(t *testing.T) {
	p := NewPublisher(nil, testLogger())
	p.Stop()
	assert.False(t, p.IsStarted())
}
