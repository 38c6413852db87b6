package messaging

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/streadway/amqp"

	"liveinsights-client/pkg/assist"
	"liveinsights-client/pkg/client"
	"liveinsights-client/pkg/insight"
	"liveinsights-client/pkg/metrics"
)

// PublisherConfig configures the AMQP event publisher
type PublisherConfig struct {
	URL         string        `json:"url"`
	Exchange    string        `json:"exchange"`
	RoutingKey  string        `json:"routing_key"`
	QueueSize   int           `json:"queue_size"`
	DialTimeout time.Duration `json:"dial_timeout"`
}

// DefaultPublisherConfig returns default configuration
func DefaultPublisherConfig() *PublisherConfig {
	return &PublisherConfig{
		Exchange:    "liveinsights.events",
		RoutingKey:  "liveinsights",
		QueueSize:   1000,
		DialTimeout: 5 * time.Second,
	}
}

// EventMessage is the AMQP envelope for forwarded session events
type EventMessage struct {
	MessageID string    `json:"message_id"`
	EventType string    `json:"event_type"`
	SessionID string    `json:"session_id"`
	ProjectID string    `json:"project_id"`
	Timestamp time.Time `json:"timestamp"`

	Transcript *insight.TranscriptChunk  `json:"transcript,omitempty"`
	Insights   *insight.ExtractionResult `json:"insights,omitempty"`
	Assistance []assist.Assistance       `json:"assistance,omitempty"`
	Metrics    *insight.SessionMetrics   `json:"metrics,omitempty"`
}

// Publisher forwards live session events to an AMQP topic exchange. It is an
// ordinary subscriber on the client's channels: a slow or broken broker never
// blocks the decoder, it only fills this publisher's internal queue.
type Publisher struct {
	logger *logrus.Entry
	config *PublisherConfig

	conn    *amqp.Connection
	channel *amqp.Channel

	queue    chan *EventMessage
	stopChan chan struct{}
	wg       sync.WaitGroup

	started    bool
	startMutex sync.RWMutex
}

// NewPublisher creates an AMQP publisher with the given configuration.
func NewPublisher(config *PublisherConfig, logger *logrus.Logger) *Publisher {
	if config == nil {
		config = DefaultPublisherConfig()
	}
	return &Publisher{
		logger:   logger.WithField("component", "amqp_publisher"),
		config:   config,
		queue:    make(chan *EventMessage, config.QueueSize),
		stopChan: make(chan struct{}),
	}
}

// Start connects to the broker, declares the exchange and begins draining
// the internal queue.
func (p *Publisher) Start() error {
	p.startMutex.Lock()
	defer p.startMutex.Unlock()

	if p.started {
		return fmt.Errorf("publisher already started")
	}
	if p.config.URL == "" {
		return fmt.Errorf("AMQP URL not configured")
	}

	conn, err := amqp.DialConfig(p.config.URL, amqp.Config{Dial: amqp.DefaultDial(p.config.DialTimeout)})
	if err != nil {
		return fmt.Errorf("failed to connect to AMQP server: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open AMQP channel: %w", err)
	}

	if err := channel.ExchangeDeclare(
		p.config.Exchange,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		channel.Close()
		conn.Close()
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	p.conn = conn
	p.channel = channel
	p.started = true

	p.wg.Add(1)
	go p.drainQueue()

	p.logger.WithField("exchange", p.config.Exchange).Info("AMQP publisher started")
	return nil
}

// Stop drains nothing further and closes the broker connection.
func (p *Publisher) Stop() {
	p.startMutex.Lock()
	if !p.started {
		p.startMutex.Unlock()
		return
	}
	p.started = false
	p.startMutex.Unlock()

	close(p.stopChan)
	p.wg.Wait()

	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
	p.logger.Info("AMQP publisher stopped")
}

// IsStarted returns whether the publisher is running.
func (p *Publisher) IsStarted() bool {
	p.startMutex.RLock()
	defer p.startMutex.RUnlock()
	return p.started
}

// enqueue queues a message without blocking; a full queue drops the message.
func (p *Publisher) enqueue(msg *EventMessage) {
	select {
	case p.queue <- msg:
	default:
		p.logger.WithField("event_type", msg.EventType).Warning("Publisher queue full, dropping event")
		metrics.RecordSubscriberDrop("amqp_queue")
	}
}

func (p *Publisher) drainQueue() {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopChan:
			return
		case msg := <-p.queue:
			if err := p.publish(msg); err != nil {
				p.logger.WithError(err).WithField("event_type", msg.EventType).Warning("Failed to publish event")
			}
		}
	}
}

func (p *Publisher) publish(msg *EventMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	routingKey := p.config.RoutingKey + "." + msg.EventType
	return p.channel.Publish(
		p.config.Exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		},
	)
}

// Attach subscribes to the client's event channels and forwards transcript,
// insight, assistance and metrics events until the channels close.
func (p *Publisher) Attach(c *client.Client) error {
	subscriberID := "amqp-" + uuid.NewString()[:8]

	transcripts, err := c.Transcripts().Subscribe(subscriberID, p.config.QueueSize)
	if err != nil {
		return err
	}
	insights, err := c.Insights().Subscribe(subscriberID, p.config.QueueSize)
	if err != nil {
		return err
	}
	assistance, err := c.Assistance().Subscribe(subscriberID, p.config.QueueSize)
	if err != nil {
		return err
	}
	sessionMetrics, err := c.Metrics().Subscribe(subscriberID, p.config.QueueSize)
	if err != nil {
		return err
	}

	session := c.Session()
	newMessage := func(eventType string) *EventMessage {
		return &EventMessage{
			MessageID: uuid.NewString(),
			EventType: eventType,
			SessionID: session.SessionID(),
			ProjectID: session.ProjectID(),
			Timestamp: time.Now(),
		}
	}

	// This goroutine ends when the client closes its channels, independently
	// of the publisher's own lifecycle.
	go func() {
		for transcripts != nil || insights != nil || assistance != nil || sessionMetrics != nil {
			select {
			case chunk, ok := <-transcripts:
				if !ok {
					transcripts = nil
					continue
				}
				msg := newMessage("transcript")
				msg.Transcript = &chunk
				p.enqueue(msg)

			case result, ok := <-insights:
				if !ok {
					insights = nil
					continue
				}
				msg := newMessage("insights")
				msg.Insights = &result
				p.enqueue(msg)

			case batch, ok := <-assistance:
				if !ok {
					assistance = nil
					continue
				}
				msg := newMessage("assistance")
				msg.Assistance = batch
				p.enqueue(msg)

			case sm, ok := <-sessionMetrics:
				if !ok {
					sessionMetrics = nil
					continue
				}
				msg := newMessage("metrics")
				msg.Metrics = &sm
				p.enqueue(msg)
			}
		}
	}()

	return nil
}
