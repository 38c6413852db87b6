package client

import (
	"context"
	"net/http"
	"sync"

	"github.com/sirupsen/logrus"

	"liveinsights-client/pkg/assist"
	"liveinsights-client/pkg/events"
	"liveinsights-client/pkg/insight"
	"liveinsights-client/pkg/metrics"
)

// ClientConfig holds configuration for the live insights session client.
type ClientConfig struct {
	// URL is the backend websocket endpoint.
	URL string `json:"url"`
	// APIToken is sent as an Authorization header when non-empty.
	APIToken string `json:"api_token"`
	// ProjectID identifies the project the session belongs to.
	ProjectID string `json:"project_id"`
	// SubscriberBuffer is the default buffer size for sink subscriptions.
	SubscriberBuffer int `json:"subscriber_buffer"`
}

// DefaultClientConfig returns default configuration
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		SubscriberBuffer: 64,
	}
}

// Client manages a single live insights session: one connection, a session
// state machine, and one multicast channel per event category. Each client
// instance is explicitly constructed and owned by whoever creates the
// session; there is no shared global instance.
type Client struct {
	config    *ClientConfig
	logger    *logrus.Entry
	transport Transport
	session   *SessionState

	connState      *events.Broadcaster[bool]
	sessionStatus  *events.Broadcaster[Status]
	transcripts    *events.Broadcaster[insight.TranscriptChunk]
	insights       *events.Broadcaster[insight.ExtractionResult]
	assistance     *events.Broadcaster[[]assist.Assistance]
	sessionMetrics *events.Broadcaster[insight.SessionMetrics]
	errs           *events.Broadcaster[ClientError]

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu            sync.Mutex
	connected     bool
	closed        bool
	connAnnounced bool
}

// NewClient creates a client that connects over a websocket transport.
func NewClient(config *ClientConfig, logger *logrus.Logger) *Client {
	if config == nil {
		config = DefaultClientConfig()
	}

	entry := logger.WithField("project_id", config.ProjectID)

	header := http.Header{}
	if config.APIToken != "" {
		header.Set("Authorization", "Token "+config.APIToken)
	}

	return NewClientWithTransport(config, newWSTransport(config.URL, header, entry), logger)
}

// NewClientWithTransport creates a client on an injected transport. Tests use
// this to substitute an in-memory connection.
func NewClientWithTransport(config *ClientConfig, transport Transport, logger *logrus.Logger) *Client {
	if config == nil {
		config = DefaultClientConfig()
	}

	entry := logger.WithField("project_id", config.ProjectID)
	ctx, cancel := context.WithCancel(context.Background())

	return &Client{
		config:         config,
		logger:         entry,
		transport:      transport,
		session:        NewSessionState(config.ProjectID),
		connState:      events.NewBroadcaster[bool]("connection_state", entry),
		sessionStatus:  events.NewBroadcaster[Status]("session_state", entry),
		transcripts:    events.NewBroadcaster[insight.TranscriptChunk]("transcripts", entry),
		insights:       events.NewBroadcaster[insight.ExtractionResult]("insights", entry),
		assistance:     events.NewBroadcaster[[]assist.Assistance]("proactive_assistance", entry),
		sessionMetrics: events.NewBroadcaster[insight.SessionMetrics]("session_metrics", entry),
		errs:           events.NewBroadcaster[ClientError]("errors", entry),
		ctx:            ctx,
		cancel:         cancel,
		done:           make(chan struct{}),
	}
}

// Connect establishes the connection and starts processing inbound frames.
// The connection-state channel emits true as soon as the transport is up.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClientClosed
	}
	if c.connected {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.mu.Unlock()

	if err := c.transport.Connect(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()

	c.announceConnection(true)
	go c.run()

	return nil
}

// run consumes inbound frames and transport errors strictly in arrival
// order. Handling one frame completes before the next is read; there is no
// reordering by chunk index or any other field.
func (c *Client) run() {
	defer close(c.done)
	defer func() {
		if r := recover(); r != nil {
			c.logger.WithField("panic", r).Error("Panic in frame processing")
			c.session.Fail()
		}
	}()

	for {
		select {
		case <-c.ctx.Done():
			return

		case err, ok := <-c.transport.Errors():
			if !ok {
				continue
			}
			metrics.RecordTransportError()
			c.errs.Publish(ClientError{Stage: StageTransport, Message: err.Error()})
			c.announceConnection(false)

		case frame, ok := <-c.transport.Frames():
			if !ok {
				c.announceConnection(false)
				return
			}
			c.handleFrame(frame)
		}
	}
}

// announceConnection emits a connection-state event, deduplicating repeats.
func (c *Client) announceConnection(up bool) {
	c.mu.Lock()
	if c.connAnnounced == up {
		c.mu.Unlock()
		return
	}
	c.connAnnounced = up
	c.mu.Unlock()

	metrics.SetConnectionStatus(up)
	c.connState.Publish(up)
}

// Session returns the session state machine, the single source of truth for
// the session's identity and lifecycle.
func (c *Client) Session() *SessionState {
	return c.session
}

// ConnectionState is the multicast channel of connection up/down events.
func (c *Client) ConnectionState() *events.Broadcaster[bool] { return c.connState }

// SessionStatus is the multicast channel of session lifecycle transitions.
func (c *Client) SessionStatus() *events.Broadcaster[Status] { return c.sessionStatus }

// Transcripts is the multicast channel of transcript chunks.
func (c *Client) Transcripts() *events.Broadcaster[insight.TranscriptChunk] { return c.transcripts }

// Insights is the multicast channel of insight extraction batches.
func (c *Client) Insights() *events.Broadcaster[insight.ExtractionResult] { return c.insights }

// Assistance is the multicast channel of proactive assistance batches. One
// inbound message yields at most one batch emission.
func (c *Client) Assistance() *events.Broadcaster[[]assist.Assistance] { return c.assistance }

// Metrics is the multicast channel of session metrics snapshots.
func (c *Client) Metrics() *events.Broadcaster[insight.SessionMetrics] { return c.sessionMetrics }

// Errors is the multicast channel of transport, envelope and protocol errors.
func (c *Client) Errors() *events.Broadcaster[ClientError] { return c.errs }

// Close tears the session down: it stops frame processing, closes the
// transport and closes every event channel. No handler runs after Close
// returns. A session that was never initialized or never finalized is an
// implicit abandon, not an error. Safe to call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	wasConnected := c.connected
	c.connected = false
	c.mu.Unlock()

	c.cancel()
	c.transport.Close()

	if wasConnected {
		// Wait for in-flight frame handling to finish before closing the
		// event channels.
		<-c.done
	}

	c.announceConnection(false)

	c.connState.Close()
	c.sessionStatus.Close()
	c.transcripts.Close()
	c.insights.Close()
	c.assistance.Close()
	c.sessionMetrics.Close()
	c.errs.Close()

	snap := c.session.Snapshot()
	c.logger.WithFields(logrus.Fields{
		"session_id": snap.SessionID,
		"status":     snap.Status,
	}).Info("Live insights client closed")

	return nil
}
