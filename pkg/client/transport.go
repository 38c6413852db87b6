package client

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Transport owns one bidirectional, message-oriented connection. Inbound
// frames arrive on Frames in arrival order; the channel closes when the
// connection ends for any reason. Transport-level failures (not message-level
// parse errors) arrive on Errors. Implementations are substitutable so tests
// can inject an in-memory transport.
type Transport interface {
	Connect(ctx context.Context) error
	Send(frame []byte) error
	Frames() <-chan []byte
	Errors() <-chan error
	Close() error
}

const (
	writeTimeout   = 10 * time.Second
	frameQueueSize = 64
)

// wsTransport is the production Transport over a gorilla websocket.
type wsTransport struct {
	url    string
	header http.Header
	logger *logrus.Entry

	conn     *websocket.Conn
	writeMux sync.Mutex

	frames chan []byte
	errs   chan error

	closeOnce sync.Once
	connected bool
	mu        sync.Mutex
}

// newWSTransport creates a websocket transport for the given URL. The header
// carries authentication (Authorization token) when configured.
func newWSTransport(url string, header http.Header, logger *logrus.Entry) *wsTransport {
	return &wsTransport{
		url:    url,
		header: header,
		logger: logger,
		frames: make(chan []byte, frameQueueSize),
		errs:   make(chan error, 4),
	}
}

// Connect dials the websocket and starts the read pump.
func (t *wsTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.connected {
		return ErrAlreadyConnected
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, t.url, t.header)
	if err != nil {
		return fmt.Errorf("failed to dial websocket: %w", err)
	}

	t.conn = conn
	t.connected = true
	t.logger.Info("WebSocket connection established")

	go t.readPump()
	return nil
}

// readPump reads frames until the connection ends, then closes the frame
// channel so the consumer sees an ordered, terminated sequence.
func (t *wsTransport) readPump() {
	defer close(t.frames)

	for {
		_, message, err := t.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				t.logger.WithError(err).Error("WebSocket read error")
				select {
				case t.errs <- err:
				default:
				}
			}
			return
		}
		t.frames <- message
	}
}

// Send writes one outbound text frame with a write deadline.
func (t *wsTransport) Send(frame []byte) error {
	t.mu.Lock()
	connected := t.connected
	t.mu.Unlock()
	if !connected {
		return ErrNotConnected
	}

	t.writeMux.Lock()
	defer t.writeMux.Unlock()

	t.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := t.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("failed to send frame: %w", err)
	}
	return nil
}

// Frames returns the inbound frame sequence.
func (t *wsTransport) Frames() <-chan []byte {
	return t.frames
}

// Errors returns transport-level errors.
func (t *wsTransport) Errors() <-chan error {
	return t.errs
}

// Close sends a close frame and releases the connection. Safe to call more
// than once.
func (t *wsTransport) Close() error {
	t.closeOnce.Do(func() {
		t.mu.Lock()
		conn := t.conn
		t.connected = false
		t.mu.Unlock()

		if conn != nil {
			t.writeMux.Lock()
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			t.writeMux.Unlock()
			conn.Close()
			t.logger.Info("WebSocket connection closed")
		}
	})
	return nil
}
