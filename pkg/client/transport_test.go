package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wsTestServer upgrades incoming connections, records the Authorization
// header, echoes one canned frame and then relays anything the client sends
// back over a channel.
type wsTestServer struct {
	server   *httptest.Server
	upgrader websocket.Upgrader

	authHeader chan string
	received   chan []byte
	conns      chan *websocket.Conn
	greeting   string
}

func newWSTestServer(t *testing.T, greeting string) *wsTestServer {
	t.Helper()

	s := &wsTestServer{
		upgrader:   websocket.Upgrader{},
		authHeader: make(chan string, 1),
		received:   make(chan []byte, 16),
		conns:      make(chan *websocket.Conn, 16),
		greeting:   greeting,
	}

	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.authHeader <- r.Header.Get("Authorization")

		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		defer conn.Close()
		s.conns <- conn

		if s.greeting != "" {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(s.greeting)); err != nil {
				return
			}
		}

		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				return
			}
			s.received <- message
		}
	}))
	t.Cleanup(s.server.Close)

	return s
}

func (s *wsTestServer) wsURL() string {
	return "ws" + strings.TrimPrefix(s.server.URL, "http")
}

func TestWSTransportConnectAndReceive(t *testing.T) {
	srv := newWSTestServer(t, `{"type": "session_initialized", "session_id": "s1"}`)

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	header := http.Header{}
	header.Set("Authorization", "Token test-api-key")

	tr := newWSTransport(srv.wsURL(), header, logger.WithField("test", t.Name()))
	require.NoError(t, tr.Connect(context.Background()))
	defer tr.Close()

	assert.Equal(t, "Token test-api-key", <-srv.authHeader)

	select {
	case frame := <-tr.Frames():
		assert.Contains(t, string(frame), "session_initialized")
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for inbound frame")
	}
}

func TestWSTransportSend(t *testing.T) {
	srv := newWSTestServer(t, "")

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	tr := newWSTransport(srv.wsURL(), nil, logger.WithField("test", t.Name()))
	require.NoError(t, tr.Connect(context.Background()))
	defer tr.Close()

	require.NoError(t, tr.Send([]byte(`{"action": "audio_chunk", "data": "AAAA"}`)))

	select {
	case message := <-srv.received:
		assert.JSONEq(t, `{"action": "audio_chunk", "data": "AAAA"}`, string(message))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for server to receive frame")
	}
}

func TestWSTransportSendBeforeConnect(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	tr := newWSTransport("ws://127.0.0.1:1", nil, logger.WithField("test", t.Name()))
	assert.ErrorIs(t, tr.Send([]byte("x")), ErrNotConnected)
}

func TestWSTransportFrameChannelClosesOnDisconnect(t *testing.T) {
	srv := newWSTestServer(t, "")

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	tr := newWSTransport(srv.wsURL(), nil, logger.WithField("test", t.Name()))
	require.NoError(t, tr.Connect(context.Background()))

	// httptest's CloseClientConnections does not touch hijacked (upgraded)
	// connections, so drop the websocket from the server side directly.
	(<-srv.conns).Close()

	select {
	case _, ok := <-tr.Frames():
		assert.False(t, ok, "frame channel should close when the connection drops")
	case <-time.After(2 * time.Second):
		t.Fatal("frame channel did not close after disconnect")
	}

	tr.Close()
}
