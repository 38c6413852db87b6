package client

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"liveinsights-client/pkg/metrics"
)

const (
	actionAudioChunk = "audio_chunk"
	actionEndSession = "end_session"
)

// audioChunkFrame is the outbound audio envelope. Audio bytes travel
// base64-encoded inside a text frame.
type audioChunkFrame struct {
	Action   string  `json:"action"`
	Data     string  `json:"data"`
	Duration float64 `json:"duration"`
	Speaker  string  `json:"speaker,omitempty"`
}

type controlFrame struct {
	Action string `json:"action"`
}

// SendAudioChunk base64-encodes the raw audio bytes and writes one
// audio_chunk frame. Sending is fire-and-forget: the protocol defines no
// acknowledgement or backpressure signal, so the only pushback is the
// transport write deadline.
func (c *Client) SendAudioChunk(data []byte, durationSeconds float64, speaker string) error {
	c.mu.Lock()
	connected := c.connected
	closed := c.closed
	c.mu.Unlock()

	if closed {
		return ErrClientClosed
	}
	if !connected {
		return ErrNotConnected
	}

	frame, err := json.Marshal(audioChunkFrame{
		Action:   actionAudioChunk,
		Data:     base64.StdEncoding.EncodeToString(data),
		Duration: durationSeconds,
		Speaker:  speaker,
	})
	if err != nil {
		return fmt.Errorf("failed to encode audio chunk: %w", err)
	}

	if err := c.transport.Send(frame); err != nil {
		return fmt.Errorf("failed to send audio chunk: %w", err)
	}

	metrics.RecordAudioChunk(len(data))
	return nil
}

// SendControl writes one control frame carrying only an action discriminant.
func (c *Client) SendControl(action string) error {
	c.mu.Lock()
	connected := c.connected
	closed := c.closed
	c.mu.Unlock()

	if closed {
		return ErrClientClosed
	}
	if !connected {
		return ErrNotConnected
	}

	frame, err := json.Marshal(controlFrame{Action: action})
	if err != nil {
		return fmt.Errorf("failed to encode control frame: %w", err)
	}
	return c.transport.Send(frame)
}

// EndSession asks the backend to finalize the session. The session state
// does not change until the session_finalized message arrives.
func (c *Client) EndSession() error {
	return c.SendControl(actionEndSession)
}
