package client

import (
	"errors"
	"fmt"
)

var (
	ErrNotConnected     = errors.New("client is not connected")
	ErrAlreadyConnected = errors.New("client is already connected")
	ErrClientClosed     = errors.New("client is closed")
)

// ErrorStage identifies where in the pipeline a reported error originated.
type ErrorStage string

const (
	// StageTransport covers connection-level failures.
	StageTransport ErrorStage = "transport"
	// StageEnvelope covers frames that could not be parsed or carried no
	// type discriminant.
	StageEnvelope ErrorStage = "envelope"
	// StageProtocol covers explicit error messages sent by the backend.
	StageProtocol ErrorStage = "protocol"
)

// ClientError is what the error channel carries. Protocol errors hold the
// backend's message text verbatim.
type ClientError struct {
	Stage   ErrorStage
	Message string
}

func (e ClientError) Error() string {
	return fmt.Sprintf("%s error: %s", e.Stage, e.Message)
}
