package client

import "sync"

// Status is the session lifecycle state.
type Status string

const (
	StatusUninitialized Status = "uninitialized"
	StatusInitialized   Status = "initialized"
	StatusCompleted     Status = "completed"
	StatusError         Status = "error"
)

// SessionState tracks the single session's identity and lifecycle. It is the
// sole owner of the session ID: only the decoder writes it, exactly once, on
// the initialization message. Duplicate initialization frames are accepted
// idempotently and never change the identity.
type SessionState struct {
	mu        sync.RWMutex
	sessionID string
	projectID string
	status    Status
}

// NewSessionState creates a session in the uninitialized state.
func NewSessionState(projectID string) *SessionState {
	return &SessionState{
		projectID: projectID,
		status:    StatusUninitialized,
	}
}

// Initialize captures the backend-assigned identity and moves to the
// initialized state. Re-initialization of an already-initialized session is a
// no-op that reports changed=false; the identity never changes.
func (s *SessionState) Initialize(sessionID, projectID string) (changed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == StatusInitialized || s.status == StatusCompleted {
		return false
	}

	s.sessionID = sessionID
	if projectID != "" {
		s.projectID = projectID
	}
	s.status = StatusInitialized
	return true
}

// Complete moves the session to the completed state. A finalization that
// arrives before initialization still completes the session and captures the
// identity it carries, tolerating a lost init frame.
func (s *SessionState) Complete(sessionID string) (changed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == StatusCompleted {
		return false
	}
	if s.sessionID == "" && sessionID != "" {
		s.sessionID = sessionID
	}
	s.status = StatusCompleted
	return true
}

// Fail moves the session to the error state. Reachable from any state.
func (s *SessionState) Fail() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = StatusError
}

// Snapshot is a point-in-time copy of the session's identity and status.
type Snapshot struct {
	SessionID string
	ProjectID string
	Status    Status
}

// Snapshot returns a consistent copy of the current session state.
func (s *SessionState) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		SessionID: s.sessionID,
		ProjectID: s.projectID,
		Status:    s.status,
	}
}

// SessionID returns the backend-assigned session ID, empty until initialized.
func (s *SessionState) SessionID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessionID
}

// ProjectID returns the project this session belongs to.
func (s *SessionState) ProjectID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.projectID
}

// Status returns the current lifecycle state.
func (s *SessionState) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}
