package core

import (
	"context"
	"sync"
	"time"
)

// Status describes the lifecycle state of a session.
type Status string

const (
	// StatusActive marks a session that can accept further turns.
	StatusActive Status = "active"
	// StatusCompleted marks a session whose most recent turn finished with a
	// validated structured response.
	StatusCompleted Status = "completed"
	// StatusFailed marks a session whose most recent turn ended in a terminal
	// failure. The next turn on the same id resets it to active.
	StatusFailed Status = "failed"
)

// Session is a conversational container tracking an ordered, append-only
// message history plus a lifecycle status. It is safe for concurrent access;
// appends on the same session serialize on the session's own lock, never on a
// lock shared across sessions.
//
// Contract:
//   - Append is atomic: a message is either fully recorded or not at all
//   - GetMessages returns a defensive copy to avoid external mutation
//   - Clone performs deep copies for safe divergence.
type Session struct {
	ID       string    `json:"id"`
	Messages []Message `json:"messages"`
	Status   Status    `json:"status"`
	Created  time.Time `json:"created"`
	Updated  time.Time `json:"updated"`
	mu       sync.RWMutex
}

// NewSession creates an empty active session with the given id.
func NewSession(id string) *Session {
	now := time.Now().UTC()
	return &Session{ID: id, Messages: []Message{}, Status: StatusActive, Created: now, Updated: now}
}

// Append adds a message to the history updating the Updated timestamp.
func (s *Session) Append(m Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Messages = append(s.Messages, m)
	s.Updated = time.Now().UTC()
}

// GetMessages returns a defensive copy of the ordered message history.
func (s *Session) GetMessages() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := make([]Message, len(s.Messages))
	copy(msgs, s.Messages)
	return msgs
}

// Len returns the number of messages recorded so far.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.Messages)
}

// SetStatus transitions the session lifecycle state.
func (s *Session) SetStatus(st Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Status = st
	s.Updated = time.Now().UTC()
}

// GetStatus returns the current lifecycle state.
func (s *Session) GetStatus() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Status
}

// Clone returns a deep copy of the session safe for independent mutation.
func (s *Session) Clone() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	clone := &Session{ID: s.ID, Messages: make([]Message, len(s.Messages)), Status: s.Status, Created: s.Created, Updated: s.Updated}
	copy(clone.Messages, s.Messages)
	return clone
}

// SessionStore persists sessions and their evolving message history. Sessions
// for different ids are fully independent; implementations must serialize
// concurrent Append calls on the same id (per-key, not via a single global
// lock) so each session's history has a deterministic total order.
type SessionStore interface {
	// Load returns an existing session snapshot or a freshly initialized
	// active one on first reference to the id.
	Load(ctx context.Context, id string) (*Session, error)
	// Append atomically adds a message to the session's history.
	Append(ctx context.Context, id string, m Message) error
	// Messages returns a consistent ordered snapshot of the history.
	Messages(ctx context.Context, id string) ([]Message, error)
	// SetStatus transitions the session lifecycle state.
	SetStatus(ctx context.Context, id string, status Status) error
}
