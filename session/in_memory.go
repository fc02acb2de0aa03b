// Package session provides SessionStore implementations. The default
// InMemoryStore is volatile and process local; durable backends live in
// subpackages (see session/sqlite).
package session

import (
	"context"
	"sync"

	"github.com/turnloop/turnloop/core"
)

// InMemoryStore is a volatile SessionStore implementation storing sessions in
// a process local map. It is safe for concurrent access and best suited for
// tests or ephemeral demo servers. The store-level lock only guards the map of
// sessions; appends on a single session serialize on that session's own lock,
// so turns on distinct ids never contend with each other. Returned snapshots
// are clones to prevent external mutation of internal state.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*core.Session
}

// NewInMemoryStore constructs an empty in-memory session store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string]*core.Session)}
}

// Load returns an existing session (clone) or creates a fresh active one on
// first reference to the id.
func (s *InMemoryStore) Load(ctx context.Context, sessionID string) (*core.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.getOrCreate(sessionID).Clone(), nil
}

// Append atomically adds a message to the session history. Cancellation is
// checked before the write so an abandoned turn never records a partial append.
func (s *InMemoryStore) Append(ctx context.Context, sessionID string, m core.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.getOrCreate(sessionID).Append(m)
	return nil
}

// Messages returns a consistent ordered snapshot of the session history.
func (s *InMemoryStore) Messages(ctx context.Context, sessionID string) ([]core.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.getOrCreate(sessionID).GetMessages(), nil
}

// SetStatus transitions the session lifecycle state.
func (s *InMemoryStore) SetStatus(ctx context.Context, sessionID string, status core.Status) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.getOrCreate(sessionID).SetStatus(status)
	return nil
}

// getOrCreate resolves the shared session instance for an id, allocating it on
// first reference. The map lock is held only for the lookup, never across
// message writes.
func (s *InMemoryStore) getOrCreate(sessionID string) *core.Session {
	s.mu.RLock()
	sess, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if ok {
		return sess
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[sessionID]; ok {
		return sess
	}
	sess = core.NewSession(sessionID)
	s.sessions[sessionID] = sess
	return sess
}
