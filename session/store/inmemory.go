// Package store provides session persistence backends.
package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sweetpotato0/docqa/errors"
	"github.com/sweetpotato0/docqa/session"
)

// InMemoryStore keeps sessions in process memory. Suitable for tests and
// single-node deployments.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*session.Session
}

// NewInMemoryStore creates an empty in-memory session store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		sessions: make(map[string]*session.Session),
	}
}

// Append implements session.Store.
func (s *InMemoryStore) Append(ctx context.Context, sessionID string, turns ...session.Turn) error {
	if sessionID == "" {
		return fmt.Errorf("session id cannot be empty: %w", errors.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	sess, ok := s.sessions[sessionID]
	if !ok {
		sess = &session.Session{ID: sessionID, CreatedAt: now}
		s.sessions[sessionID] = sess
	}
	sess.Turns = append(sess.Turns, turns...)
	sess.UpdatedAt = now
	return nil
}

// Get implements session.Store.
func (s *InMemoryStore) Get(ctx context.Context, sessionID string) (*session.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", sessionID, errors.ErrNotFound)
	}

	out := *sess
	out.Turns = make([]session.Turn, len(sess.Turns))
	copy(out.Turns, sess.Turns)
	return &out, nil
}

// Delete implements session.Store.
func (s *InMemoryStore) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, sessionID)
	return nil
}
