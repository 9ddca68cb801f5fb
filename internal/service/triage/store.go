package triage

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dodohu918/Medical-chatbot/internal/model/triage"
)

var ErrSessionNotFound = errors.New("session not found")

// SessionStore is the repository the engine's callers own: sessions are
// loaded, handed to the engine, and written back. Abandoned sessions are
// never pruned; lifecycle equals process lifetime.
type SessionStore interface {
	Create(ctx context.Context) (triage.Session, error)
	Get(ctx context.Context, sessionID string) (triage.Session, error)
	Put(ctx context.Context, session triage.Session) error
}

// MemoryStore implements SessionStore with an in-process map.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]triage.Session
}

// NewMemoryStore bootstraps the in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]triage.Session),
	}
}

// Create provisions a fresh session parked on the greeting node.
func (s *MemoryStore) Create(_ context.Context) (triage.Session, error) {
	session := triage.Session{
		ID:          uuid.NewString(),
		CurrentNode: EntryNodeID,
		CreatedAt:   time.Now().UTC(),
	}

	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()

	return session, nil
}

// Get retrieves a session by identifier.
func (s *MemoryStore) Get(_ context.Context, sessionID string) (triage.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return triage.Session{}, ErrSessionNotFound
	}
	return session, nil
}

// Put writes a session back, inserting it if unknown.
func (s *MemoryStore) Put(_ context.Context, session triage.Session) error {
	if session.ID == "" {
		return ErrSessionNotFound
	}

	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()
	return nil
}
