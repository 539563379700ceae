package auth

import (
	"context"
	"sync"
)

// MemoryTokenStore keeps refresh tokens in process memory. It backs tests and
// local development; production uses the PostgreSQL-backed store.
type MemoryTokenStore struct {
	mu     sync.Mutex
	tokens map[string]string
	known  map[string]struct{}
}

// NewMemoryTokenStore constructs an empty in-memory token store. Users listed
// in knownUsers exist without an active session; Save implicitly registers
// its user.
func NewMemoryTokenStore(knownUsers ...string) *MemoryTokenStore {
	known := make(map[string]struct{}, len(knownUsers))
	for _, id := range knownUsers {
		known[id] = struct{}{}
	}
	return &MemoryTokenStore{
		tokens: make(map[string]string),
		known:  known,
	}
}

// Save stores token as the user's current refresh token.
func (s *MemoryTokenStore) Save(_ context.Context, userID, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.known[userID] = struct{}{}
	s.tokens[userID] = token
	return nil
}

// Replace performs the compare-and-swap under the store lock.
func (s *MemoryTokenStore) Replace(_ context.Context, userID, current, next string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.known[userID]; !ok {
		return ErrSessionNotFound
	}
	if stored, ok := s.tokens[userID]; !ok || stored != current {
		return ErrTokenMismatch
	}
	s.tokens[userID] = next
	return nil
}

// Clear removes the user's stored refresh token.
func (s *MemoryTokenStore) Clear(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, userID)
	return nil
}
