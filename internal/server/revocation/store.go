// Package revocation records, per user, the instant before which issued
// session tokens are no longer accepted.
package revocation

import (
	"context"
	"sync"
	"time"
)

type Store interface {
	// Revoke rejects every token of userID issued before at.
	Revoke(ctx context.Context, userID string, at time.Time) error
	// RevokedAt returns the user's mark, if one is set.
	RevokedAt(ctx context.Context, userID string) (time.Time, bool, error)
}

// MemoryStore keeps marks in process memory. Marks only move forward.
type MemoryStore struct {
	mu    sync.RWMutex
	marks map[string]time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{marks: make(map[string]time.Time)}
}

func (s *MemoryStore) Revoke(_ context.Context, userID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.marks[userID]; !ok || at.After(prev) {
		s.marks[userID] = at
	}
	return nil
}

func (s *MemoryStore) RevokedAt(_ context.Context, userID string) (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	at, ok := s.marks[userID]
	return at, ok, nil
}
