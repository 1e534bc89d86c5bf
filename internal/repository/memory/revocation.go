package memory

import (
	"context"
	"sync"
	"time"
)

// RevocationStore is the in-process counterpart of the redis revoked-token
// store. Entries are dropped lazily once expired.
type RevocationStore struct {
	mu      sync.Mutex
	revoked map[string]time.Time
	now     func() time.Time
}

// NewRevocationStore creates an empty revocation store.
func NewRevocationStore() *RevocationStore {
	return &RevocationStore{revoked: make(map[string]time.Time), now: time.Now}
}

// Revoke marks the token id as revoked for ttl.
func (s *RevocationStore) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[tokenID] = s.now().Add(ttl)
	return nil
}

// IsRevoked reports whether the token id was revoked and has not expired.
func (s *RevocationStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	until, ok := s.revoked[tokenID]
	if !ok {
		return false, nil
	}
	if !s.now().Before(until) {
		delete(s.revoked, tokenID)
		return false, nil
	}
	return true, nil
}
