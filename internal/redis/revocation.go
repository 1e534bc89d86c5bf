package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const revokedTokenPrefix = "revoked:token:"

// RevocationStore records logged-out tokens until they would have expired
// anyway, so revocations survive restarts.
type RevocationStore struct {
	client *redis.Client
}

// NewRevocationStore creates a new RevocationStore.
func NewRevocationStore(client *redis.Client) *RevocationStore {
	return &RevocationStore{client: client}
}

// Revoke marks the token id as revoked for ttl. Non-positive ttl is a no-op
// since the token is already expired.
func (s *RevocationStore) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return s.client.Set(ctx, revokedTokenPrefix+tokenID, "1", ttl).Err()
}

// IsRevoked reports whether the token id was revoked.
func (s *RevocationStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := s.client.Exists(ctx, revokedTokenPrefix+tokenID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
