package redis

import (
	"context"
	"time"

	"smartride/internal/domain"
)

// TripCache defines read-through caching of trip aggregates. SetTrip never
// replaces a newer revision of the same trip, and InvalidateTrip blocks
// repopulation for the cache TTL.
type TripCache interface {
	GetTrip(ctx context.Context, tripID string) (*domain.Trip, error)
	SetTrip(ctx context.Context, trip *domain.Trip) error
	InvalidateTrip(ctx context.Context, tripID string) error
}

// TokenRevoker defines the revoked-token store used by logout and the auth
// middleware.
type TokenRevoker interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// Ensure concrete types implement interfaces.
var (
	_ TripCache    = (*CacheStore)(nil)
	_ TokenRevoker = (*RevocationStore)(nil)
)
