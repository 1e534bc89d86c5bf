package redis

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"smartride/internal/domain"
)

// TripCacheTTL bounds how long a cached trip or tombstone lives.
const TripCacheTTL = 60 * time.Second

const tripCachePrefix = "cache:trip:"

// tombstoneRevision outranks every real revision (microsecond timestamps).
const tombstoneRevision = "9007199254740991"

// setIfNewer writes a trip hash unless the key already holds the same or a
// newer revision. KEYS[1] = key, ARGV = revision, payload, ttl in ms.
var setIfNewer = redis.NewScript(`
local current = redis.call('HGET', KEYS[1], 'rev')
if current and tonumber(current) >= tonumber(ARGV[1]) then
	return 0
end
redis.call('HSET', KEYS[1], 'rev', ARGV[1], 'data', ARGV[2])
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return 1
`)

// CacheStore handles trip caching in Redis. Each trip is a hash holding the
// JSON payload and the revision it was taken at.
type CacheStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCacheStore creates a new CacheStore.
func NewCacheStore(client *redis.Client) *CacheStore {
	return &CacheStore{client: client, ttl: TripCacheTTL}
}

// CachedTrip is the JSON form of a trip in the cache.
type CachedTrip struct {
	ID            string               `json:"id"`
	Origin        string               `json:"origin"`
	Destination   string               `json:"destination"`
	DepartureAt   time.Time            `json:"departure_at"`
	DriverID      string               `json:"driver_id"`
	DriverName    string               `json:"driver_name"`
	SeatCapacity  int                  `json:"seat_capacity"`
	ReservedSeats int                  `json:"reserved_seats"`
	Price         float64              `json:"price"`
	Description   string               `json:"description"`
	Reservations  []domain.Reservation `json:"reservations"`
	CreatedAt     time.Time            `json:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at"`
}

// GetTrip retrieves a trip from cache. A miss or a tombstone returns (nil, nil).
func (s *CacheStore) GetTrip(ctx context.Context, tripID string) (*domain.Trip, error) {
	data, err := s.client.HGet(ctx, tripCachePrefix+tripID, "data").Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // Cache miss
		}
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil // Deleted
	}

	var cached CachedTrip
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, err
	}
	return cached.toDomain(), nil
}

// SetTrip stores a trip unless the cache already holds the same or a newer
// revision of it.
func (s *CacheStore) SetTrip(ctx context.Context, trip *domain.Trip) error {
	data, err := json.Marshal(fromDomain(trip))
	if err != nil {
		return err
	}
	return s.write(ctx, trip.ID, strconv.FormatInt(trip.Revision(), 10), data)
}

// InvalidateTrip replaces the entry with a tombstone so that reads started
// before the invalidation cannot repopulate it until the TTL expires.
func (s *CacheStore) InvalidateTrip(ctx context.Context, tripID string) error {
	return s.write(ctx, tripID, tombstoneRevision, []byte{})
}

func (s *CacheStore) write(ctx context.Context, tripID, revision string, data []byte) error {
	keys := []string{tripCachePrefix + tripID}
	return setIfNewer.Run(ctx, s.client, keys, revision, data, s.ttl.Milliseconds()).Err()
}

func fromDomain(t *domain.Trip) CachedTrip {
	return CachedTrip{
		ID:            t.ID,
		Origin:        t.Origin,
		Destination:   t.Destination,
		DepartureAt:   t.DepartureAt,
		DriverID:      t.DriverID,
		DriverName:    t.DriverName,
		SeatCapacity:  t.SeatCapacity,
		ReservedSeats: t.ReservedSeats,
		Price:         t.Price,
		Description:   t.Description,
		Reservations:  t.Reservations,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
	}
}

func (c CachedTrip) toDomain() *domain.Trip {
	return &domain.Trip{
		ID:            c.ID,
		Origin:        c.Origin,
		Destination:   c.Destination,
		DepartureAt:   c.DepartureAt,
		DriverID:      c.DriverID,
		DriverName:    c.DriverName,
		SeatCapacity:  c.SeatCapacity,
		ReservedSeats: c.ReservedSeats,
		Price:         c.Price,
		Description:   c.Description,
		Reservations:  c.Reservations,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
}
