package tests

import (
	"context"
	"io"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"smartride/internal/auth"
	"smartride/internal/domain"
	"smartride/internal/metrics"
	"smartride/internal/repository"
	"smartride/internal/repository/memory"
	"smartride/internal/service"
)

// ──────────────────────────────────────────────
// MOCK TRIP REPOSITORY
// ──────────────────────────────────────────────

// MockTripRepository wraps the in-memory repository with call counters and
// error injection.
type MockTripRepository struct {
	*memory.TripRepository

	// Counters for verification
	MutateCallCount int32
	DeleteCallCount int32

	// Error injection. CommitError is returned after fn succeeded, as a
	// failing write would, and nothing is persisted.
	CommitError error
	SearchError error
}

// NewMockTripRepository creates a new mock trip repository.
func NewMockTripRepository() *MockTripRepository {
	return &MockTripRepository{TripRepository: memory.NewTripRepository()}
}

func (m *MockTripRepository) Mutate(ctx context.Context, id string, fn repository.MutateFunc) (*domain.Trip, error) {
	atomic.AddInt32(&m.MutateCallCount, 1)
	if m.CommitError != nil {
		return m.TripRepository.Mutate(ctx, id, func(t *domain.Trip) error {
			if err := fn(t); err != nil {
				return err
			}
			return m.CommitError
		})
	}
	return m.TripRepository.Mutate(ctx, id, fn)
}

func (m *MockTripRepository) Delete(ctx context.Context, id string, guard repository.MutateFunc) error {
	atomic.AddInt32(&m.DeleteCallCount, 1)
	return m.TripRepository.Delete(ctx, id, guard)
}

func (m *MockTripRepository) Search(ctx context.Context, filter domain.TripFilter) ([]*domain.Trip, error) {
	if m.SearchError != nil {
		return nil, m.SearchError
	}
	return m.TripRepository.Search(ctx, filter)
}

// GetTrip returns the stored trip for assertions, or nil.
func (m *MockTripRepository) GetTrip(id string) *domain.Trip {
	trip, err := m.TripRepository.GetByID(context.Background(), id)
	if err != nil {
		return nil
	}
	return trip
}

// ──────────────────────────────────────────────
// MOCK TRIP CACHE
// ──────────────────────────────────────────────

// MockTripCache is a mock implementation of TripCache with the same
// revision rules as the redis store: SetTrip never replaces a newer or equal
// revision, and InvalidateTrip leaves a tombstone.
type MockTripCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry

	// Counters for verification
	GetCallCount        int32
	HitCount            int32
	StaleSetCount       int32
	InvalidateCallCount int32

	// Error injection
	GetError error
	SetError error
}

type cacheEntry struct {
	trip     *domain.Trip // nil for a tombstone
	revision int64
}

// NewMockTripCache creates a new mock trip cache.
func NewMockTripCache() *MockTripCache {
	return &MockTripCache{entries: make(map[string]cacheEntry)}
}

func (m *MockTripCache) GetTrip(ctx context.Context, tripID string) (*domain.Trip, error) {
	atomic.AddInt32(&m.GetCallCount, 1)
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[tripID]
	if !ok || entry.trip == nil {
		return nil, nil
	}
	atomic.AddInt32(&m.HitCount, 1)
	return entry.trip.Clone(), nil
}

func (m *MockTripCache) SetTrip(ctx context.Context, trip *domain.Trip) error {
	if m.SetError != nil {
		return m.SetError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if current, ok := m.entries[trip.ID]; ok && current.revision >= trip.Revision() {
		atomic.AddInt32(&m.StaleSetCount, 1)
		return nil
	}
	m.entries[trip.ID] = cacheEntry{trip: trip.Clone(), revision: trip.Revision()}
	return nil
}

func (m *MockTripCache) InvalidateTrip(ctx context.Context, tripID string) error {
	atomic.AddInt32(&m.InvalidateCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[tripID] = cacheEntry{revision: math.MaxInt64}
	return nil
}

// Cached returns the cached trip, or nil on a miss or tombstone.
func (m *MockTripCache) Cached(tripID string) *domain.Trip {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[tripID].trip.Clone()
}

// ──────────────────────────────────────────────
// FIXTURES
// ──────────────────────────────────────────────

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func driverActor(id string) domain.Actor {
	return domain.Actor{Identity: id, DisplayName: "Driver " + id, Role: domain.RoleDriver}
}

func passengerActor(id string) domain.Actor {
	return domain.Actor{Identity: id, DisplayName: "Passenger " + id, Role: domain.RolePassenger}
}

// fixture bundles the services under test with their collaborators.
type fixture struct {
	tripRepo     *MockTripRepository
	cache        *MockTripCache
	registry     *prometheus.Registry
	recorder     *metrics.Recorder
	trips        *service.TripService
	reservations *service.ReservationService
}

func newFixture() *fixture {
	tripRepo := NewMockTripRepository()
	cache := NewMockTripCache()
	registry := prometheus.NewRegistry()
	recorder := metrics.NewRecorder(registry)
	logger := newTestLogger()

	return &fixture{
		tripRepo:     tripRepo,
		cache:        cache,
		registry:     registry,
		recorder:     recorder,
		trips:        service.NewTripService(tripRepo, cache, recorder, logger),
		reservations: service.NewReservationService(tripRepo, cache, recorder, logger),
	}
}

// counter returns the value of a smartride counter series, 0 if unset.
func (f *fixture) counter(name, operation, outcome string) float64 {
	families, err := f.registry.Gather()
	if err != nil {
		return -1
	}
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, m := range family.GetMetric() {
			labels := map[string]string{}
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			if labels["operation"] == operation && labels["outcome"] == outcome {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func tomorrow() time.Time {
	return time.Now().Add(24 * time.Hour)
}

// publishTrip creates a trip of the given capacity owned by driver-1.
func (f *fixture) publishTrip(ctx context.Context, capacity int) (*domain.Trip, error) {
	return f.trips.CreateTrip(ctx, service.CreateTripRequest{
		Actor:        driverActor("driver-1"),
		Origin:       "Paris",
		Destination:  "Lyon",
		DepartureAt:  time.Now().Add(48 * time.Hour),
		SeatCapacity: capacity,
		Price:        25,
	})
}

func newAuthService() *service.AuthService {
	return service.NewAuthService(
		memory.NewUserRepository(),
		auth.NewTokenIssuer("test-secret", time.Hour),
		memory.NewRevocationStore(),
		4, // bcrypt.MinCost keeps the suite fast
		newTestLogger(),
	)
}
