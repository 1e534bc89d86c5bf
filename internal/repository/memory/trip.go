// Package memory provides in-process repositories for local development and
// tests. State is lost on restart.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"smartride/internal/domain"
	"smartride/internal/repository"
)

// TripRepository keeps trips in a map. Each trip has its own lock so
// mutations on different trips never wait on each other.
type TripRepository struct {
	mu    sync.RWMutex
	trips map[string]*tripEntry
}

type tripEntry struct {
	mu   sync.Mutex
	trip *domain.Trip
}

// NewTripRepository creates an empty in-memory trip repository.
func NewTripRepository() *TripRepository {
	return &TripRepository{trips: make(map[string]*tripEntry)}
}

// Create persists a new trip.
func (r *TripRepository) Create(ctx context.Context, trip *domain.Trip) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trips[trip.ID] = &tripEntry{trip: trip.Clone()}
	return nil
}

// GetByID retrieves a trip by ID.
func (r *TripRepository) GetByID(ctx context.Context, id string) (*domain.Trip, error) {
	entry, ok := r.entry(id)
	if !ok {
		return nil, repository.ErrNotFound
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.trip == nil {
		return nil, repository.ErrNotFound
	}
	return entry.trip.Clone(), nil
}

// Search retrieves trips matching the filter, earliest departure first.
func (r *TripRepository) Search(ctx context.Context, filter domain.TripFilter) ([]*domain.Trip, error) {
	var dayStart, dayEnd time.Time
	if !filter.DepartureDate.IsZero() {
		y, m, d := filter.DepartureDate.Date()
		dayStart = time.Date(y, m, d, 0, 0, 0, 0, filter.DepartureDate.Location())
		dayEnd = dayStart.AddDate(0, 0, 1)
	}

	trips := r.collect(func(t *domain.Trip) bool {
		if filter.Origin != "" && !containsFold(t.Origin, filter.Origin) {
			return false
		}
		if filter.Destination != "" && !containsFold(t.Destination, filter.Destination) {
			return false
		}
		if !dayStart.IsZero() && (t.DepartureAt.Before(dayStart) || !t.DepartureAt.Before(dayEnd)) {
			return false
		}
		if !filter.DepartsAfter.IsZero() && t.DepartureAt.Before(filter.DepartsAfter) {
			return false
		}
		if filter.MinSeats > 0 && t.RemainingSeats() < filter.MinSeats {
			return false
		}
		return true
	})

	sort.SliceStable(trips, func(i, j int) bool {
		return trips[i].DepartureAt.Before(trips[j].DepartureAt)
	})
	return trips, nil
}

// ListByDriver retrieves the driver's trips, latest departure first.
func (r *TripRepository) ListByDriver(ctx context.Context, driverID string) ([]*domain.Trip, error) {
	trips := r.collect(func(t *domain.Trip) bool {
		return t.DriverID == driverID
	})
	sortDesc(trips)
	return trips, nil
}

// ListByPassenger retrieves trips holding a reservation of the passenger.
func (r *TripRepository) ListByPassenger(ctx context.Context, passengerID string) ([]*domain.Trip, error) {
	trips := r.collect(func(t *domain.Trip) bool {
		_, ok := t.ReservationFor(passengerID)
		return ok
	})
	sortDesc(trips)
	return trips, nil
}

// Mutate applies fn to a private copy while holding the trip's lock and
// swaps the copy in only if fn succeeds.
func (r *TripRepository) Mutate(ctx context.Context, id string, fn repository.MutateFunc) (*domain.Trip, error) {
	entry, ok := r.entry(id)
	if !ok {
		return nil, repository.ErrNotFound
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.trip == nil {
		return nil, repository.ErrNotFound
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	working := entry.trip.Clone()
	if err := fn(working); err != nil {
		return nil, err
	}
	entry.trip = working

	return working.Clone(), nil
}

// Delete removes the trip if guard passes.
func (r *TripRepository) Delete(ctx context.Context, id string, guard repository.MutateFunc) error {
	entry, ok := r.entry(id)
	if !ok {
		return repository.ErrNotFound
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.trip == nil {
		return repository.ErrNotFound
	}

	if guard != nil {
		if err := guard(entry.trip.Clone()); err != nil {
			return err
		}
	}

	// A concurrent Mutate may already hold a pointer to entry; a nil trip
	// makes it report not-found instead of resurrecting the row.
	entry.trip = nil

	r.mu.Lock()
	delete(r.trips, id)
	r.mu.Unlock()

	return nil
}

func (r *TripRepository) entry(id string) (*tripEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.trips[id]
	return entry, ok
}

func (r *TripRepository) collect(keep func(*domain.Trip) bool) []*domain.Trip {
	r.mu.RLock()
	entries := make([]*tripEntry, 0, len(r.trips))
	for _, e := range r.trips {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	trips := []*domain.Trip{}
	for _, e := range entries {
		e.mu.Lock()
		if e.trip != nil && keep(e.trip) {
			trips = append(trips, e.trip.Clone())
		}
		e.mu.Unlock()
	}
	return trips
}

func sortDesc(trips []*domain.Trip) {
	sort.SliceStable(trips, func(i, j int) bool {
		return trips[i].DepartureAt.After(trips[j].DepartureAt)
	})
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

var _ repository.TripRepository = (*TripRepository)(nil)
