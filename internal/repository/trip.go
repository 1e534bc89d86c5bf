package repository

import (
	"context"

	"smartride/internal/domain"
)

// MutateFunc changes a trip aggregate in place. Returning an error aborts the
// mutation and nothing is persisted.
type MutateFunc func(trip *domain.Trip) error

// TripRepository defines the persistence operations for trips and their
// embedded reservations.
type TripRepository interface {
	// Create persists a new trip.
	Create(ctx context.Context, trip *domain.Trip) error

	// GetByID retrieves a trip by ID.
	GetByID(ctx context.Context, id string) (*domain.Trip, error)

	// Search retrieves trips matching the filter, earliest departure first.
	Search(ctx context.Context, filter domain.TripFilter) ([]*domain.Trip, error)

	// ListByDriver retrieves the driver's trips, latest departure first.
	ListByDriver(ctx context.Context, driverID string) ([]*domain.Trip, error)

	// ListByPassenger retrieves trips holding a reservation of the passenger,
	// latest departure first.
	ListByPassenger(ctx context.Context, passengerID string) ([]*domain.Trip, error)

	// Mutate loads the trip under exclusive access, applies fn and persists
	// the whole aggregate in one write. The seat check inside fn and the write
	// happen in the same isolation unit.
	Mutate(ctx context.Context, id string, fn MutateFunc) (*domain.Trip, error)

	// Delete removes the trip if guard returns nil, under the same exclusive
	// access as Mutate.
	Delete(ctx context.Context, id string, guard MutateFunc) error
}
