package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"smartride/internal/domain"
	"smartride/internal/repository"
)

const tripColumns = `id, origin, destination, departure_at, driver_id, driver_name, seat_capacity, reserved_seats, price, description, reservations, created_at, updated_at`

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// TripRepository is a PostgreSQL implementation of repository.TripRepository.
// A trip and its reservations live in one row so every mutation is a single
// row write.
type TripRepository struct {
	db *sql.DB
}

// NewTripRepository creates a new PostgreSQL trip repository.
func NewTripRepository(db *sql.DB) *TripRepository {
	return &TripRepository{db: db}
}

// Create persists a new trip.
func (r *TripRepository) Create(ctx context.Context, trip *domain.Trip) error {
	query := `
		INSERT INTO trips (` + tripColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	reservations, err := encodeReservations(trip.Reservations)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, query,
		trip.ID,
		trip.Origin,
		trip.Destination,
		trip.DepartureAt,
		trip.DriverID,
		trip.DriverName,
		trip.SeatCapacity,
		trip.ReservedSeats,
		trip.Price,
		trip.Description,
		reservations,
		trip.CreatedAt,
		trip.UpdatedAt,
	)
	return err
}

// GetByID retrieves a trip by ID.
func (r *TripRepository) GetByID(ctx context.Context, id string) (*domain.Trip, error) {
	query := `SELECT ` + tripColumns + ` FROM trips WHERE id = $1`

	trip, err := scanTrip(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return trip, nil
}

// Search retrieves trips matching the filter, earliest departure first.
func (r *TripRepository) Search(ctx context.Context, filter domain.TripFilter) ([]*domain.Trip, error) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Origin != "" {
		conds = append(conds, "origin ILIKE "+arg("%"+likeEscaper.Replace(filter.Origin)+"%"))
	}
	if filter.Destination != "" {
		conds = append(conds, "destination ILIKE "+arg("%"+likeEscaper.Replace(filter.Destination)+"%"))
	}
	if !filter.DepartureDate.IsZero() {
		day := truncateDay(filter.DepartureDate)
		conds = append(conds, "departure_at >= "+arg(day))
		conds = append(conds, "departure_at < "+arg(day.AddDate(0, 0, 1)))
	}
	if !filter.DepartsAfter.IsZero() {
		conds = append(conds, "departure_at >= "+arg(filter.DepartsAfter))
	}
	if filter.MinSeats > 0 {
		conds = append(conds, "seat_capacity - reserved_seats >= "+arg(filter.MinSeats))
	}

	query := `SELECT ` + tripColumns + ` FROM trips`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY departure_at ASC`

	return r.list(ctx, query, args...)
}

// ListByDriver retrieves the driver's trips, latest departure first.
func (r *TripRepository) ListByDriver(ctx context.Context, driverID string) ([]*domain.Trip, error) {
	query := `SELECT ` + tripColumns + ` FROM trips WHERE driver_id = $1 ORDER BY departure_at DESC`
	return r.list(ctx, query, driverID)
}

// ListByPassenger retrieves trips holding a reservation of the passenger.
func (r *TripRepository) ListByPassenger(ctx context.Context, passengerID string) ([]*domain.Trip, error) {
	containment, err := json.Marshal([]map[string]string{{"passenger_id": passengerID}})
	if err != nil {
		return nil, err
	}
	query := `SELECT ` + tripColumns + ` FROM trips WHERE reservations @> $1::jsonb ORDER BY departure_at DESC`
	return r.list(ctx, query, string(containment))
}

// Mutate locks the trip row with SELECT ... FOR UPDATE, applies fn and writes
// the aggregate back before the lock is released.
func (r *TripRepository) Mutate(ctx context.Context, id string, fn repository.MutateFunc) (*domain.Trip, error) {
	var out *domain.Trip
	err := withTx(ctx, r.db, func(q Querier) error {
		trip, err := lockTrip(ctx, q, id)
		if err != nil {
			return err
		}
		if err := fn(trip); err != nil {
			return err
		}
		if err := updateTrip(ctx, q, trip); err != nil {
			return err
		}
		out = trip
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete locks the trip row, runs guard and deletes the row if guard passes.
func (r *TripRepository) Delete(ctx context.Context, id string, guard repository.MutateFunc) error {
	return withTx(ctx, r.db, func(q Querier) error {
		trip, err := lockTrip(ctx, q, id)
		if err != nil {
			return err
		}
		if guard != nil {
			if err := guard(trip); err != nil {
				return err
			}
		}
		result, err := q.ExecContext(ctx, `DELETE FROM trips WHERE id = $1`, id)
		if err != nil {
			return err
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if rowsAffected == 0 {
			return repository.ErrNotFound
		}
		return nil
	})
}

func (r *TripRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Trip, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	trips := []*domain.Trip{}
	for rows.Next() {
		trip, err := scanTrip(rows)
		if err != nil {
			return nil, err
		}
		trips = append(trips, trip)
	}
	return trips, rows.Err()
}

func lockTrip(ctx context.Context, q Querier, id string) (*domain.Trip, error) {
	query := `SELECT ` + tripColumns + ` FROM trips WHERE id = $1 FOR UPDATE`

	trip, err := scanTrip(q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return trip, nil
}

func updateTrip(ctx context.Context, q Querier, trip *domain.Trip) error {
	query := `
		UPDATE trips
		SET origin = $1, destination = $2, departure_at = $3, seat_capacity = $4, reserved_seats = $5, price = $6, description = $7, reservations = $8, updated_at = $9
		WHERE id = $10
	`

	reservations, err := encodeReservations(trip.Reservations)
	if err != nil {
		return err
	}

	result, err := q.ExecContext(ctx, query,
		trip.Origin,
		trip.Destination,
		trip.DepartureAt,
		trip.SeatCapacity,
		trip.ReservedSeats,
		trip.Price,
		trip.Description,
		reservations,
		trip.UpdatedAt,
		trip.ID,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return repository.ErrNotFound
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrip(row rowScanner) (*domain.Trip, error) {
	var trip domain.Trip
	var reservations []byte

	err := row.Scan(
		&trip.ID,
		&trip.Origin,
		&trip.Destination,
		&trip.DepartureAt,
		&trip.DriverID,
		&trip.DriverName,
		&trip.SeatCapacity,
		&trip.ReservedSeats,
		&trip.Price,
		&trip.Description,
		&reservations,
		&trip.CreatedAt,
		&trip.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(reservations) > 0 {
		if err := json.Unmarshal(reservations, &trip.Reservations); err != nil {
			return nil, fmt.Errorf("decode reservations of trip %s: %w", trip.ID, err)
		}
	}

	return &trip, nil
}

// encodeReservations returns text so lib/pq sends it as jsonb, not bytea.
func encodeReservations(reservations []domain.Reservation) (string, error) {
	if reservations == nil {
		reservations = []domain.Reservation{}
	}
	b, err := json.Marshal(reservations)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Ensure TripRepository implements repository.TripRepository.
var _ repository.TripRepository = (*TripRepository)(nil)
