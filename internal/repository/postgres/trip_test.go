package postgres

import (
	"context"
	"database/sql/driver"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartride/internal/domain"
	"smartride/internal/repository"
)

const tripID = "9b2d7c1e-4f3a-4e21-8c5d-0a1b2c3d4e5f"

var tripRowColumns = strings.Split(strings.ReplaceAll(tripColumns, " ", ""), ",")

func tripRow(reservations string, reserved int) *sqlmock.Rows {
	now := time.Date(2031, 1, 1, 8, 0, 0, 0, time.UTC)
	return sqlmock.NewRows(tripRowColumns).AddRow(
		tripID, "Paris", "Lyon", now.Add(48*time.Hour), "driver-1", "Dora",
		4, reserved, 25.0, "", []byte(reservations), now, now,
	)
}

// jsonContains matches a jsonb argument holding every fragment.
type jsonContains []string

func (m jsonContains) Match(v driver.Value) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	for _, fragment := range m {
		if !strings.Contains(s, fragment) {
			return false
		}
	}
	return true
}

func TestTripRepository_MutateWritesAggregateUnderLock(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM trips WHERE id = \$1 FOR UPDATE`).
		WithArgs(tripID).
		WillReturnRows(tripRow(`[]`, 0))
	mock.ExpectExec(`UPDATE trips`).
		WithArgs("Paris", "Lyon", sqlmock.AnyArg(), 4, 2, 25.0, "",
			jsonContains{`"passenger_id":"p1"`, `"seats":2`}, sqlmock.AnyArg(), tripID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	repo := NewTripRepository(db)
	trip, err := repo.Mutate(context.Background(), tripID, func(trip *domain.Trip) error {
		trip.Reservations = append(trip.Reservations, domain.Reservation{ID: "r1", PassengerID: "p1", Seats: 2})
		trip.ReservedSeats += 2
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, trip.ReservedSeats)
	assert.Len(t, trip.Reservations, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTripRepository_MutateRejectedRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs(tripID).
		WillReturnRows(tripRow(`[{"id":"r1","passenger_id":"p1","passenger_name":"Pat","seats":4,"booked_at":"2031-01-01T08:00:00Z"}]`, 4))
	mock.ExpectRollback()

	rejection := domain.InsufficientSeats(0)
	repo := NewTripRepository(db)
	_, err = repo.Mutate(context.Background(), tripID, func(trip *domain.Trip) error {
		if len(trip.Reservations) != 1 {
			return errors.New("reservations not decoded")
		}
		if !trip.CanAllocate(1) {
			return rejection
		}
		return nil
	})
	assert.ErrorIs(t, err, rejection)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTripRepository_MutateMissingTrip(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).WithArgs(tripID).WillReturnRows(sqlmock.NewRows(tripRowColumns))
	mock.ExpectRollback()

	called := false
	_, err = NewTripRepository(db).Mutate(context.Background(), tripID, func(*domain.Trip) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.False(t, called)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTripRepository_MutateWriteFailureRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	writeErr := errors.New("check constraint violated")
	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).WithArgs(tripID).WillReturnRows(tripRow(`[]`, 0))
	mock.ExpectExec(`UPDATE trips`).WillReturnError(writeErr)
	mock.ExpectRollback()

	_, err = NewTripRepository(db).Mutate(context.Background(), tripID, func(trip *domain.Trip) error {
		trip.SeatCapacity = 1
		return nil
	})
	assert.ErrorIs(t, err, writeErr)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTripRepository_DeleteGuarded(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	blocked := domain.ConflictError{Msg: "has reservations"}

	// Guard refuses: nothing is deleted.
	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).WithArgs(tripID).WillReturnRows(tripRow(`[{"id":"r1","passenger_id":"p1","seats":1}]`, 1))
	mock.ExpectRollback()

	// Guard passes.
	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).WithArgs(tripID).WillReturnRows(tripRow(`[]`, 0))
	mock.ExpectExec(`DELETE FROM trips WHERE id = \$1`).WithArgs(tripID).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	repo := NewTripRepository(db)
	guard := func(trip *domain.Trip) error {
		if len(trip.Reservations) > 0 {
			return blocked
		}
		return nil
	}

	assert.ErrorIs(t, repo.Delete(context.Background(), tripID, guard), blocked)
	assert.NoError(t, repo.Delete(context.Background(), tripID, guard))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTripRepository_SearchBuildsFilter(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	day := time.Date(2031, 5, 10, 15, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`WHERE origin ILIKE \$1 AND departure_at >= \$2 AND departure_at < \$3 AND seat_capacity - reserved_seats >= \$4 ORDER BY departure_at ASC`).
		WithArgs(`%50\%%`, time.Date(2031, 5, 10, 0, 0, 0, 0, time.UTC), time.Date(2031, 5, 11, 0, 0, 0, 0, time.UTC), 2).
		WillReturnRows(tripRow(`[]`, 0))

	trips, err := NewTripRepository(db).Search(context.Background(), domain.TripFilter{
		Origin:        "50%",
		DepartureDate: day,
		MinSeats:      2,
	})
	require.NoError(t, err)
	require.Len(t, trips, 1)
	assert.Equal(t, tripID, trips[0].ID)
	assert.NotNil(t, trips[0].Reservations)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTripRepository_ListByPassengerUsesContainment(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`WHERE reservations @> \$1::jsonb ORDER BY departure_at DESC`).
		WithArgs(`[{"passenger_id":"p1"}]`).
		WillReturnRows(tripRow(`[{"id":"r1","passenger_id":"p1","seats":1}]`, 1))

	trips, err := NewTripRepository(db).ListByPassenger(context.Background(), "p1")
	require.NoError(t, err)
	require.Len(t, trips, 1)
	res, ok := trips[0].ReservationFor("p1")
	require.True(t, ok)
	assert.Equal(t, 1, res.Seats)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTripRepository_GetByIDNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`FROM trips WHERE id = \$1`).WithArgs(tripID).WillReturnRows(sqlmock.NewRows(tripRowColumns))

	_, err = NewTripRepository(db).GetByID(context.Background(), tripID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
