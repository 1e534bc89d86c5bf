package tests

import (
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"smartride/internal/domain"
	"smartride/internal/redis"
	"smartride/internal/service"
)

// ──────────────────────────────────────────────
// 11. CACHE CONSISTENCY
// ──────────────────────────────────────────────

// racingReadRepo runs interleave once, after GetByID has loaded the trip and
// before the reader gets to cache it.
type racingReadRepo struct {
	*MockTripRepository
	once       sync.Once
	interleave func()
}

func (r *racingReadRepo) GetByID(ctx context.Context, id string) (*domain.Trip, error) {
	trip, err := r.MockTripRepository.GetByID(ctx, id)
	r.once.Do(r.interleave)
	return trip, err
}

func cachesUnderTest(t *testing.T) map[string]redis.TripCache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return map[string]redis.TripCache{
		"mock":  NewMockTripCache(),
		"redis": redis.NewCacheStore(client),
	}
}

func TestGetTrip_ReadRacingBookingDoesNotCacheStaleSeats(t *testing.T) {
	t.Parallel()

	for name, cache := range cachesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := NewMockTripRepository()
			logger := newTestLogger()
			reservations := service.NewReservationService(store, cache, nil, logger)
			writer := service.NewTripService(store, cache, nil, logger)

			trip, err := writer.CreateTrip(ctx, service.CreateTripRequest{
				Actor:        driverActor("driver-1"),
				Origin:       "Paris",
				Destination:  "Lyon",
				DepartureAt:  tomorrow(),
				SeatCapacity: 4,
				Price:        25,
			})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			reader := service.NewTripService(&racingReadRepo{
				MockTripRepository: store,
				interleave: func() {
					if _, err := reservations.Book(ctx, service.BookRequest{Actor: passengerActor("p1"), TripID: trip.ID, Seats: 3}); err != nil {
						t.Errorf("interleaved booking failed: %v", err)
					}
				},
			}, cache, nil, logger)

			// The first read loaded the trip before the booking committed.
			if _, err := reader.GetTrip(ctx, trip.ID); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			got, err := reader.GetTrip(ctx, trip.ID)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.ReservedSeats != 3 || got.RemainingSeats() != 1 {
				t.Errorf("expected 3 reserved / 1 remaining, got %d / %d", got.ReservedSeats, got.RemainingSeats())
			}
		})
	}
}

func TestGetTrip_ReadRacingDeletionDoesNotResurrectTrip(t *testing.T) {
	t.Parallel()

	for name, cache := range cachesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := NewMockTripRepository()
			logger := newTestLogger()
			writer := service.NewTripService(store, cache, nil, logger)

			trip, err := writer.CreateTrip(ctx, service.CreateTripRequest{
				Actor:        driverActor("driver-1"),
				Origin:       "Paris",
				Destination:  "Lyon",
				DepartureAt:  tomorrow(),
				SeatCapacity: 2,
				Price:        25,
			})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			reader := service.NewTripService(&racingReadRepo{
				MockTripRepository: store,
				interleave: func() {
					if err := writer.DeleteTrip(ctx, service.DeleteTripRequest{Actor: driverActor("driver-1"), TripID: trip.ID}); err != nil {
						t.Errorf("interleaved delete failed: %v", err)
					}
				},
			}, cache, nil, logger)

			if _, err := reader.GetTrip(ctx, trip.ID); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if _, err := reader.GetTrip(ctx, trip.ID); !domain.IsNotFound(err) {
				t.Errorf("expected deleted trip to stay gone, got %v", err)
			}
		})
	}
}

func TestModify_CommittedRevisionWinsOverOlderCommit(t *testing.T) {
	t.Parallel()

	for name, cache := range cachesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture()
			trip, _ := f.publishTrip(ctx, 4)
			reservations := service.NewReservationService(f.tripRepo, cache, nil, newTestLogger())

			first, err := reservations.Book(ctx, service.BookRequest{Actor: passengerActor("p1"), TripID: trip.ID, Seats: 1})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			second, err := reservations.Modify(ctx, service.ModifyRequest{
				Actor: passengerActor("p1"), TripID: trip.ID, ReservationID: first.Reservation.ID, Seats: 3,
			})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			// The first commit's cache write arrives late.
			if err := cache.SetTrip(ctx, first.Trip); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			cached, err := cache.GetTrip(ctx, trip.ID)
			if err != nil || cached == nil {
				t.Fatalf("expected cached trip, got %v, %v", cached, err)
			}
			if cached.ReservedSeats != second.Trip.ReservedSeats {
				t.Errorf("expected %d reserved seats, got %d", second.Trip.ReservedSeats, cached.ReservedSeats)
			}
		})
	}
}
