package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"smartride/internal/domain"
	"smartride/internal/metrics"
	"smartride/internal/policy"
	"smartride/internal/redis"
	"smartride/internal/repository"
)

// summaryUpcoming is how many upcoming trips the availability summary lists.
const summaryUpcoming = 5

// TripService handles the trip lifecycle: create, update, delete and the
// read paths.
type TripService struct {
	tripRepo repository.TripRepository
	cache    tripCache
	metrics  *metrics.Recorder
	logger   *logrus.Logger
	now      func() time.Time
}

// NewTripService creates a new TripService. cache and recorder may be nil.
func NewTripService(
	tripRepo repository.TripRepository,
	cache redis.TripCache,
	recorder *metrics.Recorder,
	logger *logrus.Logger,
) *TripService {
	return &TripService{
		tripRepo: tripRepo,
		cache:    tripCache{cache: cache, logger: logger},
		metrics:  recorder,
		logger:   logger,
		now:      time.Now,
	}
}

// CreateTripRequest contains the parameters for publishing a trip.
type CreateTripRequest struct {
	Actor        domain.Actor
	Origin       string
	Destination  string
	DepartureAt  time.Time
	SeatCapacity int
	Price        float64
	Description  string
}

// CreateTrip publishes a new trip owned by the calling driver.
func (s *TripService) CreateTrip(ctx context.Context, req CreateTripRequest) (trip *domain.Trip, err error) {
	defer func() { s.metrics.Trip("create", outcome(err)) }()

	if err := policy.RequireDriver(req.Actor, "create trips"); err != nil {
		return nil, err
	}

	origin := strings.TrimSpace(req.Origin)
	destination := strings.TrimSpace(req.Destination)
	if origin == "" || destination == "" || req.DepartureAt.IsZero() || req.SeatCapacity == 0 || req.Price == 0 {
		return nil, domain.ValidationError{Msg: "origin, destination, departure time, seat capacity and price are required"}
	}
	if req.SeatCapacity < 1 {
		return nil, domain.ValidationError{Field: "seat_capacity", Msg: "seat capacity must be at least 1"}
	}
	if !domain.ValidPrice(req.Price) {
		return nil, ErrInvalidPrice
	}

	now := s.now().UTC().Truncate(domain.StoreResolution)
	trip = &domain.Trip{
		ID:            uuid.New().String(),
		Origin:        origin,
		Destination:   destination,
		DepartureAt:   req.DepartureAt.UTC(),
		DriverID:      req.Actor.Identity,
		DriverName:    req.Actor.DisplayName,
		SeatCapacity:  req.SeatCapacity,
		ReservedSeats: 0,
		Price:         req.Price,
		Description:   strings.TrimSpace(req.Description),
		Reservations:  []domain.Reservation{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.tripRepo.Create(ctx, trip); err != nil {
		s.logger.WithError(err).Error("failed to create trip")
		return nil, fmt.Errorf("create trip: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"trip_id":   trip.ID,
		"driver_id": trip.DriverID,
		"capacity":  trip.SeatCapacity,
	}).Info("trip created")

	return trip, nil
}

// UpdateTripRequest contains the parameters for editing a trip. Zero fields
// are left untouched; Description may be set to an empty string to clear it.
type UpdateTripRequest struct {
	Actor  domain.Actor
	TripID string
	Fields domain.TripFields
}

// UpdateTrip overwrites the supplied fields of a trip owned by the caller.
func (s *TripService) UpdateTrip(ctx context.Context, req UpdateTripRequest) (trip *domain.Trip, err error) {
	defer func() { s.metrics.Trip("update", outcome(err)) }()

	if err := policy.RequireDriver(req.Actor, "update trips"); err != nil {
		return nil, err
	}
	if err := validateTripID(req.TripID); err != nil {
		return nil, err
	}

	f := req.Fields
	trip, err = s.tripRepo.Mutate(ctx, req.TripID, func(t *domain.Trip) error {
		if err := policy.RequireOwner(req.Actor, t, "update"); err != nil {
			return err
		}

		if v := strings.TrimSpace(f.Origin); v != "" {
			t.Origin = v
		}
		if v := strings.TrimSpace(f.Destination); v != "" {
			t.Destination = v
		}
		if !f.DepartureAt.IsZero() {
			t.DepartureAt = f.DepartureAt.UTC()
		}
		if f.SeatCapacity != 0 {
			if f.SeatCapacity < 1 {
				return domain.ValidationError{Field: "seat_capacity", Msg: "seat capacity must be at least 1"}
			}
			// A capacity below the booked seats would leave a negative remainder.
			if f.SeatCapacity < t.ReservedSeats {
				return domain.ValidationError{
					Field: "seat_capacity",
					Msg:   fmt.Sprintf("seat capacity cannot be lower than the %d seat(s) already reserved", t.ReservedSeats),
				}
			}
			t.SeatCapacity = f.SeatCapacity
		}
		if f.Price != 0 {
			if !domain.ValidPrice(f.Price) {
				return ErrInvalidPrice
			}
			t.Price = f.Price
		}
		if f.Description != nil {
			t.Description = strings.TrimSpace(*f.Description)
		}

		t.Touch(s.now())
		return nil
	})
	if err != nil {
		return nil, translateTripErr("update trip", err)
	}

	s.cache.store(ctx, trip, true)
	s.logger.WithFields(logrus.Fields{
		"trip_id":   trip.ID,
		"driver_id": req.Actor.Identity,
	}).Info("trip updated")

	return trip, nil
}

// DeleteTripRequest contains the parameters for deleting a trip.
type DeleteTripRequest struct {
	Actor  domain.Actor
	TripID string
}

// DeleteTrip removes a trip owned by the caller. Trips that still carry
// reservations cannot be deleted.
func (s *TripService) DeleteTrip(ctx context.Context, req DeleteTripRequest) (err error) {
	defer func() { s.metrics.Trip("delete", outcome(err)) }()

	if err := policy.RequireDriver(req.Actor, "delete trips"); err != nil {
		return err
	}
	if err := validateTripID(req.TripID); err != nil {
		return err
	}

	err = s.tripRepo.Delete(ctx, req.TripID, func(t *domain.Trip) error {
		if err := policy.RequireOwner(req.Actor, t, "delete"); err != nil {
			return err
		}
		if len(t.Reservations) > 0 {
			return ErrTripHasReservations
		}
		return nil
	})
	if err != nil {
		return translateTripErr("delete trip", err)
	}

	s.cache.evict(ctx, req.TripID)
	s.logger.WithFields(logrus.Fields{
		"trip_id":   req.TripID,
		"driver_id": req.Actor.Identity,
	}).Info("trip deleted")

	return nil
}

// GetTrip retrieves a trip, reading through the cache when one is configured.
func (s *TripService) GetTrip(ctx context.Context, tripID string) (*domain.Trip, error) {
	if err := validateTripID(tripID); err != nil {
		return nil, err
	}

	if cached := s.cache.get(ctx, tripID); cached != nil {
		return cached, nil
	}

	trip, err := s.tripRepo.GetByID(ctx, tripID)
	if err != nil {
		return nil, translateTripErr("get trip", err)
	}

	s.cache.store(ctx, trip, false)
	return trip, nil
}

// ListTrips searches trips, earliest departure first.
func (s *TripService) ListTrips(ctx context.Context, filter domain.TripFilter) ([]*domain.Trip, error) {
	if filter.MinSeats < 0 {
		return nil, domain.ValidationError{Field: "minSeats", Msg: "minSeats must not be negative"}
	}

	trips, err := s.tripRepo.Search(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("search trips: %w", err)
	}
	return trips, nil
}

// ListDriverTrips lists the calling driver's trips, latest departure first.
func (s *TripService) ListDriverTrips(ctx context.Context, actor domain.Actor) ([]*domain.Trip, error) {
	if err := policy.RequireDriver(actor, "view their trips"); err != nil {
		return nil, err
	}

	trips, err := s.tripRepo.ListByDriver(ctx, actor.Identity)
	if err != nil {
		return nil, fmt.Errorf("list driver trips: %w", err)
	}
	return trips, nil
}

// TripSummary describes current availability across future trips.
type TripSummary struct {
	AvailableTrips int
	MinPrice       float64
	MaxPrice       float64
	Upcoming       []*domain.Trip
}

// Summary aggregates availability over trips that have not departed yet.
// Price bounds cover every future trip, full or not.
func (s *TripService) Summary(ctx context.Context) (*TripSummary, error) {
	trips, err := s.tripRepo.Search(ctx, domain.TripFilter{DepartsAfter: s.now()})
	if err != nil {
		return nil, fmt.Errorf("summarize trips: %w", err)
	}

	summary := &TripSummary{Upcoming: []*domain.Trip{}}
	for i, t := range trips {
		if t.RemainingSeats() > 0 {
			summary.AvailableTrips++
		}
		if i == 0 || t.Price < summary.MinPrice {
			summary.MinPrice = t.Price
		}
		if i == 0 || t.Price > summary.MaxPrice {
			summary.MaxPrice = t.Price
		}
		if len(summary.Upcoming) < summaryUpcoming {
			summary.Upcoming = append(summary.Upcoming, t)
		}
	}

	return summary, nil
}
