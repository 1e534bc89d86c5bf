package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"smartride/internal/domain"
	"smartride/internal/metrics"
	"smartride/internal/policy"
	"smartride/internal/redis"
	"smartride/internal/repository"
)

// ReservationService handles booking, modifying and cancelling seats. Every
// operation runs as one atomic read-modify-write of the trip aggregate.
type ReservationService struct {
	tripRepo repository.TripRepository
	cache    tripCache
	metrics  *metrics.Recorder
	logger   *logrus.Logger
	now      func() time.Time
	newID    func() string
}

// NewReservationService creates a new ReservationService. cache and recorder
// may be nil.
func NewReservationService(
	tripRepo repository.TripRepository,
	cache redis.TripCache,
	recorder *metrics.Recorder,
	logger *logrus.Logger,
) *ReservationService {
	return &ReservationService{
		tripRepo: tripRepo,
		cache:    tripCache{cache: cache, logger: logger},
		metrics:  recorder,
		logger:   logger,
		now:      time.Now,
		newID:    func() string { return uuid.New().String() },
	}
}

// BookingResult is the reservation affected by an operation together with
// the trip as committed.
type BookingResult struct {
	Reservation domain.Reservation
	Trip        *domain.Trip
}

// BookRequest contains the parameters for booking seats on a trip.
type BookRequest struct {
	Actor  domain.Actor
	TripID string
	Seats  int
}

// Book reserves seats for the calling passenger.
func (s *ReservationService) Book(ctx context.Context, req BookRequest) (result *BookingResult, err error) {
	defer func() { s.metrics.Reservation("book", outcome(err)) }()

	if err := policy.RequirePassenger(req.Actor, "book trips"); err != nil {
		return nil, err
	}
	if req.Seats < 1 {
		return nil, ErrInvalidSeats
	}
	if err := validateTripID(req.TripID); err != nil {
		return nil, err
	}

	var created domain.Reservation
	trip, err := s.tripRepo.Mutate(ctx, req.TripID, func(t *domain.Trip) error {
		if _, ok := t.ReservationFor(req.Actor.Identity); ok {
			return ErrDuplicateReservation
		}
		if !t.CanAllocate(req.Seats) {
			return domain.InsufficientSeats(t.RemainingSeats())
		}

		created = domain.Reservation{
			ID:            s.newID(),
			PassengerID:   req.Actor.Identity,
			PassengerName: req.Actor.DisplayName,
			Seats:         req.Seats,
			BookedAt:      s.now().UTC(),
		}
		t.Reservations = append(t.Reservations, created)
		t.ReservedSeats += req.Seats
		t.Touch(s.now())
		return nil
	})
	if err != nil {
		s.logRejected("book", req.TripID, req.Actor, err)
		return nil, translateTripErr("book trip", err)
	}

	s.cache.store(ctx, trip, true)
	s.logger.WithFields(logrus.Fields{
		"trip_id":        trip.ID,
		"reservation_id": created.ID,
		"passenger_id":   req.Actor.Identity,
		"seats":          created.Seats,
		"remaining":      trip.RemainingSeats(),
	}).Info("reservation booked")

	return &BookingResult{Reservation: created, Trip: trip}, nil
}

// ModifyRequest contains the parameters for changing a reservation's seats.
type ModifyRequest struct {
	Actor         domain.Actor
	TripID        string
	ReservationID string
	Seats         int
}

// Modify sets the seat count of the caller's reservation. Only an increase
// has to fit in the remaining seats; repeating the same call is a no-op.
func (s *ReservationService) Modify(ctx context.Context, req ModifyRequest) (result *BookingResult, err error) {
	defer func() { s.metrics.Reservation("modify", outcome(err)) }()

	if err := policy.RequirePassenger(req.Actor, "modify reservations"); err != nil {
		return nil, err
	}
	if req.Seats < 1 {
		return nil, ErrInvalidSeats
	}
	if err := validateTripID(req.TripID); err != nil {
		return nil, err
	}

	var updated domain.Reservation
	trip, err := s.tripRepo.Mutate(ctx, req.TripID, func(t *domain.Trip) error {
		idx := t.FindReservation(req.ReservationID)
		if idx < 0 {
			return ErrReservationNotFound
		}
		res := &t.Reservations[idx]
		if err := policy.RequireHolder(req.Actor, res, "modify"); err != nil {
			return err
		}
		if !t.CanAdjust(res.Seats, req.Seats) {
			return domain.InsufficientAdditionalSeats(t.RemainingSeats())
		}

		delta := req.Seats - res.Seats
		res.Seats = req.Seats
		t.ReservedSeats += delta
		updated = *res
		if delta != 0 {
			t.Touch(s.now())
		}
		return nil
	})
	if err != nil {
		s.logRejected("modify", req.TripID, req.Actor, err)
		return nil, translateTripErr("modify reservation", err)
	}

	s.cache.store(ctx, trip, true)
	s.logger.WithFields(logrus.Fields{
		"trip_id":        trip.ID,
		"reservation_id": updated.ID,
		"passenger_id":   req.Actor.Identity,
		"seats":          updated.Seats,
		"remaining":      trip.RemainingSeats(),
	}).Info("reservation modified")

	return &BookingResult{Reservation: updated, Trip: trip}, nil
}

// CancelRequest contains the parameters for cancelling a reservation.
type CancelRequest struct {
	Actor         domain.Actor
	TripID        string
	ReservationID string
}

// Cancel removes the caller's reservation and releases its seats.
func (s *ReservationService) Cancel(ctx context.Context, req CancelRequest) (result *BookingResult, err error) {
	defer func() { s.metrics.Reservation("cancel", outcome(err)) }()

	if err := policy.RequirePassenger(req.Actor, "cancel reservations"); err != nil {
		return nil, err
	}
	if err := validateTripID(req.TripID); err != nil {
		return nil, err
	}

	var removed domain.Reservation
	trip, err := s.tripRepo.Mutate(ctx, req.TripID, func(t *domain.Trip) error {
		idx := t.FindReservation(req.ReservationID)
		if idx < 0 {
			return ErrReservationNotFound
		}
		if err := policy.RequireHolder(req.Actor, &t.Reservations[idx], "cancel"); err != nil {
			return err
		}

		removed = t.Reservations[idx]
		t.Reservations = append(t.Reservations[:idx], t.Reservations[idx+1:]...)
		t.ReservedSeats -= removed.Seats
		t.Touch(s.now())
		return nil
	})
	if err != nil {
		s.logRejected("cancel", req.TripID, req.Actor, err)
		return nil, translateTripErr("cancel reservation", err)
	}

	s.cache.store(ctx, trip, true)
	s.logger.WithFields(logrus.Fields{
		"trip_id":        trip.ID,
		"reservation_id": removed.ID,
		"passenger_id":   req.Actor.Identity,
		"seats":          removed.Seats,
		"remaining":      trip.RemainingSeats(),
	}).Info("reservation cancelled")

	return &BookingResult{Reservation: removed, Trip: trip}, nil
}

// ListPassengerBookings lists the caller's reservations with their trips,
// latest departure first.
func (s *ReservationService) ListPassengerBookings(ctx context.Context, actor domain.Actor) ([]domain.PassengerBooking, error) {
	if err := policy.RequirePassenger(actor, "view their reservations"); err != nil {
		return nil, err
	}

	trips, err := s.tripRepo.ListByPassenger(ctx, actor.Identity)
	if err != nil {
		return nil, fmt.Errorf("list passenger trips: %w", err)
	}

	bookings := make([]domain.PassengerBooking, 0, len(trips))
	for _, t := range trips {
		res, ok := t.ReservationFor(actor.Identity)
		if !ok {
			continue
		}
		bookings = append(bookings, domain.PassengerBooking{Reservation: *res, Trip: t})
	}
	return bookings, nil
}

func (s *ReservationService) logRejected(op, tripID string, actor domain.Actor, err error) {
	entry := s.logger.WithFields(logrus.Fields{
		"operation":    op,
		"trip_id":      tripID,
		"passenger_id": actor.Identity,
	})
	if isDomainError(err) {
		entry.WithError(err).Debug("reservation rejected")
		return
	}
	entry.WithError(err).Error("reservation failed")
}
