package service

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"smartride/internal/domain"
	"smartride/internal/metrics"
	"smartride/internal/repository"
)

var (
	// ErrInvalidTripID is returned when a trip id is empty or not a UUID.
	ErrInvalidTripID = domain.ValidationError{Field: "id", Msg: "invalid trip id"}

	// ErrInvalidSeats is returned when a seat count is missing or below one.
	ErrInvalidSeats = domain.ValidationError{Field: "seats", Msg: "invalid number of seats"}

	// ErrInvalidPrice is returned when a price is not a positive amount in cents.
	ErrInvalidPrice = domain.ValidationError{Field: "price", Msg: "price must be a positive amount with at most two decimals"}

	// ErrTripNotFound is returned when the trip does not exist.
	ErrTripNotFound = domain.NotFoundError{Resource: "trip"}

	// ErrReservationNotFound is returned when the reservation does not exist on the trip.
	ErrReservationNotFound = domain.NotFoundError{Resource: "reservation"}

	// ErrDuplicateReservation is returned when the passenger already holds a reservation on the trip.
	ErrDuplicateReservation = domain.ConflictError{Msg: "you already have a reservation on this trip"}

	// ErrTripHasReservations is returned when deleting a trip that still has reservations.
	ErrTripHasReservations = domain.ConflictError{Msg: "cannot delete a trip with active reservations"}

	// ErrInvalidCredentials is returned when login fails.
	ErrInvalidCredentials = domain.AuthenticationError{Reason: "invalid credentials"}

	// ErrUserExists is returned when the username or email is already taken.
	ErrUserExists = domain.ConflictError{Msg: "username or email already in use"}
)

func validateTripID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrInvalidTripID
	}
	return nil
}

// isDomainError reports whether err belongs to the caller-facing taxonomy.
func isDomainError(err error) bool {
	return domain.IsAuthorization(err) ||
		domain.IsAuthentication(err) ||
		domain.IsNotFound(err) ||
		domain.IsValidation(err) ||
		domain.IsConflict(err)
}

// translateTripErr maps storage errors of a trip operation onto the taxonomy.
// Domain errors pass through untouched so their message reaches the caller.
func translateTripErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return ErrTripNotFound
	case isDomainError(err):
		return err
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

// outcome classifies an error for the metrics recorder.
func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case isDomainError(err):
		return metrics.OutcomeRejected
	default:
		return metrics.OutcomeError
	}
}
