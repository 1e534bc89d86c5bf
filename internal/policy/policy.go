// Package policy holds the role and ownership checks consulted before every
// mutating trip or reservation operation.
package policy

import "smartride/internal/domain"

func IsDriver(actor domain.Actor) bool {
	return actor.Role == domain.RoleDriver
}

func IsPassenger(actor domain.Actor) bool {
	return actor.Role == domain.RolePassenger
}

// IsOwner reports whether the actor created the trip.
func IsOwner(actor domain.Actor, trip *domain.Trip) bool {
	return trip != nil && actor.Identity != "" && trip.DriverID == actor.Identity
}

// IsReservationHolder reports whether the actor made the reservation.
func IsReservationHolder(actor domain.Actor, reservation *domain.Reservation) bool {
	return reservation != nil && actor.Identity != "" && reservation.PassengerID == actor.Identity
}

// RequireDriver returns an AuthorizationError unless the actor is a driver.
func RequireDriver(actor domain.Actor, action string) error {
	if !IsDriver(actor) {
		return domain.AuthorizationError{Reason: "only drivers can " + action}
	}
	return nil
}

// RequirePassenger returns an AuthorizationError unless the actor is a passenger.
func RequirePassenger(actor domain.Actor, action string) error {
	if !IsPassenger(actor) {
		return domain.AuthorizationError{Reason: "only passengers can " + action}
	}
	return nil
}

// RequireOwner combines the driver-role check with trip ownership.
func RequireOwner(actor domain.Actor, trip *domain.Trip, action string) error {
	if err := RequireDriver(actor, action); err != nil {
		return err
	}
	if !IsOwner(actor, trip) {
		return domain.AuthorizationError{Reason: "not allowed to " + action + " this trip"}
	}
	return nil
}

// RequireHolder returns an AuthorizationError unless the actor holds the reservation.
func RequireHolder(actor domain.Actor, reservation *domain.Reservation, action string) error {
	if !IsReservationHolder(actor, reservation) {
		return domain.AuthorizationError{Reason: "not allowed to " + action + " this reservation"}
	}
	return nil
}
