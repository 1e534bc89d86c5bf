package domain

import (
	"errors"
	"fmt"
)

// AuthorizationError is returned when the caller has the wrong role or is not
// the owner/holder of the resource.
type AuthorizationError struct {
	Reason string
}

func (e AuthorizationError) Error() string {
	if e.Reason == "" {
		return "access denied"
	}
	return e.Reason
}

// AuthenticationError is returned for missing, invalid or revoked credentials.
type AuthenticationError struct {
	Reason string
}

func (e AuthenticationError) Error() string {
	if e.Reason == "" {
		return "not authenticated"
	}
	return e.Reason
}

type NotFoundError struct {
	Resource string
}

func (e NotFoundError) Error() string {
	if e.Resource == "" {
		return "not found"
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

type ValidationError struct {
	Field string
	Msg   string
}

func (e ValidationError) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	if e.Field != "" {
		return fmt.Sprintf("invalid %s", e.Field)
	}
	return "validation error"
}

type ConflictError struct {
	Msg string
}

func (e ConflictError) Error() string {
	if e.Msg == "" {
		return "conflict"
	}
	return e.Msg
}

// InsufficientSeats builds the validation error for a booking that does not
// fit. The message carries the exact remaining count.
func InsufficientSeats(remaining int) error {
	return ValidationError{
		Field: "seats",
		Msg:   fmt.Sprintf("Seulement %d place(s) disponible(s)", remaining),
	}
}

// InsufficientAdditionalSeats is the Modify variant of InsufficientSeats.
func InsufficientAdditionalSeats(remaining int) error {
	return ValidationError{
		Field: "seats",
		Msg:   fmt.Sprintf("Seulement %d place(s) disponible(s) en plus", remaining),
	}
}

func IsAuthorization(err error) bool {
	var target AuthorizationError
	return errors.As(err, &target)
}

func IsAuthentication(err error) bool {
	var target AuthenticationError
	return errors.As(err, &target)
}

func IsNotFound(err error) bool {
	var target NotFoundError
	return errors.As(err, &target)
}

func IsValidation(err error) bool {
	var target ValidationError
	return errors.As(err, &target)
}

func IsConflict(err error) bool {
	var target ConflictError
	return errors.As(err, &target)
}
