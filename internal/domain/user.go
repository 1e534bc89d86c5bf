package domain

import (
	"strings"
	"time"
)

// Role is the capability tag carried by every actor.
type Role string

const (
	RoleDriver    Role = "driver"
	RolePassenger Role = "passenger"
)

// ParseRole accepts the canonical tags and the legacy French ones.
func ParseRole(s string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "driver", "conducteur":
		return RoleDriver, true
	case "passenger", "passager":
		return RolePassenger, true
	default:
		return "", false
	}
}

// User is a registered account.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
}

// Actor is the authenticated caller attached to every request.
type Actor struct {
	Identity    string
	DisplayName string
	Role        Role
}
