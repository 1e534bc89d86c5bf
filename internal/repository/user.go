package repository

import (
	"context"

	"smartride/internal/domain"
)

// UserRepository defines the persistence operations for accounts.
type UserRepository interface {
	// Create adds a new user. Returns ErrDuplicate if the username or email
	// is already taken.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id string) (*domain.User, error)

	// GetByIdentifier retrieves a user by username or email.
	GetByIdentifier(ctx context.Context, identifier string) (*domain.User, error)
}
