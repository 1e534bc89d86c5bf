package memory

import (
	"context"
	"strings"
	"sync"

	"smartride/internal/domain"
	"smartride/internal/repository"
)

// UserRepository keeps accounts in a map keyed by id.
type UserRepository struct {
	mu    sync.RWMutex
	users map[string]*domain.User
}

// NewUserRepository creates an empty in-memory user repository.
func NewUserRepository() *UserRepository {
	return &UserRepository{users: make(map[string]*domain.User)}
}

// Create adds a new user.
func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Username, user.Username) || strings.EqualFold(u.Email, user.Email) {
			return repository.ErrDuplicate
		}
	}
	copy := *user
	r.users[user.ID] = &copy
	return nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *u
	return &copy, nil
}

// GetByIdentifier retrieves a user by username or email.
func (r *UserRepository) GetByIdentifier(ctx context.Context, identifier string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if u.Username == identifier || u.Email == identifier {
			copy := *u
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

var _ repository.UserRepository = (*UserRepository)(nil)
