package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"smartride/internal/domain"
	"smartride/internal/repository"
)

const uniqueViolation = "23505"

// UserRepository implements repository.UserRepository using PostgreSQL.
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create adds a new user.
func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	query := `INSERT INTO users (id, username, email, password_hash, role, created_at) VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.db.ExecContext(ctx, query, user.ID, user.Username, user.Email, user.PasswordHash, user.Role, user.CreatedAt)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return repository.ErrDuplicate
	}
	return err
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT id, username, email, password_hash, role, created_at FROM users WHERE id = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

// GetByIdentifier retrieves a user by username or email.
func (r *UserRepository) GetByIdentifier(ctx context.Context, identifier string) (*domain.User, error) {
	query := `SELECT id, username, email, password_hash, role, created_at FROM users WHERE username = $1 OR email = $1 LIMIT 1`
	return scanUser(r.db.QueryRowContext(ctx, query, identifier))
}

func scanUser(row *sql.Row) (*domain.User, error) {
	var user domain.User
	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.Role, &user.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

var _ repository.UserRepository = (*UserRepository)(nil)
