package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"smartride/internal/auth"
	"smartride/internal/domain"
	"smartride/internal/redis"
	"smartride/internal/repository"
)

// minPasswordLength is the shortest accepted password.
const minPasswordLength = 8

// AuthService registers accounts and issues, verifies and revokes tokens.
type AuthService struct {
	userRepo   repository.UserRepository
	issuer     *auth.TokenIssuer
	revoker    redis.TokenRevoker
	bcryptCost int
	logger     *logrus.Logger
	now        func() time.Time
}

// NewAuthService creates a new AuthService.
func NewAuthService(
	userRepo repository.UserRepository,
	issuer *auth.TokenIssuer,
	revoker redis.TokenRevoker,
	bcryptCost int,
	logger *logrus.Logger,
) *AuthService {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &AuthService{
		userRepo:   userRepo,
		issuer:     issuer,
		revoker:    revoker,
		bcryptCost: bcryptCost,
		logger:     logger,
		now:        time.Now,
	}
}

// AuthResult is a user together with a freshly issued token.
type AuthResult struct {
	User  *domain.User
	Token string
}

// RegisterRequest contains the parameters for creating an account.
type RegisterRequest struct {
	Username string
	Email    string
	Password string
	Role     string
}

// Register creates an account and logs it in.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*AuthResult, error) {
	username := strings.ToLower(strings.TrimSpace(req.Username))
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if username == "" || email == "" || req.Password == "" || req.Role == "" {
		return nil, domain.ValidationError{Msg: "username, email, password and role are required"}
	}
	if !strings.Contains(email, "@") {
		return nil, domain.ValidationError{Field: "email", Msg: "invalid email address"}
	}
	if len(req.Password) < minPasswordLength {
		return nil, domain.ValidationError{
			Field: "password",
			Msg:   fmt.Sprintf("password must be at least %d characters", minPasswordLength),
		}
	}
	role, ok := domain.ParseRole(req.Role)
	if !ok {
		return nil, domain.ValidationError{Field: "role", Msg: "role must be driver or passenger"}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		ID:           uuid.New().String(),
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"user_id": user.ID,
		"role":    user.Role,
	}).Info("user registered")

	return s.issue(user)
}

// LoginRequest contains the credentials of a login attempt. Identifier is
// either the username or the email address.
type LoginRequest struct {
	Identifier string
	Password   string
}

// Login checks the credentials and issues a token.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*AuthResult, error) {
	identifier := strings.ToLower(strings.TrimSpace(req.Identifier))
	if identifier == "" || req.Password == "" {
		return nil, domain.ValidationError{Msg: "identifier and password are required"}
	}

	user, err := s.userRepo.GetByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		s.logger.WithField("user_id", user.ID).Debug("login rejected")
		return nil, ErrInvalidCredentials
	}

	return s.issue(user)
}

// Authenticate verifies a bearer token and checks it has not been revoked.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*auth.Claims, error) {
	if token == "" {
		return nil, domain.AuthenticationError{Reason: "missing token"}
	}

	claims, err := s.issuer.Parse(token)
	if err != nil {
		return nil, domain.AuthenticationError{Reason: "invalid or expired token"}
	}

	if s.revoker != nil {
		revoked, err := s.revoker.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, fmt.Errorf("check token revocation: %w", err)
		}
		if revoked {
			return nil, domain.AuthenticationError{Reason: "token revoked, please log in again"}
		}
	}

	return claims, nil
}

// CurrentUser loads the account behind an authenticated actor.
func (s *AuthService) CurrentUser(ctx context.Context, actor domain.Actor) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, actor.Identity)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.AuthenticationError{Reason: "account no longer exists"}
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// Logout revokes the token until it would have expired anyway.
func (s *AuthService) Logout(ctx context.Context, claims *auth.Claims) error {
	if s.revoker == nil {
		return nil
	}

	ttl := claims.Remaining(s.now())
	if ttl <= 0 {
		return nil
	}
	if err := s.revoker.Revoke(ctx, claims.ID, ttl); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}

	s.logger.WithField("user_id", claims.Subject).Info("user logged out")
	return nil
}

func (s *AuthService) issue(user *domain.User) (*AuthResult, error) {
	token, _, err := s.issuer.Issue(user)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: user, Token: token}, nil
}
