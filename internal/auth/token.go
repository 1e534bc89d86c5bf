// Package auth issues and parses the bearer tokens carried by API callers.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"smartride/internal/domain"
)

// ErrInvalidToken is returned for malformed, expired or badly signed tokens.
var ErrInvalidToken = errors.New("invalid token")

// Claims are the JWT claims of an access token. Subject holds the user id
// and ID the token id used for revocation.
type Claims struct {
	Name string `json:"name"`
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Actor converts the claims into the caller record used by the services.
func (c *Claims) Actor() domain.Actor {
	role, _ := domain.ParseRole(c.Role)
	return domain.Actor{
		Identity:    c.Subject,
		DisplayName: c.Name,
		Role:        role,
	}
}

// Remaining returns how long the token stays valid after now.
func (c *Claims) Remaining(now time.Time) time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	return c.ExpiresAt.Time.Sub(now)
}

// TokenIssuer signs and verifies HS256 access tokens.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer creates a TokenIssuer.
func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue signs a new token for the user.
func (i *TokenIssuer) Issue(user *domain.User) (string, *Claims, error) {
	now := i.now()
	claims := &Claims{
		Name: user.Username,
		Role: string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}
	return signed, claims, nil
}

// Parse verifies the signature and expiry of a token and returns its claims.
func (i *TokenIssuer) Parse(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" || claims.ID == "" {
		return nil, ErrInvalidToken
	}
	if _, ok := domain.ParseRole(claims.Role); !ok {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
