package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartride/internal/domain"
)

func TestTokenIssuer_RoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Hour)
	user := &domain.User{ID: "u1", Username: "dora", Role: domain.RoleDriver}

	signed, issued, err := issuer.Issue(user)
	require.NoError(t, err)
	require.NotEmpty(t, signed)

	claims, err := issuer.Parse(signed)
	require.NoError(t, err)
	assert.Equal(t, issued.ID, claims.ID)
	assert.Equal(t, domain.Actor{Identity: "u1", DisplayName: "dora", Role: domain.RoleDriver}, claims.Actor())
}

func TestTokenIssuer_RejectsForeignSignature(t *testing.T) {
	signed, _, err := NewTokenIssuer("other", time.Hour).Issue(&domain.User{ID: "u1", Role: domain.RolePassenger})
	require.NoError(t, err)

	_, err = NewTokenIssuer("secret", time.Hour).Parse(signed)
	assert.True(t, errors.Is(err, ErrInvalidToken))
}

func TestTokenIssuer_RejectsExpired(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Minute)
	start := time.Now()
	issuer.now = func() time.Time { return start }

	signed, _, err := issuer.Issue(&domain.User{ID: "u1", Role: domain.RolePassenger})
	require.NoError(t, err)

	issuer.now = func() time.Time { return start.Add(2 * time.Minute) }
	_, err = issuer.Parse(signed)
	assert.True(t, errors.Is(err, ErrInvalidToken))
}

func TestTokenIssuer_RejectsGarbage(t *testing.T) {
	_, err := NewTokenIssuer("secret", time.Hour).Parse("not-a-token")
	assert.True(t, errors.Is(err, ErrInvalidToken))
}

func TestClaims_Remaining(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Hour)
	now := time.Now()
	issuer.now = func() time.Time { return now }

	_, claims, err := issuer.Issue(&domain.User{ID: "u1", Role: domain.RoleDriver})
	require.NoError(t, err)
	// NumericDate truncates to the second.
	assert.InDelta(t, time.Hour.Seconds(), claims.Remaining(now).Seconds(), 1)
}
