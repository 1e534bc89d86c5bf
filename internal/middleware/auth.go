package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"smartride/internal/auth"
	"smartride/internal/domain"
)

const (
	actorKey  = "smartride.actor"
	claimsKey = "smartride.claims"
)

// Authenticator verifies a bearer token.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*auth.Claims, error)
}

// AuthMiddleware rejects requests without a valid bearer token and attaches
// the caller to the context.
func AuthMiddleware(authenticator Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))

		claims, err := authenticator.Authenticate(c.Request.Context(), token)
		if err != nil {
			status := http.StatusUnauthorized
			message := err.Error()
			if !domain.IsAuthentication(err) {
				status = http.StatusInternalServerError
				message = "internal server error"
				_ = c.Error(err)
			}
			c.AbortWithStatusJSON(status, gin.H{"success": false, "message": message})
			return
		}

		c.Set(claimsKey, claims)
		c.Set(actorKey, claims.Actor())
		c.Next()
	}
}

// ActorFrom returns the authenticated caller.
func ActorFrom(c *gin.Context) (domain.Actor, bool) {
	v, ok := c.Get(actorKey)
	if !ok {
		return domain.Actor{}, false
	}
	actor, ok := v.(domain.Actor)
	return actor, ok
}

// ClaimsFrom returns the claims of the presented token.
func ClaimsFrom(c *gin.Context) (*auth.Claims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*auth.Claims)
	return claims, ok
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
