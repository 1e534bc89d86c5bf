package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartride/internal/domain"
)

// newIdempotentEngine serves POST /bookings as the given actor and counts
// how often the handler really runs.
func newIdempotentEngine(t *testing.T, client *redis.Client, calls *int) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	withActor := func(c *gin.Context) {
		if id := c.GetHeader("X-Test-Actor"); id != "" {
			c.Set(actorKey, domain.Actor{Identity: id, Role: domain.RolePassenger})
		}
	}
	r.POST("/bookings", withActor, IdempotencyMiddleware(client), func(c *gin.Context) {
		*calls++
		c.JSON(http.StatusCreated, gin.H{"success": true, "booking": *calls})
	})
	return r
}

func postBooking(r *gin.Engine, actor, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/bookings", nil)
	req.Header.Set("X-Test-Actor", actor)
	if key != "" {
		req.Header.Set(idempotencyHeader, key)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestIdempotencyMiddleware_ReplaysStoredResponse(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	calls := 0
	r := newIdempotentEngine(t, client, &calls)

	first := postBooking(r, "p1", "key-1")
	require.Equal(t, http.StatusCreated, first.Code)
	assert.Empty(t, first.Header().Get("Idempotent-Replayed"))

	second := postBooking(r, "p1", "key-1")
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Equal(t, 1, calls, "replay must not run the handler again")

	ttl := mr.TTL("idempotency:p1:POST:/bookings:key-1")
	assert.Equal(t, idempotencyTTL, ttl)
}

func TestIdempotencyMiddleware_KeysDoNotCrossCallers(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	calls := 0
	r := newIdempotentEngine(t, client, &calls)

	postBooking(r, "p1", "shared")
	other := postBooking(r, "p2", "shared")

	assert.Empty(t, other.Header().Get("Idempotent-Replayed"))
	assert.Equal(t, 2, calls)
}

func TestIdempotencyMiddleware_Bypass(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	tests := []struct {
		name   string
		client *redis.Client
		key    string
	}{
		{"no key", client, ""},
		{"nil client", nil, "key-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			r := newIdempotentEngine(t, tt.client, &calls)
			for i := 0; i < 2; i++ {
				w := postBooking(r, "p1", tt.key)
				assert.Empty(t, w.Header().Get("Idempotent-Replayed"), "request "+strconv.Itoa(i))
			}
			assert.Equal(t, 2, calls)
		})
	}
}

func TestIdempotencyMiddleware_RedisDownFallsThrough(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	mr.SetError("LOADING")

	calls := 0
	r := newIdempotentEngine(t, client, &calls)

	w := postBooking(r, "p1", "key-1")
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, 1, calls)
}
