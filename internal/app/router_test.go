package app

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartride/internal/auth"
	"smartride/internal/handler"
	"smartride/internal/metrics"
	"smartride/internal/repository/memory"
	"smartride/internal/service"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	tripRepo := memory.NewTripRepository()
	registry := prometheus.NewRegistry()
	recorder := metrics.NewRecorder(registry)

	authService := service.NewAuthService(
		memory.NewUserRepository(),
		auth.NewTokenIssuer("test-secret", time.Hour),
		memory.NewRevocationStore(),
		4,
		logger,
	)
	tripService := service.NewTripService(tripRepo, nil, recorder, logger)
	reservationService := service.NewReservationService(tripRepo, nil, recorder, logger)

	return NewRouter(RouterDeps{
		TripHandler:        handler.NewTripHandler(tripService),
		ReservationHandler: handler.NewReservationHandler(reservationService),
		AuthHandler:        handler.NewAuthHandler(authService),
		Authenticator:      authService,
		Gatherer:           registry,
		Logger:             logger,
	})
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Token   string          `json:"token"`
	Trip    json.RawMessage `json:"trip"`
	Trips   json.RawMessage `json:"trips"`
	Count   int             `json:"count"`

	Reservation struct {
		ID    string `json:"id"`
		Seats int    `json:"seats"`
	} `json:"reservation"`
}

func call(t *testing.T, router http.Handler, method, path, token string, body any) (int, envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 && w.Header().Get("Content-Type") != "" {
		_ = json.Unmarshal(w.Body.Bytes(), &env)
	}
	return w.Code, env
}

func register(t *testing.T, router http.Handler, username, role string) string {
	t.Helper()
	code, env := call(t, router, http.MethodPost, "/v1/auth/register", "", gin.H{
		"username": username,
		"email":    username + "@example.com",
		"password": "password123",
		"role":     role,
	})
	require.Equal(t, http.StatusCreated, code, env.Message)
	require.NotEmpty(t, env.Token)
	return env.Token
}

func tripID(t *testing.T, raw json.RawMessage) string {
	t.Helper()
	var trip struct {
		ID             string `json:"id"`
		RemainingSeats int    `json:"remaining_seats"`
	}
	require.NoError(t, json.Unmarshal(raw, &trip))
	return trip.ID
}

func TestRouter_BookingFlow(t *testing.T) {
	router := newTestRouter(t)
	driver := register(t, router, "dora", "driver")
	alice := register(t, router, "alice", "passenger")
	bob := register(t, router, "bob", "passenger")

	code, env := call(t, router, http.MethodPost, "/v1/trips", driver, gin.H{
		"origin":        "Paris",
		"destination":   "Lyon",
		"departure_at":  time.Now().Add(24 * time.Hour).Format(time.RFC3339),
		"seat_capacity": 4,
		"price":         25,
	})
	require.Equal(t, http.StatusCreated, code, env.Message)
	assert.True(t, env.Success)
	id := tripID(t, env.Trip)

	code, env = call(t, router, http.MethodPost, "/v1/trips/"+id+"/reservations", alice, gin.H{"seats": 3})
	require.Equal(t, http.StatusCreated, code, env.Message)
	reservationID := env.Reservation.ID
	assert.Equal(t, 3, env.Reservation.Seats)

	code, env = call(t, router, http.MethodPost, "/v1/trips/"+id+"/reservations", alice, gin.H{"seats": 1})
	assert.Equal(t, http.StatusConflict, code)
	assert.False(t, env.Success)

	code, env = call(t, router, http.MethodPost, "/v1/trips/"+id+"/reservations", bob, gin.H{"seats": 2})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, env.Message, "1 place(s) disponible(s)")

	code, _ = call(t, router, http.MethodDelete, "/v1/trips/"+id+"/reservations/"+reservationID, bob, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = call(t, router, http.MethodPost, "/v1/trips/"+id+"/reservations", driver, gin.H{"seats": 1})
	assert.Equal(t, http.StatusForbidden, code)

	code, env = call(t, router, http.MethodDelete, "/v1/trips/"+id, driver, nil)
	assert.Equal(t, http.StatusConflict, code, env.Message)

	code, env = call(t, router, http.MethodPut, "/v1/trips/"+id+"/reservations/"+reservationID, alice, gin.H{"seats": 4})
	require.Equal(t, http.StatusOK, code, env.Message)
	assert.Equal(t, 4, env.Reservation.Seats)

	code, env = call(t, router, http.MethodGet, "/v1/trips/reservations/mine", alice, nil)
	require.Equal(t, http.StatusOK, code, env.Message)
	assert.Equal(t, 1, env.Count)

	code, _ = call(t, router, http.MethodDelete, "/v1/trips/"+id+"/reservations/"+reservationID, alice, nil)
	require.Equal(t, http.StatusOK, code)

	code, _ = call(t, router, http.MethodDelete, "/v1/trips/"+id, driver, nil)
	require.Equal(t, http.StatusOK, code)

	code, _ = call(t, router, http.MethodGet, "/v1/trips/"+id, "", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestRouter_PublicListingAndSummary(t *testing.T) {
	router := newTestRouter(t)
	driver := register(t, router, "dora", "conducteur")

	departure := time.Date(2031, 5, 10, 9, 0, 0, 0, time.UTC)
	code, env := call(t, router, http.MethodPost, "/v1/trips", driver, gin.H{
		"origin":        "Paris",
		"destination":   "Lyon",
		"departure_at":  departure.Format(time.RFC3339),
		"seat_capacity": 2,
		"price":         30,
	})
	require.Equal(t, http.StatusCreated, code, env.Message)

	code, env = call(t, router, http.MethodGet, "/v1/trips?origin=par&date=2031-05-10&minSeats=2", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1, env.Count)

	code, env = call(t, router, http.MethodGet, "/v1/trips?date=2031-05-11", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 0, env.Count)

	code, _ = call(t, router, http.MethodGet, "/v1/trips?date=10/05/2031", "", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = call(t, router, http.MethodGet, "/v1/trips?minSeats=many", "", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = call(t, router, http.MethodGet, "/v1/trips/summary", "", nil)
	assert.Equal(t, http.StatusOK, code)

	code, env = call(t, router, http.MethodGet, "/v1/trips/mine", driver, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1, env.Count)
}

func TestRouter_Authentication(t *testing.T) {
	router := newTestRouter(t)

	code, env := call(t, router, http.MethodPost, "/v1/trips", "", gin.H{})
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.False(t, env.Success)

	code, _ = call(t, router, http.MethodGet, "/v1/auth/verify", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	token := register(t, router, "erin", "passenger")

	code, _ = call(t, router, http.MethodPost, "/v1/auth/register", "", gin.H{
		"username": "erin", "email": "other@example.com", "password": "password123", "role": "passenger",
	})
	assert.Equal(t, http.StatusConflict, code)

	code, env = call(t, router, http.MethodPost, "/v1/auth/login", "", gin.H{"identifier": "erin@example.com", "password": "password123"})
	require.Equal(t, http.StatusOK, code, env.Message)
	assert.NotEmpty(t, env.Token)

	code, _ = call(t, router, http.MethodPost, "/v1/auth/login", "", gin.H{"identifier": "erin", "password": "nope-nope"})
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = call(t, router, http.MethodGet, "/v1/auth/verify", token, nil)
	assert.Equal(t, http.StatusOK, code)

	code, _ = call(t, router, http.MethodGet, "/v1/trips/mine", token, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = call(t, router, http.MethodPost, "/v1/auth/logout", token, nil)
	require.Equal(t, http.StatusOK, code)

	code, env = call(t, router, http.MethodGet, "/v1/auth/verify", token, nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Contains(t, env.Message, "revoked")
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	router := newTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	driver := register(t, router, "dora", "driver")
	code, _ := call(t, router, http.MethodPost, "/v1/trips", driver, gin.H{
		"origin": "Paris", "destination": "Lyon",
		"departure_at":  time.Now().Add(time.Hour).Format(time.RFC3339),
		"seat_capacity": 1, "price": 10,
	})
	require.Equal(t, http.StatusCreated, code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `smartride_trips_total{operation="create",outcome="success"} 1`)
}
