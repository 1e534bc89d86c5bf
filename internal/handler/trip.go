package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"smartride/internal/domain"
	"smartride/internal/service"
)

const dateLayout = "2006-01-02"

// TripHandler handles HTTP requests for trips.
type TripHandler struct {
	tripService *service.TripService
}

// NewTripHandler creates a new TripHandler.
func NewTripHandler(tripService *service.TripService) *TripHandler {
	return &TripHandler{tripService: tripService}
}

// CreateTripRequest is the HTTP request body for publishing a trip.
type CreateTripRequest struct {
	Origin       string    `json:"origin"`
	Destination  string    `json:"destination"`
	DepartureAt  time.Time `json:"departure_at"`
	SeatCapacity int       `json:"seat_capacity"`
	Price        float64   `json:"price"`
	Description  string    `json:"description,omitempty"`
}

// UpdateTripRequest is the HTTP request body for editing a trip. Omitted
// fields are left unchanged.
type UpdateTripRequest struct {
	Origin       string    `json:"origin,omitempty"`
	Destination  string    `json:"destination,omitempty"`
	DepartureAt  time.Time `json:"departure_at,omitempty"`
	SeatCapacity int       `json:"seat_capacity,omitempty"`
	Price        float64   `json:"price,omitempty"`
	Description  *string   `json:"description,omitempty"`
}

// TripResponse is the HTTP representation of a trip.
type TripResponse struct {
	ID             string                `json:"id"`
	Origin         string                `json:"origin"`
	Destination    string                `json:"destination"`
	DepartureAt    time.Time             `json:"departure_at"`
	DriverID       string                `json:"driver_id"`
	DriverName     string                `json:"driver_name"`
	SeatCapacity   int                   `json:"seat_capacity"`
	ReservedSeats  int                   `json:"reserved_seats"`
	RemainingSeats int                   `json:"remaining_seats"`
	Price          float64               `json:"price"`
	Description    string                `json:"description,omitempty"`
	Reservations   []ReservationResponse `json:"reservations"`
	CreatedAt      time.Time             `json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
}

// UpcomingTripResponse is a trip line of the availability summary.
type UpcomingTripResponse struct {
	ID             string    `json:"id"`
	Origin         string    `json:"origin"`
	Destination    string    `json:"destination"`
	DepartureAt    time.Time `json:"departure_at"`
	Price          float64   `json:"price"`
	DriverName     string    `json:"driver_name"`
	RemainingSeats int       `json:"remaining_seats"`
}

// SummaryResponse is the HTTP representation of the availability summary.
type SummaryResponse struct {
	AvailableTrips int                    `json:"available_trips"`
	MinPrice       float64                `json:"min_price"`
	MaxPrice       float64                `json:"max_price"`
	Upcoming       []UpcomingTripResponse `json:"upcoming"`
}

func toTripResponse(t *domain.Trip) TripResponse {
	reservations := make([]ReservationResponse, 0, len(t.Reservations))
	for _, r := range t.Reservations {
		reservations = append(reservations, toReservationResponse(r))
	}
	return TripResponse{
		ID:             t.ID,
		Origin:         t.Origin,
		Destination:    t.Destination,
		DepartureAt:    t.DepartureAt,
		DriverID:       t.DriverID,
		DriverName:     t.DriverName,
		SeatCapacity:   t.SeatCapacity,
		ReservedSeats:  t.ReservedSeats,
		RemainingSeats: t.RemainingSeats(),
		Price:          t.Price,
		Description:    t.Description,
		Reservations:   reservations,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
	}
}

func toTripResponses(trips []*domain.Trip) []TripResponse {
	out := make([]TripResponse, 0, len(trips))
	for _, t := range trips {
		out = append(out, toTripResponse(t))
	}
	return out
}

// ListTrips handles GET /v1/trips
func (h *TripHandler) ListTrips(c *gin.Context) {
	filter := domain.TripFilter{
		Origin:      c.Query("origin"),
		Destination: c.Query("destination"),
	}

	if v := c.Query("date"); v != "" {
		day, err := time.Parse(dateLayout, v)
		if err != nil {
			respondBadRequest(c, "date must use the YYYY-MM-DD format")
			return
		}
		filter.DepartureDate = day
	}

	if v := c.Query("minSeats"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			respondBadRequest(c, "minSeats must be an integer")
			return
		}
		filter.MinSeats = n
	}

	trips, err := h.tripService.ListTrips(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, "trips retrieved", gin.H{
		"count": len(trips),
		"trips": toTripResponses(trips),
	})
}

// GetTrip handles GET /v1/trips/:id
func (h *TripHandler) GetTrip(c *gin.Context) {
	trip, err := h.tripService.GetTrip(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, "trip retrieved", gin.H{"trip": toTripResponse(trip)})
}

// Summary handles GET /v1/trips/summary
func (h *TripHandler) Summary(c *gin.Context) {
	summary, err := h.tripService.Summary(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	upcoming := make([]UpcomingTripResponse, 0, len(summary.Upcoming))
	for _, t := range summary.Upcoming {
		upcoming = append(upcoming, UpcomingTripResponse{
			ID:             t.ID,
			Origin:         t.Origin,
			Destination:    t.Destination,
			DepartureAt:    t.DepartureAt,
			Price:          t.Price,
			DriverName:     t.DriverName,
			RemainingSeats: t.RemainingSeats(),
		})
	}

	respondJSON(c, http.StatusOK, "summary retrieved", gin.H{
		"summary": SummaryResponse{
			AvailableTrips: summary.AvailableTrips,
			MinPrice:       summary.MinPrice,
			MaxPrice:       summary.MaxPrice,
			Upcoming:       upcoming,
		},
	})
}

// ListMine handles GET /v1/trips/mine
func (h *TripHandler) ListMine(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}

	trips, err := h.tripService.ListDriverTrips(c.Request.Context(), actor)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, "trips retrieved", gin.H{
		"count": len(trips),
		"trips": toTripResponses(trips),
	})
}

// CreateTrip handles POST /v1/trips
func (h *TripHandler) CreateTrip(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}

	var req CreateTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	trip, err := h.tripService.CreateTrip(c.Request.Context(), service.CreateTripRequest{
		Actor:        actor,
		Origin:       req.Origin,
		Destination:  req.Destination,
		DepartureAt:  req.DepartureAt,
		SeatCapacity: req.SeatCapacity,
		Price:        req.Price,
		Description:  req.Description,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, "trip created", gin.H{"trip": toTripResponse(trip)})
}

// UpdateTrip handles PUT /v1/trips/:id
func (h *TripHandler) UpdateTrip(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}

	var req UpdateTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	trip, err := h.tripService.UpdateTrip(c.Request.Context(), service.UpdateTripRequest{
		Actor:  actor,
		TripID: c.Param("id"),
		Fields: domain.TripFields{
			Origin:       req.Origin,
			Destination:  req.Destination,
			DepartureAt:  req.DepartureAt,
			SeatCapacity: req.SeatCapacity,
			Price:        req.Price,
			Description:  req.Description,
		},
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, "trip updated", gin.H{"trip": toTripResponse(trip)})
}

// DeleteTrip handles DELETE /v1/trips/:id
func (h *TripHandler) DeleteTrip(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}

	err := h.tripService.DeleteTrip(c.Request.Context(), service.DeleteTripRequest{
		Actor:  actor,
		TripID: c.Param("id"),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, "trip deleted", nil)
}
