package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"smartride/internal/domain"
	"smartride/internal/service"
)

// ReservationHandler handles HTTP requests for seat reservations.
type ReservationHandler struct {
	reservationService *service.ReservationService
}

// NewReservationHandler creates a new ReservationHandler.
func NewReservationHandler(reservationService *service.ReservationService) *ReservationHandler {
	return &ReservationHandler{reservationService: reservationService}
}

// SeatsRequest is the HTTP request body for booking or modifying seats.
type SeatsRequest struct {
	Seats int `json:"seats"`
}

// ReservationResponse is the HTTP representation of a reservation.
type ReservationResponse struct {
	ID            string    `json:"id"`
	PassengerID   string    `json:"passenger_id"`
	PassengerName string    `json:"passenger_name"`
	Seats         int       `json:"seats"`
	BookedAt      time.Time `json:"booked_at"`
}

// BookingResponse pairs a reservation with its trip.
type BookingResponse struct {
	Reservation ReservationResponse `json:"reservation"`
	Trip        TripResponse        `json:"trip"`
}

func toReservationResponse(r domain.Reservation) ReservationResponse {
	return ReservationResponse{
		ID:            r.ID,
		PassengerID:   r.PassengerID,
		PassengerName: r.PassengerName,
		Seats:         r.Seats,
		BookedAt:      r.BookedAt,
	}
}

// Book handles POST /v1/trips/:id/reservations
func (h *ReservationHandler) Book(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}

	var req SeatsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	result, err := h.reservationService.Book(c.Request.Context(), service.BookRequest{
		Actor:  actor,
		TripID: c.Param("id"),
		Seats:  req.Seats,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, "reservation confirmed", gin.H{
		"reservation": toReservationResponse(result.Reservation),
		"trip":        toTripResponse(result.Trip),
	})
}

// Modify handles PUT /v1/trips/:id/reservations/:reservationId
func (h *ReservationHandler) Modify(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}

	var req SeatsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	result, err := h.reservationService.Modify(c.Request.Context(), service.ModifyRequest{
		Actor:         actor,
		TripID:        c.Param("id"),
		ReservationID: c.Param("reservationId"),
		Seats:         req.Seats,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, "reservation updated", gin.H{
		"reservation": toReservationResponse(result.Reservation),
		"trip":        toTripResponse(result.Trip),
	})
}

// Cancel handles DELETE /v1/trips/:id/reservations/:reservationId
func (h *ReservationHandler) Cancel(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}

	result, err := h.reservationService.Cancel(c.Request.Context(), service.CancelRequest{
		Actor:         actor,
		TripID:        c.Param("id"),
		ReservationID: c.Param("reservationId"),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, "reservation cancelled", gin.H{
		"trip": toTripResponse(result.Trip),
	})
}

// ListMine handles GET /v1/trips/reservations/mine
func (h *ReservationHandler) ListMine(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}

	bookings, err := h.reservationService.ListPassengerBookings(c.Request.Context(), actor)
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]BookingResponse, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, BookingResponse{
			Reservation: toReservationResponse(b.Reservation),
			Trip:        toTripResponse(b.Trip),
		})
	}

	respondJSON(c, http.StatusOK, "reservations retrieved", gin.H{
		"count":        len(out),
		"reservations": out,
	})
}
