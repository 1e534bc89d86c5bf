package domain

import (
	"math"
	"time"
)

// Trip is a ride offer published by a driver. Reservations are embedded and
// the whole value is persisted as one aggregate.
type Trip struct {
	ID            string
	Origin        string
	Destination   string
	DepartureAt   time.Time
	DriverID      string
	DriverName    string
	SeatCapacity  int
	ReservedSeats int
	Price         float64
	Description   string
	Reservations  []Reservation // booking order
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Reservation is a passenger's claim on seats within one trip.
type Reservation struct {
	ID            string    `json:"id"`
	PassengerID   string    `json:"passenger_id"`
	PassengerName string    `json:"passenger_name"`
	Seats         int       `json:"seats"`
	BookedAt      time.Time `json:"booked_at"`
}

// Clone returns a deep copy so callers can mutate without aliasing the
// reservation slice of the original.
func (t *Trip) Clone() *Trip {
	if t == nil {
		return nil
	}
	c := *t
	if t.Reservations != nil {
		c.Reservations = make([]Reservation, len(t.Reservations))
		copy(c.Reservations, t.Reservations)
	}
	return &c
}

// StoreResolution is the finest timestamp precision the trip stores keep.
const StoreResolution = time.Microsecond

// Touch stamps UpdatedAt for a committed change. Successive changes of the
// same trip always get strictly increasing stamps, even if the clock goes
// backwards, so UpdatedAt doubles as the aggregate's revision.
func (t *Trip) Touch(now time.Time) {
	now = now.UTC().Truncate(StoreResolution)
	if !now.After(t.UpdatedAt) {
		now = t.UpdatedAt.Add(StoreResolution)
	}
	t.UpdatedAt = now
}

// Revision orders committed versions of the same trip.
func (t *Trip) Revision() int64 {
	return t.UpdatedAt.UnixMicro()
}

// MaxPrice is the largest price the trips table can hold (NUMERIC(10, 2)).
const MaxPrice = 99999999.99

// ValidPrice reports whether price is a positive amount in whole cents that
// the stores keep without rounding.
func ValidPrice(price float64) bool {
	if math.IsNaN(price) || price < 0.01 || price > MaxPrice {
		return false
	}
	cents := price * 100
	return math.Abs(cents-math.Round(cents)) < 1e-6
}

// FindReservation returns the index of the reservation with the given id, or -1.
func (t *Trip) FindReservation(reservationID string) int {
	for i := range t.Reservations {
		if t.Reservations[i].ID == reservationID {
			return i
		}
	}
	return -1
}

// ReservationFor returns the passenger's reservation on this trip, if any.
func (t *Trip) ReservationFor(passengerID string) (*Reservation, bool) {
	for i := range t.Reservations {
		if t.Reservations[i].PassengerID == passengerID {
			return &t.Reservations[i], true
		}
	}
	return nil, false
}

// TripFields holds the driver-editable attributes of a trip. Zero values mean
// "not supplied" except Description, which is a pointer so it can be cleared.
type TripFields struct {
	Origin       string
	Destination  string
	DepartureAt  time.Time
	SeatCapacity int
	Price        float64
	Description  *string
}

// TripFilter narrows a trip search.
type TripFilter struct {
	Origin        string
	Destination   string
	DepartureDate time.Time // zero means any day
	MinSeats      int       // compared against remaining seats
	DepartsAfter  time.Time // zero means no lower bound
}

// PassengerBooking pairs a passenger's reservation with its trip.
type PassengerBooking struct {
	Reservation Reservation
	Trip        *Trip
}
