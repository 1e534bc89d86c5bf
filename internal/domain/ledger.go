package domain

// RemainingSeats is always derived from the current trip state.
func (t *Trip) RemainingSeats() int {
	return t.SeatCapacity - t.ReservedSeats
}

// CanAllocate reports whether a new reservation of requested seats fits.
func (t *Trip) CanAllocate(requested int) bool {
	return requested >= 1 && requested <= t.RemainingSeats()
}

// CanAdjust reports whether an existing reservation can move from current to
// next seats. Only the increase has to fit; a decrease is always legal.
func (t *Trip) CanAdjust(current, next int) bool {
	return next >= 1 && next-current <= t.RemainingSeats()
}

// SeatsConsistent reports whether the reserved counter matches the embedded
// reservations and stays within capacity.
func (t *Trip) SeatsConsistent() bool {
	sum := 0
	for _, r := range t.Reservations {
		sum += r.Seats
	}
	return sum == t.ReservedSeats && t.ReservedSeats >= 0 && t.ReservedSeats <= t.SeatCapacity
}
