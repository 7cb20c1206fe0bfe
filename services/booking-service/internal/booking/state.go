package booking

import "github.com/md-rashed-zaman/homebook/services/booking-service/internal/domain"

// transitions lists the legal moves; completed, cancelled and rejected are terminal.
var transitions = map[domain.BookingStatus][]domain.BookingStatus{
	domain.BookingPending:   {domain.BookingConfirmed, domain.BookingRejected, domain.BookingCancelled},
	domain.BookingConfirmed: {domain.BookingCompleted, domain.BookingCancelled},
}

func CanTransition(from, to domain.BookingStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func checkTransition(op string, b domain.Booking, to domain.BookingStatus) error {
	if !CanTransition(b.Status, to) {
		return domain.InvalidTransition(op, "booking "+b.ID, b.Status, to)
	}
	return nil
}
