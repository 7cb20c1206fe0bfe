package payment

import "github.com/md-rashed-zaman/homebook/services/booking-service/internal/domain"

// transitions is closed: anything not listed is rejected.
var transitions = map[domain.PaymentStatus][]domain.PaymentStatus{
	domain.PaymentPending:   {domain.PaymentCompleted, domain.PaymentFailed},
	domain.PaymentCompleted: {domain.PaymentRefunded},
}

func CanTransition(from, to domain.PaymentStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func checkTransition(op string, p domain.Payment, to domain.PaymentStatus) error {
	if !CanTransition(p.Status, to) {
		return domain.InvalidTransition(op, "payment "+p.ID, p.Status, to)
	}
	return nil
}
