package domain

import "time"

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

func (s PaymentStatus) String() string { return string(s) }

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentCompleted, PaymentFailed, PaymentRefunded:
		return true
	}
	return false
}

// Payment is one payment attempt for a booking. Its ID doubles as the
// idempotency key sent to the processor.
type Payment struct {
	ID             string        `json:"id"`
	BookingID      string        `json:"booking_id"`
	UserID         string        `json:"user_id"`
	Amount         int64         `json:"amount"`
	Currency       string        `json:"currency"`
	Status         PaymentStatus `json:"status"`
	Attempt        int           `json:"attempt"`
	Processor      string        `json:"processor"`
	TransactionID  string        `json:"transaction_id,omitempty"`
	FailureReason  string        `json:"failure_reason,omitempty"`
	RefundedAmount int64         `json:"refunded_amount"`
	RefundID       string        `json:"refund_id,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
	ProcessedAt    *time.Time    `json:"processed_at,omitempty"`
	RefundedAt     *time.Time    `json:"refunded_at,omitempty"`
}
