package outbox

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/homebook/services/booking-service/internal/domain"
)

// Topics. The Kafka topic name equals the event type.
const (
	BookingCreated     = "booking.created.v1"
	BookingConfirmed   = "booking.confirmed.v1"
	BookingRejected    = "booking.rejected.v1"
	BookingCancelled   = "booking.cancelled.v1"
	BookingCompleted   = "booking.completed.v1"
	BookingRescheduled = "booking.rescheduled.v1"
	PaymentCompleted   = "payment.completed.v1"
	PaymentFailed      = "payment.failed.v1"
	PaymentRefunded    = "payment.refunded.v1"
)

// Event is the envelope written to the outbox table.
type Event struct {
	EventID       string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// BookingEvent is the payload of every booking.* topic.
type BookingEvent struct {
	BookingID       string    `json:"booking_id"`
	UserID          string    `json:"user_id"`
	ProviderID      string    `json:"provider_id"`
	ServiceID       string    `json:"service_id"`
	Status          string    `json:"status"`
	Start           time.Time `json:"start"`
	DurationMinutes int       `json:"duration_minutes"`
	Reason          string    `json:"reason,omitempty"`
	ActorID         string    `json:"actor_id,omitempty"`
	OccurredAt      time.Time `json:"occurred_at"`
}

// PaymentEvent is the payload of every payment.* topic.
type PaymentEvent struct {
	PaymentID     string    `json:"payment_id"`
	BookingID     string    `json:"booking_id"`
	UserID        string    `json:"user_id"`
	Amount        int64     `json:"amount"`
	Currency      string    `json:"currency"`
	Status        string    `json:"status"`
	TransactionID string    `json:"transaction_id,omitempty"`
	FailureReason string    `json:"failure_reason,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

func newEvent(aggregateType, aggregateID, eventType string, payload any) (Event, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Event{
		EventID:       uuid.NewString(),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       body,
	}, nil
}

func NewBookingEvent(eventType string, b domain.Booking, actorID, reason string, at time.Time) (Event, error) {
	return newEvent("booking", b.ID, eventType, BookingEvent{
		BookingID:       b.ID,
		UserID:          b.UserID,
		ProviderID:      b.ProviderID,
		ServiceID:       b.ServiceID,
		Status:          string(b.Status),
		Start:           b.Start.UTC(),
		DurationMinutes: b.DurationMinutes,
		Reason:          reason,
		ActorID:         actorID,
		OccurredAt:      at.UTC(),
	})
}

// NewPaymentEvent keys payment events by booking so they stay ordered with
// the booking's own events on one partition.
func NewPaymentEvent(eventType string, p domain.Payment, at time.Time) (Event, error) {
	return newEvent("payment", p.BookingID, eventType, PaymentEvent{
		PaymentID:     p.ID,
		BookingID:     p.BookingID,
		UserID:        p.UserID,
		Amount:        p.Amount,
		Currency:      p.Currency,
		Status:        string(p.Status),
		TransactionID: p.TransactionID,
		FailureReason: p.FailureReason,
		OccurredAt:    at.UTC(),
	})
}
