package outbox

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/md-rashed-zaman/homebook/libs/kafkax"
	"github.com/md-rashed-zaman/homebook/services/booking-service/internal/domain"
)

func TestNewBookingEventPayload(t *testing.T) {
	at := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	b := domain.Booking{ID: "b1", UserID: "u1", ProviderID: "p1", Status: domain.BookingCancelled, Start: at, DurationMinutes: 60}
	evt, err := NewBookingEvent(BookingCancelled, b, "u1", "sick", at)
	if err != nil {
		t.Fatalf("NewBookingEvent failed: %v", err)
	}
	if evt.EventID == "" || evt.AggregateID != "b1" || evt.EventType != BookingCancelled {
		t.Fatalf("unexpected envelope: %+v", evt)
	}
	var payload BookingEvent
	if err := json.Unmarshal(evt.Payload, &payload); err != nil {
		t.Fatalf("payload is not json: %v", err)
	}
	if payload.Reason != "sick" || payload.Status != "cancelled" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestPaymentEventKeyedByBooking(t *testing.T) {
	evt, err := NewPaymentEvent(PaymentRefunded, domain.Payment{ID: "pay1", BookingID: "b1"}, time.Now())
	if err != nil {
		t.Fatalf("NewPaymentEvent failed: %v", err)
	}
	if evt.AggregateID != "b1" {
		t.Fatalf("expected booking id as key, got %q", evt.AggregateID)
	}
}

func TestToMessageCarriesMeta(t *testing.T) {
	msg := toMessage(context.Background(), Record{ID: 1, EventID: "e1", AggregateID: "b1", EventType: BookingConfirmed, Payload: []byte(`{}`)})
	if msg.Topic != BookingConfirmed || string(msg.Key) != "b1" {
		t.Fatalf("unexpected message: %+v", msg)
	}
	if kafkax.HeaderValue(msg.Headers, kafkax.HeaderEventID) != "e1" {
		t.Fatal("expected event id header")
	}
}
