package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/md-rashed-zaman/homebook/libs/kafkax"
	"github.com/md-rashed-zaman/homebook/services/notification-service/internal/storage"
	"github.com/segmentio/kafka-go"
)

type fakeStore struct {
	contacts map[string]storage.Contact
	recorded []storage.Notification
}

func (s *fakeStore) GetContact(_ context.Context, userID string) (storage.Contact, error) {
	c, ok := s.contacts[userID]
	if !ok {
		return storage.Contact{}, storage.ErrNotFound
	}
	return c, nil
}

func (s *fakeStore) InsertNotification(_ context.Context, n storage.Notification) error {
	s.recorded = append(s.recorded, n)
	return nil
}

type fakeEmail struct {
	to, subject string
	err         error
}

func (f *fakeEmail) ProviderID() string { return "fake-smtp" }

func (f *fakeEmail) Send(_ context.Context, to, subject, _ string) error {
	f.to, f.subject = to, subject
	return f.err
}

type fakeSMS struct{ to, body string }

func (f *fakeSMS) ProviderID() string { return "fake-sms" }

func (f *fakeSMS) Send(_ context.Context, to, body string) error {
	f.to, f.body = to, body
	return nil
}

func bookingMessage(t *testing.T, eventType, userID string) (kafkax.EventMeta, kafka.Message) {
	t.Helper()
	payload, err := json.Marshal(map[string]any{
		"booking_id":       "b-1",
		"user_id":          userID,
		"provider_id":      "p-1",
		"start":            time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC),
		"duration_minutes": 60,
		"reason":           "provider unavailable",
	})
	if err != nil {
		t.Fatal(err)
	}
	return kafkax.EventMeta{EventID: "e-" + eventType, EventType: eventType}, kafka.Message{Topic: eventType, Value: payload}
}

func newDispatcher(store *fakeStore, em *fakeEmail, sm *fakeSMS) *Dispatcher {
	return NewDispatcher(store, em, sm, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestDispatchEmail(t *testing.T) {
	store := &fakeStore{contacts: map[string]storage.Contact{"u-1": {UserID: "u-1", Email: "u1@example.com", Channel: storage.ChannelEmail}}}
	em := &fakeEmail{}
	d := newDispatcher(store, em, &fakeSMS{})

	meta, msg := bookingMessage(t, "booking.confirmed.v1", "u-1")
	if err := d.Handle(context.Background(), meta, msg); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if em.to != "u1@example.com" || em.subject != "Booking confirmed" {
		t.Fatalf("unexpected email to=%q subject=%q", em.to, em.subject)
	}
	if len(store.recorded) != 1 || store.recorded[0].Status != storage.StatusSent || store.recorded[0].Provider != "fake-smtp" {
		t.Fatalf("unexpected record %+v", store.recorded)
	}
}

func TestDispatchSMSIncludesReason(t *testing.T) {
	store := &fakeStore{contacts: map[string]storage.Contact{"u-1": {UserID: "u-1", Phone: "+15550100", Channel: storage.ChannelSMS}}}
	sm := &fakeSMS{}
	d := newDispatcher(store, &fakeEmail{}, sm)

	meta, msg := bookingMessage(t, "booking.rejected.v1", "u-1")
	if err := d.Handle(context.Background(), meta, msg); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if sm.to != "+15550100" || !strings.Contains(sm.body, "provider unavailable") {
		t.Fatalf("unexpected sms to=%q body=%q", sm.to, sm.body)
	}
}

func TestDispatchSkipsUnknownOrMutedUsers(t *testing.T) {
	store := &fakeStore{contacts: map[string]storage.Contact{"u-2": {UserID: "u-2", Email: "u2@example.com", Channel: storage.ChannelEmail, Muted: true}}}
	em := &fakeEmail{}
	d := newDispatcher(store, em, &fakeSMS{})

	for _, user := range []string{"u-1", "u-2"} {
		meta, msg := bookingMessage(t, "booking.created.v1", user)
		if err := d.Handle(context.Background(), meta, msg); err != nil {
			t.Fatalf("handle %s: %v", user, err)
		}
	}
	if em.to != "" {
		t.Fatalf("nothing should have been sent, got %q", em.to)
	}
	if len(store.recorded) != 2 || store.recorded[0].Status != storage.StatusSkipped || store.recorded[1].FailureReason != "muted" {
		t.Fatalf("unexpected records %+v", store.recorded)
	}
}

func TestDispatchRecordsDeliveryFailure(t *testing.T) {
	store := &fakeStore{contacts: map[string]storage.Contact{"u-1": {UserID: "u-1", Email: "u1@example.com", Channel: storage.ChannelEmail}}}
	d := newDispatcher(store, &fakeEmail{err: errors.New("relay refused")}, &fakeSMS{})

	meta, msg := bookingMessage(t, "booking.cancelled.v1", "u-1")
	if err := d.Handle(context.Background(), meta, msg); err != nil {
		t.Fatalf("delivery failure should not be returned: %v", err)
	}
	if store.recorded[0].Status != storage.StatusFailed || store.recorded[0].FailureReason != "relay refused" {
		t.Fatalf("unexpected record %+v", store.recorded[0])
	}
}

func TestRenderPaymentEvents(t *testing.T) {
	payload := []byte(`{"payment_id":"pay-1","booking_id":"b-1","user_id":"u-1","amount":5000,"currency":"usd","failure_reason":"card declined"}`)
	msg, ok, err := Render("payment.failed.v1", payload)
	if err != nil || !ok {
		t.Fatalf("render: ok=%v err=%v", ok, err)
	}
	if msg.Subject != "Payment failed" || !strings.Contains(msg.Body, "50.00 USD") || !strings.Contains(msg.Body, "card declined") {
		t.Fatalf("unexpected message %+v", msg)
	}

	if _, ok, _ := Render("provider.registered.v1", []byte(`{}`)); ok {
		t.Fatal("unknown topics should not render")
	}
	if _, _, err := Render("booking.created.v1", []byte(`not json`)); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestFormatAmount(t *testing.T) {
	cases := map[int64]string{5000: "50.00 EUR", 5: "0.05 EUR", -125: "-1.25 EUR"}
	for minor, want := range cases {
		if got := FormatAmount(minor, "eur"); got != want {
			t.Fatalf("FormatAmount(%d) = %q, want %q", minor, got, want)
		}
	}
}
