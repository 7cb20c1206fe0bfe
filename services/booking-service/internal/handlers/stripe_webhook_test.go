package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/md-rashed-zaman/homebook/services/booking-service/internal/domain"
	"github.com/md-rashed-zaman/homebook/services/booking-service/internal/payment"
	"github.com/stripe/stripe-go/v79/webhook"
)

const (
	testWebhookSecret = "whsec_test"
	firstPaymentID    = "0b8a4f5e-2f6c-4a53-9d41-6c1f0f3a9e01"
	secondPaymentID   = "5d2e7c19-8b3a-4f60-a7d2-1e9c4b6f8a02"
)

type fakeSettler struct {
	calls []payment.ChargeResult
	ids   []string
	err   error
}

func (f *fakeSettler) Settle(_ context.Context, id string, res payment.ChargeResult) (domain.Payment, error) {
	f.ids = append(f.ids, id)
	f.calls = append(f.calls, res)
	if f.err != nil {
		return domain.Payment{}, f.err
	}
	status := domain.PaymentFailed
	if res.Success {
		status = domain.PaymentCompleted
	}
	return domain.Payment{ID: id, Status: status}, nil
}

func stripeEvent(t *testing.T, eventType string, intent map[string]any) []byte {
	t.Helper()
	raw, err := json.Marshal(map[string]any{
		"id":          "evt_test_1",
		"object":      "event",
		"created":     time.Now().Unix(),
		"type":        eventType,
		"api_version": "2024-06-20",
		"data":        map[string]any{"object": intent},
	})
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return raw
}

func postWebhook(t *testing.T, h *StripeWebhookHandler, payload []byte, secret string) *httptest.ResponseRecorder {
	t.Helper()
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: time.Now(),
		Scheme:    "v1",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", signed.Header)
	rec := httptest.NewRecorder()
	h.Handle(rec, req)
	return rec
}

func newWebhookHandler(s Settler) *StripeWebhookHandler {
	return NewStripeWebhookHandler(s, testWebhookSecret, 0, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestStripeWebhookSettlesSucceededIntent(t *testing.T) {
	s := &fakeSettler{}
	h := newWebhookHandler(s)

	rec := postWebhook(t, h, stripeEvent(t, "payment_intent.succeeded", map[string]any{
		"id":       "pi_123",
		"object":   "payment_intent",
		"metadata": map[string]any{"payment_id": firstPaymentID},
	}), testWebhookSecret)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(s.calls) != 1 || s.ids[0] != firstPaymentID {
		t.Fatalf("expected one settle for the first payment, got %v", s.ids)
	}
	if !s.calls[0].Success || s.calls[0].TransactionID != "pi_123" {
		t.Fatalf("unexpected charge result: %+v", s.calls[0])
	}
}

func TestStripeWebhookCarriesFailureReason(t *testing.T) {
	s := &fakeSettler{}
	h := newWebhookHandler(s)

	rec := postWebhook(t, h, stripeEvent(t, "payment_intent.payment_failed", map[string]any{
		"id":                 "pi_456",
		"object":             "payment_intent",
		"metadata":           map[string]any{"payment_id": secondPaymentID},
		"last_payment_error": map[string]any{"message": "Your card was declined."},
	}), testWebhookSecret)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(s.calls) != 1 || s.calls[0].Success || s.calls[0].FailureReason != "Your card was declined." {
		t.Fatalf("unexpected settle calls: %+v", s.calls)
	}
}

func TestStripeWebhookRejectsBadSignature(t *testing.T) {
	s := &fakeSettler{}
	h := newWebhookHandler(s)

	rec := postWebhook(t, h, stripeEvent(t, "payment_intent.succeeded", map[string]any{
		"id":       "pi_123",
		"metadata": map[string]any{"payment_id": firstPaymentID},
	}), "whsec_other")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if len(s.calls) != 0 {
		t.Fatalf("settle must not run on a bad signature")
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", bytes.NewReader([]byte("{}")))
	rec = httptest.NewRecorder()
	h.Handle(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without signature header, got %d", rec.Code)
	}
}

func TestStripeWebhookIgnoresOtherEvents(t *testing.T) {
	s := &fakeSettler{}
	h := newWebhookHandler(s)

	rec := postWebhook(t, h, stripeEvent(t, "charge.refunded", map[string]any{"id": "ch_1"}), testWebhookSecret)
	if rec.Code != http.StatusOK || len(s.calls) != 0 {
		t.Fatalf("expected ignored event, got %d with %d calls", rec.Code, len(s.calls))
	}

	rec = postWebhook(t, h, stripeEvent(t, "payment_intent.succeeded", map[string]any{"id": "pi_9"}), testWebhookSecret)
	if rec.Code != http.StatusOK || len(s.calls) != 0 {
		t.Fatalf("intent without payment_id should be ignored, got %d with %d calls", rec.Code, len(s.calls))
	}
}

func TestStripeWebhookUnknownPaymentIsAcknowledged(t *testing.T) {
	h := newWebhookHandler(&fakeSettler{err: domain.NotFound("settle payment", "payment", firstPaymentID)})
	rec := postWebhook(t, h, stripeEvent(t, "payment_intent.succeeded", map[string]any{
		"id":       "pi_1",
		"metadata": map[string]any{"payment_id": firstPaymentID},
	}), testWebhookSecret)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for unknown payment, got %d", rec.Code)
	}

	s := &fakeSettler{}
	rec = postWebhook(t, newWebhookHandler(s), stripeEvent(t, "payment_intent.succeeded", map[string]any{
		"id":       "pi_1",
		"metadata": map[string]any{"payment_id": "not-a-uuid"},
	}), testWebhookSecret)
	if rec.Code != http.StatusOK || len(s.calls) != 0 {
		t.Fatalf("malformed payment_id should be acknowledged without settling, got %d with %d calls", rec.Code, len(s.calls))
	}

	h = newWebhookHandler(&fakeSettler{err: context.DeadlineExceeded})
	rec = postWebhook(t, h, stripeEvent(t, "payment_intent.succeeded", map[string]any{
		"id":       "pi_1",
		"metadata": map[string]any{"payment_id": firstPaymentID},
	}), testWebhookSecret)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 so Stripe retries, got %d", rec.Code)
	}
}
