package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/md-rashed-zaman/homebook/libs/httpx"
	"github.com/md-rashed-zaman/homebook/services/booking-service/internal/domain"
	"github.com/md-rashed-zaman/homebook/services/booking-service/internal/payment"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"
)

// Settler applies a processor answer to a pending payment.
type Settler interface {
	Settle(ctx context.Context, paymentID string, res payment.ChargeResult) (domain.Payment, error)
}

// StripeWebhookHandler settles payments whose charge was still open when
// Initiate returned. The signature is the only authentication; the gateway
// forwards this path without a token.
type StripeWebhookHandler struct {
	payments  Settler
	secret    string
	tolerance time.Duration
	logger    *slog.Logger
}

func NewStripeWebhookHandler(payments Settler, secret string, tolerance time.Duration, logger *slog.Logger) *StripeWebhookHandler {
	if tolerance <= 0 {
		tolerance = webhook.DefaultTolerance
	}
	return &StripeWebhookHandler{payments: payments, secret: secret, tolerance: tolerance, logger: logger}
}

func (h *StripeWebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	sigHeader := r.Header.Get("Stripe-Signature")
	if strings.TrimSpace(sigHeader) == "" {
		badRequest(w, "missing Stripe-Signature header")
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		badRequest(w, "failed to read request body")
		return
	}
	evt, err := webhook.ConstructEventWithOptions(body, sigHeader, h.secret, webhook.ConstructEventOptions{
		Tolerance:                h.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		badRequest(w, "invalid signature")
		return
	}

	var res payment.ChargeResult
	switch evt.Type {
	case "payment_intent.succeeded":
		res.Success = true
	case "payment_intent.payment_failed", "payment_intent.canceled":
	default:
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal(evt.Data.Raw, &pi); err != nil {
		badRequest(w, "malformed payment intent")
		return
	}
	paymentID := pi.Metadata["payment_id"]
	if paymentID == "" {
		h.logger.Warn("stripe event without payment_id", "event_id", evt.ID, "event_type", evt.Type)
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}
	res.TransactionID = pi.ID
	if !res.Success {
		res.FailureReason = failureReason(&pi)
	}

	var p domain.Payment
	err = domain.NotFound("settle payment", "payment", paymentID)
	if validID(paymentID) {
		p, err = h.payments.Settle(r.Context(), paymentID, res)
	}
	switch {
	case errors.Is(err, domain.ErrNotFound):
		// Acknowledge so Stripe stops redelivering an event we can never apply.
		h.logger.Warn("stripe event for unknown payment", "event_id", evt.ID, "payment_id", paymentID)
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "unknown_payment"})
		return
	case err != nil:
		h.logger.Error("stripe event settle failed", "event_id", evt.ID, "payment_id", paymentID, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal", "failed to apply event")
		return
	}
	h.logger.Info("stripe event applied",
		"event_id", evt.ID,
		"event_type", evt.Type,
		"payment_id", p.ID,
		"status", p.Status,
	)
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": string(p.Status)})
}

func failureReason(pi *stripe.PaymentIntent) string {
	if pi.LastPaymentError != nil && pi.LastPaymentError.Msg != "" {
		return pi.LastPaymentError.Msg
	}
	if pi.CancellationReason != "" {
		return "canceled: " + string(pi.CancellationReason)
	}
	return "payment failed"
}
