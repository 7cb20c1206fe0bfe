package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/md-rashed-zaman/homebook/libs/httpx"
	"github.com/md-rashed-zaman/homebook/services/booking-service/internal/domain"
	"github.com/md-rashed-zaman/homebook/services/booking-service/internal/payment"
)

type PaymentHandler struct {
	svc    *payment.Service
	logger *slog.Logger
}

func NewPaymentHandler(svc *payment.Service, logger *slog.Logger) *PaymentHandler {
	return &PaymentHandler{svc: svc, logger: logger}
}

type initiatePaymentRequest struct {
	Token string `json:"token"`
}

// Initiate answers 201 for completed and declined charges alike; the payment
// status tells them apart. An unknown outcome is a 502.
func (h *PaymentHandler) Initiate(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req initiatePaymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	p, err := h.svc.Initiate(r.Context(), actor, payment.InitiateRequest{
		BookingID: r.PathValue("id"),
		Token:     req.Token,
	})
	if err != nil {
		if errors.Is(err, domain.ErrExternalFailure) && p.ID != "" {
			h.logger.Warn("payment outcome unknown", "payment_id", p.ID, "booking_id", p.BookingID, "err", err)
		}
		writeError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, p)
}

func (h *PaymentHandler) ListByBooking(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	items, err := h.svc.ListByBooking(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if items == nil {
		items = []domain.Payment{}
	}
	httpx.WriteJSON(w, http.StatusOK, items)
}

func (h *PaymentHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	h.respond(w, r)(h.svc.Get(r.Context(), actor, r.PathValue("id")))
}

func (h *PaymentHandler) Refund(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	h.respond(w, r)(h.svc.Refund(r.Context(), actor, r.PathValue("id")))
}

type updatePaymentRequest struct {
	Status        *domain.PaymentStatus `json:"status"`
	Amount        *int64                `json:"amount"`
	Currency      *string               `json:"currency"`
	TransactionID *string               `json:"transaction_id"`
	FailureReason *string               `json:"failure_reason"`
}

func (h *PaymentHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req updatePaymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	h.respond(w, r)(h.svc.Update(r.Context(), actor, r.PathValue("id"), payment.UpdateRequest(req)))
}

func (h *PaymentHandler) respond(w http.ResponseWriter, r *http.Request) func(domain.Payment, error) {
	return func(p domain.Payment, err error) {
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, p)
	}
}
