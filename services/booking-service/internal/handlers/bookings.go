package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/md-rashed-zaman/homebook/libs/config"
	"github.com/md-rashed-zaman/homebook/libs/httpx"
	"github.com/md-rashed-zaman/homebook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/homebook/services/booking-service/internal/domain"
)

const IdempotencyKeyHeader = "Idempotency-Key"

type BookingHandler struct {
	svc    *booking.Service
	logger *slog.Logger
}

func NewBookingHandler(svc *booking.Service, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{svc: svc, logger: logger}
}

type createBookingRequest struct {
	ProviderID string `json:"provider_id"`
	ServiceID  string `json:"service_id"`
	Start      string `json:"start"`
	Notes      string `json:"notes"`
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req createBookingRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	start, err := parseTime(req.Start)
	if err != nil {
		badRequest(w, "start must be an RFC3339 timestamp")
		return
	}
	req.ProviderID = strings.TrimSpace(req.ProviderID)
	req.ServiceID = strings.TrimSpace(req.ServiceID)
	if !validID(req.ProviderID) {
		writeError(w, r, h.logger, domain.NotFound("create booking", "provider", req.ProviderID))
		return
	}
	if !validID(req.ServiceID) {
		writeError(w, r, h.logger, domain.NotFound("create booking", "service", req.ServiceID))
		return
	}

	b, replayed, err := h.svc.Create(r.Context(), actor, booking.CreateRequest{
		ProviderID:     req.ProviderID,
		ServiceID:      req.ServiceID,
		Start:          start,
		Notes:          req.Notes,
		IdempotencyKey: r.Header.Get(IdempotencyKeyHeader),
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	status := http.StatusCreated
	if replayed {
		status = http.StatusOK
	}
	httpx.WriteJSON(w, status, b)
}

func (h *BookingHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	b, err := h.svc.Get(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, b)
}

// List accepts provider_id, status (comma separated), from, to, limit and offset.
func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	f := domain.BookingFilter{ProviderID: strings.TrimSpace(q.Get("provider_id"))}
	for _, s := range config.SplitList(q.Get("status")) {
		f.Statuses = append(f.Statuses, domain.BookingStatus(strings.ToLower(s)))
	}
	var err error
	if raw := q.Get("from"); raw != "" {
		if f.From, err = parseTime(raw); err != nil {
			badRequest(w, "from must be an RFC3339 timestamp")
			return
		}
	}
	if raw := q.Get("to"); raw != "" {
		if f.To, err = parseTime(raw); err != nil {
			badRequest(w, "to must be an RFC3339 timestamp")
			return
		}
	}
	if f.Limit, err = queryInt(r, "limit", domain.DefaultPageSize); err != nil {
		badRequest(w, err.Error())
		return
	}
	if f.Offset, err = queryInt(r, "offset", 0); err != nil {
		badRequest(w, err.Error())
		return
	}
	if f.ProviderID != "" && !validID(f.ProviderID) {
		// No provider can carry a malformed id.
		httpx.WriteJSON(w, http.StatusOK, []domain.Booking{})
		return
	}

	items, err := h.svc.List(r.Context(), actor, f)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if items == nil {
		items = []domain.Booking{}
	}
	httpx.WriteJSON(w, http.StatusOK, items)
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

type rescheduleRequest struct {
	Start string `json:"start"`
}

func (h *BookingHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	h.respond(w, r)(h.svc.Confirm(r.Context(), actor, r.PathValue("id")))
}

func (h *BookingHandler) Reject(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req reasonRequest
	if err := httpx.DecodeJSON(r, &req); err != nil && !errors.Is(err, httpx.ErrEmptyBody) {
		badRequest(w, err.Error())
		return
	}
	h.respond(w, r)(h.svc.Reject(r.Context(), actor, r.PathValue("id"), req.Reason))
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req reasonRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	h.respond(w, r)(h.svc.Cancel(r.Context(), actor, r.PathValue("id"), req.Reason))
}

func (h *BookingHandler) Complete(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	h.respond(w, r)(h.svc.Complete(r.Context(), actor, r.PathValue("id")))
}

func (h *BookingHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req rescheduleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	start, err := parseTime(req.Start)
	if err != nil {
		badRequest(w, "start must be an RFC3339 timestamp")
		return
	}
	h.respond(w, r)(h.svc.Reschedule(r.Context(), actor, r.PathValue("id"), start))
}

func (h *BookingHandler) respond(w http.ResponseWriter, r *http.Request) func(domain.Booking, error) {
	return func(b domain.Booking, err error) {
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, b)
	}
}
