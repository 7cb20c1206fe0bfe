// Package api serves the notification preferences and delivery history of
// the calling user.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/mail"
	"strings"

	"github.com/md-rashed-zaman/homebook/libs/httpx"
	"github.com/md-rashed-zaman/homebook/services/notification-service/internal/storage"
)

type Store interface {
	GetContact(ctx context.Context, userID string) (storage.Contact, error)
	UpsertContact(ctx context.Context, c storage.Contact) (storage.Contact, error)
	ListNotifications(ctx context.Context, userID string, limit int) ([]storage.Notification, error)
}

type Handler struct {
	store  Store
	logger *slog.Logger
}

func NewHandler(store Store, logger *slog.Logger) *Handler {
	return &Handler{store: store, logger: logger}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/notifications/contact", h.GetContact)
	mux.HandleFunc("PUT /api/v1/notifications/contact", h.PutContact)
	mux.HandleFunc("GET /api/v1/notifications", h.List)
}

func userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := strings.TrimSpace(r.Header.Get(httpx.UserIDHeader))
	if id == "" {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthenticated", "missing "+httpx.UserIDHeader)
		return "", false
	}
	return id, true
}

func (h *Handler) GetContact(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	c, err := h.store.GetContact(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		httpx.WriteError(w, http.StatusNotFound, "not_found", "no contact on file")
		return
	}
	if err != nil {
		h.internal(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, c)
}

type contactRequest struct {
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Channel string `json:"channel"`
	Muted   bool   `json:"muted"`
}

func (h *Handler) PutContact(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	var req contactRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	c := storage.Contact{
		UserID:  id,
		Email:   strings.TrimSpace(req.Email),
		Phone:   strings.TrimSpace(req.Phone),
		Channel: strings.ToLower(strings.TrimSpace(req.Channel)),
		Muted:   req.Muted,
	}
	if c.Channel == "" {
		c.Channel = storage.ChannelEmail
	}
	if msg := validate(c); msg != "" {
		httpx.WriteError(w, http.StatusBadRequest, "validation_failed", msg)
		return
	}
	saved, err := h.store.UpsertContact(r.Context(), c)
	if err != nil {
		h.internal(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, saved)
}

func validate(c storage.Contact) string {
	switch c.Channel {
	case storage.ChannelEmail:
		if c.Email == "" {
			return "email is required for the email channel"
		}
	case storage.ChannelSMS:
		if c.Phone == "" {
			return "phone is required for the sms channel"
		}
	default:
		return "channel must be email or sms"
	}
	if c.Email != "" {
		if _, err := mail.ParseAddress(c.Email); err != nil {
			return "email is not a valid address"
		}
	}
	return ""
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	items, err := h.store.ListNotifications(r.Context(), id, 50)
	if err != nil {
		h.internal(w, r, err)
		return
	}
	if items == nil {
		items = []storage.Notification{}
	}
	httpx.WriteJSON(w, http.StatusOK, items)
}

func (h *Handler) internal(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Error("request failed", "path", r.URL.Path, "err", err)
	httpx.WriteError(w, http.StatusInternalServerError, "internal", "internal error")
}
