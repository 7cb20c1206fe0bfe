package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/md-rashed-zaman/homebook/libs/httpx"
	"github.com/md-rashed-zaman/homebook/services/notification-service/internal/storage"
)

type memStore struct {
	contacts map[string]storage.Contact
}

func (m *memStore) GetContact(_ context.Context, id string) (storage.Contact, error) {
	c, ok := m.contacts[id]
	if !ok {
		return storage.Contact{}, storage.ErrNotFound
	}
	return c, nil
}

func (m *memStore) UpsertContact(_ context.Context, c storage.Contact) (storage.Contact, error) {
	m.contacts[c.UserID] = c
	return c, nil
}

func (m *memStore) ListNotifications(context.Context, string, int) ([]storage.Notification, error) {
	return nil, nil
}

func serve(h *Handler, method, body, user string) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	h.Register(mux)
	req := httptest.NewRequest(method, "/api/v1/notifications/contact", strings.NewReader(body))
	if user != "" {
		req.Header.Set(httpx.UserIDHeader, user)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestContactRoundTrip(t *testing.T) {
	store := &memStore{contacts: map[string]storage.Contact{}}
	h := NewHandler(store, slog.New(slog.NewTextHandler(io.Discard, nil)))

	if rec := serve(h, http.MethodGet, "", "u-1"); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 before registration, got %d", rec.Code)
	}
	if rec := serve(h, http.MethodPut, `{"email":"u1@example.com"}`, "u-1"); rec.Code != http.StatusOK {
		t.Fatalf("put contact: %d %s", rec.Code, rec.Body.String())
	}
	if store.contacts["u-1"].Channel != storage.ChannelEmail {
		t.Fatalf("expected default email channel, got %+v", store.contacts["u-1"])
	}
	if rec := serve(h, http.MethodGet, "", "u-1"); rec.Code != http.StatusOK {
		t.Fatalf("get contact: %d", rec.Code)
	}
}

func TestContactValidation(t *testing.T) {
	h := NewHandler(&memStore{contacts: map[string]storage.Contact{}}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	cases := []string{
		`{"channel":"sms"}`,
		`{"channel":"pigeon","email":"a@b.c"}`,
		`{"email":"not an address"}`,
	}
	for _, body := range cases {
		if rec := serve(h, http.MethodPut, body, "u-1"); rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", body, rec.Code)
		}
	}
	if rec := serve(h, http.MethodPut, `{"email":"a@b.c"}`, ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without identity, got %d", rec.Code)
	}
}
