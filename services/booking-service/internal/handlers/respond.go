package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/homebook/libs/httpx"
	"github.com/md-rashed-zaman/homebook/services/booking-service/internal/domain"
)

// actorFrom reads the identity the gateway attached. Unknown roles are
// treated as customers.
func actorFrom(r *http.Request) (domain.Actor, bool) {
	id := strings.TrimSpace(r.Header.Get(httpx.UserIDHeader))
	if id == "" {
		return domain.Actor{}, false
	}
	role := strings.ToLower(strings.TrimSpace(r.Header.Get(httpx.RoleHeader)))
	switch role {
	case domain.RoleProvider, domain.RoleAdmin:
	default:
		role = domain.RoleCustomer
	}
	return domain.Actor{UserID: id, Role: role}, true
}

// requireActor writes 401 and returns false when the request carries no identity.
func requireActor(w http.ResponseWriter, r *http.Request) (domain.Actor, bool) {
	actor, ok := actorFrom(r)
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthenticated", "missing "+httpx.UserIDHeader)
	}
	return actor, ok
}

// writeError maps domain error kinds to HTTP; anything else is a logged 500.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status, code := http.StatusInternalServerError, "internal"
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrInvalidTransition):
		status, code = http.StatusConflict, "invalid_transition"
	case errors.Is(err, domain.ErrConflict):
		status, code = http.StatusConflict, "conflict"
	case errors.Is(err, domain.ErrUnauthorized):
		status, code = http.StatusForbidden, "forbidden"
	case errors.Is(err, domain.ErrExternalFailure):
		status, code = http.StatusBadGateway, "external_failure"
	case errors.Is(err, domain.ErrValidation):
		status, code = http.StatusBadRequest, "validation_failed"
	}

	if status == http.StatusInternalServerError {
		logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "request_id", httpx.RequestIDFromContext(r.Context()), "err", err)
		httpx.WriteError(w, status, code, "internal error")
		return
	}
	msg := domain.ReasonOf(err)
	if msg == "" {
		msg = err.Error()
	}
	httpx.WriteError(w, status, code, msg)
}

// validID reports whether id has the shape of a stored entity id. Anything
// else cannot match a row and is answered as not found before storage sees it.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// withIDs answers 404 for routes whose {id} or {slotID} is malformed.
func withIDs(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		for _, name := range []string{"id", "slotID"} {
			if v := r.PathValue(name); v != "" && !validID(v) {
				httpx.WriteError(w, http.StatusNotFound, "not_found", name+" "+v+" does not exist")
				return
			}
		}
		next(w, r)
	}
}

func badRequest(w http.ResponseWriter, msg string) {
	httpx.WriteError(w, http.StatusBadRequest, "bad_request", msg)
}

func parseTime(raw string) (time.Time, error) {
	return time.Parse(time.RFC3339, strings.TrimSpace(raw))
}

// queryInt returns fallback for an absent parameter and an error for a malformed one.
func queryInt(r *http.Request, key string, fallback int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.New(key + " must be a non-negative integer")
	}
	return n, nil
}
