package main

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/md-rashed-zaman/homebook/libs/auth"
	"github.com/md-rashed-zaman/homebook/libs/httpx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func registerRoutes(mux *http.ServeMux, cfg gatewayConfig, verifier *auth.Verifier) error {
	booking, err := newProxy(cfg.BookingURL)
	if err != nil {
		return fmt.Errorf("BOOKING_URL: %w", err)
	}
	notification, err := newProxy(cfg.NotificationURL)
	if err != nil {
		return fmt.Errorf("NOTIFICATION_URL: %w", err)
	}

	for _, prefix := range []string{"/api/v1/providers", "/api/v1/bookings", "/api/v1/payments", "/api/v1/reviews"} {
		registerProxy(mux, prefix, identify(booking, verifier))
	}
	registerProxy(mux, "/api/v1/notifications", identify(notification, verifier))
	// Stripe signs its own requests; no identity is attached.
	mux.Handle("POST /api/v1/webhooks/stripe", stripIdentity(booking))
	return nil
}

func newProxy(raw string) (*httputil.ReverseProxy, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%q is not an absolute url", raw)
	}
	p := httputil.NewSingleHostReverseProxy(u)
	p.Transport = otelhttp.NewTransport(http.DefaultTransport)
	p.ErrorHandler = func(w http.ResponseWriter, _ *http.Request, _ error) {
		httpx.WriteError(w, http.StatusBadGateway, "upstream_unavailable", "upstream unavailable")
	}
	return p, nil
}

func registerProxy(mux *http.ServeMux, prefix string, handler http.Handler) {
	mux.Handle(prefix, handler)
	mux.Handle(prefix+"/", handler)
}

func stripIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Header.Del(httpx.UserIDHeader)
		r.Header.Del(httpx.RoleHeader)
		next.ServeHTTP(w, r)
	})
}

// identify replaces any client-sent identity headers with the verified token
// claims. Requests without a bearer token pass through anonymously; upstream
// decides which routes need an identity.
func identify(next http.Handler, verifier *auth.Verifier) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Header.Del(httpx.UserIDHeader)
		r.Header.Del(httpx.RoleHeader)

		header := strings.TrimSpace(r.Header.Get("Authorization"))
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			httpx.WriteError(w, http.StatusUnauthorized, "unauthenticated", "malformed Authorization header")
			return
		}
		claims, err := verifier.Verify(strings.TrimSpace(token))
		if err != nil {
			httpx.WriteError(w, http.StatusUnauthorized, "unauthenticated", "invalid token")
			return
		}

		r.Header.Set(httpx.UserIDHeader, claims.Subject)
		r.Header.Set(httpx.RoleHeader, normalizeRole(claims.Role))
		next.ServeHTTP(w, r)
	})
}

func normalizeRole(role string) string {
	switch role = strings.ToLower(strings.TrimSpace(role)); role {
	case auth.RoleProvider, auth.RoleAdmin:
		return role
	default:
		return auth.RoleCustomer
	}
}
