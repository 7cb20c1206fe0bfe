package handlers

import "net/http"

// API groups the handlers mounted under /api/v1.
type API struct {
	Providers *ProviderHandler
	Bookings  *BookingHandler
	Payments  *PaymentHandler
	Reviews   *ReviewHandler
	// Stripe is nil unless a webhook signing secret is configured.
	Stripe *StripeWebhookHandler
}

func (a API) Register(mux *http.ServeMux) {
	handle := func(pattern string, h http.HandlerFunc) { mux.HandleFunc(pattern, withIDs(h)) }

	p := a.Providers
	handle("POST /api/v1/providers", p.Register)
	handle("GET /api/v1/providers/{id}", p.Get)
	handle("POST /api/v1/providers/{id}/services", p.AddService)
	handle("GET /api/v1/providers/{id}/services", p.ListServices)
	handle("GET /api/v1/providers/{id}/schedule", p.GetSchedule)
	handle("PUT /api/v1/providers/{id}/schedule/working-hours", p.SetWorkingHours)
	handle("PUT /api/v1/providers/{id}/schedule/time-zone", p.SetTimeZone)
	handle("PUT /api/v1/providers/{id}/schedule/special-dates/{date}", p.PutSpecialDate)
	handle("DELETE /api/v1/providers/{id}/schedule/special-dates/{date}", p.DeleteSpecialDate)
	handle("POST /api/v1/providers/{id}/schedule/time-slots", p.AddTimeSlot)
	handle("DELETE /api/v1/providers/{id}/schedule/time-slots/{slotID}", p.DeleteTimeSlot)
	handle("GET /api/v1/providers/{id}/availability", p.Availability)
	handle("GET /api/v1/providers/{id}/slots", p.Slots)
	handle("GET /api/v1/providers/{id}/reviews", a.Reviews.ListByProvider)

	b := a.Bookings
	handle("POST /api/v1/bookings", b.Create)
	handle("GET /api/v1/bookings", b.List)
	handle("GET /api/v1/bookings/{id}", b.Get)
	handle("POST /api/v1/bookings/{id}/confirm", b.Confirm)
	handle("POST /api/v1/bookings/{id}/reject", b.Reject)
	handle("POST /api/v1/bookings/{id}/cancel", b.Cancel)
	handle("POST /api/v1/bookings/{id}/complete", b.Complete)
	handle("POST /api/v1/bookings/{id}/reschedule", b.Reschedule)
	handle("POST /api/v1/bookings/{id}/payments", a.Payments.Initiate)
	handle("GET /api/v1/bookings/{id}/payments", a.Payments.ListByBooking)
	handle("POST /api/v1/bookings/{id}/review", a.Reviews.Create)

	handle("GET /api/v1/payments/{id}", a.Payments.Get)
	handle("PATCH /api/v1/payments/{id}", a.Payments.Update)
	handle("POST /api/v1/payments/{id}/refund", a.Payments.Refund)

	handle("GET /api/v1/reviews/{id}", a.Reviews.Get)
	handle("PUT /api/v1/reviews/{id}", a.Reviews.Update)
	handle("DELETE /api/v1/reviews/{id}", a.Reviews.Delete)

	if a.Stripe != nil {
		mux.HandleFunc("POST /api/v1/webhooks/stripe", a.Stripe.Handle)
	}
}
