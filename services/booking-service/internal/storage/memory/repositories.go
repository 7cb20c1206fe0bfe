package memory

import (
	"context"
	"sort"
	"time"

	"github.com/md-rashed-zaman/homebook/services/booking-service/internal/domain"
)

type providerRepo struct{ st *state }

func (r providerRepo) Create(_ context.Context, p *domain.Provider) error {
	if _, ok := r.st.providers[p.ID]; ok {
		return domain.Conflict("create provider", "provider "+p.ID+" already exists")
	}
	r.st.providers[p.ID] = *p
	return nil
}

func (r providerRepo) Get(_ context.Context, id string) (domain.Provider, error) {
	p, ok := r.st.providers[id]
	if !ok {
		return domain.Provider{}, domain.NotFound("get provider", "provider", id)
	}
	return p, nil
}

func (r providerRepo) GetForUpdate(ctx context.Context, id string) (domain.Provider, error) {
	return r.Get(ctx, id)
}

func (r providerRepo) UpdateRating(_ context.Context, id string, summary domain.RatingSummary, at time.Time) error {
	p, ok := r.st.providers[id]
	if !ok {
		return domain.NotFound("update rating", "provider", id)
	}
	p.Rating = summary.Rating
	p.ReviewCount = summary.ReviewCount
	p.UpdatedAt = at
	r.st.providers[id] = p
	return nil
}

func (r providerRepo) UpdateTimeZone(_ context.Context, id, tz string, at time.Time) error {
	p, ok := r.st.providers[id]
	if !ok {
		return domain.NotFound("update time zone", "provider", id)
	}
	p.TimeZone = tz
	p.UpdatedAt = at
	r.st.providers[id] = p
	return nil
}

type catalogRepo struct{ st *state }

func (r catalogRepo) Create(_ context.Context, s *domain.ServiceOffering) error {
	r.st.services[s.ID] = *s
	return nil
}

func (r catalogRepo) Get(_ context.Context, id string) (domain.ServiceOffering, error) {
	s, ok := r.st.services[id]
	if !ok {
		return domain.ServiceOffering{}, domain.NotFound("get service", "service", id)
	}
	return s, nil
}

func (r catalogRepo) ListByProvider(_ context.Context, providerID string) ([]domain.ServiceOffering, error) {
	var out []domain.ServiceOffering
	for _, s := range r.st.services {
		if s.ProviderID == providerID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type scheduleRepo struct{ st *state }

func (r scheduleRepo) Get(_ context.Context, providerID string) (domain.ProviderSchedule, error) {
	s, ok := r.st.schedules[providerID]
	if !ok {
		return domain.ProviderSchedule{}, domain.NotFound("get schedule", "schedule", providerID)
	}
	return copySchedule(s), nil
}

func (r scheduleRepo) Save(_ context.Context, s domain.ProviderSchedule) error {
	r.st.schedules[s.ProviderID] = copySchedule(s)
	return nil
}

type bookingRepo struct{ st *state }

func idemKey(userID, key string) string { return userID + "\x00" + key }

// overlapping mirrors the bookings exclusion constraint.
func (r bookingRepo) overlapping(b domain.Booking) (domain.Booking, bool) {
	if !b.Status.Blocks() {
		return domain.Booking{}, false
	}
	for _, o := range r.st.bookings {
		if o.ID == b.ID || o.ProviderID != b.ProviderID || !o.Status.Blocks() {
			continue
		}
		if domain.Overlaps(b.Start, b.End(), o.Start, o.End()) {
			return o, true
		}
	}
	return domain.Booking{}, false
}

func (r bookingRepo) Create(_ context.Context, b *domain.Booking, idempotencyKey string) error {
	if _, ok := r.st.bookings[b.ID]; ok {
		return domain.Conflict("create booking", "booking "+b.ID+" already exists")
	}
	if idempotencyKey != "" {
		if _, ok := r.st.idem[idemKey(b.UserID, idempotencyKey)]; ok {
			return domain.Conflict("create booking", "idempotency key already used")
		}
	}
	if o, ok := r.overlapping(*b); ok {
		return domain.Conflict("create booking", "overlaps booking "+o.ID)
	}
	r.st.bookings[b.ID] = *b
	if idempotencyKey != "" {
		r.st.idem[idemKey(b.UserID, idempotencyKey)] = b.ID
	}
	return nil
}

func (r bookingRepo) Get(_ context.Context, id string) (domain.Booking, error) {
	b, ok := r.st.bookings[id]
	if !ok {
		return domain.Booking{}, domain.NotFound("get booking", "booking", id)
	}
	return b, nil
}

func (r bookingRepo) GetForUpdate(ctx context.Context, id string) (domain.Booking, error) {
	return r.Get(ctx, id)
}

func (r bookingRepo) GetByIdempotencyKey(ctx context.Context, userID, key string) (domain.Booking, error) {
	id, ok := r.st.idem[idemKey(userID, key)]
	if !ok {
		return domain.Booking{}, domain.NotFound("get booking", "idempotency key", key)
	}
	return r.Get(ctx, id)
}

func (r bookingRepo) Update(_ context.Context, b domain.Booking) error {
	if _, ok := r.st.bookings[b.ID]; !ok {
		return domain.NotFound("update booking", "booking", b.ID)
	}
	if o, ok := r.overlapping(b); ok {
		return domain.Conflict("update booking", "overlaps booking "+o.ID)
	}
	r.st.bookings[b.ID] = b
	return nil
}

func (r bookingRepo) ListOverlapping(_ context.Context, providerID string, start, end time.Time) ([]domain.Booking, error) {
	var out []domain.Booking
	for _, b := range r.st.bookings {
		if b.ProviderID == providerID && b.Status.Blocks() && domain.Overlaps(start, end, b.Start, b.End()) {
			out = append(out, b)
		}
	}
	sortBookings(out)
	return out, nil
}

func (r bookingRepo) List(_ context.Context, f domain.BookingFilter) ([]domain.Booking, error) {
	f = f.Normalize()
	var out []domain.Booking
	for _, b := range r.st.bookings {
		if f.Matches(b) {
			out = append(out, b)
		}
	}
	sortBookings(out)
	if f.Offset >= len(out) {
		return nil, nil
	}
	out = out[f.Offset:]
	if len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func sortBookings(b []domain.Booking) {
	sort.Slice(b, func(i, j int) bool {
		if b[i].Start.Equal(b[j].Start) {
			return b[i].ID < b[j].ID
		}
		return b[i].Start.Before(b[j].Start)
	})
}

type paymentRepo struct{ st *state }

func (r paymentRepo) Create(_ context.Context, p *domain.Payment) error {
	if _, ok := r.st.payments[p.ID]; ok {
		return domain.Conflict("create payment", "payment "+p.ID+" already exists")
	}
	r.st.payments[p.ID] = *p
	return nil
}

func (r paymentRepo) Get(_ context.Context, id string) (domain.Payment, error) {
	p, ok := r.st.payments[id]
	if !ok {
		return domain.Payment{}, domain.NotFound("get payment", "payment", id)
	}
	return p, nil
}

func (r paymentRepo) GetForUpdate(ctx context.Context, id string) (domain.Payment, error) {
	return r.Get(ctx, id)
}

func (r paymentRepo) Update(_ context.Context, p domain.Payment) error {
	if _, ok := r.st.payments[p.ID]; !ok {
		return domain.NotFound("update payment", "payment", p.ID)
	}
	r.st.payments[p.ID] = p
	return nil
}

func (r paymentRepo) ListByBooking(_ context.Context, bookingID string) ([]domain.Payment, error) {
	var out []domain.Payment
	for _, p := range r.st.payments {
		if p.BookingID == bookingID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Attempt < out[j].Attempt })
	return out, nil
}

func (r paymentRepo) ListPending(_ context.Context, cutoff time.Time, limit int) ([]domain.Payment, error) {
	var out []domain.Payment
	for _, p := range r.st.payments {
		if p.Status == domain.PaymentPending && p.CreatedAt.Before(cutoff) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type reviewRepo struct{ st *state }

func (r reviewRepo) Create(_ context.Context, rv *domain.Review) error {
	for _, o := range r.st.reviews {
		if o.BookingID == rv.BookingID {
			return domain.Conflict("create review", "booking "+rv.BookingID+" already has a review")
		}
	}
	r.st.reviews[rv.ID] = *rv
	return nil
}

func (r reviewRepo) Get(_ context.Context, id string) (domain.Review, error) {
	rv, ok := r.st.reviews[id]
	if !ok {
		return domain.Review{}, domain.NotFound("get review", "review", id)
	}
	return rv, nil
}

func (r reviewRepo) GetForUpdate(ctx context.Context, id string) (domain.Review, error) {
	return r.Get(ctx, id)
}

func (r reviewRepo) Update(_ context.Context, rv domain.Review) error {
	if _, ok := r.st.reviews[rv.ID]; !ok {
		return domain.NotFound("update review", "review", rv.ID)
	}
	r.st.reviews[rv.ID] = rv
	return nil
}

func (r reviewRepo) Delete(_ context.Context, id string) error {
	if _, ok := r.st.reviews[id]; !ok {
		return domain.NotFound("delete review", "review", id)
	}
	delete(r.st.reviews, id)
	return nil
}

func (r reviewRepo) ListByProvider(_ context.Context, providerID string) ([]domain.Review, error) {
	var out []domain.Review
	for _, rv := range r.st.reviews {
		if rv.ProviderID == providerID {
			out = append(out, rv)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}
