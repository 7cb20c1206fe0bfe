// Package memory is an in-process implementation of the storage ports used
// for local development without Postgres and by the engine's tests. Units of
// work are fully serialized and applied copy-on-write.
package memory

import (
	"context"
	"sync"

	"github.com/md-rashed-zaman/homebook/services/booking-service/internal/domain"
	"github.com/md-rashed-zaman/homebook/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/homebook/services/booking-service/internal/storage"
)

type Store struct {
	mu    sync.Mutex
	state *state
}

func NewStore() *Store {
	return &Store{state: newState()}
}

var _ storage.Store = (*Store)(nil)

// InTx runs fn against a private copy of the data and publishes the copy only
// when fn succeeds.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx storage.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	work := s.state.clone()
	if err := fn(ctx, &tx{st: work}); err != nil {
		return err
	}
	s.state = work
	return nil
}

// Events returns a copy of every outbox event committed so far.
func (s *Store) Events() []outbox.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]outbox.Event(nil), s.state.events...)
}

type state struct {
	providers map[string]domain.Provider
	services  map[string]domain.ServiceOffering
	schedules map[string]domain.ProviderSchedule
	bookings  map[string]domain.Booking
	idem      map[string]string
	payments  map[string]domain.Payment
	reviews   map[string]domain.Review
	events    []outbox.Event
}

func newState() *state {
	return &state{
		providers: map[string]domain.Provider{},
		services:  map[string]domain.ServiceOffering{},
		schedules: map[string]domain.ProviderSchedule{},
		bookings:  map[string]domain.Booking{},
		idem:      map[string]string{},
		payments:  map[string]domain.Payment{},
		reviews:   map[string]domain.Review{},
	}
}

func (s *state) clone() *state {
	out := newState()
	for k, v := range s.providers {
		out.providers[k] = v
	}
	for k, v := range s.services {
		out.services[k] = v
	}
	for k, v := range s.schedules {
		out.schedules[k] = copySchedule(v)
	}
	for k, v := range s.bookings {
		out.bookings[k] = v
	}
	for k, v := range s.idem {
		out.idem[k] = v
	}
	for k, v := range s.payments {
		out.payments[k] = v
	}
	for k, v := range s.reviews {
		out.reviews[k] = v
	}
	out.events = append([]outbox.Event(nil), s.events...)
	return out
}

func copySchedule(s domain.ProviderSchedule) domain.ProviderSchedule {
	s.WorkingHours = append([]domain.WorkingHours(nil), s.WorkingHours...)
	s.SpecialDates = append([]domain.SpecialDate(nil), s.SpecialDates...)
	s.TimeSlots = append([]domain.TimeSlot(nil), s.TimeSlots...)
	return s
}

type tx struct {
	st *state
}

func (t *tx) Providers() storage.ProviderRepository { return providerRepo{t.st} }
func (t *tx) Catalog() storage.CatalogRepository     { return catalogRepo{t.st} }
func (t *tx) Schedules() storage.ScheduleRepository  { return scheduleRepo{t.st} }
func (t *tx) Bookings() storage.BookingRepository    { return bookingRepo{t.st} }
func (t *tx) Payments() storage.PaymentRepository    { return paymentRepo{t.st} }
func (t *tx) Reviews() storage.ReviewRepository      { return reviewRepo{t.st} }
func (t *tx) Outbox() storage.OutboxWriter           { return outboxWriter{t.st} }

type outboxWriter struct{ st *state }

func (w outboxWriter) Insert(_ context.Context, evt outbox.Event) error {
	w.st.events = append(w.st.events, evt)
	return nil
}
