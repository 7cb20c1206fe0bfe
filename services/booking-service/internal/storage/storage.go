// Package storage declares the persistence ports of the booking engine. The
// postgres and memory subpackages implement them.
package storage

import (
	"context"
	"time"

	"github.com/md-rashed-zaman/homebook/services/booking-service/internal/domain"
	"github.com/md-rashed-zaman/homebook/services/booking-service/internal/outbox"
)

// Store runs units of work. Everything fn does through tx commits together
// or not at all; a non-nil error from fn rolls back.
type Store interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx exposes the repositories bound to one transaction.
type Tx interface {
	Providers() ProviderRepository
	Catalog() CatalogRepository
	Schedules() ScheduleRepository
	Bookings() BookingRepository
	Payments() PaymentRepository
	Reviews() ReviewRepository
	Outbox() OutboxWriter
}

type ProviderRepository interface {
	Create(ctx context.Context, p *domain.Provider) error
	Get(ctx context.Context, id string) (domain.Provider, error)
	// GetForUpdate locks the provider row; booking writes for one provider
	// serialize on it.
	GetForUpdate(ctx context.Context, id string) (domain.Provider, error)
	UpdateRating(ctx context.Context, id string, summary domain.RatingSummary, at time.Time) error
	UpdateTimeZone(ctx context.Context, id, tz string, at time.Time) error
}

type CatalogRepository interface {
	Create(ctx context.Context, s *domain.ServiceOffering) error
	Get(ctx context.Context, id string) (domain.ServiceOffering, error)
	ListByProvider(ctx context.Context, providerID string) ([]domain.ServiceOffering, error)
}

type ScheduleRepository interface {
	// Get returns NotFound until the first schedule update.
	Get(ctx context.Context, providerID string) (domain.ProviderSchedule, error)
	// Save replaces the whole schedule.
	Save(ctx context.Context, s domain.ProviderSchedule) error
}

type BookingRepository interface {
	// Create fails with Conflict when the range overlaps another pending or
	// confirmed booking of the provider.
	Create(ctx context.Context, b *domain.Booking, idempotencyKey string) error
	Get(ctx context.Context, id string) (domain.Booking, error)
	GetForUpdate(ctx context.Context, id string) (domain.Booking, error)
	GetByIdempotencyKey(ctx context.Context, userID, key string) (domain.Booking, error)
	Update(ctx context.Context, b domain.Booking) error
	// ListOverlapping returns pending and confirmed bookings of the provider
	// overlapping [start, end).
	ListOverlapping(ctx context.Context, providerID string, start, end time.Time) ([]domain.Booking, error)
	List(ctx context.Context, f domain.BookingFilter) ([]domain.Booking, error)
}

type PaymentRepository interface {
	Create(ctx context.Context, p *domain.Payment) error
	Get(ctx context.Context, id string) (domain.Payment, error)
	GetForUpdate(ctx context.Context, id string) (domain.Payment, error)
	Update(ctx context.Context, p domain.Payment) error
	ListByBooking(ctx context.Context, bookingID string) ([]domain.Payment, error)
	// ListPending returns pending payments created before cutoff, oldest first.
	ListPending(ctx context.Context, cutoff time.Time, limit int) ([]domain.Payment, error)
}

type ReviewRepository interface {
	// Create fails with Conflict when the booking already has a review.
	Create(ctx context.Context, r *domain.Review) error
	Get(ctx context.Context, id string) (domain.Review, error)
	GetForUpdate(ctx context.Context, id string) (domain.Review, error)
	Update(ctx context.Context, r domain.Review) error
	Delete(ctx context.Context, id string) error
	ListByProvider(ctx context.Context, providerID string) ([]domain.Review, error)
}

type OutboxWriter interface {
	Insert(ctx context.Context, evt outbox.Event) error
}
