// Package booking drives the booking state machine. Every operation is one
// unit of work: the booking write and its outbox event commit together.
package booking

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/homebook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/homebook/services/booking-service/internal/domain"
	"github.com/md-rashed-zaman/homebook/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/homebook/services/booking-service/internal/storage"
)

type Service struct {
	store   storage.Store
	checker *availability.Checker
	now     func() time.Time
	logger  *slog.Logger
}

// NewService wires the lifecycle; a nil now uses time.Now.
func NewService(store storage.Store, checker *availability.Checker, now func() time.Time, logger *slog.Logger) *Service {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, checker: checker, now: now, logger: logger}
}

type CreateRequest struct {
	ProviderID     string
	ServiceID      string
	Start          time.Time
	Notes          string
	IdempotencyKey string
}

// Create books req for actor. A repeated IdempotencyKey returns the booking
// created the first time with replayed set.
func (s *Service) Create(ctx context.Context, actor domain.Actor, req CreateRequest) (b domain.Booking, replayed bool, err error) {
	const op = "create booking"
	if actor.UserID == "" {
		return domain.Booking{}, false, domain.Unauthorized(op, "missing user")
	}
	if req.ProviderID == "" || req.ServiceID == "" || req.Start.IsZero() {
		return domain.Booking{}, false, domain.Validation(op, "provider_id, service_id and start are required")
	}
	key := strings.TrimSpace(req.IdempotencyKey)

	err = s.store.InTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		if key != "" {
			existing, err := tx.Bookings().GetByIdempotencyKey(ctx, actor.UserID, key)
			if err == nil {
				b, replayed = existing, true
				return nil
			}
			if !errors.Is(err, domain.ErrNotFound) {
				return err
			}
		}

		// Serializes concurrent bookings for the provider.
		if _, err := tx.Providers().GetForUpdate(ctx, req.ProviderID); err != nil {
			return err
		}
		offering, err := tx.Catalog().Get(ctx, req.ServiceID)
		if err != nil {
			return err
		}
		if offering.ProviderID != req.ProviderID {
			return domain.Validation(op, "service does not belong to provider")
		}
		if !offering.Active {
			return domain.Validation(op, "service is not bookable")
		}

		now := s.now()
		if !req.Start.After(now) {
			return domain.Validation(op, "start must be in the future")
		}
		if err := s.checker.Check(ctx, tx, req.ProviderID, req.Start, offering.DurationMinutes, ""); err != nil {
			return err
		}

		b = domain.Booking{
			ID:              uuid.NewString(),
			UserID:          actor.UserID,
			ProviderID:      req.ProviderID,
			ServiceID:       offering.ID,
			Start:           req.Start.UTC(),
			DurationMinutes: offering.DurationMinutes,
			Status:          domain.BookingPending,
			PriceAmount:     offering.PriceAmount,
			Currency:        offering.Currency,
			Notes:           strings.TrimSpace(req.Notes),
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := tx.Bookings().Create(ctx, &b, key); err != nil {
			return err
		}
		return s.emit(ctx, tx, outbox.BookingCreated, b, actor, "")
	})
	if err != nil {
		return domain.Booking{}, false, err
	}
	if !replayed {
		s.logger.Info("booking created", "booking_id", b.ID, "provider_id", b.ProviderID, "start", b.Start)
	}
	return b, replayed, nil
}

func (s *Service) Confirm(ctx context.Context, actor domain.Actor, id string) (domain.Booking, error) {
	return s.providerTransition(ctx, actor, id, "confirm booking", domain.BookingConfirmed, outbox.BookingConfirmed, func(b *domain.Booking, now time.Time) error {
		b.ConfirmedAt = &now
		return nil
	})
}

func (s *Service) Reject(ctx context.Context, actor domain.Actor, id, reason string) (domain.Booking, error) {
	reason = strings.TrimSpace(reason)
	return s.providerTransition(ctx, actor, id, "reject booking", domain.BookingRejected, outbox.BookingRejected, func(b *domain.Booking, now time.Time) error {
		b.RejectedAt = &now
		b.RejectionReason = reason
		return nil
	})
}

// Complete is only legal once the appointment has ended.
func (s *Service) Complete(ctx context.Context, actor domain.Actor, id string) (domain.Booking, error) {
	const op = "complete booking"
	return s.providerTransition(ctx, actor, id, op, domain.BookingCompleted, outbox.BookingCompleted, func(b *domain.Booking, now time.Time) error {
		if now.Before(b.End()) {
			return &domain.Error{Kind: domain.ErrInvalidTransition, Op: op, Reason: "booking " + b.ID + " has not ended yet"}
		}
		b.CompletedAt = &now
		return nil
	})
}

// providerTransition applies a transition only the provider owner or an
// admin may make.
func (s *Service) providerTransition(ctx context.Context, actor domain.Actor, id, op string, to domain.BookingStatus, topic string, apply func(*domain.Booking, time.Time) error) (domain.Booking, error) {
	var b domain.Booking
	err := s.store.InTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		b, err = tx.Bookings().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		p, err := tx.Providers().Get(ctx, b.ProviderID)
		if err != nil {
			return err
		}
		if !actor.Owns(p.OwnerUserID) {
			return domain.Unauthorized(op, "only the provider or an admin can do this")
		}
		if err := checkTransition(op, b, to); err != nil {
			return err
		}

		now := s.now()
		if err := apply(&b, now); err != nil {
			return err
		}
		b.Status = to
		b.UpdatedAt = now
		if err := tx.Bookings().Update(ctx, b); err != nil {
			return err
		}
		return s.emit(ctx, tx, topic, b, actor, b.RejectionReason)
	})
	if err != nil {
		return domain.Booking{}, err
	}
	s.logger.Info("booking status changed", "booking_id", b.ID, "status", b.Status, "actor", actor.UserID)
	return b, nil
}

// Cancel may be requested by the customer, the provider or an admin. It never
// refunds; refunds are a separate payment operation.
func (s *Service) Cancel(ctx context.Context, actor domain.Actor, id, reason string) (domain.Booking, error) {
	const op = "cancel booking"
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return domain.Booking{}, domain.Validation(op, "cancellation reason is required")
	}

	var b domain.Booking
	err := s.store.InTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		b, err = tx.Bookings().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !actor.Owns(b.UserID) {
			p, err := tx.Providers().Get(ctx, b.ProviderID)
			if err != nil {
				return err
			}
			if !actor.Owns(p.OwnerUserID) {
				return domain.Unauthorized(op, "not a party to this booking")
			}
		}
		if err := checkTransition(op, b, domain.BookingCancelled); err != nil {
			return err
		}

		now := s.now()
		b.Status = domain.BookingCancelled
		b.CancelledAt = &now
		b.CancellationReason = reason
		b.CancelledBy = actor.UserID
		b.UpdatedAt = now
		if err := tx.Bookings().Update(ctx, b); err != nil {
			return err
		}
		return s.emit(ctx, tx, outbox.BookingCancelled, b, actor, reason)
	})
	if err != nil {
		return domain.Booking{}, err
	}
	s.logger.Info("booking cancelled", "booking_id", b.ID, "actor", actor.UserID)
	return b, nil
}

// Reschedule moves a pending or confirmed booking, keeping its status. The
// booking's own current slot does not count against the new one.
func (s *Service) Reschedule(ctx context.Context, actor domain.Actor, id string, newStart time.Time) (domain.Booking, error) {
	const op = "reschedule booking"
	if newStart.IsZero() {
		return domain.Booking{}, domain.Validation(op, "start is required")
	}

	var b domain.Booking
	err := s.store.InTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		b, err = tx.Bookings().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		p, err := tx.Providers().GetForUpdate(ctx, b.ProviderID)
		if err != nil {
			return err
		}
		if !actor.Owns(b.UserID) && !actor.Owns(p.OwnerUserID) {
			return domain.Unauthorized(op, "not a party to this booking")
		}
		if !b.Status.Blocks() {
			return &domain.Error{Kind: domain.ErrInvalidTransition, Op: op, Reason: "booking " + b.ID + " is " + b.Status.String()}
		}

		now := s.now()
		if !newStart.After(now) {
			return domain.Validation(op, "start must be in the future")
		}
		if err := s.checker.Check(ctx, tx, b.ProviderID, newStart, b.DurationMinutes, b.ID); err != nil {
			return err
		}

		previous := b.Start
		b.Start = newStart.UTC()
		b.UpdatedAt = now
		if err := tx.Bookings().Update(ctx, b); err != nil {
			return err
		}
		return s.emit(ctx, tx, outbox.BookingRescheduled, b, actor, "moved from "+previous.Format(time.RFC3339))
	})
	if err != nil {
		return domain.Booking{}, err
	}
	return b, nil
}

// Get returns the booking if actor is its customer, its provider or an admin.
func (s *Service) Get(ctx context.Context, actor domain.Actor, id string) (domain.Booking, error) {
	var b domain.Booking
	err := s.store.InTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		b, err = tx.Bookings().Get(ctx, id)
		if err != nil {
			return err
		}
		if actor.Owns(b.UserID) {
			return nil
		}
		p, err := tx.Providers().Get(ctx, b.ProviderID)
		if err != nil {
			return err
		}
		if !actor.Owns(p.OwnerUserID) {
			return domain.Unauthorized("get booking", "not a party to this booking")
		}
		return nil
	})
	return b, err
}

// List scopes f to what actor may see: a provider's bookings need ownership
// of the provider, otherwise non-admins only see their own.
func (s *Service) List(ctx context.Context, actor domain.Actor, f domain.BookingFilter) ([]domain.Booking, error) {
	const op = "list bookings"
	for _, st := range f.Statuses {
		if !st.Valid() {
			return nil, domain.Validation(op, "unknown status "+string(st))
		}
	}
	if !f.From.IsZero() && !f.To.IsZero() && !f.From.Before(f.To) {
		return nil, domain.Validation(op, "from must be before to")
	}

	var out []domain.Booking
	err := s.store.InTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		switch {
		case f.ProviderID != "":
			p, err := tx.Providers().Get(ctx, f.ProviderID)
			if err != nil {
				return err
			}
			if !actor.Owns(p.OwnerUserID) {
				return domain.Unauthorized(op, "not the provider owner")
			}
		case !actor.IsAdmin():
			if actor.UserID == "" {
				return domain.Unauthorized(op, "missing user")
			}
			f.UserID = actor.UserID
		}
		var err error
		out, err = tx.Bookings().List(ctx, f)
		return err
	})
	return out, err
}

func (s *Service) emit(ctx context.Context, tx storage.Tx, topic string, b domain.Booking, actor domain.Actor, reason string) error {
	evt, err := outbox.NewBookingEvent(topic, b, actor.UserID, reason, s.now())
	if err != nil {
		return err
	}
	return tx.Outbox().Insert(ctx, evt)
}
