package rating

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/homebook/services/booking-service/internal/domain"
	"github.com/md-rashed-zaman/homebook/services/booking-service/internal/storage"
)

type Service struct {
	store  storage.Store
	now    func() time.Time
	logger *slog.Logger
}

func NewService(store storage.Store, now func() time.Time, logger *slog.Logger) *Service {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, now: now, logger: logger}
}

type ReviewInput struct {
	Rating  *float64
	Comment string
}

func validateRating(op string, r *float64) error {
	if r == nil {
		return nil
	}
	if math.IsNaN(*r) || math.IsInf(*r, 0) || *r < domain.MinRating || *r > domain.MaxRating {
		return domain.Validation(op, fmt.Sprintf("rating must be between %.1f and %.1f", domain.MinRating, domain.MaxRating))
	}
	return nil
}

// Create reviews a completed booking. Only the booking's customer may review
// it, once.
func (s *Service) Create(ctx context.Context, actor domain.Actor, bookingID string, in ReviewInput) (domain.Review, error) {
	const op = "create review"
	if err := validateRating(op, in.Rating); err != nil {
		return domain.Review{}, err
	}

	var rv domain.Review
	err := s.store.InTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		b, err := tx.Bookings().Get(ctx, bookingID)
		if err != nil {
			return err
		}
		if actor.UserID != b.UserID {
			return domain.Unauthorized(op, "only the customer can review a booking")
		}
		if b.Status != domain.BookingCompleted {
			return &domain.Error{Kind: domain.ErrInvalidTransition, Op: op, Reason: "booking " + b.ID + " is " + b.Status.String() + ", not completed"}
		}
		// Serializes recomputes for the provider.
		if _, err := tx.Providers().GetForUpdate(ctx, b.ProviderID); err != nil {
			return err
		}

		now := s.now()
		rv = domain.Review{
			ID:         uuid.NewString(),
			BookingID:  b.ID,
			UserID:     b.UserID,
			ProviderID: b.ProviderID,
			Rating:     in.Rating,
			Comment:    strings.TrimSpace(in.Comment),
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := tx.Reviews().Create(ctx, &rv); err != nil {
			return err
		}
		_, err = Recompute(ctx, tx, b.ProviderID, now)
		return err
	})
	if err != nil {
		return domain.Review{}, err
	}
	return rv, nil
}

// Update replaces rating and comment; owner or admin only.
func (s *Service) Update(ctx context.Context, actor domain.Actor, id string, in ReviewInput) (domain.Review, error) {
	const op = "update review"
	if err := validateRating(op, in.Rating); err != nil {
		return domain.Review{}, err
	}

	var rv domain.Review
	err := s.store.InTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		rv, err = s.lockOwned(ctx, tx, actor, op, id)
		if err != nil {
			return err
		}
		now := s.now()
		rv.Rating = in.Rating
		rv.Comment = strings.TrimSpace(in.Comment)
		rv.UpdatedAt = now
		if err := tx.Reviews().Update(ctx, rv); err != nil {
			return err
		}
		_, err = Recompute(ctx, tx, rv.ProviderID, now)
		return err
	})
	if err != nil {
		return domain.Review{}, err
	}
	return rv, nil
}

func (s *Service) Delete(ctx context.Context, actor domain.Actor, id string) error {
	const op = "delete review"
	return s.store.InTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		rv, err := s.lockOwned(ctx, tx, actor, op, id)
		if err != nil {
			return err
		}
		if err := tx.Reviews().Delete(ctx, id); err != nil {
			return err
		}
		_, err = Recompute(ctx, tx, rv.ProviderID, s.now())
		return err
	})
}

func (s *Service) lockOwned(ctx context.Context, tx storage.Tx, actor domain.Actor, op, id string) (domain.Review, error) {
	rv, err := tx.Reviews().GetForUpdate(ctx, id)
	if err != nil {
		return domain.Review{}, err
	}
	if !actor.Owns(rv.UserID) {
		return domain.Review{}, domain.Unauthorized(op, "only the author or an admin can change a review")
	}
	if _, err := tx.Providers().GetForUpdate(ctx, rv.ProviderID); err != nil {
		return domain.Review{}, err
	}
	return rv, nil
}

func (s *Service) Get(ctx context.Context, id string) (domain.Review, error) {
	var rv domain.Review
	err := s.store.InTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		rv, err = tx.Reviews().Get(ctx, id)
		return err
	})
	return rv, err
}

func (s *Service) ListByProvider(ctx context.Context, providerID string) ([]domain.Review, error) {
	var out []domain.Review
	err := s.store.InTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		if _, err := tx.Providers().Get(ctx, providerID); err != nil {
			return err
		}
		var err error
		out, err = tx.Reviews().ListByProvider(ctx, providerID)
		return err
	})
	return out, err
}
