package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/md-rashed-zaman/homebook/services/booking-service/internal/domain"
	"github.com/md-rashed-zaman/homebook/services/booking-service/internal/storage"
)

func TestInTxRollsBackOnError(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.InTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		if err := tx.Providers().Create(ctx, &domain.Provider{ID: "p1"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	err = s.InTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		_, err := tx.Providers().Get(ctx, "p1")
		return err
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected rolled back provider to be missing, got %v", err)
	}
}

func TestBookingCreateRejectsOverlap(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	start := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)

	create := func(id string, at time.Time, status domain.BookingStatus) error {
		return s.InTx(ctx, func(ctx context.Context, tx storage.Tx) error {
			return tx.Bookings().Create(ctx, &domain.Booking{ID: id, ProviderID: "p1", Start: at, DurationMinutes: 60, Status: status}, "")
		})
	}

	if err := create("b1", start, domain.BookingConfirmed); err != nil {
		t.Fatalf("first booking: %v", err)
	}
	if err := create("b2", start.Add(30*time.Minute), domain.BookingPending); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if err := create("b3", start.Add(time.Hour), domain.BookingPending); err != nil {
		t.Fatalf("touching booking should be accepted: %v", err)
	}
	if err := create("b4", start, domain.BookingCancelled); err != nil {
		t.Fatalf("cancelled bookings never conflict: %v", err)
	}
}

func TestListPendingPaymentsOlderThan(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	now := time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)

	_ = s.InTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		_ = tx.Payments().Create(ctx, &domain.Payment{ID: "old", Status: domain.PaymentPending, CreatedAt: now.Add(-time.Hour)})
		_ = tx.Payments().Create(ctx, &domain.Payment{ID: "new", Status: domain.PaymentPending, CreatedAt: now})
		_ = tx.Payments().Create(ctx, &domain.Payment{ID: "done", Status: domain.PaymentCompleted, CreatedAt: now.Add(-time.Hour)})
		return nil
	})

	var got []domain.Payment
	_ = s.InTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		got, err = tx.Payments().ListPending(ctx, now.Add(-time.Minute), 10)
		return err
	})
	if len(got) != 1 || got[0].ID != "old" {
		t.Fatalf("expected only the stale pending payment, got %+v", got)
	}
}
