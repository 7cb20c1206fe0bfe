package availability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/md-rashed-zaman/homebook/services/booking-service/internal/domain"
	"github.com/md-rashed-zaman/homebook/services/booking-service/internal/storage"
	"github.com/md-rashed-zaman/homebook/services/booking-service/internal/storage/memory"
)

const providerID = "prov-1"

// Monday 2026-01-05.
func mondayAt(h, m int) time.Time {
	return time.Date(2026, 1, 5, h, m, 0, 0, time.UTC)
}

func seededStore(t *testing.T, bookings ...domain.Booking) *memory.Store {
	t.Helper()
	s := memory.NewStore()
	err := s.InTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		err := tx.Schedules().Save(ctx, domain.ProviderSchedule{
			ProviderID: providerID,
			TimeZone:   "UTC",
			WorkingHours: []domain.WorkingHours{
				{Weekday: time.Monday, IsOpen: true, StartMinute: 9 * 60, EndMinute: 17 * 60},
			},
		})
		if err != nil {
			return err
		}
		for i := range bookings {
			if err := tx.Bookings().Create(ctx, &bookings[i], ""); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed store: %v", err)
	}
	return s
}

func isBookable(t *testing.T, s *memory.Store, start time.Time, minutes int, exclude string) bool {
	t.Helper()
	var ok bool
	err := s.InTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		var err error
		ok, err = NewChecker().IsBookable(ctx, tx, providerID, start, minutes, exclude)
		return err
	})
	if err != nil {
		t.Fatalf("IsBookable: %v", err)
	}
	return ok
}

func TestIsBookableInsideWorkingHours(t *testing.T) {
	s := seededStore(t)
	if !isBookable(t, s, mondayAt(10, 0), 60, "") {
		t.Fatal("expected 10:00-11:00 to be bookable")
	}
	if isBookable(t, s, mondayAt(8, 0), 60, "") {
		t.Fatal("expected 08:00-09:00 to be outside working hours")
	}
	if isBookable(t, s, mondayAt(16, 30), 60, "") {
		t.Fatal("expected 16:30-17:30 to run past closing")
	}
	if !isBookable(t, s, mondayAt(16, 0), 60, "") {
		t.Fatal("expected 16:00-17:00 to end exactly at closing")
	}
}

func TestIsBookableRespectsExistingBookings(t *testing.T) {
	s := seededStore(t, domain.Booking{
		ID: "b1", ProviderID: providerID, Start: mondayAt(10, 0), DurationMinutes: 60, Status: domain.BookingConfirmed,
	})

	if isBookable(t, s, mondayAt(10, 30), 60, "") {
		t.Fatal("expected 10:30-11:30 to overlap the confirmed booking")
	}
	if !isBookable(t, s, mondayAt(11, 0), 60, "") {
		t.Fatal("expected 11:00-12:00 to touch but not overlap")
	}
	if !isBookable(t, s, mondayAt(10, 30), 60, "b1") {
		t.Fatal("expected the booking itself to be excluded")
	}
}

func TestIsBookableIgnoresInactiveBookings(t *testing.T) {
	s := seededStore(t,
		domain.Booking{ID: "b1", ProviderID: providerID, Start: mondayAt(10, 0), DurationMinutes: 60, Status: domain.BookingCancelled},
		domain.Booking{ID: "b2", ProviderID: providerID, Start: mondayAt(10, 0), DurationMinutes: 60, Status: domain.BookingRejected},
	)
	if !isBookable(t, s, mondayAt(10, 0), 60, "") {
		t.Fatal("cancelled and rejected bookings must not block")
	}
}

func TestCheckReportsReason(t *testing.T) {
	s := seededStore(t)
	err := s.InTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		return NewChecker().Check(ctx, tx, providerID, mondayAt(8, 0), 60, "")
	})
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if domain.ReasonOf(err) == "" {
		t.Fatal("expected a reason on the conflict")
	}

	err = s.InTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		return NewChecker().Check(ctx, tx, providerID, mondayAt(10, 0), 0, "")
	})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for zero duration, got %v", err)
	}
}

func TestUnscheduledProviderIsNeverBookable(t *testing.T) {
	s := memory.NewStore()
	var ok bool
	err := s.InTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		var err error
		ok, err = NewChecker().IsBookable(ctx, tx, "nobody", mondayAt(10, 0), 30, "")
		return err
	})
	if err != nil || ok {
		t.Fatalf("expected not bookable without error, got ok=%v err=%v", ok, err)
	}
}

func TestFreeSlotsSkipsBusyTime(t *testing.T) {
	s := seededStore(t, domain.Booking{
		ID: "b1", ProviderID: providerID, Start: mondayAt(10, 0), DurationMinutes: 60, Status: domain.BookingPending,
	})
	var slots []time.Time
	err := s.InTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		var err error
		slots, err = NewChecker().FreeSlots(ctx, tx, providerID, domain.DateOf(mondayAt(0, 0)), time.Hour, time.Hour, mondayAt(0, 0))
		return err
	})
	if err != nil {
		t.Fatalf("FreeSlots: %v", err)
	}
	// 09..16 hourly is 8 starts; 10:00 is taken.
	if len(slots) != 7 {
		t.Fatalf("expected 7 slots, got %d: %v", len(slots), slots)
	}
	for _, s := range slots {
		if s.Equal(mondayAt(10, 0)) {
			t.Fatal("10:00 should be busy")
		}
	}
}
