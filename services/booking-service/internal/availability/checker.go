package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/md-rashed-zaman/homebook/services/booking-service/internal/domain"
	"github.com/md-rashed-zaman/homebook/services/booking-service/internal/schedule"
	"github.com/md-rashed-zaman/homebook/services/booking-service/internal/storage"
)

const checkOp = "check availability"

// Reader is the part of a unit of work the checker reads from.
type Reader interface {
	Schedules() storage.ScheduleRepository
	Bookings() storage.BookingRepository
}

// Checker decides whether a candidate appointment is legal. The answer is
// only as fresh as the transaction it reads through; commit-time overlap
// protection lives in the booking store.
type Checker struct{}

func NewChecker() *Checker { return &Checker{} }

// IsBookable reports whether [start, start+duration) fits one open window of
// the provider and overlaps no pending or confirmed booking other than
// excludeBookingID.
func (c *Checker) IsBookable(ctx context.Context, r Reader, providerID string, start time.Time, durationMinutes int, excludeBookingID string) (bool, error) {
	err := c.Check(ctx, r, providerID, start, durationMinutes, excludeBookingID)
	if errors.Is(err, domain.ErrConflict) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Check is IsBookable returning a Conflict error with the reason instead of false.
func (c *Checker) Check(ctx context.Context, r Reader, providerID string, start time.Time, durationMinutes int, excludeBookingID string) error {
	if durationMinutes <= 0 {
		return domain.Validation(checkOp, "duration must be positive")
	}
	end := start.Add(time.Duration(durationMinutes) * time.Minute)

	windows, err := c.windowsFor(ctx, r, providerID, start)
	if err != nil {
		return err
	}
	existing, err := r.Bookings().ListOverlapping(ctx, providerID, start, end)
	if err != nil {
		return fmt.Errorf("list overlapping bookings: %w", err)
	}
	return Decide(windows, existing, start, end, excludeBookingID)
}

// Decide applies the availability rules to already loaded data.
func Decide(windows []schedule.Interval, existing []domain.Booking, start, end time.Time, excludeBookingID string) error {
	if _, ok := schedule.WindowContaining(windows, schedule.Interval{Start: start, End: end}); !ok {
		return domain.Conflict(checkOp, "requested time is outside the provider's open hours")
	}
	for _, b := range existing {
		if b.ID == excludeBookingID || !b.Status.Blocks() {
			continue
		}
		if domain.Overlaps(start, end, b.Start, b.End()) {
			return domain.Conflict(checkOp, fmt.Sprintf("requested time overlaps booking %s", b.ID))
		}
	}
	return nil
}

// OpenWindows resolves the provider's windows for date. A provider without a
// schedule has none.
func (c *Checker) OpenWindows(ctx context.Context, r Reader, providerID string, date domain.Date) ([]schedule.Interval, error) {
	s, err := r.Schedules().Get(ctx, providerID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load schedule: %w", err)
	}
	return schedule.Resolve(s, date)
}

// FreeSlots lists bookable start times on date for an appointment of duration.
func (c *Checker) FreeSlots(ctx context.Context, r Reader, providerID string, date domain.Date, duration, step time.Duration, now time.Time) ([]time.Time, error) {
	windows, err := c.OpenWindows(ctx, r, providerID, date)
	if err != nil || len(windows) == 0 {
		return nil, err
	}
	first, last := windows[0].Start, windows[len(windows)-1].End
	existing, err := r.Bookings().ListOverlapping(ctx, providerID, first, last)
	if err != nil {
		return nil, fmt.Errorf("list overlapping bookings: %w", err)
	}
	busy := make([]schedule.Interval, 0, len(existing))
	for _, b := range existing {
		if b.Status.Blocks() {
			busy = append(busy, schedule.Interval{Start: b.Start, End: b.End()})
		}
	}
	return AvailableSlots(windows, duration, step, busy, now), nil
}

func (c *Checker) windowsFor(ctx context.Context, r Reader, providerID string, start time.Time) ([]schedule.Interval, error) {
	s, err := r.Schedules().Get(ctx, providerID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load schedule: %w", err)
	}
	loc, err := s.Location()
	if err != nil {
		return nil, err
	}
	return schedule.Resolve(s, domain.DateOf(start.In(loc)))
}
