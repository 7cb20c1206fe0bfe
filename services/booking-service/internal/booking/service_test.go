package booking

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/md-rashed-zaman/homebook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/homebook/services/booking-service/internal/domain"
	"github.com/md-rashed-zaman/homebook/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/homebook/services/booking-service/internal/storage"
	"github.com/md-rashed-zaman/homebook/services/booking-service/internal/storage/memory"
)

var (
	customer = domain.Actor{UserID: "user-1", Role: domain.RoleCustomer}
	stranger = domain.Actor{UserID: "user-2", Role: domain.RoleCustomer}
	owner    = domain.Actor{UserID: "owner-1", Role: domain.RoleProvider}
	admin    = domain.Actor{UserID: "admin-1", Role: domain.RoleAdmin}
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time  { return c.t }
func (c *clock) set(t time.Time) { c.t = t }

func mondayAt(h, m int) time.Time {
	return time.Date(2026, 1, 5, h, m, 0, 0, time.UTC)
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFixture(t *testing.T) (*Service, *memory.Store, *clock) {
	t.Helper()
	store := memory.NewStore()
	err := store.InTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		if err := tx.Providers().Create(ctx, &domain.Provider{ID: "prov-1", OwnerUserID: owner.UserID, Name: "Sparkle Cleaning", TimeZone: "UTC"}); err != nil {
			return err
		}
		if err := tx.Catalog().Create(ctx, &domain.ServiceOffering{ID: "svc-1", ProviderID: "prov-1", Name: "Deep clean", PriceAmount: 5000, Currency: "USD", DurationMinutes: 60, Active: true}); err != nil {
			return err
		}
		if err := tx.Catalog().Create(ctx, &domain.ServiceOffering{ID: "svc-off", ProviderID: "prov-1", Name: "Retired", PriceAmount: 100, Currency: "USD", DurationMinutes: 30}); err != nil {
			return err
		}
		return tx.Schedules().Save(ctx, domain.ProviderSchedule{
			ProviderID:   "prov-1",
			TimeZone:     "UTC",
			WorkingHours: []domain.WorkingHours{{Weekday: time.Monday, IsOpen: true, StartMinute: 9 * 60, EndMinute: 17 * 60}},
		})
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	c := &clock{t: time.Date(2026, 1, 4, 12, 0, 0, 0, time.UTC)}
	return NewService(store, availability.NewChecker(), c.now, discard()), store, c
}

func mustCreate(t *testing.T, svc *Service, start time.Time) domain.Booking {
	t.Helper()
	b, _, err := svc.Create(context.Background(), customer, CreateRequest{ProviderID: "prov-1", ServiceID: "svc-1", Start: start})
	if err != nil {
		t.Fatalf("create booking: %v", err)
	}
	return b
}

func TestCreateSnapshotsServiceAndEmitsEvent(t *testing.T) {
	svc, store, _ := newFixture(t)
	b := mustCreate(t, svc, mondayAt(10, 0))

	if b.Status != domain.BookingPending {
		t.Fatalf("expected pending, got %s", b.Status)
	}
	if b.PriceAmount != 5000 || b.Currency != "USD" || b.DurationMinutes != 60 {
		t.Fatalf("expected price snapshot, got %+v", b)
	}
	events := store.Events()
	if len(events) != 1 || events[0].EventType != outbox.BookingCreated || events[0].AggregateID != b.ID {
		t.Fatalf("unexpected events: %+v", events)
	}
}

func TestCreateRejectsUnavailableTimes(t *testing.T) {
	svc, _, _ := newFixture(t)
	mustCreate(t, svc, mondayAt(10, 0))

	cases := []struct {
		name  string
		start time.Time
		want  error
	}{
		{"before opening", mondayAt(8, 0), domain.ErrConflict},
		{"overlapping", mondayAt(10, 30), domain.ErrConflict},
		{"in the past", time.Date(2026, 1, 3, 10, 0, 0, 0, time.UTC), domain.ErrValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := svc.Create(context.Background(), customer, CreateRequest{ProviderID: "prov-1", ServiceID: "svc-1", Start: tc.start})
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	if _, _, err := svc.Create(context.Background(), customer, CreateRequest{ProviderID: "prov-1", ServiceID: "svc-1", Start: mondayAt(11, 0)}); err != nil {
		t.Fatalf("adjacent booking should succeed: %v", err)
	}
}

func TestCreateValidatesService(t *testing.T) {
	svc, _, _ := newFixture(t)
	_, _, err := svc.Create(context.Background(), customer, CreateRequest{ProviderID: "prov-1", ServiceID: "svc-off", Start: mondayAt(10, 0)})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for inactive service, got %v", err)
	}
	_, _, err = svc.Create(context.Background(), customer, CreateRequest{ProviderID: "prov-1", ServiceID: "missing", Start: mondayAt(10, 0)})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCreateIdempotencyKeyReplays(t *testing.T) {
	svc, _, _ := newFixture(t)
	req := CreateRequest{ProviderID: "prov-1", ServiceID: "svc-1", Start: mondayAt(10, 0), IdempotencyKey: "k-1"}

	first, replayed, err := svc.Create(context.Background(), customer, req)
	if err != nil || replayed {
		t.Fatalf("first create: replayed=%v err=%v", replayed, err)
	}
	second, replayed, err := svc.Create(context.Background(), customer, req)
	if err != nil || !replayed {
		t.Fatalf("second create: replayed=%v err=%v", replayed, err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected same booking, got %s and %s", first.ID, second.ID)
	}
}

func TestConcurrentCreatesNeverDoubleBook(t *testing.T) {
	svc, _, _ := newFixture(t)

	var wg sync.WaitGroup
	results := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := svc.Create(context.Background(), customer, CreateRequest{ProviderID: "prov-1", ServiceID: "svc-1", Start: mondayAt(10, 0)})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	ok := 0
	for err := range results {
		switch {
		case err == nil:
			ok++
		case !errors.Is(err, domain.ErrConflict):
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 {
		t.Fatalf("expected exactly one booking to win, got %d", ok)
	}
}

func TestConfirmRequiresProvider(t *testing.T) {
	svc, _, _ := newFixture(t)
	b := mustCreate(t, svc, mondayAt(10, 0))

	if _, err := svc.Confirm(context.Background(), customer, b.ID); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	got, err := svc.Confirm(context.Background(), owner, b.ID)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if got.Status != domain.BookingConfirmed || got.ConfirmedAt == nil {
		t.Fatalf("expected confirmed with timestamp, got %+v", got)
	}
	if _, err := svc.Confirm(context.Background(), owner, b.ID); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition on second confirm, got %v", err)
	}
}

func TestRejectIsTerminalAndFreesTheSlot(t *testing.T) {
	svc, _, _ := newFixture(t)
	b := mustCreate(t, svc, mondayAt(10, 0))

	if _, err := svc.Reject(context.Background(), owner, b.ID, "fully booked"); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if _, err := svc.Confirm(context.Background(), owner, b.ID); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected rejected to be terminal, got %v", err)
	}
	// A rejected request can be resubmitted for the same time.
	mustCreate(t, svc, mondayAt(10, 0))
}

func TestCancelRequiresReasonAndParty(t *testing.T) {
	svc, store, _ := newFixture(t)
	b := mustCreate(t, svc, mondayAt(10, 0))

	if _, err := svc.Cancel(context.Background(), customer, b.ID, "  "); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := svc.Cancel(context.Background(), stranger, b.ID, "nope"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	got, err := svc.Cancel(context.Background(), customer, b.ID, "changed plans")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got.Status != domain.BookingCancelled || got.CancelledAt == nil || got.CancellationReason != "changed plans" || got.CancelledBy != customer.UserID {
		t.Fatalf("unexpected cancelled booking: %+v", got)
	}
	if _, err := svc.Cancel(context.Background(), customer, b.ID, "again"); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}

	last := store.Events()[len(store.Events())-1]
	if last.EventType != outbox.BookingCancelled {
		t.Fatalf("expected cancel event, got %s", last.EventType)
	}
}

func TestCompleteOnlyAfterEnd(t *testing.T) {
	svc, _, c := newFixture(t)
	b := mustCreate(t, svc, mondayAt(10, 0))

	if _, err := svc.Complete(context.Background(), owner, b.ID); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("pending cannot complete, got %v", err)
	}
	if _, err := svc.Confirm(context.Background(), owner, b.ID); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	c.set(mondayAt(10, 30))
	if _, err := svc.Complete(context.Background(), owner, b.ID); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition before end, got %v", err)
	}

	c.set(mondayAt(11, 0))
	got, err := svc.Complete(context.Background(), owner, b.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if got.Status != domain.BookingCompleted || got.CompletedAt == nil {
		t.Fatalf("unexpected booking: %+v", got)
	}
}

func TestRescheduleExcludesItself(t *testing.T) {
	svc, _, _ := newFixture(t)
	b := mustCreate(t, svc, mondayAt(10, 0))
	other := mustCreate(t, svc, mondayAt(12, 0))

	got, err := svc.Reschedule(context.Background(), customer, b.ID, mondayAt(10, 30))
	if err != nil {
		t.Fatalf("reschedule onto own slot: %v", err)
	}
	if !got.Start.Equal(mondayAt(10, 30)) {
		t.Fatalf("expected new start, got %s", got.Start)
	}
	if _, err := svc.Reschedule(context.Background(), customer, b.ID, mondayAt(11, 30)); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict with %s, got %v", other.ID, err)
	}
	if _, err := svc.Reschedule(context.Background(), stranger, b.ID, mondayAt(14, 0)); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestListScopesToActor(t *testing.T) {
	svc, _, _ := newFixture(t)
	mustCreate(t, svc, mondayAt(10, 0))

	mine, err := svc.List(context.Background(), customer, domain.BookingFilter{})
	if err != nil || len(mine) != 1 {
		t.Fatalf("expected own booking, got %d (%v)", len(mine), err)
	}
	theirs, err := svc.List(context.Background(), stranger, domain.BookingFilter{})
	if err != nil || len(theirs) != 0 {
		t.Fatalf("expected nothing for another user, got %d (%v)", len(theirs), err)
	}
	if _, err := svc.List(context.Background(), stranger, domain.BookingFilter{ProviderID: "prov-1"}); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized provider listing, got %v", err)
	}
	all, err := svc.List(context.Background(), admin, domain.BookingFilter{ProviderID: "prov-1", Statuses: []domain.BookingStatus{domain.BookingPending}})
	if err != nil || len(all) != 1 {
		t.Fatalf("expected admin to see provider bookings, got %d (%v)", len(all), err)
	}
}

func TestCanTransitionTable(t *testing.T) {
	all := []domain.BookingStatus{domain.BookingPending, domain.BookingConfirmed, domain.BookingRejected, domain.BookingCancelled, domain.BookingCompleted}
	allowed := map[[2]domain.BookingStatus]bool{
		{domain.BookingPending, domain.BookingConfirmed}:   true,
		{domain.BookingPending, domain.BookingRejected}:    true,
		{domain.BookingPending, domain.BookingCancelled}:   true,
		{domain.BookingConfirmed, domain.BookingCompleted}: true,
		{domain.BookingConfirmed, domain.BookingCancelled}: true,
	}
	for _, from := range all {
		for _, to := range all {
			if got := CanTransition(from, to); got != allowed[[2]domain.BookingStatus{from, to}] {
				t.Fatalf("CanTransition(%s, %s) = %v", from, to, got)
			}
		}
	}
}
