package reconcile

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/md-rashed-zaman/homebook/services/booking-service/internal/domain"
	"github.com/md-rashed-zaman/homebook/services/booking-service/internal/payment"
	"github.com/md-rashed-zaman/homebook/services/booking-service/internal/storage"
	"github.com/md-rashed-zaman/homebook/services/booking-service/internal/storage/memory"
)

// lookupProcessor times out every charge but later knows the outcome of some.
type lookupProcessor struct {
	*payment.SandboxProcessor
	known map[string]payment.ChargeResult
}

func (p *lookupProcessor) ProcessPayment(context.Context, payment.ChargeRequest) (payment.ChargeResult, error) {
	return payment.ChargeResult{}, errors.New("timeout")
}

func (p *lookupProcessor) Lookup(_ context.Context, id string) (payment.ChargeResult, bool, error) {
	res, ok := p.known[id]
	return res, ok, nil
}

func seedBooking(t *testing.T, store *memory.Store, id string, hour int) {
	t.Helper()
	err := store.InTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		return tx.Bookings().Create(ctx, &domain.Booking{
			ID: id, UserID: "user-1", ProviderID: "prov-1",
			Start: time.Date(2026, 2, 2, hour, 0, 0, 0, time.UTC), DurationMinutes: 60,
			Status: domain.BookingConfirmed, PriceAmount: 1000, Currency: "USD",
		}, "")
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestRunOnceSettlesAndAbandons(t *testing.T) {
	store := memory.NewStore()
	seedBooking(t, store, "b1", 9)
	seedBooking(t, store, "b2", 11)

	proc := &lookupProcessor{SandboxProcessor: payment.NewSandboxProcessor(), known: map[string]payment.ChargeResult{}}
	clock := time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	payments := payment.NewService(store, proc, func() time.Time { return clock }, logger)

	user := domain.Actor{UserID: "user-1", Role: domain.RoleCustomer}
	p1, _ := payments.Initiate(context.Background(), user, payment.InitiateRequest{BookingID: "b1", Token: "tok_visa"})
	p2, _ := payments.Initiate(context.Background(), user, payment.InitiateRequest{BookingID: "b2", Token: "tok_visa"})
	proc.known[p1.ID] = payment.ChargeResult{TransactionID: "tx-1", Success: true}

	sweeper := NewSweeper(payments, nil, logger, Config{PendingAfter: time.Minute})

	res, err := sweeper.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run once: %v", err)
	}
	if res != (Result{}) {
		t.Fatalf("fresh payments must be left alone, got %+v", res)
	}

	clock = clock.Add(time.Hour)
	res, err = sweeper.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run once: %v", err)
	}
	if res.Settled != 1 || res.Abandoned != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}

	user1, _ := payments.Get(context.Background(), user, p1.ID)
	user2, _ := payments.Get(context.Background(), user, p2.ID)
	if user1.Status != domain.PaymentCompleted || user1.TransactionID != "tx-1" {
		t.Fatalf("expected p1 completed, got %+v", user1)
	}
	if user2.Status != domain.PaymentFailed || user2.FailureReason != AbandonedReason {
		t.Fatalf("expected p2 abandoned, got %+v", user2)
	}

	res, _ = sweeper.RunOnce(context.Background())
	if res != (Result{}) {
		t.Fatalf("second sweep should find nothing, got %+v", res)
	}
}

type busyLocker struct{ calls int }

func (l *busyLocker) TryAdvisoryLock(context.Context, int64) (func(), bool, error) {
	l.calls++
	return nil, false, nil
}

func TestRunStopsWithoutLock(t *testing.T) {
	locker := &busyLocker{}
	sweeper := NewSweeper(nil, locker, slog.New(slog.NewTextHandler(io.Discard, nil)), Config{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sweeper.Run(ctx)
	if locker.calls != 1 {
		t.Fatalf("expected a single lock attempt, got %d", locker.calls)
	}
}
