package payment

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/md-rashed-zaman/homebook/services/booking-service/internal/domain"
	"github.com/md-rashed-zaman/homebook/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/homebook/services/booking-service/internal/storage"
	"github.com/md-rashed-zaman/homebook/services/booking-service/internal/storage/memory"
)

var (
	payer    = domain.Actor{UserID: "user-1", Role: domain.RoleCustomer}
	stranger = domain.Actor{UserID: "user-2", Role: domain.RoleCustomer}
	admin    = domain.Actor{UserID: "admin-1", Role: domain.RoleAdmin}
	fixedNow = time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)
)

type failingRefunds struct{ *SandboxProcessor }

// flakyCharges times out on its first charge and delegates afterwards.
type flakyCharges struct {
	*SandboxProcessor
	calls int
	keys  []string
}

func (f *flakyCharges) ProcessPayment(ctx context.Context, req ChargeRequest) (ChargeResult, error) {
	f.calls++
	f.keys = append(f.keys, req.IdempotencyKey)
	if f.calls == 1 {
		return ChargeResult{}, errors.New("gateway timeout")
	}
	return f.SandboxProcessor.ProcessPayment(ctx, req)
}

func (failingRefunds) RefundPayment(context.Context, domain.Payment) (RefundResult, error) {
	return RefundResult{}, errors.New("gateway timeout")
}

func seed(t *testing.T, status domain.BookingStatus) *memory.Store {
	t.Helper()
	store := memory.NewStore()
	err := store.InTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		if err := tx.Providers().Create(ctx, &domain.Provider{ID: "prov-1", OwnerUserID: "owner-1"}); err != nil {
			return err
		}
		return tx.Bookings().Create(ctx, &domain.Booking{
			ID: "book-1", UserID: payer.UserID, ProviderID: "prov-1", ServiceID: "svc-1",
			Start: fixedNow.Add(24 * time.Hour), DurationMinutes: 60, Status: status, PriceAmount: 5000,
		}, "")
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return store
}

func newService(store storage.Store, p Processor) *Service {
	return NewService(store, p, func() time.Time { return fixedNow }, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func bookingOf(t *testing.T, store *memory.Store) domain.Booking {
	t.Helper()
	var b domain.Booking
	_ = store.InTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		var err error
		b, err = tx.Bookings().Get(ctx, "book-1")
		return err
	})
	return b
}

func TestPayThenRefund(t *testing.T) {
	store := seed(t, domain.BookingConfirmed)
	svc := newService(store, NewSandboxProcessor())
	ctx := context.Background()

	p, err := svc.Initiate(ctx, payer, InitiateRequest{BookingID: "book-1", Token: "tok_visa"})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if p.Status != domain.PaymentCompleted || p.ProcessedAt == nil || p.TransactionID == "" {
		t.Fatalf("expected completed payment, got %+v", p)
	}
	if p.Amount != 5000 || p.Currency != domain.DefaultCurrency || p.Attempt != 1 {
		t.Fatalf("unexpected amount snapshot: %+v", p)
	}
	if got := bookingOf(t, store); got.PaymentID != p.ID || got.Status != domain.BookingConfirmed {
		t.Fatalf("booking should reference payment and stay confirmed: %+v", got)
	}

	refunded, err := svc.Refund(ctx, payer, p.ID)
	if err != nil {
		t.Fatalf("refund: %v", err)
	}
	if refunded.Status != domain.PaymentRefunded || refunded.RefundedAt == nil || refunded.RefundedAmount != refunded.Amount {
		t.Fatalf("unexpected refunded payment: %+v", refunded)
	}
	if refunded.ProcessedAt == nil || !refunded.ProcessedAt.Equal(*p.ProcessedAt) {
		t.Fatalf("refund must keep the charge time in ProcessedAt, got %+v", refunded)
	}

	if _, err := svc.Refund(ctx, payer, p.ID); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition on second refund, got %v", err)
	}

	var types []string
	for _, e := range store.Events() {
		types = append(types, e.EventType)
	}
	if len(types) != 2 || types[0] != outbox.PaymentCompleted || types[1] != outbox.PaymentRefunded {
		t.Fatalf("unexpected events: %v", types)
	}
}

func TestInitiateRequiresConfirmedBooking(t *testing.T) {
	store := seed(t, domain.BookingPending)
	svc := newService(store, NewSandboxProcessor())
	_, err := svc.Initiate(context.Background(), payer, InitiateRequest{BookingID: "book-1", Token: "tok_visa"})
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	if _, err := svc.Initiate(context.Background(), payer, InitiateRequest{BookingID: "book-1"}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error without token, got %v", err)
	}
}

func TestInitiateOnlyByOwner(t *testing.T) {
	store := seed(t, domain.BookingConfirmed)
	svc := newService(store, NewSandboxProcessor())
	_, err := svc.Initiate(context.Background(), stranger, InitiateRequest{BookingID: "book-1", Token: "tok_visa"})
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestDeclineThenRetry(t *testing.T) {
	store := seed(t, domain.BookingConfirmed)
	svc := newService(store, NewSandboxProcessor())
	ctx := context.Background()

	failed, err := svc.Initiate(ctx, payer, InitiateRequest{BookingID: "book-1", Token: TokenDecline})
	if err != nil {
		t.Fatalf("decline should not be an error: %v", err)
	}
	if failed.Status != domain.PaymentFailed || failed.FailureReason == "" {
		t.Fatalf("expected failed payment with reason, got %+v", failed)
	}
	if b := bookingOf(t, store); b.Status != domain.BookingConfirmed {
		t.Fatalf("booking must stay confirmed, got %s", b.Status)
	}

	retry, err := svc.Initiate(ctx, payer, InitiateRequest{BookingID: "book-1", Token: "tok_visa"})
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if retry.ID == failed.ID || retry.Attempt != 2 || retry.Status != domain.PaymentCompleted {
		t.Fatalf("expected a new completed attempt, got %+v", retry)
	}

	if _, err := svc.Initiate(ctx, payer, InitiateRequest{BookingID: "book-1", Token: "tok_visa"}); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict once paid, got %v", err)
	}
}

func TestAmbiguousOutcomeStaysPending(t *testing.T) {
	store := seed(t, domain.BookingConfirmed)
	svc := newService(store, NewSandboxProcessor())
	ctx := context.Background()

	p, err := svc.Initiate(ctx, payer, InitiateRequest{BookingID: "book-1", Token: TokenError})
	if !errors.Is(err, domain.ErrExternalFailure) {
		t.Fatalf("expected external failure, got %v", err)
	}
	if p.Status != domain.PaymentPending {
		t.Fatalf("expected pending payment, got %+v", p)
	}
	if len(store.Events()) != 0 {
		t.Fatalf("no events expected for an unknown outcome")
	}

	pending, err := svc.PendingPayments(ctx, -time.Minute, 10)
	if err != nil || len(pending) != 1 || pending[0].ID != p.ID {
		t.Fatalf("expected the pending payment to be listed, got %v (%v)", pending, err)
	}

	settled, err := svc.Settle(ctx, p.ID, ChargeResult{TransactionID: "tx-1", Success: true})
	if err != nil || settled.Status != domain.PaymentCompleted {
		t.Fatalf("settle: %+v (%v)", settled, err)
	}
	again, err := svc.Settle(ctx, p.ID, ChargeResult{FailureReason: "late"})
	if err != nil || again.Status != domain.PaymentCompleted {
		t.Fatalf("settling twice must be a no-op, got %+v (%v)", again, err)
	}
}

func TestRetryAfterUnknownOutcomeReusesAttempt(t *testing.T) {
	store := seed(t, domain.BookingConfirmed)
	proc := &flakyCharges{SandboxProcessor: NewSandboxProcessor()}
	svc := newService(store, proc)
	ctx := context.Background()

	first, err := svc.Initiate(ctx, payer, InitiateRequest{BookingID: "book-1", Token: "tok_visa"})
	if !errors.Is(err, domain.ErrExternalFailure) || first.Status != domain.PaymentPending {
		t.Fatalf("expected pending payment with external failure, got %+v (%v)", first, err)
	}

	if _, err := svc.Initiate(ctx, stranger, InitiateRequest{BookingID: "book-1", Token: "tok_visa"}); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized retry by a stranger, got %v", err)
	}

	retry, err := svc.Initiate(ctx, payer, InitiateRequest{BookingID: "book-1", Token: "tok_visa"})
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if retry.ID != first.ID || retry.Attempt != 1 || retry.Status != domain.PaymentCompleted {
		t.Fatalf("expected the same attempt to complete, got %+v", retry)
	}
	if proc.calls != 2 || proc.keys[0] != proc.keys[1] || proc.keys[0] != chargeKey(first.ID) {
		t.Fatalf("expected two calls under one idempotency key, got %d %v", proc.calls, proc.keys)
	}

	var all []domain.Payment
	_ = store.InTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		all, err = tx.Payments().ListByBooking(ctx, "book-1")
		return err
	})
	if len(all) != 1 {
		t.Fatalf("retry must not open a new payment record, got %d", len(all))
	}
}

func TestRefundFailureLeavesCompleted(t *testing.T) {
	store := seed(t, domain.BookingConfirmed)
	sandbox := NewSandboxProcessor()
	ctx := context.Background()

	p, err := newService(store, sandbox).Initiate(ctx, payer, InitiateRequest{BookingID: "book-1", Token: "tok_visa"})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}

	svc := newService(store, failingRefunds{sandbox})
	if _, err := svc.Refund(ctx, stranger, p.ID); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if _, err := svc.Refund(ctx, admin, p.ID); !errors.Is(err, domain.ErrExternalFailure) {
		t.Fatalf("expected external failure, got %v", err)
	}
	got, err := svc.Get(ctx, payer, p.ID)
	if err != nil || got.Status != domain.PaymentCompleted {
		t.Fatalf("payment should stay completed, got %+v (%v)", got, err)
	}
}

func TestUpdateRules(t *testing.T) {
	store := seed(t, domain.BookingConfirmed)
	svc := newService(store, NewSandboxProcessor())
	ctx := context.Background()

	p, _ := svc.Initiate(ctx, payer, InitiateRequest{BookingID: "book-1", Token: TokenError})

	amount := int64(4000)
	if _, err := svc.Update(ctx, payer, p.ID, UpdateRequest{Amount: &amount}); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	got, err := svc.Update(ctx, admin, p.ID, UpdateRequest{Amount: &amount})
	if err != nil || got.Amount != 4000 {
		t.Fatalf("pending payment should be editable: %+v (%v)", got, err)
	}

	refunded := domain.PaymentRefunded
	if _, err := svc.Update(ctx, admin, p.ID, UpdateRequest{Status: &refunded}); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("pending -> refunded must be rejected, got %v", err)
	}

	failed := domain.PaymentFailed
	got, err = svc.Update(ctx, admin, p.ID, UpdateRequest{Status: &failed})
	if err != nil || got.Status != domain.PaymentFailed {
		t.Fatalf("pending -> failed: %+v (%v)", got, err)
	}
	if _, err := svc.Update(ctx, admin, p.ID, UpdateRequest{Amount: &amount}); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("failed payment fields are frozen, got %v", err)
	}
}

func TestCanTransitionClosure(t *testing.T) {
	all := []domain.PaymentStatus{domain.PaymentPending, domain.PaymentCompleted, domain.PaymentFailed, domain.PaymentRefunded}
	allowed := map[[2]domain.PaymentStatus]bool{
		{domain.PaymentPending, domain.PaymentCompleted}:  true,
		{domain.PaymentPending, domain.PaymentFailed}:     true,
		{domain.PaymentCompleted, domain.PaymentRefunded}: true,
	}
	for _, from := range all {
		for _, to := range all {
			if got := CanTransition(from, to); got != allowed[[2]domain.PaymentStatus{from, to}] {
				t.Fatalf("CanTransition(%s, %s) = %v", from, to, got)
			}
		}
	}
}

func TestSandboxIsIdempotent(t *testing.T) {
	sb := NewSandboxProcessor()
	req := ChargeRequest{PaymentID: "p1", Amount: 100, Currency: "USD", Token: "tok_visa", IdempotencyKey: chargeKey("p1")}
	first, err := sb.ProcessPayment(context.Background(), req)
	if err != nil {
		t.Fatalf("charge: %v", err)
	}
	req.Token = TokenDecline
	second, err := sb.ProcessPayment(context.Background(), req)
	if err != nil || second != first {
		t.Fatalf("expected replayed result, got %+v (%v)", second, err)
	}
	res, found, err := sb.Lookup(context.Background(), "p1")
	if err != nil || !found || res != first {
		t.Fatalf("lookup: %+v %v %v", res, found, err)
	}
}
