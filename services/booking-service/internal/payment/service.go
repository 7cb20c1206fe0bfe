// Package payment drives payment attempts for confirmed bookings. Processor
// calls never run inside a transaction: intent is persisted first, the
// processor is called, then the outcome is applied in a second transaction.
package payment

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/homebook/services/booking-service/internal/domain"
	"github.com/md-rashed-zaman/homebook/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/homebook/services/booking-service/internal/storage"
)

type Service struct {
	store     storage.Store
	processor Processor
	now       func() time.Time
	logger    *slog.Logger
}

func NewService(store storage.Store, processor Processor, now func() time.Time, logger *slog.Logger) *Service {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, processor: processor, now: now, logger: logger}
}

type InitiateRequest struct {
	BookingID string
	Token     string
}

// Initiate charges the booking's price snapshot. A decline returns the failed
// payment without error. An unknown outcome returns the still pending payment
// together with an ExternalFailure; calling Initiate again resends that same
// attempt to the processor instead of opening a new one.
func (s *Service) Initiate(ctx context.Context, actor domain.Actor, req InitiateRequest) (domain.Payment, error) {
	const op = "initiate payment"
	if strings.TrimSpace(req.Token) == "" {
		return domain.Payment{}, domain.Validation(op, "payment token is required")
	}

	var p domain.Payment
	var b domain.Booking
	err := s.store.InTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		b, err = tx.Bookings().GetForUpdate(ctx, req.BookingID)
		if err != nil {
			return err
		}
		if !actor.Owns(b.UserID) {
			return domain.Unauthorized(op, "only the booking owner can pay")
		}
		if b.Status != domain.BookingConfirmed {
			return &domain.Error{Kind: domain.ErrInvalidTransition, Op: op, Reason: "booking " + b.ID + " is " + b.Status.String() + ", not confirmed"}
		}

		previous, err := tx.Payments().ListByBooking(ctx, b.ID)
		if err != nil {
			return err
		}
		var open *domain.Payment
		for i, prev := range previous {
			switch prev.Status {
			case domain.PaymentPending:
				open = &previous[i]
			case domain.PaymentCompleted, domain.PaymentRefunded:
				return domain.Conflict(op, "booking "+b.ID+" is already paid")
			}
		}
		if open != nil {
			// Retry the unanswered attempt under its original idempotency key.
			p = *open
			return nil
		}

		now := s.now()
		currency := b.Currency
		if currency == "" {
			currency = domain.DefaultCurrency
		}
		p = domain.Payment{
			ID:        uuid.NewString(),
			BookingID: b.ID,
			UserID:    b.UserID,
			Amount:    b.PriceAmount,
			Currency:  currency,
			Status:    domain.PaymentPending,
			Attempt:   len(previous) + 1,
			Processor: s.processor.Name(),
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.Payments().Create(ctx, &p); err != nil {
			return err
		}
		b.PaymentID = p.ID
		b.UpdatedAt = now
		return tx.Bookings().Update(ctx, b)
	})
	if err != nil {
		return domain.Payment{}, err
	}

	res, err := s.processor.ProcessPayment(ctx, ChargeRequest{
		PaymentID:      p.ID,
		Amount:         p.Amount,
		Currency:       p.Currency,
		Token:          req.Token,
		IdempotencyKey: chargeKey(p.ID),
		Description:    "booking " + b.ID,
	})
	if err != nil {
		s.logger.Warn("payment outcome unknown", "payment_id", p.ID, "booking_id", b.ID, "err", err)
		return p, domain.ExternalFailure(op, "payment processor did not give an answer", err)
	}
	return s.Settle(ctx, p.ID, res)
}

// Settle applies a definitive processor answer to a pending payment. A payment
// that is no longer pending is returned unchanged.
func (s *Service) Settle(ctx context.Context, paymentID string, res ChargeResult) (domain.Payment, error) {
	const op = "settle payment"
	var p domain.Payment
	err := s.store.InTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		p, err = tx.Payments().GetForUpdate(ctx, paymentID)
		if err != nil {
			return err
		}
		if p.Status != domain.PaymentPending {
			return nil
		}

		now := s.now()
		to, topic := domain.PaymentFailed, outbox.PaymentFailed
		if res.Success {
			to, topic = domain.PaymentCompleted, outbox.PaymentCompleted
		}
		if err := checkTransition(op, p, to); err != nil {
			return err
		}
		p.Status = to
		p.TransactionID = res.TransactionID
		p.UpdatedAt = now
		if res.Success {
			p.ProcessedAt = &now
			p.FailureReason = ""
		} else {
			p.FailureReason = res.FailureReason
		}
		if err := tx.Payments().Update(ctx, p); err != nil {
			return err
		}
		return s.emit(ctx, tx, topic, p)
	})
	if err != nil {
		return domain.Payment{}, err
	}
	s.logger.Info("payment settled", "payment_id", p.ID, "status", p.Status)
	return p, nil
}

// Refund returns a completed payment in full. Only the booking owner or an
// admin may refund; a processor failure leaves the payment completed.
func (s *Service) Refund(ctx context.Context, actor domain.Actor, paymentID string) (domain.Payment, error) {
	const op = "refund payment"

	var p domain.Payment
	err := s.store.InTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		p, err = tx.Payments().Get(ctx, paymentID)
		if err != nil {
			return err
		}
		b, err := tx.Bookings().Get(ctx, p.BookingID)
		if err != nil {
			return err
		}
		if !actor.Owns(b.UserID) {
			return domain.Unauthorized(op, "only the booking owner or an admin can refund")
		}
		return checkTransition(op, p, domain.PaymentRefunded)
	})
	if err != nil {
		return domain.Payment{}, err
	}

	res, err := s.processor.RefundPayment(ctx, p)
	if err != nil {
		s.logger.Warn("refund failed", "payment_id", p.ID, "err", err)
		return domain.Payment{}, domain.ExternalFailure(op, "payment processor rejected the refund", err)
	}

	err = s.store.InTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		p, err = tx.Payments().GetForUpdate(ctx, paymentID)
		if err != nil {
			return err
		}
		if err := checkTransition(op, p, domain.PaymentRefunded); err != nil {
			return err
		}
		now := s.now()
		p.Status = domain.PaymentRefunded
		p.RefundedAt = &now
		p.RefundedAmount = p.Amount
		p.RefundID = res.RefundID
		p.UpdatedAt = now
		if err := tx.Payments().Update(ctx, p); err != nil {
			return err
		}
		return s.emit(ctx, tx, outbox.PaymentRefunded, p)
	})
	if err != nil {
		return domain.Payment{}, err
	}
	s.logger.Info("payment refunded", "payment_id", p.ID, "amount", p.RefundedAmount)
	return p, nil
}

// UpdateRequest carries an admin correction. Nil fields are left alone.
type UpdateRequest struct {
	Status        *domain.PaymentStatus
	Amount        *int64
	Currency      *string
	TransactionID *string
	FailureReason *string
}

func (r UpdateRequest) editsFields() bool {
	return r.Amount != nil || r.Currency != nil || r.TransactionID != nil || r.FailureReason != nil
}

// Update lets an admin correct a payment. Fields other than status are only
// editable while the payment is pending; status moves follow the table.
func (s *Service) Update(ctx context.Context, actor domain.Actor, paymentID string, req UpdateRequest) (domain.Payment, error) {
	const op = "update payment"
	if !actor.IsAdmin() {
		return domain.Payment{}, domain.Unauthorized(op, "admin only")
	}
	if req.Status != nil && !req.Status.Valid() {
		return domain.Payment{}, domain.Validation(op, "unknown status "+string(*req.Status))
	}
	if req.Amount != nil && *req.Amount < 0 {
		return domain.Payment{}, domain.Validation(op, "amount must not be negative")
	}

	var p domain.Payment
	err := s.store.InTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		p, err = tx.Payments().GetForUpdate(ctx, paymentID)
		if err != nil {
			return err
		}
		if req.editsFields() {
			if p.Status != domain.PaymentPending {
				return &domain.Error{Kind: domain.ErrInvalidTransition, Op: op, Reason: "payment " + p.ID + " is " + p.Status.String() + "; only pending payments can be edited"}
			}
			if req.Amount != nil {
				p.Amount = *req.Amount
			}
			if req.Currency != nil {
				p.Currency = strings.ToUpper(strings.TrimSpace(*req.Currency))
			}
			if req.TransactionID != nil {
				p.TransactionID = *req.TransactionID
			}
			if req.FailureReason != nil {
				p.FailureReason = *req.FailureReason
			}
		}

		now := s.now()
		topic := ""
		if req.Status != nil && *req.Status != p.Status {
			if err := checkTransition(op, p, *req.Status); err != nil {
				return err
			}
			p.Status = *req.Status
			switch p.Status {
			case domain.PaymentCompleted:
				p.ProcessedAt = &now
				topic = outbox.PaymentCompleted
			case domain.PaymentFailed:
				topic = outbox.PaymentFailed
			case domain.PaymentRefunded:
				p.RefundedAt = &now
				p.RefundedAmount = p.Amount
				topic = outbox.PaymentRefunded
			}
		}
		p.UpdatedAt = now
		if err := tx.Payments().Update(ctx, p); err != nil {
			return err
		}
		if topic == "" {
			return nil
		}
		return s.emit(ctx, tx, topic, p)
	})
	if err != nil {
		return domain.Payment{}, err
	}
	return p, nil
}

// Get returns a payment visible to its payer or an admin.
func (s *Service) Get(ctx context.Context, actor domain.Actor, id string) (domain.Payment, error) {
	var p domain.Payment
	err := s.store.InTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		p, err = tx.Payments().Get(ctx, id)
		if err != nil {
			return err
		}
		if !actor.Owns(p.UserID) {
			return domain.Unauthorized("get payment", "not the payer")
		}
		return nil
	})
	return p, err
}

// ListByBooking returns every attempt for the booking, oldest first.
func (s *Service) ListByBooking(ctx context.Context, actor domain.Actor, bookingID string) ([]domain.Payment, error) {
	var out []domain.Payment
	err := s.store.InTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		b, err := tx.Bookings().Get(ctx, bookingID)
		if err != nil {
			return err
		}
		if !actor.Owns(b.UserID) {
			p, err := tx.Providers().Get(ctx, b.ProviderID)
			if err != nil {
				return err
			}
			if !actor.Owns(p.OwnerUserID) {
				return domain.Unauthorized("list payments", "not a party to this booking")
			}
		}
		out, err = tx.Payments().ListByBooking(ctx, bookingID)
		return err
	})
	return out, err
}

// PendingPayments lists payments still pending after olderThan.
func (s *Service) PendingPayments(ctx context.Context, olderThan time.Duration, limit int) ([]domain.Payment, error) {
	var out []domain.Payment
	err := s.store.InTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		out, err = tx.Payments().ListPending(ctx, s.now().Add(-olderThan), limit)
		return err
	})
	return out, err
}

// Lookup asks the processor for the outcome of a payment, when it can tell.
func (s *Service) Lookup(ctx context.Context, paymentID string) (ChargeResult, bool, error) {
	looker, ok := s.processor.(Looker)
	if !ok {
		return ChargeResult{}, false, nil
	}
	return looker.Lookup(ctx, paymentID)
}

func (s *Service) emit(ctx context.Context, tx storage.Tx, topic string, p domain.Payment) error {
	evt, err := outbox.NewPaymentEvent(topic, p, s.now())
	if err != nil {
		return err
	}
	return tx.Outbox().Insert(ctx, evt)
}
