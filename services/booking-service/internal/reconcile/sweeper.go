// Package reconcile settles payments whose processor outcome was never
// recorded, e.g. after a timeout between the charge and the local update.
package reconcile

import (
	"context"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/homebook/services/booking-service/internal/domain"
	"github.com/md-rashed-zaman/homebook/services/booking-service/internal/payment"
)

// AbandonedReason is recorded on payments the processor has no trace of.
const AbandonedReason = "abandoned: processor has no record of the charge"

// Payments is the part of the payment lifecycle the sweep drives.
type Payments interface {
	PendingPayments(ctx context.Context, olderThan time.Duration, limit int) ([]domain.Payment, error)
	Lookup(ctx context.Context, paymentID string) (payment.ChargeResult, bool, error)
	Settle(ctx context.Context, paymentID string, res payment.ChargeResult) (domain.Payment, error)
}

// Locker elects a single sweeping instance. *db.Pool implements it.
type Locker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (release func(), ok bool, err error)
}

type Config struct {
	Interval        time.Duration
	PendingAfter    time.Duration
	BatchSize       int
	AdvisoryLockKey int64
}

type Sweeper struct {
	payments Payments
	locker   Locker
	logger   *slog.Logger
	cfg      Config
}

// NewSweeper fills zero config values with defaults. A nil locker runs
// without leader election.
func NewSweeper(payments Payments, locker Locker, logger *slog.Logger, cfg Config) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.PendingAfter <= 0 {
		cfg.PendingAfter = 15 * time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.AdvisoryLockKey == 0 {
		cfg.AdvisoryLockKey = 4242101
	}
	return &Sweeper{payments: payments, locker: locker, logger: logger, cfg: cfg}
}

type Result struct {
	Settled   int
	Abandoned int
	Skipped   int
}

// Run sweeps every Interval until ctx is done. With a locker, only the
// instance holding the advisory lock sweeps; others retry periodically.
func (s *Sweeper) Run(ctx context.Context) {
	if s.locker != nil {
		release, ok := s.acquire(ctx)
		if !ok {
			return
		}
		defer release()
	}

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) acquire(ctx context.Context) (func(), bool) {
	for {
		release, ok, err := s.locker.TryAdvisoryLock(ctx, s.cfg.AdvisoryLockKey)
		wait := 30 * time.Second
		switch {
		case err != nil:
			s.logger.Error("reconcile: failed to acquire advisory lock", "err", err)
			wait = 5 * time.Second
		case ok:
			s.logger.Info("reconcile: advisory lock acquired", "lock_key", s.cfg.AdvisoryLockKey)
			return release, true
		default:
			s.logger.Debug("reconcile: advisory lock held by another instance", "lock_key", s.cfg.AdvisoryLockKey)
		}
		select {
		case <-ctx.Done():
			return nil, false
		case <-time.After(wait):
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	res, err := s.RunOnce(ctx)
	if err != nil {
		s.logger.Error("reconcile: sweep failed", "err", err)
		return
	}
	if res != (Result{}) {
		s.logger.Info("reconcile: sweep done", "settled", res.Settled, "abandoned", res.Abandoned, "skipped", res.Skipped)
	}
}

// RunOnce settles one batch of stale pending payments.
func (s *Sweeper) RunOnce(ctx context.Context) (Result, error) {
	var res Result
	pending, err := s.payments.PendingPayments(ctx, s.cfg.PendingAfter, s.cfg.BatchSize)
	if err != nil {
		return res, err
	}

	for _, p := range pending {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		outcome, found, err := s.payments.Lookup(ctx, p.ID)
		if err != nil {
			s.logger.Warn("reconcile: lookup failed", "payment_id", p.ID, "err", err)
			res.Skipped++
			continue
		}
		if !found {
			outcome = payment.ChargeResult{FailureReason: AbandonedReason}
		}
		if _, err := s.payments.Settle(ctx, p.ID, outcome); err != nil {
			s.logger.Warn("reconcile: settle failed", "payment_id", p.ID, "err", err)
			res.Skipped++
			continue
		}
		if found {
			res.Settled++
		} else {
			res.Abandoned++
		}
	}
	return res, nil
}
