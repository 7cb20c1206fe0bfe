package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/homebook/libs/db"
	"github.com/md-rashed-zaman/homebook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/homebook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/homebook/services/booking-service/internal/config"
	"github.com/md-rashed-zaman/homebook/services/booking-service/internal/payment"
	"github.com/md-rashed-zaman/homebook/services/booking-service/internal/provider"
	"github.com/md-rashed-zaman/homebook/services/booking-service/internal/rating"
	"github.com/md-rashed-zaman/homebook/services/booking-service/internal/reconcile"
	"github.com/md-rashed-zaman/homebook/services/booking-service/internal/storage"
	"github.com/md-rashed-zaman/homebook/services/booking-service/internal/storage/memory"
	"github.com/md-rashed-zaman/homebook/services/booking-service/internal/storage/postgres"
	"github.com/md-rashed-zaman/homebook/services/booking-service/migrations"
)

// app holds the wired domain services. pool is nil when running in memory.
type app struct {
	cfg    config.Config
	logger *slog.Logger
	pool   *db.Pool

	store     storage.Store
	providers *provider.Service
	bookings  *booking.Service
	payments  *payment.Service
	ratings   *rating.Service
}

func newApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	if cfg.InMemory() {
		logger.Warn("DATABASE_URL not set; using in-memory store")
		a.store = memory.NewStore()
	} else {
		pool, err := db.Open(ctx, cfg.DatabaseURL, db.PoolOptions{MaxConns: int32(cfg.DBMaxConns)})
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		a.pool = pool
		if cfg.AutoMigrate {
			n, err := db.NewMigrator(pool, migrations.FS).Up(ctx)
			if err != nil {
				pool.Close()
				return nil, err
			}
			logger.Info("migrations applied", "count", n)
		}
		a.store = postgres.NewStore(pool)
	}

	var processor payment.Processor = payment.NewSandboxProcessor()
	if cfg.StripeSecretKey != "" {
		processor = payment.NewStripeProcessor(cfg.StripeSecretKey)
	}
	logger.Info("payment processor selected", "processor", processor.Name())

	checker := availability.NewChecker()
	now := func() time.Time { return time.Now().UTC() }
	a.providers = provider.NewService(a.store, checker, now, logger)
	a.bookings = booking.NewService(a.store, checker, now, logger)
	a.payments = payment.NewService(a.store, processor, now, logger)
	a.ratings = rating.NewService(a.store, now, logger)
	return a, nil
}

func (a *app) sweeper() *reconcile.Sweeper {
	var locker reconcile.Locker
	if a.pool != nil {
		locker = a.pool
	}
	return reconcile.NewSweeper(a.payments, locker, a.logger, reconcile.Config{
		Interval:        a.cfg.SweepInterval,
		PendingAfter:    a.cfg.SweepAfter,
		BatchSize:       a.cfg.SweepBatch,
		AdvisoryLockKey: a.cfg.SweepLockKey,
	})
}

func (a *app) close() {
	if a.pool != nil {
		a.pool.Close()
	}
}
