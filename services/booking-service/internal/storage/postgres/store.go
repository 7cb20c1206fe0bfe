// Package postgres implements the storage ports on pgx. Overlap protection is
// enforced by the bookings_no_overlap exclusion constraint; the provider row
// lock taken by GetForUpdate serializes writers per provider ahead of it.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/homebook/libs/db"
	"github.com/md-rashed-zaman/homebook/services/booking-service/internal/domain"
	"github.com/md-rashed-zaman/homebook/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/homebook/services/booking-service/internal/storage"
)

type Store struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

func NewStore(pool *db.Pool) *Store {
	return &Store{pool: pool, outbox: outbox.NewRepository()}
}

var _ storage.Store = (*Store)(nil)

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx storage.Tx) error) error {
	return s.pool.WithTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(t pgx.Tx) error {
		return fn(ctx, &tx{tx: t, outbox: s.outbox})
	})
}

type tx struct {
	tx     pgx.Tx
	outbox *outbox.Repository
}

func (t *tx) Providers() storage.ProviderRepository { return providerRepo{t.tx} }
func (t *tx) Catalog() storage.CatalogRepository     { return catalogRepo{t.tx} }
func (t *tx) Schedules() storage.ScheduleRepository  { return scheduleRepo{t.tx} }
func (t *tx) Bookings() storage.BookingRepository    { return bookingRepo{t.tx} }
func (t *tx) Payments() storage.PaymentRepository    { return paymentRepo{t.tx} }
func (t *tx) Reviews() storage.ReviewRepository      { return reviewRepo{t.tx} }
func (t *tx) Outbox() storage.OutboxWriter           { return outboxWriter{t} }

type outboxWriter struct{ t *tx }

func (w outboxWriter) Insert(ctx context.Context, evt outbox.Event) error {
	if err := w.t.outbox.Insert(ctx, w.t.tx, evt); err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}

// mapErr turns driver errors the engine branches on into domain errors.
func mapErr(err error, op, entity, id string) error {
	switch {
	case err == nil:
		return nil
	case db.IsNoRows(err), db.IsInvalidText(err):
		return domain.NotFound(op, entity, id)
	case db.IsExclusionViolation(err):
		return domain.Conflict(op, "requested time overlaps an existing booking")
	case db.IsUniqueViolation(err):
		return domain.Conflict(op, entity+" already exists")
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
