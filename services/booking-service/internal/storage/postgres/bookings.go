package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/homebook/services/booking-service/internal/domain"
)

type bookingRepo struct{ tx pgx.Tx }

const bookingColumns = `id, user_id, provider_id, service_id, start_at, duration_minutes, status,
	price_amount, currency, notes, payment_id, cancellation_reason, cancelled_by, rejection_reason,
	created_at, updated_at, confirmed_at, cancelled_at, rejected_at, completed_at`

func scanBooking(row pgx.Row) (domain.Booking, error) {
	var b domain.Booking
	var status string
	var paymentID *string
	err := row.Scan(&b.ID, &b.UserID, &b.ProviderID, &b.ServiceID, &b.Start, &b.DurationMinutes, &status,
		&b.PriceAmount, &b.Currency, &b.Notes, &paymentID, &b.CancellationReason, &b.CancelledBy, &b.RejectionReason,
		&b.CreatedAt, &b.UpdatedAt, &b.ConfirmedAt, &b.CancelledAt, &b.RejectedAt, &b.CompletedAt)
	if err != nil {
		return domain.Booking{}, err
	}
	b.Status = domain.BookingStatus(status)
	b.PaymentID = derefString(paymentID)
	return b, nil
}

func (r bookingRepo) Create(ctx context.Context, b *domain.Booking, idempotencyKey string) error {
	_, err := r.tx.Exec(ctx, `
		INSERT INTO bookings (id, user_id, provider_id, service_id, start_at, end_at, duration_minutes, status,
			price_amount, currency, notes, payment_id, idempotency_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`, b.ID, b.UserID, b.ProviderID, b.ServiceID, b.Start, b.End(), b.DurationMinutes, string(b.Status),
		b.PriceAmount, b.Currency, b.Notes, nullString(b.PaymentID), nullString(idempotencyKey), b.CreatedAt, b.UpdatedAt)
	return mapErr(err, "create booking", "booking", b.ID)
}

func (r bookingRepo) Get(ctx context.Context, id string) (domain.Booking, error) {
	b, err := scanBooking(r.tx.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id))
	return b, mapErr(err, "get booking", "booking", id)
}

func (r bookingRepo) GetForUpdate(ctx context.Context, id string) (domain.Booking, error) {
	b, err := scanBooking(r.tx.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1 FOR UPDATE`, id))
	return b, mapErr(err, "get booking", "booking", id)
}

func (r bookingRepo) GetByIdempotencyKey(ctx context.Context, userID, key string) (domain.Booking, error) {
	b, err := scanBooking(r.tx.QueryRow(ctx, `
		SELECT `+bookingColumns+` FROM bookings WHERE user_id = $1 AND idempotency_key = $2
	`, userID, key))
	return b, mapErr(err, "get booking", "idempotency key", key)
}

func (r bookingRepo) Update(ctx context.Context, b domain.Booking) error {
	tag, err := r.tx.Exec(ctx, `
		UPDATE bookings SET
			start_at = $2, end_at = $3, duration_minutes = $4, status = $5, notes = $6, payment_id = $7,
			cancellation_reason = $8, cancelled_by = $9, rejection_reason = $10, updated_at = $11,
			confirmed_at = $12, cancelled_at = $13, rejected_at = $14, completed_at = $15
		WHERE id = $1
	`, b.ID, b.Start, b.End(), b.DurationMinutes, string(b.Status), b.Notes, nullString(b.PaymentID),
		b.CancellationReason, b.CancelledBy, b.RejectionReason, b.UpdatedAt,
		b.ConfirmedAt, b.CancelledAt, b.RejectedAt, b.CompletedAt)
	if err != nil {
		return mapErr(err, "update booking", "booking", b.ID)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound("update booking", "booking", b.ID)
	}
	return nil
}

func (r bookingRepo) ListOverlapping(ctx context.Context, providerID string, start, end time.Time) ([]domain.Booking, error) {
	return r.query(ctx, "list overlapping bookings", `
		SELECT `+bookingColumns+` FROM bookings
		WHERE provider_id = $1 AND status IN ('pending', 'confirmed')
			AND start_at < $3 AND end_at > $2
		ORDER BY start_at, id
	`, providerID, start, end)
}

func (r bookingRepo) List(ctx context.Context, f domain.BookingFilter) ([]domain.Booking, error) {
	f = f.Normalize()
	var where []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.UserID != "" {
		add("user_id = $%d", f.UserID)
	}
	if f.ProviderID != "" {
		add("provider_id = $%d", f.ProviderID)
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = string(s)
		}
		add("status = ANY($%d)", statuses)
	}
	if !f.From.IsZero() {
		add("start_at >= $%d", f.From)
	}
	if !f.To.IsZero() {
		add("start_at < $%d", f.To)
	}

	q := `SELECT ` + bookingColumns + ` FROM bookings`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	args = append(args, f.Limit, f.Offset)
	q += fmt.Sprintf(` ORDER BY start_at, id LIMIT $%d OFFSET $%d`, len(args)-1, len(args))
	return r.query(ctx, "list bookings", q, args...)
}

func (r bookingRepo) query(ctx context.Context, op, q string, args ...any) ([]domain.Booking, error) {
	rows, err := r.tx.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var out []domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
