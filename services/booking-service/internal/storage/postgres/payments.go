package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/homebook/services/booking-service/internal/domain"
)

type paymentRepo struct{ tx pgx.Tx }

const paymentColumns = `id, booking_id, user_id, amount, currency, status, attempt, processor,
	transaction_id, failure_reason, refunded_amount, refund_id, created_at, updated_at, processed_at, refunded_at`

func scanPayment(row pgx.Row) (domain.Payment, error) {
	var p domain.Payment
	var status string
	err := row.Scan(&p.ID, &p.BookingID, &p.UserID, &p.Amount, &p.Currency, &status, &p.Attempt, &p.Processor,
		&p.TransactionID, &p.FailureReason, &p.RefundedAmount, &p.RefundID, &p.CreatedAt, &p.UpdatedAt, &p.ProcessedAt, &p.RefundedAt)
	p.Status = domain.PaymentStatus(status)
	return p, err
}

func (r paymentRepo) Create(ctx context.Context, p *domain.Payment) error {
	_, err := r.tx.Exec(ctx, `
		INSERT INTO payments (`+paymentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`, p.ID, p.BookingID, p.UserID, p.Amount, p.Currency, string(p.Status), p.Attempt, p.Processor,
		p.TransactionID, p.FailureReason, p.RefundedAmount, p.RefundID, p.CreatedAt, p.UpdatedAt, p.ProcessedAt, p.RefundedAt)
	return mapErr(err, "create payment", "payment", p.ID)
}

func (r paymentRepo) Get(ctx context.Context, id string) (domain.Payment, error) {
	p, err := scanPayment(r.tx.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id))
	if err != nil {
		return domain.Payment{}, mapErr(err, "get payment", "payment", id)
	}
	return p, nil
}

func (r paymentRepo) GetForUpdate(ctx context.Context, id string) (domain.Payment, error) {
	p, err := scanPayment(r.tx.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return domain.Payment{}, mapErr(err, "get payment", "payment", id)
	}
	return p, nil
}

func (r paymentRepo) Update(ctx context.Context, p domain.Payment) error {
	tag, err := r.tx.Exec(ctx, `
		UPDATE payments SET
			amount = $2, currency = $3, status = $4, processor = $5, transaction_id = $6, failure_reason = $7,
			refunded_amount = $8, refund_id = $9, updated_at = $10, processed_at = $11, refunded_at = $12
		WHERE id = $1
	`, p.ID, p.Amount, p.Currency, string(p.Status), p.Processor, p.TransactionID, p.FailureReason,
		p.RefundedAmount, p.RefundID, p.UpdatedAt, p.ProcessedAt, p.RefundedAt)
	if err != nil {
		return mapErr(err, "update payment", "payment", p.ID)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound("update payment", "payment", p.ID)
	}
	return nil
}

func (r paymentRepo) ListByBooking(ctx context.Context, bookingID string) ([]domain.Payment, error) {
	return r.query(ctx, "list payments", `
		SELECT `+paymentColumns+` FROM payments WHERE booking_id = $1 ORDER BY attempt
	`, bookingID)
}

func (r paymentRepo) ListPending(ctx context.Context, cutoff time.Time, limit int) ([]domain.Payment, error) {
	return r.query(ctx, "list pending payments", `
		SELECT `+paymentColumns+` FROM payments
		WHERE status = 'pending' AND created_at < $1
		ORDER BY created_at
		LIMIT $2
	`, cutoff, limit)
}

func (r paymentRepo) query(ctx context.Context, op, q string, args ...any) ([]domain.Payment, error) {
	rows, err := r.tx.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var out []domain.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
