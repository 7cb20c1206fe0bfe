package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/homebook/libs/db"
	"github.com/md-rashed-zaman/homebook/services/booking-service/internal/domain"
)

type reviewRepo struct{ tx pgx.Tx }

const reviewColumns = `id, booking_id, user_id, provider_id, rating, comment, created_at, updated_at`

func scanReview(row pgx.Row) (domain.Review, error) {
	var rv domain.Review
	err := row.Scan(&rv.ID, &rv.BookingID, &rv.UserID, &rv.ProviderID, &rv.Rating, &rv.Comment, &rv.CreatedAt, &rv.UpdatedAt)
	return rv, err
}

func (r reviewRepo) Create(ctx context.Context, rv *domain.Review) error {
	_, err := r.tx.Exec(ctx, `
		INSERT INTO reviews (`+reviewColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, rv.ID, rv.BookingID, rv.UserID, rv.ProviderID, rv.Rating, rv.Comment, rv.CreatedAt, rv.UpdatedAt)
	if db.IsUniqueViolation(err) {
		return domain.Conflict("create review", "booking "+rv.BookingID+" already has a review")
	}
	return mapErr(err, "create review", "review", rv.ID)
}

func (r reviewRepo) Get(ctx context.Context, id string) (domain.Review, error) {
	rv, err := scanReview(r.tx.QueryRow(ctx, `SELECT `+reviewColumns+` FROM reviews WHERE id = $1`, id))
	if err != nil {
		return domain.Review{}, mapErr(err, "get review", "review", id)
	}
	return rv, nil
}

func (r reviewRepo) GetForUpdate(ctx context.Context, id string) (domain.Review, error) {
	rv, err := scanReview(r.tx.QueryRow(ctx, `SELECT `+reviewColumns+` FROM reviews WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return domain.Review{}, mapErr(err, "get review", "review", id)
	}
	return rv, nil
}

func (r reviewRepo) Update(ctx context.Context, rv domain.Review) error {
	tag, err := r.tx.Exec(ctx, `
		UPDATE reviews SET rating = $2, comment = $3, updated_at = $4 WHERE id = $1
	`, rv.ID, rv.Rating, rv.Comment, rv.UpdatedAt)
	if err != nil {
		return mapErr(err, "update review", "review", rv.ID)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound("update review", "review", rv.ID)
	}
	return nil
}

func (r reviewRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.tx.Exec(ctx, `DELETE FROM reviews WHERE id = $1`, id)
	if err != nil {
		return mapErr(err, "delete review", "review", id)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound("delete review", "review", id)
	}
	return nil
}

func (r reviewRepo) ListByProvider(ctx context.Context, providerID string) ([]domain.Review, error) {
	rows, err := r.tx.Query(ctx, `
		SELECT `+reviewColumns+` FROM reviews WHERE provider_id = $1 ORDER BY created_at DESC, id
	`, providerID)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	var out []domain.Review
	for rows.Next() {
		rv, err := scanReview(rows)
		if err != nil {
			return nil, fmt.Errorf("list reviews: %w", err)
		}
		out = append(out, rv)
	}
	return out, rows.Err()
}
