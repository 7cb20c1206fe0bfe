package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/homebook/services/booking-service/internal/domain"
)

type providerRepo struct{ tx pgx.Tx }

const providerColumns = `id, owner_user_id, name, time_zone, rating, review_count, created_at, updated_at`

func (r providerRepo) Create(ctx context.Context, p *domain.Provider) error {
	_, err := r.tx.Exec(ctx, `
		INSERT INTO providers (`+providerColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, p.ID, p.OwnerUserID, p.Name, p.TimeZone, p.Rating, p.ReviewCount, p.CreatedAt, p.UpdatedAt)
	return mapErr(err, "create provider", "provider", p.ID)
}

func (r providerRepo) Get(ctx context.Context, id string) (domain.Provider, error) {
	return r.get(ctx, id, "")
}

func (r providerRepo) GetForUpdate(ctx context.Context, id string) (domain.Provider, error) {
	return r.get(ctx, id, " FOR UPDATE")
}

func (r providerRepo) get(ctx context.Context, id, lock string) (domain.Provider, error) {
	var p domain.Provider
	err := r.tx.QueryRow(ctx, `SELECT `+providerColumns+` FROM providers WHERE id = $1`+lock, id).
		Scan(&p.ID, &p.OwnerUserID, &p.Name, &p.TimeZone, &p.Rating, &p.ReviewCount, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return domain.Provider{}, mapErr(err, "get provider", "provider", id)
	}
	return p, nil
}

func (r providerRepo) UpdateRating(ctx context.Context, id string, summary domain.RatingSummary, at time.Time) error {
	tag, err := r.tx.Exec(ctx, `
		UPDATE providers SET rating = $2, review_count = $3, updated_at = $4 WHERE id = $1
	`, id, summary.Rating, summary.ReviewCount, at)
	if err != nil {
		return mapErr(err, "update rating", "provider", id)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound("update rating", "provider", id)
	}
	return nil
}

func (r providerRepo) UpdateTimeZone(ctx context.Context, id, tz string, at time.Time) error {
	tag, err := r.tx.Exec(ctx, `UPDATE providers SET time_zone = $2, updated_at = $3 WHERE id = $1`, id, tz, at)
	if err != nil {
		return mapErr(err, "update time zone", "provider", id)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound("update time zone", "provider", id)
	}
	return nil
}

type catalogRepo struct{ tx pgx.Tx }

const serviceColumns = `id, provider_id, name, price_amount, currency, duration_minutes, active, created_at`

func (r catalogRepo) Create(ctx context.Context, s *domain.ServiceOffering) error {
	_, err := r.tx.Exec(ctx, `
		INSERT INTO services (`+serviceColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, s.ID, s.ProviderID, s.Name, s.PriceAmount, s.Currency, s.DurationMinutes, s.Active, s.CreatedAt)
	return mapErr(err, "create service", "service", s.ID)
}

func scanService(row pgx.Row) (domain.ServiceOffering, error) {
	var s domain.ServiceOffering
	err := row.Scan(&s.ID, &s.ProviderID, &s.Name, &s.PriceAmount, &s.Currency, &s.DurationMinutes, &s.Active, &s.CreatedAt)
	return s, err
}

func (r catalogRepo) Get(ctx context.Context, id string) (domain.ServiceOffering, error) {
	s, err := scanService(r.tx.QueryRow(ctx, `SELECT `+serviceColumns+` FROM services WHERE id = $1`, id))
	if err != nil {
		return domain.ServiceOffering{}, mapErr(err, "get service", "service", id)
	}
	return s, nil
}

func (r catalogRepo) ListByProvider(ctx context.Context, providerID string) ([]domain.ServiceOffering, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+serviceColumns+` FROM services WHERE provider_id = $1 ORDER BY name`, providerID)
	if err != nil {
		return nil, mapErr(err, "list services", "provider", providerID)
	}
	defer rows.Close()

	var out []domain.ServiceOffering
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
