package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/homebook/services/booking-service/internal/domain"
)

type scheduleRepo struct{ tx pgx.Tx }

func (r scheduleRepo) Get(ctx context.Context, providerID string) (domain.ProviderSchedule, error) {
	const op = "get schedule"
	s := domain.ProviderSchedule{ProviderID: providerID}
	err := r.tx.QueryRow(ctx, `SELECT time_zone, updated_at FROM provider_schedules WHERE provider_id = $1`, providerID).
		Scan(&s.TimeZone, &s.UpdatedAt)
	if err != nil {
		return domain.ProviderSchedule{}, mapErr(err, op, "schedule", providerID)
	}

	rows, err := r.tx.Query(ctx, `
		SELECT weekday, is_open, start_minute, end_minute
		FROM working_hours WHERE provider_id = $1 ORDER BY weekday
	`, providerID)
	if err != nil {
		return domain.ProviderSchedule{}, mapErr(err, op, "schedule", providerID)
	}
	for rows.Next() {
		var wh domain.WorkingHours
		var day int16
		if err := rows.Scan(&day, &wh.IsOpen, &wh.StartMinute, &wh.EndMinute); err != nil {
			rows.Close()
			return domain.ProviderSchedule{}, err
		}
		wh.Weekday = time.Weekday(day)
		s.WorkingHours = append(s.WorkingHours, wh)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return domain.ProviderSchedule{}, err
	}

	rows, err = r.tx.Query(ctx, `
		SELECT day, is_closed, start_minute, end_minute, note
		FROM special_dates WHERE provider_id = $1 ORDER BY day
	`, providerID)
	if err != nil {
		return domain.ProviderSchedule{}, mapErr(err, op, "schedule", providerID)
	}
	for rows.Next() {
		var sd domain.SpecialDate
		var day time.Time
		if err := rows.Scan(&day, &sd.IsClosed, &sd.StartMinute, &sd.EndMinute, &sd.Note); err != nil {
			rows.Close()
			return domain.ProviderSchedule{}, err
		}
		sd.Date = domain.DateOf(day)
		s.SpecialDates = append(s.SpecialDates, sd)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return domain.ProviderSchedule{}, err
	}

	rows, err = r.tx.Query(ctx, `
		SELECT id, start_at, end_at, is_available, note
		FROM time_slots WHERE provider_id = $1 ORDER BY start_at
	`, providerID)
	if err != nil {
		return domain.ProviderSchedule{}, mapErr(err, op, "schedule", providerID)
	}
	defer rows.Close()
	for rows.Next() {
		var ts domain.TimeSlot
		if err := rows.Scan(&ts.ID, &ts.Start, &ts.End, &ts.IsAvailable, &ts.Note); err != nil {
			return domain.ProviderSchedule{}, err
		}
		s.TimeSlots = append(s.TimeSlots, ts)
	}
	return s, rows.Err()
}

// Save replaces the schedule's child rows wholesale inside the caller's tx.
func (r scheduleRepo) Save(ctx context.Context, s domain.ProviderSchedule) error {
	const op = "save schedule"
	_, err := r.tx.Exec(ctx, `
		INSERT INTO provider_schedules (provider_id, time_zone, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (provider_id) DO UPDATE SET time_zone = EXCLUDED.time_zone, updated_at = EXCLUDED.updated_at
	`, s.ProviderID, s.TimeZone, s.UpdatedAt)
	if err != nil {
		return mapErr(err, op, "schedule", s.ProviderID)
	}

	for _, table := range []string{"working_hours", "special_dates", "time_slots"} {
		if _, err := r.tx.Exec(ctx, `DELETE FROM `+table+` WHERE provider_id = $1`, s.ProviderID); err != nil {
			return mapErr(err, op, "schedule", s.ProviderID)
		}
	}

	batch := &pgx.Batch{}
	for _, wh := range s.WorkingHours {
		batch.Queue(`
			INSERT INTO working_hours (provider_id, weekday, is_open, start_minute, end_minute)
			VALUES ($1, $2, $3, $4, $5)
		`, s.ProviderID, int16(wh.Weekday), wh.IsOpen, wh.StartMinute, wh.EndMinute)
	}
	for _, sd := range s.SpecialDates {
		batch.Queue(`
			INSERT INTO special_dates (provider_id, day, is_closed, start_minute, end_minute, note)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, s.ProviderID, sd.Date.Midnight(time.UTC), sd.IsClosed, sd.StartMinute, sd.EndMinute, sd.Note)
	}
	for _, ts := range s.TimeSlots {
		batch.Queue(`
			INSERT INTO time_slots (id, provider_id, start_at, end_at, is_available, note)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, ts.ID, s.ProviderID, ts.Start, ts.End, ts.IsAvailable, ts.Note)
	}
	if batch.Len() == 0 {
		return nil
	}
	if err := r.tx.SendBatch(ctx, batch).Close(); err != nil {
		return mapErr(err, op, "schedule", s.ProviderID)
	}
	return nil
}
