package storage

import (
	"context"
	"errors"
	"time"

	"github.com/md-rashed-zaman/homebook/libs/db"
)

var ErrNotFound = errors.New("not found")

// Channels a user can be reached on.
const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
)

// Contact is where and how a user wants to be notified.
type Contact struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Channel   string    `json:"channel"`
	Muted     bool      `json:"muted"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Delivery statuses.
const (
	StatusSent    = "sent"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// Notification is one delivery attempt for one event.
type Notification struct {
	ID            int64     `json:"id"`
	EventID       string    `json:"event_id"`
	EventType     string    `json:"event_type"`
	BookingID     string    `json:"booking_id"`
	UserID        string    `json:"user_id"`
	Channel       string    `json:"channel,omitempty"`
	Recipient     string    `json:"recipient,omitempty"`
	Subject       string    `json:"subject"`
	Status        string    `json:"status"`
	Provider      string    `json:"provider,omitempty"`
	FailureReason string    `json:"failure_reason,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) GetContact(ctx context.Context, userID string) (Contact, error) {
	var c Contact
	err := r.pool.QueryRow(ctx, `
		SELECT user_id, email, phone, channel, muted, updated_at
		FROM contacts WHERE user_id = $1
	`, userID).Scan(&c.UserID, &c.Email, &c.Phone, &c.Channel, &c.Muted, &c.UpdatedAt)
	if db.IsNoRows(err) {
		return Contact{}, ErrNotFound
	}
	return c, err
}

func (r *Repository) UpsertContact(ctx context.Context, c Contact) (Contact, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO contacts (user_id, email, phone, channel, muted)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE
		SET email = EXCLUDED.email, phone = EXCLUDED.phone, channel = EXCLUDED.channel,
		    muted = EXCLUDED.muted, updated_at = now()
		RETURNING updated_at
	`, c.UserID, c.Email, c.Phone, c.Channel, c.Muted).Scan(&c.UpdatedAt)
	return c, err
}

func (r *Repository) InsertNotification(ctx context.Context, n Notification) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO notifications (event_id, event_type, booking_id, user_id, channel, recipient, subject, status, provider, failure_reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, n.EventID, n.EventType, n.BookingID, n.UserID, n.Channel, n.Recipient, n.Subject, n.Status, n.Provider, n.FailureReason)
	return err
}

// ListNotifications returns a user's most recent deliveries first.
func (r *Repository) ListNotifications(ctx context.Context, userID string, limit int) ([]Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, event_id, event_type, booking_id, user_id, channel, recipient, subject, status, provider, failure_reason, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.EventID, &n.EventType, &n.BookingID, &n.UserID, &n.Channel, &n.Recipient,
			&n.Subject, &n.Status, &n.Provider, &n.FailureReason, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
