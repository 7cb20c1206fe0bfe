package domain

import "time"

const (
	MinRating = 1.0
	MaxRating = 5.0
)

// Review belongs to exactly one completed booking.
type Review struct {
	ID         string    `json:"id"`
	BookingID  string    `json:"booking_id"`
	UserID     string    `json:"user_id"`
	ProviderID string    `json:"provider_id"`
	Rating     *float64  `json:"rating,omitempty"`
	Comment    string    `json:"comment,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// RatingSummary is the derived aggregate stored on the provider.
type RatingSummary struct {
	Rating      float64 `json:"rating"`
	ReviewCount int     `json:"review_count"`
}
