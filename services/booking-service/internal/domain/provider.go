package domain

import "time"

// DefaultCurrency applies when a price is given without a currency.
const DefaultCurrency = "USD"

// Provider offers services. OwnerUserID is the account that manages it.
type Provider struct {
	ID          string    `json:"id"`
	OwnerUserID string    `json:"owner_user_id"`
	Name        string    `json:"name"`
	TimeZone    string    `json:"time_zone"`
	Rating      float64   `json:"rating"`
	ReviewCount int       `json:"review_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ServiceOffering is a bookable service with its current price and length.
type ServiceOffering struct {
	ID              string    `json:"id"`
	ProviderID      string    `json:"provider_id"`
	Name            string    `json:"name"`
	PriceAmount     int64     `json:"price_amount"`
	Currency        string    `json:"currency"`
	DurationMinutes int       `json:"duration_minutes"`
	Active          bool      `json:"active"`
	CreatedAt       time.Time `json:"created_at"`
}
