package domain

import "time"

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingRejected  BookingStatus = "rejected"
	BookingCancelled BookingStatus = "cancelled"
	BookingCompleted BookingStatus = "completed"
)

func (s BookingStatus) String() string { return string(s) }

func (s BookingStatus) Valid() bool {
	switch s {
	case BookingPending, BookingConfirmed, BookingRejected, BookingCancelled, BookingCompleted:
		return true
	}
	return false
}

// Blocks reports whether a booking in this status occupies its time range.
func (s BookingStatus) Blocks() bool {
	return s == BookingPending || s == BookingConfirmed
}

// Booking is one appointment request. Price fields are a snapshot of the
// service offering at creation time.
type Booking struct {
	ID                 string        `json:"id"`
	UserID             string        `json:"user_id"`
	ProviderID         string        `json:"provider_id"`
	ServiceID          string        `json:"service_id"`
	Start              time.Time     `json:"start"`
	DurationMinutes    int           `json:"duration_minutes"`
	Status             BookingStatus `json:"status"`
	PriceAmount        int64         `json:"price_amount"`
	Currency           string        `json:"currency"`
	Notes              string        `json:"notes,omitempty"`
	PaymentID          string        `json:"payment_id,omitempty"`
	CancellationReason string        `json:"cancellation_reason,omitempty"`
	CancelledBy        string        `json:"cancelled_by,omitempty"`
	RejectionReason    string        `json:"rejection_reason,omitempty"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
	ConfirmedAt        *time.Time    `json:"confirmed_at,omitempty"`
	CancelledAt        *time.Time    `json:"cancelled_at,omitempty"`
	RejectedAt         *time.Time    `json:"rejected_at,omitempty"`
	CompletedAt        *time.Time    `json:"completed_at,omitempty"`
}

// End is Start + DurationMinutes; the booking occupies [Start, End).
func (b Booking) End() time.Time {
	return b.Start.Add(time.Duration(b.DurationMinutes) * time.Minute)
}

// Overlaps applies the half-open rule s1 < e2 && s2 < e1.
func Overlaps(s1, e1, s2, e2 time.Time) bool {
	return s1.Before(e2) && s2.Before(e1)
}

// BookingFilter selects bookings for listings. Exactly one of UserID or
// ProviderID is normally set.
type BookingFilter struct {
	UserID     string
	ProviderID string
	Statuses   []BookingStatus
	From       time.Time
	To         time.Time
	Limit      int
	Offset     int
}

const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

// Normalize clamps paging to sane bounds.
func (f BookingFilter) Normalize() BookingFilter {
	if f.Limit <= 0 {
		f.Limit = DefaultPageSize
	}
	if f.Limit > MaxPageSize {
		f.Limit = MaxPageSize
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// Matches reports whether b passes the filter, ignoring paging.
func (f BookingFilter) Matches(b Booking) bool {
	if f.UserID != "" && b.UserID != f.UserID {
		return false
	}
	if f.ProviderID != "" && b.ProviderID != f.ProviderID {
		return false
	}
	if len(f.Statuses) > 0 {
		ok := false
		for _, s := range f.Statuses {
			if b.Status == s {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if !f.From.IsZero() && b.Start.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !b.Start.Before(f.To) {
		return false
	}
	return true
}
