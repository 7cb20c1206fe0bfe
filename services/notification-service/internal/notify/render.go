// Package notify turns booking and payment events into user-facing messages
// and delivers them over the user's preferred channel.
package notify

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Topics consumed from booking-service.
var Topics = []string{
	"booking.created.v1",
	"booking.confirmed.v1",
	"booking.rejected.v1",
	"booking.cancelled.v1",
	"booking.completed.v1",
	"booking.rescheduled.v1",
	"payment.completed.v1",
	"payment.failed.v1",
	"payment.refunded.v1",
}

type bookingEvent struct {
	BookingID       string    `json:"booking_id"`
	UserID          string    `json:"user_id"`
	ProviderID      string    `json:"provider_id"`
	Start           time.Time `json:"start"`
	DurationMinutes int       `json:"duration_minutes"`
	Reason          string    `json:"reason"`
}

type paymentEvent struct {
	PaymentID     string `json:"payment_id"`
	BookingID     string `json:"booking_id"`
	UserID        string `json:"user_id"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	FailureReason string `json:"failure_reason"`
}

// Message is a rendered notification for one user.
type Message struct {
	UserID    string
	BookingID string
	Subject   string
	Body      string
}

// Render returns ok=false for event types that carry no notification.
func Render(eventType string, payload []byte) (msg Message, ok bool, err error) {
	kind, _, _ := strings.Cut(strings.TrimSuffix(eventType, ".v1"), ".")
	switch kind {
	case "booking":
		var e bookingEvent
		if err := json.Unmarshal(payload, &e); err != nil {
			return Message{}, false, fmt.Errorf("decode %s: %w", eventType, err)
		}
		return renderBooking(eventType, e)
	case "payment":
		var e paymentEvent
		if err := json.Unmarshal(payload, &e); err != nil {
			return Message{}, false, fmt.Errorf("decode %s: %w", eventType, err)
		}
		return renderPayment(eventType, e)
	}
	return Message{}, false, nil
}

func renderBooking(eventType string, e bookingEvent) (Message, bool, error) {
	when := e.Start.UTC().Format("Mon 2 Jan 2006 15:04 MST")
	msg := Message{UserID: e.UserID, BookingID: e.BookingID}
	switch eventType {
	case "booking.created.v1":
		msg.Subject = "Booking requested"
		msg.Body = fmt.Sprintf("Your booking for %s (%d min) is waiting for the provider to confirm.", when, e.DurationMinutes)
	case "booking.confirmed.v1":
		msg.Subject = "Booking confirmed"
		msg.Body = fmt.Sprintf("Your booking for %s is confirmed.", when)
	case "booking.rejected.v1":
		msg.Subject = "Booking declined"
		msg.Body = fmt.Sprintf("The provider declined your booking for %s.", when) + reasonSuffix(e.Reason)
	case "booking.cancelled.v1":
		msg.Subject = "Booking cancelled"
		msg.Body = fmt.Sprintf("Your booking for %s was cancelled.", when) + reasonSuffix(e.Reason)
	case "booking.completed.v1":
		msg.Subject = "How did it go?"
		msg.Body = fmt.Sprintf("Your booking on %s is complete. You can now leave a review.", when)
	case "booking.rescheduled.v1":
		msg.Subject = "Booking rescheduled"
		msg.Body = fmt.Sprintf("Your booking now starts %s.", when)
	default:
		return Message{}, false, nil
	}
	return msg, true, nil
}

func renderPayment(eventType string, e paymentEvent) (Message, bool, error) {
	msg := Message{UserID: e.UserID, BookingID: e.BookingID}
	amount := FormatAmount(e.Amount, e.Currency)
	switch eventType {
	case "payment.completed.v1":
		msg.Subject = "Payment received"
		msg.Body = fmt.Sprintf("We received your payment of %s.", amount)
	case "payment.failed.v1":
		msg.Subject = "Payment failed"
		msg.Body = fmt.Sprintf("Your payment of %s did not go through.", amount) + reasonSuffix(e.FailureReason)
	case "payment.refunded.v1":
		msg.Subject = "Payment refunded"
		msg.Body = fmt.Sprintf("Your payment of %s has been refunded.", amount)
	default:
		return Message{}, false, nil
	}
	return msg, true, nil
}

func reasonSuffix(reason string) string {
	if reason = strings.TrimSpace(reason); reason == "" {
		return ""
	}
	return " Reason: " + reason + "."
}

// FormatAmount renders minor units with two decimals, e.g. 5000 USD -> "50.00 USD".
func FormatAmount(minor int64, currency string) string {
	sign := ""
	if minor < 0 {
		sign, minor = "-", -minor
	}
	return fmt.Sprintf("%s%d.%02d %s", sign, minor/100, minor%100, strings.ToUpper(currency))
}
