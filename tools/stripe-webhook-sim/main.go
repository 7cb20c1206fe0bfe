// Command stripe-webhook-sim posts a signed payment_intent event to the
// gateway so a pending payment can be settled without a real Stripe account.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"
)

type options struct {
	baseURL   string
	eventType string
	paymentID string
	intentID  string
	reason    string
	secret    string
}

func main() {
	opts := options{}
	cmd := &cobra.Command{
		Use:           "stripe-webhook-sim",
		Short:         "Send a signed Stripe payment_intent event to the gateway",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(*cobra.Command, []string) error {
			return run(opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.baseURL, "base-url", getenv("BASE_URL", "http://localhost:8080"), "gateway base url")
	f.StringVar(&opts.eventType, "type", getenv("STRIPE_EVENT_TYPE", "payment_intent.succeeded"), "stripe event type")
	f.StringVar(&opts.paymentID, "payment-id", getenv("PAYMENT_ID", ""), "payment_id metadata")
	f.StringVar(&opts.intentID, "intent-id", "", "payment intent id (generated when empty)")
	f.StringVar(&opts.reason, "reason", "Your card was declined.", "failure message for payment_failed")
	f.StringVar(&opts.secret, "secret", getenv("STRIPE_WEBHOOK_SECRET", ""), "stripe webhook signing secret (whsec_...)")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
}

func run(opts options) error {
	if strings.TrimSpace(opts.secret) == "" {
		return fmt.Errorf("STRIPE_WEBHOOK_SECRET is required")
	}
	if strings.TrimSpace(opts.paymentID) == "" {
		return fmt.Errorf("PAYMENT_ID is required")
	}

	now := time.Now().UTC()
	if opts.intentID == "" {
		opts.intentID = fmt.Sprintf("pi_test_%d", now.UnixNano())
	}
	payload, err := buildEventJSON(fmt.Sprintf("evt_test_%d", now.UnixNano()), now, opts)
	if err != nil {
		return err
	}

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    opts.secret,
		Timestamp: now,
		Scheme:    "v1",
	})

	req, err := http.NewRequest(http.MethodPost, strings.TrimRight(opts.baseURL, "/")+"/api/v1/webhooks/stripe", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Stripe-Signature", signed.Header)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	fmt.Printf("status=%d\n", resp.StatusCode)
	return nil
}

func buildEventJSON(eventID string, t time.Time, opts options) ([]byte, error) {
	intent := map[string]any{
		"id":       opts.intentID,
		"object":   "payment_intent",
		"metadata": map[string]any{"payment_id": opts.paymentID},
	}
	switch opts.eventType {
	case "payment_intent.succeeded":
		intent["status"] = "succeeded"
	case "payment_intent.payment_failed":
		intent["status"] = "requires_payment_method"
		intent["last_payment_error"] = map[string]any{"message": opts.reason}
	case "payment_intent.canceled":
		intent["status"] = "canceled"
		intent["cancellation_reason"] = "abandoned"
	default:
		return nil, fmt.Errorf("unsupported event type: %s", opts.eventType)
	}
	return json.Marshal(map[string]any{
		"id":          eventID,
		"object":      "event",
		"created":     t.Unix(),
		"type":        opts.eventType,
		"api_version": stripe.APIVersion,
		"data":        map[string]any{"object": intent},
	})
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
