package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/md-rashed-zaman/homebook/services/booking-service/internal/domain"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/paymentintent"
	"github.com/stripe/stripe-go/v79/refund"
)

// StripeProcessor charges through PaymentIntents confirmed server side with
// the client's payment method token.
type StripeProcessor struct{}

// NewStripeProcessor sets the package-level stripe key.
func NewStripeProcessor(secretKey string) *StripeProcessor {
	stripe.Key = strings.TrimSpace(secretKey)
	return &StripeProcessor{}
}

func (p *StripeProcessor) Name() string { return "stripe" }

func (p *StripeProcessor) ProcessPayment(ctx context.Context, req ChargeRequest) (ChargeResult, error) {
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(req.Amount),
		Currency:      stripe.String(strings.ToLower(req.Currency)),
		PaymentMethod: stripe.String(req.Token),
		Confirm:       stripe.Bool(true),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled:        stripe.Bool(true),
			AllowRedirects: stripe.String("never"),
		},
	}
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}
	params.Context = ctx
	params.IdempotencyKey = stripe.String(req.IdempotencyKey)
	params.AddMetadata("payment_id", req.PaymentID)

	pi, err := paymentintent.New(params)
	if err != nil {
		var se *stripe.Error
		if errors.As(err, &se) && se.Type == stripe.ErrorTypeCard {
			res := ChargeResult{FailureReason: se.Msg}
			if se.PaymentIntent != nil {
				res.TransactionID = se.PaymentIntent.ID
			}
			return res, nil
		}
		return ChargeResult{}, fmt.Errorf("stripe create payment intent: %w", err)
	}
	return resultFromIntent(pi)
}

func resultFromIntent(pi *stripe.PaymentIntent) (ChargeResult, error) {
	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
		return ChargeResult{TransactionID: pi.ID, Success: true}, nil
	case stripe.PaymentIntentStatusRequiresPaymentMethod, stripe.PaymentIntentStatusCanceled:
		reason := "payment was not completed"
		if pi.LastPaymentError != nil && pi.LastPaymentError.Msg != "" {
			reason = pi.LastPaymentError.Msg
		}
		return ChargeResult{TransactionID: pi.ID, FailureReason: reason}, nil
	default:
		return ChargeResult{}, fmt.Errorf("payment intent %s is %s", pi.ID, pi.Status)
	}
}

func (p *StripeProcessor) RefundPayment(ctx context.Context, pay domain.Payment) (RefundResult, error) {
	if pay.TransactionID == "" {
		return RefundResult{}, fmt.Errorf("payment %s has no transaction id", pay.ID)
	}
	params := &stripe.RefundParams{PaymentIntent: stripe.String(pay.TransactionID)}
	params.Context = ctx
	params.IdempotencyKey = stripe.String(refundKey(pay.ID))
	params.AddMetadata("payment_id", pay.ID)

	r, err := refund.New(params)
	if err != nil {
		return RefundResult{}, fmt.Errorf("stripe create refund: %w", err)
	}
	if r.Status == stripe.RefundStatusFailed || r.Status == stripe.RefundStatusCanceled {
		return RefundResult{}, fmt.Errorf("stripe refund %s is %s", r.ID, r.Status)
	}
	return RefundResult{RefundID: r.ID}, nil
}

// Lookup finds the intent tagged with paymentID. Intents still processing are
// reported as an error so the caller retries later.
func (p *StripeProcessor) Lookup(ctx context.Context, paymentID string) (ChargeResult, bool, error) {
	params := &stripe.PaymentIntentSearchParams{}
	params.Context = ctx
	params.Query = fmt.Sprintf("metadata['payment_id']:'%s'", paymentID)

	iter := paymentintent.Search(params)
	for iter.Next() {
		res, err := resultFromIntent(iter.PaymentIntent())
		if err != nil {
			return ChargeResult{}, true, err
		}
		return res, true, nil
	}
	if err := iter.Err(); err != nil {
		return ChargeResult{}, false, fmt.Errorf("stripe search payment intents: %w", err)
	}
	return ChargeResult{}, false, nil
}
