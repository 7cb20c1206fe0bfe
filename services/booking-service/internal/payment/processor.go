package payment

import (
	"context"

	"github.com/md-rashed-zaman/homebook/services/booking-service/internal/domain"
)

type ChargeRequest struct {
	PaymentID      string
	Amount         int64
	Currency       string
	Token          string
	IdempotencyKey string
	Description    string
}

// ChargeResult is a definitive answer from the processor. A decline is a
// result with Success false, not an error.
type ChargeResult struct {
	TransactionID string
	Success       bool
	FailureReason string
}

type RefundResult struct {
	RefundID string
}

// Processor is the external payment gateway. An error from ProcessPayment
// means the outcome is unknown; the caller must not assume failure.
type Processor interface {
	Name() string
	ProcessPayment(ctx context.Context, req ChargeRequest) (ChargeResult, error)
	RefundPayment(ctx context.Context, p domain.Payment) (RefundResult, error)
}

// Looker is implemented by processors that can find a charge by local
// payment id. The reconciliation sweep uses it to settle unknown outcomes.
type Looker interface {
	Lookup(ctx context.Context, paymentID string) (res ChargeResult, found bool, err error)
}

func chargeKey(paymentID string) string { return "charge:" + paymentID }
func refundKey(paymentID string) string { return "refund:" + paymentID }
