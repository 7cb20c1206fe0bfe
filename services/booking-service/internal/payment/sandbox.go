package payment

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/homebook/services/booking-service/internal/domain"
)

// Sandbox tokens.
const (
	TokenDecline = "tok_decline"
	TokenError   = "tok_error"
)

var ErrSandboxUnavailable = errors.New("sandbox processor unavailable")

// SandboxProcessor approves every token except the sandbox failure tokens.
// Results are remembered per idempotency key like a real gateway.
type SandboxProcessor struct {
	mu      sync.Mutex
	charges map[string]ChargeResult
	byID    map[string]ChargeResult
	refunds map[string]RefundResult
}

func NewSandboxProcessor() *SandboxProcessor {
	return &SandboxProcessor{
		charges: map[string]ChargeResult{},
		byID:    map[string]ChargeResult{},
		refunds: map[string]RefundResult{},
	}
}

func (s *SandboxProcessor) Name() string { return "sandbox" }

func (s *SandboxProcessor) ProcessPayment(ctx context.Context, req ChargeRequest) (ChargeResult, error) {
	if err := ctx.Err(); err != nil {
		return ChargeResult{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if res, ok := s.charges[req.IdempotencyKey]; ok {
		return res, nil
	}
	var res ChargeResult
	switch req.Token {
	case TokenError:
		return ChargeResult{}, ErrSandboxUnavailable
	case TokenDecline:
		res = ChargeResult{TransactionID: "sb_ch_" + uuid.NewString(), FailureReason: "card declined"}
	default:
		res = ChargeResult{TransactionID: "sb_ch_" + uuid.NewString(), Success: true}
	}
	s.charges[req.IdempotencyKey] = res
	s.byID[req.PaymentID] = res
	return res, nil
}

func (s *SandboxProcessor) RefundPayment(ctx context.Context, p domain.Payment) (RefundResult, error) {
	if err := ctx.Err(); err != nil {
		return RefundResult{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := refundKey(p.ID)
	if res, ok := s.refunds[key]; ok {
		return res, nil
	}
	charge, ok := s.byID[p.ID]
	if !ok || !charge.Success || charge.TransactionID != p.TransactionID {
		return RefundResult{}, errors.New("no successful charge for payment " + p.ID)
	}
	res := RefundResult{RefundID: "sb_re_" + uuid.NewString()}
	s.refunds[key] = res
	return res, nil
}

func (s *SandboxProcessor) Lookup(ctx context.Context, paymentID string) (ChargeResult, bool, error) {
	if err := ctx.Err(); err != nil {
		return ChargeResult{}, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	res, ok := s.byID[paymentID]
	return res, ok, nil
}
