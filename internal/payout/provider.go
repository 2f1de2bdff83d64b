// Package payout defines the boundary to the external payout provider
// (mobile money, bank transfer). The provider contract is idempotent per
// (payment, member): submitting the same payout twice never disburses
// twice.
package payout

import (
	"context"
	"fmt"

	"coopledger/internal/core"
)

// Request identifies one member payout. PaymentID plus MemberID is the
// idempotency key.
type Request struct {
	PaymentID    string
	MemberID     string
	Amount       core.Money
	Method       core.PaymentMethod
	RecipientRef string
}

// Result is the provider's acknowledgement of a successful payout.
type Result struct {
	ProviderTransactionID string
}

// Provider submits payouts to the external money-transfer gateway.
// Implementations must return an error wrapping core.ErrProvider on
// failure and must honor context cancellation and deadlines.
type Provider interface {
	SubmitPayout(ctx context.Context, req Request) (Result, error)
}

// Errorf builds a provider error with the standard classification.
func Errorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", core.ErrProvider, fmt.Sprintf(format, args...))
}
