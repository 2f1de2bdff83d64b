package core

import (
	"errors"
	"fmt"
)

// Error taxonomy for the finance core. Every domain error wraps one of
// these sentinels so callers can classify failures with errors.Is without
// depending on message text.
var (
	// ErrValidation marks bad input shape or range.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidTransition marks an illegal lifecycle transition on a
	// credit, subsidy or collective payment.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrNotFound marks an unknown entity id.
	ErrNotFound = errors.New("not found")

	// ErrProvider marks a payout provider call that failed or timed out.
	ErrProvider = errors.New("payout provider error")

	// ErrConsistency marks a distribution plan that does not reconcile
	// with the payment amount. It is fatal to the computation and must
	// never be swallowed.
	ErrConsistency = errors.New("distribution does not reconcile")
)

// Fine-grained validation sentinels, all classified under ErrValidation.
var (
	ErrInvalidAmount      = fmt.Errorf("%w: amount must be positive", ErrValidation)
	ErrEmptyCategory      = fmt.Errorf("%w: category cannot be empty", ErrValidation)
	ErrShortDescription   = fmt.Errorf("%w: description must be at least 3 characters", ErrValidation)
	ErrZeroDate           = fmt.Errorf("%w: date cannot be zero", ErrValidation)
	ErrUnknownKind        = fmt.Errorf("%w: unknown transaction kind", ErrValidation)
	ErrUnknownStatus      = fmt.Errorf("%w: unknown status", ErrValidation)
	ErrUnknownMethod      = fmt.Errorf("%w: unknown payment method", ErrValidation)
	ErrInvalidDuration    = fmt.Errorf("%w: duration must be at least one month", ErrValidation)
	ErrNegativeRate       = fmt.Errorf("%w: interest rate cannot be negative", ErrValidation)
	ErrNoContributions    = fmt.Errorf("%w: contribution list cannot be empty", ErrValidation)
	ErrPercentagesSum     = fmt.Errorf("%w: contribution percentages must sum to 100", ErrValidation)
	ErrInvalidPercentage  = fmt.Errorf("%w: contribution percentage must be positive", ErrValidation)
	ErrTransactionLocked  = fmt.Errorf("%w: cancelled transactions are immutable", ErrValidation)
	ErrNotPending         = fmt.Errorf("%w: only pending transactions can be deleted", ErrValidation)
	ErrInstallmentIndex   = fmt.Errorf("%w: installment index out of range", ErrValidation)
	ErrPaymentNotReceived = fmt.Errorf("%w: payment is not in received state", ErrValidation)
)

// TransitionError reports an attempted lifecycle transition that the
// entity's state machine forbids.
type TransitionError struct {
	Entity string
	From   string
	To     string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s cannot move from %s to %s", ErrInvalidTransition, e.Entity, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }
