package core

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	PaymentPending       CollectivePaymentStatus = "pending"
	PaymentReceived      CollectivePaymentStatus = "received"
	PaymentRedistributed CollectivePaymentStatus = "redistributed"
	PaymentFailed        CollectivePaymentStatus = "failed"
)

const (
	DistributionPending   DistributionStatus = "pending"
	DistributionCompleted DistributionStatus = "completed"
	DistributionFailed    DistributionStatus = "failed"
)

// percentageTolerance is how far the contribution percentages may drift
// from 100 before the list is rejected.
var percentageTolerance = decimal.NewFromFloat(0.01)

type (
	CollectivePaymentStatus string
	DistributionStatus      string

	// LineItem is one product line of a pooled sale.
	LineItem struct {
		Product   string
		Quantity  decimal.Decimal
		UnitPrice Money
		Total     Money
	}

	// CollectivePayment is a bulk payment received from a buyer for
	// pooled produce. Redistributed is terminal and immutable; failed is
	// recoverable by re-processing the remaining distributions.
	CollectivePayment struct {
		ID              string
		CooperativeID   string
		Amount          Money
		Currency        string
		PaymentMethod   PaymentMethod
		Status          CollectivePaymentStatus
		ReceivedAt      time.Time
		RedistributedAt *time.Time
		ConfirmedAt     *time.Time
		ConfirmedBy     string
		SaleID          string
		Items           []LineItem
		Buyer           string
		InvoiceNumber   string
	}

	// Contribution is one member's share of the pooled quantity,
	// supplied by the external pooling aggregate.
	Contribution struct {
		MemberID   string
		MemberName string
		ProductID  string
		Quantity   decimal.Decimal
		Percentage decimal.Decimal
	}

	// MemberDistribution is one member's cut of a collective payment,
	// net of the payment-method fee. Per-member status makes partial
	// failure and safe retries possible.
	MemberDistribution struct {
		MemberID      string
		MemberName    string
		Contribution  Contribution
		Gross         Money
		Fee           Money
		Net           Money
		Status        DistributionStatus
		PaidAt        *time.Time
		ReceiptRef    string
		FailureReason string
	}
)

func (s CollectivePaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentReceived, PaymentRedistributed, PaymentFailed:
		return true
	}
	return false
}

func (p CollectivePayment) Validate() error {
	if strings.TrimSpace(p.CooperativeID) == "" {
		return ErrEmptyCategory
	}
	if err := p.Amount.Validate(); err != nil {
		return err
	}
	if !p.PaymentMethod.Valid() {
		return ErrUnknownMethod
	}
	if !p.Status.Valid() {
		return ErrUnknownStatus
	}
	return nil
}

// Confirmed reports whether an operator has confirmed the distribution
// plan for this payment.
func (p CollectivePayment) Confirmed() bool {
	return p.ConfirmedAt != nil
}

// ValidatePaymentTransition enforces the collective payment state
// machine: pending -> received -> redistributed | failed. A failed
// payment may still become redistributed once the remaining
// distributions are re-processed successfully.
func ValidatePaymentTransition(from, to CollectivePaymentStatus) error {
	ok := (from == PaymentPending && to == PaymentReceived) ||
		(from == PaymentReceived && to == PaymentRedistributed) ||
		(from == PaymentReceived && to == PaymentFailed) ||
		(from == PaymentFailed && to == PaymentRedistributed) ||
		(from == PaymentFailed && to == PaymentFailed)
	if !ok {
		return &TransitionError{Entity: "collective payment", From: string(from), To: string(to)}
	}
	return nil
}

// ValidateContributions checks the precondition the rest of the payment
// math relies on: a non-empty list of positive percentages summing to
// 100 within tolerance. It is checked once at the review boundary so
// downstream arithmetic can assume it holds.
func ValidateContributions(contributions []Contribution) error {
	if len(contributions) == 0 {
		return ErrNoContributions
	}
	sum := decimal.Zero
	for _, c := range contributions {
		if strings.TrimSpace(c.MemberID) == "" {
			return ErrNoContributions
		}
		if !c.Percentage.IsPositive() {
			return ErrInvalidPercentage
		}
		sum = sum.Add(c.Percentage)
	}
	if sum.Sub(decimal.NewFromInt(100)).Abs().GreaterThan(percentageTolerance) {
		return ErrPercentagesSum
	}
	return nil
}

// BuildDistributionPlan splits a collective payment across its
// contributing members. Each member's gross is the payment amount times
// their percentage, rounded half-up to minor units; the fee is the gross
// times feeRate, rounded the same way; net is gross minus fee. The last
// member absorbs the rounding remainder so the grosses sum exactly to
// the payment amount, which also makes the total net equal the payment
// amount minus the total fee.
//
// The computation is pure and idempotent: the same payment and
// contributions always produce the same plan. A plan that fails to
// reconcile aborts with ErrConsistency before any payout is dispatched.
func BuildDistributionPlan(p CollectivePayment, contributions []Contribution, feeRate decimal.Decimal) ([]MemberDistribution, error) {
	if err := p.Amount.Validate(); err != nil {
		return nil, err
	}
	if feeRate.IsNegative() {
		return nil, ErrNegativeRate
	}
	if err := ValidateContributions(contributions); err != nil {
		return nil, err
	}

	hundred := decimal.NewFromInt(100)
	plan := make([]MemberDistribution, len(contributions))
	var grossSum int64
	for i, c := range contributions {
		var gross int64
		if i == len(contributions)-1 {
			gross = p.Amount.Units - grossSum
		} else {
			gross = roundToUnits(p.Amount.Decimal().Mul(c.Percentage).Div(hundred))
		}
		if gross <= 0 {
			return nil, ErrConsistency
		}
		fee := roundToUnits(decimal.NewFromInt(gross).Mul(feeRate))
		plan[i] = MemberDistribution{
			MemberID:     c.MemberID,
			MemberName:   c.MemberName,
			Contribution: c,
			Gross:        Money{Units: gross},
			Fee:          Money{Units: fee},
			Net:          Money{Units: gross - fee},
			Status:       DistributionPending,
		}
		grossSum += gross
	}

	if err := ReconcilePlan(p.Amount, plan); err != nil {
		return nil, err
	}
	return plan, nil
}

// ReconcilePlan verifies that a distribution plan accounts for every
// minor unit of the payment: grosses sum to the amount and each net plus
// fee equals its gross.
func ReconcilePlan(amount Money, plan []MemberDistribution) error {
	var grossSum, feeSum, netSum int64
	for _, d := range plan {
		if d.Net.Units+d.Fee.Units != d.Gross.Units {
			return ErrConsistency
		}
		grossSum += d.Gross.Units
		feeSum += d.Fee.Units
		netSum += d.Net.Units
	}
	if grossSum != amount.Units || netSum != amount.Units-feeSum {
		return ErrConsistency
	}
	return nil
}
