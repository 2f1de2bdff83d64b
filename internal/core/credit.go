package core

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	CreditApplied   CreditStatus = "applied"
	CreditApproved  CreditStatus = "approved"
	CreditDisbursed CreditStatus = "disbursed"
	CreditRepaid    CreditStatus = "repaid"
	CreditDefaulted CreditStatus = "defaulted"
)

const (
	InstallmentPending InstallmentStatus = "pending"
	InstallmentPaid    InstallmentStatus = "paid"
	InstallmentOverdue InstallmentStatus = "overdue"
)

type (
	CreditStatus      string
	InstallmentStatus string

	// Installment is one scheduled repayment of a credit.
	Installment struct {
		DueDate time.Time
		Amount  Money
		Status  InstallmentStatus
	}

	// Credit is a member loan with an amortized repayment schedule. The
	// schedule is generated once at creation and never regenerated; its
	// length always equals the duration in months.
	Credit struct {
		ID               string
		MemberID         string
		Amount           Money
		InterestRate     decimal.Decimal // annual percent
		Duration         int             // months
		Purpose          string
		ApplicationDate  time.Time
		ApprovalDate     *time.Time
		DisbursementDate *time.Time
		DueDate          time.Time
		Status           CreditStatus
		Guarantors       []string
		Collateral       string
		Schedule         []Installment
	}
)

func (s CreditStatus) Valid() bool {
	switch s {
	case CreditApplied, CreditApproved, CreditDisbursed, CreditRepaid, CreditDefaulted:
		return true
	}
	return false
}

func (c Credit) Validate() error {
	if strings.TrimSpace(c.MemberID) == "" {
		return ErrEmptyCategory
	}
	if err := c.Amount.Validate(); err != nil {
		return err
	}
	if c.InterestRate.IsNegative() {
		return ErrNegativeRate
	}
	if c.Duration < 1 {
		return ErrInvalidDuration
	}
	if c.ApplicationDate.IsZero() {
		return ErrZeroDate
	}
	return nil
}

// BuildRepaymentSchedule generates the amortized schedule for a loan:
// duration equal installments due on successive month boundaries from the
// application date.
//
// With a positive rate the standard annuity formula applies, with the
// monthly rate r = annualRatePct/100/12:
//
//	installment = principal * r(1+r)^n / ((1+r)^n - 1)
//
// rounded half-up to minor units, the same amount for every installment.
// An interest-free loan divides the principal evenly instead, with the
// final installment absorbing the remainder so the schedule sums exactly
// to the principal.
func BuildRepaymentSchedule(principal Money, annualRatePct decimal.Decimal, duration int, start time.Time) ([]Installment, error) {
	if err := principal.Validate(); err != nil {
		return nil, err
	}
	if duration < 1 {
		return nil, ErrInvalidDuration
	}
	if annualRatePct.IsNegative() {
		return nil, ErrNegativeRate
	}

	schedule := make([]Installment, duration)
	for i := range schedule {
		schedule[i].DueDate = start.AddDate(0, i+1, 0)
		schedule[i].Status = InstallmentPending
	}

	if annualRatePct.IsZero() {
		base := principal.Units / int64(duration)
		for i := range schedule {
			schedule[i].Amount = Money{Units: base}
		}
		// Last installment closes the integer-division remainder.
		schedule[duration-1].Amount = Money{Units: principal.Units - base*int64(duration-1)}
		return schedule, nil
	}

	monthlyRate := annualRatePct.Div(decimal.NewFromInt(100)).Div(decimal.NewFromInt(12))
	growth := decimal.NewFromInt(1).Add(monthlyRate).Pow(decimal.NewFromInt(int64(duration)))
	installment := principal.Decimal().
		Mul(monthlyRate).
		Mul(growth).
		Div(growth.Sub(decimal.NewFromInt(1)))
	amount := Money{Units: roundToUnits(installment)}
	for i := range schedule {
		schedule[i].Amount = amount
	}
	return schedule, nil
}

// ValidateCreditTransition enforces the forward-only credit lifecycle:
// applied -> approved -> disbursed -> repaid, one step at a time, plus
// default from any non-repaid state.
func ValidateCreditTransition(from, to CreditStatus) error {
	if to == CreditDefaulted {
		if from == CreditRepaid || from == CreditDefaulted {
			return &TransitionError{Entity: "credit", From: string(from), To: string(to)}
		}
		return nil
	}
	allowed := map[CreditStatus]CreditStatus{
		CreditApplied:   CreditApproved,
		CreditApproved:  CreditDisbursed,
		CreditDisbursed: CreditRepaid,
	}
	if next, ok := allowed[from]; ok && next == to {
		return nil
	}
	return &TransitionError{Entity: "credit", From: string(from), To: string(to)}
}

// ApplyRepayment marks one installment paid. Re-marking a paid
// installment is a no-op, not an error. The credit becomes repaid exactly
// when every installment is paid; the returned flag reports whether
// anything changed.
func ApplyRepayment(c *Credit, index int) (bool, error) {
	if index < 0 || index >= len(c.Schedule) {
		return false, ErrInstallmentIndex
	}
	if c.Schedule[index].Status == InstallmentPaid {
		return false, nil
	}
	c.Schedule[index].Status = InstallmentPaid
	if c.allInstallmentsPaid() {
		c.Status = CreditRepaid
	}
	return true, nil
}

func (c *Credit) allInstallmentsPaid() bool {
	for _, in := range c.Schedule {
		if in.Status != InstallmentPaid {
			return false
		}
	}
	return len(c.Schedule) > 0
}

// OutstandingPrincipal is the principal still owed on a disbursed credit,
// approximated as the unpaid share of the schedule scaled to principal.
func (c Credit) OutstandingPrincipal() int64 {
	if c.Status != CreditDisbursed {
		return 0
	}
	unpaid := 0
	for _, in := range c.Schedule {
		if in.Status != InstallmentPaid {
			unpaid++
		}
	}
	if len(c.Schedule) == 0 {
		return c.Amount.Units
	}
	return c.Amount.Units * int64(unpaid) / int64(len(c.Schedule))
}
