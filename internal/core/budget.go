package core

import (
	"strings"
	"time"
)

const (
	BudgetMonthly   BudgetPeriod = "monthly"
	BudgetQuarterly BudgetPeriod = "quarterly"
	BudgetYearly    BudgetPeriod = "yearly"
)

const (
	BudgetActive    BudgetStatus = "active"
	BudgetCompleted BudgetStatus = "completed"
	BudgetOverrun   BudgetStatus = "over_budget"
)

type (
	BudgetPeriod string
	BudgetStatus string

	// Budget is a spending envelope for one category over one period.
	// Status is derived from spend and dates, never set by callers.
	Budget struct {
		ID          string
		Category    string
		Description string
		Allocated   Money
		Spent       Money
		Period      BudgetPeriod
		StartDate   time.Time
		EndDate     time.Time
		Status      BudgetStatus
	}
)

func (p BudgetPeriod) Valid() bool {
	switch p {
	case BudgetMonthly, BudgetQuarterly, BudgetYearly:
		return true
	}
	return false
}

func (b Budget) Validate() error {
	if strings.TrimSpace(b.Category) == "" {
		return ErrEmptyCategory
	}
	if err := b.Allocated.Validate(); err != nil {
		return err
	}
	if b.Spent.Units < 0 {
		return ErrInvalidAmount
	}
	if !b.Period.Valid() {
		return ErrUnknownStatus
	}
	if b.StartDate.IsZero() || b.EndDate.IsZero() {
		return ErrZeroDate
	}
	if !b.EndDate.After(b.StartDate) {
		return ErrZeroDate
	}
	return nil
}

// DeriveBudgetStatus recomputes the budget status from its spend and
// period. Over-budget wins over completion so an overrun stays visible
// after the period closes.
func DeriveBudgetStatus(b Budget, now time.Time) BudgetStatus {
	if b.Spent.Units > b.Allocated.Units {
		return BudgetOverrun
	}
	if now.After(b.EndDate) {
		return BudgetCompleted
	}
	return BudgetActive
}

// Remaining is the unspent allocation in minor units. It goes negative
// when the budget is overrun; the value is reported as-is, not clamped.
func (b Budget) Remaining() int64 {
	return b.Allocated.Units - b.Spent.Units
}
