package services

import (
	"context"
	"time"

	"coopledger/internal/core"
)

// BudgetService manages spending envelopes. Spend is written only by
// the ledger when completed expenses move; callers here set allocations
// and periods. Status is derived, never accepted from callers.
type BudgetService struct {
	budgets BudgetStore
	now     Clock
	newID   IDGenerator
}

func NewBudgetService(budgets BudgetStore) *BudgetService {
	return &BudgetService{budgets: budgets, now: time.Now, newID: NewUUID}
}

func (s *BudgetService) CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	b.ID = s.newID()
	b.Spent = core.Money{}
	b.Status = core.BudgetActive
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}
	b.Status = core.DeriveBudgetStatus(b, s.now().UTC())
	if err := s.budgets.CreateBudget(ctx, b); err != nil {
		return core.Budget{}, err
	}
	return b, nil
}

// BudgetUpdate carries the caller-settable fields. Spent and status are
// never updated directly.
type BudgetUpdate struct {
	Description *string
	Allocated   *core.Money
	EndDate     *time.Time
}

func (s *BudgetService) UpdateBudget(ctx context.Context, id string, update BudgetUpdate) (core.Budget, error) {
	b, err := s.budgets.GetBudget(ctx, id)
	if err != nil {
		return core.Budget{}, err
	}
	if update.Description != nil {
		b.Description = *update.Description
	}
	if update.Allocated != nil {
		b.Allocated = *update.Allocated
	}
	if update.EndDate != nil {
		b.EndDate = *update.EndDate
	}
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}
	b.Status = core.DeriveBudgetStatus(b, s.now().UTC())
	if err := s.budgets.UpdateBudget(ctx, b); err != nil {
		return core.Budget{}, err
	}
	return b, nil
}

// GetBudget returns the budget with its status re-derived against the
// current time, so a budget whose period lapsed reads as completed even
// before any write touches it.
func (s *BudgetService) GetBudget(ctx context.Context, id string) (core.Budget, error) {
	b, err := s.budgets.GetBudget(ctx, id)
	if err != nil {
		return core.Budget{}, err
	}
	b.Status = core.DeriveBudgetStatus(b, s.now().UTC())
	return b, nil
}

func (s *BudgetService) ListBudgets(ctx context.Context) ([]core.Budget, error) {
	list, err := s.budgets.ListBudgets(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	for i := range list {
		list[i].Status = core.DeriveBudgetStatus(list[i], now)
	}
	return list, nil
}
