// Package services implements the cooperative finance operations on top
// of the storage layer: ledger writes, budget tracking, credit and
// subsidy lifecycles, collective payment redistribution and reporting.
package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"coopledger/internal/core"
)

// Clock supplies the current time; injected so tests control timestamps.
type Clock func() time.Time

// IDGenerator mints entity ids.
type IDGenerator func() string

// NewUUID is the production IDGenerator.
func NewUUID() string { return uuid.NewString() }

// TransactionStore is the ledger persistence the services need.
type TransactionStore interface {
	CreateTransaction(ctx context.Context, tx core.FinancialTransaction) error
	GetTransaction(ctx context.Context, id string) (core.FinancialTransaction, error)
	UpdateTransaction(ctx context.Context, tx core.FinancialTransaction) error
	DeleteTransaction(ctx context.Context, id string) error
	ListTransactions(ctx context.Context, filter core.TransactionFilter) ([]core.FinancialTransaction, error)
}

// BudgetStore is the budget persistence the services need.
type BudgetStore interface {
	CreateBudget(ctx context.Context, b core.Budget) error
	GetBudget(ctx context.Context, id string) (core.Budget, error)
	FindBudgetForExpense(ctx context.Context, category string, date time.Time) (core.Budget, bool, error)
	UpdateBudget(ctx context.Context, b core.Budget) error
	ListBudgets(ctx context.Context) ([]core.Budget, error)
}

// CreditStore is the credit persistence the services need.
type CreditStore interface {
	CreateCredit(ctx context.Context, c core.Credit) error
	GetCredit(ctx context.Context, id string) (core.Credit, error)
	UpdateCredit(ctx context.Context, c core.Credit) error
	ListCredits(ctx context.Context) ([]core.Credit, error)
}

// SubsidyStore is the subsidy persistence the services need.
type SubsidyStore interface {
	CreateSubsidy(ctx context.Context, s core.Subsidy) error
	GetSubsidy(ctx context.Context, id string) (core.Subsidy, error)
	UpdateSubsidy(ctx context.Context, s core.Subsidy) error
	ListSubsidies(ctx context.Context) ([]core.Subsidy, error)
}

// PaymentStore is the collective payment persistence the services need.
type PaymentStore interface {
	CreatePayment(ctx context.Context, p core.CollectivePayment) error
	GetPayment(ctx context.Context, id string) (core.CollectivePayment, error)
	UpdatePayment(ctx context.Context, p core.CollectivePayment) error
	ListPaymentsByStatus(ctx context.Context, statuses ...core.CollectivePaymentStatus) ([]core.CollectivePayment, error)
	ReplaceDistributions(ctx context.Context, paymentID string, plan []core.MemberDistribution) error
	UpdateDistribution(ctx context.Context, paymentID string, d core.MemberDistribution) error
	ListDistributions(ctx context.Context, paymentID string) ([]core.MemberDistribution, error)
}
