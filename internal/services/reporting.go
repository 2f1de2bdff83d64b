package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"coopledger/internal/core"
)

// ReportingService aggregates the ledger into summaries and monthly
// reports. Only completed transactions count; pending and cancelled
// entries are invisible here.
type ReportingService struct {
	transactions TransactionStore
	budgets      BudgetStore
	subsidies    SubsidyStore
	credits      CreditStore
}

func NewReportingService(transactions TransactionStore, budgets BudgetStore, subsidies SubsidyStore, credits CreditStore) *ReportingService {
	return &ReportingService{
		transactions: transactions,
		budgets:      budgets,
		subsidies:    subsidies,
		credits:      credits,
	}
}

// FinancialSummary computes the cooperative-wide snapshot: completed
// income and expenses, budget totals, approved-but-undisbursed
// subsidies and the principal still out on disbursed credits.
func (s *ReportingService) FinancialSummary(ctx context.Context) (core.FinancialSummary, error) {
	list, err := s.transactions.ListTransactions(ctx, core.TransactionFilter{Status: core.TransactionCompleted})
	if err != nil {
		return core.FinancialSummary{}, err
	}

	var summary core.FinancialSummary
	for _, tx := range list {
		switch tx.Kind {
		case core.Income:
			summary.TotalIncome.Units += tx.Amount.Units
		case core.Expense:
			summary.TotalExpenses.Units += tx.Amount.Units
		}
	}
	summary.Net.Units = summary.TotalIncome.Units - summary.TotalExpenses.Units

	budgets, err := s.budgets.ListBudgets(ctx)
	if err != nil {
		return core.FinancialSummary{}, err
	}
	for _, b := range budgets {
		summary.BudgetAllocated.Units += b.Allocated.Units
		summary.BudgetSpent.Units += b.Spent.Units
	}

	subsidies, err := s.subsidies.ListSubsidies(ctx)
	if err != nil {
		return core.FinancialSummary{}, err
	}
	for _, sub := range subsidies {
		if sub.Status == core.SubsidyApproved {
			summary.ApprovedSubsidies.Units += sub.Amount.Units
		}
	}

	credits, err := s.credits.ListCredits(ctx)
	if err != nil {
		return core.FinancialSummary{}, err
	}
	for _, c := range credits {
		summary.OutstandingPrincipal.Units += c.OutstandingPrincipal()
	}

	return summary, nil
}

// MonthlyReport aggregates completed transactions dated inside one
// calendar month, broken down by category per kind. Categories are
// sorted by name so the report is stable.
func (s *ReportingService) MonthlyReport(ctx context.Context, year, month int) (core.MonthlyReport, error) {
	if month < 1 || month > 12 {
		return core.MonthlyReport{}, fmt.Errorf("%w: month %d out of range", core.ErrValidation, month)
	}

	from := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)
	list, err := s.transactions.ListTransactions(ctx, core.TransactionFilter{
		Status: core.TransactionCompleted,
		From:   from,
		To:     to,
	})
	if err != nil {
		return core.MonthlyReport{}, err
	}

	report := core.MonthlyReport{Year: year, Month: month}
	incomeByCategory := make(map[string]int64)
	expenseByCategory := make(map[string]int64)
	for _, tx := range list {
		switch tx.Kind {
		case core.Income:
			report.Income.Units += tx.Amount.Units
			incomeByCategory[tx.Category] += tx.Amount.Units
		case core.Expense:
			report.Expenses.Units += tx.Amount.Units
			expenseByCategory[tx.Category] += tx.Amount.Units
		}
	}
	report.Net.Units = report.Income.Units - report.Expenses.Units
	report.IncomeByCategory = sortedCategories(incomeByCategory)
	report.ExpenseByCategory = sortedCategories(expenseByCategory)
	return report, nil
}

func sortedCategories(byCategory map[string]int64) []core.CategoryAmount {
	out := make([]core.CategoryAmount, 0, len(byCategory))
	for name, units := range byCategory {
		out = append(out, core.CategoryAmount{Name: name, Amount: core.Money{Units: units}})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
