package core

// CategoryAmount is an amount aggregated under one category name.
type CategoryAmount struct {
	Name   string
	Amount Money
}

// FinancialSummary is the cooperative-wide snapshot of completed
// transactions, budgets, subsidies and outstanding credit.
type FinancialSummary struct {
	TotalIncome          Money
	TotalExpenses        Money
	Net                  Money
	BudgetAllocated      Money
	BudgetSpent          Money
	ApprovedSubsidies    Money
	OutstandingPrincipal Money
}

// MonthlyReport aggregates completed transactions whose date falls in
// one calendar month, with a per-category breakdown for each kind.
type MonthlyReport struct {
	Year              int
	Month             int // 1-12
	Income            Money
	Expenses          Money
	Net               Money
	IncomeByCategory  []CategoryAmount
	ExpenseByCategory []CategoryAmount
}
