package http

import (
	"net/http"
	"strconv"

	"coopledger/internal/core"
)

type summaryResponse struct {
	TotalIncomeUnits          int64 `json:"total_income_units"`
	TotalExpensesUnits        int64 `json:"total_expenses_units"`
	NetUnits                  int64 `json:"net_units"`
	BudgetAllocatedUnits      int64 `json:"budget_allocated_units"`
	BudgetSpentUnits          int64 `json:"budget_spent_units"`
	ApprovedSubsidiesUnits    int64 `json:"approved_subsidies_units"`
	OutstandingPrincipalUnits int64 `json:"outstanding_principal_units"`
}

type categoryAmountResponse struct {
	Name        string `json:"name"`
	AmountUnits int64  `json:"amount_units"`
}

type monthlyReportResponse struct {
	Year              int                      `json:"year"`
	Month             int                      `json:"month"`
	IncomeUnits       int64                    `json:"income_units"`
	ExpensesUnits     int64                    `json:"expenses_units"`
	NetUnits          int64                    `json:"net_units"`
	IncomeByCategory  []categoryAmountResponse `json:"income_by_category"`
	ExpenseByCategory []categoryAmountResponse `json:"expense_by_category"`
}

func toCategoryAmounts(in []core.CategoryAmount) []categoryAmountResponse {
	out := make([]categoryAmountResponse, len(in))
	for i, c := range in {
		out[i] = categoryAmountResponse{Name: c.Name, AmountUnits: c.Amount.Units}
	}
	return out
}

func (s *Server) handleFinancialSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.services.Reports.FinancialSummary(r.Context())
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	s.json(w, http.StatusOK, summaryResponse{
		TotalIncomeUnits:          summary.TotalIncome.Units,
		TotalExpensesUnits:        summary.TotalExpenses.Units,
		NetUnits:                  summary.Net.Units,
		BudgetAllocatedUnits:      summary.BudgetAllocated.Units,
		BudgetSpentUnits:          summary.BudgetSpent.Units,
		ApprovedSubsidiesUnits:    summary.ApprovedSubsidies.Units,
		OutstandingPrincipalUnits: summary.OutstandingPrincipal.Units,
	})
}

func (s *Server) handleMonthlyReport(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(r.URL.Query().Get("year"))
	if err != nil {
		s.error(w, r, http.StatusUnprocessableEntity, "year must be an integer")
		return
	}
	month, err := strconv.Atoi(r.URL.Query().Get("month"))
	if err != nil {
		s.error(w, r, http.StatusUnprocessableEntity, "month must be an integer")
		return
	}

	report, err := s.services.Reports.MonthlyReport(r.Context(), year, month)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	s.json(w, http.StatusOK, monthlyReportResponse{
		Year:              report.Year,
		Month:             report.Month,
		IncomeUnits:       report.Income.Units,
		ExpensesUnits:     report.Expenses.Units,
		NetUnits:          report.Net.Units,
		IncomeByCategory:  toCategoryAmounts(report.IncomeByCategory),
		ExpenseByCategory: toCategoryAmounts(report.ExpenseByCategory),
	})
}
