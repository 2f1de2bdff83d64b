package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"coopledger/internal/core"
)

const budgetColumns = `id, category, description, allocated, spent, period, start_date, end_date, status`

func (r *SQLiteRepository) CreateBudget(ctx context.Context, b core.Budget) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO budgets (`+budgetColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.Category, b.Description, b.Allocated.Units, b.Spent.Units,
		string(b.Period), b.StartDate, b.EndDate, string(b.Status))
	if err != nil {
		return fmt.Errorf("insert budget: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetBudget(ctx context.Context, id string) (core.Budget, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+budgetColumns+` FROM budgets WHERE id = ?`, id)
	b, err := scanBudget(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Budget{}, fmt.Errorf("budget %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Budget{}, fmt.Errorf("get budget: %w", err)
	}
	return b, nil
}

// FindBudgetForExpense returns the budget whose category matches an
// expense dated within its period, if any. Spending outside any budget
// is allowed; the caller treats sql-no-rows as "no envelope".
func (r *SQLiteRepository) FindBudgetForExpense(ctx context.Context, category string, date time.Time) (core.Budget, bool, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+budgetColumns+` FROM budgets
		WHERE category = ? AND start_date <= ? AND end_date >= ?
		ORDER BY start_date DESC LIMIT 1`,
		category, date, date)
	b, err := scanBudget(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Budget{}, false, nil
	}
	if err != nil {
		return core.Budget{}, false, fmt.Errorf("find budget for expense: %w", err)
	}
	return b, true, nil
}

func (r *SQLiteRepository) UpdateBudget(ctx context.Context, b core.Budget) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE budgets
		SET category = ?, description = ?, allocated = ?, spent = ?, period = ?,
			start_date = ?, end_date = ?, status = ?
		WHERE id = ?`,
		b.Category, b.Description, b.Allocated.Units, b.Spent.Units, string(b.Period),
		b.StartDate, b.EndDate, string(b.Status), b.ID)
	if err != nil {
		return fmt.Errorf("update budget: %w", err)
	}
	return requireRow(res, "budget", b.ID)
}

func (r *SQLiteRepository) ListBudgets(ctx context.Context) ([]core.Budget, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+budgetColumns+` FROM budgets ORDER BY start_date`)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	var out []core.Budget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func scanBudget(row rowScanner) (core.Budget, error) {
	var b core.Budget
	var period, status string
	err := row.Scan(&b.ID, &b.Category, &b.Description, &b.Allocated.Units, &b.Spent.Units,
		&period, &b.StartDate, &b.EndDate, &status)
	if err != nil {
		return core.Budget{}, err
	}
	b.Period = core.BudgetPeriod(period)
	b.Status = core.BudgetStatus(status)
	return b, nil
}
