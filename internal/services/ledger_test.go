package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"coopledger/internal/core"
)

var ledgerTestDate = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

func newTestLedger(store *fakeStore) *LedgerService {
	svc := NewLedgerService(store, store, NewKeyedMutex(), "coop-1", testLogger())
	svc.now = fixedClock(ledgerTestDate)
	svc.newID = sequentialIDs("tx")
	return svc
}

func testExpense(amount int64, category string, status core.TransactionStatus) core.FinancialTransaction {
	return core.FinancialTransaction{
		Kind:          core.Expense,
		Category:      category,
		Description:   "Fertilizer purchase",
		Amount:        core.Money{Units: amount},
		Date:          ledgerTestDate,
		Status:        status,
		PaymentMethod: core.Cash,
		CreatedBy:     "treasurer",
	}
}

func seedBudget(store *fakeStore, id, category string, allocated int64) {
	store.budgets[id] = core.Budget{
		ID:        id,
		Category:  category,
		Allocated: core.Money{Units: allocated},
		Period:    core.BudgetMonthly,
		StartDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
		Status:    core.BudgetActive,
	}
}

func TestCreateTransactionDefaultsPending(t *testing.T) {
	store := newFakeStore()
	svc := newTestLedger(store)

	in := testExpense(5000, "inputs", "")
	tx, err := svc.CreateTransaction(context.Background(), in)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if tx.Status != core.TransactionPending {
		t.Errorf("status = %s, want pending", tx.Status)
	}
	if tx.ID == "" {
		t.Error("id was not assigned")
	}
	if !tx.CreatedAt.Equal(ledgerTestDate) || !tx.UpdatedAt.Equal(ledgerTestDate) {
		t.Errorf("timestamps = %v / %v, want %v", tx.CreatedAt, tx.UpdatedAt, ledgerTestDate)
	}
}

func TestCreateTransactionValidation(t *testing.T) {
	store := newFakeStore()
	svc := newTestLedger(store)

	bad := testExpense(5000, "inputs", core.TransactionPending)
	bad.Description = "ab"
	if _, err := svc.CreateTransaction(context.Background(), bad); !errors.Is(err, core.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
	if len(store.transactions) != 0 {
		t.Error("invalid transaction must not be stored")
	}
}

func TestCompletedExpenseCountsAgainstBudget(t *testing.T) {
	store := newFakeStore()
	svc := newTestLedger(store)
	seedBudget(store, "b-1", "inputs", 100_000)

	if _, err := svc.CreateTransaction(context.Background(), testExpense(30_000, "inputs", core.TransactionCompleted)); err != nil {
		t.Fatalf("first expense: %v", err)
	}
	if got := store.budgets["b-1"].Spent.Units; got != 30_000 {
		t.Fatalf("spent = %d, want 30000", got)
	}
	if got := store.budgets["b-1"].Status; got != core.BudgetActive {
		t.Fatalf("status = %s, want active", got)
	}

	if _, err := svc.CreateTransaction(context.Background(), testExpense(80_000, "inputs", core.TransactionCompleted)); err != nil {
		t.Fatalf("second expense: %v", err)
	}
	if got := store.budgets["b-1"].Spent.Units; got != 110_000 {
		t.Errorf("spent = %d, want 110000", got)
	}
	if got := store.budgets["b-1"].Status; got != core.BudgetOverrun {
		t.Errorf("status = %s, want over_budget", got)
	}
}

func TestPendingExpenseDoesNotTouchBudget(t *testing.T) {
	store := newFakeStore()
	svc := newTestLedger(store)
	seedBudget(store, "b-1", "inputs", 100_000)

	if _, err := svc.CreateTransaction(context.Background(), testExpense(30_000, "inputs", core.TransactionPending)); err != nil {
		t.Fatalf("create: %v", err)
	}
	if got := store.budgets["b-1"].Spent.Units; got != 0 {
		t.Errorf("spent = %d, want 0", got)
	}
}

func TestCompletingExpenseAppliesBudgetSpend(t *testing.T) {
	store := newFakeStore()
	svc := newTestLedger(store)
	seedBudget(store, "b-1", "inputs", 100_000)

	tx, err := svc.CreateTransaction(context.Background(), testExpense(40_000, "inputs", core.TransactionPending))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	completed := core.TransactionCompleted
	if _, err := svc.UpdateTransaction(context.Background(), tx.ID, TransactionUpdate{Status: &completed}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if got := store.budgets["b-1"].Spent.Units; got != 40_000 {
		t.Errorf("spent = %d, want 40000", got)
	}
}

func TestCancellingCompletedExpenseRestoresBudget(t *testing.T) {
	store := newFakeStore()
	svc := newTestLedger(store)
	seedBudget(store, "b-1", "inputs", 100_000)

	tx, err := svc.CreateTransaction(context.Background(), testExpense(40_000, "inputs", core.TransactionCompleted))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	cancelled := core.TransactionCancelled
	if _, err := svc.UpdateTransaction(context.Background(), tx.ID, TransactionUpdate{Status: &cancelled}); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got := store.budgets["b-1"].Spent.Units; got != 0 {
		t.Errorf("spent = %d, want 0 after cancellation", got)
	}
}

func TestCancelledTransactionIsImmutable(t *testing.T) {
	store := newFakeStore()
	svc := newTestLedger(store)

	tx, err := svc.CreateTransaction(context.Background(), testExpense(5000, "inputs", core.TransactionPending))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	cancelled := core.TransactionCancelled
	if _, err := svc.UpdateTransaction(context.Background(), tx.ID, TransactionUpdate{Status: &cancelled}); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	notes := "late edit"
	if _, err := svc.UpdateTransaction(context.Background(), tx.ID, TransactionUpdate{Notes: &notes}); !errors.Is(err, core.ErrTransactionLocked) {
		t.Errorf("expected locked error, got %v", err)
	}
}

func TestDeleteTransactionOnlyPending(t *testing.T) {
	store := newFakeStore()
	svc := newTestLedger(store)
	ctx := context.Background()

	pending, err := svc.CreateTransaction(ctx, testExpense(5000, "inputs", core.TransactionPending))
	if err != nil {
		t.Fatalf("create pending: %v", err)
	}
	completed, err := svc.CreateTransaction(ctx, testExpense(5000, "inputs", core.TransactionCompleted))
	if err != nil {
		t.Fatalf("create completed: %v", err)
	}

	if err := svc.DeleteTransaction(ctx, completed.ID); !errors.Is(err, core.ErrNotPending) {
		t.Errorf("deleting completed: expected not-pending error, got %v", err)
	}
	if err := svc.DeleteTransaction(ctx, pending.ID); err != nil {
		t.Errorf("deleting pending: %v", err)
	}
	if _, err := svc.GetTransaction(ctx, pending.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("deleted transaction still readable: %v", err)
	}
}

func TestExportCSV(t *testing.T) {
	store := newFakeStore()
	svc := newTestLedger(store)
	ctx := context.Background()

	first := testExpense(30_000, "inputs", core.TransactionCompleted)
	first.Description = "Seeds, fertilizer\nand tools"
	if _, err := svc.CreateTransaction(ctx, first); err != nil {
		t.Fatalf("create first: %v", err)
	}
	second := testExpense(12_500, "transport", core.TransactionCompleted)
	second.Kind = core.Income
	second.Description = "Grain delivery payment"
	second.Date = ledgerTestDate.AddDate(0, 0, 1)
	if _, err := svc.CreateTransaction(ctx, second); err != nil {
		t.Fatalf("create second: %v", err)
	}

	var out strings.Builder
	if err := svc.ExportCSV(ctx, &out, core.TransactionFilter{}); err != nil {
		t.Fatalf("export: %v", err)
	}

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want header plus 2 rows", len(lines))
	}
	if lines[0] != "ID,Type,Category,Description,Amount,Date,Reference,Status,PaymentMethod,CreatedBy,Notes" {
		t.Errorf("unexpected header: %s", lines[0])
	}
	for i, line := range lines {
		if got := len(strings.Split(line, ",")); got != 11 {
			t.Errorf("line %d has %d fields, want 11: %s", i, got, line)
		}
	}
	if !strings.Contains(lines[1], "Seeds  fertilizer and tools") {
		t.Errorf("description was not sanitized: %s", lines[1])
	}
	if !strings.Contains(lines[1], "30000") || !strings.Contains(lines[1], "2024-03-15") {
		t.Errorf("amount or date missing from row: %s", lines[1])
	}
}
