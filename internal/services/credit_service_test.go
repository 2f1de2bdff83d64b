package services

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"coopledger/internal/core"
)

func newTestCredits(store *fakeStore) (*CreditService, *LedgerService) {
	ledger := newTestLedger(store)
	svc := NewCreditService(store, ledger, testLogger())
	svc.now = fixedClock(ledgerTestDate)
	svc.newID = sequentialIDs("cr")
	return svc, ledger
}

func interestFreeCredit(amount int64, months int) CreateCreditParams {
	return CreateCreditParams{
		MemberID:       "m-1",
		Amount:         core.Money{Units: amount},
		InterestRate:   decimal.Zero,
		DurationMonths: months,
		Purpose:        "seed purchase",
	}
}

func TestCreateCreditBuildsSchedule(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestCredits(store)

	credit, err := svc.CreateCredit(context.Background(), interestFreeCredit(100_000, 10))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(credit.Schedule) != 10 {
		t.Fatalf("schedule length = %d, want 10", len(credit.Schedule))
	}
	if credit.Status != core.CreditApplied {
		t.Errorf("status = %s, want applied", credit.Status)
	}
	if want := ledgerTestDate.AddDate(0, 10, 0); !credit.DueDate.Equal(want) {
		t.Errorf("due date = %v, want %v", credit.DueDate, want)
	}
	for i, in := range credit.Schedule {
		if in.Amount.Units != 10_000 {
			t.Errorf("installment %d = %d, want 10000", i, in.Amount.Units)
		}
	}
}

func TestCreateCreditValidation(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestCredits(store)

	params := interestFreeCredit(100_000, 0)
	if _, err := svc.CreateCredit(context.Background(), params); !errors.Is(err, core.ErrValidation) {
		t.Errorf("zero duration: expected validation error, got %v", err)
	}

	params = interestFreeCredit(-5, 10)
	if _, err := svc.CreateCredit(context.Background(), params); !errors.Is(err, core.ErrValidation) {
		t.Errorf("negative amount: expected validation error, got %v", err)
	}
}

func TestDisburseRecordsLedgerExpense(t *testing.T) {
	store := newFakeStore()
	svc, ledger := newTestCredits(store)
	ctx := context.Background()

	credit, err := svc.CreateCredit(ctx, interestFreeCredit(100_000, 10))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Approve(ctx, credit.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}
	got, err := svc.Disburse(ctx, credit.ID, core.BankTransfer, "treasurer")
	if err != nil {
		t.Fatalf("disburse: %v", err)
	}
	if got.DisbursementDate == nil {
		t.Error("disbursement date was not stamped")
	}

	txs, err := ledger.ListTransactions(ctx, core.TransactionFilter{Category: CategoryCreditDisbursement})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(txs) != 1 {
		t.Fatalf("got %d disbursement entries, want 1", len(txs))
	}
	tx := txs[0]
	if tx.Kind != core.Expense || tx.Amount.Units != 100_000 || tx.Status != core.TransactionCompleted {
		t.Errorf("unexpected ledger entry: %+v", tx)
	}
	if tx.Reference != credit.ID || tx.MemberID != "m-1" {
		t.Errorf("entry not linked to credit: ref=%s member=%s", tx.Reference, tx.MemberID)
	}
}

func TestDisburseRequiresApproval(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestCredits(store)
	ctx := context.Background()

	credit, err := svc.CreateCredit(ctx, interestFreeCredit(100_000, 10))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Disburse(ctx, credit.ID, core.Cash, "treasurer"); !errors.Is(err, core.ErrInvalidTransition) {
		t.Errorf("expected transition error, got %v", err)
	}
}

func TestRepaymentLifecycle(t *testing.T) {
	store := newFakeStore()
	svc, ledger := newTestCredits(store)
	ctx := context.Background()

	credit, err := svc.CreateCredit(ctx, interestFreeCredit(30_000, 3))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Approve(ctx, credit.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := svc.Disburse(ctx, credit.ID, core.Cash, "treasurer"); err != nil {
		t.Fatalf("disburse: %v", err)
	}

	for i := 0; i < 3; i++ {
		credit, err = svc.RecordRepayment(ctx, credit.ID, i, core.Cash, "treasurer")
		if err != nil {
			t.Fatalf("repayment %d: %v", i, err)
		}
	}
	if credit.Status != core.CreditRepaid {
		t.Errorf("status = %s, want repaid after final installment", credit.Status)
	}

	txs, err := ledger.ListTransactions(ctx, core.TransactionFilter{Category: CategoryCreditRepayment})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(txs) != 3 {
		t.Errorf("got %d repayment entries, want 3", len(txs))
	}
	for _, tx := range txs {
		if tx.Kind != core.Income || tx.Amount.Units != 10_000 {
			t.Errorf("unexpected repayment entry: %+v", tx)
		}
	}
}

func TestRepaymentIdempotent(t *testing.T) {
	store := newFakeStore()
	svc, ledger := newTestCredits(store)
	ctx := context.Background()

	credit, err := svc.CreateCredit(ctx, interestFreeCredit(30_000, 3))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Approve(ctx, credit.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := svc.Disburse(ctx, credit.ID, core.Cash, "treasurer"); err != nil {
		t.Fatalf("disburse: %v", err)
	}

	if _, err := svc.RecordRepayment(ctx, credit.ID, 0, core.Cash, "treasurer"); err != nil {
		t.Fatalf("first repayment: %v", err)
	}
	if _, err := svc.RecordRepayment(ctx, credit.ID, 0, core.Cash, "treasurer"); err != nil {
		t.Fatalf("repeated repayment: %v", err)
	}

	txs, err := ledger.ListTransactions(ctx, core.TransactionFilter{Category: CategoryCreditRepayment})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(txs) != 1 {
		t.Errorf("got %d repayment entries, want 1: re-marking must not double-book", len(txs))
	}
}

func TestRepaymentRequiresDisbursement(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestCredits(store)
	ctx := context.Background()

	credit, err := svc.CreateCredit(ctx, interestFreeCredit(30_000, 3))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.RecordRepayment(ctx, credit.ID, 0, core.Cash, "treasurer"); !errors.Is(err, core.ErrInvalidTransition) {
		t.Errorf("expected transition error, got %v", err)
	}
}

func TestMarkDefaulted(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestCredits(store)
	ctx := context.Background()

	credit, err := svc.CreateCredit(ctx, interestFreeCredit(30_000, 3))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := svc.MarkDefaulted(ctx, credit.ID)
	if err != nil {
		t.Fatalf("default from applied: %v", err)
	}
	if got.Status != core.CreditDefaulted {
		t.Errorf("status = %s, want defaulted", got.Status)
	}
	if _, err := svc.MarkDefaulted(ctx, credit.ID); !errors.Is(err, core.ErrInvalidTransition) {
		t.Errorf("defaulting twice: expected transition error, got %v", err)
	}
}
