package core

import (
	"errors"
	"testing"
	"time"
)

func validTransaction() FinancialTransaction {
	return FinancialTransaction{
		ID:            "tx-1",
		Kind:          Expense,
		Category:      "inputs",
		Description:   "fertilizer for the north field",
		Amount:        Money{Units: 12_500},
		Date:          time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC),
		Status:        TransactionPending,
		PaymentMethod: Cash,
		CreatedBy:     "treasurer",
	}
}

func TestTransactionValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*FinancialTransaction)
		want   error
	}{
		{"valid", func(tx *FinancialTransaction) {}, nil},
		{"unknown kind", func(tx *FinancialTransaction) { tx.Kind = "transfer" }, ErrUnknownKind},
		{"empty category", func(tx *FinancialTransaction) { tx.Category = " " }, ErrEmptyCategory},
		{"short description", func(tx *FinancialTransaction) { tx.Description = "ab" }, ErrShortDescription},
		{"whitespace description", func(tx *FinancialTransaction) { tx.Description = "  a b  " }, ErrShortDescription},
		{"zero amount", func(tx *FinancialTransaction) { tx.Amount = Money{} }, ErrInvalidAmount},
		{"negative amount", func(tx *FinancialTransaction) { tx.Amount = Money{Units: -10} }, ErrInvalidAmount},
		{"zero date", func(tx *FinancialTransaction) { tx.Date = time.Time{} }, ErrZeroDate},
		{"unknown status", func(tx *FinancialTransaction) { tx.Status = "archived" }, ErrUnknownStatus},
		{"unknown method", func(tx *FinancialTransaction) { tx.PaymentMethod = "barter" }, ErrUnknownMethod},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := validTransaction()
			tt.mutate(&tx)
			err := tx.Validate()
			if tt.want == nil {
				if err != nil {
					t.Errorf("expected valid transaction, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
			if !errors.Is(err, ErrValidation) {
				t.Errorf("expected a validation error, got %v", err)
			}
		})
	}
}

func TestTransactionStateRules(t *testing.T) {
	tx := validTransaction()

	if !tx.Deletable() {
		t.Error("pending transactions must be deletable")
	}
	if !tx.Mutable() {
		t.Error("pending transactions must be mutable")
	}
	if tx.CountsTowardAggregates() {
		t.Error("pending transactions must not count toward aggregates")
	}

	tx.Status = TransactionCompleted
	if tx.Deletable() {
		t.Error("completed transactions must never be deletable")
	}
	if !tx.CountsTowardAggregates() {
		t.Error("completed transactions must count toward aggregates")
	}

	tx.Status = TransactionCancelled
	if tx.Deletable() {
		t.Error("cancelled transactions must never be deletable")
	}
	if tx.Mutable() {
		t.Error("cancelled transactions must be immutable")
	}
	if tx.CountsTowardAggregates() {
		t.Error("cancelled transactions must not count toward aggregates")
	}
}
