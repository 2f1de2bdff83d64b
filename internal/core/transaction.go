package core

import (
	"strings"
	"time"
)

const (
	Income  TransactionKind = "income"
	Expense TransactionKind = "expense"
)

const (
	TransactionPending   TransactionStatus = "pending"
	TransactionCompleted TransactionStatus = "completed"
	TransactionCancelled TransactionStatus = "cancelled"
)

const (
	Cash         PaymentMethod = "cash"
	MobileMoney  PaymentMethod = "mobile_money"
	BankTransfer PaymentMethod = "bank_transfer"
	Check        PaymentMethod = "check"
)

type (
	TransactionKind   string
	TransactionStatus string
	PaymentMethod     string

	// FinancialTransaction is one money movement in the cooperative
	// ledger. Only completed transactions count toward aggregates;
	// cancelled ones are immutable and kept for the audit trail.
	FinancialTransaction struct {
		ID            string
		Kind          TransactionKind
		Category      string
		Description   string
		Amount        Money
		Date          time.Time
		Reference     string
		MemberID      string
		SupplierID    string
		Status        TransactionStatus
		PaymentMethod PaymentMethod
		CreatedBy     string
		CreatedAt     time.Time
		UpdatedAt     time.Time
		Receipts      []string
		Notes         string
	}
)

func (k TransactionKind) Valid() bool {
	return k == Income || k == Expense
}

func (s TransactionStatus) Valid() bool {
	switch s {
	case TransactionPending, TransactionCompleted, TransactionCancelled:
		return true
	}
	return false
}

func (m PaymentMethod) Valid() bool {
	switch m {
	case Cash, MobileMoney, BankTransfer, Check:
		return true
	}
	return false
}

func (t FinancialTransaction) Validate() error {
	if !t.Kind.Valid() {
		return ErrUnknownKind
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	if len(strings.TrimSpace(t.Description)) < 3 {
		return ErrShortDescription
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if t.Date.IsZero() {
		return ErrZeroDate
	}
	if !t.Status.Valid() {
		return ErrUnknownStatus
	}
	if !t.PaymentMethod.Valid() {
		return ErrUnknownMethod
	}
	return nil
}

// Deletable reports whether the transaction may be physically removed.
// Completed and cancelled transactions stay in the ledger forever.
func (t FinancialTransaction) Deletable() bool {
	return t.Status == TransactionPending
}

// Mutable reports whether the transaction accepts further updates.
func (t FinancialTransaction) Mutable() bool {
	return t.Status != TransactionCancelled
}

// CountsTowardAggregates reports whether the transaction is visible to
// budgets and reports.
func (t FinancialTransaction) CountsTowardAggregates() bool {
	return t.Status == TransactionCompleted
}
