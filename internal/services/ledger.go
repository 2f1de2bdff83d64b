package services

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"coopledger/internal/core"
	"coopledger/internal/log"
)

// LedgerService owns the transaction ledger. All writes are serialized
// per cooperative so concurrent payouts and manual entries cannot
// interleave budget updates.
type LedgerService struct {
	transactions  TransactionStore
	budgets       BudgetStore
	locks         *KeyedMutex
	cooperativeID string
	logger        *log.Logger
	now           Clock
	newID         IDGenerator
}

func NewLedgerService(transactions TransactionStore, budgets BudgetStore, locks *KeyedMutex, cooperativeID string, logger *log.Logger) *LedgerService {
	return &LedgerService{
		transactions:  transactions,
		budgets:       budgets,
		locks:         locks,
		cooperativeID: cooperativeID,
		logger:        logger.WithComponent("ledger"),
		now:           time.Now,
		newID:         NewUUID,
	}
}

// TransactionUpdate carries the mutable fields of a ledger entry. Nil
// fields are left untouched.
type TransactionUpdate struct {
	Kind          *core.TransactionKind
	Category      *string
	Description   *string
	Amount        *core.Money
	Date          *time.Time
	Reference     *string
	Status        *core.TransactionStatus
	PaymentMethod *core.PaymentMethod
	Notes         *string
}

func (u TransactionUpdate) apply(tx *core.FinancialTransaction) {
	if u.Kind != nil {
		tx.Kind = *u.Kind
	}
	if u.Category != nil {
		tx.Category = *u.Category
	}
	if u.Description != nil {
		tx.Description = *u.Description
	}
	if u.Amount != nil {
		tx.Amount = *u.Amount
	}
	if u.Date != nil {
		tx.Date = *u.Date
	}
	if u.Reference != nil {
		tx.Reference = *u.Reference
	}
	if u.Status != nil {
		tx.Status = *u.Status
	}
	if u.PaymentMethod != nil {
		tx.PaymentMethod = *u.PaymentMethod
	}
	if u.Notes != nil {
		tx.Notes = *u.Notes
	}
}

// CreateTransaction records a new ledger entry. Entries without an
// explicit status start pending; a completed expense immediately counts
// against a matching budget envelope.
func (s *LedgerService) CreateTransaction(ctx context.Context, tx core.FinancialTransaction) (core.FinancialTransaction, error) {
	if tx.Status == "" {
		tx.Status = core.TransactionPending
	}
	tx.ID = s.newID()
	ts := s.now().UTC()
	tx.CreatedAt = ts
	tx.UpdatedAt = ts

	if err := tx.Validate(); err != nil {
		return core.FinancialTransaction{}, err
	}

	unlock := s.locks.Lock(s.cooperativeID)
	defer unlock()

	if err := s.transactions.CreateTransaction(ctx, tx); err != nil {
		return core.FinancialTransaction{}, err
	}
	if tx.CountsTowardAggregates() && tx.Kind == core.Expense {
		if err := s.adjustBudget(ctx, tx.Category, tx.Date, tx.Amount.Units); err != nil {
			return core.FinancialTransaction{}, err
		}
	}

	s.logger.InfoContext(ctx, "transaction recorded",
		"id", tx.ID, "kind", tx.Kind, "category", tx.Category,
		"amount", tx.Amount.Units, "status", tx.Status)
	return tx, nil
}

// UpdateTransaction applies a partial update to a mutable entry.
// Cancelled entries are immutable; budget spend follows the entry in
// and out of the completed-expense state.
func (s *LedgerService) UpdateTransaction(ctx context.Context, id string, update TransactionUpdate) (core.FinancialTransaction, error) {
	unlock := s.locks.Lock(s.cooperativeID)
	defer unlock()

	existing, err := s.transactions.GetTransaction(ctx, id)
	if err != nil {
		return core.FinancialTransaction{}, err
	}
	if !existing.Mutable() {
		return core.FinancialTransaction{}, fmt.Errorf("transaction %s: %w", id, core.ErrTransactionLocked)
	}

	updated := existing
	update.apply(&updated)
	updated.UpdatedAt = s.now().UTC()
	if err := updated.Validate(); err != nil {
		return core.FinancialTransaction{}, err
	}

	if err := s.transactions.UpdateTransaction(ctx, updated); err != nil {
		return core.FinancialTransaction{}, err
	}

	if err := s.moveBudgetSpend(ctx, existing, updated); err != nil {
		return core.FinancialTransaction{}, err
	}

	s.logger.InfoContext(ctx, "transaction updated", "id", id, "status", updated.Status)
	return updated, nil
}

// DeleteTransaction removes a pending entry. Completed and cancelled
// entries stay in the ledger; callers cancel them instead.
func (s *LedgerService) DeleteTransaction(ctx context.Context, id string) error {
	unlock := s.locks.Lock(s.cooperativeID)
	defer unlock()

	tx, err := s.transactions.GetTransaction(ctx, id)
	if err != nil {
		return err
	}
	if !tx.Deletable() {
		return fmt.Errorf("transaction %s is %s: %w", id, tx.Status, core.ErrNotPending)
	}
	return s.transactions.DeleteTransaction(ctx, id)
}

func (s *LedgerService) GetTransaction(ctx context.Context, id string) (core.FinancialTransaction, error) {
	return s.transactions.GetTransaction(ctx, id)
}

func (s *LedgerService) ListTransactions(ctx context.Context, filter core.TransactionFilter) ([]core.FinancialTransaction, error) {
	return s.transactions.ListTransactions(ctx, filter)
}

// moveBudgetSpend keeps budget envelopes in step with an edited entry:
// spend recorded under the old completed expense is backed out, spend
// for the new one is applied.
func (s *LedgerService) moveBudgetSpend(ctx context.Context, before, after core.FinancialTransaction) error {
	beforeCounts := before.CountsTowardAggregates() && before.Kind == core.Expense
	afterCounts := after.CountsTowardAggregates() && after.Kind == core.Expense
	if beforeCounts && afterCounts &&
		before.Category == after.Category &&
		before.Amount == after.Amount &&
		before.Date.Equal(after.Date) {
		return nil
	}
	if beforeCounts {
		if err := s.adjustBudget(ctx, before.Category, before.Date, -before.Amount.Units); err != nil {
			return err
		}
	}
	if afterCounts {
		if err := s.adjustBudget(ctx, after.Category, after.Date, after.Amount.Units); err != nil {
			return err
		}
	}
	return nil
}

func (s *LedgerService) adjustBudget(ctx context.Context, category string, date time.Time, delta int64) error {
	b, found, err := s.budgets.FindBudgetForExpense(ctx, category, date)
	if err != nil {
		return err
	}
	if !found {
		// Spending outside any envelope is allowed.
		return nil
	}
	b.Spent.Units += delta
	if b.Spent.Units < 0 {
		b.Spent.Units = 0
	}
	b.Status = core.DeriveBudgetStatus(b, s.now().UTC())
	if err := s.budgets.UpdateBudget(ctx, b); err != nil {
		return fmt.Errorf("adjust budget %s: %w", b.ID, err)
	}
	if b.Status == core.BudgetOverrun {
		s.logger.WarnContext(ctx, "budget overrun",
			"budget", b.ID, "category", b.Category,
			"allocated", b.Allocated.Units, "spent", b.Spent.Units)
	}
	return nil
}

var csvHeader = []string{
	"ID", "Type", "Category", "Description", "Amount", "Date",
	"Reference", "Status", "PaymentMethod", "CreatedBy", "Notes",
}

// ExportCSV streams the filtered ledger as comma-separated rows. Field
// values are sanitized in place of quoting: commas and line breaks
// become spaces, so every row has exactly eleven fields.
func (s *LedgerService) ExportCSV(ctx context.Context, w io.Writer, filter core.TransactionFilter) error {
	list, err := s.transactions.ListTransactions(ctx, filter)
	if err != nil {
		return err
	}

	if _, err := io.WriteString(w, strings.Join(csvHeader, ",")+"\n"); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, tx := range list {
		row := []string{
			tx.ID,
			string(tx.Kind),
			sanitizeField(tx.Category),
			sanitizeField(tx.Description),
			strconv.FormatInt(tx.Amount.Units, 10),
			tx.Date.Format("2006-01-02"),
			sanitizeField(tx.Reference),
			string(tx.Status),
			string(tx.PaymentMethod),
			sanitizeField(tx.CreatedBy),
			sanitizeField(tx.Notes),
		}
		if _, err := io.WriteString(w, strings.Join(row, ",")+"\n"); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	return nil
}

func sanitizeField(v string) string {
	replacer := strings.NewReplacer(",", " ", "\n", " ", "\r", " ")
	return replacer.Replace(v)
}
