package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"coopledger/internal/core"
)

const transactionColumns = `id, kind, category, description, amount, date, reference,
	member_id, supplier_id, status, payment_method, created_by, created_at, updated_at,
	receipts, notes`

func (r *SQLiteRepository) CreateTransaction(ctx context.Context, tx core.FinancialTransaction) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO transactions (`+transactionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, string(tx.Kind), tx.Category, tx.Description, tx.Amount.Units, tx.Date,
		tx.Reference, tx.MemberID, tx.SupplierID, string(tx.Status), string(tx.PaymentMethod),
		tx.CreatedBy, tx.CreatedAt, tx.UpdatedAt, marshalStrings(tx.Receipts), tx.Notes)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved",
		"id", tx.ID,
		"kind", tx.Kind,
		"category", tx.Category,
		"amount", tx.Amount.Units,
		"status", tx.Status)
	return nil
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, id string) (core.FinancialTransaction, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.FinancialTransaction{}, fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.FinancialTransaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return tx, nil
}

// UpdateTransaction rewrites every mutable column. CreatedBy and
// CreatedAt are deliberately left out of the SET list.
func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, tx core.FinancialTransaction) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE transactions
		SET kind = ?, category = ?, description = ?, amount = ?, date = ?, reference = ?,
			member_id = ?, supplier_id = ?, status = ?, payment_method = ?, updated_at = ?,
			receipts = ?, notes = ?
		WHERE id = ?`,
		string(tx.Kind), tx.Category, tx.Description, tx.Amount.Units, tx.Date, tx.Reference,
		tx.MemberID, tx.SupplierID, string(tx.Status), string(tx.PaymentMethod), tx.UpdatedAt,
		marshalStrings(tx.Receipts), tx.Notes, tx.ID)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	return requireRow(res, "transaction", tx.ID)
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return requireRow(res, "transaction", id)
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context, filter core.TransactionFilter) ([]core.FinancialTransaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions`
	var conds []string
	var args []any
	if filter.Kind != "" {
		conds = append(conds, "kind = ?")
		args = append(args, string(filter.Kind))
	}
	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.Category != "" {
		conds = append(conds, "category = ?")
		args = append(args, filter.Category)
	}
	if filter.MemberID != "" {
		conds = append(conds, "member_id = ?")
		args = append(args, filter.MemberID)
	}
	if !filter.From.IsZero() {
		conds = append(conds, "date >= ?")
		args = append(args, filter.From)
	}
	if !filter.To.IsZero() {
		conds = append(conds, "date < ?")
		args = append(args, filter.To)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY date, created_at"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.FinancialTransaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

// ListUnmirrored returns completed transactions not yet appended to the
// bookkeeping spreadsheet.
func (r *SQLiteRepository) ListUnmirrored(ctx context.Context, limit int) ([]core.FinancialTransaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+transactionColumns+` FROM transactions
		WHERE mirrored = 0 AND status = ?
		ORDER BY created_at LIMIT ?`,
		string(core.TransactionCompleted), limit)
	if err != nil {
		return nil, fmt.Errorf("list unmirrored transactions: %w", err)
	}
	defer rows.Close()

	var out []core.FinancialTransaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) MarkMirrored(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE transactions SET mirrored = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark transaction mirrored: %w", err)
	}
	return requireRow(res, "transaction", id)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (core.FinancialTransaction, error) {
	var tx core.FinancialTransaction
	var kind, status, method, receipts string
	err := row.Scan(&tx.ID, &kind, &tx.Category, &tx.Description, &tx.Amount.Units, &tx.Date,
		&tx.Reference, &tx.MemberID, &tx.SupplierID, &status, &method, &tx.CreatedBy,
		&tx.CreatedAt, &tx.UpdatedAt, &receipts, &tx.Notes)
	if err != nil {
		return core.FinancialTransaction{}, err
	}
	tx.Kind = core.TransactionKind(kind)
	tx.Status = core.TransactionStatus(status)
	tx.PaymentMethod = core.PaymentMethod(method)
	tx.Receipts = unmarshalStrings(receipts)
	return tx, nil
}

func requireRow(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", entity, id, core.ErrNotFound)
	}
	return nil
}
