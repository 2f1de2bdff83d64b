package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"coopledger/internal/core"
)

const paymentColumns = `id, cooperative_id, amount, currency, payment_method, status,
	received_at, redistributed_at, confirmed_at, confirmed_by, sale_id, buyer, invoice_number, items`

func (r *SQLiteRepository) CreatePayment(ctx context.Context, p core.CollectivePayment) error {
	items, err := json.Marshal(p.Items)
	if err != nil {
		return fmt.Errorf("marshal line items: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO collective_payments (`+paymentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.CooperativeID, p.Amount.Units, p.Currency, string(p.PaymentMethod),
		string(p.Status), p.ReceivedAt, nullTime(p.RedistributedAt), nullTime(p.ConfirmedAt),
		p.ConfirmedBy, p.SaleID, p.Buyer, p.InvoiceNumber, string(items))
	if err != nil {
		return fmt.Errorf("insert collective payment: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetPayment(ctx context.Context, id string) (core.CollectivePayment, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+paymentColumns+` FROM collective_payments WHERE id = ?`, id)
	p, err := scanPayment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.CollectivePayment{}, fmt.Errorf("collective payment %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.CollectivePayment{}, fmt.Errorf("get collective payment: %w", err)
	}
	return p, nil
}

func (r *SQLiteRepository) UpdatePayment(ctx context.Context, p core.CollectivePayment) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE collective_payments
		SET status = ?, redistributed_at = ?, confirmed_at = ?, confirmed_by = ?
		WHERE id = ?`,
		string(p.Status), nullTime(p.RedistributedAt), nullTime(p.ConfirmedAt), p.ConfirmedBy, p.ID)
	if err != nil {
		return fmt.Errorf("update collective payment: %w", err)
	}
	return requireRow(res, "collective payment", p.ID)
}

func (r *SQLiteRepository) ListPaymentsByStatus(ctx context.Context, statuses ...core.CollectivePaymentStatus) ([]core.CollectivePayment, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(statuses)), ", ")
	args := make([]any, len(statuses))
	for i, s := range statuses {
		args[i] = string(s)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+paymentColumns+` FROM collective_payments
		WHERE status IN (`+placeholders+`) ORDER BY received_at`, args...)
	if err != nil {
		return nil, fmt.Errorf("list collective payments: %w", err)
	}
	defer rows.Close()

	var out []core.CollectivePayment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan collective payment: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ReplaceDistributions overwrites the stored plan for a payment. Used
// when a reviewed plan is confirmed; never called once processing has
// begun.
func (r *SQLiteRepository) ReplaceDistributions(ctx context.Context, paymentID string, plan []core.MemberDistribution) error {
	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin distribution replace: %w", err)
	}
	defer dbTx.Rollback()

	if _, err := dbTx.ExecContext(ctx, `DELETE FROM distributions WHERE payment_id = ?`, paymentID); err != nil {
		return fmt.Errorf("clear distributions: %w", err)
	}

	for i, d := range plan {
		_, err := dbTx.ExecContext(ctx, `
			INSERT INTO distributions (payment_id, position, member_id, member_name, product_id,
				quantity, percentage, gross, fee, net, status, paid_at, receipt_ref, failure_reason)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			paymentID, i, d.MemberID, d.MemberName, d.Contribution.ProductID,
			d.Contribution.Quantity.String(), d.Contribution.Percentage.String(),
			d.Gross.Units, d.Fee.Units, d.Net.Units, string(d.Status),
			nullTime(d.PaidAt), d.ReceiptRef, d.FailureReason)
		if err != nil {
			return fmt.Errorf("insert distribution %d: %w", i, err)
		}
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("commit distribution replace: %w", err)
	}
	return nil
}

// UpdateDistribution persists the outcome of one member's payout.
func (r *SQLiteRepository) UpdateDistribution(ctx context.Context, paymentID string, d core.MemberDistribution) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE distributions
		SET status = ?, paid_at = ?, receipt_ref = ?, failure_reason = ?
		WHERE payment_id = ? AND member_id = ?`,
		string(d.Status), nullTime(d.PaidAt), d.ReceiptRef, d.FailureReason, paymentID, d.MemberID)
	if err != nil {
		return fmt.Errorf("update distribution: %w", err)
	}
	return requireRow(res, "distribution", paymentID+"/"+d.MemberID)
}

func (r *SQLiteRepository) ListDistributions(ctx context.Context, paymentID string) ([]core.MemberDistribution, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT member_id, member_name, product_id, quantity, percentage, gross, fee, net,
			status, paid_at, receipt_ref, failure_reason
		FROM distributions WHERE payment_id = ? ORDER BY position`, paymentID)
	if err != nil {
		return nil, fmt.Errorf("list distributions: %w", err)
	}
	defer rows.Close()

	var out []core.MemberDistribution
	for rows.Next() {
		var d core.MemberDistribution
		var quantity, percentage, status string
		var paidAt sql.NullTime
		err := rows.Scan(&d.MemberID, &d.MemberName, &d.Contribution.ProductID,
			&quantity, &percentage, &d.Gross.Units, &d.Fee.Units, &d.Net.Units,
			&status, &paidAt, &d.ReceiptRef, &d.FailureReason)
		if err != nil {
			return nil, fmt.Errorf("scan distribution: %w", err)
		}
		d.Contribution.MemberID = d.MemberID
		d.Contribution.MemberName = d.MemberName
		if d.Contribution.Quantity, err = decimal.NewFromString(quantity); err != nil {
			return nil, fmt.Errorf("parse quantity %q: %w", quantity, err)
		}
		if d.Contribution.Percentage, err = decimal.NewFromString(percentage); err != nil {
			return nil, fmt.Errorf("parse percentage %q: %w", percentage, err)
		}
		d.Status = core.DistributionStatus(status)
		if paidAt.Valid {
			t := paidAt.Time
			d.PaidAt = &t
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func scanPayment(row rowScanner) (core.CollectivePayment, error) {
	var p core.CollectivePayment
	var method, status, items string
	var redistributedAt, confirmedAt sql.NullTime
	err := row.Scan(&p.ID, &p.CooperativeID, &p.Amount.Units, &p.Currency, &method, &status,
		&p.ReceivedAt, &redistributedAt, &confirmedAt, &p.ConfirmedBy,
		&p.SaleID, &p.Buyer, &p.InvoiceNumber, &items)
	if err != nil {
		return core.CollectivePayment{}, err
	}
	p.PaymentMethod = core.PaymentMethod(method)
	p.Status = core.CollectivePaymentStatus(status)
	if redistributedAt.Valid {
		t := redistributedAt.Time
		p.RedistributedAt = &t
	}
	if confirmedAt.Valid {
		t := confirmedAt.Time
		p.ConfirmedAt = &t
	}
	if items != "" && items != "[]" {
		if err := json.Unmarshal([]byte(items), &p.Items); err != nil {
			return core.CollectivePayment{}, fmt.Errorf("unmarshal line items: %w", err)
		}
	}
	return p, nil
}
