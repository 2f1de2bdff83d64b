package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"coopledger/internal/core"
)

const creditColumns = `id, member_id, amount, interest_rate, duration, purpose,
	application_date, approval_date, disbursement_date, due_date, status, guarantors, collateral`

// CreateCredit stores the credit and its full repayment schedule in one
// transaction; the schedule is immutable afterwards except for
// per-installment status.
func (r *SQLiteRepository) CreateCredit(ctx context.Context, c core.Credit) error {
	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin credit insert: %w", err)
	}
	defer dbTx.Rollback()

	_, err = dbTx.ExecContext(ctx, `
		INSERT INTO credits (`+creditColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.MemberID, c.Amount.Units, c.InterestRate.String(), c.Duration, c.Purpose,
		c.ApplicationDate, nullTime(c.ApprovalDate), nullTime(c.DisbursementDate),
		c.DueDate, string(c.Status), marshalStrings(c.Guarantors), c.Collateral)
	if err != nil {
		return fmt.Errorf("insert credit: %w", err)
	}

	for i, in := range c.Schedule {
		_, err = dbTx.ExecContext(ctx, `
			INSERT INTO installments (credit_id, position, due_date, amount, status)
			VALUES (?, ?, ?, ?, ?)`,
			c.ID, i, in.DueDate, in.Amount.Units, string(in.Status))
		if err != nil {
			return fmt.Errorf("insert installment %d: %w", i, err)
		}
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("commit credit insert: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetCredit(ctx context.Context, id string) (core.Credit, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+creditColumns+` FROM credits WHERE id = ?`, id)
	c, err := scanCredit(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Credit{}, fmt.Errorf("credit %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Credit{}, fmt.Errorf("get credit: %w", err)
	}

	c.Schedule, err = r.loadSchedule(ctx, id)
	if err != nil {
		return core.Credit{}, err
	}
	return c, nil
}

// UpdateCredit persists status, lifecycle dates and installment
// statuses. Principal, rate and due dates never change after creation.
func (r *SQLiteRepository) UpdateCredit(ctx context.Context, c core.Credit) error {
	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin credit update: %w", err)
	}
	defer dbTx.Rollback()

	res, err := dbTx.ExecContext(ctx, `
		UPDATE credits
		SET approval_date = ?, disbursement_date = ?, status = ?
		WHERE id = ?`,
		nullTime(c.ApprovalDate), nullTime(c.DisbursementDate), string(c.Status), c.ID)
	if err != nil {
		return fmt.Errorf("update credit: %w", err)
	}
	if err := requireRow(res, "credit", c.ID); err != nil {
		return err
	}

	for i, in := range c.Schedule {
		_, err = dbTx.ExecContext(ctx, `
			UPDATE installments SET status = ? WHERE credit_id = ? AND position = ?`,
			string(in.Status), c.ID, i)
		if err != nil {
			return fmt.Errorf("update installment %d: %w", i, err)
		}
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("commit credit update: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListCredits(ctx context.Context) ([]core.Credit, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+creditColumns+` FROM credits ORDER BY application_date`)
	if err != nil {
		return nil, fmt.Errorf("list credits: %w", err)
	}
	defer rows.Close()

	var out []core.Credit
	for rows.Next() {
		c, err := scanCredit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan credit: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		out[i].Schedule, err = r.loadSchedule(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *SQLiteRepository) loadSchedule(ctx context.Context, creditID string) ([]core.Installment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT due_date, amount, status FROM installments
		WHERE credit_id = ? ORDER BY position`, creditID)
	if err != nil {
		return nil, fmt.Errorf("load schedule: %w", err)
	}
	defer rows.Close()

	var schedule []core.Installment
	for rows.Next() {
		var in core.Installment
		var status string
		if err := rows.Scan(&in.DueDate, &in.Amount.Units, &status); err != nil {
			return nil, fmt.Errorf("scan installment: %w", err)
		}
		in.Status = core.InstallmentStatus(status)
		schedule = append(schedule, in)
	}
	return schedule, rows.Err()
}

func scanCredit(row rowScanner) (core.Credit, error) {
	var c core.Credit
	var rate, status, guarantors string
	var approval, disbursement sql.NullTime
	err := row.Scan(&c.ID, &c.MemberID, &c.Amount.Units, &rate, &c.Duration, &c.Purpose,
		&c.ApplicationDate, &approval, &disbursement, &c.DueDate, &status, &guarantors, &c.Collateral)
	if err != nil {
		return core.Credit{}, err
	}
	c.InterestRate, err = decimal.NewFromString(rate)
	if err != nil {
		return core.Credit{}, fmt.Errorf("parse interest rate %q: %w", rate, err)
	}
	c.Status = core.CreditStatus(status)
	c.Guarantors = unmarshalStrings(guarantors)
	if approval.Valid {
		t := approval.Time
		c.ApprovalDate = &t
	}
	if disbursement.Valid {
		t := disbursement.Time
		c.DisbursementDate = &t
	}
	return c, nil
}
