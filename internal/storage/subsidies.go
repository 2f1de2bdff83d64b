package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"coopledger/internal/core"
)

const subsidyColumns = `id, name, description, amount, provider, application_date,
	approval_date, disbursement_date, status, requirements, documents, beneficiaries, conditions`

func (r *SQLiteRepository) CreateSubsidy(ctx context.Context, s core.Subsidy) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO subsidies (`+subsidyColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.Name, s.Description, s.Amount.Units, s.Provider, s.ApplicationDate,
		nullTime(s.ApprovalDate), nullTime(s.DisbursementDate), string(s.Status),
		marshalStrings(s.Requirements), marshalStrings(s.Documents),
		marshalStrings(s.Beneficiaries), s.Conditions)
	if err != nil {
		return fmt.Errorf("insert subsidy: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetSubsidy(ctx context.Context, id string) (core.Subsidy, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+subsidyColumns+` FROM subsidies WHERE id = ?`, id)
	s, err := scanSubsidy(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Subsidy{}, fmt.Errorf("subsidy %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Subsidy{}, fmt.Errorf("get subsidy: %w", err)
	}
	return s, nil
}

func (r *SQLiteRepository) UpdateSubsidy(ctx context.Context, s core.Subsidy) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE subsidies
		SET name = ?, description = ?, provider = ?, approval_date = ?, disbursement_date = ?,
			status = ?, requirements = ?, documents = ?, beneficiaries = ?, conditions = ?
		WHERE id = ?`,
		s.Name, s.Description, s.Provider, nullTime(s.ApprovalDate), nullTime(s.DisbursementDate),
		string(s.Status), marshalStrings(s.Requirements), marshalStrings(s.Documents),
		marshalStrings(s.Beneficiaries), s.Conditions, s.ID)
	if err != nil {
		return fmt.Errorf("update subsidy: %w", err)
	}
	return requireRow(res, "subsidy", s.ID)
}

func (r *SQLiteRepository) ListSubsidies(ctx context.Context) ([]core.Subsidy, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+subsidyColumns+` FROM subsidies ORDER BY application_date`)
	if err != nil {
		return nil, fmt.Errorf("list subsidies: %w", err)
	}
	defer rows.Close()

	var out []core.Subsidy
	for rows.Next() {
		s, err := scanSubsidy(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subsidy: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func scanSubsidy(row rowScanner) (core.Subsidy, error) {
	var s core.Subsidy
	var status, requirements, documents, beneficiaries string
	var approval, disbursement sql.NullTime
	err := row.Scan(&s.ID, &s.Name, &s.Description, &s.Amount.Units, &s.Provider,
		&s.ApplicationDate, &approval, &disbursement, &status,
		&requirements, &documents, &beneficiaries, &s.Conditions)
	if err != nil {
		return core.Subsidy{}, err
	}
	s.Status = core.SubsidyStatus(status)
	s.Requirements = unmarshalStrings(requirements)
	s.Documents = unmarshalStrings(documents)
	s.Beneficiaries = unmarshalStrings(beneficiaries)
	if approval.Valid {
		t := approval.Time
		s.ApprovalDate = &t
	}
	if disbursement.Valid {
		t := disbursement.Time
		s.DisbursementDate = &t
	}
	return s, nil
}
