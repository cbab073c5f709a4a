// Package postgres persists applicants and their owned documents. All
// statements run against the transaction from context when one is present.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"ams/internal/applicant"
	"ams/pkg/sentinel"
	"ams/pkg/sqltx"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Get(ctx context.Context, studentCode string) (*applicant.Applicant, error) {
	query := `
		SELECT student_code, COALESCE(dossier_code, ''), COALESCE(received_on, ''),
		       COALESCE(family_name, ''), COALESCE(given_name, ''), COALESCE(full_name, ''),
		       COALESCE(gender, ''), COALESCE(ethnicity, ''), COALESCE(date_of_birth, ''),
		       COALESCE(phone, ''), COALESCE(email, ''),
		       COALESCE(program, ''), COALESCE(intake, ''), COALESCE(cohort, ''),
		       COALESCE(prior_degree, ''), COALESCE(notes, ''), COALESCE(received_by, ''),
		       status, printed,
		       deleted_at, COALESCE(deleted_by, ''), COALESCE(deleted_reason, ''),
		       created_at, updated_at
		FROM applicants
		WHERE student_code = $1
	`
	var (
		a         applicant.Applicant
		deletedAt sql.NullTime
	)
	err := sqltx.ExecutorFrom(ctx, s.db).QueryRowContext(ctx, query, studentCode).Scan(
		&a.StudentCode, &a.DossierCode, &a.ReceivedOn,
		&a.FamilyName, &a.GivenName, &a.FullName,
		&a.Gender, &a.Ethnicity, &a.DateOfBirth,
		&a.Phone, &a.Email,
		&a.Program, &a.Intake, &a.Cohort,
		&a.PriorDegree, &a.Notes, &a.ReceivedBy,
		&a.Status, &a.Printed,
		&deletedAt, &a.DeletedBy, &a.DeletedReason,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("applicant %s: %w", studentCode, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find applicant: %w", err)
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		a.DeletedAt = &t
	}
	return &a, nil
}

func (s *Store) Save(ctx context.Context, a *applicant.Applicant) error {
	query := `
		INSERT INTO applicants (
			student_code, dossier_code, received_on,
			family_name, given_name, full_name,
			gender, ethnicity, date_of_birth, phone, email,
			program, intake, cohort, prior_degree, notes, received_by,
			status, printed,
			deleted_at, deleted_by, deleted_reason,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
		        $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24)
		ON CONFLICT (student_code) DO UPDATE SET
			dossier_code = EXCLUDED.dossier_code,
			received_on = EXCLUDED.received_on,
			family_name = EXCLUDED.family_name,
			given_name = EXCLUDED.given_name,
			full_name = EXCLUDED.full_name,
			gender = EXCLUDED.gender,
			ethnicity = EXCLUDED.ethnicity,
			date_of_birth = EXCLUDED.date_of_birth,
			phone = EXCLUDED.phone,
			email = EXCLUDED.email,
			program = EXCLUDED.program,
			intake = EXCLUDED.intake,
			cohort = EXCLUDED.cohort,
			prior_degree = EXCLUDED.prior_degree,
			notes = EXCLUDED.notes,
			received_by = EXCLUDED.received_by,
			status = EXCLUDED.status,
			printed = EXCLUDED.printed,
			deleted_at = EXCLUDED.deleted_at,
			deleted_by = EXCLUDED.deleted_by,
			deleted_reason = EXCLUDED.deleted_reason,
			updated_at = EXCLUDED.updated_at
	`
	var deletedAt any
	if a.DeletedAt != nil {
		deletedAt = *a.DeletedAt
	}
	_, err := sqltx.ExecutorFrom(ctx, s.db).ExecContext(ctx, query,
		a.StudentCode, a.DossierCode, a.ReceivedOn,
		a.FamilyName, a.GivenName, a.FullName,
		a.Gender, a.Ethnicity, a.DateOfBirth, a.Phone, a.Email,
		a.Program, a.Intake, a.Cohort, a.PriorDegree, a.Notes, a.ReceivedBy,
		a.Status, a.Printed,
		deletedAt, a.DeletedBy, a.DeletedReason,
		a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save applicant: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, studentCode string) error {
	res, err := sqltx.ExecutorFrom(ctx, s.db).
		ExecContext(ctx, `DELETE FROM applicants WHERE student_code = $1`, studentCode)
	if err != nil {
		return fmt.Errorf("delete applicant: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("applicant %s: %w", studentCode, sentinel.ErrNotFound)
	}
	return nil
}

func (s *Store) ListDocs(ctx context.Context, studentCode string) ([]applicant.Doc, error) {
	query := `
		SELECT id, student_code, COALESCE(code, ''), COALESCE(display_name, ''),
		       COALESCE(quantity, 0), COALESCE(order_no, 0)
		FROM applicant_docs
		WHERE student_code = $1
		ORDER BY order_no, id
	`
	rows, err := sqltx.ExecutorFrom(ctx, s.db).QueryContext(ctx, query, studentCode)
	if err != nil {
		return nil, fmt.Errorf("query applicant docs: %w", err)
	}
	defer rows.Close()

	var docs []applicant.Doc
	for rows.Next() {
		var d applicant.Doc
		if err := rows.Scan(&d.ID, &d.StudentCode, &d.Code, &d.DisplayName, &d.Quantity, &d.OrderNo); err != nil {
			return nil, fmt.Errorf("scan applicant doc: %w", err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applicant docs: %w", err)
	}
	return docs, nil
}

func (s *Store) DeleteDocs(ctx context.Context, studentCode string) error {
	_, err := sqltx.ExecutorFrom(ctx, s.db).
		ExecContext(ctx, `DELETE FROM applicant_docs WHERE student_code = $1`, studentCode)
	if err != nil {
		return fmt.Errorf("delete applicant docs: %w", err)
	}
	return nil
}
