// Package postgres persists staff accounts.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"ams/internal/account"
	"ams/pkg/sentinel"
	"ams/pkg/sqltx"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

const userColumns = `username, COALESCE(family_name, ''), COALESCE(given_name, ''),
	COALESCE(full_name, ''), COALESCE(email, ''), role, active,
	password_hash, must_change_password, created_at, updated_at`

func (s *Store) Get(ctx context.Context, username string) (*account.User, error) {
	query := "SELECT " + userColumns + " FROM users WHERE username = $1"
	var u account.User
	err := sqltx.ExecutorFrom(ctx, s.db).QueryRowContext(ctx, query, username).Scan(
		&u.Username, &u.FamilyName, &u.GivenName, &u.FullName, &u.Email,
		&u.Role, &u.Active, &u.PasswordHash, &u.MustChangePassword,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("account %s: %w", username, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("select account: %w", err)
	}
	return &u, nil
}

func (s *Store) Save(ctx context.Context, u *account.User) error {
	query := `
		INSERT INTO users (
			username, family_name, given_name, full_name, email,
			role, active, password_hash, must_change_password,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (username) DO UPDATE SET
			family_name = EXCLUDED.family_name,
			given_name = EXCLUDED.given_name,
			full_name = EXCLUDED.full_name,
			email = EXCLUDED.email,
			role = EXCLUDED.role,
			active = EXCLUDED.active,
			password_hash = EXCLUDED.password_hash,
			must_change_password = EXCLUDED.must_change_password,
			updated_at = EXCLUDED.updated_at
	`
	_, err := sqltx.ExecutorFrom(ctx, s.db).ExecContext(ctx, query,
		u.Username, u.FamilyName, u.GivenName, u.FullName, u.Email,
		u.Role, u.Active, u.PasswordHash, u.MustChangePassword,
		u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert account: %w", err)
	}
	return nil
}

func (s *Store) List(ctx context.Context) ([]account.User, error) {
	query := "SELECT " + userColumns + " FROM users ORDER BY username"
	rows, err := sqltx.ExecutorFrom(ctx, s.db).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var users []account.User
	for rows.Next() {
		var u account.User
		err := rows.Scan(
			&u.Username, &u.FamilyName, &u.GivenName, &u.FullName, &u.Email,
			&u.Role, &u.Active, &u.PasswordHash, &u.MustChangePassword,
			&u.CreatedAt, &u.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}
	return users, nil
}
