// Package postgres persists deletion requests.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"ams/internal/recovery"
	"ams/pkg/sqltx"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Create(ctx context.Context, req *recovery.DeletionRequest) error {
	query := `
		INSERT INTO deletion_requests (
			target_type, target_id, actor_id, actor_name,
			reason, status, audit_log_id, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	err := sqltx.ExecutorFrom(ctx, s.db).QueryRowContext(ctx, query,
		req.TargetType, req.TargetID, req.ActorID, req.ActorName,
		req.Reason, req.Status, req.AuditLogID, req.CreatedAt,
	).Scan(&req.ID)
	if err != nil {
		return fmt.Errorf("insert deletion request: %w", err)
	}
	return nil
}

func (s *Store) List(ctx context.Context, status string, page, size int) ([]recovery.DeletionRequest, int, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 50
	}

	where := ""
	args := []any{}
	if status != "" {
		where = "WHERE status = $1"
		args = append(args, status)
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM deletion_requests " + where
	if err := sqltx.ExecutorFrom(ctx, s.db).QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count deletion requests: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT id, target_type, target_id, COALESCE(actor_id, ''), COALESCE(actor_name, ''),
		       COALESCE(reason, ''), status, audit_log_id, created_at,
		       COALESCE(confirmed_by, ''), confirmed_at
		FROM deletion_requests
		%s
		ORDER BY id DESC
		OFFSET $%d LIMIT $%d
	`, where, len(args)+1, len(args)+2)
	args = append(args, (page-1)*size, size)

	rows, err := sqltx.ExecutorFrom(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query deletion requests: %w", err)
	}
	defer rows.Close()

	var requests []recovery.DeletionRequest
	for rows.Next() {
		var (
			r           recovery.DeletionRequest
			confirmedAt sql.NullTime
		)
		err := rows.Scan(
			&r.ID, &r.TargetType, &r.TargetID, &r.ActorID, &r.ActorName,
			&r.Reason, &r.Status, &r.AuditLogID, &r.CreatedAt,
			&r.ConfirmedBy, &confirmedAt,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("scan deletion request: %w", err)
		}
		if confirmedAt.Valid {
			t := confirmedAt.Time
			r.ConfirmedAt = &t
		}
		requests = append(requests, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate deletion requests: %w", err)
	}
	return requests, total, nil
}

func (s *Store) CancelOpen(ctx context.Context, targetType, targetID string) (int, error) {
	res, err := sqltx.ExecutorFrom(ctx, s.db).ExecContext(ctx, `
		UPDATE deletion_requests
		SET status = $1
		WHERE target_type = $2 AND target_id = $3 AND status IN ($4, $5)
	`, recovery.RequestCancelled, targetType, targetID, recovery.RequestPending, recovery.RequestRequested)
	if err != nil {
		return 0, fmt.Errorf("cancel deletion requests: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("cancel deletion requests: %w", err)
	}
	return int(n), nil
}

func (s *Store) ConfirmOpen(ctx context.Context, targetType, targetID, confirmedBy string, at time.Time) (int, error) {
	res, err := sqltx.ExecutorFrom(ctx, s.db).ExecContext(ctx, `
		UPDATE deletion_requests
		SET status = $1, confirmed_by = $2, confirmed_at = $3
		WHERE target_type = $4 AND target_id = $5 AND status IN ($6, $7)
	`, recovery.RequestConfirmed, confirmedBy, at,
		targetType, targetID, recovery.RequestPending, recovery.RequestRequested)
	if err != nil {
		return 0, fmt.Errorf("confirm deletion requests: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("confirm deletion requests: %w", err)
	}
	return int(n), nil
}
