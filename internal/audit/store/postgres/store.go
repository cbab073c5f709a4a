// Package postgres persists audit records in the audit_logs table. Appends
// use the transaction from context when one is present, so a record commits
// or rolls back together with the mutation it describes.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"ams/internal/audit"
	"ams/pkg/sentinel"
	"ams/pkg/sqltx"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// sortColumns whitelists List sort fields; anything else falls back to
// occurred_at.
var sortColumns = map[string]string{
	"id":          "id",
	"occurred_at": "occurred_at",
	"actor_name":  "actor_name",
	"action":      "action",
	"status":      "status",
	"target_id":   "target_id",
}

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Append(ctx context.Context, rec *audit.Record) error {
	prevJSON, err := json.Marshal(rec.PrevValues)
	if err != nil {
		return fmt.Errorf("marshal prev_values: %w", err)
	}
	newJSON, err := json.Marshal(rec.NewValues)
	if err != nil {
		return fmt.Errorf("marshal new_values: %w", err)
	}

	query := `
		INSERT INTO audit_logs (
			action, status, target_type, target_id,
			prev_values, new_values,
			actor_id, actor_name, ip_address, path, correlation_id,
			occurred_at, integrity_signature
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id
	`
	row := sqltx.ExecutorFrom(ctx, s.db).QueryRowContext(ctx, query,
		string(rec.Action),
		string(rec.Status),
		nullable(rec.TargetType),
		nullable(rec.TargetID),
		prevJSON,
		newJSON,
		nullable(rec.ActorID),
		nullable(rec.ActorName),
		nullable(rec.IPAddress),
		nullable(rec.Path),
		nullable(rec.CorrelationID),
		rec.OccurredAt,
		rec.Signature,
	)
	if err := row.Scan(&rec.ID); err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}
	return nil
}

func (s *Store) FindByID(ctx context.Context, id int64) (audit.Record, error) {
	query := selectColumns().Where(sq.Eq{"id": id})
	sqlStr, args, err := query.ToSql()
	if err != nil {
		return audit.Record{}, fmt.Errorf("build query: %w", err)
	}
	rec, err := scanRecord(sqltx.ExecutorFrom(ctx, s.db).QueryRowContext(ctx, sqlStr, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return audit.Record{}, fmt.Errorf("audit record %d: %w", id, sentinel.ErrNotFound)
		}
		return audit.Record{}, fmt.Errorf("find audit record: %w", err)
	}
	return rec, nil
}

func (s *Store) List(ctx context.Context, f audit.Filter) ([]audit.Record, int, error) {
	conds := buildConds(f)

	countQuery := psql.Select("COUNT(*)").From("audit_logs").Where(conds)
	sqlStr, args, err := countQuery.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count query: %w", err)
	}
	var total int
	if err := sqltx.ExecutorFrom(ctx, s.db).QueryRowContext(ctx, sqlStr, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count audit records: %w", err)
	}

	page, size := f.Page, f.PageSize
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 50
	}
	col, ok := sortColumns[f.SortField]
	if !ok {
		col = "occurred_at"
	}
	dir := "DESC"
	if f.SortDir == "asc" {
		dir = "ASC"
	}

	query := selectColumns().
		Where(conds).
		OrderBy(col + " " + dir).
		Offset(uint64((page - 1) * size)).
		Limit(uint64(size))
	sqlStr, args, err = query.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list query: %w", err)
	}

	rows, err := sqltx.ExecutorFrom(ctx, s.db).QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query audit records: %w", err)
	}
	defer rows.Close()

	var records []audit.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan audit record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate audit records: %w", err)
	}
	return records, total, nil
}

func (s *Store) HasAction(ctx context.Context, targetType, targetID string, action audit.Action) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM audit_logs
			WHERE target_type = $1 AND target_id = $2 AND action = $3
		)
	`
	var exists bool
	err := sqltx.ExecutorFrom(ctx, s.db).
		QueryRowContext(ctx, query, targetType, targetID, string(action)).
		Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check target action: %w", err)
	}
	return exists, nil
}

func buildConds(f audit.Filter) sq.And {
	conds := sq.And{}
	if f.Action != "" {
		conds = append(conds, sq.Eq{"action": f.Action})
	}
	if f.TargetType != "" {
		conds = append(conds, sq.Eq{"target_type": f.TargetType})
	}
	if f.TargetID != "" {
		conds = append(conds, sq.Eq{"target_id": f.TargetID})
	}
	if f.Actor != "" {
		conds = append(conds, sq.ILike{"actor_name": "%" + f.Actor + "%"})
	}
	if f.Query != "" {
		like := "%" + f.Query + "%"
		conds = append(conds, sq.Or{
			sq.ILike{"actor_name": like},
			sq.ILike{"path": like},
			sq.ILike{"ip_address": like},
			sq.ILike{"correlation_id": like},
			sq.ILike{"action": like},
			sq.ILike{"target_id": like},
		})
	}
	if !f.From.IsZero() {
		conds = append(conds, sq.GtOrEq{"occurred_at": f.From})
	}
	if !f.To.IsZero() {
		conds = append(conds, sq.Lt{"occurred_at": f.To})
	}
	return conds
}

func selectColumns() sq.SelectBuilder {
	return psql.Select(
		"id", "action", "status",
		"COALESCE(target_type, '')", "COALESCE(target_id, '')",
		"prev_values", "new_values",
		"COALESCE(actor_id, '')", "COALESCE(actor_name, '')",
		"COALESCE(ip_address, '')", "COALESCE(path, '')", "COALESCE(correlation_id, '')",
		"occurred_at", "integrity_signature",
	).From("audit_logs")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (audit.Record, error) {
	var (
		rec      audit.Record
		prevJSON []byte
		newJSON  []byte
	)
	err := row.Scan(
		&rec.ID, &rec.Action, &rec.Status,
		&rec.TargetType, &rec.TargetID,
		&prevJSON, &newJSON,
		&rec.ActorID, &rec.ActorName,
		&rec.IPAddress, &rec.Path, &rec.CorrelationID,
		&rec.OccurredAt, &rec.Signature,
	)
	if err != nil {
		return audit.Record{}, err
	}
	if err := json.Unmarshal(prevJSON, &rec.PrevValues); err != nil {
		return audit.Record{}, fmt.Errorf("decode prev_values: %w", err)
	}
	if err := json.Unmarshal(newJSON, &rec.NewValues); err != nil {
		return audit.Record{}, fmt.Errorf("decode new_values: %w", err)
	}
	return rec, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
