// Package audit implements the tamper-evident, append-only log of mutating
// actions: record model, store contract, and the writer that turns raw
// before/after payloads into redacted, compacted, signed records.
package audit

import (
	"context"
	"time"
)

// Action is the enumerated verb an audit record describes. Free-form tracking
// verbs (journal /track) are also stored as Actions; the constants below are
// the ones the engines produce or branch on.
type Action string

const (
	ActionCreate             Action = "CREATE"
	ActionUpdate             Action = "UPDATE"
	ActionBatchUpdate        Action = "BATCH_UPDATE"
	ActionBatchUpdatePreview Action = "BATCH_UPDATE_PREVIEW"
	ActionDeleteSoft         Action = "DELETE_SOFT"
	ActionDeleteRequest      Action = "DELETE_REQUEST"
	ActionDeleteHard         Action = "DELETE_HARD"
	ActionRestore            Action = "RESTORE"
	ActionPrint              Action = "PRINT"
	ActionExport             Action = "EXPORT"
	ActionPrintIn            Action = "PRINT_IN"
)

// Status records whether the described operation succeeded.
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFail    Status = "FAIL"
)

// Record is one immutable audit log entry. Once appended it is never mutated;
// the store owns it exclusively. TargetType/TargetID are a logical reference,
// never a foreign key: the target may no longer exist.
type Record struct {
	ID            int64          `json:"id"`
	Action        Action         `json:"action"`
	Status        Status         `json:"status"`
	TargetType    string         `json:"target_type"`
	TargetID      string         `json:"target_id"`
	PrevValues    map[string]any `json:"prev_values"`
	NewValues     map[string]any `json:"new_values"`
	ActorID       string         `json:"actor_id"`
	ActorName     string         `json:"actor_name"`
	IPAddress     string         `json:"ip_address"`
	Path          string         `json:"path"`
	CorrelationID string         `json:"correlation_id"`
	OccurredAt    time.Time      `json:"occurred_at"`
	Signature     string         `json:"integrity_signature"`
}

// hardDeletedKey marks a target as permanently removed in a record's
// after-payload. RestoreEngine treats it as terminal.
const hardDeletedKey = "hard_deleted"

// MarksHardDeleted reports whether this record's after-payload carries the
// explicit hard-deleted marker.
func (r Record) MarksHardDeleted() bool {
	v, ok := r.NewValues[hardDeletedKey].(bool)
	return ok && v
}

// IsSoftDeleteClass reports whether restoring from this record should clear
// soft-deletion markers on the target. Detected by action kind or by the
// presence of a deletion timestamp in the after-payload, since older records
// may predate the current action taxonomy.
func (r Record) IsSoftDeleteClass() bool {
	if r.Action == ActionDeleteSoft || r.Action == ActionDeleteRequest {
		return true
	}
	_, ok := r.NewValues["deleted_at"]
	return ok
}

// Filter narrows List queries. Zero values mean "no constraint".
type Filter struct {
	Action     string
	TargetType string
	TargetID   string
	// Query matches actor name, path, IP, correlation id, action, or target id.
	Query string
	// Actor matches actor name (contains).
	Actor string
	// From is inclusive, To exclusive.
	From time.Time
	To   time.Time

	Page     int
	PageSize int
	// SortField must be one of the whitelisted columns; SortDir is asc/desc.
	SortField string
	SortDir   string
}

// Store is the append-only log store. Append assigns the record ID.
type Store interface {
	Append(ctx context.Context, rec *Record) error
	FindByID(ctx context.Context, id int64) (Record, error)
	List(ctx context.Context, f Filter) ([]Record, int, error)
	// HasAction reports whether any record with the given action exists for
	// the target. Used to flag targets whose lifecycle ended terminally.
	HasAction(ctx context.Context, targetType, targetID string, action Action) (bool, error)
}
