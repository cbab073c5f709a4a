// Package recovery implements the restore and hard-delete state machines on
// top of the audit log, plus the deletion-request overlay that tracks
// deletions awaiting review.
//
// Lifecycle per target: ACTIVE -> SOFT_DELETED -> RESTORED (back to ACTIVE)
// or HARD_DELETED (terminal). A pending DeletionRequest can overlay either of
// the first two states; it is cancelled when the target is restored and
// confirmed when a hard delete completes.
package recovery

import (
	"context"
	"time"
)

// DeletionRequest statuses.
const (
	RequestPending   = "PENDING"
	RequestRequested = "REQUESTED"
	RequestConfirmed = "CONFIRMED"
	RequestCancelled = "CANCELLED"
)

// DeletionRequest records that an operator asked for a record to be removed,
// pending review. AuditLogID back-references the DELETE_REQUEST audit record.
type DeletionRequest struct {
	ID          int64      `json:"id"`
	TargetType  string     `json:"target_type"`
	TargetID    string     `json:"target_id"`
	ActorID     string     `json:"actor_id"`
	ActorName   string     `json:"actor_name"`
	Reason      string     `json:"reason"`
	Status      string     `json:"status"`
	AuditLogID  int64      `json:"audit_log_id"`
	CreatedAt   time.Time  `json:"created_at"`
	ConfirmedBy string     `json:"confirmed_by,omitempty"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
}

// RequestStore persists deletion requests. Create assigns the ID.
type RequestStore interface {
	Create(ctx context.Context, req *DeletionRequest) error
	List(ctx context.Context, status string, page, size int) ([]DeletionRequest, int, error)
	// CancelOpen marks every PENDING/REQUESTED request for the target as
	// CANCELLED and returns how many were cancelled.
	CancelOpen(ctx context.Context, targetType, targetID string) (int, error)
	// ConfirmOpen closes every PENDING/REQUESTED request for the target as
	// CONFIRMED by the given actor.
	ConfirmOpen(ctx context.Context, targetType, targetID, confirmedBy string, at time.Time) (int, error)
}

// Hard-delete reason taxonomy. OTHER requires free-text; every other code
// substitutes its default description.
const (
	ReasonDuplicate     = "DUPLICATE_RECORD"
	ReasonWrongTarget   = "WRONG_TARGET"
	ReasonUserRequested = "USER_REQUESTED"
	ReasonTestData      = "TEST_DATA"
	ReasonOther         = "OTHER"
)

var reasonDescriptions = map[string]string{
	ReasonDuplicate:     "Duplicate record",
	ReasonWrongTarget:   "Wrong target record",
	ReasonUserRequested: "Erasure requested by the data subject",
	ReasonTestData:      "Test data",
	ReasonOther:         "Other reason",
}

// ConfirmToken is the literal a caller must echo to authorize a hard delete.
const ConfirmToken = "CONFIRM_DELETE"

// HardDeleteInput carries the parameters of one hard-delete request.
type HardDeleteInput struct {
	TargetType string `json:"target_type"`
	TargetID   string `json:"target_id"`
	Confirm    string `json:"confirm"`
	ReasonCode string `json:"reason_code"`
	ReasonText string `json:"reason"`
}

// HardDeleteOutcome reports a completed hard delete.
type HardDeleteOutcome struct {
	TargetType string `json:"target_type"`
	TargetID   string `json:"target_id"`
	ReasonCode string `json:"reason_code"`
	AuditLogID int64  `json:"audit_log_id"`
}
