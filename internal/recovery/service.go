package recovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ams/internal/applicant"
	"ams/internal/audit"
	"ams/pkg/requestcontext"
	"ams/pkg/sentinel"
	"ams/pkg/sqltx"
)

// Validation errors rejected before any mutation is attempted.
var (
	ErrConfirmRequired    = errors.New("hard delete not confirmed")
	ErrUnknownReason      = errors.New("unrecognized reason code")
	ErrReasonTextRequired = errors.New("reason text required for OTHER")
	ErrUnsupportedTarget  = errors.New("unsupported target type")
)

// Service is the recovery workflow: restore from an audit record, soft
// delete, deletion requests, and irreversible hard delete.
type Service struct {
	audits     audit.Store
	writer     *audit.Writer
	applicants applicant.Store
	requests   RequestStore
	runner     sqltx.Runner
	log        *slog.Logger
}

func NewService(audits audit.Store, writer *audit.Writer, applicants applicant.Store, requests RequestStore, runner sqltx.Runner, log *slog.Logger) (*Service, error) {
	if audits == nil {
		return nil, fmt.Errorf("audit store is required")
	}
	if writer == nil {
		return nil, fmt.Errorf("audit writer is required")
	}
	if applicants == nil {
		return nil, fmt.Errorf("applicant store is required")
	}
	if requests == nil {
		return nil, fmt.Errorf("deletion request store is required")
	}
	if runner == nil {
		runner = sqltx.Noop{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		audits:     audits,
		writer:     writer,
		applicants: applicants,
		requests:   requests,
		runner:     runner,
		log:        log,
	}, nil
}

// Restore reconstructs the target of an audit record from the record's
// before-snapshot and applies it. Restoring from a soft-delete-class record
// also clears every deletion marker explicitly, since the snapshot predates
// the deletion and may not carry those keys. Idempotent: restoring twice from
// the same record re-applies the same values without error.
//
// All checks run inside the same transaction that performs the write, so a
// restore racing a hard delete on the same target cannot both succeed: the
// loser sees either the missing row or the terminal marker.
func (s *Service) Restore(ctx context.Context, auditRecordID int64) (*applicant.Applicant, error) {
	var restored *applicant.Applicant

	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		rec, err := s.audits.FindByID(ctx, auditRecordID)
		if err != nil {
			return fmt.Errorf("load audit record: %w", err)
		}
		if rec.TargetType == "" || rec.TargetID == "" {
			return fmt.Errorf("audit record %d carries no target reference: %w", rec.ID, sentinel.ErrInvalidState)
		}
		// Hard-deleted targets can never come back; this is terminal and
		// non-retryable.
		if rec.Action == audit.ActionDeleteHard || rec.MarksHardDeleted() {
			return fmt.Errorf("target was hard-deleted: %w", sentinel.ErrGone)
		}
		if rec.TargetType != applicant.TargetType {
			return fmt.Errorf("restore for %s: %w", rec.TargetType, ErrUnsupportedTarget)
		}

		a, err := s.applicants.Get(ctx, rec.TargetID)
		if err != nil {
			return fmt.Errorf("load restore target: %w", err)
		}

		applied := make(map[string]any, len(rec.PrevValues))
		for k, v := range rec.PrevValues {
			if a.ApplyField(k, v) {
				applied[k] = v
			}
		}
		if rec.IsSoftDeleteClass() {
			a.ClearDeletionMarkers()
			applied["deleted_at"] = nil
			applied["deleted_by"] = ""
			applied["deleted_reason"] = ""
		}
		a.SyncFullName()
		applied["full_name"] = a.FullName
		a.UpdatedAt = requestcontext.Now(ctx)

		if err := s.applicants.Save(ctx, a); err != nil {
			return fmt.Errorf("apply restored snapshot: %w", err)
		}

		cancelled, err := s.requests.CancelOpen(ctx, rec.TargetType, rec.TargetID)
		if err != nil {
			return fmt.Errorf("cancel open deletion requests: %w", err)
		}
		if cancelled > 0 {
			s.log.InfoContext(ctx, "cancelled deletion requests on restore",
				"target_id", rec.TargetID, "count", cancelled)
		}

		if _, err := s.writer.Write(ctx, audit.Entry{
			Action:     audit.ActionRestore,
			TargetType: rec.TargetType,
			TargetID:   rec.TargetID,
			Prev:       rec.NewValues,
			New:        applied,
		}); err != nil {
			return err
		}

		restored = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "restored applicant from audit record",
		"audit_id", auditRecordID, "student_code", restored.StudentCode)
	return restored, nil
}

// SoftDelete marks an applicant deleted without removing the row, capturing a
// full before-snapshot in the audit log.
func (s *Service) SoftDelete(ctx context.Context, studentCode, reason string) (*applicant.Applicant, error) {
	var deleted *applicant.Applicant

	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		a, err := s.applicants.Get(ctx, studentCode)
		if err != nil {
			return fmt.Errorf("load applicant: %w", err)
		}
		if a.IsSoftDeleted() {
			return fmt.Errorf("applicant %s already deleted: %w", studentCode, sentinel.ErrConflict)
		}

		before := a.Snapshot()
		now := requestcontext.Now(ctx)
		a.DeletedAt = &now
		a.DeletedBy = requestcontext.ActorName(ctx)
		a.DeletedReason = reason
		a.UpdatedAt = now

		if err := s.applicants.Save(ctx, a); err != nil {
			return fmt.Errorf("save soft delete: %w", err)
		}

		if _, err := s.writer.Write(ctx, audit.Entry{
			Action:     audit.ActionDeleteSoft,
			TargetType: applicant.TargetType,
			TargetID:   studentCode,
			Prev:       before,
			New: map[string]any{
				"deleted_at":     now.Format(time.RFC3339),
				"deleted_by":     a.DeletedBy,
				"deleted_reason": reason,
			},
		}); err != nil {
			return err
		}

		deleted = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

// RequestDelete records that an operator wants the applicant removed, pending
// review. The created DeletionRequest back-references its audit record.
func (s *Service) RequestDelete(ctx context.Context, studentCode, reason string) (*DeletionRequest, error) {
	var req *DeletionRequest

	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		a, err := s.applicants.Get(ctx, studentCode)
		if err != nil {
			return fmt.Errorf("load applicant: %w", err)
		}

		rec, err := s.writer.Write(ctx, audit.Entry{
			Action:     audit.ActionDeleteRequest,
			TargetType: applicant.TargetType,
			TargetID:   a.StudentCode,
			New:        map[string]any{"reason": reason},
		})
		if err != nil {
			return err
		}

		req = &DeletionRequest{
			TargetType: applicant.TargetType,
			TargetID:   a.StudentCode,
			ActorID:    requestcontext.ActorID(ctx),
			ActorName:  requestcontext.ActorName(ctx),
			Reason:     reason,
			Status:     RequestPending,
			AuditLogID: rec.ID,
			CreatedAt:  requestcontext.Now(ctx),
		}
		if err := s.requests.Create(ctx, req); err != nil {
			return fmt.Errorf("create deletion request: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

// ListDeletionRequests pages through deletion requests, optionally filtered
// by status.
func (s *Service) ListDeletionRequests(ctx context.Context, status string, page, size int) ([]DeletionRequest, int, error) {
	return s.requests.List(ctx, status, page, size)
}

// HardDelete irreversibly removes an applicant and its owned documents.
// Preconditions (confirmation literal, reason taxonomy) are validated before
// any mutation; the snapshot, child deletes, entity delete, audit append, and
// request confirmation all commit atomically.
func (s *Service) HardDelete(ctx context.Context, in HardDeleteInput) (HardDeleteOutcome, error) {
	if in.Confirm != ConfirmToken {
		return HardDeleteOutcome{}, ErrConfirmRequired
	}
	desc, ok := reasonDescriptions[in.ReasonCode]
	if !ok {
		return HardDeleteOutcome{}, fmt.Errorf("%q: %w", in.ReasonCode, ErrUnknownReason)
	}
	reason := desc
	if in.ReasonCode == ReasonOther {
		if in.ReasonText == "" {
			return HardDeleteOutcome{}, ErrReasonTextRequired
		}
		reason = in.ReasonText
	}
	if in.TargetType != applicant.TargetType {
		return HardDeleteOutcome{}, fmt.Errorf("hard delete for %s: %w", in.TargetType, ErrUnsupportedTarget)
	}

	var outcome HardDeleteOutcome

	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		a, err := s.applicants.Get(ctx, in.TargetID)
		if err != nil {
			return fmt.Errorf("load hard-delete target: %w", err)
		}

		before := a.Snapshot()
		docs, err := s.applicants.ListDocs(ctx, a.StudentCode)
		if err != nil {
			return fmt.Errorf("snapshot applicant docs: %w", err)
		}
		if len(docs) > 0 {
			docSnaps := make([]any, len(docs))
			for i, d := range docs {
				docSnaps[i] = map[string]any{
					"code":         d.Code,
					"display_name": d.DisplayName,
					"quantity":     d.Quantity,
					"order_no":     d.OrderNo,
				}
			}
			before["docs"] = docSnaps
		}

		// Children first, then the entity, one atomic unit.
		if err := s.applicants.DeleteDocs(ctx, a.StudentCode); err != nil {
			return fmt.Errorf("delete applicant docs: %w", err)
		}
		if err := s.applicants.Delete(ctx, a.StudentCode); err != nil {
			return fmt.Errorf("delete applicant: %w", err)
		}

		rec, err := s.writer.Write(ctx, audit.Entry{
			Action:     audit.ActionDeleteHard,
			TargetType: applicant.TargetType,
			TargetID:   a.StudentCode,
			Prev:       before,
			New: map[string]any{
				"hard_deleted": true,
				"reason_code":  in.ReasonCode,
				"reason":       reason,
			},
		})
		if err != nil {
			return err
		}

		if _, err := s.requests.ConfirmOpen(ctx, applicant.TargetType, a.StudentCode,
			requestcontext.ActorName(ctx), requestcontext.Now(ctx)); err != nil {
			return fmt.Errorf("confirm open deletion requests: %w", err)
		}

		outcome = HardDeleteOutcome{
			TargetType: applicant.TargetType,
			TargetID:   a.StudentCode,
			ReasonCode: in.ReasonCode,
			AuditLogID: rec.ID,
		}
		return nil
	})
	if err != nil {
		return HardDeleteOutcome{}, err
	}

	s.log.InfoContext(ctx, "hard-deleted applicant",
		"student_code", outcome.TargetID, "reason_code", outcome.ReasonCode)
	return outcome, nil
}
