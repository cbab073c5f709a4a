package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"ams/internal/audit/compact"
	"ams/internal/audit/redact"
	"ams/internal/audit/sign"
	"ams/pkg/requestcontext"
)

// rawValueKey wraps payloads that arrive as something other than a mapping.
const rawValueKey = "_raw"

// Entry is one audit write request. Prev and New accept whatever shape the
// caller has at hand: a mapping, a JSON string, a scalar, or nil.
type Entry struct {
	Action     Action
	TargetType string
	TargetID   string
	// Status defaults to SUCCESS when empty.
	Status Status
	Prev   any
	New    any
}

// Observer is notified after each successful append. Implemented by the
// metrics registry; nil disables observation.
type Observer interface {
	AuditRecordWritten(action, status string)
}

// Writer orchestrates redaction, compaction, signing, and context extraction
// for every audit record. It never commits: the append participates in
// whatever transaction the caller placed in the context, so the record is
// atomic with the business mutation it describes.
type Writer struct {
	store     Store
	redactor  redact.Redactor
	compactor compact.Compactor
	signer    sign.Signer
	obs       Observer
	log       *slog.Logger
}

func NewWriter(store Store, redactor redact.Redactor, compactor compact.Compactor, signer sign.Signer, obs Observer, log *slog.Logger) (*Writer, error) {
	if store == nil {
		return nil, fmt.Errorf("audit store is required")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Writer{
		store:     store,
		redactor:  redactor,
		compactor: compactor,
		signer:    signer,
		obs:       obs,
		log:       log,
	}, nil
}

// Write appends exactly one record to the log. Actor identity, IP, path, and
// correlation id come from the request context; their absence never blocks
// the write. Redaction and compaction degrade to safe stubs rather than
// failing, so the only errors that propagate are store-level ones.
func (w *Writer) Write(ctx context.Context, e Entry) (Record, error) {
	status := e.Status
	if status == "" {
		status = StatusSuccess
	}

	prev := w.compactor.Fit(w.redactor.Map(normalize(e.Prev)))
	next := w.compactor.Fit(w.redactor.Map(normalize(e.New)))

	rec := Record{
		Action:        e.Action,
		Status:        status,
		TargetType:    e.TargetType,
		TargetID:      e.TargetID,
		PrevValues:    prev,
		NewValues:     next,
		ActorID:       requestcontext.ActorID(ctx),
		ActorName:     requestcontext.ActorName(ctx),
		IPAddress:     requestcontext.ClientIP(ctx),
		Path:          requestcontext.Path(ctx),
		CorrelationID: requestcontext.CorrelationID(ctx),
		OccurredAt:    requestcontext.Now(ctx),
	}
	rec.Signature = w.signer.Sign(sign.Payload{
		Action:        string(rec.Action),
		Status:        string(rec.Status),
		TargetType:    rec.TargetType,
		TargetID:      rec.TargetID,
		CorrelationID: rec.CorrelationID,
		PrevValues:    rec.PrevValues,
		NewValues:     rec.NewValues,
	})

	if err := w.store.Append(ctx, &rec); err != nil {
		return Record{}, fmt.Errorf("append audit record: %w", err)
	}
	if w.obs != nil {
		w.obs.AuditRecordWritten(string(rec.Action), string(rec.Status))
	}

	w.log.DebugContext(ctx, "audit record written",
		"audit_id", rec.ID,
		"action", rec.Action,
		"target_type", rec.TargetType,
		"target_id", rec.TargetID,
		"correlation_id", rec.CorrelationID,
	)
	return rec, nil
}

// SignatureValid recomputes the signature for an existing record, letting the
// journal detail view flag entries whose stored signature no longer matches.
func (w *Writer) SignatureValid(rec Record) bool {
	return w.signer.Verify(sign.Payload{
		Action:        string(rec.Action),
		Status:        string(rec.Status),
		TargetType:    rec.TargetType,
		TargetID:      rec.TargetID,
		CorrelationID: rec.CorrelationID,
		PrevValues:    rec.PrevValues,
		NewValues:     rec.NewValues,
	}, rec.Signature)
}

// normalize coerces an arbitrary payload to a mapping: nil becomes an empty
// map, a string is parsed as JSON when possible, and any other scalar is
// wrapped under the raw-value key. The invariant downstream is that both
// payload columns are always mappings, never null and never raw user objects.
func normalize(v any) map[string]any {
	switch t := v.(type) {
	case nil:
		return map[string]any{}
	case map[string]any:
		return t
	case string:
		var parsed any
		if err := json.Unmarshal([]byte(t), &parsed); err == nil {
			if m, ok := parsed.(map[string]any); ok {
				return m
			}
			return map[string]any{rawValueKey: parsed}
		}
		return map[string]any{rawValueKey: t}
	default:
		return map[string]any{rawValueKey: v}
	}
}
