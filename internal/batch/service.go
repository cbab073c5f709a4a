package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"ams/internal/applicant"
	"ams/internal/audit"
	"ams/pkg/requestcontext"
	"ams/pkg/sentinel"
	"ams/pkg/sqltx"
)

// ErrEmptyBatch rejects a batch with no items before any work starts.
var ErrEmptyBatch = errors.New("batch contains no items")

// errStopped aborts the batch transaction under stop_on_error. It never
// reaches callers; ApplyBatch translates it into ok=false.
var errStopped = errors.New("batch stopped on error")

// Service applies batch updates row by row inside one transaction.
type Service struct {
	applicants applicant.Store
	writer     *audit.Writer
	runner     sqltx.Runner
	log        *slog.Logger
}

func NewService(applicants applicant.Store, writer *audit.Writer, runner sqltx.Runner, log *slog.Logger) (*Service, error) {
	if applicants == nil {
		return nil, fmt.Errorf("applicant store is required")
	}
	if writer == nil {
		return nil, fmt.Errorf("audit writer is required")
	}
	if runner == nil {
		runner = sqltx.Noop{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{applicants: applicants, writer: writer, runner: runner, log: log}, nil
}

// ApplyBatch processes items in input order. Every row is classified; rows
// that normalize and differ are applied (unless dryRun) and audited under a
// shared correlation id. stopOnError aborts on the first unexpected row
// error, rolling back the whole batch and returning the partial result with
// ok=false. A dry run always rolls its transaction back, so preview audit
// rows leave no persisted state (see DESIGN.md).
func (s *Service) ApplyBatch(ctx context.Context, items []Item, stopOnError, dryRun bool) (Result, error) {
	if len(items) == 0 {
		return Result{}, ErrEmptyBatch
	}

	corr := requestcontext.CorrelationID(ctx)
	if corr == "" {
		corr = uuid.New().String()
		ctx = requestcontext.WithCorrelationID(ctx, corr)
	}

	res := Result{CorrelationID: corr, DryRun: dryRun, Total: len(items)}

	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		for _, item := range items {
			row, err := s.processItem(ctx, item, dryRun)
			if err != nil {
				s.log.ErrorContext(ctx, "batch row failed",
					"student_code", item.StudentCode,
					"correlation_id", corr,
					"error", err,
				)
				res.Rows = append(res.Rows, RowResult{
					StudentCode: item.StudentCode,
					Status:      RowInvalid,
					Errors:      []string{err.Error()},
				})
				res.Invalid++
				if stopOnError {
					return errStopped
				}
				continue
			}
			res.Rows = append(res.Rows, row)
			switch row.Status {
			case RowUpdated:
				res.Updated++
			case RowSkipped:
				res.Skipped++
			case RowNotFound:
				res.NotFound++
			case RowSoftDeleted:
				res.SoftDeleted++
			case RowInvalid:
				res.Invalid++
			}
		}
		res.OK = true
		if dryRun {
			return sqltx.ErrRollback
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, errStopped) {
			res.OK = false
			return res, nil
		}
		return res, err
	}
	return res, nil
}

// processItem classifies one row. A returned error is an unexpected failure
// (store or audit append), not a normal INVALID classification.
func (s *Service) processItem(ctx context.Context, item Item, dryRun bool) (RowResult, error) {
	code, err := NormalizeStudentCode(item.StudentCode)
	if err != nil {
		return RowResult{
			StudentCode: item.StudentCode,
			Status:      RowInvalid,
			Errors:      []string{"student_code: " + err.Error()},
		}, nil
	}

	a, err := s.applicants.Get(ctx, code)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return RowResult{StudentCode: code, Status: RowNotFound}, nil
		}
		return RowResult{}, err
	}
	if a.IsSoftDeleted() {
		return RowResult{StudentCode: code, Status: RowSoftDeleted}, nil
	}

	changes, rowErrs := diff(a, item.Fields)
	if len(rowErrs) > 0 {
		return RowResult{StudentCode: code, Status: RowInvalid, Errors: rowErrs}, nil
	}
	if len(changes) == 0 {
		return RowResult{StudentCode: code, Status: RowSkipped, ChangedFields: map[string]any{}}, nil
	}

	// Before-snapshot limited to exactly the changing fields.
	prev := make(map[string]any, len(changes))
	for k := range changes {
		if v, ok := a.FieldValue(k); ok {
			prev[k] = v
		}
	}

	if !dryRun {
		for k, v := range changes {
			a.ApplyField(k, v)
		}
		a.UpdatedAt = requestcontext.Now(ctx)
		if err := s.applicants.Save(ctx, a); err != nil {
			return RowResult{}, err
		}
	}

	action := audit.ActionBatchUpdate
	if dryRun {
		action = audit.ActionBatchUpdatePreview
	}
	changeSet := make(map[string]any, len(changes))
	for k, v := range changes {
		changeSet[k] = v
	}
	if _, err := s.writer.Write(ctx, audit.Entry{
		Action:     action,
		TargetType: applicant.TargetType,
		TargetID:   code,
		Prev:       prev,
		New:        changeSet,
	}); err != nil {
		return RowResult{}, err
	}

	labeled := make(map[string]any, len(changes))
	for k, v := range changes {
		labeled[label(k)] = v
	}
	return RowResult{StudentCode: code, Status: RowUpdated, ChangedFields: labeled}, nil
}

// diff normalizes proposed values and returns only the fields whose
// normalized value differs from the entity's current value. The derived full
// name is recomputed whenever a component name changes and included iff it
// also differs.
func diff(a *applicant.Applicant, fields map[string]string) (map[string]string, []string) {
	var errs []string
	norm := make(map[string]string, len(fields))

	for k, v := range fields {
		if _, ok := allowedFields[k]; !ok {
			errs = append(errs, k+": unknown field")
			continue
		}
		switch k {
		case "family_name", "given_name", "full_name":
			norm[k] = TitleCase(v)
		case "date_of_birth":
			if s := NormSpace(v); s == "" {
				norm[k] = ""
			} else if d, err := NormalizeDate(s); err != nil {
				errs = append(errs, "date_of_birth: "+err.Error())
			} else {
				norm[k] = d
			}
		case "gender":
			if s := NormSpace(v); s == "" {
				norm[k] = ""
			} else if err := validateGender(s); err != nil {
				errs = append(errs, "gender: "+err.Error())
			} else {
				norm[k] = s
			}
		case "phone":
			if s := NormSpace(v); s == "" {
				norm[k] = ""
			} else if err := validatePhone(s); err != nil {
				errs = append(errs, "phone: "+err.Error())
			} else {
				norm[k] = s
			}
		case "email":
			if s := NormSpace(v); s == "" {
				norm[k] = ""
			} else if err := validateEmail(s); err != nil {
				errs = append(errs, "email: "+err.Error())
			} else {
				norm[k] = s
			}
		default:
			norm[k] = NormSpace(v)
		}
	}
	if len(errs) > 0 {
		return nil, errs
	}

	// Re-derive the combined display name from its sources when either one is
	// part of the proposal; an explicit full_name proposal is overridden so
	// the stored name never drifts from its components.
	_, famIn := fields["family_name"]
	_, givIn := fields["given_name"]
	if famIn || givIn {
		fam, giv := a.FamilyName, a.GivenName
		if famIn {
			fam = norm["family_name"]
		}
		if givIn {
			giv = norm["given_name"]
		}
		norm["full_name"] = TitleCase(applicant.JoinName(fam, giv))
	}

	changed := make(map[string]string)
	for k, v := range norm {
		cur, ok := a.FieldValue(k)
		if !ok {
			continue
		}
		if strings.TrimSpace(cur) != strings.TrimSpace(v) {
			changed[k] = v
		}
	}
	return changed, nil
}
