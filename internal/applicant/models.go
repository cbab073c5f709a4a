// Package applicant holds the admission-record entity and its persistence
// contract. Snapshots and field application go through a closed registry of
// named fields, so restore can replay historical payloads without runtime
// introspection and without tripping over keys the model no longer has.
package applicant

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// TargetType is the logical type name recorded in audit entries.
const TargetType = "Applicant"

// Applicant is one admission record. StudentCode is the primary key.
// DeletedAt is the single canonical soft-delete marker; DeletedBy and
// DeletedReason are informational companions cleared together with it.
type Applicant struct {
	StudentCode string `json:"student_code"`
	DossierCode string `json:"dossier_code"`
	ReceivedOn  string `json:"received_on"`

	FamilyName string `json:"family_name"`
	GivenName  string `json:"given_name"`
	// FullName is derived from FamilyName + GivenName and kept in sync on
	// every mutation path.
	FullName string `json:"full_name"`

	Gender      string `json:"gender"`
	Ethnicity   string `json:"ethnicity"`
	DateOfBirth string `json:"date_of_birth"`
	Phone       string `json:"phone"`
	Email       string `json:"email"`

	Program     string `json:"program"`
	Intake      string `json:"intake"`
	Cohort      string `json:"cohort"`
	PriorDegree string `json:"prior_degree"`
	Notes       string `json:"notes"`
	ReceivedBy  string `json:"received_by"`

	Status  string `json:"status"`
	Printed bool   `json:"printed"`

	DeletedAt     *time.Time `json:"deleted_at,omitempty"`
	DeletedBy     string     `json:"deleted_by,omitempty"`
	DeletedReason string     `json:"deleted_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Doc is an owned child record (one checklist document handed in with the
// dossier). Docs are removed together with their applicant on hard delete.
type Doc struct {
	ID          int64  `json:"id"`
	StudentCode string `json:"student_code"`
	Code        string `json:"code"`
	DisplayName string `json:"display_name"`
	Quantity    int    `json:"quantity"`
	OrderNo     int    `json:"order_no"`
}

// IsSoftDeleted is the single soft-delete predicate for this entity type.
func (a *Applicant) IsSoftDeleted() bool {
	return a.DeletedAt != nil
}

// ClearDeletionMarkers resets every soft-delete marker. Restore calls this
// explicitly instead of trusting the snapshot, which predates the deletion
// and may not carry these keys at all.
func (a *Applicant) ClearDeletionMarkers() {
	a.DeletedAt = nil
	a.DeletedBy = ""
	a.DeletedReason = ""
}

// SyncFullName re-derives the display name from its component fields.
// When both components are empty the existing FullName is kept, matching
// records imported before the name split.
func (a *Applicant) SyncFullName() {
	if n := JoinName(a.FamilyName, a.GivenName); n != "" {
		a.FullName = n
	}
}

// JoinName combines family and given name into the display form.
func JoinName(family, given string) string {
	parts := make([]string, 0, 2)
	if f := strings.TrimSpace(family); f != "" {
		parts = append(parts, f)
	}
	if g := strings.TrimSpace(given); g != "" {
		parts = append(parts, g)
	}
	return strings.Join(parts, " ")
}

// Snapshot returns the applicant's field values keyed by snapshot name. The
// result is what audit records persist as before-images and what restore
// replays through ApplyField.
func (a *Applicant) Snapshot() map[string]any {
	snap := map[string]any{
		"student_code":  a.StudentCode,
		"dossier_code":  a.DossierCode,
		"received_on":   a.ReceivedOn,
		"family_name":   a.FamilyName,
		"given_name":    a.GivenName,
		"full_name":     a.FullName,
		"gender":        a.Gender,
		"ethnicity":     a.Ethnicity,
		"date_of_birth": a.DateOfBirth,
		"phone":         a.Phone,
		"email":         a.Email,
		"program":       a.Program,
		"intake":        a.Intake,
		"cohort":        a.Cohort,
		"prior_degree":  a.PriorDegree,
		"notes":         a.Notes,
		"received_by":   a.ReceivedBy,
		"status":        a.Status,
		"printed":       a.Printed,
	}
	if a.DeletedAt != nil {
		snap["deleted_at"] = a.DeletedAt.Format(time.RFC3339)
		snap["deleted_by"] = a.DeletedBy
		snap["deleted_reason"] = a.DeletedReason
	}
	return snap
}

// fieldSetters is the closed set of snapshot keys this entity accepts,
// built at init time instead of probing struct fields at runtime.
var fieldSetters = map[string]func(*Applicant, any){
	"dossier_code":   func(a *Applicant, v any) { a.DossierCode = asString(v) },
	"received_on":    func(a *Applicant, v any) { a.ReceivedOn = asString(v) },
	"family_name":    func(a *Applicant, v any) { a.FamilyName = asString(v) },
	"given_name":     func(a *Applicant, v any) { a.GivenName = asString(v) },
	"full_name":      func(a *Applicant, v any) { a.FullName = asString(v) },
	"gender":         func(a *Applicant, v any) { a.Gender = asString(v) },
	"ethnicity":      func(a *Applicant, v any) { a.Ethnicity = asString(v) },
	"date_of_birth":  func(a *Applicant, v any) { a.DateOfBirth = asString(v) },
	"phone":          func(a *Applicant, v any) { a.Phone = asString(v) },
	"email":          func(a *Applicant, v any) { a.Email = asString(v) },
	"program":        func(a *Applicant, v any) { a.Program = asString(v) },
	"intake":         func(a *Applicant, v any) { a.Intake = asString(v) },
	"cohort":         func(a *Applicant, v any) { a.Cohort = asString(v) },
	"prior_degree":   func(a *Applicant, v any) { a.PriorDegree = asString(v) },
	"notes":          func(a *Applicant, v any) { a.Notes = asString(v) },
	"received_by":    func(a *Applicant, v any) { a.ReceivedBy = asString(v) },
	"status":         func(a *Applicant, v any) { a.Status = asString(v) },
	"printed":        func(a *Applicant, v any) { a.Printed = asBool(v) },
	"deleted_at":     func(a *Applicant, v any) { a.DeletedAt = asTimePtr(v) },
	"deleted_by":     func(a *Applicant, v any) { a.DeletedBy = asString(v) },
	"deleted_reason": func(a *Applicant, v any) { a.DeletedReason = asString(v) },
}

// ApplyField sets one field by snapshot key. Unknown keys are ignored and
// reported false, so extraneous snapshot entries never fail a restore.
func (a *Applicant) ApplyField(name string, v any) bool {
	set, ok := fieldSetters[name]
	if !ok {
		return false
	}
	set(a, v)
	return true
}

// FieldValue returns the string form of a field's current value, as used in
// change detection. The second result is false for unknown keys.
func (a *Applicant) FieldValue(name string) (string, bool) {
	switch name {
	case "student_code":
		return a.StudentCode, true
	case "dossier_code":
		return a.DossierCode, true
	case "received_on":
		return a.ReceivedOn, true
	case "family_name":
		return a.FamilyName, true
	case "given_name":
		return a.GivenName, true
	case "full_name":
		return a.FullName, true
	case "gender":
		return a.Gender, true
	case "ethnicity":
		return a.Ethnicity, true
	case "date_of_birth":
		return a.DateOfBirth, true
	case "phone":
		return a.Phone, true
	case "email":
		return a.Email, true
	case "program":
		return a.Program, true
	case "intake":
		return a.Intake, true
	case "cohort":
		return a.Cohort, true
	case "prior_degree":
		return a.PriorDegree, true
	case "notes":
		return a.Notes, true
	case "received_by":
		return a.ReceivedBy, true
	case "status":
		return a.Status, true
	default:
		return "", false
	}
}

func asString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

func asBool(v any) bool {
	b, ok := v.(bool)
	return ok && b
}

func asTimePtr(v any) *time.Time {
	switch t := v.(type) {
	case nil:
		return nil
	case time.Time:
		return &t
	case string:
		if t == "" {
			return nil
		}
		for _, layout := range []string{time.RFC3339, "2006-01-02"} {
			if parsed, err := time.Parse(layout, t); err == nil {
				return &parsed
			}
		}
		return nil
	default:
		return nil
	}
}

// Store is the applicant persistence contract. Save upserts every field.
type Store interface {
	Get(ctx context.Context, studentCode string) (*Applicant, error)
	Save(ctx context.Context, a *Applicant) error
	Delete(ctx context.Context, studentCode string) error
	ListDocs(ctx context.Context, studentCode string) ([]Doc, error)
	DeleteDocs(ctx context.Context, studentCode string) error
}
