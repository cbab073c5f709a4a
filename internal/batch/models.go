// Package batch implements the diff engine behind bulk applicant updates:
// per-row normalization, validation, minimal change-set computation, and one
// audit record per mutated row, all under a single correlation id.
package batch

// Item is one proposed update: the target key plus a sparse set of field
// values. Only keys present in Fields are considered proposed.
type Item struct {
	StudentCode string            `json:"student_code"`
	Fields      map[string]string `json:"fields"`
}

// RowStatus classifies the outcome of one item.
type RowStatus string

const (
	RowUpdated     RowStatus = "UPDATED"
	RowSkipped     RowStatus = "SKIPPED"
	RowNotFound    RowStatus = "NOT_FOUND"
	RowSoftDeleted RowStatus = "SOFT_DELETED"
	RowInvalid     RowStatus = "INVALID"
)

// RowResult is the per-row outcome. ChangedFields is keyed by human-readable
// labels for display; values are the redactable new values.
type RowResult struct {
	StudentCode   string         `json:"student_code"`
	Status        RowStatus      `json:"status"`
	ChangedFields map[string]any `json:"changed_fields,omitempty"`
	Errors        []string       `json:"errors,omitempty"`
}

// Result aggregates a whole batch run. OK is false when the batch was aborted
// by stop_on_error; the rows processed up to the abort are still reported.
type Result struct {
	OK            bool        `json:"ok"`
	CorrelationID string      `json:"correlation_id"`
	DryRun        bool        `json:"dry_run"`
	Total         int         `json:"total"`
	Updated       int         `json:"updated"`
	Skipped       int         `json:"skipped"`
	NotFound      int         `json:"not_found"`
	SoftDeleted   int         `json:"soft_deleted"`
	Invalid       int         `json:"invalid"`
	Rows          []RowResult `json:"results"`
}

// allowedFields is the closed set of updatable field names.
var allowedFields = map[string]struct{}{
	"family_name":   {},
	"given_name":    {},
	"full_name":     {},
	"gender":        {},
	"ethnicity":     {},
	"date_of_birth": {},
	"phone":         {},
	"email":         {},
	"program":       {},
	"intake":        {},
	"cohort":        {},
	"notes":         {},
}

// fieldLabels maps field names to the labels shown in row results.
var fieldLabels = map[string]string{
	"family_name":   "Family name",
	"given_name":    "Given name",
	"full_name":     "Full name",
	"gender":        "Gender",
	"ethnicity":     "Ethnicity",
	"date_of_birth": "Date of birth",
	"phone":         "Phone",
	"email":         "Email",
	"program":       "Program",
	"intake":        "Intake",
	"cohort":        "Cohort",
	"notes":         "Notes",
}

func label(field string) string {
	if l, ok := fieldLabels[field]; ok {
		return l
	}
	return field
}
