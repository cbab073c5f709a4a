// Package account manages staff accounts: creation, profile updates,
// activation toggling, password lifecycle, and login. Every mutation is
// audited under target type User.
package account

import (
	"context"
	"time"
)

// TargetType identifies staff accounts in audit records.
const TargetType = "User"

// Staff roles.
const (
	RoleAdmin        = "Admin"
	RoleStaff        = "Staff"
	RoleCollaborator = "Collaborator"
)

var validRoles = map[string]struct{}{
	RoleAdmin:        {},
	RoleStaff:        {},
	RoleCollaborator: {},
}

// User is one staff account. Username is the immutable key. PasswordHash
// never serializes; password material reaches the audit log only as the
// redaction marker.
type User struct {
	Username           string    `json:"username"`
	FamilyName         string    `json:"family_name"`
	GivenName          string    `json:"given_name"`
	FullName           string    `json:"full_name"`
	Email              string    `json:"email"`
	Role               string    `json:"role"`
	Active             bool      `json:"active"`
	PasswordHash       string    `json:"-"`
	MustChangePassword bool      `json:"must_change_password"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Snapshot returns the auditable view of the account. The password hash is
// deliberately absent: even hashed material stays out of the journal.
func (u *User) Snapshot() map[string]any {
	return map[string]any{
		"username":             u.Username,
		"family_name":          u.FamilyName,
		"given_name":           u.GivenName,
		"full_name":            u.FullName,
		"email":                u.Email,
		"role":                 u.Role,
		"active":               u.Active,
		"must_change_password": u.MustChangePassword,
	}
}

// Store persists staff accounts. Save is an upsert keyed by username.
type Store interface {
	Get(ctx context.Context, username string) (*User, error)
	Save(ctx context.Context, u *User) error
	List(ctx context.Context) ([]User, error)
}
