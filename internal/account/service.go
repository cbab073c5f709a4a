package account

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"ams/internal/applicant"
	"ams/internal/audit"
	"ams/internal/batch"
	"ams/pkg/requestcontext"
	"ams/pkg/sentinel"
	"ams/pkg/sqltx"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrAccountDisabled    = errors.New("account is disabled")
	ErrUnknownRole        = errors.New("unrecognized role")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
)

// Service implements the staff account workflows.
type Service struct {
	users  Store
	writer *audit.Writer
	tokens *TokenIssuer
	runner sqltx.Runner
	log    *slog.Logger
}

func NewService(users Store, writer *audit.Writer, tokens *TokenIssuer, runner sqltx.Runner, log *slog.Logger) (*Service, error) {
	if users == nil {
		return nil, fmt.Errorf("account store is required")
	}
	if writer == nil {
		return nil, fmt.Errorf("audit writer is required")
	}
	if tokens == nil {
		return nil, fmt.Errorf("token issuer is required")
	}
	if runner == nil {
		runner = sqltx.Noop{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{users: users, writer: writer, tokens: tokens, runner: runner, log: log}, nil
}

// CreateInput carries the parameters for a new staff account.
type CreateInput struct {
	Username   string `json:"username"`
	FamilyName string `json:"family_name"`
	GivenName  string `json:"given_name"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	Password   string `json:"password"`
}

// Create registers a new staff account and audits it. Duplicate usernames are
// a conflict.
func (s *Service) Create(ctx context.Context, in CreateInput) (*User, error) {
	username := strings.ToLower(batch.NormSpace(in.Username))
	if username == "" {
		return nil, fmt.Errorf("username is required: %w", sentinel.ErrInvalidState)
	}
	if _, ok := validRoles[in.Role]; !ok {
		return nil, fmt.Errorf("%q: %w", in.Role, ErrUnknownRole)
	}
	if len(in.Password) < 8 {
		return nil, ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	var created *User
	err = s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.users.Get(ctx, username); err == nil {
			return fmt.Errorf("username %s taken: %w", username, sentinel.ErrConflict)
		} else if !errors.Is(err, sentinel.ErrNotFound) {
			return fmt.Errorf("check username: %w", err)
		}

		now := requestcontext.Now(ctx)
		u := &User{
			Username:     username,
			FamilyName:   batch.TitleCase(in.FamilyName),
			GivenName:    batch.TitleCase(in.GivenName),
			Email:        batch.NormSpace(in.Email),
			Role:         in.Role,
			Active:       true,
			PasswordHash: string(hash),
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		u.FullName = batch.TitleCase(applicant.JoinName(u.FamilyName, u.GivenName))

		if err := s.users.Save(ctx, u); err != nil {
			return fmt.Errorf("save account: %w", err)
		}
		if _, err := s.writer.Write(ctx, audit.Entry{
			Action:     audit.ActionCreate,
			TargetType: TargetType,
			TargetID:   u.Username,
			New:        u.Snapshot(),
		}); err != nil {
			return err
		}
		created = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// UpdateInput updates a staff profile. Nil pointers leave fields untouched.
type UpdateInput struct {
	FamilyName *string `json:"family_name"`
	GivenName  *string `json:"given_name"`
	Email      *string `json:"email"`
	Role       *string `json:"role"`
}

// Update applies a sparse profile update and audits the changed fields only.
func (s *Service) Update(ctx context.Context, username string, in UpdateInput) (*User, error) {
	if in.Role != nil {
		if _, ok := validRoles[*in.Role]; !ok {
			return nil, fmt.Errorf("%q: %w", *in.Role, ErrUnknownRole)
		}
	}

	var updated *User
	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		u, err := s.users.Get(ctx, username)
		if err != nil {
			return fmt.Errorf("load account: %w", err)
		}

		prev := map[string]any{}
		next := map[string]any{}
		set := func(field string, cur *string, v *string, norm func(string) string) {
			if v == nil {
				return
			}
			nv := norm(*v)
			if nv == *cur {
				return
			}
			prev[field] = *cur
			next[field] = nv
			*cur = nv
		}
		set("family_name", &u.FamilyName, in.FamilyName, batch.TitleCase)
		set("given_name", &u.GivenName, in.GivenName, batch.TitleCase)
		set("email", &u.Email, in.Email, batch.NormSpace)
		set("role", &u.Role, in.Role, func(s string) string { return s })

		_, famChanged := next["family_name"]
		_, givChanged := next["given_name"]
		if famChanged || givChanged {
			full := batch.TitleCase(applicant.JoinName(u.FamilyName, u.GivenName))
			if full != u.FullName {
				prev["full_name"] = u.FullName
				next["full_name"] = full
				u.FullName = full
			}
		}
		if len(next) == 0 {
			updated = u
			return nil
		}

		u.UpdatedAt = requestcontext.Now(ctx)
		if err := s.users.Save(ctx, u); err != nil {
			return fmt.Errorf("save account: %w", err)
		}
		if _, err := s.writer.Write(ctx, audit.Entry{
			Action:     audit.ActionUpdate,
			TargetType: TargetType,
			TargetID:   u.Username,
			Prev:       prev,
			New:        next,
		}); err != nil {
			return err
		}
		updated = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ToggleActive flips the account's active flag.
func (s *Service) ToggleActive(ctx context.Context, username string) (*User, error) {
	var updated *User
	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		u, err := s.users.Get(ctx, username)
		if err != nil {
			return fmt.Errorf("load account: %w", err)
		}
		was := u.Active
		u.Active = !was
		u.UpdatedAt = requestcontext.Now(ctx)

		if err := s.users.Save(ctx, u); err != nil {
			return fmt.Errorf("save account: %w", err)
		}
		if _, err := s.writer.Write(ctx, audit.Entry{
			Action:     audit.ActionUpdate,
			TargetType: TargetType,
			TargetID:   u.Username,
			Prev:       map[string]any{"active": was},
			New:        map[string]any{"active": u.Active},
		}); err != nil {
			return err
		}
		updated = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ResetPassword replaces the password with a generated one and forces a
// change on next login. The plaintext is returned exactly once for handover;
// the audit record only notes that a reset happened.
func (s *Service) ResetPassword(ctx context.Context, username string) (string, error) {
	plain, err := generatePassword()
	if err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	err = s.runner.RunInTx(ctx, func(ctx context.Context) error {
		u, err := s.users.Get(ctx, username)
		if err != nil {
			return fmt.Errorf("load account: %w", err)
		}
		u.PasswordHash = string(hash)
		u.MustChangePassword = true
		u.UpdatedAt = requestcontext.Now(ctx)

		if err := s.users.Save(ctx, u); err != nil {
			return fmt.Errorf("save account: %w", err)
		}
		_, err = s.writer.Write(ctx, audit.Entry{
			Action:     audit.ActionUpdate,
			TargetType: TargetType,
			TargetID:   u.Username,
			New:        map[string]any{"password_reset": true, "must_change_password": true},
		})
		return err
	})
	if err != nil {
		return "", err
	}
	return plain, nil
}

// ChangePassword verifies the current password and installs a new one,
// clearing any forced-change flag.
func (s *Service) ChangePassword(ctx context.Context, username, current, next string) error {
	if len(next) < 8 {
		return ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	return s.runner.RunInTx(ctx, func(ctx context.Context) error {
		u, err := s.users.Get(ctx, username)
		if err != nil {
			return fmt.Errorf("load account: %w", err)
		}
		if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(current)) != nil {
			return ErrInvalidCredentials
		}
		u.PasswordHash = string(hash)
		u.MustChangePassword = false
		u.UpdatedAt = requestcontext.Now(ctx)

		if err := s.users.Save(ctx, u); err != nil {
			return fmt.Errorf("save account: %w", err)
		}
		_, err = s.writer.Write(ctx, audit.Entry{
			Action:     audit.ActionUpdate,
			TargetType: TargetType,
			TargetID:   u.Username,
			New:        map[string]any{"password_changed": true},
		})
		return err
	})
}

// LoginResult is what a successful login returns.
type LoginResult struct {
	Token              string `json:"token"`
	MustChangePassword bool   `json:"must_change_password"`
	User               *User  `json:"user"`
}

// Login verifies credentials and issues a session token. Lookup and compare
// failures collapse into one error so responses don't reveal which usernames
// exist.
func (s *Service) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	u, err := s.users.Get(ctx, strings.ToLower(strings.TrimSpace(username)))
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("load account: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	if !u.Active {
		return nil, ErrAccountDisabled
	}

	token, err := s.tokens.Issue(u)
	if err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "staff login", "username", u.Username, "role", u.Role)
	return &LoginResult{Token: token, MustChangePassword: u.MustChangePassword, User: u}, nil
}

// List returns all staff accounts.
func (s *Service) List(ctx context.Context) ([]User, error) {
	return s.users.List(ctx)
}

// generatePassword returns a URL-safe random password.
func generatePassword() (string, error) {
	buf := make([]byte, 12)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate password: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
