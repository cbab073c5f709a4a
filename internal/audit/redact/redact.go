// Package redact scrubs sensitive values from nested payloads before they are
// persisted to the audit log. Redaction is pure and idempotent: running the
// same payload through twice yields the same result.
package redact

import (
	"fmt"
	"strings"
	"time"
)

// Marker replaces every value stored under a sensitive key.
const Marker = "***REDACTED***"

// Config is the immutable redaction configuration. Keys are matched
// case-insensitively against map keys at every nesting level.
type Config struct {
	Keys   map[string]struct{}
	Marker string
}

// DefaultConfig returns the fixed sensitive-key set used for audit payloads.
func DefaultConfig() Config {
	keys := []string{
		"password",
		"password_hash",
		"reset_password_hash",
		"new_password",
		"old_password",
		"token",
		"access_token",
		"refresh_token",
		"id_token",
		"secret",
		"client_secret",
		"api_key",
		"key",
		"otp",
		"pin",
		"credential",
	}
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return Config{Keys: set, Marker: Marker}
}

// Redactor applies the configured key set to arbitrary payload trees.
type Redactor struct {
	cfg Config
}

func New(cfg Config) Redactor {
	if cfg.Marker == "" {
		cfg.Marker = Marker
	}
	return Redactor{cfg: cfg}
}

// Map redacts a payload mapping. A nil input yields an empty map so callers
// never persist a null payload column.
func (r Redactor) Map(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if r.sensitive(k) {
			out[k] = r.cfg.Marker
			continue
		}
		out[k] = r.Value(v)
	}
	return out
}

// Value redacts a single value of any supported shape. Mappings and sequences
// recurse; scalars pass through; anything else fails closed by being
// stringified rather than propagating an error into the audit write.
func (r Redactor) Value(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case map[string]any:
		return r.Map(t)
	case map[string]string:
		out := make(map[string]any, len(t))
		for k, s := range t {
			if r.sensitive(k) {
				out[k] = r.cfg.Marker
			} else {
				out[k] = s
			}
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = r.Value(e)
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = e
		}
		return out
	case string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return t
	case time.Time:
		return t.Format(time.RFC3339)
	default:
		return fmt.Sprint(t)
	}
}

func (r Redactor) sensitive(key string) bool {
	_, ok := r.cfg.Keys[strings.ToLower(key)]
	return ok
}
