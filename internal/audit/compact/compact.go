// Package compact bounds the serialized size of audit payloads through a
// deterministic degradation ladder. It never fails: oversized or unencodable
// input collapses to a minimal stub instead of aborting the audit write.
package compact

import (
	"encoding/json"
	"strings"
)

// Markers appended or substituted by the degradation steps.
const (
	truncatedSuffix = "...(truncated)"
	listGapMarker   = "...(truncated list)..."
	droppedMarker   = "...(dropped)"
	truncatedKey    = "_truncated"
	noteKey         = "_note"
	stubNote        = "payload too large; truncated to fit"
)

// Config is the immutable compaction configuration.
type Config struct {
	// MaxBytes is the budget for the canonical JSON serialization.
	MaxBytes int
	// StringLimit caps individual string values (step 2).
	StringLimit int
	// Sequences longer than ListLimit are shrunk to ListHead + gap + ListTail
	// elements (step 3).
	ListLimit int
	ListHead  int
	ListTail  int
	// HeavyKeys names top-level fields whose values are dropped outright when
	// truncation alone is not enough (step 4).
	HeavyKeys map[string]struct{}
}

// DefaultConfig mirrors the limits the log store was sized for: ~200 KB per
// payload column.
func DefaultConfig() Config {
	heavy := []string{"_raw", "stack", "trace", "stacktrace", "html", "content", "body"}
	set := make(map[string]struct{}, len(heavy))
	for _, k := range heavy {
		set[k] = struct{}{}
	}
	return Config{
		MaxBytes:    200_000,
		StringLimit: 2048,
		ListLimit:   200,
		ListHead:    100,
		ListTail:    50,
		HeavyKeys:   set,
	}
}

// Compactor shrinks payload mappings to fit the configured byte budget.
type Compactor struct {
	cfg Config
}

func New(cfg Config) Compactor {
	return Compactor{cfg: cfg}
}

// Fit returns a mapping whose canonical JSON form is within the byte budget.
// Input already within budget is returned unchanged. Each degradation step is
// re-checked against the budget before escalating; the terminal stub
// guarantees the function always succeeds.
func (c Compactor) Fit(m map[string]any) map[string]any {
	if m == nil {
		m = map[string]any{}
	}
	if c.within(m) {
		return m
	}

	truncated := c.truncateMap(m)
	if c.within(truncated) {
		return truncated
	}

	dropped := c.dropHeavy(truncated)
	dropped[truncatedKey] = true
	if c.within(dropped) {
		return dropped
	}

	return map[string]any{
		noteKey:      stubNote,
		truncatedKey: true,
	}
}

// within reports whether the canonical serialization fits the budget.
// Unencodable payloads count as oversized so they degrade to the stub.
func (c Compactor) within(m map[string]any) bool {
	raw, err := json.Marshal(m)
	if err != nil {
		return false
	}
	return len(raw) <= c.cfg.MaxBytes
}

func (c Compactor) truncateMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = c.truncateValue(v)
	}
	return out
}

func (c Compactor) truncateValue(v any) any {
	switch t := v.(type) {
	case string:
		if len(t) > c.cfg.StringLimit {
			return t[:c.cfg.StringLimit] + truncatedSuffix
		}
		return t
	case []any:
		if len(t) > c.cfg.ListLimit {
			shrunk := make([]any, 0, c.cfg.ListHead+c.cfg.ListTail+1)
			for _, e := range t[:c.cfg.ListHead] {
				shrunk = append(shrunk, c.truncateValue(e))
			}
			shrunk = append(shrunk, listGapMarker)
			for _, e := range t[len(t)-c.cfg.ListTail:] {
				shrunk = append(shrunk, c.truncateValue(e))
			}
			return shrunk
		}
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = c.truncateValue(e)
		}
		return out
	case map[string]any:
		return c.truncateMap(t)
	default:
		return v
	}
}

// dropHeavy replaces known oversize-prone top-level fields with a marker.
func (c Compactor) dropHeavy(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if _, heavy := c.cfg.HeavyKeys[strings.ToLower(k)]; heavy {
			out[k] = droppedMarker
			continue
		}
		out[k] = v
	}
	return out
}
