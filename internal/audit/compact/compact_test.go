package compact

import (
	"encoding/json"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFitPassesSmallPayloadsUnchanged(t *testing.T) {
	c := New(DefaultConfig())
	in := map[string]any{"name": "Lan", "count": float64(3)}

	out := c.Fit(in)
	assert.Equal(t, in, out)
}

func TestFitTruncatesLongStrings(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxBytes = 3000
	c := New(cfg)

	long := strings.Repeat("x", 4000)
	out := c.Fit(map[string]any{"notes": long})

	got := out["notes"].(string)
	assert.True(t, strings.HasSuffix(got, "...(truncated)"))
	assert.Len(t, got, cfg.StringLimit+len("...(truncated)"))
}

func TestFitShrinksLongLists(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxBytes = 900
	c := New(cfg)

	items := make([]any, 300)
	for i := range items {
		items[i] = strconv.Itoa(i)
	}
	out := c.Fit(map[string]any{"ids": items})

	got := out["ids"].([]any)
	require.Len(t, got, cfg.ListHead+cfg.ListTail+1)
	assert.Equal(t, "0", got[0])
	assert.Equal(t, "...(truncated list)...", got[cfg.ListHead])
	assert.Equal(t, "299", got[len(got)-1])
}

func TestFitDropsHeavyKeysWhenTruncationIsNotEnough(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxBytes = 300
	cfg.StringLimit = 1000
	c := New(cfg)

	out := c.Fit(map[string]any{
		"stacktrace": strings.Repeat("at frame\n", 80),
		"action":     "UPDATE",
	})

	assert.Equal(t, "...(dropped)", out["stacktrace"])
	assert.Equal(t, "UPDATE", out["action"])
	assert.Equal(t, true, out["_truncated"])
}

func TestFitCollapsesToStubAsLastResort(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxBytes = 40
	c := New(cfg)

	out := c.Fit(map[string]any{
		"a": strings.Repeat("x", 100),
		"b": strings.Repeat("y", 100),
		"c": strings.Repeat("z", 100),
	})

	assert.Equal(t, map[string]any{
		"_note":      "payload too large; truncated to fit",
		"_truncated": true,
	}, out)
}

func TestFitIsDeterministicAndWithinBudget(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxBytes = 2500
	c := New(cfg)

	in := map[string]any{
		"notes": strings.Repeat("n", 5000),
		"body":  strings.Repeat("b", 5000),
	}
	first := c.Fit(in)
	second := c.Fit(in)
	assert.Equal(t, first, second)

	raw, err := json.Marshal(first)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(raw), cfg.MaxBytes)
}

func TestFitNilPayload(t *testing.T) {
	c := New(DefaultConfig())
	out := c.Fit(nil)
	assert.NotNil(t, out)
	assert.Empty(t, out)
}
