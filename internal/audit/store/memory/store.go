// Package memory provides the in-memory audit store used by unit tests and
// local development. Semantics mirror the postgres store, including filter
// behavior, so service tests exercise the same contract.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"ams/internal/audit"
	"ams/pkg/sentinel"
)

type Store struct {
	mu      sync.RWMutex
	nextID  int64
	records []audit.Record
}

func New() *Store {
	return &Store{nextID: 1}
}

func (s *Store) Append(_ context.Context, rec *audit.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.ID = s.nextID
	s.nextID++
	s.records = append(s.records, cloneRecord(*rec))
	return nil
}

func (s *Store) FindByID(_ context.Context, id int64) (audit.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.records {
		if r.ID == id {
			return cloneRecord(r), nil
		}
	}
	return audit.Record{}, sentinel.ErrNotFound
}

func (s *Store) List(_ context.Context, f audit.Filter) ([]audit.Record, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []audit.Record
	for _, r := range s.records {
		if matches(r, f) {
			matched = append(matched, cloneRecord(r))
		}
	}

	sortRecords(matched, f.SortField, f.SortDir)

	total := len(matched)
	page, size := f.Page, f.PageSize
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 50
	}
	start := (page - 1) * size
	if start >= total {
		return []audit.Record{}, total, nil
	}
	end := start + size
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (s *Store) HasAction(_ context.Context, targetType, targetID string, action audit.Action) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.records {
		if r.TargetType == targetType && r.TargetID == targetID && r.Action == action {
			return true, nil
		}
	}
	return false, nil
}

// All returns every record in append order. Test helper.
func (s *Store) All() []audit.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]audit.Record, len(s.records))
	for i, r := range s.records {
		out[i] = cloneRecord(r)
	}
	return out
}

func matches(r audit.Record, f audit.Filter) bool {
	if f.Action != "" && string(r.Action) != f.Action {
		return false
	}
	if f.TargetType != "" && r.TargetType != f.TargetType {
		return false
	}
	if f.TargetID != "" && r.TargetID != f.TargetID {
		return false
	}
	if f.Actor != "" && !containsFold(r.ActorName, f.Actor) {
		return false
	}
	if f.Query != "" {
		q := f.Query
		if !containsFold(r.ActorName, q) && !containsFold(r.Path, q) &&
			!containsFold(r.IPAddress, q) && !containsFold(r.CorrelationID, q) &&
			!containsFold(string(r.Action), q) && !containsFold(r.TargetID, q) {
			return false
		}
	}
	if !f.From.IsZero() && r.OccurredAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !r.OccurredAt.Before(f.To) {
		return false
	}
	return true
}

func sortRecords(recs []audit.Record, field, dir string) {
	asc := dir == "asc"
	less := func(a, b audit.Record) bool {
		switch field {
		case "id":
			return a.ID < b.ID
		case "actor_name":
			return a.ActorName < b.ActorName
		case "action":
			return a.Action < b.Action
		case "status":
			return a.Status < b.Status
		case "target_id":
			return a.TargetID < b.TargetID
		default: // occurred_at
			if a.OccurredAt.Equal(b.OccurredAt) {
				return a.ID < b.ID
			}
			return a.OccurredAt.Before(b.OccurredAt)
		}
	}
	sort.SliceStable(recs, func(i, j int) bool {
		if asc {
			return less(recs[i], recs[j])
		}
		return less(recs[j], recs[i])
	})
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func cloneRecord(r audit.Record) audit.Record {
	r.PrevValues = cloneMap(r.PrevValues)
	r.NewValues = cloneMap(r.NewValues)
	return r
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
