// Package memory provides the in-memory deletion-request store for tests.
package memory

import (
	"context"
	"sync"
	"time"

	"ams/internal/recovery"
)

type Store struct {
	mu       sync.RWMutex
	nextID   int64
	requests []recovery.DeletionRequest
}

func New() *Store {
	return &Store{nextID: 1}
}

func (s *Store) Create(_ context.Context, req *recovery.DeletionRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	req.ID = s.nextID
	s.nextID++
	s.requests = append(s.requests, *req)
	return nil
}

func (s *Store) List(_ context.Context, status string, page, size int) ([]recovery.DeletionRequest, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []recovery.DeletionRequest
	// Newest first, like the postgres store.
	for i := len(s.requests) - 1; i >= 0; i-- {
		r := s.requests[i]
		if status == "" || r.Status == status {
			matched = append(matched, r)
		}
	}

	total := len(matched)
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 50
	}
	start := (page - 1) * size
	if start >= total {
		return []recovery.DeletionRequest{}, total, nil
	}
	end := start + size
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (s *Store) CancelOpen(_ context.Context, targetType, targetID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for i := range s.requests {
		r := &s.requests[i]
		if r.TargetType == targetType && r.TargetID == targetID && open(r.Status) {
			r.Status = recovery.RequestCancelled
			n++
		}
	}
	return n, nil
}

func (s *Store) ConfirmOpen(_ context.Context, targetType, targetID, confirmedBy string, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for i := range s.requests {
		r := &s.requests[i]
		if r.TargetType == targetType && r.TargetID == targetID && open(r.Status) {
			r.Status = recovery.RequestConfirmed
			r.ConfirmedBy = confirmedBy
			t := at
			r.ConfirmedAt = &t
			n++
		}
	}
	return n, nil
}

// Get returns a request by ID. Test helper.
func (s *Store) Get(id int64) (recovery.DeletionRequest, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.requests {
		if r.ID == id {
			return r, true
		}
	}
	return recovery.DeletionRequest{}, false
}

func open(status string) bool {
	return status == recovery.RequestPending || status == recovery.RequestRequested
}
