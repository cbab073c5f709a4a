// Package memory provides the in-memory account store for tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"ams/internal/account"
	"ams/pkg/sentinel"
)

type Store struct {
	mu    sync.RWMutex
	users map[string]account.User
}

func New() *Store {
	return &Store{users: make(map[string]account.User)}
}

func (s *Store) Get(_ context.Context, username string) (*account.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[username]
	if !ok {
		return nil, fmt.Errorf("account %s: %w", username, sentinel.ErrNotFound)
	}
	copied := u
	return &copied, nil
}

func (s *Store) Save(_ context.Context, u *account.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.Username] = *u
	return nil
}

func (s *Store) List(_ context.Context) ([]account.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]account.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}
