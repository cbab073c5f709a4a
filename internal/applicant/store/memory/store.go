// Package memory provides the in-memory applicant store used by unit tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"ams/internal/applicant"
	"ams/pkg/sentinel"
)

type Store struct {
	mu         sync.RWMutex
	applicants map[string]applicant.Applicant
	docs       map[string][]applicant.Doc
	nextDocID  int64
}

func New() *Store {
	return &Store{
		applicants: make(map[string]applicant.Applicant),
		docs:       make(map[string][]applicant.Doc),
		nextDocID:  1,
	}
}

func (s *Store) Get(_ context.Context, studentCode string) (*applicant.Applicant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.applicants[studentCode]
	if !ok {
		return nil, fmt.Errorf("applicant %s: %w", studentCode, sentinel.ErrNotFound)
	}
	copied := a
	return &copied, nil
}

func (s *Store) Save(_ context.Context, a *applicant.Applicant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applicants[a.StudentCode] = *a
	return nil
}

func (s *Store) Delete(_ context.Context, studentCode string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.applicants[studentCode]; !ok {
		return fmt.Errorf("applicant %s: %w", studentCode, sentinel.ErrNotFound)
	}
	delete(s.applicants, studentCode)
	return nil
}

func (s *Store) ListDocs(_ context.Context, studentCode string) ([]applicant.Doc, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	docs := append([]applicant.Doc{}, s.docs[studentCode]...)
	sort.Slice(docs, func(i, j int) bool { return docs[i].OrderNo < docs[j].OrderNo })
	return docs, nil
}

func (s *Store) DeleteDocs(_ context.Context, studentCode string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, studentCode)
	return nil
}

// AddDoc attaches a child document. Test helper.
func (s *Store) AddDoc(doc applicant.Doc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc.ID = s.nextDocID
	s.nextDocID++
	s.docs[doc.StudentCode] = append(s.docs[doc.StudentCode], doc)
}
