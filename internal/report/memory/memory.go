package memory

import (
	"context"
	"fmt"
	"sync"

	"roundup/internal/report"
)

// Store is an in-memory report destination, used by default and in tests.
type Store struct {
	mu    sync.Mutex
	items []report.Evaluation
}

func New() *Store {
	return &Store{}
}

// Append stores the evaluation and returns a synthetic row reference.
func (s *Store) Append(_ context.Context, e report.Evaluation) (string, error) {
	if e.Operation == "" {
		return "", fmt.Errorf("evaluation operation cannot be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, e)
	return fmt.Sprintf("mem:%d", len(s.items)), nil
}

// Rows returns a copy of all stored evaluations.
func (s *Store) Rows() []report.Evaluation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]report.Evaluation(nil), s.items...)
}
