// Package memory is an in-process MonthlyExporter that keeps the last
// statement per period.
package memory

import (
	"context"
	"fmt"
	"sync"

	ports "nettracker/internal/sheets"
)

type Store struct {
	mu      sync.Mutex
	exports map[string][][]any
	count   int
}

var _ ports.MonthlyExporter = (*Store)(nil)

func New() *Store {
	return &Store{exports: make(map[string][][]any)}
}

// ExportMonth renders the statement and keeps it under its period, replacing
// any earlier export of the same period.
func (s *Store) ExportMonth(_ context.Context, st ports.Statement) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := ports.Rows(st)
	s.exports[st.View.Month] = rows
	s.count++
	return fmt.Sprintf("mem:%s:%d", st.View.Month, s.count), nil
}

// Rows returns the last export for period.
func (s *Store) Rows(period string) ([][]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, ok := s.exports[period]
	return rows, ok
}
