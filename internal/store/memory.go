package store

import (
	"context"
	"sync"
	"time"

	"github.com/AngelCh415/campaign-dash/internal/models"
)

// WorkingSet holds the current canonical records. The slice is swapped as a
// whole after each merge and never edited in place, so a snapshot handed to a
// reader stays valid.
type WorkingSet struct {
	mu       sync.RWMutex
	recs     []models.CanonicalRecord
	loadedAt time.Time
}

func NewWorkingSet() *WorkingSet {
	return &WorkingSet{}
}

// Replace installs recs as the new working set.
func (s *WorkingSet) Replace(recs []models.CanonicalRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs = recs
	s.loadedAt = time.Now().UTC()
}

// All returns the current snapshot. Callers must not modify it.
func (s *WorkingSet) All() []models.CanonicalRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.recs
}

func (s *WorkingSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.recs)
}

func (s *WorkingSet) LoadedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadedAt
}

// Query returns records whose date lies in [from, to] and that pass f.
// Empty bounds are open.
func (s *WorkingSet) Query(from, to string, f func(models.CanonicalRecord) bool) []models.CanonicalRecord {
	var out []models.CanonicalRecord
	for _, r := range s.All() {
		if from != "" && r.Date < from {
			continue
		}
		if to != "" && r.Date > to {
			continue
		}
		if f == nil || f(r) {
			out = append(out, r)
		}
	}
	return out
}

// MemorySheets is a SheetStore kept in process memory.
type MemorySheets struct {
	mu     sync.RWMutex
	sheets map[string][][]any
}

func NewMemorySheets() *MemorySheets {
	return &MemorySheets{sheets: make(map[string][][]any)}
}

func (m *MemorySheets) Read(_ context.Context, sheet string) ([][]any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneGrid(m.sheets[sheet]), nil
}

func (m *MemorySheets) Replace(_ context.Context, sheet string, grid [][]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sheets[sheet] = cloneGrid(grid)
	return nil
}

func (m *MemorySheets) Close() error { return nil }

func cloneGrid(g [][]any) [][]any {
	if g == nil {
		return nil
	}
	out := make([][]any, len(g))
	for i, row := range g {
		out[i] = append([]any(nil), row...)
	}
	return out
}
