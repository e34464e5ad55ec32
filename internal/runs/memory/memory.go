// Package memory keeps projection runs in process memory.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"capext/internal/core"
	"capext/internal/runs"
)

// DefaultMaxRuns bounds the store when no limit is given.
const DefaultMaxRuns = 100

type Store struct {
	mu      sync.Mutex
	maxRuns int
	nextID  int64
	items   []core.Run // oldest first
	now     func() time.Time
}

var _ runs.Store = (*Store)(nil)

// New creates a store holding at most maxRuns runs. Older runs are evicted
// first.
func New(maxRuns int) *Store {
	if maxRuns < 1 {
		maxRuns = DefaultMaxRuns
	}
	return &Store{maxRuns: maxRuns, now: time.Now}
}

// RecordRun validates and stores run under a new ID.
func (s *Store) RecordRun(_ context.Context, run core.Run) (core.Run, error) {
	if run.ExportStatus == "" {
		run.ExportStatus = core.ExportSkipped
	}
	if err := run.Validate(); err != nil {
		return core.Run{}, fmt.Errorf("validation failed: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	run.ID = s.nextID
	if run.CreatedAt.IsZero() {
		run.CreatedAt = s.now().UTC()
	}
	s.items = append(s.items, run)
	if over := len(s.items) - s.maxRuns; over > 0 {
		s.items = append([]core.Run(nil), s.items[over:]...)
	}
	return run, nil
}

func (s *Store) GetRun(_ context.Context, id int64) (core.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOf(id); i >= 0 {
		return s.items[i], nil
	}
	return core.Run{}, runs.ErrNotFound
}

func (s *Store) ListRuns(_ context.Context, limit int) ([]core.Run, error) {
	if limit < 1 {
		limit = runs.DefaultListLimit
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]core.Run, 0, min(limit, len(s.items)))
	for i := len(s.items) - 1; i >= 0 && len(out) < limit; i-- {
		r := s.items[i]
		r.Content = ""
		out = append(out, r)
	}
	return out, nil
}

func (s *Store) PendingExports(_ context.Context, limit int) ([]core.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []core.Run
	for _, r := range s.items {
		if limit > 0 && len(out) >= limit {
			break
		}
		if r.ExportStatus == core.ExportPending {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Store) MarkExported(_ context.Context, id int64, ref string) error {
	return s.setStatus(id, core.ExportDone, ref)
}

func (s *Store) MarkExportError(_ context.Context, id int64) error {
	return s.setStatus(id, core.ExportFailed, "")
}

func (s *Store) setStatus(id int64, status core.ExportStatus, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return runs.ErrNotFound
	}
	s.items[i].ExportStatus = status
	s.items[i].ExportRef = ref
	return nil
}

// indexOf relies on IDs being assigned in increasing order.
func (s *Store) indexOf(id int64) int {
	lo, hi := 0, len(s.items)
	for lo < hi {
		mid := (lo + hi) / 2
		switch {
		case s.items[mid].ID == id:
			return mid
		case s.items[mid].ID < id:
			lo = mid + 1
		default:
			hi = mid
		}
	}
	return -1
}

// Len returns the number of stored runs.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func (s *Store) Close() error { return nil }
