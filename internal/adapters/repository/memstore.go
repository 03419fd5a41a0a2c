package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hooplab/shotlog/internal/domain/model"
	"github.com/hooplab/shotlog/pkg/metrics"
)

// MemStore is an in-memory Store. Records are kept in a map keyed by job id
// with an insertion-order index for recency queries.
type MemStore struct {
	mu      sync.RWMutex
	records map[string]*Record
	order   []string // job ids in insertion order
	now     func() time.Time
}

// MemOption applies a configuration option to the MemStore.
type MemOption func(*MemStore)

// WithClock overrides the store's time source. Intended for tests.
func WithClock(now func() time.Time) MemOption {
	return func(s *MemStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewMemStore creates an empty in-memory store.
func NewMemStore(opts ...MemOption) *MemStore {
	s := &MemStore{
		records: make(map[string]*Record),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create registers a pending record for a submitted job.
func (s *MemStore) Create(_ context.Context, jobID, clipID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[jobID]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, jobID)
	}
	now := s.now()
	s.records[jobID] = &Record{
		JobID:     jobID,
		ClipID:    clipID,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.order = append(s.order, jobID)
	metrics.UpdateStoredResults(len(s.records))
	return nil
}

// Complete stores a finished result for the job.
func (s *MemStore) Complete(_ context.Context, jobID string, result model.AnalysisResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, exists := s.records[jobID]
	if !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, jobID)
	}
	rec.Status = StatusDone
	rec.Result = &result
	rec.Error = ""
	rec.UpdatedAt = s.now()
	return nil
}

// Fail marks the job as failed with a reason.
func (s *MemStore) Fail(_ context.Context, jobID string, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, exists := s.records[jobID]
	if !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, jobID)
	}
	rec.Status = StatusFailed
	rec.Error = reason
	rec.UpdatedAt = s.now()
	return nil
}

// Delete removes a record. The insertion-order index keeps a dead entry
// that Recent skips.
func (s *MemStore) Delete(_ context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[jobID]; !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, jobID)
	}
	delete(s.records, jobID)
	metrics.UpdateStoredResults(len(s.records))
	return nil
}

// Get fetches the record for a job.
func (s *MemStore) Get(_ context.Context, jobID string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, exists := s.records[jobID]
	if !exists {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, jobID)
	}
	return *rec, nil
}

// Recent returns up to n records, newest first.
func (s *MemStore) Recent(_ context.Context, n int) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n <= 0 || n > len(s.order) {
		n = len(s.order)
	}
	out := make([]Record, 0, n)
	for i := len(s.order) - 1; i >= 0 && len(out) < n; i-- {
		if rec, exists := s.records[s.order[i]]; exists {
			out = append(out, *rec)
		}
	}
	return out, nil
}

// Count returns the number of stored records.
func (s *MemStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
