// Package tracker records per-node timing and status for running and recently finished executions.
package tracker

import (
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/dukex/insight/pkg/models"
	"github.com/robfig/cron/v3"
)

const (
	DefaultRetention        = time.Hour
	DefaultEvictionSchedule = "@every 1m"
)

var ErrExecutionNotFound = errors.New("execution not found")

// Evictor is any store whose entries expire with the execution records.
type Evictor interface {
	Evict(olderThan time.Duration) int
}

// Registry owns the ExecutionRecords of one process. Records are created when an execution
// starts, removed when it fails, and kept after success until evicted.
type Registry struct {
	logger  *slog.Logger
	mu      sync.RWMutex
	records map[string]*models.ExecutionRecord
	now     func() time.Time
	cron    *cron.Cron
}

type RegistryOption func(*Registry)

// WithClock replaces time.Now; used by eviction.
func WithClock(now func() time.Time) RegistryOption {
	return func(r *Registry) {
		r.now = now
	}
}

func NewRegistry(logger *slog.Logger, opts ...RegistryOption) *Registry {
	r := &Registry{
		logger:  logger.With("module", "execution_registry"),
		records: make(map[string]*models.ExecutionRecord),
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Create registers a running record for executionID, replacing any previous one.
func (r *Registry) Create(executionID, query string, start time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.records[executionID] = models.NewExecutionRecord(executionID, query, start)
}

// Update applies fn to the record under the write lock. It reports false when no record exists.
func (r *Registry) Update(executionID string, fn func(record *models.ExecutionRecord)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[executionID]
	if !ok {
		return false
	}

	fn(record)

	return true
}

func (r *Registry) Remove(executionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.records, executionID)
}

// Get returns a copy of the record for executionID.
func (r *Registry) Get(executionID string) (*models.ExecutionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.records[executionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrExecutionNotFound, executionID)
	}

	return record.Clone(), nil
}

// List returns copies of all records, oldest first.
func (r *Registry) List() []*models.ExecutionRecord {
	r.mu.RLock()
	records := make([]*models.ExecutionRecord, 0, len(r.records))

	for _, record := range r.records {
		records = append(records, record.Clone())
	}
	r.mu.RUnlock()

	slices.SortFunc(records, func(a, b *models.ExecutionRecord) int {
		if c := a.StartTime.Compare(b.StartTime); c != 0 {
			return c
		}

		return cmp.Compare(a.ExecutionID, b.ExecutionID)
	})

	return records
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.records)
}

// Evict removes finished records that ended more than olderThan ago and returns how many were removed.
// Running records are never evicted.
func (r *Registry) Evict(olderThan time.Duration) int {
	cutoff := r.now().Add(-olderThan)

	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := 0

	for id, record := range r.records {
		if record.Status == models.ExecutionStatusRunning || record.EndTime.IsZero() {
			continue
		}

		if record.EndTime.Before(cutoff) {
			delete(r.records, id)

			evicted++
		}
	}

	return evicted
}

// StartEviction runs Evict(retention) on the given cron schedule until Stop is called. Extra
// evictors are swept by the same job.
func (r *Registry) StartEviction(schedule string, retention time.Duration, extra ...Evictor) error {
	if retention <= 0 {
		return fmt.Errorf("retention must be positive, got %s", retention)
	}

	c := cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))

	evictors := append([]Evictor{r}, extra...)

	entryID, err := c.AddFunc(schedule, func() {
		evicted := 0
		for _, e := range evictors {
			evicted += e.Evict(retention)
		}

		if evicted > 0 {
			r.logger.Info("Evicted finished executions", "count", evicted, "retention", retention)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid eviction schedule %q: %w", schedule, err)
	}

	r.mu.Lock()
	if r.cron != nil {
		r.cron.Stop()
	}
	r.cron = c
	r.mu.Unlock()

	c.Start()
	r.logger.Info("Started execution eviction", "schedule", schedule, "retention", retention, "entry_id", entryID)

	return nil
}

// Stop halts the eviction scheduler, waiting for a running eviction to finish.
func (r *Registry) Stop() {
	r.mu.Lock()
	c := r.cron
	r.cron = nil
	r.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
}
