package services

import (
	"fmt"
	"sync"
	"time"

	"github.com/dukex/insight/pkg/models"
)

type result struct {
	response models.QueryResponse
	done     bool
	at       time.Time
}

// results holds the responses of asynchronous executions until they are evicted.
type results struct {
	mu      sync.RWMutex
	entries map[string]result
	now     func() time.Time
}

func newResults(now func() time.Time) *results {
	return &results{
		entries: make(map[string]result),
		now:     now,
	}
}

func (r *results) pending(executionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[executionID] = result{at: r.now()}
}

func (r *results) store(response models.QueryResponse) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[response.ExecutionID] = result{response: response, done: true, at: r.now()}
}

func (r *results) get(executionID string) (models.QueryResponse, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[executionID]
	if !ok {
		return models.QueryResponse{}, fmt.Errorf("%w: %s", ErrExecutionNotFound, executionID)
	}

	if !entry.done {
		return models.QueryResponse{}, fmt.Errorf("%w: %s", ErrExecutionRunning, executionID)
	}

	return entry.response, nil
}

// Evict drops finished results stored more than olderThan ago.
func (r *results) Evict(olderThan time.Duration) int {
	cutoff := r.now().Add(-olderThan)

	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := 0

	for id, entry := range r.entries {
		if entry.done && entry.at.Before(cutoff) {
			delete(r.entries, id)

			evicted++
		}
	}

	return evicted
}
