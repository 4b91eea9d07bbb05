package memory

import (
	"sync"

	"github.com/iredox10/minbar/internal/domain"
	"github.com/iredox10/minbar/internal/ports"
)

// ProgressRepository is a thread-safe in-memory playback progress store.
type ProgressRepository struct {
	mu      sync.RWMutex
	records map[string]domain.ProgressRecord
}

var _ ports.ProgressRepository = (*ProgressRepository)(nil)

// NewProgressRepository creates an empty progress repository.
func NewProgressRepository() *ProgressRepository {
	return &ProgressRepository{records: make(map[string]domain.ProgressRecord)}
}

// Upsert inserts or replaces the progress record for its source id.
func (r *ProgressRepository) Upsert(record domain.ProgressRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[record.SourceID] = record
	return nil
}

// Get retrieves the progress record for a source id.
func (r *ProgressRepository) Get(sourceID string) (*domain.ProgressRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.records[sourceID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &record, nil
}
