package memory

import (
	"sync"

	"github.com/iredox10/minbar/internal/domain"
	"github.com/iredox10/minbar/internal/ports"
)

// ResumeRepository is a thread-safe in-memory resume snapshot store.
// It holds at most one snapshot.
type ResumeRepository struct {
	mu       sync.RWMutex
	snapshot *domain.ResumeSnapshot
}

var _ ports.ResumeRepository = (*ResumeRepository)(nil)

// NewResumeRepository creates an empty resume repository.
func NewResumeRepository() *ResumeRepository {
	return &ResumeRepository{}
}

// Save overwrites the snapshot.
func (r *ResumeRepository) Save(snapshot domain.ResumeSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshot = &snapshot
	return nil
}

// Load retrieves the snapshot.
func (r *ResumeRepository) Load() (*domain.ResumeSnapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.snapshot == nil {
		return nil, domain.ErrNoSnapshot
	}
	snapshot := *r.snapshot
	return &snapshot, nil
}

// Delete removes the snapshot.
func (r *ResumeRepository) Delete() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshot = nil
	return nil
}
