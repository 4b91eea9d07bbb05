// Package memory provides in-memory implementations of the repository ports.
// They back tests and the default zero-configuration setup; the sqlite
// adapter provides the durable equivalents.
package memory

import (
	"sort"
	"sync"

	"github.com/iredox10/minbar/internal/domain"
	"github.com/iredox10/minbar/internal/ports"
)

// DownloadsRepository is a thread-safe in-memory downloads store.
type DownloadsRepository struct {
	mu    sync.RWMutex
	items map[string]domain.DownloadedItem
}

var _ ports.DownloadsRepository = (*DownloadsRepository)(nil)

// NewDownloadsRepository creates an empty downloads repository.
func NewDownloadsRepository() *DownloadsRepository {
	return &DownloadsRepository{items: make(map[string]domain.DownloadedItem)}
}

// Put persists a downloaded item, replacing any existing item with the
// same source id.
func (r *DownloadsRepository) Put(item domain.DownloadedItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[item.SourceID] = item
	return nil
}

// GetBySourceID retrieves the item for a source id.
func (r *DownloadsRepository) GetBySourceID(sourceID string) (*domain.DownloadedItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	item, ok := r.items[sourceID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &item, nil
}

// Delete removes the item for a source id.
func (r *DownloadsRepository) Delete(sourceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, sourceID)
	return nil
}

// List returns all downloaded items, newest first.
func (r *DownloadsRepository) List() ([]domain.DownloadedItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := make([]domain.DownloadedItem, 0, len(r.items))
	for _, item := range r.items {
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].DownloadedAt.After(items[j].DownloadedAt)
	})
	return items, nil
}
