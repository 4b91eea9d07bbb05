package memory

import (
	"sync"

	"github.com/iredox10/minbar/internal/domain"
	"github.com/iredox10/minbar/internal/ports"
)

type favoriteKey struct {
	kind domain.TrackKind
	id   string
}

// FavoritesRepository is a thread-safe in-memory favorites store.
type FavoritesRepository struct {
	mu    sync.RWMutex
	flags map[favoriteKey]bool
}

var _ ports.FavoritesRepository = (*FavoritesRepository)(nil)

// NewFavoritesRepository creates an empty favorites repository.
func NewFavoritesRepository() *FavoritesRepository {
	return &FavoritesRepository{flags: make(map[favoriteKey]bool)}
}

// Set stores the favorite flag for a track.
func (r *FavoritesRepository) Set(kind domain.TrackKind, id string, favorite bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := favoriteKey{kind: kind, id: id}
	if favorite {
		r.flags[key] = true
	} else {
		delete(r.flags, key)
	}
	return nil
}

// IsFavorite reports the persisted favorite flag for a track.
func (r *FavoritesRepository) IsFavorite(kind domain.TrackKind, id string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.flags[favoriteKey{kind: kind, id: id}], nil
}
