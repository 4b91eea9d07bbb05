// Package ports defines repository interfaces for data persistence abstraction.
// These interfaces enable the repository pattern and allow swapping persistence
// mechanisms (in-memory for tests, sqlite for the local-first store).
package ports

import (
	"io"

	"github.com/iredox10/minbar/internal/domain"
)

// DownloadsRepository handles the persistence of downloaded items.
// At most one item exists per source id.
//
// Thread-safety: implementations must be thread-safe.
type DownloadsRepository interface {
	// Put persists a downloaded item. An existing item with the same
	// source id is replaced.
	Put(item domain.DownloadedItem) error

	// GetBySourceID retrieves the item for a source id.
	// Returns domain.ErrNotFound if none exists.
	GetBySourceID(sourceID string) (*domain.DownloadedItem, error)

	// Delete removes the item for a source id.
	// Deleting a nonexistent item is a no-op.
	Delete(sourceID string) error

	// List returns all downloaded items, newest first.
	List() ([]domain.DownloadedItem, error)
}

// FavoritesRepository handles the persistence of favorite flags,
// keyed by (kind, id).
//
// Thread-safety: implementations must be thread-safe.
type FavoritesRepository interface {
	// Set stores the favorite flag for a track.
	Set(kind domain.TrackKind, id string, favorite bool) error

	// IsFavorite reports the persisted favorite flag for a track.
	// Unknown tracks are not favorites (no error).
	IsFavorite(kind domain.TrackKind, id string) (bool, error)
}

// ProgressRepository handles the persistence of per-source playback progress.
//
// Thread-safety: implementations must be thread-safe.
type ProgressRepository interface {
	// Upsert inserts or replaces the progress record for its source id.
	Upsert(record domain.ProgressRecord) error

	// Get retrieves the progress record for a source id.
	// Returns domain.ErrNotFound if none exists.
	Get(sourceID string) (*domain.ProgressRecord, error)
}

// ResumeRepository handles the device-local resume snapshot singleton.
//
// Thread-safety: implementations must be thread-safe.
type ResumeRepository interface {
	// Save overwrites the snapshot.
	Save(snapshot domain.ResumeSnapshot) error

	// Load retrieves the snapshot.
	// Returns domain.ErrNoSnapshot if none was saved or it was deleted.
	Load() (*domain.ResumeSnapshot, error)

	// Delete removes the snapshot. Deleting a nonexistent snapshot is a no-op.
	Delete() error
}

// BlobStore stores opaque audio payloads and hands out locally
// dereferenceable refs. Refs must be explicitly released when the owning
// record is removed; an unreleased ref is a resource leak.
//
// Thread-safety: implementations must be thread-safe.
type BlobStore interface {
	// Put stores a payload and returns its ref.
	Put(data []byte) (ref string, err error)

	// Open returns a reader over the payload for a ref.
	// Returns domain.ErrNotFound for unknown refs.
	Open(ref string) (io.ReadCloser, error)

	// Release frees the payload for a ref. Releasing an unknown ref is a no-op.
	Release(ref string) error
}
