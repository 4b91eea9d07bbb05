package memory

import (
	"bytes"
	"io"
	"sync"

	"github.com/google/uuid"

	"github.com/iredox10/minbar/internal/domain"
	"github.com/iredox10/minbar/internal/ports"
)

// BlobStore is a thread-safe in-memory blob store.
// Refs use the blob: scheme so they are recognizable to the audio engine.
type BlobStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

var _ ports.BlobStore = (*BlobStore)(nil)

// NewBlobStore creates an empty blob store.
func NewBlobStore() *BlobStore {
	return &BlobStore{blobs: make(map[string][]byte)}
}

// Put stores a payload and returns its ref.
func (s *BlobStore) Put(data []byte) (string, error) {
	payload := make([]byte, len(data))
	copy(payload, data)

	ref := "blob:" + uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[ref] = payload
	return ref, nil
}

// Open returns a reader over the payload for a ref.
func (s *BlobStore) Open(ref string) (io.ReadCloser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	payload, ok := s.blobs[ref]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(payload)), nil
}

// Release frees the payload for a ref.
func (s *BlobStore) Release(ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, ref)
	return nil
}
