package memory

import (
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iredox10/minbar/internal/domain"
)

func TestDownloadsRepository_PutReplacesBySourceID(t *testing.T) {
	repo := NewDownloadsRepository()

	require.NoError(t, repo.Put(domain.DownloadedItem{LocalID: "a", SourceID: "ep-1"}))
	require.NoError(t, repo.Put(domain.DownloadedItem{LocalID: "b", SourceID: "ep-1"}))

	item, err := repo.GetBySourceID("ep-1")
	require.NoError(t, err)
	assert.Equal(t, "b", item.LocalID)

	items, err := repo.List()
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestDownloadsRepository_ListNewestFirst(t *testing.T) {
	repo := NewDownloadsRepository()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Put(domain.DownloadedItem{SourceID: "old", DownloadedAt: base}))
	require.NoError(t, repo.Put(domain.DownloadedItem{SourceID: "new", DownloadedAt: base.Add(time.Hour)}))

	items, err := repo.List()
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "new", items[0].SourceID)
	assert.Equal(t, "old", items[1].SourceID)
}

func TestDownloadsRepository_DeleteIsIdempotent(t *testing.T) {
	repo := NewDownloadsRepository()
	require.NoError(t, repo.Put(domain.DownloadedItem{SourceID: "ep-1"}))

	require.NoError(t, repo.Delete("ep-1"))
	require.NoError(t, repo.Delete("ep-1"))

	_, err := repo.GetBySourceID("ep-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFavoritesRepository_KeyedByKindAndID(t *testing.T) {
	repo := NewFavoritesRepository()

	require.NoError(t, repo.Set(domain.KindEpisode, "42", true))

	fav, err := repo.IsFavorite(domain.KindEpisode, "42")
	require.NoError(t, err)
	assert.True(t, fav)

	// Same id under a different kind is a different key.
	fav, err = repo.IsFavorite(domain.KindDua, "42")
	require.NoError(t, err)
	assert.False(t, fav)

	require.NoError(t, repo.Set(domain.KindEpisode, "42", false))
	fav, err = repo.IsFavorite(domain.KindEpisode, "42")
	require.NoError(t, err)
	assert.False(t, fav)
}

func TestFavoritesRepository_UnknownTrackNotFavorite(t *testing.T) {
	repo := NewFavoritesRepository()
	fav, err := repo.IsFavorite(domain.KindEpisode, "never-set")
	require.NoError(t, err)
	assert.False(t, fav)
}

func TestProgressRepository_UpsertReplaces(t *testing.T) {
	repo := NewProgressRepository()

	require.NoError(t, repo.Upsert(domain.ProgressRecord{SourceID: "ep-1", Position: 10 * time.Second}))
	require.NoError(t, repo.Upsert(domain.ProgressRecord{SourceID: "ep-1", Position: 25 * time.Second, Completed: true}))

	record, err := repo.Get("ep-1")
	require.NoError(t, err)
	assert.Equal(t, 25*time.Second, record.Position)
	assert.True(t, record.Completed)
}

func TestProgressRepository_GetMissing(t *testing.T) {
	repo := NewProgressRepository()
	_, err := repo.Get("nothing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestResumeRepository_SingletonLifecycle(t *testing.T) {
	repo := NewResumeRepository()

	_, err := repo.Load()
	assert.ErrorIs(t, err, domain.ErrNoSnapshot)

	require.NoError(t, repo.Save(domain.ResumeSnapshot{
		Track:    domain.Track{ID: "ep-1"},
		Position: 2 * time.Minute,
		Rate:     1.25,
	}))
	require.NoError(t, repo.Save(domain.ResumeSnapshot{
		Track:    domain.Track{ID: "ep-2"},
		Position: 30 * time.Second,
		Rate:     1.0,
	}))

	snapshot, err := repo.Load()
	require.NoError(t, err)
	assert.Equal(t, "ep-2", snapshot.Track.ID)

	require.NoError(t, repo.Delete())
	require.NoError(t, repo.Delete())
	_, err = repo.Load()
	assert.ErrorIs(t, err, domain.ErrNoSnapshot)
}

func TestBlobStore_RoundTrip(t *testing.T) {
	store := NewBlobStore()

	payload := []byte("audio-bytes")
	ref, err := store.Put(payload)
	require.NoError(t, err)
	assert.Contains(t, ref, "blob:")

	// Mutating the original must not affect the stored copy.
	payload[0] = 'X'

	reader, err := store.Open(ref)
	require.NoError(t, err)
	defer reader.Close()
	got, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, []byte("audio-bytes"), got)
}

func TestBlobStore_ReleaseFreesPayload(t *testing.T) {
	store := NewBlobStore()

	ref, err := store.Put([]byte("audio-bytes"))
	require.NoError(t, err)

	require.NoError(t, store.Release(ref))
	require.NoError(t, store.Release(ref))

	_, err = store.Open(ref)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestBlobStore_ConcurrentAccess(t *testing.T) {
	store := NewBlobStore()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ref, err := store.Put([]byte("payload"))
			assert.NoError(t, err)
			reader, err := store.Open(ref)
			assert.NoError(t, err)
			reader.Close()
			assert.NoError(t, store.Release(ref))
		}()
	}
	wg.Wait()
}
