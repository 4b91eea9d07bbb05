package sqlite

import (
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iredox10/minbar/internal/domain"
	"github.com/iredox10/minbar/internal/logger"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(":memory:", logger.NewTestLogger())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestDownloads_RoundTrip(t *testing.T) {
	repo := newTestStore(t).Downloads()

	item := domain.DownloadedItem{
		LocalID:      "local-1",
		SourceID:     "ep-1",
		Title:        "Tafsir Session 12",
		SeriesID:     "series-tafsir",
		SpeakerID:    "speaker-1",
		SourceURL:    "https://cdn.example.com/ep1.mp3",
		BlobRef:      "blob:abc",
		Duration:     42 * time.Minute,
		DownloadedAt: time.Date(2026, 2, 10, 9, 30, 0, 0, time.UTC),
		ByteSize:     1 << 20,
	}
	require.NoError(t, repo.Put(item))

	got, err := repo.GetBySourceID("ep-1")
	require.NoError(t, err)
	assert.Equal(t, item, *got)
}

func TestDownloads_PutReplacesBySourceID(t *testing.T) {
	repo := newTestStore(t).Downloads()

	require.NoError(t, repo.Put(domain.DownloadedItem{LocalID: "a", SourceID: "ep-1"}))
	require.NoError(t, repo.Put(domain.DownloadedItem{LocalID: "b", SourceID: "ep-1"}))

	got, err := repo.GetBySourceID("ep-1")
	require.NoError(t, err)
	assert.Equal(t, "b", got.LocalID)

	items, err := repo.List()
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestDownloads_ListNewestFirst(t *testing.T) {
	repo := newTestStore(t).Downloads()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Put(domain.DownloadedItem{SourceID: "old", DownloadedAt: base}))
	require.NoError(t, repo.Put(domain.DownloadedItem{SourceID: "new", DownloadedAt: base.Add(time.Hour)}))

	items, err := repo.List()
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "new", items[0].SourceID)
}

func TestDownloads_MissingAndDelete(t *testing.T) {
	repo := newTestStore(t).Downloads()

	_, err := repo.GetBySourceID("nothing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, repo.Put(domain.DownloadedItem{SourceID: "ep-1"}))
	require.NoError(t, repo.Delete("ep-1"))
	require.NoError(t, repo.Delete("ep-1"))

	_, err = repo.GetBySourceID("ep-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFavorites_KeyedByKindAndID(t *testing.T) {
	repo := newTestStore(t).Favorites()

	require.NoError(t, repo.Set(domain.KindEpisode, "42", true))
	require.NoError(t, repo.Set(domain.KindEpisode, "42", true))

	fav, err := repo.IsFavorite(domain.KindEpisode, "42")
	require.NoError(t, err)
	assert.True(t, fav)

	fav, err = repo.IsFavorite(domain.KindDua, "42")
	require.NoError(t, err)
	assert.False(t, fav)

	require.NoError(t, repo.Set(domain.KindEpisode, "42", false))
	fav, err = repo.IsFavorite(domain.KindEpisode, "42")
	require.NoError(t, err)
	assert.False(t, fav)
}

func TestProgress_UpsertAndGet(t *testing.T) {
	repo := newTestStore(t).Progress()

	record := domain.ProgressRecord{
		SourceID:     "ep-1",
		Position:     2 * time.Minute,
		Duration:     40 * time.Minute,
		LastPlayedAt: time.Date(2026, 2, 10, 9, 30, 0, 0, time.UTC),
	}
	require.NoError(t, repo.Upsert(record))

	record.Position = 5 * time.Minute
	record.Completed = true
	require.NoError(t, repo.Upsert(record))

	got, err := repo.Get("ep-1")
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, got.Position)
	assert.True(t, got.Completed)

	_, err = repo.Get("nothing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestResume_SingletonLifecycle(t *testing.T) {
	repo := newTestStore(t).Resume()

	_, err := repo.Load()
	assert.ErrorIs(t, err, domain.ErrNoSnapshot)

	snapshot := domain.ResumeSnapshot{
		Track: domain.Track{
			ID:            "ep-1",
			Title:         "Seerah Part 3",
			AudioURL:      "https://cdn.example.com/ep1.mp3",
			Kind:          domain.KindEpisode,
			SeriesID:      "series-seerah",
			EpisodeNumber: 3,
			Duration:      50 * time.Minute,
		},
		Position:  2 * time.Minute,
		Rate:      1.25,
		UpdatedAt: time.Date(2026, 2, 10, 9, 30, 0, 0, time.UTC),
	}
	require.NoError(t, repo.Save(snapshot))

	// A second save overwrites rather than accumulating rows.
	snapshot.Position = 3 * time.Minute
	require.NoError(t, repo.Save(snapshot))

	got, err := repo.Load()
	require.NoError(t, err)
	assert.Equal(t, "ep-1", got.Track.ID)
	assert.Equal(t, 3*time.Minute, got.Position)
	assert.Equal(t, 1.25, got.Rate)
	assert.Equal(t, domain.KindEpisode, got.Track.Kind)

	require.NoError(t, repo.Delete())
	_, err = repo.Load()
	assert.ErrorIs(t, err, domain.ErrNoSnapshot)
}

func TestBlobs_RoundTripAndRelease(t *testing.T) {
	blobs := newTestStore(t).Blobs()

	ref, err := blobs.Put([]byte("audio-bytes"))
	require.NoError(t, err)
	assert.Contains(t, ref, "blob:")

	reader, err := blobs.Open(ref)
	require.NoError(t, err)
	got, err := io.ReadAll(reader)
	require.NoError(t, err)
	reader.Close()
	assert.Equal(t, []byte("audio-bytes"), got)

	require.NoError(t, blobs.Release(ref))
	require.NoError(t, blobs.Release(ref))
	_, err = blobs.Open(ref)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
