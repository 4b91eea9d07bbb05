package sqlite

import (
	"bytes"
	"io"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/iredox10/minbar/internal/domain"
	"github.com/iredox10/minbar/internal/ports"
)

// DownloadsRepository is the sqlite-backed downloads store.
type DownloadsRepository struct {
	db *gorm.DB
}

var _ ports.DownloadsRepository = (*DownloadsRepository)(nil)

// Put persists a downloaded item, replacing any row with the same source id.
func (r *DownloadsRepository) Put(item domain.DownloadedItem) error {
	row := downloadRow{
		SourceID:     item.SourceID,
		LocalID:      item.LocalID,
		Title:        item.Title,
		SeriesID:     item.SeriesID,
		SpeakerID:    item.SpeakerID,
		SourceURL:    item.SourceURL,
		BlobRef:      item.BlobRef,
		DurationMS:   item.Duration.Milliseconds(),
		DownloadedAt: item.DownloadedAt,
		ByteSize:     item.ByteSize,
	}
	err := r.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error
	if err != nil {
		return domain.NewRepositoryError("put", "downloads", "writing item failed", err)
	}
	return nil
}

// GetBySourceID retrieves the item for a source id.
func (r *DownloadsRepository) GetBySourceID(sourceID string) (*domain.DownloadedItem, error) {
	var row downloadRow
	if err := r.db.First(&row, "source_id = ?", sourceID).Error; err != nil {
		if isNotFound(err) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.NewRepositoryError("get", "downloads", "reading item failed", err)
	}
	item := row.toDomain()
	return &item, nil
}

// Delete removes the item for a source id.
func (r *DownloadsRepository) Delete(sourceID string) error {
	err := r.db.Delete(&downloadRow{}, "source_id = ?", sourceID).Error
	if err != nil {
		return domain.NewRepositoryError("delete", "downloads", "deleting item failed", err)
	}
	return nil
}

// List returns all downloaded items, newest first.
func (r *DownloadsRepository) List() ([]domain.DownloadedItem, error) {
	var rows []downloadRow
	if err := r.db.Order("downloaded_at desc").Find(&rows).Error; err != nil {
		return nil, domain.NewRepositoryError("list", "downloads", "listing items failed", err)
	}
	items := make([]domain.DownloadedItem, len(rows))
	for i, row := range rows {
		items[i] = row.toDomain()
	}
	return items, nil
}

func (row downloadRow) toDomain() domain.DownloadedItem {
	return domain.DownloadedItem{
		LocalID:      row.LocalID,
		SourceID:     row.SourceID,
		Title:        row.Title,
		SeriesID:     row.SeriesID,
		SpeakerID:    row.SpeakerID,
		SourceURL:    row.SourceURL,
		BlobRef:      row.BlobRef,
		Duration:     time.Duration(row.DurationMS) * time.Millisecond,
		DownloadedAt: row.DownloadedAt,
		ByteSize:     row.ByteSize,
	}
}

// FavoritesRepository is the sqlite-backed favorites store.
type FavoritesRepository struct {
	db *gorm.DB
}

var _ ports.FavoritesRepository = (*FavoritesRepository)(nil)

// Set stores the favorite flag for a track. A false flag deletes the row.
func (r *FavoritesRepository) Set(kind domain.TrackKind, id string, favorite bool) error {
	var err error
	if favorite {
		err = r.db.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&favoriteRow{Kind: string(kind), ID: id}).Error
	} else {
		err = r.db.Delete(&favoriteRow{}, "kind = ? AND id = ?", string(kind), id).Error
	}
	if err != nil {
		return domain.NewRepositoryError("set", "favorites", "writing flag failed", err)
	}
	return nil
}

// IsFavorite reports the persisted favorite flag for a track.
func (r *FavoritesRepository) IsFavorite(kind domain.TrackKind, id string) (bool, error) {
	var count int64
	err := r.db.Model(&favoriteRow{}).
		Where("kind = ? AND id = ?", string(kind), id).
		Count(&count).Error
	if err != nil {
		return false, domain.NewRepositoryError("get", "favorites", "reading flag failed", err)
	}
	return count > 0, nil
}

// ProgressRepository is the sqlite-backed playback progress store.
type ProgressRepository struct {
	db *gorm.DB
}

var _ ports.ProgressRepository = (*ProgressRepository)(nil)

// Upsert inserts or replaces the progress record for its source id.
func (r *ProgressRepository) Upsert(record domain.ProgressRecord) error {
	row := progressRow{
		SourceID:     record.SourceID,
		PositionMS:   record.Position.Milliseconds(),
		DurationMS:   record.Duration.Milliseconds(),
		LastPlayedAt: record.LastPlayedAt,
		Completed:    record.Completed,
	}
	err := r.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error
	if err != nil {
		return domain.NewRepositoryError("upsert", "progress", "writing record failed", err)
	}
	return nil
}

// Get retrieves the progress record for a source id.
func (r *ProgressRepository) Get(sourceID string) (*domain.ProgressRecord, error) {
	var row progressRow
	if err := r.db.First(&row, "source_id = ?", sourceID).Error; err != nil {
		if isNotFound(err) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.NewRepositoryError("get", "progress", "reading record failed", err)
	}
	return &domain.ProgressRecord{
		SourceID:     row.SourceID,
		Position:     time.Duration(row.PositionMS) * time.Millisecond,
		Duration:     time.Duration(row.DurationMS) * time.Millisecond,
		LastPlayedAt: row.LastPlayedAt,
		Completed:    row.Completed,
	}, nil
}

// ResumeRepository is the sqlite-backed resume snapshot singleton.
type ResumeRepository struct {
	db *gorm.DB
}

var _ ports.ResumeRepository = (*ResumeRepository)(nil)

// Save overwrites the snapshot.
func (r *ResumeRepository) Save(snapshot domain.ResumeSnapshot) error {
	row := resumeRow{
		ID:         1,
		TrackID:    snapshot.Track.ID,
		Title:      snapshot.Track.Title,
		AudioURL:   snapshot.Track.AudioURL,
		ArtworkURL: snapshot.Track.ArtworkURL,
		Speaker:    snapshot.Track.Speaker,
		DurationMS: snapshot.Track.Duration.Milliseconds(),
		Kind:       string(snapshot.Track.Kind),
		SeriesID:   snapshot.Track.SeriesID,
		EpisodeNum: snapshot.Track.EpisodeNumber,
		PositionMS: snapshot.Position.Milliseconds(),
		Rate:       snapshot.Rate,
		UpdatedAt:  snapshot.UpdatedAt,
	}
	err := r.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error
	if err != nil {
		return domain.NewRepositoryError("save", "resume", "writing snapshot failed", err)
	}
	return nil
}

// Load retrieves the snapshot.
func (r *ResumeRepository) Load() (*domain.ResumeSnapshot, error) {
	var row resumeRow
	if err := r.db.First(&row, "id = ?", 1).Error; err != nil {
		if isNotFound(err) {
			return nil, domain.ErrNoSnapshot
		}
		return nil, domain.NewRepositoryError("load", "resume", "reading snapshot failed", err)
	}
	return &domain.ResumeSnapshot{
		Track: domain.Track{
			ID:            row.TrackID,
			Title:         row.Title,
			AudioURL:      row.AudioURL,
			ArtworkURL:    row.ArtworkURL,
			Speaker:       row.Speaker,
			Duration:      time.Duration(row.DurationMS) * time.Millisecond,
			Kind:          domain.TrackKind(row.Kind),
			SeriesID:      row.SeriesID,
			EpisodeNumber: row.EpisodeNum,
		},
		Position:  time.Duration(row.PositionMS) * time.Millisecond,
		Rate:      row.Rate,
		UpdatedAt: row.UpdatedAt,
	}, nil
}

// Delete removes the snapshot.
func (r *ResumeRepository) Delete() error {
	err := r.db.Delete(&resumeRow{}, "id = ?", 1).Error
	if err != nil {
		return domain.NewRepositoryError("delete", "resume", "deleting snapshot failed", err)
	}
	return nil
}

// BlobStore is the sqlite-backed blob store.
type BlobStore struct {
	db *gorm.DB
}

var _ ports.BlobStore = (*BlobStore)(nil)

// Put stores a payload and returns its ref.
func (s *BlobStore) Put(data []byte) (string, error) {
	ref := "blob:" + uuid.NewString()
	payload := make([]byte, len(data))
	copy(payload, data)

	if err := s.db.Create(&blobRow{Ref: ref, Data: payload}).Error; err != nil {
		return "", domain.NewRepositoryError("put", "blobs", "writing payload failed", err)
	}
	return ref, nil
}

// Open returns a reader over the payload for a ref.
func (s *BlobStore) Open(ref string) (io.ReadCloser, error) {
	var row blobRow
	if err := s.db.First(&row, "ref = ?", ref).Error; err != nil {
		if isNotFound(err) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.NewRepositoryError("open", "blobs", "reading payload failed", err)
	}
	return io.NopCloser(bytes.NewReader(row.Data)), nil
}

// Release frees the payload for a ref.
func (s *BlobStore) Release(ref string) error {
	err := s.db.Delete(&blobRow{}, "ref = ?", ref).Error
	if err != nil {
		return domain.NewRepositoryError("release", "blobs", "deleting payload failed", err)
	}
	return nil
}
