// Package sqlite provides the durable, single-file implementation of the
// repository ports. One Store owns the gorm connection; the port
// implementations are views over it.
package sqlite

import (
	"errors"
	"log/slog"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/iredox10/minbar/internal/domain"
)

// Store wraps the gorm connection for the local-first database.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
}

// Open connects to (or creates) the sqlite database at path and runs
// migrations. Use ":memory:" for an ephemeral database.
func Open(path string, logger *slog.Logger) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, domain.NewRepositoryError("open", "sqlite", "opening database failed", err)
	}

	if err := db.AutoMigrate(
		&downloadRow{},
		&favoriteRow{},
		&progressRow{},
		&resumeRow{},
		&blobRow{},
	); err != nil {
		return nil, domain.NewRepositoryError("migrate", "sqlite", "running migrations failed", err)
	}

	logger.Debug("sqlite store opened", slog.String("path", path))
	return &Store{db: db, logger: logger}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Downloads returns the downloads repository view.
func (s *Store) Downloads() *DownloadsRepository { return &DownloadsRepository{db: s.db} }

// Favorites returns the favorites repository view.
func (s *Store) Favorites() *FavoritesRepository { return &FavoritesRepository{db: s.db} }

// Progress returns the progress repository view.
func (s *Store) Progress() *ProgressRepository { return &ProgressRepository{db: s.db} }

// Resume returns the resume snapshot repository view.
func (s *Store) Resume() *ResumeRepository { return &ResumeRepository{db: s.db} }

// Blobs returns the blob store view.
func (s *Store) Blobs() *BlobStore { return &BlobStore{db: s.db} }

type downloadRow struct {
	SourceID     string `gorm:"primaryKey"`
	LocalID      string
	Title        string
	SeriesID     string
	SpeakerID    string
	SourceURL    string
	BlobRef      string
	DurationMS   int64
	DownloadedAt time.Time
	ByteSize     int64
}

type favoriteRow struct {
	Kind string `gorm:"primaryKey"`
	ID   string `gorm:"primaryKey"`
}

type progressRow struct {
	SourceID     string `gorm:"primaryKey"`
	PositionMS   int64
	DurationMS   int64
	LastPlayedAt time.Time
	Completed    bool
}

// resumeRow is a singleton table; ID is always 1.
type resumeRow struct {
	ID         int `gorm:"primaryKey"`
	TrackID    string
	Title      string
	AudioURL   string
	ArtworkURL string
	Speaker    string
	DurationMS int64
	Kind       string
	SeriesID   string
	EpisodeNum int
	PositionMS int64
	Rate       float64
	UpdatedAt  time.Time
}

type blobRow struct {
	Ref  string `gorm:"primaryKey"`
	Data []byte
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
