// Package ports defines the boundary contracts of external collaborators.
// Implementations of these live behind adapters; only the shapes matter to
// the core.
package ports

import (
	"context"

	"github.com/iredox10/minbar/internal/domain"
)

// SeriesLookup returns the ordered episode list of a series. It is used
// only to reconstruct a play queue on resume or on "play all".
type SeriesLookup interface {
	// Episodes returns the series' episodes in playback order.
	// Returns domain.ErrNotFound for unknown series.
	Episodes(ctx context.Context, seriesID string) ([]domain.Track, error)
}

// SyncStore mirrors the resume snapshot to a networked store keyed by a
// device identifier, enabling cross-device resume. It is read on cold start
// and written on the periodic checkpoint cadence.
type SyncStore interface {
	// Load retrieves the snapshot for a device.
	// Returns domain.ErrNoSnapshot if none exists.
	Load(ctx context.Context, deviceID string) (*domain.ResumeSnapshot, error)

	// Save overwrites the snapshot for a device.
	Save(ctx context.Context, deviceID string, snapshot domain.ResumeSnapshot) error

	// Delete removes the snapshot for a device.
	Delete(ctx context.Context, deviceID string) error
}

// Telemetry is a fire-and-forget event sink (play-start, download-complete).
// Implementations must never block the caller and must swallow their own
// failures: telemetry must never affect playback or downloads.
type Telemetry interface {
	// Emit records an event with optional properties.
	Emit(event string, props map[string]string)
}
