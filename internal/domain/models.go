// Package domain contains core business models and logic with no external dependencies.
// This package defines the fundamental entities of the Minbar audio player.
package domain

import (
	"time"
)

// TrackKind classifies a playable unit.
type TrackKind string

const (
	// KindEpisode is a lecture or podcast episode belonging to a series.
	KindEpisode TrackKind = "episode"

	// KindRadio is a live radio stream with no fixed duration.
	KindRadio TrackKind = "radio"

	// KindDua is a standalone dua recitation.
	KindDua TrackKind = "dua"
)

// Favoritable reports whether tracks of this kind can be favorited.
// Live radio streams cannot.
func (k TrackKind) Favoritable() bool {
	return k == KindEpisode || k == KindDua
}

// Track represents a playable unit the session controller can load.
// Identity is ID; duplicate IDs within a queue are legal and are resolved
// by position, not identity.
type Track struct {
	// ID is the unique identifier of the track in the catalog
	ID string

	// Title is the display title
	Title string

	// AudioURL is the remote (or blob) location of the audio bytes
	AudioURL string

	// ArtworkURL is an optional cover image location
	ArtworkURL string

	// Speaker is the reciter or lecturer name
	Speaker string

	// Duration is the total track length (0 if unknown, e.g. live radio)
	Duration time.Duration

	// Kind classifies the track (episode, radio, dua)
	Kind TrackKind

	// SeriesID links an episode to its series ("" if none)
	SeriesID string

	// EpisodeNumber is the 1-based position within the series (0 if none)
	EpisodeNumber int
}

// PlayerStatus represents the session-level playback state machine:
// idle -> loading -> playing <-> paused, and back to idle on stop,
// error or natural end of track.
type PlayerStatus int

const (
	// StatusIdle indicates nothing is playing or loading
	StatusIdle PlayerStatus = iota

	// StatusLoading indicates a track is being loaded by the engine
	StatusLoading

	// StatusPlaying indicates playback is active
	StatusPlaying

	// StatusPaused indicates playback is paused
	StatusPaused
)

// String returns a human-readable representation of the player status.
func (s PlayerStatus) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusPlaying:
		return "playing"
	case StatusPaused:
		return "paused"
	default:
		return "unknown"
	}
}

// RepeatMode controls queue behavior when a track ends.
type RepeatMode int

const (
	// RepeatOff plays the queue once and stops at the end
	RepeatOff RepeatMode = iota

	// RepeatOne replays the current track indefinitely
	RepeatOne

	// RepeatAll wraps from the last queue entry back to the first
	RepeatAll
)

// Next cycles off -> one -> all -> off.
func (m RepeatMode) Next() RepeatMode {
	switch m {
	case RepeatOff:
		return RepeatOne
	case RepeatOne:
		return RepeatAll
	default:
		return RepeatOff
	}
}

// String returns a human-readable representation of the repeat mode.
func (m RepeatMode) String() string {
	switch m {
	case RepeatOne:
		return "one"
	case RepeatAll:
		return "all"
	default:
		return "off"
	}
}

// SessionState is a snapshot of the live playback session. The session
// controller owns the authoritative copy; consumers read snapshots.
type SessionState struct {
	// CurrentTrack is the currently selected track (nil if none)
	CurrentTrack *Track

	// QueueIndex is the position in the queue (-1 if no queue entry is active)
	QueueIndex int

	// QueueLength is the number of tracks in the queue
	QueueLength int

	// Status is the player state machine value
	Status PlayerStatus

	// Position is the playback position within the current track
	Position time.Duration

	// Duration is the authoritative track duration once the engine reports load
	Duration time.Duration

	// Rate is the playback rate (1.0 = normal)
	Rate float64

	// Volume is the volume level (0.0 to 1.0)
	Volume float64

	// IsMuted indicates if audio is muted
	IsMuted bool

	// Repeat is the active repeat mode
	Repeat RepeatMode

	// SleepDeadline is the wall-clock time playback will pause (zero if unset)
	SleepDeadline time.Time

	// IsFavorite is the derived favorite flag for the current track
	IsFavorite bool
}

// DownloadedItem is a persisted offline copy of a track's audio.
// It is created only on download completion, never for partial transfers,
// and at most one exists per SourceID.
type DownloadedItem struct {
	// LocalID uniquely identifies this record (UUID)
	LocalID string

	// SourceID is the catalog id of the downloaded track
	SourceID string

	// Title is the display title captured at download time
	Title string

	// SeriesID is the owning series, if any
	SeriesID string

	// SpeakerID identifies the reciter or lecturer, if known
	SpeakerID string

	// SourceURL is the remote location the bytes were fetched from
	SourceURL string

	// BlobRef is the locally-dereferenceable handle of the stored audio
	BlobRef string

	// Duration is the track duration, if known
	Duration time.Duration

	// DownloadedAt is when the download completed
	DownloadedAt time.Time

	// ByteSize is the stored payload size in bytes
	ByteSize int64
}

// ProgressRecord tracks per-source playback progress. Upserted on pause,
// on track end and on periodic checkpoints. Completed is set only on a
// natural end of track.
type ProgressRecord struct {
	SourceID     string
	Position     time.Duration
	Duration     time.Duration
	LastPlayedAt time.Time
	Completed    bool
}

// ResumeSnapshot is the durable cross-device record of what was playing
// and where. One exists per device identity; it is overwritten on every
// meaningful checkpoint and deleted on explicit stop.
type ResumeSnapshot struct {
	Track     Track
	Position  time.Duration
	Rate      float64
	UpdatedAt time.Time
}

// ClipResult is the ephemeral output of the clip extraction pipeline.
// It is owned by the caller until discarded; it is never persisted.
type ClipResult struct {
	// Data is the complete WAV payload
	Data []byte

	// Filename encodes the source and start offset for traceability
	Filename string

	// ActualDuration is the clipped duration, which may be shorter than
	// requested near the end of a track
	ActualDuration time.Duration
}

// TrackHandle is an opaque identifier the audio engine uses to reference
// a loaded sound instance.
type TrackHandle int64

const (
	// InvalidTrackHandle represents an invalid or uninitialized track handle
	InvalidTrackHandle TrackHandle = 0
)
