// Package ports defines interfaces for dependency inversion.
// These interfaces allow the core business logic to remain independent of external frameworks.
package ports

import (
	"time"

	"github.com/iredox10/minbar/internal/domain"
)

// AudioEngine is the interface for audio playback engines.
// It abstracts the underlying audio stack and allows testing with mocks.
//
// Engines own at most one meaningful instance per handle; the services layer
// guarantees no two instances are kept alive concurrently by unconditionally
// unloading the previous handle before loading a new one.
//
// Implementations must be thread-safe as they may be called from multiple
// goroutines.
type AudioEngine interface {
	// Load opens the audio at the given location and returns a handle to it.
	// The format hint selects the decoder; implementations fall back to a
	// default decoder when the hint is wrong or unknown.
	//
	// Returns a TrackHandle for the loaded instance, or an error if loading fails.
	Load(url string, format domain.AudioFormat) (domain.TrackHandle, error)

	// Unload releases all resources of a previously loaded instance.
	// Unloading an unknown handle returns domain.ErrInvalidTrackHandle.
	Unload(handle domain.TrackHandle) error

	// Play starts or resumes playback of the instance.
	Play(handle domain.TrackHandle) error

	// Pause suspends playback, preserving the position.
	Pause(handle domain.TrackHandle) error

	// Stop halts playback and releases the instance. The handle is invalid
	// afterwards.
	Stop(handle domain.TrackHandle) error

	// Status returns the transport state of the instance.
	Status(handle domain.TrackHandle) (domain.EngineStatus, error)

	// Position returns the current playback position within the instance.
	Position(handle domain.TrackHandle) (time.Duration, error)

	// Duration returns the total duration of the instance (0 for unbounded
	// live streams).
	Duration(handle domain.TrackHandle) (time.Duration, error)

	// Seek sets the playback position. Positions outside [0, Duration] are
	// rejected with domain.ErrInvalidIndex semantics by implementations.
	Seek(handle domain.TrackHandle, position time.Duration) error

	// SetVolume sets the playback volume from 0.0 (silent) to 1.0 (full).
	SetVolume(handle domain.TrackHandle, volume float64) error

	// SetRate sets the playback rate (1.0 = normal speed).
	SetRate(handle domain.TrackHandle, rate float64) error

	// SetCompletionCallback registers the function invoked when a loaded
	// instance reaches its natural end. At most one callback is active;
	// setting a new one replaces the previous. The callback may be invoked
	// from the engine's playback goroutine and must not call back into the
	// engine while holding its own locks.
	SetCompletionCallback(fn func(handle domain.TrackHandle))

	// Close releases engine-wide resources. All handles become invalid.
	Close() error
}

// MediaCommand is a transport command received from the system
// media-control surface.
type MediaCommand int

const (
	CmdPlay MediaCommand = iota
	CmdPause
	CmdPlayPause
	CmdStop
	CmdNext
	CmdPrevious
)

// MediaSession mirrors now-playing metadata and transport state into the
// platform's media-control surface and relays OS transport commands back.
//
// Integration is best-effort: implementations must degrade silently when the
// platform surface is unavailable, and callers must swallow errors.
type MediaSession interface {
	// SetNowPlaying publishes track metadata to the system surface.
	SetNowPlaying(track domain.Track) error

	// SetPlaybackStatus publishes the transport state and position.
	SetPlaybackStatus(status domain.PlayerStatus, position time.Duration) error

	// Commands returns the channel on which OS transport commands arrive.
	// The channel is closed by Close.
	Commands() <-chan MediaCommand

	// Close tears down the platform integration.
	Close() error
}
