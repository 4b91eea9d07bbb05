// Package mock provides a mock implementation of the AudioEngine interface.
// It is used for testing services without opening network streams or an
// audio device.
package mock

import (
	"sync"
	"time"

	"github.com/iredox10/minbar/internal/domain"
	"github.com/iredox10/minbar/internal/ports"
)

// Engine is a mock implementation of the AudioEngine interface.
// It simulates playback state in memory without producing audio.
//
// Thread-safety: this implementation is thread-safe.
type Engine struct {
	tracks     map[domain.TrackHandle]*mockTrack
	nextHandle domain.TrackHandle
	onComplete func(domain.TrackHandle)
	mu         sync.RWMutex

	// Behavior configuration (for testing error scenarios)
	failLoad bool
	failPlay bool

	// Per-URL durations, falling back to defaultDuration
	durations       map[string]time.Duration
	defaultDuration time.Duration
}

// mockTrack represents a loaded instance in the mock engine.
type mockTrack struct {
	url      string
	format   domain.AudioFormat
	duration time.Duration
	position time.Duration
	volume   float64
	rate     float64
	status   domain.EngineStatus
	played   bool
}

// NewEngine creates a new mock audio engine.
func NewEngine() *Engine {
	return &Engine{
		tracks:          make(map[domain.TrackHandle]*mockTrack),
		nextHandle:      1,
		durations:       make(map[string]time.Duration),
		defaultDuration: 3 * time.Minute,
	}
}

// SetFailLoad configures the mock to fail loading (for testing).
func (m *Engine) SetFailLoad(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failLoad = fail
}

// SetFailPlay configures the mock to fail playback (for testing).
func (m *Engine) SetFailPlay(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failPlay = fail
}

// SetTrackDuration fixes the duration reported for a URL.
func (m *Engine) SetTrackDuration(url string, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.durations[url] = d
}

// SetPosition moves a loaded instance's position directly (for testing).
func (m *Engine) SetPosition(handle domain.TrackHandle, pos time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if track, ok := m.tracks[handle]; ok {
		track.position = pos
	}
}

// SignalCompletion simulates the instance reaching its natural end. The
// completion callback is invoked synchronously, outside the engine lock,
// once per call: calling twice simulates a duplicate end signal from the
// underlying audio stack.
func (m *Engine) SignalCompletion(handle domain.TrackHandle) {
	m.mu.Lock()
	track, ok := m.tracks[handle]
	if ok {
		track.status = domain.EngineStopped
		track.position = track.duration
	}
	fn := m.onComplete
	m.mu.Unlock()

	if ok && fn != nil {
		fn(handle)
	}
}

// InstanceVolume returns the volume applied to a loaded instance (for
// testing).
func (m *Engine) InstanceVolume(handle domain.TrackHandle) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if track, ok := m.tracks[handle]; ok {
		return track.volume
	}
	return 0
}

// LoadedCount returns the number of currently loaded instances.
func (m *Engine) LoadedCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tracks)
}

// Load opens a simulated instance for the URL.
func (m *Engine) Load(url string, format domain.AudioFormat) (domain.TrackHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failLoad {
		return domain.InvalidTrackHandle, domain.NewEngineError("load", url, "mock load failed", nil)
	}
	if url == "" {
		return domain.InvalidTrackHandle, domain.ErrInvalidURL
	}

	duration := m.defaultDuration
	if d, ok := m.durations[url]; ok {
		duration = d
	}

	handle := m.nextHandle
	m.nextHandle++

	m.tracks[handle] = &mockTrack{
		url:      url,
		format:   format,
		duration: duration,
		volume:   1.0,
		rate:     1.0,
		status:   domain.EngineStopped,
	}

	return handle, nil
}

// Unload releases a simulated instance.
func (m *Engine) Unload(handle domain.TrackHandle) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tracks[handle]; !ok {
		return domain.ErrInvalidTrackHandle
	}
	delete(m.tracks, handle)
	return nil
}

// Play starts or resumes simulated playback.
func (m *Engine) Play(handle domain.TrackHandle) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	track, ok := m.tracks[handle]
	if !ok {
		return domain.ErrInvalidTrackHandle
	}
	if m.failPlay {
		return domain.NewEngineError("play", track.url, "mock play failed", nil)
	}
	track.status = domain.EnginePlaying
	track.played = true
	return nil
}

// Pause suspends simulated playback.
func (m *Engine) Pause(handle domain.TrackHandle) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	track, ok := m.tracks[handle]
	if !ok {
		return domain.ErrInvalidTrackHandle
	}
	track.status = domain.EnginePaused
	return nil
}

// Stop halts and releases the instance.
func (m *Engine) Stop(handle domain.TrackHandle) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tracks[handle]; !ok {
		return domain.ErrInvalidTrackHandle
	}
	delete(m.tracks, handle)
	return nil
}

// Status returns the simulated transport state.
func (m *Engine) Status(handle domain.TrackHandle) (domain.EngineStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	track, ok := m.tracks[handle]
	if !ok {
		return domain.EngineStopped, domain.ErrInvalidTrackHandle
	}
	return track.status, nil
}

// Position returns the simulated position.
func (m *Engine) Position(handle domain.TrackHandle) (time.Duration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	track, ok := m.tracks[handle]
	if !ok {
		return 0, domain.ErrInvalidTrackHandle
	}
	return track.position, nil
}

// Duration returns the simulated duration.
func (m *Engine) Duration(handle domain.TrackHandle) (time.Duration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	track, ok := m.tracks[handle]
	if !ok {
		return 0, domain.ErrInvalidTrackHandle
	}
	return track.duration, nil
}

// Seek moves the simulated position.
func (m *Engine) Seek(handle domain.TrackHandle, position time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	track, ok := m.tracks[handle]
	if !ok {
		return domain.ErrInvalidTrackHandle
	}
	if position < 0 || (track.duration > 0 && position > track.duration) {
		return domain.NewEngineError("seek", track.url, "position out of range", nil)
	}
	track.position = position
	return nil
}

// SetVolume records the volume for the instance.
func (m *Engine) SetVolume(handle domain.TrackHandle, volume float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	track, ok := m.tracks[handle]
	if !ok {
		return domain.ErrInvalidTrackHandle
	}
	if volume < 0 || volume > 1 {
		return domain.ErrInvalidVolume
	}
	track.volume = volume
	return nil
}

// SetRate records the playback rate for the instance.
func (m *Engine) SetRate(handle domain.TrackHandle, rate float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	track, ok := m.tracks[handle]
	if !ok {
		return domain.ErrInvalidTrackHandle
	}
	if rate <= 0 {
		return domain.ErrInvalidRate
	}
	track.rate = rate
	return nil
}

// SetCompletionCallback registers the natural-end callback.
func (m *Engine) SetCompletionCallback(fn func(domain.TrackHandle)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onComplete = fn
}

// Close releases all simulated instances.
func (m *Engine) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tracks = make(map[domain.TrackHandle]*mockTrack)
	return nil
}

var _ ports.AudioEngine = (*Engine)(nil)
