// Package service provides the business logic of the playback core.
package service

import (
	"log/slog"
	"sync"
	"time"

	"github.com/iredox10/minbar/internal/domain"
	"github.com/iredox10/minbar/internal/ports"
)

// PlayerService orchestrates the audio engine for a single track at a time.
// It manages transport state, volume, mute, playback rate and the sleep
// timer, and mirrors state into the platform media session.
// All operations are thread-safe via sync.RWMutex.
type PlayerService struct {
	// Dependencies (injected)
	logger *slog.Logger
	engine ports.AudioEngine
	bus    ports.EventBus
	media  ports.MediaSession

	// State
	currentTrack   *domain.Track
	currentHandle  domain.TrackHandle
	volume         float64 // Desired volume; kept across mute so unmute restores it
	isMuted        bool
	rate           float64
	sleepTimer     *time.Timer
	sleepDeadline  time.Time
	updateInterval time.Duration

	// Concurrency control
	mu            sync.RWMutex
	stopUpdate    chan struct{}
	updateRunning bool
	updateWg      sync.WaitGroup
	manualStop    bool // True if the user explicitly stopped playback
}

// NewPlayerService creates a player service and starts its progress routine.
// media may be a noop session.
func NewPlayerService(
	logger *slog.Logger,
	engine ports.AudioEngine,
	bus ports.EventBus,
	media ports.MediaSession,
) *PlayerService {
	service := &PlayerService{
		logger:         logger,
		engine:         engine,
		bus:            bus,
		media:          media,
		currentHandle:  domain.InvalidTrackHandle,
		volume:         0.8, // Default 80% volume
		rate:           1.0,
		updateInterval: 333 * time.Millisecond, // 3 times per second
		stopUpdate:     make(chan struct{}),
	}

	engine.SetCompletionCallback(service.handleCompletion)

	logger.Debug("player service initialized")

	service.startUpdateRoutine()

	return service
}

// LoadTrack loads a track for playback, tearing down any prior instance
// first so at most one engine instance is ever alive.
func (s *PlayerService) LoadTrack(track domain.Track) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Debug("loading track",
		slog.String("track_id", track.ID), slog.String("url", track.AudioURL))

	if s.currentHandle != domain.InvalidTrackHandle {
		if err := s.stopInternal(); err != nil {
			s.logger.Warn("failed to stop current track", slog.Any("error", err))
		}
	}

	format := domain.FormatFromURL(track.AudioURL)
	handle, err := s.engine.Load(track.AudioURL, format)
	if err != nil {
		s.logger.Debug("failed to load track", slog.Any("error", err))
		s.bus.Publish(domain.NewTrackErrorEvent(track, err))
		return err
	}

	// Apply transport parameters to the fresh instance.
	targetVolume := s.volume
	if s.isMuted {
		targetVolume = 0.0
	}
	if err := s.engine.SetVolume(handle, targetVolume); err != nil {
		s.unloadAfterSetupError(handle, "volume", err)
		return err
	}
	if s.rate != 1.0 {
		if err := s.engine.SetRate(handle, s.rate); err != nil {
			s.unloadAfterSetupError(handle, "rate", err)
			return err
		}
	}

	duration, err := s.engine.Duration(handle)
	if err != nil {
		s.unloadAfterSetupError(handle, "duration", err)
		return err
	}

	s.currentTrack = &track
	s.currentHandle = handle
	s.manualStop = false

	s.bus.Publish(domain.NewTrackLoadedEvent(track, handle, duration))
	s.mirrorNowPlaying(track)

	return nil
}

func (s *PlayerService) unloadAfterSetupError(handle domain.TrackHandle, step string, err error) {
	s.logger.Debug("track setup failed", slog.String("step", step), slog.Any("error", err))
	if unloadErr := s.engine.Unload(handle); unloadErr != nil {
		s.logger.Warn("failed to unload track after setup error", slog.Any("error", unloadErr))
	}
}

// Play starts or resumes playback of the current track.
func (s *PlayerService) Play() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.currentHandle == domain.InvalidTrackHandle {
		return domain.ErrNoTrackLoaded
	}

	status, err := s.engine.Status(s.currentHandle)
	if err != nil {
		return err
	}
	if status == domain.EnginePlaying {
		return nil
	}

	s.manualStop = false
	if err := s.engine.Play(s.currentHandle); err != nil {
		return err
	}

	if s.currentTrack != nil {
		s.bus.Publish(domain.NewTrackStartedEvent(*s.currentTrack))
	}
	s.mirrorStatus(domain.StatusPlaying)

	return nil
}

// Pause suspends playback of the current track, preserving the position.
func (s *PlayerService) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.pauseInternal()
}

// pauseInternal pauses without locking (caller must hold lock).
func (s *PlayerService) pauseInternal() error {
	if s.currentHandle == domain.InvalidTrackHandle {
		return domain.ErrNoTrackLoaded
	}

	position, err := s.engine.Position(s.currentHandle)
	if err != nil {
		position = 0
	}

	if err := s.engine.Pause(s.currentHandle); err != nil {
		return err
	}

	if s.currentTrack != nil {
		s.bus.Publish(domain.NewTrackPausedEvent(*s.currentTrack, position))
	}
	s.mirrorStatus(domain.StatusPaused)

	return nil
}

// Toggle plays when paused or stopped and pauses when playing.
func (s *PlayerService) Toggle() error {
	s.mu.RLock()
	handle := s.currentHandle
	s.mu.RUnlock()

	if handle == domain.InvalidTrackHandle {
		return domain.ErrNoTrackLoaded
	}

	status, err := s.engine.Status(handle)
	if err != nil {
		return err
	}

	if status == domain.EnginePlaying {
		return s.Pause()
	}
	return s.Play()
}

// Stop halts playback and unloads the current track.
func (s *PlayerService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.stopInternal()
}

// stopInternal stops playback without locking (caller must hold lock).
func (s *PlayerService) stopInternal() error {
	if s.currentHandle == domain.InvalidTrackHandle {
		return nil
	}

	s.manualStop = true

	if err := s.engine.Stop(s.currentHandle); err != nil {
		// Even if stop fails, clear our state
		s.currentHandle = domain.InvalidTrackHandle
		s.currentTrack = nil
		return err
	}

	if s.currentTrack != nil {
		s.bus.Publish(domain.NewTrackStoppedEvent(*s.currentTrack))
	}
	s.mirrorStatus(domain.StatusIdle)

	s.currentHandle = domain.InvalidTrackHandle
	s.currentTrack = nil

	return nil
}

// Seek sets the playback position of the current track.
func (s *PlayerService) Seek(position time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.currentHandle == domain.InvalidTrackHandle {
		return domain.ErrNoTrackLoaded
	}

	if err := s.engine.Seek(s.currentHandle, position); err != nil {
		return err
	}

	duration, err := s.engine.Duration(s.currentHandle)
	if err != nil {
		duration = 0
	}
	s.bus.Publish(domain.NewTrackProgressEvent(position, duration))

	return nil
}

// SeekRelative moves the position by delta, clamped to [0, duration].
func (s *PlayerService) SeekRelative(delta time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.currentHandle == domain.InvalidTrackHandle {
		return domain.ErrNoTrackLoaded
	}

	position, err := s.engine.Position(s.currentHandle)
	if err != nil {
		return err
	}
	duration, err := s.engine.Duration(s.currentHandle)
	if err != nil {
		return err
	}

	target := position + delta
	if target < 0 {
		target = 0
	}
	if duration > 0 && target > duration {
		target = duration
	}

	if err := s.engine.Seek(s.currentHandle, target); err != nil {
		return err
	}

	s.bus.Publish(domain.NewTrackProgressEvent(target, duration))

	return nil
}

// SetVolume sets the playback volume, clamping to [0, 1].
func (s *PlayerService) SetVolume(volume float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if volume < 0.0 {
		volume = 0.0
	}
	if volume > 1.0 {
		volume = 1.0
	}

	s.volume = volume

	// If muted, remember the volume but keep the engine silent.
	if s.isMuted {
		s.bus.Publish(domain.NewVolumeChangedEvent(volume))
		return nil
	}

	if s.currentHandle != domain.InvalidTrackHandle {
		if err := s.engine.SetVolume(s.currentHandle, volume); err != nil {
			return err
		}
	}

	s.bus.Publish(domain.NewVolumeChangedEvent(volume))

	return nil
}

// Volume returns the current volume.
func (s *PlayerService) Volume() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.volume
}

// Mute mutes or unmutes playback, restoring the pre-mute volume on unmute.
func (s *PlayerService) Mute(mute bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isMuted == mute {
		return nil
	}

	s.isMuted = mute

	if s.currentHandle != domain.InvalidTrackHandle {
		targetVolume := s.volume
		if mute {
			targetVolume = 0.0
		}

		if err := s.engine.SetVolume(s.currentHandle, targetVolume); err != nil {
			return err
		}
	}

	s.bus.Publish(domain.NewMuteToggledEvent(s.isMuted))

	return nil
}

// ToggleMute flips the mute state.
func (s *PlayerService) ToggleMute() error {
	s.mu.RLock()
	muted := s.isMuted
	s.mu.RUnlock()

	return s.Mute(!muted)
}

// IsMuted returns true if playback is muted.
func (s *PlayerService) IsMuted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.isMuted
}

// SetRate sets the playback rate. The rate is remembered and applied to
// future tracks even when nothing is loaded.
func (s *PlayerService) SetRate(rate float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rate < 0.25 || rate > 4.0 {
		return domain.ErrInvalidRate
	}

	s.rate = rate

	if s.currentHandle != domain.InvalidTrackHandle {
		if err := s.engine.SetRate(s.currentHandle, rate); err != nil {
			return err
		}
	}

	s.bus.Publish(domain.NewRateChangedEvent(rate))

	return nil
}

// Rate returns the current playback rate.
func (s *PlayerService) Rate() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.rate
}

// SetSleepTimer arms the sleep timer for the given duration. Setting a new
// timer replaces a pending one. On expiry playback pauses and the timer
// clears itself.
func (s *PlayerService) SetSleepTimer(d time.Duration) error {
	if d <= 0 {
		return domain.NewValidationError("duration", d, "sleep timer duration must be positive")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sleepTimer != nil {
		s.sleepTimer.Stop()
	}

	deadline := time.Now().Add(d)
	s.sleepDeadline = deadline
	s.sleepTimer = time.AfterFunc(d, s.handleSleepExpiry)

	s.bus.Publish(domain.NewSleepTimerSetEvent(deadline))

	return nil
}

// ClearSleepTimer disarms a pending sleep timer.
func (s *PlayerService) ClearSleepTimer() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sleepTimer == nil {
		return
	}

	s.sleepTimer.Stop()
	s.sleepTimer = nil
	s.sleepDeadline = time.Time{}

	s.bus.Publish(domain.NewSleepTimerSetEvent(time.Time{}))
}

// SleepDeadline returns the wall-clock time the sleep timer fires, or zero
// when no timer is armed.
func (s *PlayerService) SleepDeadline() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.sleepDeadline
}

// SleepRemaining returns the time until the sleep timer fires, or zero when
// no timer is armed.
func (s *PlayerService) SleepRemaining() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.sleepDeadline.IsZero() {
		return 0
	}
	remaining := time.Until(s.sleepDeadline)
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (s *PlayerService) handleSleepExpiry() {
	s.mu.Lock()

	s.sleepTimer = nil
	s.sleepDeadline = time.Time{}

	if s.currentHandle != domain.InvalidTrackHandle {
		if err := s.pauseInternal(); err != nil {
			s.logger.Warn("sleep timer pause failed", slog.Any("error", err))
		}
	}

	s.mu.Unlock()

	s.bus.Publish(domain.NewSleepTimerFiredEvent())
}

// CurrentTrack returns the loaded track, or nil when idle.
func (s *PlayerService) CurrentTrack() *domain.Track {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.currentTrack == nil {
		return nil
	}
	track := *s.currentTrack
	return &track
}

// Status returns the transport state derived from the engine.
func (s *PlayerService) Status() domain.PlayerStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.currentHandle == domain.InvalidTrackHandle {
		return domain.StatusIdle
	}

	status, err := s.engine.Status(s.currentHandle)
	if err != nil {
		return domain.StatusIdle
	}

	switch status {
	case domain.EnginePlaying:
		return domain.StatusPlaying
	case domain.EnginePaused:
		return domain.StatusPaused
	default:
		return domain.StatusIdle
	}
}

// Position returns the playback position, or zero when nothing is loaded.
func (s *PlayerService) Position() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.currentHandle == domain.InvalidTrackHandle {
		return 0
	}
	position, err := s.engine.Position(s.currentHandle)
	if err != nil {
		return 0
	}
	return position
}

// Duration returns the loaded track's duration, or zero when nothing is
// loaded or the stream is unbounded.
func (s *PlayerService) Duration() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.currentHandle == domain.InvalidTrackHandle {
		return 0
	}
	duration, err := s.engine.Duration(s.currentHandle)
	if err != nil {
		return 0
	}
	return duration
}

// Shutdown stops the progress routine, disarms the sleep timer and unloads
// the current track.
func (s *PlayerService) Shutdown() error {
	s.mu.Lock()

	if s.updateRunning {
		close(s.stopUpdate)
		s.updateRunning = false
	}
	if s.sleepTimer != nil {
		s.sleepTimer.Stop()
		s.sleepTimer = nil
	}

	// Release lock before waiting for the update goroutine (avoids deadlock).
	s.mu.Unlock()

	s.updateWg.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.stopInternal()
}

// handleCompletion is invoked by the engine when an instance reaches its
// natural end. It forwards every signal, duplicates included; exactly-once
// advance semantics are the session controller's responsibility.
func (s *PlayerService) handleCompletion(handle domain.TrackHandle) {
	s.mu.Lock()

	if handle != s.currentHandle || s.currentTrack == nil || s.manualStop {
		s.mu.Unlock()
		return
	}
	track := *s.currentTrack
	var position time.Duration
	if p, err := s.engine.Position(handle); err == nil {
		position = p
	}

	s.mu.Unlock()

	s.bus.Publish(domain.NewTrackCompletedEvent(track, handle))

	if s.media != nil {
		if err := s.media.SetPlaybackStatus(domain.StatusIdle, position); err != nil {
			s.logger.Debug("media session status update failed", slog.Any("error", err))
		}
	}
}

// mirrorNowPlaying pushes metadata to the media session. Failures are
// logged at debug level and swallowed; the surface is best-effort.
func (s *PlayerService) mirrorNowPlaying(track domain.Track) {
	if s.media == nil {
		return
	}
	if err := s.media.SetNowPlaying(track); err != nil {
		s.logger.Debug("media session metadata update failed", slog.Any("error", err))
	}
}

// mirrorStatus pushes the transport state to the media session.
func (s *PlayerService) mirrorStatus(status domain.PlayerStatus) {
	if s.media == nil {
		return
	}

	var position time.Duration
	if s.currentHandle != domain.InvalidTrackHandle {
		if p, err := s.engine.Position(s.currentHandle); err == nil {
			position = p
		}
	}

	if err := s.media.SetPlaybackStatus(status, position); err != nil {
		s.logger.Debug("media session status update failed", slog.Any("error", err))
	}
}

// startUpdateRoutine starts a goroutine that periodically publishes
// progress events while a track is playing.
func (s *PlayerService) startUpdateRoutine() {
	s.mu.Lock()
	if s.updateRunning {
		s.mu.Unlock()
		return
	}
	s.updateRunning = true
	s.updateWg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.updateWg.Done()
		ticker := time.NewTicker(s.updateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-s.stopUpdate:
				return

			case <-ticker.C:
				s.publishProgressUpdate()
			}
		}
	}()
}

// publishProgressUpdate publishes a progress event if a track is playing.
func (s *PlayerService) publishProgressUpdate() {
	s.mu.RLock()

	if s.currentHandle == domain.InvalidTrackHandle || s.currentTrack == nil {
		s.mu.RUnlock()
		return
	}

	status, err := s.engine.Status(s.currentHandle)
	if err != nil || status != domain.EnginePlaying {
		s.mu.RUnlock()
		return
	}

	position, err := s.engine.Position(s.currentHandle)
	if err != nil {
		s.mu.RUnlock()
		return
	}
	duration, err := s.engine.Duration(s.currentHandle)
	if err != nil {
		s.mu.RUnlock()
		return
	}

	s.mu.RUnlock()

	// Event bus is thread-safe; publish with no lock held.
	s.bus.Publish(domain.NewTrackProgressEvent(position, duration))
}
