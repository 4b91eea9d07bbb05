package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/iredox10/minbar/internal/domain"
	"github.com/iredox10/minbar/internal/ports"
)

// SessionService drives the listening session on top of the player: the
// play queue, repeat mode, favorites, durable progress and the resume
// snapshot that lets a session survive restarts and follow the listener
// across devices.
//
// It subscribes to track-completed events and owns the advance decision.
// Duplicate end signals for the same engine instance are collapsed to a
// single advance: the instance handle is recorded before the advance starts
// and an in-flight flag blocks concurrent re-entry until it completes.
//
// All operations are thread-safe via sync.RWMutex.
type SessionService struct {
	// Dependencies (injected)
	logger    *slog.Logger
	player    *PlayerService
	bus       ports.EventBus
	progress  ports.ProgressRepository
	resume    ports.ResumeRepository
	favorites ports.FavoritesRepository
	sync      ports.SyncStore    // optional remote mirror
	series    ports.SeriesLookup // optional queue rebuild source
	telemetry ports.Telemetry    // optional

	deviceID     string
	syncInterval time.Duration

	// State
	queue        []domain.Track
	index        int
	repeat       domain.RepeatMode
	status       domain.PlayerStatus
	currentTrack *domain.Track
	idlePosition time.Duration // position while idle-with-track (restored, not yet playing)
	favorite     bool          // favorite flag of currentTrack, re-derived on track change

	// End-of-track single-flight guard
	advancing       bool
	completedHandle domain.TrackHandle

	// Concurrency control
	mu          sync.RWMutex
	subID       domain.SubscriptionID
	stopSync    chan struct{}
	syncRunning bool
	syncWg      sync.WaitGroup
	cmdWg       sync.WaitGroup
}

// SessionConfig carries the session-level tunables.
type SessionConfig struct {
	// DeviceID keys the remote resume snapshot.
	DeviceID string

	// SyncInterval is the cadence of the periodic resume checkpoint.
	SyncInterval time.Duration
}

// NewSessionService creates a session service, subscribes it to completion
// events and starts the periodic resume checkpoint. syncStore, series and
// telemetry may be nil; commands may be nil when no media-control surface
// exists, and must be closed (via the media session) before Shutdown.
func NewSessionService(
	logger *slog.Logger,
	player *PlayerService,
	bus ports.EventBus,
	progress ports.ProgressRepository,
	resume ports.ResumeRepository,
	favorites ports.FavoritesRepository,
	syncStore ports.SyncStore,
	series ports.SeriesLookup,
	telemetry ports.Telemetry,
	commands <-chan ports.MediaCommand,
	cfg SessionConfig,
) *SessionService {
	if cfg.SyncInterval <= 0 {
		cfg.SyncInterval = 15 * time.Second
	}

	s := &SessionService{
		logger:       logger,
		player:       player,
		bus:          bus,
		progress:     progress,
		resume:       resume,
		favorites:    favorites,
		sync:         syncStore,
		series:       series,
		telemetry:    telemetry,
		deviceID:     cfg.DeviceID,
		syncInterval: cfg.SyncInterval,
		index:        -1,
		status:       domain.StatusIdle,
		stopSync:     make(chan struct{}),
	}

	s.subID = bus.Subscribe(domain.EventTrackCompleted, s.handleTrackCompleted)
	s.startSyncRoutine()
	if commands != nil {
		s.startCommandRoutine(commands)
	}

	logger.Debug("session service initialized", slog.String("device_id", cfg.DeviceID))

	return s
}

// Play starts playback of a track. If the track is already in the queue the
// index moves to it; otherwise the queue is replaced by the single track.
// The resume snapshot is written before the load is attempted, so a crash
// mid-load still resumes at this track.
func (s *SessionService) Play(track domain.Track, startPos time.Duration) error {
	s.mu.Lock()
	found := -1
	for i, queued := range s.queue {
		if queued.ID == track.ID {
			found = i
			break
		}
	}
	if found >= 0 {
		s.index = found
	} else {
		s.queue = []domain.Track{track}
		s.index = 0
	}
	s.mu.Unlock()

	return s.startPlayback(track, startPos)
}

// PlayQueue replaces the queue and starts playback at the given index.
func (s *SessionService) PlayQueue(tracks []domain.Track, index int) error {
	if len(tracks) == 0 {
		return domain.ErrQueueEmpty
	}
	if index < 0 || index >= len(tracks) {
		return domain.ErrInvalidIndex
	}

	s.mu.Lock()
	s.queue = make([]domain.Track, len(tracks))
	copy(s.queue, tracks)
	s.index = index
	track := s.queue[index]
	s.mu.Unlock()

	return s.startPlayback(track, 0)
}

// PlayAll fetches a series' episodes and plays them from the beginning.
func (s *SessionService) PlayAll(ctx context.Context, seriesID string) error {
	if s.series == nil {
		return domain.ErrNotFound
	}

	episodes, err := s.series.Episodes(ctx, seriesID)
	if err != nil {
		return err
	}
	return s.PlayQueue(episodes, 0)
}

// startPlayback assumes queue and index are already set.
func (s *SessionService) startPlayback(track domain.Track, startPos time.Duration) error {
	s.mu.Lock()
	s.currentTrack = &track
	s.status = domain.StatusLoading
	s.idlePosition = 0
	queue, index := s.queueSnapshot()
	s.mu.Unlock()

	s.refreshFavorite(track)

	// Snapshot first: a failure after this point must still resume here.
	s.persistSnapshot(track, startPos)
	if s.telemetry != nil {
		s.telemetry.Emit("play.started", map[string]string{
			"track_id": track.ID,
			"kind":     string(track.Kind),
		})
	}
	s.bus.Publish(domain.NewQueueChangedEvent(queue, index))

	if err := s.player.LoadTrack(track); err != nil {
		s.setStatus(domain.StatusIdle)
		return err
	}
	if startPos > 0 {
		if err := s.player.Seek(startPos); err != nil {
			s.logger.Warn("seeking to start position failed", slog.Any("error", err))
		}
	}
	if err := s.player.Play(); err != nil {
		s.setStatus(domain.StatusIdle)
		return err
	}

	s.setStatus(domain.StatusPlaying)
	return nil
}

// Pause suspends playback and checkpoints progress and the resume snapshot.
func (s *SessionService) Pause() error {
	if err := s.player.Pause(); err != nil {
		return err
	}
	s.setStatus(domain.StatusPaused)

	s.mu.RLock()
	track := s.currentTrack
	s.mu.RUnlock()
	if track != nil {
		position := s.player.Position()
		s.persistProgress(*track, position, false)
		s.persistSnapshot(*track, position)
	}

	return nil
}

// Resume continues playback. While idle with a restored track it starts
// playback at the restored position.
func (s *SessionService) Resume() error {
	s.mu.RLock()
	idleWithTrack := s.status == domain.StatusIdle && s.currentTrack != nil
	var track domain.Track
	var position time.Duration
	if idleWithTrack {
		track = *s.currentTrack
		position = s.idlePosition
	}
	s.mu.RUnlock()

	if idleWithTrack {
		return s.startPlayback(track, position)
	}

	if err := s.player.Play(); err != nil {
		return err
	}
	s.setStatus(domain.StatusPlaying)
	return nil
}

// Toggle pauses when playing and resumes otherwise.
func (s *SessionService) Toggle() error {
	s.mu.RLock()
	status := s.status
	s.mu.RUnlock()

	if status == domain.StatusPlaying {
		return s.Pause()
	}
	return s.Resume()
}

// Stop halts playback, clears the session and deletes the resume snapshot.
func (s *SessionService) Stop() error {
	if err := s.player.Stop(); err != nil {
		s.logger.Warn("engine stop failed", slog.Any("error", err))
	}

	s.mu.Lock()
	s.currentTrack = nil
	s.status = domain.StatusIdle
	s.idlePosition = 0
	s.favorite = false
	s.mu.Unlock()

	if err := s.resume.Delete(); err != nil {
		s.logger.Warn("deleting resume snapshot failed", slog.Any("error", err))
	}
	s.deleteRemoteSnapshot()

	return nil
}

// Seek sets the playback position. While idle with a restored track the
// position is mutated optimistically and checkpointed without touching the
// engine.
func (s *SessionService) Seek(position time.Duration) error {
	s.mu.Lock()
	if s.status == domain.StatusIdle && s.currentTrack != nil {
		track := *s.currentTrack
		position = clampPosition(position, track.Duration)
		s.idlePosition = position
		s.mu.Unlock()

		s.persistSnapshot(track, position)
		return nil
	}
	s.mu.Unlock()

	return s.player.Seek(position)
}

// SeekRelative moves the position by delta, clamped to [0, duration].
func (s *SessionService) SeekRelative(delta time.Duration) error {
	s.mu.Lock()
	if s.status == domain.StatusIdle && s.currentTrack != nil {
		track := *s.currentTrack
		position := clampPosition(s.idlePosition+delta, track.Duration)
		s.idlePosition = position
		s.mu.Unlock()

		s.persistSnapshot(track, position)
		return nil
	}
	s.mu.Unlock()

	return s.player.SeekRelative(delta)
}

// ToggleRepeat cycles the repeat mode off -> one -> all -> off.
func (s *SessionService) ToggleRepeat() domain.RepeatMode {
	s.mu.Lock()
	s.repeat = s.repeat.Next()
	mode := s.repeat
	s.mu.Unlock()

	s.bus.Publish(domain.NewRepeatChangedEvent(mode))
	return mode
}

// RepeatMode returns the active repeat mode.
func (s *SessionService) RepeatMode() domain.RepeatMode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.repeat
}

// PlayNext advances to the next queue entry. At the end of the queue it
// wraps only under repeat-all; otherwise it is a no-op.
func (s *SessionService) PlayNext() error {
	s.mu.Lock()
	if len(s.queue) == 0 {
		s.mu.Unlock()
		return domain.ErrQueueEmpty
	}

	next := s.index + 1
	if next >= len(s.queue) {
		if s.repeat != domain.RepeatAll {
			s.mu.Unlock()
			return nil
		}
		next = 0
	}
	s.index = next
	track := s.queue[next]
	s.mu.Unlock()

	return s.startPlayback(track, 0)
}

// PlayPrevious restarts the current track when more than 3 seconds in;
// otherwise it moves back one entry, wrapping only under repeat-all.
func (s *SessionService) PlayPrevious() error {
	s.mu.Lock()
	if len(s.queue) == 0 {
		s.mu.Unlock()
		return domain.ErrQueueEmpty
	}

	position := s.idlePosition
	s.mu.Unlock()
	if s.player.CurrentTrack() != nil {
		position = s.player.Position()
	}

	s.mu.Lock()
	target := s.index
	if position <= 3*time.Second {
		switch {
		case s.index > 0:
			target = s.index - 1
		case s.repeat == domain.RepeatAll:
			target = len(s.queue) - 1
		}
	}
	s.index = target
	track := s.queue[target]
	s.mu.Unlock()

	return s.startPlayback(track, 0)
}

// ToggleFavorite flips the favorite flag for a track and returns the new
// flag as re-derived from the store. Radio streams cannot be favorited and
// toggle is a no-op for them.
func (s *SessionService) ToggleFavorite(track domain.Track) (bool, error) {
	if !track.Kind.Favoritable() {
		return false, nil
	}

	current, err := s.favorites.IsFavorite(track.Kind, track.ID)
	if err != nil {
		return false, err
	}
	if err := s.favorites.Set(track.Kind, track.ID, !current); err != nil {
		return current, err
	}

	// Re-derive rather than assume: the store is the source of truth.
	flag, err := s.favorites.IsFavorite(track.Kind, track.ID)
	if err != nil {
		return !current, err
	}

	s.mu.Lock()
	if s.currentTrack != nil && s.currentTrack.ID == track.ID {
		s.favorite = flag
	}
	s.mu.Unlock()

	s.bus.Publish(domain.NewFavoriteChangedEvent(track, flag))
	return flag, nil
}

// Restore rehydrates the session from the local resume snapshot, falling
// back to the remote sync store. The restored track is presented idle at
// the snapshot position and rate; playback does not start automatically.
// When the track belongs to a series the queue is rebuilt from the catalog.
func (s *SessionService) Restore(ctx context.Context) error {
	snapshot, err := s.resume.Load()
	if errors.Is(err, domain.ErrNoSnapshot) && s.sync != nil && s.deviceID != "" {
		snapshot, err = s.sync.Load(ctx, s.deviceID)
	}
	if err != nil {
		if errors.Is(err, domain.ErrNoSnapshot) {
			return nil
		}
		return err
	}

	if snapshot.Rate > 0 {
		if err := s.player.SetRate(snapshot.Rate); err != nil {
			s.logger.Warn("restoring playback rate failed", slog.Any("error", err))
		}
	}

	queue := []domain.Track{snapshot.Track}
	index := 0
	if snapshot.Track.SeriesID != "" && s.series != nil {
		episodes, lookupErr := s.series.Episodes(ctx, snapshot.Track.SeriesID)
		switch {
		case lookupErr != nil:
			s.logger.Warn("rebuilding queue from series failed",
				slog.String("series_id", snapshot.Track.SeriesID), slog.Any("error", lookupErr))
		case len(episodes) > 0:
			queue = episodes
			for i, episode := range episodes {
				if episode.ID == snapshot.Track.ID {
					index = i
					break
				}
			}
		}
	}

	s.mu.Lock()
	s.queue = queue
	s.index = index
	track := snapshot.Track
	s.currentTrack = &track
	s.idlePosition = snapshot.Position
	s.status = domain.StatusIdle
	queueCopy, queueIndex := s.queueSnapshot()
	s.mu.Unlock()

	s.refreshFavorite(track)
	s.bus.Publish(domain.NewQueueChangedEvent(queueCopy, queueIndex))

	s.logger.Info("session restored",
		slog.String("track_id", snapshot.Track.ID),
		slog.Duration("position", snapshot.Position))

	return nil
}

// State returns a snapshot of the session, combining queue state with the
// player's live playback settings.
func (s *SessionService) State() domain.SessionState {
	s.mu.RLock()
	state := domain.SessionState{
		CurrentTrack: s.currentTrack,
		QueueIndex:   s.index,
		QueueLength:  len(s.queue),
		Status:       s.status,
		Position:     s.idlePosition,
		Repeat:       s.repeat,
		IsFavorite:   s.favorite,
	}
	idle := s.status == domain.StatusIdle
	s.mu.RUnlock()

	state.Rate = s.player.Rate()
	state.Volume = s.player.Volume()
	state.IsMuted = s.player.IsMuted()
	state.SleepDeadline = s.player.SleepDeadline()

	if !idle {
		state.Position = s.player.Position()
		state.Duration = s.player.Duration()
	} else if state.CurrentTrack != nil {
		state.Duration = state.CurrentTrack.Duration
	}

	return state
}

// Queue returns a copy of the queue and the active index.
func (s *SessionService) Queue() ([]domain.Track, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queueSnapshot()
}

// queueSnapshot copies the queue without locking (caller must hold lock).
func (s *SessionService) queueSnapshot() ([]domain.Track, int) {
	queue := make([]domain.Track, len(s.queue))
	copy(queue, s.queue)
	return queue, s.index
}

// Shutdown stops the checkpoint routine, persists a final snapshot and
// unsubscribes from the bus. The player is shut down separately.
func (s *SessionService) Shutdown() error {
	s.mu.Lock()
	if s.syncRunning {
		close(s.stopSync)
		s.syncRunning = false
	}
	s.mu.Unlock()

	s.syncWg.Wait()
	s.cmdWg.Wait()

	s.bus.Unsubscribe(s.subID)

	s.mu.RLock()
	track := s.currentTrack
	status := s.status
	idlePosition := s.idlePosition
	s.mu.RUnlock()

	if track != nil {
		position := idlePosition
		if status != domain.StatusIdle {
			position = s.player.Position()
		}
		s.persistProgress(*track, position, false)
		s.persistSnapshot(*track, position)
	}

	return nil
}

// handleTrackCompleted reacts to a natural track end: mark progress
// complete, then replay under repeat-one, advance (wrapping only under
// repeat-all), or fall idle and clear the snapshot at the end of the queue.
func (s *SessionService) handleTrackCompleted(event domain.Event) {
	completed, ok := event.(domain.TrackCompletedEvent)
	if !ok {
		return
	}

	s.mu.Lock()
	// The same instance may signal its end more than once; one advance per
	// handle, and no re-entry while an advance is still running.
	if s.advancing || completed.Handle == s.completedHandle {
		s.mu.Unlock()
		return
	}
	s.advancing = true
	s.completedHandle = completed.Handle
	repeat := s.repeat
	index := s.index
	queueLen := len(s.queue)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.advancing = false
		s.mu.Unlock()
	}()

	s.persistProgress(completed.Track, completed.Track.Duration, true)

	switch {
	case repeat == domain.RepeatOne:
		if err := s.startPlayback(completed.Track, 0); err != nil {
			s.logger.Warn("replaying track failed", slog.Any("error", err))
		}

	case index+1 < queueLen:
		s.mu.Lock()
		s.index = index + 1
		track := s.queue[s.index]
		s.mu.Unlock()
		if err := s.startPlayback(track, 0); err != nil {
			s.logger.Warn("advancing queue failed", slog.Any("error", err))
		}

	case repeat == domain.RepeatAll && queueLen > 0:
		s.mu.Lock()
		s.index = 0
		track := s.queue[0]
		s.mu.Unlock()
		if err := s.startPlayback(track, 0); err != nil {
			s.logger.Warn("wrapping queue failed", slog.Any("error", err))
		}

	default:
		// End of the queue: fall idle and forget the session.
		s.mu.Lock()
		s.currentTrack = nil
		s.status = domain.StatusIdle
		s.idlePosition = 0
		s.favorite = false
		s.mu.Unlock()

		if err := s.resume.Delete(); err != nil {
			s.logger.Warn("deleting resume snapshot failed", slog.Any("error", err))
		}
		s.deleteRemoteSnapshot()
	}
}

// refreshFavorite re-derives the cached favorite flag for a track that is
// becoming current. Lookup failures are logged and leave the flag false.
func (s *SessionService) refreshFavorite(track domain.Track) {
	flag := false
	if track.Kind.Favoritable() {
		var err error
		flag, err = s.favorites.IsFavorite(track.Kind, track.ID)
		if err != nil {
			s.logger.Debug("favorite lookup failed",
				slog.String("track_id", track.ID), slog.Any("error", err))
			flag = false
		}
	}

	s.mu.Lock()
	s.favorite = flag
	s.mu.Unlock()
}

// setStatus updates the session state machine value.
func (s *SessionService) setStatus(status domain.PlayerStatus) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
}

// persistSnapshot writes the resume snapshot. Persistence failures are
// logged and swallowed; the session survives them.
func (s *SessionService) persistSnapshot(track domain.Track, position time.Duration) {
	snapshot := domain.ResumeSnapshot{
		Track:     track,
		Position:  position,
		Rate:      s.player.Rate(),
		UpdatedAt: time.Now(),
	}

	if err := s.resume.Save(snapshot); err != nil {
		s.logger.Warn("saving resume snapshot failed", slog.Any("error", err))
	}

	if s.sync != nil && s.deviceID != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.sync.Save(ctx, s.deviceID, snapshot); err != nil {
			s.logger.Debug("mirroring resume snapshot failed", slog.Any("error", err))
		}
	}
}

// persistProgress upserts the durable per-track progress record.
func (s *SessionService) persistProgress(track domain.Track, position time.Duration, completed bool) {
	record := domain.ProgressRecord{
		SourceID:     track.ID,
		Position:     position,
		Duration:     track.Duration,
		LastPlayedAt: time.Now(),
		Completed:    completed,
	}
	if err := s.progress.Upsert(record); err != nil {
		s.logger.Warn("saving progress failed", slog.Any("error", err))
	}
}

func (s *SessionService) deleteRemoteSnapshot() {
	if s.sync == nil || s.deviceID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.sync.Delete(ctx, s.deviceID); err != nil {
		s.logger.Debug("deleting remote resume snapshot failed", slog.Any("error", err))
	}
}

// startSyncRoutine starts the periodic resume checkpoint goroutine.
func (s *SessionService) startSyncRoutine() {
	s.mu.Lock()
	if s.syncRunning {
		s.mu.Unlock()
		return
	}
	s.syncRunning = true
	s.syncWg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.syncWg.Done()
		ticker := time.NewTicker(s.syncInterval)
		defer ticker.Stop()

		for {
			select {
			case <-s.stopSync:
				return

			case <-ticker.C:
				s.checkpoint()
			}
		}
	}()
}

// checkpoint persists the snapshot while a track is playing.
func (s *SessionService) checkpoint() {
	s.mu.RLock()
	track := s.currentTrack
	playing := s.status == domain.StatusPlaying
	s.mu.RUnlock()

	if track == nil || !playing {
		return
	}

	s.persistSnapshot(*track, s.player.Position())
}

// startCommandRoutine forwards OS media commands into the session. The
// goroutine exits when the command channel is closed.
func (s *SessionService) startCommandRoutine(commands <-chan ports.MediaCommand) {
	s.cmdWg.Add(1)
	go func() {
		defer s.cmdWg.Done()
		for cmd := range commands {
			s.dispatchCommand(cmd)
		}
	}()
}

func (s *SessionService) dispatchCommand(cmd ports.MediaCommand) {
	var err error
	switch cmd {
	case ports.CmdPlay:
		err = s.Resume()
	case ports.CmdPause:
		err = s.Pause()
	case ports.CmdPlayPause:
		err = s.Toggle()
	case ports.CmdStop:
		err = s.Stop()
	case ports.CmdNext:
		err = s.PlayNext()
	case ports.CmdPrevious:
		err = s.PlayPrevious()
	}
	if err != nil {
		s.logger.Debug("media command failed", slog.Int("command", int(cmd)), slog.Any("error", err))
	}
}

func clampPosition(position, duration time.Duration) time.Duration {
	if position < 0 {
		return 0
	}
	if duration > 0 && position > duration {
		return duration
	}
	return position
}
