package service

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iredox10/minbar/internal/adapter/audio/mock"
	"github.com/iredox10/minbar/internal/adapter/eventbus"
	"github.com/iredox10/minbar/internal/domain"
	"github.com/iredox10/minbar/internal/logger"
)

// Helper to create a test player service
func newTestPlayerService() (*PlayerService, *mock.Engine, *eventbus.SyncEventBus) {
	engine := mock.NewEngine()
	bus := eventbus.NewSyncEventBus()
	service := NewPlayerService(logger.NewTestLogger(), engine, bus, nil)
	return service, engine, bus
}

// Helper to create a test track
func makeTrack(id, title, url string) domain.Track {
	return domain.Track{
		ID:       id,
		Title:    title,
		AudioURL: url,
		Speaker:  "Test Speaker",
		Duration: 3 * time.Minute,
		Kind:     domain.KindEpisode,
	}
}

func TestPlayerService_LoadTrack(t *testing.T) {
	service, _, bus := newTestPlayerService()
	defer service.Shutdown()

	track := makeTrack("1", "Episode One", "https://cdn.example.com/1.mp3")

	var loadedEvent domain.TrackLoadedEvent
	bus.Subscribe(domain.EventTrackLoaded, func(e domain.Event) {
		loadedEvent = e.(domain.TrackLoadedEvent)
	})

	err := service.LoadTrack(track)
	require.NoError(t, err)

	current := service.CurrentTrack()
	require.NotNil(t, current)
	assert.Equal(t, track.ID, current.ID)
	assert.Equal(t, domain.StatusIdle, service.Status())

	assert.Equal(t, track.ID, loadedEvent.Track.ID)
	assert.NotEqual(t, domain.InvalidTrackHandle, loadedEvent.Handle)
	assert.Equal(t, 3*time.Minute, loadedEvent.Duration)
}

func TestPlayerService_LoadTrack_Failure(t *testing.T) {
	service, engine, bus := newTestPlayerService()
	defer service.Shutdown()

	var errorEvent domain.TrackErrorEvent
	bus.Subscribe(domain.EventTrackError, func(e domain.Event) {
		errorEvent = e.(domain.TrackErrorEvent)
	})

	engine.SetFailLoad(true)
	err := service.LoadTrack(makeTrack("1", "Broken", "https://cdn.example.com/broken.mp3"))
	assert.Error(t, err)

	assert.NotNil(t, errorEvent.Error)
	assert.Nil(t, service.CurrentTrack())
}

func TestPlayerService_LoadTrack_ReplacesCurrentInstance(t *testing.T) {
	service, engine, _ := newTestPlayerService()
	defer service.Shutdown()

	require.NoError(t, service.LoadTrack(makeTrack("1", "One", "https://cdn.example.com/1.mp3")))
	require.NoError(t, service.Play())

	require.NoError(t, service.LoadTrack(makeTrack("2", "Two", "https://cdn.example.com/2.mp3")))

	current := service.CurrentTrack()
	require.NotNil(t, current)
	assert.Equal(t, "2", current.ID)

	// At most one engine instance is ever alive.
	assert.Equal(t, 1, engine.LoadedCount())
}

func TestPlayerService_Transport(t *testing.T) {
	service, _, bus := newTestPlayerService()
	defer service.Shutdown()

	var started, paused, stopped int
	bus.Subscribe(domain.EventTrackStarted, func(domain.Event) { started++ })
	bus.Subscribe(domain.EventTrackPaused, func(domain.Event) { paused++ })
	bus.Subscribe(domain.EventTrackStopped, func(domain.Event) { stopped++ })

	require.NoError(t, service.LoadTrack(makeTrack("1", "One", "https://cdn.example.com/1.mp3")))

	require.NoError(t, service.Play())
	assert.Equal(t, domain.StatusPlaying, service.Status())

	// Playing again is a no-op, not a second start event.
	require.NoError(t, service.Play())
	assert.Equal(t, 1, started)

	require.NoError(t, service.Pause())
	assert.Equal(t, domain.StatusPaused, service.Status())
	assert.Equal(t, 1, paused)

	require.NoError(t, service.Toggle())
	assert.Equal(t, domain.StatusPlaying, service.Status())
	assert.Equal(t, 2, started)

	require.NoError(t, service.Stop())
	assert.Equal(t, domain.StatusIdle, service.Status())
	assert.Equal(t, 1, stopped)
	assert.Nil(t, service.CurrentTrack())
}

func TestPlayerService_TransportWithoutTrack(t *testing.T) {
	service, _, _ := newTestPlayerService()
	defer service.Shutdown()

	assert.ErrorIs(t, service.Play(), domain.ErrNoTrackLoaded)
	assert.ErrorIs(t, service.Pause(), domain.ErrNoTrackLoaded)
	assert.ErrorIs(t, service.Toggle(), domain.ErrNoTrackLoaded)
	assert.ErrorIs(t, service.Seek(time.Second), domain.ErrNoTrackLoaded)
	assert.NoError(t, service.Stop())
}

func TestPlayerService_SeekRelative_Clamps(t *testing.T) {
	service, engine, _ := newTestPlayerService()
	defer service.Shutdown()

	engine.SetTrackDuration("https://cdn.example.com/1.mp3", time.Minute)
	require.NoError(t, service.LoadTrack(makeTrack("1", "One", "https://cdn.example.com/1.mp3")))

	// Backward past the start clamps to zero.
	require.NoError(t, service.Seek(10*time.Second))
	require.NoError(t, service.SeekRelative(-30*time.Second))
	assert.Equal(t, time.Duration(0), service.Position())

	// Forward past the end clamps to the duration.
	require.NoError(t, service.SeekRelative(5*time.Minute))
	assert.Equal(t, time.Minute, service.Position())
}

func TestPlayerService_VolumeAndMute(t *testing.T) {
	service, engine, bus := newTestPlayerService()
	defer service.Shutdown()

	var volumeEvents []float64
	bus.Subscribe(domain.EventVolumeChanged, func(e domain.Event) {
		volumeEvents = append(volumeEvents, e.(domain.VolumeChangedEvent).Volume)
	})
	var muteEvents []bool
	bus.Subscribe(domain.EventMuteToggled, func(e domain.Event) {
		muteEvents = append(muteEvents, e.(domain.MuteToggledEvent).Muted)
	})
	var handle domain.TrackHandle
	bus.Subscribe(domain.EventTrackLoaded, func(e domain.Event) {
		handle = e.(domain.TrackLoadedEvent).Handle
	})

	require.NoError(t, service.LoadTrack(makeTrack("1", "One", "https://cdn.example.com/1.mp3")))

	// Out-of-range volumes clamp instead of failing.
	require.NoError(t, service.SetVolume(1.7))
	assert.Equal(t, 1.0, service.Volume())
	require.NoError(t, service.SetVolume(-0.3))
	assert.Equal(t, 0.0, service.Volume())

	require.NoError(t, service.SetVolume(0.5))
	require.NoError(t, service.Mute(true))
	assert.True(t, service.IsMuted())
	assert.Equal(t, 0.0, engine.InstanceVolume(handle))

	// Volume set while muted is remembered, not applied.
	require.NoError(t, service.SetVolume(0.9))
	assert.True(t, service.IsMuted())
	assert.Equal(t, 0.9, service.Volume())
	assert.Equal(t, 0.0, engine.InstanceVolume(handle))

	// Unmute restores the latest selected volume at the engine.
	require.NoError(t, service.ToggleMute())
	assert.False(t, service.IsMuted())
	assert.Equal(t, 0.9, engine.InstanceVolume(handle))

	assert.Equal(t, []float64{1.0, 0.0, 0.5, 0.9}, volumeEvents)
	assert.Equal(t, []bool{true, false}, muteEvents)
}

func TestPlayerService_SetRate(t *testing.T) {
	service, _, bus := newTestPlayerService()
	defer service.Shutdown()

	var rateEvent domain.RateChangedEvent
	bus.Subscribe(domain.EventRateChanged, func(e domain.Event) {
		rateEvent = e.(domain.RateChangedEvent)
	})

	assert.ErrorIs(t, service.SetRate(0), domain.ErrInvalidRate)
	assert.ErrorIs(t, service.SetRate(8.0), domain.ErrInvalidRate)

	// Rate sticks even with nothing loaded, and applies to the next track.
	require.NoError(t, service.SetRate(1.25))
	assert.Equal(t, 1.25, service.Rate())
	assert.Equal(t, 1.25, rateEvent.Rate)

	require.NoError(t, service.LoadTrack(makeTrack("1", "One", "https://cdn.example.com/1.mp3")))
	assert.Equal(t, 1.25, service.Rate())
}

func TestPlayerService_SleepTimer(t *testing.T) {
	service, _, bus := newTestPlayerService()
	defer service.Shutdown()

	fired := make(chan struct{}, 1)
	bus.Subscribe(domain.EventSleepTimerFired, func(domain.Event) {
		fired <- struct{}{}
	})

	require.NoError(t, service.LoadTrack(makeTrack("1", "One", "https://cdn.example.com/1.mp3")))
	require.NoError(t, service.Play())

	assert.Error(t, service.SetSleepTimer(0))

	// A new timer replaces the pending one.
	require.NoError(t, service.SetSleepTimer(time.Hour))
	require.NoError(t, service.SetSleepTimer(20*time.Millisecond))
	assert.Greater(t, service.SleepRemaining(), time.Duration(0))

	select {
	case <-fired:
	case <-time.After(5 * time.Second):
		t.Fatal("sleep timer never fired")
	}

	assert.Equal(t, domain.StatusPaused, service.Status())
	assert.Equal(t, time.Duration(0), service.SleepRemaining())

	// The replaced one-hour timer must not fire afterwards.
	select {
	case <-fired:
		t.Fatal("replaced sleep timer fired")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPlayerService_ClearSleepTimer(t *testing.T) {
	service, _, bus := newTestPlayerService()
	defer service.Shutdown()

	var deadlines []time.Time
	bus.Subscribe(domain.EventSleepTimerSet, func(e domain.Event) {
		deadlines = append(deadlines, e.(domain.SleepTimerSetEvent).Deadline)
	})

	require.NoError(t, service.SetSleepTimer(time.Hour))
	service.ClearSleepTimer()
	assert.Equal(t, time.Duration(0), service.SleepRemaining())

	require.Len(t, deadlines, 2)
	assert.False(t, deadlines[0].IsZero())
	assert.True(t, deadlines[1].IsZero())

	// Clearing with no timer armed publishes nothing.
	service.ClearSleepTimer()
	assert.Len(t, deadlines, 2)
}

func TestPlayerService_CompletionForwardedWithHandle(t *testing.T) {
	service, engine, bus := newTestPlayerService()
	defer service.Shutdown()

	var mu sync.Mutex
	var completed []domain.TrackCompletedEvent
	bus.Subscribe(domain.EventTrackCompleted, func(e domain.Event) {
		mu.Lock()
		completed = append(completed, e.(domain.TrackCompletedEvent))
		mu.Unlock()
	})

	var loadedEvent domain.TrackLoadedEvent
	bus.Subscribe(domain.EventTrackLoaded, func(e domain.Event) {
		loadedEvent = e.(domain.TrackLoadedEvent)
	})

	track := makeTrack("1", "One", "https://cdn.example.com/1.mp3")
	require.NoError(t, service.LoadTrack(track))
	require.NoError(t, service.Play())

	// Duplicate end signals are forwarded as-is with the same handle;
	// collapsing them is the session controller's job.
	engine.SignalCompletion(loadedEvent.Handle)
	engine.SignalCompletion(loadedEvent.Handle)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, completed, 2)
	assert.Equal(t, track.ID, completed[0].Track.ID)
	assert.Equal(t, loadedEvent.Handle, completed[0].Handle)
	assert.Equal(t, completed[0].Handle, completed[1].Handle)
}

func TestPlayerService_CompletionIgnoredAfterManualStop(t *testing.T) {
	service, engine, bus := newTestPlayerService()
	defer service.Shutdown()

	var completions int
	bus.Subscribe(domain.EventTrackCompleted, func(domain.Event) { completions++ })

	var loadedEvent domain.TrackLoadedEvent
	bus.Subscribe(domain.EventTrackLoaded, func(e domain.Event) {
		loadedEvent = e.(domain.TrackLoadedEvent)
	})

	require.NoError(t, service.LoadTrack(makeTrack("1", "One", "https://cdn.example.com/1.mp3")))
	require.NoError(t, service.Play())
	require.NoError(t, service.Stop())

	engine.SignalCompletion(loadedEvent.Handle)
	assert.Equal(t, 0, completions)
}

func TestPlayerService_ProgressEventsOnlyWhilePlaying(t *testing.T) {
	service, _, bus := newTestPlayerService()
	defer service.Shutdown()

	var mu sync.Mutex
	var progress int
	bus.Subscribe(domain.EventTrackProgress, func(domain.Event) {
		mu.Lock()
		progress++
		mu.Unlock()
	})

	require.NoError(t, service.LoadTrack(makeTrack("1", "One", "https://cdn.example.com/1.mp3")))

	// Loaded but not playing: the ticker stays quiet for over a tick.
	time.Sleep(400 * time.Millisecond)
	mu.Lock()
	assert.Equal(t, 0, progress)
	mu.Unlock()

	require.NoError(t, service.Play())
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return progress > 0
	}, 5*time.Second, 10*time.Millisecond)
}
