package mock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iredox10/minbar/internal/domain"
)

func TestLoadAndTransport(t *testing.T) {
	engine := NewEngine()
	engine.SetTrackDuration("https://cdn.example.com/a.mp3", 2*time.Minute)

	handle, err := engine.Load("https://cdn.example.com/a.mp3", domain.FormatMP3)
	require.NoError(t, err)
	require.NotEqual(t, domain.InvalidTrackHandle, handle)

	d, err := engine.Duration(handle)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, d)

	status, err := engine.Status(handle)
	require.NoError(t, err)
	assert.Equal(t, domain.EngineStopped, status)

	require.NoError(t, engine.Play(handle))
	status, _ = engine.Status(handle)
	assert.Equal(t, domain.EnginePlaying, status)

	require.NoError(t, engine.Pause(handle))
	status, _ = engine.Status(handle)
	assert.Equal(t, domain.EnginePaused, status)

	require.NoError(t, engine.Seek(handle, 30*time.Second))
	pos, err := engine.Position(handle)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, pos)

	require.NoError(t, engine.Stop(handle))
	assert.Equal(t, 0, engine.LoadedCount())
	assert.ErrorIs(t, engine.Play(handle), domain.ErrInvalidTrackHandle)
}

func TestLoadFailures(t *testing.T) {
	engine := NewEngine()

	_, err := engine.Load("", domain.FormatMP3)
	assert.ErrorIs(t, err, domain.ErrInvalidURL)

	engine.SetFailLoad(true)
	_, err = engine.Load("https://cdn.example.com/a.mp3", domain.FormatMP3)
	var engErr *domain.EngineError
	assert.ErrorAs(t, err, &engErr)
}

func TestSeekOutOfRange(t *testing.T) {
	engine := NewEngine()
	engine.SetTrackDuration("u", time.Minute)

	handle, err := engine.Load("u", domain.FormatMP3)
	require.NoError(t, err)

	assert.Error(t, engine.Seek(handle, 2*time.Minute))
	assert.Error(t, engine.Seek(handle, -time.Second))
}

func TestSignalCompletion(t *testing.T) {
	engine := NewEngine()
	engine.SetTrackDuration("u", time.Minute)

	handle, err := engine.Load("u", domain.FormatMP3)
	require.NoError(t, err)
	require.NoError(t, engine.Play(handle))

	var completed []domain.TrackHandle
	engine.SetCompletionCallback(func(h domain.TrackHandle) {
		completed = append(completed, h)
	})

	engine.SignalCompletion(handle)
	engine.SignalCompletion(handle)

	// Duplicate signals reach the callback; deduplication is the session
	// controller's job.
	assert.Equal(t, []domain.TrackHandle{handle, handle}, completed)

	status, err := engine.Status(handle)
	require.NoError(t, err)
	assert.Equal(t, domain.EngineStopped, status)

	pos, _ := engine.Position(handle)
	assert.Equal(t, time.Minute, pos)
}

func TestVolumeAndRateValidation(t *testing.T) {
	engine := NewEngine()
	handle, err := engine.Load("u", domain.FormatMP3)
	require.NoError(t, err)

	assert.ErrorIs(t, engine.SetVolume(handle, 1.5), domain.ErrInvalidVolume)
	assert.ErrorIs(t, engine.SetRate(handle, 0), domain.ErrInvalidRate)
	assert.NoError(t, engine.SetVolume(handle, 0.3))
	assert.NoError(t, engine.SetRate(handle, 1.25))
}
