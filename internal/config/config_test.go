package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.NotEmpty(t, cfg.App.DataDir)
	assert.Equal(t, "info", cfg.App.LogLevel)
	assert.Equal(t, 44100, cfg.Audio.SampleRate)
	assert.Equal(t, 15*time.Second, cfg.SyncInterval())
	assert.Contains(t, cfg.DatabasePath(), "minbar.db")
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("MINBAR_APP_DATA_DIR", "/var/lib/minbar")
	t.Setenv("MINBAR_APP_DEVICE_ID", "device-42")
	t.Setenv("MINBAR_AUDIO_SAMPLE_RATE", "48000")
	t.Setenv("MINBAR_CLIP_PROXY_URL", "https://relay.example.com/fetch?url=")
	t.Setenv("MINBAR_SYNC_BASE_URL", "https://sync.example.com")
	t.Setenv("MINBAR_SYNC_INTERVAL_SECONDS", "30")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/minbar", cfg.App.DataDir)
	assert.Equal(t, "device-42", cfg.App.DeviceID)
	assert.Equal(t, 48000, cfg.Audio.SampleRate)
	assert.Equal(t, "https://relay.example.com/fetch?url=", cfg.Clip.ProxyURL)
	assert.Equal(t, "https://sync.example.com", cfg.Sync.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.SyncInterval())
}

func TestLoad_RejectsInvalidSampleRate(t *testing.T) {
	t.Setenv("MINBAR_AUDIO_SAMPLE_RATE", "-1")

	_, err := Load()
	require.Error(t, err)
}
