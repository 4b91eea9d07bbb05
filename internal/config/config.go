// Package config loads application configuration from an optional
// config.yaml and MINBAR_-prefixed environment variables. Environment
// variables take precedence over the file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the application configuration.
type Config struct {
	App struct {
		// DataDir is where the local database and blobs live.
		DataDir string `mapstructure:"data_dir"`

		// DeviceID keys the remote resume snapshot. Generated and
		// persisted on first run when empty.
		DeviceID string `mapstructure:"device_id"`

		// LogLevel is debug, info, warn or error.
		LogLevel string `mapstructure:"log_level"`
	} `mapstructure:"app"`

	Audio struct {
		// SampleRate is the speaker sample rate in Hz.
		SampleRate int `mapstructure:"sample_rate"`

		// UseMock swaps the real engine for the in-memory one.
		UseMock bool `mapstructure:"use_mock"`
	} `mapstructure:"audio"`

	Catalog struct {
		// BaseURL of the catalog API ("" disables series lookups).
		BaseURL string `mapstructure:"base_url"`
	} `mapstructure:"catalog"`

	Clip struct {
		// ProxyURL is a CORS-relay prefix tried once when a direct clip
		// fetch fails ("" disables the fallback).
		ProxyURL string `mapstructure:"proxy_url"`
	} `mapstructure:"clip"`

	Sync struct {
		// BaseURL of the resume sync API ("" disables remote sync).
		BaseURL string `mapstructure:"base_url"`

		// IntervalSeconds is the periodic checkpoint cadence.
		IntervalSeconds int `mapstructure:"interval_seconds"`
	} `mapstructure:"sync"`

	Telemetry struct {
		// Endpoint of the usage collector ("" disables telemetry).
		Endpoint string `mapstructure:"endpoint"`
	} `mapstructure:"telemetry"`
}

// Load reads config.yaml (if present) and the environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetEnvPrefix("MINBAR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for _, key := range []string{
		"app.data_dir",
		"app.device_id",
		"app.log_level",
		"audio.sample_rate",
		"audio.use_mock",
		"catalog.base_url",
		"clip.proxy_url",
		"sync.base_url",
		"sync.interval_seconds",
		"telemetry.endpoint",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("binding %s: %w", key, err)
		}
	}

	v.SetDefault("app.data_dir", defaultDataDir())
	v.SetDefault("app.log_level", "info")
	v.SetDefault("audio.sample_rate", 44100)
	v.SetDefault("sync.interval_seconds", 15)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath(defaultDataDir())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if cfg.Audio.SampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", cfg.Audio.SampleRate)
	}
	if cfg.Sync.IntervalSeconds <= 0 {
		cfg.Sync.IntervalSeconds = 15
	}

	return &cfg, nil
}

// SyncInterval returns the checkpoint cadence as a duration.
func (c *Config) SyncInterval() time.Duration {
	return time.Duration(c.Sync.IntervalSeconds) * time.Second
}

// DatabasePath is the location of the local SQLite database.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.App.DataDir, "minbar.db")
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "minbar")
	}
	return "."
}
