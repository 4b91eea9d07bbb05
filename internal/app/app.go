// Package app provides application-level orchestration and dependency injection.
// This package wires together all components and manages the application lifecycle.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iredox10/minbar/internal/adapter/audio/beep"
	"github.com/iredox10/minbar/internal/adapter/audio/mock"
	"github.com/iredox10/minbar/internal/adapter/catalog"
	"github.com/iredox10/minbar/internal/adapter/eventbus"
	"github.com/iredox10/minbar/internal/adapter/mediasession/mpris"
	"github.com/iredox10/minbar/internal/adapter/mediasession/noop"
	"github.com/iredox10/minbar/internal/adapter/repository/sqlite"
	"github.com/iredox10/minbar/internal/adapter/syncstore"
	"github.com/iredox10/minbar/internal/adapter/telemetry"
	"github.com/iredox10/minbar/internal/clip"
	"github.com/iredox10/minbar/internal/config"
	"github.com/iredox10/minbar/internal/download"
	"github.com/iredox10/minbar/internal/logger"
	"github.com/iredox10/minbar/internal/ports"
	"github.com/iredox10/minbar/internal/service"
)

// Application is the root application structure that holds all dependencies.
// It follows the Dependency Injection pattern with constructor-based injection.
//
// The Application struct is responsible for:
// - Creating and wiring all dependencies
// - Managing the application lifecycle (startup, shutdown)
// - Providing a clean entry point for main.go
type Application struct {
	// Core dependencies
	logger *slog.Logger
	config *config.Config

	// Infrastructure
	eventBus    ports.EventBus
	audioEngine ports.AudioEngine
	store       *sqlite.Store
	media       ports.MediaSession

	// telemetry is the injected sink; telemetrySink owns its lifecycle.
	telemetry     ports.Telemetry
	telemetrySink *telemetry.HTTPSink

	// Services
	playerService  *service.PlayerService
	sessionService *service.SessionService
	downloads      *download.Manager
	clips          *clip.Pipeline
}

// NewApplication creates a new application with all dependencies wired.
// This is the main dependency injection function.
func NewApplication(cfg *config.Config) (*Application, error) {
	app := &Application{config: cfg}

	// Step 1: Create logger
	app.logger = logger.NewLogger(logger.Config{
		Level:  parseLevel(cfg.App.LogLevel),
		Format: "text",
	})
	app.logger.Info("initializing application",
		slog.String("version", GetVersionInfo().FullString()),
		slog.String("data_dir", cfg.App.DataDir))

	// Step 2: Open the local store
	if err := os.MkdirAll(cfg.App.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	store, err := sqlite.Open(cfg.DatabasePath(),
		app.logger.With(slog.String("component", "sqlite")))
	if err != nil {
		return nil, fmt.Errorf("opening local store: %w", err)
	}
	app.store = store

	// Step 3: Create an event bus
	syncBus := eventbus.NewSyncEventBus()
	syncBus.SetLogger(app.logger.With(slog.String("component", "eventbus")))
	app.eventBus = syncBus

	// Step 4: Create an audio engine
	if cfg.Audio.UseMock {
		app.audioEngine = mock.NewEngine()
	} else {
		engine, err := beep.NewEngine(cfg.Audio.SampleRate, nil, store.Blobs())
		if err != nil {
			app.shutdownPartial()
			return nil, fmt.Errorf("initializing audio engine: %w", err)
		}
		app.audioEngine = engine
	}

	// Step 5: Create the media-control surface. Integration is best-effort;
	// a missing session bus degrades to the no-op surface.
	media, err := mpris.NewSession(app.logger.With(slog.String("component", "mpris")))
	if err != nil {
		app.logger.Warn("media controls unavailable", slog.Any("error", err))
		app.media = noop.NewSession()
	} else {
		app.media = media
	}

	// Step 6: Optional remote collaborators
	if cfg.Telemetry.Endpoint != "" {
		app.telemetrySink = telemetry.NewHTTPSink(
			app.logger.With(slog.String("component", "telemetry")),
			nil, cfg.Telemetry.Endpoint)
		app.telemetry = app.telemetrySink
	}
	var syncStore ports.SyncStore
	if cfg.Sync.BaseURL != "" {
		syncStore = syncstore.NewHTTPStore(nil, cfg.Sync.BaseURL)
	}
	var series ports.SeriesLookup
	if cfg.Catalog.BaseURL != "" {
		series = catalog.NewHTTPLookup(nil, cfg.Catalog.BaseURL)
	}

	// Step 7: Create services (with dependency injection)
	app.playerService = service.NewPlayerService(
		app.logger.With(slog.String("service", "player")),
		app.audioEngine,
		app.eventBus,
		app.media,
	)

	app.sessionService = service.NewSessionService(
		app.logger.With(slog.String("service", "session")),
		app.playerService,
		app.eventBus,
		store.Progress(),
		store.Resume(),
		store.Favorites(),
		syncStore,
		series,
		app.telemetry,
		app.media.Commands(),
		service.SessionConfig{
			DeviceID:     app.deviceID(),
			SyncInterval: cfg.SyncInterval(),
		},
	)

	app.downloads = download.NewManager(
		app.logger.With(slog.String("service", "downloads")),
		&http.Client{Timeout: 10 * time.Minute},
		store.Downloads(),
		store.Blobs(),
		app.telemetry,
	)

	app.clips = clip.New(beep.NewPCMDecoder(), clip.Options{
		ProxyURL: cfg.Clip.ProxyURL,
		Logger:   app.logger.With(slog.String("service", "clips")),
	})

	// Step 8: Restore the previous session (non-fatal)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.sessionService.Restore(ctx); err != nil {
		app.logger.Warn("restoring previous session failed", slog.Any("error", err))
	}

	return app, nil
}

// Session returns the playback session controller.
func (a *Application) Session() *service.SessionService { return a.sessionService }

// Player returns the transport-level player service.
func (a *Application) Player() *service.PlayerService { return a.playerService }

// Downloads returns the offline download manager.
func (a *Application) Downloads() *download.Manager { return a.downloads }

// Clips returns the clip extraction pipeline.
func (a *Application) Clips() *clip.Pipeline { return a.clips }

// EventBus returns the application event bus.
func (a *Application) EventBus() ports.EventBus { return a.eventBus }

// Shutdown gracefully shuts down the application.
// The media surface closes first so its command channel drains, then the
// services in reverse order of creation.
func (a *Application) Shutdown() {
	a.logger.Info("shutting down application")

	if a.media != nil {
		if err := a.media.Close(); err != nil {
			a.logger.Warn("failed to close media session", slog.Any("error", err))
		}
	}

	if a.sessionService != nil {
		if err := a.sessionService.Shutdown(); err != nil {
			a.logger.Warn("failed to shutdown session service", slog.Any("error", err))
		}
	}

	if a.playerService != nil {
		if err := a.playerService.Shutdown(); err != nil {
			a.logger.Warn("failed to shutdown player service", slog.Any("error", err))
		}
	}

	if a.audioEngine != nil {
		if err := a.audioEngine.Close(); err != nil {
			a.logger.Warn("failed to close audio engine", slog.Any("error", err))
		}
	}

	if a.telemetrySink != nil {
		if err := a.telemetrySink.Close(); err != nil {
			a.logger.Warn("failed to close telemetry sink", slog.Any("error", err))
		}
	}

	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("failed to close local store", slog.Any("error", err))
		}
	}

	a.logger.Info("application shutdown complete")
}

// shutdownPartial releases what was constructed before a wiring failure.
func (a *Application) shutdownPartial() {
	if a.store != nil {
		_ = a.store.Close()
	}
}

// deviceID returns the configured device identity, falling back to one
// generated and persisted in the data directory on first run.
func (a *Application) deviceID() string {
	if a.config.App.DeviceID != "" {
		return a.config.App.DeviceID
	}

	path := filepath.Join(a.config.App.DataDir, "device-id")
	if data, err := os.ReadFile(path); err == nil {
		if id := strings.TrimSpace(string(data)); id != "" {
			return id
		}
	}

	id := uuid.NewString()
	if err := os.WriteFile(path, []byte(id+"\n"), 0o644); err != nil {
		a.logger.Warn("persisting device id failed", slog.Any("error", err))
	}
	return id
}

func parseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
