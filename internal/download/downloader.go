// Package download implements the chunked download pipeline: a remote audio
// resource is streamed into memory with cancellation and progress reporting,
// then persisted as an offline-playable blob. A downloaded item exists only
// for completed transfers; partial downloads never leave a record.
package download

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/dhowden/tag"
	"github.com/google/uuid"

	"github.com/iredox10/minbar/internal/domain"
	"github.com/iredox10/minbar/internal/ports"
)

// State is the downloader state machine value for one source id:
// idle -> checking -> idle|done on mount, idle|error -> downloading ->
// done|error on start, and downloading -> idle on abort.
type State int

const (
	StateIdle State = iota
	StateChecking
	StateDownloading
	StateDone
	StateError
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateChecking:
		return "checking"
	case StateDownloading:
		return "downloading"
	case StateDone:
		return "done"
	case StateError:
		return "error"
	default:
		return "idle"
	}
}

// Status is a progress report for one source id.
type Status struct {
	State State

	// Progress is 0-100, or -1 while streaming a resource of unknown size.
	// It never reaches 100 before the item is durably persisted.
	Progress int

	// Message carries the human-readable failure when State is StateError.
	Message string

	// Item is the persisted record when State is StateDone.
	Item *domain.DownloadedItem
}

// StatusFunc receives state transitions and streaming progress.
type StatusFunc func(Status)

// Request describes one download.
type Request struct {
	SourceID  string
	URL       string
	Title     string
	SeriesID  string
	SpeakerID string
	Duration  time.Duration
}

// streamProgressCeiling caps streaming progress so 100% is reserved for
// confirmed-persisted items.
const streamProgressCeiling = 95

const chunkSize = 32 * 1024

// Manager runs downloads and owns their persistence.
//
// Thread-safety: all operations are safe for concurrent use; at most one
// transfer is in flight per source id.
type Manager struct {
	logger    *slog.Logger
	client    *http.Client
	repo      ports.DownloadsRepository
	blobs     ports.BlobStore
	telemetry ports.Telemetry

	mu       sync.Mutex
	inflight map[string]context.CancelFunc
}

// NewManager creates a download manager. telemetry may be nil.
func NewManager(logger *slog.Logger, client *http.Client, repo ports.DownloadsRepository, blobs ports.BlobStore, telemetry ports.Telemetry) *Manager {
	if client == nil {
		client = http.DefaultClient
	}
	return &Manager{
		logger:    logger,
		client:    client,
		repo:      repo,
		blobs:     blobs,
		telemetry: telemetry,
		inflight:  make(map[string]context.CancelFunc),
	}
}

// Check looks for a pre-existing offline copy of the source.
// It reports checking, then done (with the item) or idle.
func (m *Manager) Check(sourceID string, onStatus StatusFunc) (*domain.DownloadedItem, error) {
	report(onStatus, Status{State: StateChecking})

	item, err := m.repo.GetBySourceID(sourceID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			report(onStatus, Status{State: StateIdle})
			return nil, nil
		}
		report(onStatus, Status{State: StateIdle})
		return nil, err
	}

	report(onStatus, Status{State: StateDone, Progress: 100, Item: item})
	return item, nil
}

// Start streams the resource and persists a DownloadedItem on completion.
// It blocks until the transfer finishes, fails or is canceled; run it in a
// goroutine when the caller must stay responsive.
//
// Download is idempotent per source id: an existing item short-circuits to
// done without a network fetch. Cancellation (via ctx or Cancel) resets the
// state to idle, reports progress 0 and writes no record.
func (m *Manager) Start(ctx context.Context, req Request, onStatus StatusFunc) (*domain.DownloadedItem, error) {
	if req.SourceID == "" || req.URL == "" {
		return nil, domain.NewValidationError("request", req, "source id and url are required")
	}

	// Idempotence check before any network traffic.
	if existing, err := m.repo.GetBySourceID(req.SourceID); err == nil {
		report(onStatus, Status{State: StateDone, Progress: 100, Item: existing})
		return existing, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		msg := "checking for existing download failed"
		report(onStatus, Status{State: StateError, Message: msg})
		return nil, domain.NewRepositoryError("get", "downloads", msg, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m.mu.Lock()
	if _, exists := m.inflight[req.SourceID]; exists {
		m.mu.Unlock()
		return nil, domain.ErrDownloadInFlight
	}
	m.inflight[req.SourceID] = cancel
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.inflight, req.SourceID)
		m.mu.Unlock()
	}()

	item, err := m.transfer(ctx, req, onStatus)
	switch {
	case err == nil:
		report(onStatus, Status{State: StateDone, Progress: 100, Item: item})
		if m.telemetry != nil {
			m.telemetry.Emit("download.completed", map[string]string{
				"source_id": req.SourceID,
				"bytes":     fmt.Sprintf("%d", item.ByteSize),
			})
		}
		return item, nil

	case errors.Is(err, context.Canceled):
		// Abort is not an error: back to idle, progress reset, no record.
		report(onStatus, Status{State: StateIdle, Progress: 0})
		return nil, err

	default:
		m.logger.Warn("download failed",
			slog.String("source_id", req.SourceID), slog.Any("error", err))
		report(onStatus, Status{State: StateError, Message: err.Error()})
		return nil, err
	}
}

// transfer streams the bytes and persists the completed item.
func (m *Manager) transfer(ctx context.Context, req Request, onStatus StatusFunc) (*domain.DownloadedItem, error) {
	report(onStatus, Status{State: StateDownloading, Progress: 0})

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return nil, domain.NewTransferError("fetch", req.URL, 0, "invalid request", err)
	}

	resp, err := m.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, context.Canceled
		}
		return nil, domain.NewTransferError("fetch", req.URL, 0, "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, domain.NewTransferError("fetch", req.URL, resp.StatusCode, "unexpected status", nil)
	}

	total := resp.ContentLength

	var received int64
	var body bytes.Buffer
	buf := make([]byte, chunkSize)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			body.Write(buf[:n])
			received += int64(n)
			report(onStatus, Status{State: StateDownloading, Progress: streamProgress(received, total)})
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			if ctx.Err() != nil {
				return nil, context.Canceled
			}
			return nil, domain.NewTransferError("stream", req.URL, 0, "stream read failed", readErr)
		}
	}

	if ctx.Err() != nil {
		return nil, context.Canceled
	}

	data := body.Bytes()
	item := domain.DownloadedItem{
		LocalID:      uuid.NewString(),
		SourceID:     req.SourceID,
		Title:        req.Title,
		SeriesID:     req.SeriesID,
		SpeakerID:    req.SpeakerID,
		SourceURL:    req.URL,
		Duration:     req.Duration,
		DownloadedAt: time.Now(),
		ByteSize:     int64(len(data)),
	}

	// Best-effort metadata sniff from the completed payload.
	if meta, tagErr := tag.ReadFrom(bytes.NewReader(data)); tagErr == nil {
		if item.Title == "" && meta.Title() != "" {
			item.Title = meta.Title()
		}
		if item.SpeakerID == "" && meta.Artist() != "" {
			item.SpeakerID = meta.Artist()
		}
	}

	ref, err := m.blobs.Put(data)
	if err != nil {
		return nil, domain.NewRepositoryError("put", "blobs", "storing payload failed", err)
	}
	item.BlobRef = ref

	if err := m.repo.Put(item); err != nil {
		// The blob must not outlive a failed record write.
		if relErr := m.blobs.Release(ref); relErr != nil {
			m.logger.Warn("releasing orphaned blob failed", slog.Any("error", relErr))
		}
		return nil, domain.NewRepositoryError("put", "downloads", "persisting item failed", err)
	}

	return &item, nil
}

// Cancel aborts an in-flight transfer for the source id.
// Canceling a source with no transfer in flight is a no-op.
func (m *Manager) Cancel(sourceID string) {
	m.mu.Lock()
	cancel := m.inflight[sourceID]
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Remove deletes the downloaded item for a source id and releases its blob.
// Removing a source with no record is a no-op.
func (m *Manager) Remove(sourceID string) error {
	item, err := m.repo.GetBySourceID(sourceID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	}

	if err := m.repo.Delete(sourceID); err != nil {
		return err
	}
	if err := m.blobs.Release(item.BlobRef); err != nil {
		return err
	}
	return nil
}

// List returns all downloaded items, newest first.
func (m *Manager) List() ([]domain.DownloadedItem, error) {
	return m.repo.List()
}

// streamProgress scales received/total into [0, streamProgressCeiling],
// or -1 when the total is unknown.
func streamProgress(received, total int64) int {
	if total <= 0 {
		return -1
	}
	pct := int(received * streamProgressCeiling / total)
	if pct > streamProgressCeiling {
		pct = streamProgressCeiling
	}
	return pct
}

func report(onStatus StatusFunc, status Status) {
	if onStatus != nil {
		onStatus(status)
	}
}
