// Package telemetry provides the fire-and-forget analytics sink.
// Emission must never block or fail the caller; events are dropped when the
// sink cannot keep up.
package telemetry

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/iredox10/minbar/internal/ports"
)

const queueSize = 64

type event struct {
	Name       string            `json:"event"`
	Properties map[string]string `json:"properties,omitempty"`
	At         time.Time         `json:"at"`
}

// HTTPSink posts events as JSON to a collector endpoint from a single
// background goroutine.
type HTTPSink struct {
	logger   *slog.Logger
	client   *http.Client
	endpoint string

	mu     sync.Mutex
	queue  chan event
	closed bool
	done   chan struct{}
}

var _ ports.Telemetry = (*HTTPSink)(nil)

// NewHTTPSink creates a sink posting to endpoint. client may be nil.
func NewHTTPSink(logger *slog.Logger, client *http.Client, endpoint string) *HTTPSink {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	s := &HTTPSink{
		logger:   logger,
		client:   client,
		endpoint: endpoint,
		queue:    make(chan event, queueSize),
		done:     make(chan struct{}),
	}
	go s.drain()
	return s
}

// Emit enqueues an event. It never blocks; events are dropped when the
// queue is full or the sink is closed.
func (s *HTTPSink) Emit(name string, props map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.queue <- event{Name: name, Properties: props, At: time.Now()}:
	default:
		s.logger.Debug("dropping telemetry event", slog.String("event", name))
	}
}

// Close stops the background goroutine after flushing queued events.
func (s *HTTPSink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()

	<-s.done
	return nil
}

func (s *HTTPSink) drain() {
	defer close(s.done)
	for e := range s.queue {
		s.post(e)
	}
}

func (s *HTTPSink) post(e event) {
	payload, err := json.Marshal(e)
	if err != nil {
		return
	}

	resp, err := s.client.Post(s.endpoint, "application/json", bytes.NewReader(payload))
	if err != nil {
		s.logger.Debug("telemetry post failed", slog.Any("error", err))
		return
	}
	resp.Body.Close()
}
