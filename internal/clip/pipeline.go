// Package clip implements the in-browser-style audio clip extraction
// pipeline: fetch the source bytes, decode to PCM, slice a bounded time
// window and re-encode it as a shareable WAV.
package clip

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/iredox10/minbar/internal/domain"
	"github.com/iredox10/minbar/internal/wav"
)

// MaxClipDuration bounds how much audio a single clip may contain.
const MaxClipDuration = 60 * time.Second

// Coarse progress checkpoints, one per human-meaningful phase.
const (
	progressValidated = 5
	progressFetching  = 10
	progressFetched   = 40
	progressDecoded   = 70
	progressSliced    = 85
	progressDone      = 100
)

// Decoder converts an audio payload into per-channel float samples.
// The decoding resource's lifetime is scoped strictly to the call.
type Decoder interface {
	Decode(format domain.AudioFormat, data []byte) (channels [][]float32, sampleRate int, err error)
}

// ProgressFunc receives coarse progress in [0, 100].
type ProgressFunc func(percent int)

// Options configures a Pipeline.
type Options struct {
	// Client is the HTTP client for fetching source audio.
	Client *http.Client

	// ProxyURL is a public CORS-relay prefix tried once when the direct
	// fetch fails ("" disables the fallback). The source URL is appended
	// query-escaped.
	ProxyURL string

	// MaxDuration overrides MaxClipDuration when positive.
	MaxDuration time.Duration

	Logger *slog.Logger
}

// Pipeline extracts bounded WAV clips from remote audio.
// There is no mid-flight cancellation beyond the passed context; a failed
// extraction returns no partial result.
type Pipeline struct {
	decoder Decoder
	client  *http.Client
	proxy   string
	maxDur  time.Duration
	logger  *slog.Logger
}

// New creates a clip pipeline.
func New(decoder Decoder, opts Options) *Pipeline {
	client := opts.Client
	if client == nil {
		client = http.DefaultClient
	}
	maxDur := opts.MaxDuration
	if maxDur <= 0 {
		maxDur = MaxClipDuration
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Pipeline{
		decoder: decoder,
		client:  client,
		proxy:   opts.ProxyURL,
		maxDur:  maxDur,
		logger:  logger,
	}
}

// Extract produces a WAV clip of up to maxDur seconds starting at start.
// The start offset is clamped defensively into [0, total]; a request whose
// effective window is empty (requested duration <= 0, or start at or past
// the end of the track) is rejected with a ValidationError rather than
// producing a degenerate empty WAV.
//
// onProgress (may be nil) receives coarse phase progress from 0 to 100;
// 100 is reported only with a complete result.
func (p *Pipeline) Extract(ctx context.Context, sourceURL string, start, duration time.Duration, onProgress ProgressFunc) (*domain.ClipResult, error) {
	report := func(pct int) {
		if onProgress != nil {
			onProgress(pct)
		}
	}

	if sourceURL == "" {
		return nil, domain.ErrInvalidURL
	}
	if duration <= 0 {
		return nil, domain.NewValidationError("duration", duration, "clip duration must be positive")
	}
	if duration > p.maxDur {
		duration = p.maxDur
	}
	if start < 0 {
		start = 0
	}
	report(progressValidated)

	report(progressFetching)
	data, err := p.fetch(ctx, sourceURL)
	if err != nil {
		return nil, err
	}
	report(progressFetched)

	channels, sampleRate, err := p.decoder.Decode(domain.FormatFromURL(sourceURL), data)
	if err != nil {
		return nil, domain.NewTransferError("decode", sourceURL, 0, "audio decode failed", err)
	}
	if len(channels) == 0 || sampleRate <= 0 {
		return nil, domain.NewTransferError("decode", sourceURL, 0, "decoder produced no audio", nil)
	}
	report(progressDecoded)

	total := time.Duration(len(channels[0])) * time.Second / time.Duration(sampleRate)
	if start > total {
		start = total
	}
	actual := duration
	if remaining := total - start; remaining < actual {
		actual = remaining
	}
	if actual <= 0 {
		return nil, domain.NewValidationError("start", start, "clip window is empty: start is at or past the end of the track")
	}

	startFrame := int(start.Seconds() * float64(sampleRate))
	endFrame := startFrame + int(actual.Seconds()*float64(sampleRate))
	if endFrame > len(channels[0]) {
		endFrame = len(channels[0])
	}

	sliced := make([][]float32, len(channels))
	for c, ch := range channels {
		sliced[c] = ch[startFrame:endFrame]
	}
	report(progressSliced)

	payload, err := wav.Encode(sliced, sampleRate)
	if err != nil {
		return nil, err
	}
	report(progressDone)

	return &domain.ClipResult{
		Data:           payload,
		Filename:       clipFilename(sourceURL, start),
		ActualDuration: actual,
	}, nil
}

// fetch retrieves the source bytes, retrying exactly once through the CORS
// relay proxy when the direct fetch fails.
func (p *Pipeline) fetch(ctx context.Context, sourceURL string) ([]byte, error) {
	data, directErr := p.get(ctx, sourceURL)
	if directErr == nil {
		return data, nil
	}

	if p.proxy == "" {
		return nil, directErr
	}

	p.logger.Debug("direct fetch failed, retrying via proxy",
		slog.String("url", sourceURL), slog.Any("error", directErr))

	data, proxyErr := p.get(ctx, p.proxy+url.QueryEscape(sourceURL))
	if proxyErr != nil {
		return nil, domain.NewTransferError("fetch", sourceURL, 0, "direct and proxied fetch both failed", proxyErr)
	}
	return data, nil
}

// get performs a single GET and fully buffers the body.
func (p *Pipeline) get(ctx context.Context, fetchURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fetchURL, nil)
	if err != nil {
		return nil, domain.NewTransferError("fetch", fetchURL, 0, "invalid request", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, domain.NewTransferError("fetch", fetchURL, 0, "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, domain.NewTransferError("fetch", fetchURL, resp.StatusCode, "unexpected status", nil)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.NewTransferError("fetch", fetchURL, 0, "reading body failed", err)
	}
	return data, nil
}

// clipFilename encodes the source name and start offset for traceability.
func clipFilename(sourceURL string, start time.Duration) string {
	base := path.Base(sourceURL)
	if u, err := url.Parse(sourceURL); err == nil && u.Path != "" {
		base = path.Base(u.Path)
	}
	base = strings.TrimSuffix(base, path.Ext(base))
	if base == "" || base == "." || base == "/" {
		base = "audio"
	}
	return fmt.Sprintf("clip_%s_%ds.wav", base, int(start.Seconds()))
}
