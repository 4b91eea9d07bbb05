// Package beep provides a gopxl/beep implementation of the AudioEngine
// interface. Audio is fetched over HTTP (or read from the local blob store
// for offline items), decoded with the beep decoder matching the format
// hint, and played through the process-wide speaker.
package beep

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"

	"github.com/iredox10/minbar/internal/domain"
	"github.com/iredox10/minbar/internal/ports"
)

// blobScheme prefixes refs that resolve through the blob store instead of
// the network.
const blobScheme = "blob:"

const resampleQuality = 4

// Engine is the beep implementation of the AudioEngine interface.
//
// The speaker is a process-wide resource, so only one Engine should exist
// per process; the services layer already guarantees a single active
// instance at a time.
type Engine struct {
	sampleRate beep.SampleRate
	client     *http.Client
	blobs      ports.BlobStore

	tracks     map[domain.TrackHandle]*instance
	nextHandle domain.TrackHandle
	onComplete func(domain.TrackHandle)
	mu         sync.RWMutex
}

// instance bundles the resources of one loaded sound.
type instance struct {
	url       string
	streamer  beep.StreamSeekCloser
	format    beep.Format
	resampler *beep.Resampler
	volume    *effects.Volume
	ctrl      *beep.Ctrl

	rate   float64
	status domain.EngineStatus
	done   bool
}

// baseRatio is the resample ratio at playback rate 1.0.
func (in *instance) baseRatio(speakerRate beep.SampleRate) float64 {
	return float64(in.format.SampleRate) / float64(speakerRate)
}

// NewEngine creates a beep audio engine and initializes the speaker at the
// given sample rate. The blob store may be nil if offline playback is not
// wired.
func NewEngine(sampleRate int, client *http.Client, blobs ports.BlobStore) (*Engine, error) {
	if client == nil {
		client = http.DefaultClient
	}

	sr := beep.SampleRate(sampleRate)
	if err := speaker.Init(sr, sr.N(100*time.Millisecond)); err != nil {
		return nil, domain.NewEngineError("init", "", "speaker init failed", err)
	}

	return &Engine{
		sampleRate: sr,
		client:     client,
		blobs:      blobs,
		tracks:     make(map[domain.TrackHandle]*instance),
		nextHandle: 1,
	}, nil
}

// Load fetches the audio bytes, decodes them with the hinted decoder
// (falling back to MP3 on a wrong hint) and prepares a paused instance.
func (e *Engine) Load(url string, format domain.AudioFormat) (domain.TrackHandle, error) {
	if url == "" {
		return domain.InvalidTrackHandle, domain.ErrInvalidURL
	}

	data, err := e.fetch(url)
	if err != nil {
		return domain.InvalidTrackHandle, domain.NewEngineError("load", url, "fetch failed", err)
	}

	streamer, beepFormat, err := decode(format, data)
	if err != nil && format != domain.FormatMP3 {
		// Wrong extension hint; the catalog is mostly MP3.
		streamer, beepFormat, err = decode(domain.FormatMP3, data)
	}
	if err != nil {
		return domain.InvalidTrackHandle, domain.NewEngineError("load", url, "decode failed", err)
	}

	in := &instance{
		url:      url,
		streamer: streamer,
		format:   beepFormat,
		rate:     1.0,
		status:   domain.EngineStopped,
	}
	in.resampler = beep.ResampleRatio(resampleQuality, in.baseRatio(e.sampleRate), streamer)
	in.volume = &effects.Volume{Streamer: in.resampler, Base: 2, Volume: 0}
	in.ctrl = &beep.Ctrl{Streamer: in.volume, Paused: true}

	e.mu.Lock()
	handle := e.nextHandle
	e.nextHandle++
	e.tracks[handle] = in
	e.mu.Unlock()

	speaker.Play(beep.Seq(in.ctrl, beep.Callback(func() {
		e.handleStreamEnd(handle)
	})))

	return handle, nil
}

// handleStreamEnd runs on the speaker goroutine when an instance drains.
// The speaker lock is held at this point and the completion handler may
// re-enter the engine (load the next track), so it gets its own goroutine.
func (e *Engine) handleStreamEnd(handle domain.TrackHandle) {
	e.mu.Lock()
	in, ok := e.tracks[handle]
	if ok && !in.done {
		in.done = true
		in.status = domain.EngineStopped
	} else {
		ok = false
	}
	fn := e.onComplete
	e.mu.Unlock()

	if ok && fn != nil {
		go fn(handle)
	}
}

// fetch resolves the audio bytes for a URL: blob refs read from the local
// store, everything else over HTTP. The payload is buffered fully so the
// decoders can seek and report length.
func (e *Engine) fetch(url string) ([]byte, error) {
	if strings.HasPrefix(url, blobScheme) {
		if e.blobs == nil {
			return nil, fmt.Errorf("no blob store configured for %q", url)
		}
		rc, err := e.blobs.Open(url)
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}

	resp, err := e.client.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, domain.NewTransferError("fetch", url, resp.StatusCode, "unexpected status", nil)
	}

	return io.ReadAll(resp.Body)
}

// decode picks the beep decoder for a format hint.
func decode(format domain.AudioFormat, data []byte) (beep.StreamSeekCloser, beep.Format, error) {
	rc := newByteReadCloser(data)
	switch format {
	case domain.FormatWAV:
		return wav.Decode(rc)
	case domain.FormatFLAC:
		return flac.Decode(rc)
	case domain.FormatVorbis:
		return vorbis.Decode(rc)
	default:
		return mp3.Decode(rc)
	}
}

// byteReadCloser adapts a byte slice to the read/seek/close combination the
// decoders expect.
type byteReadCloser struct {
	*bytes.Reader
}

func newByteReadCloser(data []byte) byteReadCloser {
	return byteReadCloser{bytes.NewReader(data)}
}

func (byteReadCloser) Close() error { return nil }

// Unload releases all resources of an instance.
func (e *Engine) Unload(handle domain.TrackHandle) error {
	e.mu.Lock()
	in, ok := e.tracks[handle]
	if !ok {
		e.mu.Unlock()
		return domain.ErrInvalidTrackHandle
	}
	delete(e.tracks, handle)
	e.mu.Unlock()

	speaker.Lock()
	in.done = true
	in.ctrl.Paused = true
	in.ctrl.Streamer = nil
	speaker.Unlock()

	return in.streamer.Close()
}

// Play starts or resumes playback.
func (e *Engine) Play(handle domain.TrackHandle) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	in, ok := e.tracks[handle]
	if !ok {
		return domain.ErrInvalidTrackHandle
	}

	speaker.Lock()
	in.ctrl.Paused = false
	speaker.Unlock()
	in.status = domain.EnginePlaying
	return nil
}

// Pause suspends playback, preserving the position.
func (e *Engine) Pause(handle domain.TrackHandle) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	in, ok := e.tracks[handle]
	if !ok {
		return domain.ErrInvalidTrackHandle
	}

	speaker.Lock()
	in.ctrl.Paused = true
	speaker.Unlock()
	in.status = domain.EnginePaused
	return nil
}

// Stop halts playback and releases the instance.
func (e *Engine) Stop(handle domain.TrackHandle) error {
	return e.Unload(handle)
}

// Status returns the transport state of the instance.
func (e *Engine) Status(handle domain.TrackHandle) (domain.EngineStatus, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	in, ok := e.tracks[handle]
	if !ok {
		return domain.EngineStopped, domain.ErrInvalidTrackHandle
	}
	if in.done {
		return domain.EngineStopped, nil
	}
	return in.status, nil
}

// Position returns the playback position within the instance.
func (e *Engine) Position(handle domain.TrackHandle) (time.Duration, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	in, ok := e.tracks[handle]
	if !ok {
		return 0, domain.ErrInvalidTrackHandle
	}

	speaker.Lock()
	pos := in.streamer.Position()
	speaker.Unlock()
	return in.format.SampleRate.D(pos), nil
}

// Duration returns the total duration of the instance.
func (e *Engine) Duration(handle domain.TrackHandle) (time.Duration, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	in, ok := e.tracks[handle]
	if !ok {
		return 0, domain.ErrInvalidTrackHandle
	}

	n := in.streamer.Len()
	if n <= 0 {
		return 0, nil
	}
	return in.format.SampleRate.D(n), nil
}

// Seek sets the playback position.
func (e *Engine) Seek(handle domain.TrackHandle, position time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	in, ok := e.tracks[handle]
	if !ok {
		return domain.ErrInvalidTrackHandle
	}

	n := in.format.SampleRate.N(position)
	if n < 0 || n > in.streamer.Len() {
		return domain.NewEngineError("seek", in.url, "position out of range", nil)
	}

	speaker.Lock()
	err := in.streamer.Seek(n)
	speaker.Unlock()
	if err != nil {
		return domain.NewEngineError("seek", in.url, "seek failed", err)
	}
	return nil
}

// SetVolume sets the playback volume from 0.0 (silent) to 1.0 (full).
func (e *Engine) SetVolume(handle domain.TrackHandle, volume float64) error {
	if volume < 0 || volume > 1 {
		return domain.ErrInvalidVolume
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	in, ok := e.tracks[handle]
	if !ok {
		return domain.ErrInvalidTrackHandle
	}

	speaker.Lock()
	if volume == 0 {
		in.volume.Silent = true
	} else {
		in.volume.Silent = false
		in.volume.Volume = math.Log2(volume)
	}
	speaker.Unlock()
	return nil
}

// SetRate sets the playback rate by adjusting the resample ratio.
func (e *Engine) SetRate(handle domain.TrackHandle, rate float64) error {
	if rate <= 0 {
		return domain.ErrInvalidRate
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	in, ok := e.tracks[handle]
	if !ok {
		return domain.ErrInvalidTrackHandle
	}

	speaker.Lock()
	in.resampler.SetRatio(in.baseRatio(e.sampleRate) * rate)
	speaker.Unlock()
	in.rate = rate
	return nil
}

// SetCompletionCallback registers the natural-end callback.
func (e *Engine) SetCompletionCallback(fn func(domain.TrackHandle)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onComplete = fn
}

// Close releases all instances and the speaker.
func (e *Engine) Close() error {
	e.mu.Lock()
	handles := make([]domain.TrackHandle, 0, len(e.tracks))
	for h := range e.tracks {
		handles = append(handles, h)
	}
	e.mu.Unlock()

	for _, h := range handles {
		if err := e.Unload(h); err != nil {
			return err
		}
	}

	speaker.Close()
	return nil
}

var _ ports.AudioEngine = (*Engine)(nil)
