package clip

import (
	"context"
	"encoding/binary"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iredox10/minbar/internal/domain"
)

// stubDecoder returns a fixed PCM buffer regardless of input.
type stubDecoder struct {
	channels   [][]float32
	sampleRate int
	err        error
	calls      int32
}

func (d *stubDecoder) Decode(_ domain.AudioFormat, _ []byte) ([][]float32, int, error) {
	atomic.AddInt32(&d.calls, 1)
	if d.err != nil {
		return nil, 0, d.err
	}
	return d.channels, d.sampleRate, nil
}

// pcmSeconds builds a mono decoder with the given number of seconds of audio
// at 100 Hz (100 frames per second keeps the numbers readable).
func pcmSeconds(seconds int) *stubDecoder {
	samples := make([]float32, seconds*100)
	for i := range samples {
		samples[i] = 0.25
	}
	return &stubDecoder{channels: [][]float32{samples}, sampleRate: 100}
}

func audioServer(t *testing.T, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		w.Write([]byte("fake-audio-bytes"))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestExtract_FullWindow(t *testing.T) {
	srv := audioServer(t, http.StatusOK)
	p := New(pcmSeconds(120), Options{Client: srv.Client()})

	var progress []int
	result, err := p.Extract(context.Background(), srv.URL+"/lecture-05.mp3", 10*time.Second, 30*time.Second, func(pct int) {
		progress = append(progress, pct)
	})
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, result.ActualDuration)
	assert.Equal(t, "clip_lecture-05_10s.wav", result.Filename)

	// 30s of mono at 100 Hz -> 3000 frames of 2 bytes after the header.
	assert.Equal(t, 44+3000*2, len(result.Data))

	// Progress is monotonic and terminates at 100.
	require.NotEmpty(t, progress)
	for i := 1; i < len(progress); i++ {
		assert.GreaterOrEqual(t, progress[i], progress[i-1])
	}
	assert.Equal(t, 100, progress[len(progress)-1])
}

func TestExtract_DurationBound(t *testing.T) {
	srv := audioServer(t, http.StatusOK)
	p := New(pcmSeconds(120), Options{Client: srv.Client()})

	// Requests beyond the cap are clamped to 60s.
	result, err := p.Extract(context.Background(), srv.URL+"/a.mp3", 0, 5*time.Minute, nil)
	require.NoError(t, err)
	assert.Equal(t, MaxClipDuration, result.ActualDuration)
}

func TestExtract_ShorterNearEnd(t *testing.T) {
	srv := audioServer(t, http.StatusOK)
	p := New(pcmSeconds(100), Options{Client: srv.Client()})

	// 100s track, start at 90s, ask for 60s -> only 10s available.
	result, err := p.Extract(context.Background(), srv.URL+"/a.mp3", 90*time.Second, 60*time.Second, nil)
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, result.ActualDuration)
	assert.LessOrEqual(t, result.ActualDuration, 60*time.Second)
}

func TestExtract_NegativeStartClamped(t *testing.T) {
	srv := audioServer(t, http.StatusOK)
	p := New(pcmSeconds(100), Options{Client: srv.Client()})

	result, err := p.Extract(context.Background(), srv.URL+"/a.mp3", -5*time.Second, 10*time.Second, nil)
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, result.ActualDuration)
	assert.Equal(t, "clip_a_0s.wav", result.Filename)
}

func TestExtract_EmptyWindowRejected(t *testing.T) {
	srv := audioServer(t, http.StatusOK)

	var verr *domain.ValidationError

	// Zero or negative requested duration is rejected before any fetch.
	p := New(pcmSeconds(100), Options{Client: srv.Client()})
	_, err := p.Extract(context.Background(), srv.URL+"/a.mp3", 0, 0, nil)
	require.ErrorAs(t, err, &verr)

	// Start at or past the end of the track is rejected after decode.
	_, err = p.Extract(context.Background(), srv.URL+"/a.mp3", 200*time.Second, 10*time.Second, nil)
	require.ErrorAs(t, err, &verr)
}

func TestExtract_ProxyFallback(t *testing.T) {
	var proxied atomic.Bool
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		proxied.Store(true)
		w.Write([]byte("fake-audio-bytes"))
	}))
	defer proxy.Close()

	direct := audioServer(t, http.StatusForbidden)

	p := New(pcmSeconds(100), Options{
		Client:   http.DefaultClient,
		ProxyURL: proxy.URL + "/?url=",
	})

	result, err := p.Extract(context.Background(), direct.URL+"/a.mp3", 0, 10*time.Second, nil)
	require.NoError(t, err)
	assert.True(t, proxied.Load(), "proxy was not used")
	assert.Equal(t, 10*time.Second, result.ActualDuration)
}

func TestExtract_FetchFailureWithoutProxy(t *testing.T) {
	direct := audioServer(t, http.StatusNotFound)
	p := New(pcmSeconds(100), Options{Client: direct.Client()})

	_, err := p.Extract(context.Background(), direct.URL+"/a.mp3", 0, 10*time.Second, nil)
	var terr *domain.TransferError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, http.StatusNotFound, terr.Status)
}

func TestExtract_DecodeFailureIsTerminal(t *testing.T) {
	srv := audioServer(t, http.StatusOK)
	dec := &stubDecoder{err: errors.New("corrupt stream")}
	p := New(dec, Options{Client: srv.Client()})

	_, err := p.Extract(context.Background(), srv.URL+"/a.mp3", 0, 10*time.Second, nil)
	var terr *domain.TransferError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "decode", terr.Op)

	// No retry for decode failures.
	assert.Equal(t, int32(1), atomic.LoadInt32(&dec.calls))
}

func TestExtract_WavHeaderMatchesSlice(t *testing.T) {
	srv := audioServer(t, http.StatusOK)
	p := New(pcmSeconds(30), Options{Client: srv.Client()})

	result, err := p.Extract(context.Background(), srv.URL+"/a.mp3", 5*time.Second, 10*time.Second, nil)
	require.NoError(t, err)

	sampleRate := binary.LittleEndian.Uint32(result.Data[24:])
	dataSize := binary.LittleEndian.Uint32(result.Data[40:])
	assert.Equal(t, uint32(100), sampleRate)
	assert.Equal(t, uint32(10*100*2), dataSize)
}
