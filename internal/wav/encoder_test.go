package wav

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iredox10/minbar/internal/domain"
)

// parsedHeader holds the fields a decoder would read back from the header.
type parsedHeader struct {
	riff        string
	wave        string
	fmtID       string
	dataID      string
	formatTag   uint16
	numChannels uint16
	sampleRate  uint32
	byteRate    uint32
	blockAlign  uint16
	bits        uint16
	dataSize    uint32
}

func parseHeader(t *testing.T, buf []byte) parsedHeader {
	t.Helper()
	require.GreaterOrEqual(t, len(buf), 44)

	return parsedHeader{
		riff:        string(buf[0:4]),
		wave:        string(buf[8:12]),
		fmtID:       string(buf[12:16]),
		dataID:      string(buf[36:40]),
		formatTag:   binary.LittleEndian.Uint16(buf[20:]),
		numChannels: binary.LittleEndian.Uint16(buf[22:]),
		sampleRate:  binary.LittleEndian.Uint32(buf[24:]),
		byteRate:    binary.LittleEndian.Uint32(buf[28:]),
		blockAlign:  binary.LittleEndian.Uint16(buf[32:]),
		bits:        binary.LittleEndian.Uint16(buf[34:]),
		dataSize:    binary.LittleEndian.Uint32(buf[40:]),
	}
}

func TestEncode_HeaderRoundTrip(t *testing.T) {
	left := []float32{0, 0.5, -0.5, 1, -1}
	right := []float32{0.25, -0.25, 0.75, -0.75, 0}

	buf, err := Encode([][]float32{left, right}, 44100)
	require.NoError(t, err)

	h := parseHeader(t, buf)
	assert.Equal(t, "RIFF", h.riff)
	assert.Equal(t, "WAVE", h.wave)
	assert.Equal(t, "fmt ", h.fmtID)
	assert.Equal(t, "data", h.dataID)
	assert.Equal(t, uint16(1), h.formatTag)
	assert.Equal(t, uint16(2), h.numChannels)
	assert.Equal(t, uint32(44100), h.sampleRate)
	assert.Equal(t, uint16(16), h.bits)
	assert.Equal(t, uint16(4), h.blockAlign)
	assert.Equal(t, uint32(44100*4), h.byteRate)

	// dataSize = frames * channels * 2
	assert.Equal(t, uint32(5*2*2), h.dataSize)
	assert.Equal(t, 44+int(h.dataSize), len(buf))
}

func TestEncode_SampleQuantization(t *testing.T) {
	samples := []float32{0, 0.5, -0.5, 1, -1, 0.0001, -0.0001}

	buf, err := Encode([][]float32{samples}, 8000)
	require.NoError(t, err)

	for i, want := range samples {
		got := int16(binary.LittleEndian.Uint16(buf[44+i*2:]))

		// Decoded values differ from the float source by at most one
		// quantization step.
		var back float64
		if got < 0 {
			back = float64(got) / 32768
		} else {
			back = float64(got) / 32767
		}
		assert.InDelta(t, float64(want), back, 1.0/32767, "sample %d", i)
	}

	// Full-scale values hit the exact int16 extremes.
	assert.Equal(t, int16(32767), int16(binary.LittleEndian.Uint16(buf[44+3*2:])))
	assert.Equal(t, int16(-32768), int16(binary.LittleEndian.Uint16(buf[44+4*2:])))
}

func TestEncode_ClampsOutOfRange(t *testing.T) {
	buf, err := Encode([][]float32{{2.5, -3.0}}, 8000)
	require.NoError(t, err)

	assert.Equal(t, int16(32767), int16(binary.LittleEndian.Uint16(buf[44:])))
	assert.Equal(t, int16(-32768), int16(binary.LittleEndian.Uint16(buf[46:])))
}

func TestEncode_Interleaving(t *testing.T) {
	left := []float32{0.5, 0.5}
	right := []float32{-0.5, -0.5}

	buf, err := Encode([][]float32{left, right}, 8000)
	require.NoError(t, err)

	l0 := int16(binary.LittleEndian.Uint16(buf[44:]))
	r0 := int16(binary.LittleEndian.Uint16(buf[46:]))
	assert.Equal(t, int16(math.Round(0.5*32767)), l0)
	assert.Equal(t, int16(math.Round(-0.5*32768)), r0)
}

func TestEncode_Deterministic(t *testing.T) {
	channels := [][]float32{{0.1, -0.2, 0.3}, {-0.4, 0.5, -0.6}}

	a, err := Encode(channels, 22050)
	require.NoError(t, err)
	b, err := Encode(channels, 22050)
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestEncode_RejectsInvalidShape(t *testing.T) {
	var verr *domain.ValidationError

	_, err := Encode(nil, 44100)
	require.ErrorAs(t, err, &verr)

	_, err = Encode([][]float32{{1, 2}, {1}}, 44100)
	require.ErrorAs(t, err, &verr)

	_, err = Encode([][]float32{{1}}, 0)
	require.ErrorAs(t, err, &verr)
}

func TestEncode_ZeroFrames(t *testing.T) {
	buf, err := Encode([][]float32{{}}, 44100)
	require.NoError(t, err)

	h := parseHeader(t, buf)
	assert.Equal(t, uint32(0), h.dataSize)
	assert.Equal(t, 44, len(buf))
}
