// Package wav implements a minimal PCM WAVE encoder: per-channel float
// samples in, a complete RIFF/WAVE byte buffer out. This byte layout is the
// only wire format owned by the player core, so it is written by hand rather
// than delegated to a decoding library.
package wav

import (
	"encoding/binary"
	"math"

	"github.com/iredox10/minbar/internal/domain"
)

const (
	headerSize     = 44
	bitsPerSample  = 16
	bytesPerSample = bitsPerSample / 8
	pcmFormatTag   = 1
)

// Encode converts per-channel 32-bit float samples in [-1, 1] into a valid
// RIFF/WAVE buffer with a 44-byte header followed by interleaved
// little-endian 16-bit PCM, one sample per channel per frame, channel order
// preserved. Values outside [-1, 1] are clamped. No compression, no
// dithering.
//
// Encode is a pure function: the same input always yields a byte-identical
// buffer. All channels must have equal length; a mismatch or an empty
// channel set is a caller error and is rejected with a ValidationError.
func Encode(channels [][]float32, sampleRate int) ([]byte, error) {
	if len(channels) == 0 {
		return nil, domain.NewValidationError("channels", 0, "at least one channel is required")
	}
	if sampleRate <= 0 {
		return nil, domain.NewValidationError("sampleRate", sampleRate, "sample rate must be positive")
	}

	frames := len(channels[0])
	for i, ch := range channels {
		if len(ch) != frames {
			return nil, domain.NewValidationError("channels", i, "all channels must have equal length")
		}
	}

	numChannels := len(channels)
	dataSize := frames * numChannels * bytesPerSample
	buf := make([]byte, headerSize+dataSize)

	writeHeader(buf, sampleRate, numChannels, dataSize)

	offset := headerSize
	for f := 0; f < frames; f++ {
		for c := 0; c < numChannels; c++ {
			binary.LittleEndian.PutUint16(buf[offset:], uint16(quantize(channels[c][f])))
			offset += bytesPerSample
		}
	}

	return buf, nil
}

// quantize converts a float sample to int16. Negative values scale by 32768
// and non-negative by 32767 so both ends of the int16 range are reachable
// without overflow.
func quantize(x float32) int16 {
	v := float64(x)
	if v < -1 {
		v = -1
	} else if v > 1 {
		v = 1
	}
	if v < 0 {
		return int16(math.Round(v * 32768))
	}
	return int16(math.Round(v * 32767))
}

// writeHeader fills the standard 44-byte PCM WAVE header:
// RIFF chunk, WAVE form, "fmt " subchunk (format tag 1), "data" subchunk.
func writeHeader(buf []byte, sampleRate, numChannels, dataSize int) {
	byteRate := sampleRate * numChannels * bytesPerSample
	blockAlign := numChannels * bytesPerSample

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:], uint32(36+dataSize))
	copy(buf[8:12], "WAVE")

	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:], 16) // fmt chunk size
	binary.LittleEndian.PutUint16(buf[20:], pcmFormatTag)
	binary.LittleEndian.PutUint16(buf[22:], uint16(numChannels))
	binary.LittleEndian.PutUint32(buf[24:], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:], bitsPerSample)

	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:], uint32(dataSize))
}
