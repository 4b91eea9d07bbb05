package beep

import (
	"github.com/gopxl/beep/v2"

	"github.com/iredox10/minbar/internal/domain"
)

// PCMDecoder decodes an audio payload into per-channel float samples using
// the beep decoders. It implements the clip pipeline's Decoder contract.
//
// Decoding is scoped strictly to one call: the streamer is closed before
// returning, success or failure.
type PCMDecoder struct{}

// NewPCMDecoder creates a PCM decoder.
func NewPCMDecoder() *PCMDecoder {
	return &PCMDecoder{}
}

// Decode converts the payload into per-channel samples in [-1, 1] and
// reports the source sample rate. Mono sources yield one channel, everything
// else two (beep streams in stereo frames).
func (d *PCMDecoder) Decode(format domain.AudioFormat, data []byte) ([][]float32, int, error) {
	streamer, beepFormat, err := decode(format, data)
	if err != nil {
		return nil, 0, err
	}
	defer streamer.Close()

	numChannels := 2
	if beepFormat.NumChannels == 1 {
		numChannels = 1
	}

	channels := make([][]float32, numChannels)
	if n := streamer.Len(); n > 0 {
		for c := range channels {
			channels[c] = make([]float32, 0, n)
		}
	}

	buf := make([][2]float64, 512)
	for {
		n, ok := streamer.Stream(buf)
		for i := 0; i < n; i++ {
			channels[0] = append(channels[0], float32(buf[i][0]))
			if numChannels == 2 {
				channels[1] = append(channels[1], float32(buf[i][1]))
			}
		}
		if !ok {
			break
		}
	}

	if err := streamer.Err(); err != nil {
		return nil, 0, err
	}

	return channels, int(beepFormat.SampleRate), nil
}
