package domain

import (
	"net/url"
	"path"
	"strings"
)

// AudioFormat is a decoding hint for the audio engine and the clip pipeline.
type AudioFormat string

const (
	FormatMP3    AudioFormat = "mp3"
	FormatWAV    AudioFormat = "wav"
	FormatFLAC   AudioFormat = "flac"
	FormatVorbis AudioFormat = "ogg"
)

// FormatFromURL sniffs the audio format from a URL's path extension.
// Unrecognized or missing extensions fall back to MP3, which is the
// dominant format in the catalog.
func FormatFromURL(rawURL string) AudioFormat {
	ext := strings.ToLower(path.Ext(rawURL))
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		ext = strings.ToLower(path.Ext(u.Path))
	}

	switch ext {
	case ".wav", ".wave":
		return FormatWAV
	case ".flac":
		return FormatFLAC
	case ".ogg", ".oga":
		return FormatVorbis
	case ".mp3":
		return FormatMP3
	default:
		return FormatMP3
	}
}

// EngineStatus is the transport state of a loaded sound instance.
// It is narrower than PlayerStatus: the engine knows nothing about
// loading or session semantics.
type EngineStatus int

const (
	// EngineStopped indicates the instance is not producing audio.
	// A stopped instance that has been played before reached its natural end.
	EngineStopped EngineStatus = iota

	// EnginePlaying indicates the instance is producing audio
	EnginePlaying

	// EnginePaused indicates the instance is suspended at its position
	EnginePaused
)

// String returns a human-readable representation of the engine status.
func (s EngineStatus) String() string {
	switch s {
	case EnginePlaying:
		return "playing"
	case EnginePaused:
		return "paused"
	default:
		return "stopped"
	}
}
