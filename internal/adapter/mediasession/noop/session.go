// Package noop provides the media session used when no platform
// media-control surface is available.
package noop

import (
	"time"

	"github.com/iredox10/minbar/internal/domain"
	"github.com/iredox10/minbar/internal/ports"
)

// Session discards all state updates and never delivers commands.
type Session struct {
	commands chan ports.MediaCommand
}

var _ ports.MediaSession = (*Session)(nil)

// NewSession creates a media session that does nothing.
func NewSession() *Session {
	return &Session{commands: make(chan ports.MediaCommand)}
}

func (s *Session) SetNowPlaying(domain.Track) error { return nil }

func (s *Session) SetPlaybackStatus(domain.PlayerStatus, time.Duration) error { return nil }

func (s *Session) Commands() <-chan ports.MediaCommand { return s.commands }

func (s *Session) Close() error {
	close(s.commands)
	return nil
}
