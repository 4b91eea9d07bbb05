// Package mpris publishes now-playing state on the MPRIS D-Bus interface
// and relays desktop media-key commands back to the player. The integration
// is best-effort: construction fails cleanly when no session bus is
// available and callers fall back to the noop session.
package mpris

import (
	"log/slog"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/prop"

	"github.com/iredox10/minbar/internal/domain"
	"github.com/iredox10/minbar/internal/ports"
)

const (
	busName    = "org.mpris.MediaPlayer2.minbar"
	objectPath = dbus.ObjectPath("/org/mpris/MediaPlayer2")

	rootInterface   = "org.mpris.MediaPlayer2"
	playerInterface = "org.mpris.MediaPlayer2.Player"
)

// Session is the MPRIS implementation of ports.MediaSession.
type Session struct {
	logger *slog.Logger
	conn   *dbus.Conn
	props  *prop.Properties

	mu       sync.Mutex
	commands chan ports.MediaCommand
	closed   bool
}

var _ ports.MediaSession = (*Session)(nil)

// NewSession connects to the session bus and claims the MPRIS bus name.
func NewSession(logger *slog.Logger) (*Session, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, domain.NewEngineError("mpris", "", "connecting to session bus failed", err)
	}

	s := &Session{
		logger:   logger,
		conn:     conn,
		commands: make(chan ports.MediaCommand, 8),
	}

	if err := conn.Export(rootObject{}, objectPath, rootInterface); err != nil {
		conn.Close()
		return nil, domain.NewEngineError("mpris", "", "exporting root object failed", err)
	}
	if err := conn.Export(playerObject{session: s}, objectPath, playerInterface); err != nil {
		conn.Close()
		return nil, domain.NewEngineError("mpris", "", "exporting player object failed", err)
	}

	s.props, err = prop.Export(conn, objectPath, propSpec())
	if err != nil {
		conn.Close()
		return nil, domain.NewEngineError("mpris", "", "exporting properties failed", err)
	}

	reply, err := conn.RequestName(busName, dbus.NameFlagReplaceExisting)
	if err != nil || reply != dbus.RequestNameReplyPrimaryOwner {
		conn.Close()
		return nil, domain.NewEngineError("mpris", "", "claiming bus name failed", err)
	}

	logger.Debug("mpris session registered", slog.String("bus_name", busName))
	return s, nil
}

// SetNowPlaying publishes track metadata.
func (s *Session) SetNowPlaying(track domain.Track) error {
	metadata := map[string]dbus.Variant{
		"mpris:trackid": dbus.MakeVariant(dbus.ObjectPath("/io/minbar/track/" + dbusSafe(track.ID))),
		"xesam:title":   dbus.MakeVariant(track.Title),
	}
	if track.Speaker != "" {
		metadata["xesam:artist"] = dbus.MakeVariant([]string{track.Speaker})
	}
	if track.ArtworkURL != "" {
		metadata["mpris:artUrl"] = dbus.MakeVariant(track.ArtworkURL)
	}
	if track.Duration > 0 {
		metadata["mpris:length"] = dbus.MakeVariant(track.Duration.Microseconds())
	}

	if err := s.props.Set(playerInterface, "Metadata", dbus.MakeVariant(metadata)); err != nil {
		return domain.NewEngineError("mpris", "", "publishing metadata failed", err)
	}
	return nil
}

// SetPlaybackStatus publishes the transport state and position.
func (s *Session) SetPlaybackStatus(status domain.PlayerStatus, position time.Duration) error {
	if err := s.props.Set(playerInterface, "PlaybackStatus", dbus.MakeVariant(mprisStatus(status))); err != nil {
		return domain.NewEngineError("mpris", "", "publishing playback status failed", err)
	}
	if err := s.props.Set(playerInterface, "Position", dbus.MakeVariant(position.Microseconds())); err != nil {
		return domain.NewEngineError("mpris", "", "publishing position failed", err)
	}
	return nil
}

// Commands returns the channel carrying desktop transport commands.
func (s *Session) Commands() <-chan ports.MediaCommand {
	return s.commands
}

// Close releases the bus name and closes the command channel.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.commands)
	s.mu.Unlock()

	if _, err := s.conn.ReleaseName(busName); err != nil {
		s.logger.Warn("releasing mpris bus name failed", slog.Any("error", err))
	}
	return s.conn.Close()
}

// push forwards a command without ever blocking the bus goroutine.
// Commands are dropped when the consumer lags or the session is closed.
func (s *Session) push(cmd ports.MediaCommand) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.commands <- cmd:
	default:
		s.logger.Warn("dropping media command, consumer not keeping up")
	}
}

func mprisStatus(status domain.PlayerStatus) string {
	switch status {
	case domain.StatusPlaying:
		return "Playing"
	case domain.StatusPaused:
		return "Paused"
	default:
		return "Stopped"
	}
}

// dbusSafe maps an arbitrary id onto the object-path character set.
func dbusSafe(id string) string {
	out := make([]byte, 0, len(id))
	for i := 0; i < len(id); i++ {
		c := id[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			out = append(out, c)
		default:
			out = append(out, '_')
		}
	}
	if len(out) == 0 {
		return "unknown"
	}
	return string(out)
}

func propSpec() map[string]map[string]*prop.Prop {
	return map[string]map[string]*prop.Prop{
		rootInterface: {
			"Identity":            constProp("Minbar"),
			"CanQuit":             constProp(false),
			"CanRaise":            constProp(false),
			"HasTrackList":        constProp(false),
			"SupportedUriSchemes": constProp([]string{"http", "https", "blob"}),
			"SupportedMimeTypes":  constProp([]string{"audio/mpeg", "audio/wav", "audio/flac", "audio/ogg"}),
		},
		playerInterface: {
			"PlaybackStatus": writableProp("Stopped"),
			"Metadata":       writableProp(map[string]dbus.Variant{}),
			"Position":       writableProp(int64(0)),
			"CanGoNext":      constProp(true),
			"CanGoPrevious":  constProp(true),
			"CanPlay":        constProp(true),
			"CanPause":       constProp(true),
			"CanSeek":        constProp(false),
			"CanControl":     constProp(true),
		},
	}
}

func constProp(value interface{}) *prop.Prop {
	return &prop.Prop{Value: value, Emit: prop.EmitFalse}
}

func writableProp(value interface{}) *prop.Prop {
	return &prop.Prop{Value: value, Writable: true, Emit: prop.EmitTrue}
}

// rootObject implements the org.mpris.MediaPlayer2 methods.
type rootObject struct{}

func (rootObject) Raise() *dbus.Error { return nil }
func (rootObject) Quit() *dbus.Error  { return nil }

// playerObject implements the org.mpris.MediaPlayer2.Player methods.
type playerObject struct {
	session *Session
}

func (p playerObject) Play() *dbus.Error {
	p.session.push(ports.CmdPlay)
	return nil
}

func (p playerObject) Pause() *dbus.Error {
	p.session.push(ports.CmdPause)
	return nil
}

func (p playerObject) PlayPause() *dbus.Error {
	p.session.push(ports.CmdPlayPause)
	return nil
}

func (p playerObject) Stop() *dbus.Error {
	p.session.push(ports.CmdStop)
	return nil
}

func (p playerObject) Next() *dbus.Error {
	p.session.push(ports.CmdNext)
	return nil
}

func (p playerObject) Previous() *dbus.Error {
	p.session.push(ports.CmdPrevious)
	return nil
}
