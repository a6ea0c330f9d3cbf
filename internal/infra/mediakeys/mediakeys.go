// Package mediakeys publishes the player on the desktop media-control
// surface (MPRIS over D-Bus) so hardware media keys and system widgets
// can drive playback.
//
// Everything here is best effort: when no session bus is reachable the
// package degrades to a no-op and playback is unaffected.
package mediakeys

import (
	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"github.com/godbus/dbus/v5/prop"
	zlog "github.com/rs/zerolog/log"

	"github.com/soundfold/playerd/internal/app/playback"
)

const (
	busName    = "org.mpris.MediaPlayer2.playerd"
	objectPath = dbus.ObjectPath("/org/mpris/MediaPlayer2")

	rootInterface   = "org.mpris.MediaPlayer2"
	playerInterface = "org.mpris.MediaPlayer2.Player"
)

// Transport is the slice of the playback session the media surface drives.
type Transport interface {
	Play() error
	Pause() error
	Next() error
	Previous() error
	Seek(seconds float64) error
	Snapshot() playback.Snapshot
}

// Controls owns the MPRIS registration. A zero-valued Controls is a
// valid no-op instance.
type Controls struct {
	conn      *dbus.Conn
	props     *prop.Properties
	transport Transport
}

// New registers the player on the session bus. When the bus is
// unavailable it returns a no-op Controls and logs at debug level.
func New(transport Transport) *Controls {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		zlog.Debug().Err(err).Msg("mediakeys: session bus unavailable, media controls disabled")
		return &Controls{}
	}

	c := &Controls{conn: conn, transport: transport}
	if err := c.export(); err != nil {
		zlog.Debug().Err(err).Msg("mediakeys: mpris export failed, media controls disabled")
		_ = conn.Close()
		return &Controls{}
	}

	reply, err := conn.RequestName(busName, dbus.NameFlagReplaceExisting)
	if err != nil || reply != dbus.RequestNameReplyPrimaryOwner {
		zlog.Debug().Err(err).Msg("mediakeys: could not own mpris bus name, media controls disabled")
		_ = conn.Close()
		return &Controls{}
	}

	zlog.Info().Str("bus_name", busName).Msg("media controls registered")
	return c
}

// Enabled reports whether the media surface is live.
func (c *Controls) Enabled() bool { return c.conn != nil }

// Update pushes the session event onto the MPRIS properties.
func (c *Controls) Update(ev playback.Event) {
	if c.conn == nil {
		return
	}
	switch ev.Type {
	case playback.EventStateChanged, playback.EventTrackChanged, playback.EventTrackError:
		c.props.SetMust(playerInterface, "PlaybackStatus", statusFor(ev.State))
		c.props.SetMust(playerInterface, "Metadata", metadataFor(ev))
	case playback.EventVolumeChanged:
		c.props.SetMust(playerInterface, "Volume", ev.Volume)
	case playback.EventRateChanged:
		c.props.SetMust(playerInterface, "Rate", ev.Rate)
	}
}

// Close releases the bus name and connection.
func (c *Controls) Close() error {
	if c.conn == nil {
		return nil
	}
	_, _ = c.conn.ReleaseName(busName)
	return c.conn.Close()
}

func (c *Controls) export() error {
	root := &rootHandler{}
	player := &playerHandler{transport: c.transport}

	if err := c.conn.Export(root, objectPath, rootInterface); err != nil {
		return err
	}
	if err := c.conn.Export(player, objectPath, playerInterface); err != nil {
		return err
	}

	props, err := prop.Export(c.conn, objectPath, map[string]map[string]*prop.Prop{
		rootInterface: {
			"Identity":            constProp("playerd"),
			"CanQuit":             constProp(false),
			"CanRaise":            constProp(false),
			"HasTrackList":        constProp(false),
			"SupportedUriSchemes": constProp([]string{}),
			"SupportedMimeTypes":  constProp([]string{}),
		},
		playerInterface: {
			"PlaybackStatus": changingProp("Stopped"),
			"Metadata":       changingProp(map[string]dbus.Variant{}),
			"Volume":         changingProp(1.0),
			"Rate":           changingProp(1.0),
			"MinimumRate":    constProp(0.5),
			"MaximumRate":    constProp(2.0),
			"CanGoNext":      constProp(true),
			"CanGoPrevious":  constProp(true),
			"CanPlay":        constProp(true),
			"CanPause":       constProp(true),
			"CanSeek":        constProp(true),
			"CanControl":     constProp(true),
		},
	})
	if err != nil {
		return err
	}
	c.props = props

	node := &introspect.Node{
		Name: string(objectPath),
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			prop.IntrospectData,
			{Name: rootInterface, Methods: introspect.Methods(root)},
			{Name: playerInterface, Methods: introspect.Methods(player)},
		},
	}
	return c.conn.Export(introspect.NewIntrospectable(node), objectPath,
		"org.freedesktop.DBus.Introspectable")
}

func constProp(v any) *prop.Prop {
	return &prop.Prop{Value: v, Writable: false, Emit: prop.EmitFalse}
}

func changingProp(v any) *prop.Prop {
	return &prop.Prop{Value: v, Writable: false, Emit: prop.EmitTrue}
}

// statusFor maps a session state onto the three MPRIS statuses.
func statusFor(state playback.State) string {
	switch state {
	case playback.StatePlaying, playback.StateBuffering:
		return "Playing"
	case playback.StatePaused, playback.StateLoading:
		return "Paused"
	default:
		return "Stopped"
	}
}

// metadataFor builds the MPRIS metadata map for the event's track.
func metadataFor(ev playback.Event) map[string]dbus.Variant {
	md := map[string]dbus.Variant{}
	if ev.Track == nil {
		md["mpris:trackid"] = dbus.MakeVariant(dbus.ObjectPath("/org/mpris/MediaPlayer2/TrackList/NoTrack"))
		return md
	}
	md["mpris:trackid"] = dbus.MakeVariant(dbus.ObjectPath("/com/soundfold/playerd/track/" + ev.Track.ID))
	md["mpris:length"] = dbus.MakeVariant(ev.Track.Duration.Microseconds())
	md["xesam:title"] = dbus.MakeVariant(ev.Track.Title)
	md["xesam:artist"] = dbus.MakeVariant([]string{ev.Track.Artist})
	md["xesam:album"] = dbus.MakeVariant(ev.Track.Album)
	if ev.Track.ArtworkURL != "" {
		md["mpris:artUrl"] = dbus.MakeVariant(ev.Track.ArtworkURL)
	}
	return md
}

// rootHandler implements org.mpris.MediaPlayer2. The daemon has no
// window to raise and is not quittable from the media surface.
type rootHandler struct{}

func (h *rootHandler) Raise() *dbus.Error { return nil }
func (h *rootHandler) Quit() *dbus.Error  { return nil }

// playerHandler implements org.mpris.MediaPlayer2.Player on top of the
// transport. Errors from the session are logged, not surfaced; the
// desktop shell has no use for them.
type playerHandler struct {
	transport Transport
}

func (h *playerHandler) Play() *dbus.Error {
	h.call("play", h.transport.Play)
	return nil
}

func (h *playerHandler) Pause() *dbus.Error {
	h.call("pause", h.transport.Pause)
	return nil
}

func (h *playerHandler) PlayPause() *dbus.Error {
	snap := h.transport.Snapshot()
	if snap.State == playback.StatePlaying || snap.State == playback.StateBuffering {
		h.call("pause", h.transport.Pause)
	} else {
		h.call("play", h.transport.Play)
	}
	return nil
}

func (h *playerHandler) Stop() *dbus.Error {
	h.call("pause", h.transport.Pause)
	return nil
}

func (h *playerHandler) Next() *dbus.Error {
	h.call("next", h.transport.Next)
	return nil
}

func (h *playerHandler) Previous() *dbus.Error {
	h.call("previous", h.transport.Previous)
	return nil
}

// Seek receives a microsecond offset relative to the current position.
func (h *playerHandler) Seek(offset int64) *dbus.Error {
	snap := h.transport.Snapshot()
	target := snap.Position + float64(offset)/1e6
	h.call("seek", func() error { return h.transport.Seek(target) })
	return nil
}

func (h *playerHandler) SetPosition(trackID dbus.ObjectPath, position int64) *dbus.Error {
	h.call("seek", func() error { return h.transport.Seek(float64(position) / 1e6) })
	return nil
}

func (h *playerHandler) OpenUri(uri string) *dbus.Error { return nil }

func (h *playerHandler) call(op string, fn func() error) {
	if err := fn(); err != nil {
		zlog.Debug().Err(err).Str("op", op).Msg("mediakeys: transport call failed")
	}
}
