package mpris

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"github.com/godbus/dbus/v5/prop"
)

const (
	objectPath   = dbus.ObjectPath("/org/mpris/MediaPlayer2")
	busNamePfx   = "org.mpris.MediaPlayer2.cadence"
	rootIface    = "org.mpris.MediaPlayer2"
	playerIface  = "org.mpris.MediaPlayer2.Player"
)

// Bridge owns the D-Bus connection and exported object; it is the
// receiver for every Player method D-Bus dispatches to, translating each
// into RPC calls against the daemon: one call for most methods, a
// state_audio read followed by one command for PlayPause and Seek, and
// none for OpenUri, which always fails.
type Bridge struct {
	conn   *dbus.Conn
	client *Client
	props  *prop.Properties
}

// stateResponse mirrors audio.State's JSON shape closely enough to decode
// the subset the bridge cares about.
type stateResponse struct {
	Playback    string  `json:"Playback"`
	PositionSec float64 `json:"PositionSec"`
	DurationSec float64 `json:"DurationSec"`
	Volume      float64 `json:"Volume"`
}

// New connects to the session bus, exports the MPRIS root and player
// interfaces, and requests the well-known bus name.
func New(client *Client) (*Bridge, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("mpris: connect session bus: %w", err)
	}

	b := &Bridge{conn: conn, client: client}

	if err := conn.Export(rootHandler{}, objectPath, rootIface); err != nil {
		conn.Close()
		return nil, fmt.Errorf("mpris: export root interface: %w", err)
	}
	if err := conn.Export((*playerHandler)(b), objectPath, playerIface); err != nil {
		conn.Close()
		return nil, fmt.Errorf("mpris: export player interface: %w", err)
	}

	propsSpec := map[string]map[string]*prop.Prop{
		playerIface: {
			"PlaybackStatus": {Value: "Stopped", Writable: false, Emit: prop.EmitTrue},
			"Volume": {
				Value:    1.0,
				Writable: true,
				Emit:     prop.EmitTrue,
				Callback: func(c *prop.Change) *dbus.Error {
					vol, _ := c.Value.(float64)
					if err := b.client.call(context.Background(), "playback", "set_volume",
						map[string]float64{"volume": vol}, nil); err != nil {
						return dbus.MakeFailedError(err)
					}
					return nil
				},
			},
			"Rate":           {Value: 1.0, Writable: false, Emit: prop.EmitTrue},
			"CanPlay":        {Value: true, Writable: false, Emit: prop.EmitTrue},
			"CanPause":       {Value: true, Writable: false, Emit: prop.EmitTrue},
			"CanGoNext":      {Value: true, Writable: false, Emit: prop.EmitTrue},
			"CanGoPrevious":  {Value: true, Writable: false, Emit: prop.EmitTrue},
			"CanSeek":        {Value: true, Writable: false, Emit: prop.EmitTrue},
			"CanControl":     {Value: true, Writable: false, Emit: prop.EmitTrue},
		},
		rootIface: {
			"CanQuit":             {Value: false, Writable: false, Emit: prop.EmitTrue},
			"CanRaise":            {Value: false, Writable: false, Emit: prop.EmitTrue},
			"HasTrackList":        {Value: false, Writable: false, Emit: prop.EmitTrue},
			"Identity":            {Value: "cadence", Writable: false, Emit: prop.EmitTrue},
			"SupportedUriSchemes": {Value: []string{"file"}, Writable: false, Emit: prop.EmitTrue},
			"SupportedMimeTypes":  {Value: []string{}, Writable: false, Emit: prop.EmitTrue},
		},
	}
	props, err := prop.Export(conn, objectPath, propsSpec)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("mpris: export properties: %w", err)
	}
	b.props = props

	node := &introspect.Node{
		Name: string(objectPath),
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			prop.IntrospectData,
		},
	}
	if err := conn.Export(introspect.NewIntrospectable(node), objectPath, "org.freedesktop.DBus.Introspectable"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("mpris: export introspectable: %w", err)
	}

	reply, err := conn.RequestName(busNamePfx, dbus.NameFlagDoNotQueue)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("mpris: request bus name: %w", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		conn.Close()
		return nil, fmt.Errorf("mpris: bus name %s already owned", busNamePfx)
	}

	return b, nil
}

// Close releases the bus name and closes the connection.
func (b *Bridge) Close() error { return b.conn.Close() }

// RefreshPlaybackStatus polls state_audio and updates the PlaybackStatus
// property, emitting a PropertiesChanged signal on every call -- MPRIS
// clients (shell widgets, media keys) expect this rather than polling
// cadenced themselves.
func (b *Bridge) RefreshPlaybackStatus(ctx context.Context) error {
	var st stateResponse
	if err := b.client.call(ctx, "state", "audio", nil, &st); err != nil {
		return err
	}
	status := "Stopped"
	switch st.Playback {
	case "playing":
		status = "Playing"
	case "paused":
		status = "Paused"
	}
	b.props.SetMust(playerIface, "PlaybackStatus", status)
	return nil
}

// rootHandler implements the handful of org.mpris.MediaPlayer2 methods a
// local single-process player can support meaningfully.
type rootHandler struct{}

func (rootHandler) Raise() *dbus.Error { return nil }
func (rootHandler) Quit() *dbus.Error  { return nil }

// playerHandler implements org.mpris.MediaPlayer2.Player by forwarding
// every call to the daemon's RPC surface.
type playerHandler Bridge

func (p *playerHandler) rpc(family, verb string, body interface{}) *dbus.Error {
	if err := (*Bridge)(p).client.call(context.Background(), family, verb, body, nil); err != nil {
		return dbus.MakeFailedError(err)
	}
	return nil
}

func (p *playerHandler) Next() *dbus.Error     { return p.rpc("playback", "next", nil) }
func (p *playerHandler) Previous() *dbus.Error { return p.rpc("playback", "previous", nil) }
func (p *playerHandler) Pause() *dbus.Error    { return p.rpc("playback", "pause", nil) }
func (p *playerHandler) Play() *dbus.Error     { return p.rpc("playback", "resume", nil) }
func (p *playerHandler) Stop() *dbus.Error     { return p.rpc("playback", "stop", nil) }

func (p *playerHandler) PlayPause() *dbus.Error {
	var st stateResponse
	if err := (*Bridge)(p).client.call(context.Background(), "state", "audio", nil, &st); err != nil {
		return dbus.MakeFailedError(err)
	}
	if st.Playback == "playing" {
		return p.rpc("playback", "pause", nil)
	}
	return p.rpc("playback", "resume", nil)
}

func (p *playerHandler) Seek(offsetMicroseconds int64) *dbus.Error {
	var st stateResponse
	if err := (*Bridge)(p).client.call(context.Background(), "state", "audio", nil, &st); err != nil {
		return dbus.MakeFailedError(err)
	}
	target := st.PositionSec + float64(offsetMicroseconds)/1e6
	return p.rpc("playback", "seek", map[string]float64{"position_seconds": target})
}

func (p *playerHandler) SetPosition(trackID dbus.ObjectPath, positionMicroseconds int64) *dbus.Error {
	return p.rpc("playback", "seek", map[string]float64{"position_seconds": float64(positionMicroseconds) / 1e6})
}

func (p *playerHandler) OpenUri(uri string) *dbus.Error {
	return dbus.MakeFailedError(fmt.Errorf("mpris: OpenUri is not supported, use queue_add_song via cadencectl"))
}
