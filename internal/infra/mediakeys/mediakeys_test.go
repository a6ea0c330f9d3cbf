package mediakeys

import (
	"testing"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundfold/playerd/internal/app/playback"
	"github.com/soundfold/playerd/internal/domain/track"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		state playback.State
		want  string
	}{
		{playback.StatePlaying, "Playing"},
		{playback.StateBuffering, "Playing"},
		{playback.StatePaused, "Paused"},
		{playback.StateLoading, "Paused"},
		{playback.StateIdle, "Stopped"},
		{playback.StateEnded, "Stopped"},
		{playback.StateError, "Stopped"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.state), tt.state.String())
	}
}

func TestMetadataFor(t *testing.T) {
	ev := playback.Event{
		Track: &track.Track{
			ID:         "t1",
			Title:      "Song",
			Artist:     "Artist",
			Album:      "Album",
			ArtworkURL: "https://cdn.example.com/a.jpg",
			Duration:   3 * time.Minute,
		},
	}

	md := metadataFor(ev)
	assert.Equal(t, dbus.MakeVariant("Song"), md["xesam:title"])
	assert.Equal(t, dbus.MakeVariant([]string{"Artist"}), md["xesam:artist"])
	assert.Equal(t, dbus.MakeVariant("Album"), md["xesam:album"])
	assert.Equal(t, dbus.MakeVariant(int64(180_000_000)), md["mpris:length"])
	assert.Equal(t, dbus.MakeVariant("https://cdn.example.com/a.jpg"), md["mpris:artUrl"])
	assert.Equal(t,
		dbus.MakeVariant(dbus.ObjectPath("/com/soundfold/playerd/track/t1")),
		md["mpris:trackid"])
}

func TestMetadataFor_NoTrack(t *testing.T) {
	md := metadataFor(playback.Event{})
	require.Contains(t, md, "mpris:trackid")
	assert.NotContains(t, md, "xesam:title")
	assert.NotContains(t, md, "mpris:length")
}

func TestControls_NoopWithoutBus(t *testing.T) {
	c := &Controls{}
	assert.False(t, c.Enabled())

	c.Update(playback.Event{Type: playback.EventStateChanged, State: playback.StatePlaying})
	assert.NoError(t, c.Close())
}
