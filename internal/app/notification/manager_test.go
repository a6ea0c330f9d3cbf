package notification

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cockroachdb/errors"

	"github.com/soundfold/playerd/internal/app/playback"
	"github.com/soundfold/playerd/internal/domain/track"
	"github.com/soundfold/playerd/internal/infra/audio"
)

type captureStream struct {
	mu       sync.Mutex
	received []*Notification
	err      error
}

func (s *captureStream) Send(n *Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.received = append(s.received, n)
	return nil
}

func (s *captureStream) all() []*Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Notification(nil), s.received...)
}

func TestManager_BroadcastReachesAllSubscribers(t *testing.T) {
	m := NewManager()
	a := &captureStream{}
	b := &captureStream{}
	m.Subscribe(a)
	m.Subscribe(b)

	m.Broadcast(&Notification{Type: "state_changed", State: "playing"})

	require.Len(t, a.all(), 1)
	require.Len(t, b.all(), 1)
	assert.Equal(t, uint64(1), a.all()[0].SequenceNo)
}

func TestManager_SequenceNumbersIncrease(t *testing.T) {
	m := NewManager()
	s := &captureStream{}
	m.Subscribe(s)

	m.Broadcast(&Notification{Type: "a"})
	m.Broadcast(&Notification{Type: "b"})
	m.Broadcast(&Notification{Type: "c"})

	got := s.all()
	require.Len(t, got, 3)
	assert.Equal(t, uint64(1), got[0].SequenceNo)
	assert.Equal(t, uint64(2), got[1].SequenceNo)
	assert.Equal(t, uint64(3), got[2].SequenceNo)
}

func TestManager_Unsubscribe(t *testing.T) {
	m := NewManager()
	s := &captureStream{}
	id := m.Subscribe(s)
	require.Equal(t, 1, m.SubscriberCount())

	m.Unsubscribe(id)
	assert.Equal(t, 0, m.SubscriberCount())

	m.Broadcast(&Notification{Type: "a"})
	assert.Empty(t, s.all())
}

func TestManager_FailingSubscriberDoesNotBlockOthers(t *testing.T) {
	m := NewManager()
	bad := &captureStream{err: errors.New("gone")}
	good := &captureStream{}
	m.Subscribe(bad)
	m.Subscribe(good)

	m.Broadcast(&Notification{Type: "a"})
	require.Len(t, good.all(), 1)
}

func TestManager_RunForwardsEventsAndObservers(t *testing.T) {
	m := NewManager()
	s := &captureStream{}
	m.Subscribe(s)

	events := make(chan playback.Event, 2)
	var observed []playback.Event
	done := make(chan struct{})
	go func() {
		defer close(done)
		m.Run(context.Background(), events, func(ev playback.Event) {
			observed = append(observed, ev)
		})
	}()

	events <- playback.Event{Type: playback.EventStateChanged, State: playback.StatePlaying}
	events <- playback.Event{Type: playback.EventVolumeChanged, Volume: 0.5}
	close(events)
	<-done

	require.Len(t, observed, 2)
	got := s.all()
	require.Len(t, got, 2)
	assert.Equal(t, "state_changed", got[0].Type)
	assert.Equal(t, "volume_changed", got[1].Type)
}

func TestFromEvent(t *testing.T) {
	ev := playback.Event{
		Type:  playback.EventTrackError,
		State: playback.StateError,
		Track: &track.Track{
			ID:       "t1",
			Title:    "Song",
			Artist:   "Artist",
			Duration: 3 * time.Minute,
		},
		Index:       2,
		QueueLength: 5,
		Position:    12.5,
		Duration:    180,
		Volume:      0.8,
		Rate:        1.0,
		ErrorKind:   audio.KindNetwork,
	}

	n := FromEvent(ev)
	assert.Equal(t, "track_error", n.Type)
	assert.Equal(t, "error", n.State)
	assert.Equal(t, "network_error", n.Error)
	require.NotNil(t, n.Track)
	assert.Equal(t, "t1", n.Track.ID)
	assert.Equal(t, "3:00", n.Track.Duration)
	assert.Equal(t, 2, n.Index)
}

func TestFromEvent_NoTrackNoError(t *testing.T) {
	n := FromEvent(playback.Event{Type: playback.EventStateChanged, State: playback.StateIdle, Index: -1})
	assert.Nil(t, n.Track)
	assert.Empty(t, n.Error)
	assert.Equal(t, "idle", n.State)
}
