// Package notification provides the notification manager for broadcasting
// playback events to subscribers.
package notification

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/soundfold/playerd/internal/app/playback"
)

const sendTimeout = 500 * time.Millisecond

// TrackInfo is the now-playing metadata carried by a notification.
type TrackInfo struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	Album      string `json:"album,omitempty"`
	ArtworkURL string `json:"artworkUrl,omitempty"`
	Duration   string `json:"duration"`
}

// Notification is the wire form of a playback event.
type Notification struct {
	SequenceNo  uint64     `json:"sequenceNo"`
	Type        string     `json:"type"`
	State       string     `json:"state"`
	Track       *TrackInfo `json:"track,omitempty"`
	Index       int        `json:"index"`
	QueueLength int        `json:"queueLength"`
	Position    float64    `json:"position"`
	Duration    float64    `json:"duration"`
	Volume      float64    `json:"volume"`
	Rate        float64    `json:"rate"`
	Error       string     `json:"error,omitempty"`
}

// FromEvent converts a playback event into its wire form.
func FromEvent(ev playback.Event) *Notification {
	n := &Notification{
		Type:        ev.Type.String(),
		State:       ev.State.String(),
		Index:       ev.Index,
		QueueLength: ev.QueueLength,
		Position:    ev.Position,
		Duration:    ev.Duration,
		Volume:      ev.Volume,
		Rate:        ev.Rate,
	}
	if ev.Type == playback.EventTrackError {
		n.Error = ev.ErrorKind.String()
	}
	if ev.Track != nil {
		n.Track = &TrackInfo{
			ID:         ev.Track.ID,
			Title:      ev.Track.Title,
			Artist:     ev.Track.Artist,
			Album:      ev.Track.Album,
			ArtworkURL: ev.Track.ArtworkURL,
			Duration:   ev.Track.DisplayDuration(),
		}
	}
	return n
}

// Stream represents a notification stream for a subscriber.
type Stream interface {
	Send(*Notification) error
}

// subscription represents a subscriber's subscription.
type subscription struct {
	id     string
	stream Stream
}

// Manager manages notification subscriptions and broadcasting.
type Manager struct {
	mu            sync.RWMutex
	subscriptions map[string]*subscription
	sequenceNo    uint64
	sequenceNoMu  sync.Mutex
}

// NewManager creates a new notification manager.
func NewManager() *Manager {
	return &Manager{
		subscriptions: make(map[string]*subscription),
	}
}

// Subscribe adds a new subscription and returns the subscription ID.
func (m *Manager) Subscribe(stream Stream) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.New().String()
	m.subscriptions[id] = &subscription{id: id, stream: stream}
	return id
}

// Unsubscribe removes a subscription.
func (m *Manager) Unsubscribe(subscriptionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subscriptions, subscriptionID)
}

// SubscriberCount returns the number of active subscribers.
func (m *Manager) SubscriberCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subscriptions)
}

// Broadcast sends a notification to all subscribers. Each stream send runs
// in its own goroutine with a timeout so one slow subscriber cannot stall
// the rest.
func (m *Manager) Broadcast(notification *Notification) {
	m.sequenceNoMu.Lock()
	m.sequenceNo++
	notification.SequenceNo = m.sequenceNo
	m.sequenceNoMu.Unlock()

	m.mu.RLock()
	subs := make([]*subscription, 0, len(m.subscriptions))
	for _, sub := range m.subscriptions {
		subs = append(subs, sub)
	}
	m.mu.RUnlock()

	var wg sync.WaitGroup
	for _, sub := range subs {
		wg.Add(1)
		go func(s *subscription) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
			defer cancel()

			done := make(chan error, 1)
			go func() {
				done <- s.stream.Send(notification)
			}()

			select {
			case err := <-done:
				if err != nil {
					zlog.Debug().Err(err).Str("subscription", s.id).Msg("notification: send failed")
				}
			case <-ctx.Done():
				// Slow subscriber; skip and move on.
			}
		}(sub)
	}
	wg.Wait()
}

// Run pumps playback events into the broadcaster until the channel closes
// or the context is cancelled. Observers receive each raw event before it
// is broadcast; the media-key surface hooks in here.
func (m *Manager) Run(ctx context.Context, events <-chan playback.Event, observers ...func(playback.Event)) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			for _, observe := range observers {
				observe(ev)
			}
			m.Broadcast(FromEvent(ev))
		}
	}
}

// Close removes all subscriptions.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriptions = make(map[string]*subscription)
}
