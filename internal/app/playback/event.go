package playback

import (
	"github.com/soundfold/playerd/internal/domain/track"
	"github.com/soundfold/playerd/internal/infra/audio"
)

// EventType represents a playback event type.
type EventType int

const (
	EventStateChanged    EventType = iota // Transport state changed
	EventTrackChanged                     // The current track changed
	EventPositionChanged                  // Position or duration update
	EventQueueChanged                     // The queue was replaced
	EventVolumeChanged                    // Volume changed
	EventRateChanged                      // Playback rate changed
	EventTrackEnded                       // Track ran to completion
	EventTrackError                       // Track-fatal adapter error
	EventAutoplayBlocked                  // Platform refused autonomous playback; needs a user gesture
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventStateChanged:
		return "state_changed"
	case EventTrackChanged:
		return "track_changed"
	case EventPositionChanged:
		return "position_changed"
	case EventQueueChanged:
		return "queue_changed"
	case EventVolumeChanged:
		return "volume_changed"
	case EventRateChanged:
		return "rate_changed"
	case EventTrackEnded:
		return "track_ended"
	case EventTrackError:
		return "track_error"
	case EventAutoplayBlocked:
		return "autoplay_blocked"
	default:
		return "unknown"
	}
}

// Event represents a playback event published to subscribers.
type Event struct {
	Type        EventType
	State       State
	Track       *track.Track // Current track (nil for some events)
	Index       int          // Current traversal position, -1 when none
	QueueLength int
	Position    float64 // Seconds
	Duration    float64 // Seconds; 0 while unknown
	Volume      float64
	Rate        float64
	ErrorKind   audio.ErrorKind // Meaningful for EventTrackError only
}
