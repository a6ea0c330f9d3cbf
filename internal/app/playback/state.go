// Package playback provides the transport state machine and the session
// controller that owns the shared audio output.
package playback

// State represents the transport state of the current track.
type State int

const (
	StateIdle      State = iota // No queue, or queue empty
	StateLoading                // Source assigned, waiting for the output to report readiness
	StatePlaying                // Track is sounding
	StatePaused                 // Paused by user, platform policy, or initial load
	StateBuffering              // Playing but stalled on data
	StateEnded                  // Track ran to completion, advancement pending
	StateError                  // Current track failed; session decides advancement
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateBuffering:
		return "buffering"
	case StateEnded:
		return "ended"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Seekable reports whether seeking is permitted in this state.
func (s State) Seekable() bool {
	return s == StatePlaying || s == StatePaused || s == StateBuffering
}
