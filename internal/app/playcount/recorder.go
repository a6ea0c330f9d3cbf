// Package playcount records listening plays at most once per track per session.
package playcount

import (
	"context"
	"sync"
	"time"

	zlog "github.com/rs/zerolog/log"
)

// DefaultThresholdSeconds is the continuous-listening time after which a
// play is recorded.
const DefaultThresholdSeconds = 30.0

const recordTimeout = 10 * time.Second

// Store is the side-effecting collaborator that persists a play.
// A failed increment is logged and forgotten; it never interrupts playback.
type Store interface {
	IncrementPlayCount(ctx context.Context, trackID string) error
}

// Recorder observes elapsed playback time per track and fires an
// at-most-once "play recorded" side effect once the threshold is crossed.
//
// The guard set is the per-session dedupe: created empty, grows
// monotonically, and is discarded with the recorder. Replaying a track
// within the same session never records twice.
type Recorder struct {
	mu        sync.Mutex
	store     Store
	threshold float64
	activeID  string
	guard     map[string]struct{}
	wg        sync.WaitGroup
}

// NewRecorder creates a recorder with the given threshold in seconds.
// A threshold <= 0 falls back to the default.
func NewRecorder(store Store, thresholdSeconds float64) *Recorder {
	if thresholdSeconds <= 0 {
		thresholdSeconds = DefaultThresholdSeconds
	}
	return &Recorder{
		store:     store,
		threshold: thresholdSeconds,
		guard:     make(map[string]struct{}),
	}
}

// StartTracking begins observing elapsed time for a track. Any previously
// tracked track stops being observed; the guard is untouched.
func (r *Recorder) StartTracking(trackID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.activeID = trackID
}

// StopTracking clears the active track. Guard state persists: the guard is
// per-session, not per-track-activation.
func (r *Recorder) StopTracking() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.activeID = ""
}

// Observe is called on every time update. Once elapsed crosses the
// threshold for the tracked track and the track is not yet in the guard,
// exactly one record request fires.
func (r *Recorder) Observe(trackID string, elapsedSeconds float64) {
	r.mu.Lock()
	if trackID == "" || trackID != r.activeID || elapsedSeconds < r.threshold {
		r.mu.Unlock()
		return
	}
	if _, done := r.guard[trackID]; done {
		r.mu.Unlock()
		return
	}
	r.guard[trackID] = struct{}{}
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()
		if err := r.store.IncrementPlayCount(ctx, trackID); err != nil {
			// A missed analytics increment is not user-visible.
			zlog.Warn().Err(err).Str("track", trackID).Msg("playcount: record play failed")
		}
	}()
}

// Recorded reports whether a play was already recorded for the track in
// this session.
func (r *Recorder) Recorded(trackID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.guard[trackID]
	return ok
}

// Flush waits for in-flight record requests to finish. Called on session
// teardown.
func (r *Recorder) Flush() {
	r.wg.Wait()
}
