package playback

import (
	"context"
	"errors"
	"sync"

	zlog "github.com/rs/zerolog/log"

	"github.com/soundfold/playerd/internal/app/playcount"
	"github.com/soundfold/playerd/internal/app/preload"
	"github.com/soundfold/playerd/internal/domain/queue"
	"github.com/soundfold/playerd/internal/domain/track"
	"github.com/soundfold/playerd/internal/infra/audio"
)

// Errors
var (
	ErrQueueEmpty   = errors.New("queue is empty")
	ErrNoTrack      = errors.New("no track is current")
	ErrInvalidIndex = errors.New("index out of range")
	ErrReleased     = errors.New("session released")
)

// Config holds session controller configuration.
type Config struct {
	MaxConsecutiveFailures int // Stop auto-advancing after this many consecutive track failures
	EventBuffer            int // Event channel capacity
}

const (
	defaultMaxConsecutiveFailures = 3
	defaultEventBuffer            = 32
)

// Session is the playback session controller. It owns the ordered track
// queue, the single sounding output, and the coordination between the
// transport state machine, the preload manager, and the play-count
// recorder.
//
// Session is the only component allowed to issue transport commands to the
// output. Views (mini player, expanded player, embed) read state through
// Snapshot and the event channel; they never touch the output directly.
type Session struct {
	mu sync.Mutex

	out     audio.Output
	preload *preload.Manager
	counter *playcount.Recorder
	config  Config

	queue    *queue.Queue
	state    State
	current  *track.Track
	position float64 // seconds
	duration float64 // seconds; 0 until the output reports it

	playRequested bool // play intent while Loading
	pendingPos    int  // traversal position of an in-flight transition; -1 when settled
	failures      int  // consecutive track failures without a successful start

	eventCh  chan Event
	ctx      context.Context
	cancel   context.CancelFunc
	released bool
}

// NewSession creates a session controller bound to the given output.
func NewSession(out audio.Output, pre *preload.Manager, counter *playcount.Recorder, config Config) *Session {
	if config.MaxConsecutiveFailures <= 0 {
		config.MaxConsecutiveFailures = defaultMaxConsecutiveFailures
	}
	if config.EventBuffer <= 0 {
		config.EventBuffer = defaultEventBuffer
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		out:        out,
		preload:    pre,
		counter:    counter,
		config:     config,
		state:      StateIdle,
		pendingPos: -1,
		eventCh:    make(chan Event, config.EventBuffer),
		ctx:        ctx,
		cancel:     cancel,
	}
	out.SetHandler(s)
	return s
}

// Events returns the event channel.
func (s *Session) Events() <-chan Event {
	return s.eventCh
}

// SetQueue replaces the active queue. A shuffled queue traverses a uniform
// random permutation. Playback does not auto-start; the first track is
// loaded paused so the UI can offer an immediate play gesture.
func (s *Session) SetQueue(tracks []track.Track, startIndex int, shuffled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.released {
		return ErrReleased
	}

	s.queue = queue.New(tracks, startIndex, shuffled)
	s.failures = 0
	s.pendingPos = -1
	s.sendEventLocked(s.eventLocked(EventQueueChanged))

	if s.queue.IsEmpty() {
		s.current = nil
		s.position = 0
		s.duration = 0
		s.counter.StopTracking()
		s.setStateLocked(StateIdle)
		return nil
	}

	return s.loadCurrentLocked(false)
}

// PlayAt plays the track at the given traversal position. Requesting the
// current position toggles: Paused resumes, Playing pauses. A request for
// a position the session is already transitioning to is absorbed.
func (s *Session) PlayAt(pos int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.released {
		return ErrReleased
	}
	if s.queue == nil || s.queue.IsEmpty() {
		return ErrQueueEmpty
	}
	if pos < 0 || pos >= s.queue.Len() {
		return ErrInvalidIndex
	}

	// Absorb double-fire: same target while the first request settles.
	// The play intent still upgrades, so a paused initial load followed
	// by a play gesture starts sounding once the source is ready.
	if s.state == StateLoading && s.pendingPos == pos {
		s.playRequested = true
		return nil
	}

	if pos == s.queue.Position() && s.current != nil {
		switch s.state {
		case StatePaused:
			return s.resumeLocked()
		case StatePlaying, StateBuffering:
			return s.pauseLocked()
		case StateLoading:
			return nil
		}
		// Error, Ended: fall through to a fresh load
	}

	if _, ok := s.queue.JumpTo(pos); !ok {
		return ErrInvalidIndex
	}
	s.failures = 0
	return s.loadCurrentLocked(true)
}

// Play resumes paused playback, or starts the current queue entry when idle.
func (s *Session) Play() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.released {
		return ErrReleased
	}

	switch s.state {
	case StatePaused:
		return s.resumeLocked()
	case StateIdle:
		if s.queue == nil || s.queue.IsEmpty() {
			return ErrQueueEmpty
		}
		s.failures = 0
		return s.loadCurrentLocked(true)
	case StateLoading:
		s.playRequested = true
		return nil
	default:
		return nil
	}
}

// Pause pauses playback. Idempotent.
func (s *Session) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.released {
		return ErrReleased
	}
	if s.state != StatePlaying && s.state != StateBuffering {
		return nil
	}
	return s.pauseLocked()
}

// Next advances to the next queue entry with wraparound and auto-plays.
func (s *Session) Next() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.released {
		return ErrReleased
	}
	if s.queue == nil || s.queue.IsEmpty() {
		return ErrQueueEmpty
	}

	s.queue.Next()
	s.failures = 0
	return s.loadCurrentLocked(true)
}

// Previous retreats to the previous queue entry with wraparound and auto-plays.
func (s *Session) Previous() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.released {
		return ErrReleased
	}
	if s.queue == nil || s.queue.IsEmpty() {
		return ErrQueueEmpty
	}

	s.queue.Previous()
	s.failures = 0
	return s.loadCurrentLocked(true)
}

// Seek moves to an absolute position in the current track. Permitted from
// Playing, Paused and Buffering; a no-op before the duration is known.
func (s *Session) Seek(seconds float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.released {
		return ErrReleased
	}
	if s.current == nil {
		return ErrNoTrack
	}
	if !s.state.Seekable() {
		return nil
	}

	if err := s.out.Seek(seconds); err != nil {
		return err
	}
	if s.duration > 0 {
		s.position = clamp(seconds, 0, s.duration)
		s.sendEventLocked(s.eventLocked(EventPositionChanged))
	}
	return nil
}

// SetVolume applies a clamped volume. Idempotent, valid in any state.
func (s *Session) SetVolume(v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.released {
		return
	}
	s.out.SetVolume(v)
	s.sendEventLocked(s.eventLocked(EventVolumeChanged))
}

// SetPlaybackRate applies a clamped playback rate.
func (s *Session) SetPlaybackRate(r float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.released {
		return
	}
	s.out.SetPlaybackRate(r)
	s.sendEventLocked(s.eventLocked(EventRateChanged))
}

// Retry reloads the current track after a track-fatal error.
func (s *Session) Retry() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.released {
		return ErrReleased
	}
	if s.state != StateError {
		return nil
	}
	if s.queue == nil || s.queue.IsEmpty() {
		return ErrQueueEmpty
	}

	s.failures = 0
	return s.loadCurrentLocked(true)
}

// Snapshot returns a consistent view of the session for display.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		State:    s.state,
		Index:    -1,
		Position: s.position,
		Duration: s.duration,
		Volume:   s.out.Volume(),
		Rate:     s.out.PlaybackRate(),
	}
	if s.current != nil {
		cur := *s.current
		snap.Track = &cur
	}
	if s.queue != nil {
		snap.Index = s.queue.Position()
		snap.QueueLength = s.queue.Len()
		snap.Shuffled = s.queue.Shuffled()
	}
	return snap
}

// Release tears the session down: the output drops its source and
// listeners, the preload instance is closed, and pending play-count
// requests are flushed. The session cannot be reused afterwards.
func (s *Session) Release() {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return
	}
	s.released = true
	s.cancel()
	s.counter.StopTracking()
	s.mu.Unlock()

	if err := s.out.Close(); err != nil {
		zlog.Debug().Err(err).Msg("playback: output close failed")
	}
	s.preload.Close()
	s.counter.Flush()
	close(s.eventCh)
}

// Snapshot is a point-in-time view of the session.
type Snapshot struct {
	State       State
	Track       *track.Track
	Index       int
	QueueLength int
	Shuffled    bool
	Position    float64
	Duration    float64
	Volume      float64
	Rate        float64
}

// --- adapter event handlers (audio.Handler) ---
//
// Every handler drops events whose track identity does not match the
// current track: once the session swaps tracks, stale in-flight events
// from the previous source must not alter state.

// HandleCanPlay implements audio.Handler.
func (s *Session) HandleCanPlay(trackID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.staleLocked(trackID) {
		return
	}

	s.failures = 0
	s.pendingPos = -1

	if s.state != StateLoading {
		return
	}
	if !s.playRequested {
		s.setStateLocked(StatePaused)
		return
	}

	if err := s.out.Play(); err != nil {
		if errors.Is(err, audio.ErrPlaybackRejected) {
			// Needs a user gesture; surface as "tap to play".
			s.setStateLocked(StatePaused)
			s.sendEventLocked(s.eventLocked(EventAutoplayBlocked))
			return
		}
		s.failLocked(audio.KindAborted)
		return
	}
	s.setStateLocked(StatePlaying)
}

// HandleTimeUpdate implements audio.Handler.
func (s *Session) HandleTimeUpdate(trackID string, position, duration float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.staleLocked(trackID) {
		return
	}

	s.position = position
	if duration > 0 {
		s.duration = duration
	}
	s.counter.Observe(trackID, position)
	s.sendEventLocked(s.eventLocked(EventPositionChanged))
}

// HandleBuffering implements audio.Handler.
func (s *Session) HandleBuffering(trackID string, waiting bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.staleLocked(trackID) {
		return
	}

	if waiting && s.state == StatePlaying {
		s.setStateLocked(StateBuffering)
	} else if !waiting && s.state == StateBuffering {
		s.setStateLocked(StatePlaying)
	}
}

// HandlePlay implements audio.Handler.
func (s *Session) HandlePlay(trackID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.staleLocked(trackID) {
		return
	}
	if s.state == StateLoading || s.state == StatePaused || s.state == StateBuffering {
		s.pendingPos = -1
		s.setStateLocked(StatePlaying)
	}
}

// HandlePause implements audio.Handler.
func (s *Session) HandlePause(trackID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.staleLocked(trackID) {
		return
	}
	if s.state == StatePlaying || s.state == StateBuffering {
		s.setStateLocked(StatePaused)
	}
}

// HandleEnded implements audio.Handler.
func (s *Session) HandleEnded(trackID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.staleLocked(trackID) {
		return
	}

	s.setStateLocked(StateEnded)
	s.sendEventLocked(s.eventLocked(EventTrackEnded))
	s.counter.StopTracking()

	// Natural advancement: the queue is a continuous loop, so the session
	// only falls back to Idle when there is nothing to traverse at all.
	if s.queue == nil || s.queue.IsEmpty() {
		s.current = nil
		s.setStateLocked(StateIdle)
		return
	}
	s.queue.Next()
	if err := s.loadCurrentLocked(true); err != nil {
		zlog.Warn().Err(err).Msg("playback: advance after track end failed")
	}
}

// HandleError implements audio.Handler.
func (s *Session) HandleError(trackID string, kind audio.ErrorKind) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.staleLocked(trackID) {
		return
	}
	s.failLocked(kind)
}

// --- internals ---

func (s *Session) staleLocked(trackID string) bool {
	if s.released || s.current == nil {
		return true
	}
	return trackID != s.current.ID
}

// loadCurrentLocked arms the output with the queue's current track and
// primes the preload instance with the upcoming one.
func (s *Session) loadCurrentLocked(autoplay bool) error {
	cur, ok := s.queue.Current()
	if !ok {
		s.current = nil
		s.setStateLocked(StateIdle)
		return ErrQueueEmpty
	}

	trackCopy := cur
	s.current = &trackCopy
	s.position = 0
	s.duration = 0
	s.playRequested = autoplay
	s.counter.StartTracking(cur.ID)
	s.sendEventLocked(s.eventLocked(EventTrackChanged))

	if next, ok := s.queue.PeekNext(); ok && next.ID != cur.ID {
		s.preload.Preload(next.ID, next.SourceURL)
	}

	if !cur.HasSource() {
		zlog.Warn().Str("track", cur.ID).Msg("playback: track has no playable source")
		s.failLocked(audio.KindFormatUnsupported)
		return nil
	}

	if err := s.out.Load(cur.ID, cur.SourceURL); err != nil {
		zlog.Warn().Err(err).Str("track", cur.ID).Msg("playback: load failed")
		s.failLocked(audio.KindNetwork)
		return nil
	}

	s.pendingPos = s.queue.Position()
	s.setStateLocked(StateLoading)
	return nil
}

func (s *Session) resumeLocked() error {
	s.playRequested = true
	if err := s.out.Play(); err != nil {
		if errors.Is(err, audio.ErrPlaybackRejected) {
			s.sendEventLocked(s.eventLocked(EventAutoplayBlocked))
			return err
		}
		return err
	}
	s.setStateLocked(StatePlaying)
	return nil
}

func (s *Session) pauseLocked() error {
	if err := s.out.Pause(); err != nil {
		return err
	}
	s.playRequested = false
	s.setStateLocked(StatePaused)
	return nil
}

// failLocked applies the track-fatal error policy: report, then
// auto-advance once per failure until the consecutive-failure cap, after
// which the session stays in Error awaiting a user action.
func (s *Session) failLocked(kind audio.ErrorKind) {
	s.pendingPos = -1
	s.failures++
	s.setStateLocked(StateError)

	ev := s.eventLocked(EventTrackError)
	ev.ErrorKind = kind
	s.sendEventLocked(ev)

	trackID := ""
	if s.current != nil {
		trackID = s.current.ID
	}
	zlog.Warn().Str("track", trackID).Str("kind", kind.String()).Int("consecutive", s.failures).
		Msg("playback: track failed")

	if s.failures >= s.config.MaxConsecutiveFailures {
		zlog.Warn().Int("failures", s.failures).Msg("playback: failure cap reached, awaiting user action")
		return
	}
	if s.queue == nil || s.queue.IsEmpty() {
		return
	}
	// The advance keeps the intent of the failed load: a paused queue
	// replacement whose first track fails must not start sounding on its own.
	s.queue.Next()
	_ = s.loadCurrentLocked(s.playRequested)
}

func (s *Session) setStateLocked(next State) {
	if s.state == next {
		return
	}
	s.state = next
	s.sendEventLocked(s.eventLocked(EventStateChanged))
}

func (s *Session) eventLocked(t EventType) Event {
	ev := Event{
		Type:     t,
		State:    s.state,
		Index:    -1,
		Position: s.position,
		Duration: s.duration,
		Volume:   s.out.Volume(),
		Rate:     s.out.PlaybackRate(),
	}
	if s.current != nil {
		cur := *s.current
		ev.Track = &cur
	}
	if s.queue != nil {
		ev.Index = s.queue.Position()
		ev.QueueLength = s.queue.Len()
	}
	return ev
}

// sendEventLocked sends an event without blocking.
func (s *Session) sendEventLocked(e Event) {
	if s.released {
		return
	}
	select {
	case s.eventCh <- e:
	case <-s.ctx.Done():
	default:
		// Buffer full; drop rather than stall the transport.
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
