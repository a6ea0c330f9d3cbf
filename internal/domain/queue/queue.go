// Package queue provides the playback queue domain entity.
package queue

import (
	"math/rand"

	"github.com/soundfold/playerd/internal/domain/track"
)

// Queue is an ordered, finite sequence of tracks with an optional shuffle
// permutation and a current position. Positions are expressed in traversal
// order: position 0 is the first track the queue will play, regardless of
// where that track sat in the input slice.
//
// Next and Previous wrap around unconditionally. A "radio" feed is just a
// queue containing the whole catalog in shuffled order; it gets no special
// code path.
type Queue struct {
	tracks   []track.Track
	order    []int // permutation over tracks; identity when not shuffled
	pos      int   // current position within order; 0 <= pos < len whenever non-empty
	shuffled bool
}

// New creates a queue over the given tracks.
// startIndex refers to the input slice; when shuffled, the queue starts at
// that same track's position within the generated permutation, so the track
// the user picked still plays first.
func New(tracks []track.Track, startIndex int, shuffled bool) *Queue {
	q := &Queue{
		tracks:   append([]track.Track(nil), tracks...),
		order:    identityOrder(len(tracks)),
		shuffled: shuffled,
	}
	if len(tracks) == 0 {
		return q
	}

	if startIndex < 0 || startIndex >= len(tracks) {
		startIndex = 0
	}

	if shuffled {
		rand.Shuffle(len(q.order), func(i, j int) {
			q.order[i], q.order[j] = q.order[j], q.order[i]
		})
		for p, idx := range q.order {
			if idx == startIndex {
				q.pos = p
				break
			}
		}
	} else {
		q.pos = startIndex
	}
	return q
}

func identityOrder(n int) []int {
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	return order
}

// Len returns the number of tracks in the queue.
func (q *Queue) Len() int {
	return len(q.tracks)
}

// IsEmpty returns true if the queue has no tracks.
func (q *Queue) IsEmpty() bool {
	return len(q.tracks) == 0
}

// Shuffled reports whether the queue traverses a shuffle permutation.
func (q *Queue) Shuffled() bool {
	return q.shuffled
}

// Position returns the current traversal position.
// Returns -1 for an empty queue.
func (q *Queue) Position() int {
	if q.IsEmpty() {
		return -1
	}
	return q.pos
}

// Current returns the track at the current position.
func (q *Queue) Current() (track.Track, bool) {
	if q.IsEmpty() {
		return track.Track{}, false
	}
	return q.tracks[q.order[q.pos]], true
}

// PeekNext returns the track that Next would land on, without moving.
// Used to prime the preload output.
func (q *Queue) PeekNext() (track.Track, bool) {
	if q.IsEmpty() {
		return track.Track{}, false
	}
	return q.tracks[q.order[(q.pos+1)%len(q.tracks)]], true
}

// Next advances the position with wraparound and returns the new current track.
func (q *Queue) Next() (track.Track, bool) {
	if q.IsEmpty() {
		return track.Track{}, false
	}
	q.pos = (q.pos + 1) % len(q.tracks)
	return q.tracks[q.order[q.pos]], true
}

// Previous retreats the position with wraparound and returns the new current track.
func (q *Queue) Previous() (track.Track, bool) {
	if q.IsEmpty() {
		return track.Track{}, false
	}
	q.pos = (q.pos - 1 + len(q.tracks)) % len(q.tracks)
	return q.tracks[q.order[q.pos]], true
}

// JumpTo moves directly to the given traversal position.
func (q *Queue) JumpTo(pos int) (track.Track, bool) {
	if q.IsEmpty() || pos < 0 || pos >= len(q.tracks) {
		return track.Track{}, false
	}
	q.pos = pos
	return q.tracks[q.order[q.pos]], true
}

// Tracks returns the tracks in traversal order.
func (q *Queue) Tracks() []track.Track {
	out := make([]track.Track, len(q.tracks))
	for p, idx := range q.order {
		out[p] = q.tracks[idx]
	}
	return out
}
