// Package queue holds the pending tracks and play history of a session.
//
// A Queue is not safe for concurrent use; it is owned by the session loop
// that serializes every mutation.
package queue

import (
	"math/rand/v2"
	"slices"

	"github.com/keshon/jukebox/internal/music/track"
)

// MinShuffle is the smallest pending length that Shuffle will permute.
const MinShuffle = 3

type Queue struct {
	pending []track.Track
	history []track.Track
	limit   int // history cap, 0 = unbounded

	repeat  bool
	last    track.Track
	hasLast bool
}

// New returns an empty queue. historyLimit <= 0 keeps every played track.
func New(historyLimit int) *Queue {
	if historyLimit < 0 {
		historyLimit = 0
	}
	return &Queue{limit: historyLimit}
}

// PushBack appends tracks to the tail in order.
func (q *Queue) PushBack(ts ...track.Track) {
	q.pending = append(q.pending, ts...)
}

// PushFront inserts tracks at the head, keeping their given order, so ts[0]
// is the next track popped.
func (q *Queue) PushFront(ts ...track.Track) {
	if len(ts) == 0 {
		return
	}
	q.pending = slices.Insert(q.pending, 0, ts...)
}

// PopNext returns the next track to play. With repeat on, the previously
// popped track is returned again and is not re-recorded in history. Running
// dry forgets that track, so repeat never revives a finished queue.
func (q *Queue) PopNext() (track.Track, bool) {
	if q.repeat && q.hasLast {
		return q.last, true
	}
	if len(q.pending) == 0 {
		q.last, q.hasLast = track.Track{}, false
		return track.Track{}, false
	}

	t := q.pending[0]
	q.pending[0] = track.Track{}
	q.pending = q.pending[1:]

	q.record(t)
	q.last, q.hasLast = t, true
	return t, true
}

// Peek returns the head of pending without removing it.
func (q *Queue) Peek() (track.Track, bool) {
	if len(q.pending) == 0 {
		return track.Track{}, false
	}
	return q.pending[0], true
}

func (q *Queue) record(t track.Track) {
	q.history = append(q.history, t)
	if q.limit > 0 && len(q.history) > q.limit {
		drop := len(q.history) - q.limit
		q.history = slices.Delete(q.history, 0, drop)
	}
}

// SkipCurrent forgets the last popped track so the next PopNext consumes
// pending even when repeat is on.
func (q *Queue) SkipCurrent() {
	q.last, q.hasLast = track.Track{}, false
}

// Shuffle permutes pending uniformly. Fewer than MinShuffle entries is a no-op.
func (q *Queue) Shuffle() {
	if len(q.pending) < MinShuffle {
		return
	}
	rand.Shuffle(len(q.pending), func(i, j int) {
		q.pending[i], q.pending[j] = q.pending[j], q.pending[i]
	})
}

// Clear drops every pending track and the repeat marker. History is kept.
func (q *Queue) Clear() {
	q.pending = nil
	q.SkipCurrent()
}

func (q *Queue) IsEmpty() bool { return len(q.pending) == 0 }

func (q *Queue) Len() int { return len(q.pending) }

// Pending returns a copy of the pending tracks, head first.
func (q *Queue) Pending() []track.Track { return slices.Clone(q.pending) }

// History returns a copy of played tracks, oldest first.
func (q *Queue) History() []track.Track { return slices.Clone(q.history) }

func (q *Queue) Repeat() bool { return q.repeat }

func (q *Queue) SetRepeat(on bool) { q.repeat = on }

// ToggleRepeat flips repeat and returns the new value.
func (q *Queue) ToggleRepeat() bool {
	q.repeat = !q.repeat
	return q.repeat
}
