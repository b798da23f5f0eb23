package queue

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/keshon/jukebox/internal/music/track"
)

func tracks(n int) []track.Track {
	out := make([]track.Track, n)
	for i := range out {
		out[i] = track.Track{ID: fmt.Sprintf("t%d", i), Title: fmt.Sprintf("Track %d", i)}
	}
	return out
}

func ids(ts []track.Track) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.ID
	}
	return out
}

func TestPushBackPopRoundTrip(t *testing.T) {
	q := New(0)
	in := tracks(4)
	q.PushBack(in...)

	var got []track.Track
	for {
		tr, ok := q.PopNext()
		if !ok {
			break
		}
		got = append(got, tr)
	}

	require.Equal(t, in, got)
	require.Equal(t, in, q.History())
	require.True(t, q.IsEmpty())
}

func TestPushFrontKeepsOrder(t *testing.T) {
	q := New(0)
	q.PushBack(tracks(2)...)
	q.PushFront(track.Track{ID: "a"}, track.Track{ID: "b"})

	require.Equal(t, []string{"a", "b", "t0", "t1"}, ids(q.Pending()))

	next, ok := q.Peek()
	require.True(t, ok)
	require.Equal(t, "a", next.ID)
}

func TestPopEmpty(t *testing.T) {
	q := New(0)
	_, ok := q.PopNext()
	require.False(t, ok)
	require.Empty(t, q.History())
}

func TestRepeatReturnsLastWithoutRecording(t *testing.T) {
	q := New(0)
	q.PushBack(tracks(2)...)

	first, ok := q.PopNext()
	require.True(t, ok)
	require.True(t, q.ToggleRepeat())

	for range 3 {
		again, ok := q.PopNext()
		require.True(t, ok)
		require.Equal(t, first, again)
	}
	require.Len(t, q.History(), 1)
	require.Equal(t, 1, q.Len())

	q.SkipCurrent()
	next, ok := q.PopNext()
	require.True(t, ok)
	require.Equal(t, "t1", next.ID)
	require.Len(t, q.History(), 2)
}

func TestRepeatWithoutHistory(t *testing.T) {
	q := New(0)
	q.SetRepeat(true)
	_, ok := q.PopNext()
	require.False(t, ok)
}

func TestShufflePreservesMultiset(t *testing.T) {
	q := New(0)
	in := tracks(20)
	q.PushBack(in...)
	q.Shuffle()

	require.ElementsMatch(t, in, q.Pending())
}

func TestShuffleSmallIsNoop(t *testing.T) {
	for n := range MinShuffle {
		q := New(0)
		in := tracks(n)
		q.PushBack(in...)
		q.Shuffle()
		require.Equal(t, ids(in), ids(q.Pending()))
	}
}

func TestHistoryLimit(t *testing.T) {
	q := New(2)
	q.PushBack(tracks(5)...)
	for range 5 {
		q.PopNext()
	}
	require.Equal(t, []string{"t3", "t4"}, ids(q.History()))
}

func TestClearKeepsHistory(t *testing.T) {
	q := New(0)
	q.PushBack(tracks(3)...)
	q.PopNext()
	q.SetRepeat(true)
	q.Clear()

	require.True(t, q.IsEmpty())
	require.Len(t, q.History(), 1)
	_, ok := q.PopNext()
	require.False(t, ok)
}

func TestPendingIsCopy(t *testing.T) {
	q := New(0)
	q.PushBack(tracks(2)...)
	p := q.Pending()
	p[0].ID = "mutated"
	require.Equal(t, "t0", q.Pending()[0].ID)
}

func TestRepeatAfterQueueRanDry(t *testing.T) {
	q := New(0)
	q.PushBack(track.Track{ID: "a"})
	_, ok := q.PopNext()
	require.True(t, ok)
	_, ok = q.PopNext()
	require.False(t, ok)

	require.True(t, q.ToggleRepeat())
	q.PushBack(track.Track{ID: "b"})

	next, ok := q.PopNext()
	require.True(t, ok)
	require.Equal(t, "b", next.ID)
	require.Equal(t, 0, q.Len())
	require.Equal(t, []string{"a", "b"}, ids(q.History()))

	again, ok := q.PopNext()
	require.True(t, ok)
	require.Equal(t, "b", again.ID)
}
