package track

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPlayable(t *testing.T) {
	require.False(t, Track{Title: "lazy", Query: "ytsearch:lazy"}.Playable())
	require.True(t, Track{ID: "QAAA", Title: "ready"}.Playable())
}

func TestWithRequesterCopies(t *testing.T) {
	orig := Track{ID: "a", Title: "song"}
	got := orig.WithRequester("u1")
	require.Equal(t, "u1", got.Requester)
	require.Empty(t, orig.Requester)
}

func TestLength(t *testing.T) {
	require.Equal(t, "3:05", Track{Duration: 185 * time.Second}.Length())
	require.Equal(t, "1:00:01", Track{Duration: time.Hour + time.Second}.Length())
	require.Equal(t, "LIVE", Track{IsStream: true, Duration: time.Minute}.Length())
}

func TestDisplay(t *testing.T) {
	require.Equal(t, "Song - Band", Track{Title: "Song", Author: "Band"}.Display())
	require.Equal(t, "Song", Track{Title: "Song"}.Display())
}
