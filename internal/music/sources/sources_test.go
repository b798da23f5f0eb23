package sources

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSearchQuery(t *testing.T) {
	m := TrackMeta{Title: "Song", Artists: []string{"A", "B"}}
	require.Equal(t, "ytsearch:Song A B", m.SearchQuery())
	require.Equal(t, "ytsearch:Solo", TrackMeta{Title: "Solo"}.SearchQuery())
}

func TestLazy(t *testing.T) {
	m := TrackMeta{Title: "Song", Artists: []string{"A", "B"}, Duration: time.Minute}
	tr := m.Lazy(SourceSpotify)

	require.False(t, tr.Playable())
	require.Equal(t, "A, B", tr.Author)
	require.Equal(t, "ytsearch:Song A B", tr.Query)
	require.Equal(t, SourceSpotify, tr.Source)
	require.Equal(t, time.Minute, tr.Duration)
}
