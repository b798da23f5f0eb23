package spotify

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	spotifyapi "github.com/zmb3/spotify/v2"
)

func simpleTrackJSON(name, artist string, ms int) string {
	return fmt.Sprintf(`{"name":%q,"type":"track","duration_ms":%d,"artists":[{"name":%q}],"external_urls":{"spotify":"https://open.spotify.com/track/%s"}}`,
		name, ms, artist, strings.ReplaceAll(name, " ", ""))
}

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewWithHTTPClient(srv.Client(), "DE", zerolog.Nop(), spotifyapi.WithBaseURL(srv.URL+"/"))
}

func TestAlbumPaginates(t *testing.T) {
	const total = 55
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/albums/alb1"):
			fmt.Fprint(w, `{"name":"The Album","tracks":{"items":[]}}`)
		case strings.HasSuffix(r.URL.Path, "/albums/alb1/tracks"):
			offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
			limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
			var items []string
			for i := offset; i < total && i < offset+limit; i++ {
				items = append(items, simpleTrackJSON(fmt.Sprintf("Song %d", i), "Band", 1000))
			}
			fmt.Fprintf(w, `{"items":[%s],"total":%d}`, strings.Join(items, ","), total)
		default:
			http.NotFound(w, r)
		}
	})

	col, err := c.Album(context.Background(), "alb1")
	require.NoError(t, err)
	require.Equal(t, "The Album", col.Name)
	require.Len(t, col.Tracks, total)
	require.Equal(t, "Song 0", col.Tracks[0].Title)
	require.Equal(t, "Song 54", col.Tracks[54].Title)
	require.Equal(t, []string{"Band"}, col.Tracks[0].Artists)
	require.Equal(t, time.Second, col.Tracks[0].Duration)
}

func TestArtistTopTracksUsesMarket(t *testing.T) {
	var country string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/artists/art1"):
			fmt.Fprint(w, `{"name":"The Artist"}`)
		case strings.HasSuffix(r.URL.Path, "/artists/art1/top-tracks"):
			country = r.URL.Query().Get("country")
			fmt.Fprintf(w, `{"tracks":[%s,%s]}`, simpleTrackJSON("Hit", "The Artist", 2000), simpleTrackJSON("Other", "The Artist", 3000))
		default:
			http.NotFound(w, r)
		}
	})

	col, err := c.ArtistTopTracks(context.Background(), "art1")
	require.NoError(t, err)
	require.Equal(t, "DE", country)
	require.Equal(t, "The Artist", col.Name)
	require.Len(t, col.Tracks, 2)
	require.Equal(t, "Hit", col.Tracks[0].Title)
}

func TestPlaylistSkipsEmptyItems(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/playlists/pl1"):
			fmt.Fprint(w, `{"name":"Mix","tracks":{"items":[]}}`)
		case strings.Contains(r.URL.Path, "/playlists/pl1/"):
			fmt.Fprintf(w, `{"items":[{"track":%s},{"track":null},{"track":%s}],"total":3}`,
				simpleTrackJSON("One", "A", 1000), simpleTrackJSON("Two", "B", 1000))
		default:
			http.NotFound(w, r)
		}
	})

	col, err := c.Playlist(context.Background(), "pl1")
	require.NoError(t, err)
	require.Equal(t, "Mix", col.Name)
	require.Len(t, col.Tracks, 2)
	require.Equal(t, "Two", col.Tracks[1].Title)
}

func TestNotFoundIsNotRetried(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":{"status":404,"message":"non existing id"}}`)
	})

	_, err := c.Track(context.Background(), "missing")
	require.Error(t, err)
	require.Equal(t, 1, calls)
}
