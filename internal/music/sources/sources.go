// Package sources defines the catalogs the resolver looks tracks up in.
package sources

import (
	"context"
	"strings"
	"time"

	"github.com/keshon/jukebox/internal/music/track"
)

const (
	SourceYouTube = "youtube"
	SourceSpotify = "spotify"
	SourceHTTP    = "http"
)

// SearchPrefix turns free text into a generic catalog search identifier.
const SearchPrefix = "ytsearch:"

type LoadType string

const (
	LoadTrack    LoadType = "track"
	LoadPlaylist LoadType = "playlist"
	LoadSearch   LoadType = "search"
	LoadEmpty    LoadType = "empty"
	LoadError    LoadType = "error"
)

// LoadResult is what a generic catalog returns for one identifier.
type LoadResult struct {
	Type         LoadType
	PlaylistName string
	Tracks       []track.Track
}

// Catalog looks up search identifiers and direct URLs.
type Catalog interface {
	// LoadTracks resolves a "ytsearch:" query or a direct URL
	LoadTracks(ctx context.Context, identifier string) (LoadResult, error)

	SourceName() string
}

// TrackMeta is the minimal metadata a curated catalog knows about a track.
type TrackMeta struct {
	Title    string
	Artists  []string
	Duration time.Duration
	URI      string
}

// SearchQuery is the generic catalog query that finds a playable copy.
func (m TrackMeta) SearchQuery() string {
	q := m.Title
	if len(m.Artists) > 0 {
		q += " " + strings.Join(m.Artists, " ")
	}
	return SearchPrefix + q
}

// Lazy returns a not yet materialized Track for m.
func (m TrackMeta) Lazy(source string) track.Track {
	return track.Track{
		Title:    m.Title,
		Author:   strings.Join(m.Artists, ", "),
		Duration: m.Duration,
		URI:      m.URI,
		Source:   source,
		Query:    m.SearchQuery(),
	}
}

// Collection is a named ordered list of curated tracks.
type Collection struct {
	Name   string
	Tracks []TrackMeta
}

// Curated is a metadata-only catalog of albums, artists and playlists.
type Curated interface {
	Album(ctx context.Context, id string) (Collection, error)
	ArtistTopTracks(ctx context.Context, id string) (Collection, error)
	Playlist(ctx context.Context, id string) (Collection, error)
	Track(ctx context.Context, id string) (TrackMeta, error)

	SourceName() string
}
