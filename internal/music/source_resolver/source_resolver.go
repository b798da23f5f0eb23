// Package source_resolver turns a user query into track descriptors by
// classifying it and dispatching to the matching catalog.
package source_resolver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/keshon/jukebox/internal/music/sources"
	"github.com/keshon/jukebox/internal/music/track"
)

const DefaultTimeout = 10 * time.Second

var (
	ErrNoMatches          = errors.New("no matches")
	ErrEmptyQuery         = errors.New("empty query")
	ErrCuratedUnavailable = errors.New("curated catalog is not configured")
)

// ResolutionError reports a catalog that failed or answered garbage,
// as opposed to one that simply found nothing.
type ResolutionError struct {
	Query string
	Kind  Kind
	Err   error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve %s %q: %v", e.Kind, e.Query, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// Result is the ordered output of one Resolve call. Curated collections
// come back lazy; see Materialize.
type Result struct {
	Kind   Kind
	Name   string // playlist or album name when the source has one
	Tracks []track.Track
}

type handler func(ctx context.Context, c Classification) (Result, error)

type SourceResolver struct {
	catalog  sources.Catalog
	curated  sources.Curated
	timeout  time.Duration
	log      zerolog.Logger
	handlers map[Kind]handler
}

// New builds a resolver. curated may be nil, in which case curated links
// fail with ErrCuratedUnavailable.
func New(catalog sources.Catalog, curated sources.Curated, timeout time.Duration, log zerolog.Logger) *SourceResolver {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	r := &SourceResolver{
		catalog: catalog,
		curated: curated,
		timeout: timeout,
		log:     log.With().Str("component", "resolver").Logger(),
	}
	r.handlers = map[Kind]handler{
		KindSearch:   r.resolveSearch,
		KindDirect:   r.resolveDirect,
		KindAlbum:    r.curatedCollection(func(ctx context.Context, id string) (sources.Collection, error) { return r.curated.Album(ctx, id) }),
		KindArtist:   r.curatedCollection(func(ctx context.Context, id string) (sources.Collection, error) { return r.curated.ArtistTopTracks(ctx, id) }),
		KindPlaylist: r.curatedCollection(func(ctx context.Context, id string) (sources.Collection, error) { return r.curated.Playlist(ctx, id) }),
		KindTrack:    r.resolveCuratedTrack,
	}
	return r
}

// Resolve classifies query and returns its tracks attributed to requester.
func (r *SourceResolver) Resolve(ctx context.Context, query, requester string) (Result, error) {
	c := Classify(query)
	if c.Query == "" || c.Query == searchPrefix {
		return Result{}, ErrEmptyQuery
	}

	h, ok := r.handlers[c.Kind]
	if !ok {
		return Result{}, &ResolutionError{Query: c.Query, Kind: c.Kind, Err: errors.New("no handler")}
	}
	if c.Kind.Curated() && r.curated == nil {
		return Result{}, &ResolutionError{Query: c.Query, Kind: c.Kind, Err: ErrCuratedUnavailable}
	}

	res, err := h(ctx, c)
	if err != nil {
		r.log.Debug().Err(err).Str("kind", c.Kind.String()).Str("query", c.Query).Msg("resolve failed")
		return Result{}, err
	}
	res.Kind = c.Kind
	for i := range res.Tracks {
		res.Tracks[i] = res.Tracks[i].WithRequester(requester)
	}

	r.log.Debug().Str("kind", c.Kind.String()).Int("tracks", len(res.Tracks)).Msg("resolved")
	return res, nil
}

// Materialize returns a playable copy of t, searching the generic catalog
// for lazy entries. Playable tracks are returned unchanged.
func (r *SourceResolver) Materialize(ctx context.Context, t track.Track) (track.Track, error) {
	if t.Playable() {
		return t, nil
	}
	if t.Query == "" {
		return track.Track{}, fmt.Errorf("materialize %q: %w", t.Title, ErrNoMatches)
	}

	found, err := r.first(ctx, Classification{Kind: KindSearch, Query: t.Query})
	if err != nil {
		return track.Track{}, err
	}
	return found.WithRequester(t.Requester), nil
}

func (r *SourceResolver) load(ctx context.Context, c Classification, identifier string) (sources.LoadResult, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	res, err := r.catalog.LoadTracks(ctx, identifier)
	if err != nil {
		return sources.LoadResult{}, &ResolutionError{Query: identifier, Kind: c.Kind, Err: err}
	}
	return res, nil
}

// first returns the top search hit for c.Query.
func (r *SourceResolver) first(ctx context.Context, c Classification) (track.Track, error) {
	res, err := r.load(ctx, c, c.Query)
	if err != nil {
		return track.Track{}, err
	}
	if len(res.Tracks) == 0 {
		return track.Track{}, fmt.Errorf("%s %q: %w", c.Kind, c.Query, ErrNoMatches)
	}
	return res.Tracks[0], nil
}

func (r *SourceResolver) resolveSearch(ctx context.Context, c Classification) (Result, error) {
	t, err := r.first(ctx, c)
	if err != nil {
		return Result{}, err
	}
	return Result{Tracks: []track.Track{t}}, nil
}

func (r *SourceResolver) resolveDirect(ctx context.Context, c Classification) (Result, error) {
	res, err := r.load(ctx, c, c.Query)
	if err != nil {
		return Result{}, err
	}
	if len(res.Tracks) == 0 {
		return Result{}, fmt.Errorf("%s %q: %w", c.Kind, c.Query, ErrNoMatches)
	}

	switch res.Type {
	case sources.LoadPlaylist:
		return Result{Name: res.PlaylistName, Tracks: res.Tracks}, nil
	default:
		return Result{Tracks: res.Tracks[:1]}, nil
	}
}

func (r *SourceResolver) curatedCollection(fetch func(context.Context, string) (sources.Collection, error)) handler {
	return func(ctx context.Context, c Classification) (Result, error) {
		ctx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()

		col, err := fetch(ctx, c.ID)
		if err != nil {
			return Result{}, &ResolutionError{Query: c.Query, Kind: c.Kind, Err: err}
		}
		if len(col.Tracks) == 0 {
			return Result{}, fmt.Errorf("%s %q: %w", c.Kind, c.Query, ErrNoMatches)
		}

		out := Result{Name: col.Name, Tracks: make([]track.Track, len(col.Tracks))}
		for i, m := range col.Tracks {
			out.Tracks[i] = m.Lazy(r.curated.SourceName())
		}
		return out, nil
	}
}

// resolveCuratedTrack materializes a single curated track right away.
func (r *SourceResolver) resolveCuratedTrack(ctx context.Context, c Classification) (Result, error) {
	metaCtx, cancel := context.WithTimeout(ctx, r.timeout)
	meta, err := r.curated.Track(metaCtx, c.ID)
	cancel()
	if err != nil {
		return Result{}, &ResolutionError{Query: c.Query, Kind: c.Kind, Err: err}
	}

	t, err := r.first(ctx, Classification{Kind: c.Kind, Query: meta.SearchQuery()})
	if err != nil {
		return Result{}, err
	}
	return Result{Name: meta.Title, Tracks: []track.Track{t}}, nil
}
