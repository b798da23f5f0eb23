// Package spotify is the curated catalog backed by the Spotify Web API.
// Only metadata is read; playable copies are found through the generic catalog.
package spotify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	spotifyapi "github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/keshon/jukebox/internal/music/sources"
	"github.com/keshon/jukebox/pkg/retrylimit"
)

const (
	albumPageSize    = 50
	playlistPageSize = 100
	maxAttempts      = 3
)

type Config struct {
	ClientID     string
	ClientSecret string
	Market       string // country code for artist top tracks
	Proxy        string
}

type Client struct {
	api    *spotifyapi.Client
	market string
	lim    *retrylimit.AdaptiveLimiter
	log    zerolog.Logger
}

// New authenticates with the client credentials flow. The token is
// refreshed transparently by the oauth2 transport.
func New(ctx context.Context, cfg Config, log zerolog.Logger) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("spotify: client id and secret are required")
	}

	base := newHTTPClient(cfg.Proxy, log)
	ctx = context.WithValue(ctx, oauth2.HTTPClient, base)

	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}
	if _, err := cc.Token(ctx); err != nil {
		return nil, fmt.Errorf("spotify: token: %w", err)
	}

	return NewWithHTTPClient(cc.Client(ctx), cfg.Market, log), nil
}

// NewWithHTTPClient wraps an already authenticated client.
func NewWithHTTPClient(hc *http.Client, market string, log zerolog.Logger, opts ...spotifyapi.ClientOption) *Client {
	if market == "" {
		market = "US"
	}
	return &Client{
		api:    spotifyapi.New(hc, opts...),
		market: market,
		lim:    retrylimit.NewAdaptiveLimiter(5, 1, 20, 1, 0.5),
		log:    log.With().Str("component", "spotify").Logger(),
	}
}

func (c *Client) SourceName() string { return sources.SourceSpotify }

func (c *Client) Album(ctx context.Context, id string) (sources.Collection, error) {
	var album *spotifyapi.FullAlbum
	err := c.call(ctx, func() (err error) {
		album, err = c.api.GetAlbum(ctx, spotifyapi.ID(id))
		return err
	})
	if err != nil {
		return sources.Collection{}, fmt.Errorf("spotify: album %s: %w", id, err)
	}

	out := sources.Collection{Name: album.Name}
	for offset := 0; ; offset += albumPageSize {
		var page *spotifyapi.SimpleTrackPage
		err := c.call(ctx, func() (err error) {
			page, err = c.api.GetAlbumTracks(ctx, spotifyapi.ID(id),
				spotifyapi.Limit(albumPageSize), spotifyapi.Offset(offset))
			return err
		})
		if err != nil {
			return sources.Collection{}, fmt.Errorf("spotify: album %s tracks: %w", id, err)
		}
		for i := range page.Tracks {
			out.Tracks = append(out.Tracks, fromSimple(&page.Tracks[i]))
		}
		if len(page.Tracks) < albumPageSize {
			break
		}
	}

	c.log.Debug().Str("album", id).Int("tracks", len(out.Tracks)).Msg("album loaded")
	return out, nil
}

func (c *Client) ArtistTopTracks(ctx context.Context, id string) (sources.Collection, error) {
	var artist *spotifyapi.FullArtist
	err := c.call(ctx, func() (err error) {
		artist, err = c.api.GetArtist(ctx, spotifyapi.ID(id))
		return err
	})
	if err != nil {
		return sources.Collection{}, fmt.Errorf("spotify: artist %s: %w", id, err)
	}

	var top []spotifyapi.FullTrack
	err = c.call(ctx, func() (err error) {
		top, err = c.api.GetArtistsTopTracks(ctx, spotifyapi.ID(id), c.market)
		return err
	})
	if err != nil {
		return sources.Collection{}, fmt.Errorf("spotify: artist %s top tracks: %w", id, err)
	}

	out := sources.Collection{Name: artist.Name}
	for i := range top {
		out.Tracks = append(out.Tracks, fromSimple(&top[i].SimpleTrack))
	}
	return out, nil
}

func (c *Client) Playlist(ctx context.Context, id string) (sources.Collection, error) {
	var pl *spotifyapi.FullPlaylist
	err := c.call(ctx, func() (err error) {
		pl, err = c.api.GetPlaylist(ctx, spotifyapi.ID(id))
		return err
	})
	if err != nil {
		return sources.Collection{}, fmt.Errorf("spotify: playlist %s: %w", id, err)
	}

	out := sources.Collection{Name: pl.Name}
	for offset := 0; ; offset += playlistPageSize {
		var items *spotifyapi.PlaylistItemPage
		err := c.call(ctx, func() (err error) {
			items, err = c.api.GetPlaylistItems(ctx, spotifyapi.ID(id),
				spotifyapi.Limit(playlistPageSize), spotifyapi.Offset(offset))
			return err
		})
		if err != nil {
			return sources.Collection{}, fmt.Errorf("spotify: playlist %s items: %w", id, err)
		}
		for i := range items.Items {
			// episodes and removed tracks come back without a track
			if t := items.Items[i].Track.Track; t != nil {
				out.Tracks = append(out.Tracks, fromSimple(&t.SimpleTrack))
			}
		}
		if len(items.Items) < playlistPageSize {
			break
		}
	}

	c.log.Debug().Str("playlist", id).Int("tracks", len(out.Tracks)).Msg("playlist loaded")
	return out, nil
}

func (c *Client) Track(ctx context.Context, id string) (sources.TrackMeta, error) {
	var t *spotifyapi.FullTrack
	err := c.call(ctx, func() (err error) {
		t, err = c.api.GetTrack(ctx, spotifyapi.ID(id))
		return err
	})
	if err != nil {
		return sources.TrackMeta{}, fmt.Errorf("spotify: track %s: %w", id, err)
	}
	return fromSimple(&t.SimpleTrack), nil
}

// call runs fn through the adaptive limiter. API errors other than 429
// and 5xx are not retried.
func (c *Client) call(ctx context.Context, fn func() error) error {
	return retrylimit.WithRetryLog(ctx, func() error {
		err := fn()
		if err == nil {
			return nil
		}
		var apiErr spotifyapi.Error
		if errors.As(err, &apiErr) {
			se := statusError{apiErr}
			if se.retryable() {
				return se
			}
			return &retrylimit.FatalError{Err: se}
		}
		if ctx.Err() != nil {
			return &retrylimit.FatalError{Err: err}
		}
		return err
	}, c.lim, maxAttempts, c.log)
}

type statusError struct{ err spotifyapi.Error }

func (e statusError) Error() string   { return e.err.Error() }
func (e statusError) Unwrap() error   { return e.err }
func (e statusError) StatusCode() int { return e.err.Status }

func (e statusError) retryable() bool {
	return e.err.Status == http.StatusTooManyRequests || e.err.Status >= 500
}

func fromSimple(t *spotifyapi.SimpleTrack) sources.TrackMeta {
	artists := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		artists = append(artists, a.Name)
	}
	return sources.TrackMeta{
		Title:    t.Name,
		Artists:  artists,
		Duration: time.Duration(t.Duration) * time.Millisecond,
		URI:      t.ExternalURLs["spotify"],
	}
}
