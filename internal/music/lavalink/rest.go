package lavalink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/keshon/jukebox/internal/music/sources"
	"github.com/keshon/jukebox/internal/music/track"
	"github.com/keshon/jukebox/pkg/retrylimit"
)

const restAttempts = 3

// RESTError is a non-2xx response from the node.
type RESTError struct {
	Status  int
	Message string
}

func (e *RESTError) Error() string {
	return fmt.Sprintf("lavalink: %d %s", e.Status, e.Message)
}

func (e *RESTError) StatusCode() int { return e.Status }

func (n *Node) SourceName() string { return "lavalink" }

// LoadTracks implements sources.Catalog over GET /v4/loadtracks.
func (n *Node) LoadTracks(ctx context.Context, identifier string) (sources.LoadResult, error) {
	var resp loadResponse
	path := "/v4/loadtracks?identifier=" + url.QueryEscape(identifier)
	if err := n.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return sources.LoadResult{}, err
	}
	return decodeLoad(resp)
}

func decodeLoad(resp loadResponse) (sources.LoadResult, error) {
	switch sources.LoadType(resp.LoadType) {
	case sources.LoadTrack:
		var t Track
		if err := json.Unmarshal(resp.Data, &t); err != nil {
			return sources.LoadResult{}, fmt.Errorf("lavalink: decode track: %w", err)
		}
		return sources.LoadResult{Type: sources.LoadTrack, Tracks: []track.Track{t.toTrack()}}, nil
	case sources.LoadPlaylist:
		var pl playlistData
		if err := json.Unmarshal(resp.Data, &pl); err != nil {
			return sources.LoadResult{}, fmt.Errorf("lavalink: decode playlist: %w", err)
		}
		out := sources.LoadResult{Type: sources.LoadPlaylist, PlaylistName: pl.Info.Name}
		for _, t := range pl.Tracks {
			out.Tracks = append(out.Tracks, t.toTrack())
		}
		return out, nil
	case sources.LoadSearch:
		var ts []Track
		if err := json.Unmarshal(resp.Data, &ts); err != nil {
			return sources.LoadResult{}, fmt.Errorf("lavalink: decode search: %w", err)
		}
		out := sources.LoadResult{Type: sources.LoadSearch}
		for _, t := range ts {
			out.Tracks = append(out.Tracks, t.toTrack())
		}
		return out, nil
	case sources.LoadEmpty:
		return sources.LoadResult{Type: sources.LoadEmpty}, nil
	case sources.LoadError:
		var ex Exception
		_ = json.Unmarshal(resp.Data, &ex)
		return sources.LoadResult{Type: sources.LoadError}, fmt.Errorf("lavalink: load failed: %s", ex.Message)
	default:
		return sources.LoadResult{}, fmt.Errorf("lavalink: unknown load type %q", resp.LoadType)
	}
}

func (t Track) toTrack() track.Track {
	return track.Track{
		ID:       t.Encoded,
		Title:    t.Info.Title,
		Author:   t.Info.Author,
		Duration: time.Duration(t.Info.Length) * time.Millisecond,
		URI:      t.Info.URI,
		Source:   t.Info.SourceName,
		IsStream: t.Info.IsStream,
	}
}

// UpdatePlayer patches the guild's player, creating it if needed.
func (n *Node) UpdatePlayer(ctx context.Context, guildID string, upd PlayerUpdate, noReplace bool) error {
	sid := n.SessionID()
	if sid == "" {
		return ErrNotReady
	}
	path := fmt.Sprintf("/v4/sessions/%s/players/%s?noReplace=%t", sid, guildID, noReplace)
	return n.do(ctx, http.MethodPatch, path, upd, nil)
}

func (n *Node) DestroyPlayer(ctx context.Context, guildID string) error {
	sid := n.SessionID()
	if sid == "" {
		return ErrNotReady
	}
	return n.do(ctx, http.MethodDelete, fmt.Sprintf("/v4/sessions/%s/players/%s", sid, guildID), nil, nil)
}

func (n *Node) do(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("lavalink: encode: %w", err)
		}
	}

	return retrylimit.WithRetryLog(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, method, n.cfg.baseURL(false)+path, bytes.NewReader(payload))
		if err != nil {
			return &retrylimit.FatalError{Err: err}
		}
		req.Header.Set("Authorization", n.cfg.Password)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := n.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return &retrylimit.FatalError{Err: err}
			}
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			rerr := &RESTError{Status: resp.StatusCode, Message: string(bytes.TrimSpace(msg))}
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				return rerr
			}
			return &retrylimit.FatalError{Err: rerr}
		}
		if out == nil || resp.StatusCode == http.StatusNoContent {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &retrylimit.FatalError{Err: fmt.Errorf("lavalink: decode: %w", err)}
		}
		return nil
	}, n.lim, restAttempts, n.log)
}
