package track

import (
	"fmt"
	"time"
)

// Track describes a single playable (or yet to be materialized) entry.
// Tracks are values: materializing a lazy entry produces a new Track.
type Track struct {
	ID        string // backend-encoded identifier, empty until materialized
	Title     string
	Author    string
	Duration  time.Duration
	URI       string
	Requester string // empty for autoplay-sourced tracks
	Source    string
	IsStream  bool

	// Query is the catalog search used to materialize a lazy entry.
	Query string
}

// Playable reports whether the backend can play the track as-is.
func (t Track) Playable() bool {
	return t.ID != ""
}

// WithRequester returns a copy of t attributed to requester.
func (t Track) WithRequester(requester string) Track {
	t.Requester = requester
	return t
}

// Display returns the "Title - Author" form used in embeds and logs.
func (t Track) Display() string {
	if t.Author == "" {
		return t.Title
	}
	return fmt.Sprintf("%s - %s", t.Title, t.Author)
}

// Length formats the duration as m:ss or h:mm:ss; streams report "LIVE".
func (t Track) Length() string {
	if t.IsStream {
		return "LIVE"
	}
	return FormatDuration(t.Duration)
}

func FormatDuration(d time.Duration) string {
	total := int(d.Round(time.Second) / time.Second)
	h, m, s := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
