package source_resolver

import (
	"regexp"
	"strings"
)

// Kind is the closed set of query shapes the resolver understands.
type Kind int

const (
	KindSearch Kind = iota
	KindAlbum
	KindArtist
	KindPlaylist
	KindTrack
	KindDirect
)

func (k Kind) String() string {
	switch k {
	case KindSearch:
		return "search"
	case KindAlbum:
		return "album"
	case KindArtist:
		return "artist"
	case KindPlaylist:
		return "playlist"
	case KindTrack:
		return "track"
	case KindDirect:
		return "direct"
	default:
		return "unknown"
	}
}

// Curated reports whether the kind is looked up in the curated catalog.
func (k Kind) Curated() bool {
	return k == KindAlbum || k == KindArtist || k == KindPlaylist || k == KindTrack
}

const spotifyWeb = `https?://(?:open\.)?spotify\.com(?:/intl-[a-zA-Z-]+)?`

var curatedPatterns = []struct {
	kind Kind
	re   *regexp.Regexp
}{
	{KindAlbum, regexp.MustCompile(`^(?:` + spotifyWeb + `/album/|spotify:album:)([a-zA-Z0-9]+)`)},
	{KindArtist, regexp.MustCompile(`^(?:` + spotifyWeb + `/artist/|spotify:artist:)([a-zA-Z0-9]+)`)},
	{KindPlaylist, regexp.MustCompile(`^(?:` + spotifyWeb + `(?:/user/[a-zA-Z0-9_]+)?/playlist/|spotify:(?:user:[a-zA-Z0-9_]+:)?playlist:)([a-zA-Z0-9]+)`)},
	{KindTrack, regexp.MustCompile(`^(?:` + spotifyWeb + `/track/|spotify:track:)([a-zA-Z0-9]+)`)},
}

// Classification is the outcome of Classify: the kind, the identifier the
// kind's handler consumes and the cleaned input.
type Classification struct {
	Kind  Kind
	ID    string // curated catalog id, empty for other kinds
	Query string // cleaned input, "ytsearch:" prefixed for searches
}

// Classify picks the first matching kind in fixed priority:
// album, artist, playlist, track, direct URL, search.
func Classify(raw string) Classification {
	q := normalize(raw)

	for _, p := range curatedPatterns {
		if m := p.re.FindStringSubmatch(q); m != nil {
			return Classification{Kind: p.kind, ID: m[1], Query: q}
		}
	}
	if isURL(q) {
		return Classification{Kind: KindDirect, Query: q}
	}
	return Classification{Kind: KindSearch, Query: searchPrefix + q}
}

// normalize trims whitespace and the <...> wrapper Discord users add to
// suppress link embeds.
func normalize(raw string) string {
	q := strings.TrimSpace(raw)
	if strings.HasPrefix(q, "<") && strings.HasSuffix(q, ">") {
		q = strings.TrimSpace(q[1 : len(q)-1])
	}
	return q
}
