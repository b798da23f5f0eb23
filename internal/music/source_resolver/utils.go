package source_resolver

import (
	"strings"

	"github.com/keshon/jukebox/internal/music/sources"
)

const searchPrefix = sources.SearchPrefix

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
