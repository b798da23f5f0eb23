package util

import (
	"strings"
	"time"
)

// YYYY must come before YY: the replacer tries patterns in argument order.
var dateTplReplacer = strings.NewReplacer(
	"YYYY", "2006",
	"YY", "06",
	"MM", "01",
	"DD", "02",
	"hh", "15",
	"mm", "04",
	"ss", "05",
)

// FormatDateTpl formats a Unix millisecond timestamp with a template of
// YYYY, YY, MM, DD, hh, mm and ss placeholders, e.g. "YYYY-MM-DD hh:mm".
// A zero timestamp formats as "".
func FormatDateTpl(ts int64, tpl string) string {
	if ts == 0 {
		return ""
	}

	return time.UnixMilli(ts).UTC().Format(dateTplReplacer.Replace(tpl))
}
