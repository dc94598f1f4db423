package util

import (
	"regexp"
	"strings"
)

var unsafeNameRe = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// SafeFilename reduces s to letters, digits, dash, underscore and dot,
// capped at max bytes. Runs of other characters are dropped. Returns
// "download" when nothing usable remains.
func SafeFilename(s string, max int) string {
	name := unsafeNameRe.ReplaceAllString(s, "")
	name = strings.Trim(name, ".-_")
	if max > 0 && len(name) > max {
		name = strings.TrimRight(name[:max], ".-_")
	}
	if name == "" {
		return "download"
	}
	return name
}
