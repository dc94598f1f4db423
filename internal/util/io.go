package util

import (
	"os"
	"path/filepath"
	"strings"
)

func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}

// FileSize returns the size of the regular file at path, or false when it
// does not exist or is a directory.
func FileSize(path string) (int64, bool) {
	fi, err := os.Stat(path)
	if err != nil || fi.IsDir() {
		return 0, false
	}
	return fi.Size(), true
}

// URLExt returns the lower-cased file extension of a URL path, ignoring the
// query string and fragment. Returns "" when the last segment has none.
func URLExt(rawURL string) string {
	if i := strings.IndexAny(rawURL, "?#"); i >= 0 {
		rawURL = rawURL[:i]
	}
	if i := strings.Index(rawURL, "://"); i >= 0 {
		rawURL = rawURL[i+3:]
		if j := strings.Index(rawURL, "/"); j >= 0 {
			rawURL = rawURL[j:]
		} else {
			return ""
		}
	}
	ext := strings.ToLower(filepath.Ext(rawURL))
	if ext == "." || strings.ContainsAny(ext, "/ ") {
		return ""
	}
	return ext
}

// NormalizeExts lower-cases extensions, adds the leading dot and drops blanks.
func NormalizeExts(exts []string) []string {
	var out []string
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" || e == "." {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		out = append(out, e)
	}
	return out
}
