// Package sanitize cleans caller-supplied names and storage paths before
// they touch the blob store or a Content-Disposition header.
package sanitize

import (
	"regexp"
	"strings"
)

var (
	unsafeChars       = regexp.MustCompile(`[^a-zA-Z0-9._\-]`)
	repeatedDots      = regexp.MustCompile(`\.{2,}`)
	repeatedUnders    = regexp.MustCompile(`_+`)
	repeatedSlashes   = regexp.MustCompile(`/+`)
	leadTrailDots     = regexp.MustCompile(`^\.+|\.+$`)
	leadTrailSlashes  = regexp.MustCompile(`^/+|/+$`)
	maxFilenameLength = 255
)

// Filename strips path separators and unsafe characters from a
// caller-supplied file name. Falls back to "file" for empty input.
func Filename(name string) string {
	if name == "" {
		return "file"
	}
	s := strings.ReplaceAll(name, "..", "")
	s = strings.NewReplacer("/", "", "\\", "").Replace(s)
	s = unsafeChars.ReplaceAllString(s, "_")
	s = repeatedDots.ReplaceAllString(s, ".")
	s = repeatedUnders.ReplaceAllString(s, "_")
	if len(s) > maxFilenameLength {
		s = s[:maxFilenameLength]
	}
	s = strings.TrimSpace(s)
	s = leadTrailDots.ReplaceAllString(s, "")
	if s == "" {
		return "file"
	}
	return s
}

// StorageKey normalizes a storage key reference: no absolute paths, no
// traversal segments, forward slashes only.
func StorageKey(key string) string {
	if key == "" {
		return ""
	}
	s := strings.ReplaceAll(key, "\\", "/")
	s = strings.ReplaceAll(s, "..", "")
	s = repeatedSlashes.ReplaceAllString(s, "/")
	s = strings.TrimSpace(s)
	return leadTrailSlashes.ReplaceAllString(s, "")
}

// ValidKeyPath reports whether a key reference is free of traversal
// attempts and absolute-path prefixes.
func ValidKeyPath(key string) bool {
	normalized := strings.ReplaceAll(key, "\\", "/")
	if strings.Contains(normalized, "..") {
		return false
	}
	if strings.HasPrefix(normalized, "/") || strings.HasPrefix(normalized, "./") {
		return false
	}
	return normalized != ""
}
