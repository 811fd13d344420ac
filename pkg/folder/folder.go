// Package folder turns raw crawl and user paths into canonical folders and
// document paths.
package folder

import (
	"net/url"
	"regexp"
	"strings"
)

// Root is the folder every document lives under when nothing else is known.
const Root = "/"

var (
	backslashes = regexp.MustCompile(`\\+`)
	slashes     = regexp.MustCompile(`/+`)
)

// NormalizeFolderPath returns a folder that starts and ends with "/".
// Backslashes become forward slashes and repeated separators collapse.
// Empty or whitespace-only input maps to Root.
func NormalizeFolderPath(raw string) string {
	path := strings.TrimSpace(raw)
	if path == "" {
		return Root
	}

	path = backslashes.ReplaceAllString(path, "/")
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if !strings.HasSuffix(path, "/") {
		path = path + "/"
	}
	return slashes.ReplaceAllString(path, "/")
}

// FolderFromURL derives a folder from a crawled URL by dropping the last path
// segment. Malformed URLs and root paths yield Root.
func FolderFromURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return Root
	}

	segments := splitNonEmpty(u.Path)
	if len(segments) <= 1 {
		return Root
	}
	return NormalizeFolderPath("/" + strings.Join(segments[:len(segments)-1], "/") + "/")
}

// NameFromURL returns the leaf segment of a crawled URL, or the host when the
// URL points at the site root.
func NameFromURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return ""
	}
	segments := splitNonEmpty(u.Path)
	if len(segments) == 0 {
		return u.Host
	}
	return segments[len(segments)-1]
}

// ParseFolderSegments splits a folder into its non-empty segments.
func ParseFolderSegments(folder string) []string {
	normalized := NormalizeFolderPath(folder)
	if normalized == Root {
		return []string{}
	}
	return splitNonEmpty(normalized)
}

// BuildPathFromSegments is the inverse of ParseFolderSegments. Embedded "/"
// is stripped from each segment and whitespace-only segments are dropped.
func BuildPathFromSegments(segments []string) string {
	clean := make([]string, 0, len(segments))
	for _, s := range segments {
		if strings.TrimSpace(s) == "" {
			continue
		}
		if v := strings.ReplaceAll(s, "/", ""); v != "" {
			clean = append(clean, v)
		}
	}
	if len(clean) == 0 {
		return Root
	}
	return NormalizeFolderPath("/" + strings.Join(clean, "/") + "/")
}

// SanitizeSegment trims whitespace and strips embedded "/".
func SanitizeSegment(value string) string {
	return strings.ReplaceAll(strings.TrimSpace(value), "/", "")
}

// Join returns the full path of a document named name inside folder.
func Join(folder, name string) string {
	return NormalizeFolderPath(folder) + SanitizeSegment(name)
}

func splitNonEmpty(path string) []string {
	parts := strings.Split(path, "/")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
