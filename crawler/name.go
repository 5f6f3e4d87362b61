package crawler

import (
	"net/url"
	"strings"
)

const maxNameWords = 6

// DeriveName produces a human label for a page that yielded video links.
// Preference order: the first segment of the page title before a "|"
// delimiter, truncated to six words; then the URL's last path segment with
// separators replaced by spaces; then the raw URL.
func DeriveName(title, pageURL string) string {
	if name := nameFromTitle(title); name != "" {
		return name
	}

	if name := nameFromPath(pageURL); name != "" {
		return name
	}

	return pageURL
}

func nameFromTitle(title string) string {
	segment := title
	if idx := strings.Index(segment, "|"); idx >= 0 {
		segment = segment[:idx]
	}

	segment = strings.TrimSpace(segment)
	if segment == "" {
		return ""
	}

	words := strings.FieldsFunc(segment, func(r rune) bool {
		return r == ' ' || r == '-'
	})

	if len(words) > maxNameWords {
		words = words[:maxNameWords]
	}

	return strings.Join(words, " ")
}

func nameFromPath(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}

	path := strings.Trim(u.Path, "/")
	if path == "" {
		return ""
	}

	segments := strings.Split(path, "/")
	last := segments[len(segments)-1]

	last = strings.NewReplacer("-", " ", "_", " ").Replace(last)

	return strings.TrimSpace(last)
}
