package crawler

import (
	"fmt"
	"regexp"
)

// Recognized video link shapes. All equivalent forms for one video ID
// normalize to a single canonical embed URL, which doubles as the dedup key.
var (
	youtubeWatchRe = regexp.MustCompile(`(?:youtube\.com/watch\?(?:[^"'\s]*&)?v=|youtu\.be/)([A-Za-z0-9_-]{11})`)
	youtubeEmbedRe = regexp.MustCompile(`youtube(?:-nocookie)?\.com/embed/([A-Za-z0-9_-]{11})`)
	vimeoRe        = regexp.MustCompile(`(?:player\.vimeo\.com/video/|vimeo\.com/)(\d{6,12})`)
)

// CanonicalVideoURL returns the canonical embed form for a recognized video
// link, or "" when the link is not a supported video URL.
func CanonicalVideoURL(raw string) string {
	if m := youtubeWatchRe.FindStringSubmatch(raw); m != nil {
		return fmt.Sprintf("https://www.youtube.com/embed/%s", m[1])
	}

	if m := youtubeEmbedRe.FindStringSubmatch(raw); m != nil {
		return fmt.Sprintf("https://www.youtube.com/embed/%s", m[1])
	}

	if m := vimeoRe.FindStringSubmatch(raw); m != nil {
		return fmt.Sprintf("https://player.vimeo.com/video/%s", m[1])
	}

	return ""
}

// ExtractVideoURLs scans raw HTML for recognizable video links and returns
// their canonical forms, deduplicated, in first-seen order.
func ExtractVideoURLs(html string) []string {
	seen := make(map[string]struct{})

	var out []string

	add := func(canonical string) {
		if canonical == "" {
			return
		}
		if _, ok := seen[canonical]; ok {
			return
		}
		seen[canonical] = struct{}{}
		out = append(out, canonical)
	}

	for _, re := range []*regexp.Regexp{youtubeWatchRe, youtubeEmbedRe, vimeoRe} {
		for _, m := range re.FindAllString(html, -1) {
			add(CanonicalVideoURL(m))
		}
	}

	return out
}
