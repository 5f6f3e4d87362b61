package crawler

import (
	"reflect"
	"testing"
)

func TestCanonicalVideoURL(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "youtube watch",
			raw:  "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
			want: "https://www.youtube.com/embed/dQw4w9WgXcQ",
		},
		{
			name: "youtube watch with extra params",
			raw:  "https://www.youtube.com/watch?list=PL123&v=dQw4w9WgXcQ",
			want: "https://www.youtube.com/embed/dQw4w9WgXcQ",
		},
		{
			name: "youtube embed",
			raw:  "https://www.youtube.com/embed/dQw4w9WgXcQ",
			want: "https://www.youtube.com/embed/dQw4w9WgXcQ",
		},
		{
			name: "youtube nocookie embed",
			raw:  "https://www.youtube-nocookie.com/embed/dQw4w9WgXcQ",
			want: "https://www.youtube.com/embed/dQw4w9WgXcQ",
		},
		{
			name: "short link",
			raw:  "https://youtu.be/dQw4w9WgXcQ",
			want: "https://www.youtube.com/embed/dQw4w9WgXcQ",
		},
		{
			name: "vimeo page",
			raw:  "https://vimeo.com/123456789",
			want: "https://player.vimeo.com/video/123456789",
		},
		{
			name: "vimeo player",
			raw:  "https://player.vimeo.com/video/123456789",
			want: "https://player.vimeo.com/video/123456789",
		},
		{
			name: "not a video",
			raw:  "https://example.com/exercises/squat",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanonicalVideoURL(tt.raw); got != tt.want {
				t.Errorf("CanonicalVideoURL(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestWatchAndEmbedNormalizeToSameURL(t *testing.T) {
	watch := CanonicalVideoURL("https://www.youtube.com/watch?v=abcDEF12345")
	embed := CanonicalVideoURL("https://www.youtube.com/embed/abcDEF12345")

	if watch == "" || watch != embed {
		t.Errorf("watch %q and embed %q should normalize identically", watch, embed)
	}
}

func TestExtractVideoURLs(t *testing.T) {
	html := `
	<html><body>
	<a href="https://www.youtube.com/watch?v=abcDEF12345">video</a>
	<iframe src="https://www.youtube.com/embed/abcDEF12345"></iframe>
	<a href="https://vimeo.com/123456789">other</a>
	<a href="/relative/page">not a video</a>
	</body></html>`

	got := ExtractVideoURLs(html)

	want := []string{
		"https://www.youtube.com/embed/abcDEF12345",
		"https://player.vimeo.com/video/123456789",
	}

	if !reflect.DeepEqual(got, want) {
		t.Errorf("ExtractVideoURLs = %v, want %v", got, want)
	}
}

func TestDeriveName(t *testing.T) {
	tests := []struct {
		name    string
		title   string
		pageURL string
		want    string
	}{
		{
			name:    "title segment before pipe",
			title:   "Barbell Back Squat | Tranquilae Exercise Library",
			pageURL: "https://example.com/exercises/barbell-back-squat",
			want:    "Barbell Back Squat",
		},
		{
			name:    "title truncated to six words",
			title:   "One Two Three Four Five Six Seven Eight",
			pageURL: "https://example.com/x",
			want:    "One Two Three Four Five Six",
		},
		{
			name:    "hyphenated title counts words",
			title:   "High-Intensity Interval Training Basics Explained Fully Today",
			pageURL: "https://example.com/x",
			want:    "High Intensity Interval Training Basics Explained",
		},
		{
			name:    "fallback to slug",
			title:   "",
			pageURL: "https://example.com/exercises/goblet-squat_variation",
			want:    "goblet squat variation",
		},
		{
			name:    "fallback to raw url",
			title:   "",
			pageURL: "https://example.com/",
			want:    "https://example.com/",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DeriveName(tt.title, tt.pageURL); got != tt.want {
				t.Errorf("DeriveName(%q, %q) = %q, want %q", tt.title, tt.pageURL, got, tt.want)
			}
		})
	}
}
