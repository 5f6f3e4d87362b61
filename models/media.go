package models

import (
	"context"
	"time"
)

// ExerciseMediaOverride maps an exercise name to a curated video URL. Rows are
// written by the admin ingest endpoint with last-write-wins semantics: a later
// ingest for the same name simply overwrites the URL.
type ExerciseMediaOverride struct {
	Name      string    `json:"name"`
	VideoURL  string    `json:"video_url"`
	Source    string    `json:"source"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MediaRepository manages exercise media overrides.
type MediaRepository interface {
	Upsert(ctx context.Context, override *ExerciseMediaOverride) error
	Get(ctx context.Context, name string) (*ExerciseMediaOverride, error)
}
