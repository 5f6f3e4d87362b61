package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/tranquilae/Tranquilae-sub003/models"
)

// MediaRepository manages exercise_media_overrides rows with last-write-wins
// upsert semantics.
type MediaRepository struct {
	db *sql.DB
}

func NewMediaRepository(db *sql.DB) *MediaRepository {
	return &MediaRepository{db: db}
}

func (r *MediaRepository) Upsert(ctx context.Context, override *models.ExerciseMediaOverride) error {
	const q = `
		INSERT INTO exercise_media_overrides (name, video_url, source, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (name) DO UPDATE SET
			video_url = EXCLUDED.video_url,
			source = EXCLUDED.source,
			updated_at = EXCLUDED.updated_at
	`

	if override.UpdatedAt.IsZero() {
		override.UpdatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, q, override.Name, override.VideoURL, override.Source, override.UpdatedAt)

	return err
}

func (r *MediaRepository) Get(ctx context.Context, name string) (*models.ExerciseMediaOverride, error) {
	const q = `SELECT name, video_url, source, updated_at FROM exercise_media_overrides WHERE name = $1`

	var override models.ExerciseMediaOverride

	err := r.db.QueryRowContext(ctx, q, name).Scan(&override.Name, &override.VideoURL, &override.Source, &override.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}

		return nil, err
	}

	return &override, nil
}
