package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tranquilae/Tranquilae-sub003/models"
)

// HealthDataRepository stores the append-only health data point series.
type HealthDataRepository struct {
	db *sql.DB
}

func NewHealthDataRepository(db *sql.DB) *HealthDataRepository {
	return &HealthDataRepository{db: db}
}

func (r *HealthDataRepository) Insert(ctx context.Context, points []models.HealthDataPoint) error {
	if len(points) == 0 {
		return nil
	}

	const q = `
		INSERT INTO health_data_points
			(id, user_id, integration_id, data_type, value, unit, recorded_at, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	now := time.Now().UTC()

	for i := range points {
		p := &points[i]

		if p.ID == "" {
			p.ID = uuid.New().String()
		}

		if p.CreatedAt.IsZero() {
			p.CreatedAt = now
		}

		metadata, err := marshalJSONMap(p.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode metadata: %w", err)
		}

		_, err = tx.ExecContext(ctx, q,
			p.ID, p.UserID, p.IntegrationID, string(p.DataType),
			p.Value, p.Unit, p.RecordedAt, metadata, p.CreatedAt,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *HealthDataRepository) ListRange(ctx context.Context, userID string, dataType models.DataType, from, to time.Time) ([]models.HealthDataPoint, error) {
	const q = `
		SELECT id, user_id, integration_id, data_type, value, unit, recorded_at, metadata, created_at
		FROM health_data_points
		WHERE user_id = $1 AND data_type = $2 AND recorded_at >= $3 AND recorded_at < $4
		ORDER BY recorded_at
	`

	rows, err := r.db.QueryContext(ctx, q, userID, string(dataType), from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.HealthDataPoint

	for rows.Next() {
		var (
			p        models.HealthDataPoint
			dt       string
			metadata []byte
		)

		err := rows.Scan(&p.ID, &p.UserID, &p.IntegrationID, &dt, &p.Value, &p.Unit, &p.RecordedAt, &metadata, &p.CreatedAt)
		if err != nil {
			return nil, err
		}

		p.DataType = models.DataType(dt)

		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &p.Metadata); err != nil {
				return nil, fmt.Errorf("failed to decode metadata: %w", err)
			}
		}

		out = append(out, p)
	}

	return out, rows.Err()
}
