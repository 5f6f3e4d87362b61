package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/tranquilae/Tranquilae-sub003/models"
)

// AuditRepository appends audit_logs rows. The table is write-once: no update
// or delete statements exist in this package.
type AuditRepository struct {
	db *sql.DB
}

func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Insert(ctx context.Context, entry *models.AuditLogEntry) error {
	const q = `
		INSERT INTO audit_logs
			(id, event_type, actor_id, record_id, old_data, new_data, metadata,
			 success, ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	oldData, err := marshalJSONMap(entry.OldData)
	if err != nil {
		return fmt.Errorf("failed to encode old_data: %w", err)
	}

	newData, err := marshalJSONMap(entry.NewData)
	if err != nil {
		return fmt.Errorf("failed to encode new_data: %w", err)
	}

	metadata, err := marshalJSONMap(entry.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}

	_, err = r.db.ExecContext(ctx, q,
		entry.ID, entry.EventType, entry.ActorID, nullString(entry.RecordID),
		oldData, newData, metadata, entry.Success,
		nullString(entry.IPAddress), nullString(entry.UserAgent), entry.CreatedAt,
	)

	return err
}

var (
	_ models.AuditRepository       = (*AuditRepository)(nil)
	_ models.MediaRepository       = (*MediaRepository)(nil)
	_ models.IntegrationRepository = (*IntegrationRepository)(nil)
	_ models.OAuthStateRepository  = (*OAuthStateRepository)(nil)
	_ models.HealthDataRepository  = (*HealthDataRepository)(nil)
)
