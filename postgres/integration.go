package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tranquilae/Tranquilae-sub003/models"
)

// IntegrationRepository manages health_integrations rows.
type IntegrationRepository struct {
	db *sql.DB
}

func NewIntegrationRepository(db *sql.DB) *IntegrationRepository {
	return &IntegrationRepository{db: db}
}

const integrationColumns = `
	id, user_id, service_name, status, access_token, refresh_token,
	token_expires_at, scopes, sync_status, last_sync_at, error_message,
	settings, created_at, updated_at
`

// Upsert inserts or replaces the row keyed by (user_id, service_name). On
// conflict, tokens, scopes, status and updated_at are overwritten while
// last_sync_at and settings keep the values from the prior row.
func (r *IntegrationRepository) Upsert(ctx context.Context, integration *models.HealthIntegration) error {
	if !models.IsValidService(integration.ServiceName) {
		return fmt.Errorf("%w: %s", models.ErrInvalidService, integration.ServiceName)
	}

	settings, err := marshalJSONMap(integration.Settings)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	if integration.ID == "" {
		integration.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	if integration.CreatedAt.IsZero() {
		integration.CreatedAt = now
	}

	const q = `
		INSERT INTO health_integrations
			(id, user_id, service_name, status, access_token, refresh_token,
			 token_expires_at, scopes, sync_status, error_message, settings,
			 created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (user_id, service_name) DO UPDATE SET
			status = EXCLUDED.status,
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			token_expires_at = EXCLUDED.token_expires_at,
			scopes = EXCLUDED.scopes,
			sync_status = EXCLUDED.sync_status,
			error_message = EXCLUDED.error_message,
			updated_at = EXCLUDED.updated_at
		RETURNING id, last_sync_at, settings
	`

	var (
		lastSync      sql.NullTime
		savedSettings []byte
	)

	err = r.db.QueryRowContext(ctx, q,
		integration.ID,
		integration.UserID,
		string(integration.ServiceName),
		integration.Status,
		integration.AccessToken,
		integration.RefreshToken,
		integration.TokenExpiresAt,
		strings.Join(integration.Scopes, " "),
		integration.SyncStatus,
		nullString(integration.ErrorMessage),
		settings,
		integration.CreatedAt,
		now,
	).Scan(&integration.ID, &lastSync, &savedSettings)
	if err != nil {
		return err
	}

	if lastSync.Valid {
		t := lastSync.Time
		integration.LastSyncAt = &t
	}

	if len(savedSettings) > 0 {
		if err := json.Unmarshal(savedSettings, &integration.Settings); err != nil {
			return fmt.Errorf("failed to decode settings: %w", err)
		}
	}

	integration.UpdatedAt = now

	return nil
}

func (r *IntegrationRepository) Get(ctx context.Context, userID string, service models.ServiceName) (*models.HealthIntegration, error) {
	q := `SELECT ` + integrationColumns + ` FROM health_integrations WHERE user_id = $1 AND service_name = $2`

	row := r.db.QueryRowContext(ctx, q, userID, string(service))

	integration, err := scanIntegration(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}

		return nil, err
	}

	return integration, nil
}

func (r *IntegrationRepository) ListByUser(ctx context.Context, userID string) ([]models.HealthIntegration, error) {
	q := `SELECT ` + integrationColumns + ` FROM health_integrations WHERE user_id = $1 ORDER BY service_name`

	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.HealthIntegration

	for rows.Next() {
		integration, err := scanIntegration(rows)
		if err != nil {
			return nil, err
		}

		out = append(out, *integration)
	}

	return out, rows.Err()
}

// Patch applies a partial update; nil fields in patch are left untouched.
func (r *IntegrationRepository) Patch(ctx context.Context, userID string, service models.ServiceName, patch models.IntegrationPatch) (*models.HealthIntegration, error) {
	set := []string{"updated_at = NOW()"}

	args := []any{userID, string(service)}

	addArg := func(clause string, value any) {
		args = append(args, value)
		set = append(set, fmt.Sprintf(clause, len(args)))
	}

	if patch.Status != nil {
		addArg("status = $%d", *patch.Status)
	}

	if patch.SyncStatus != nil {
		addArg("sync_status = $%d", *patch.SyncStatus)
	}

	if patch.LastSyncAt != nil {
		addArg("last_sync_at = $%d", *patch.LastSyncAt)
	}

	if patch.ErrorMessage != nil {
		addArg("error_message = $%d", nullString(*patch.ErrorMessage))
	}

	if patch.Settings != nil {
		settings, err := marshalJSONMap(patch.Settings)
		if err != nil {
			return nil, fmt.Errorf("failed to encode settings: %w", err)
		}

		addArg("settings = $%d", settings)
	}

	q := `UPDATE health_integrations SET ` + strings.Join(set, ", ") +
		` WHERE user_id = $1 AND service_name = $2 RETURNING ` + integrationColumns

	row := r.db.QueryRowContext(ctx, q, args...)

	integration, err := scanIntegration(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}

		return nil, err
	}

	return integration, nil
}

func (r *IntegrationRepository) Delete(ctx context.Context, userID string, service models.ServiceName) error {
	const q = `DELETE FROM health_integrations WHERE user_id = $1 AND service_name = $2`

	_, err := r.db.ExecContext(ctx, q, userID, string(service))

	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIntegration(row rowScanner) (*models.HealthIntegration, error) {
	var (
		integration models.HealthIntegration
		service     string
		scopes      string
		lastSync    sql.NullTime
		errMsg      sql.NullString
		settings    []byte
	)

	err := row.Scan(
		&integration.ID,
		&integration.UserID,
		&service,
		&integration.Status,
		&integration.AccessToken,
		&integration.RefreshToken,
		&integration.TokenExpiresAt,
		&scopes,
		&integration.SyncStatus,
		&lastSync,
		&errMsg,
		&settings,
		&integration.CreatedAt,
		&integration.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	integration.ServiceName = models.ServiceName(service)
	integration.Scopes = splitScopes(scopes)
	integration.ErrorMessage = errMsg.String

	if lastSync.Valid {
		t := lastSync.Time
		integration.LastSyncAt = &t
	}

	if len(settings) > 0 {
		if err := json.Unmarshal(settings, &integration.Settings); err != nil {
			return nil, fmt.Errorf("failed to decode settings: %w", err)
		}
	}

	return &integration, nil
}

func marshalJSONMap(m map[string]any) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}

	return json.Marshal(m)
}
