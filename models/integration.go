package models

import (
	"context"
	"time"
)

// Integration statuses.
const (
	IntegrationConnected    = "connected"
	IntegrationPending      = "pending"
	IntegrationDisconnected = "disconnected"
	IntegrationError        = "error"
)

// Sync statuses.
const (
	SyncIdle    = "idle"
	SyncRunning = "syncing"
	SyncError   = "error"
)

// HealthIntegration represents a user's connection to an external health
// service. At most one row exists per (user, service); reconnecting upserts
// the tokens while the sync history (LastSyncAt) is preserved.
type HealthIntegration struct {
	ID             string         `json:"id"`
	UserID         string         `json:"user_id"`
	ServiceName    ServiceName    `json:"service_name"`
	Status         string         `json:"status"`
	AccessToken    []byte         `json:"-"` // stored encrypted
	RefreshToken   []byte         `json:"-"` // stored encrypted
	TokenExpiresAt time.Time      `json:"token_expires_at"`
	Scopes         []string       `json:"scopes"`
	SyncStatus     string         `json:"sync_status"`
	LastSyncAt     *time.Time     `json:"last_sync_at,omitempty"`
	ErrorMessage   string         `json:"error_message,omitempty"`
	Settings       map[string]any `json:"settings,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// IntegrationPatch is a partial update applied to an existing integration.
// Nil fields are left untouched.
type IntegrationPatch struct {
	Status       *string
	SyncStatus   *string
	LastSyncAt   *time.Time
	ErrorMessage *string
	Settings     map[string]any
}

// IntegrationRepository manages per-user health service connections.
type IntegrationRepository interface {
	// Upsert inserts or replaces the row keyed by (user_id, service_name).
	// On conflict tokens, scopes, status and updated_at are overwritten;
	// last_sync_at and settings from the prior row are preserved.
	Upsert(ctx context.Context, integration *HealthIntegration) error

	Get(ctx context.Context, userID string, service ServiceName) (*HealthIntegration, error)
	ListByUser(ctx context.Context, userID string) ([]HealthIntegration, error)
	Patch(ctx context.Context, userID string, service ServiceName, patch IntegrationPatch) (*HealthIntegration, error)
	Delete(ctx context.Context, userID string, service ServiceName) error
}
