package models

import (
	"context"
	"time"
)

// Audit event types. Security events record denied or failed access attempts;
// the rest record privileged mutations after they succeed.
const (
	AuditUserSuspend       = "user.suspend"
	AuditUserActivate      = "user.activate"
	AuditUserEmailChange   = "user.email_change"
	AuditBillingResync     = "billing.resync"
	AuditSettingsUpdate    = "integration.settings_update"
	AuditIntegrationRemove = "integration.disconnect"
	AuditMediaIngest       = "media.ingest"
	AuditAccessDenied      = "security.access_denied"
	AuditAuthFailed        = "security.auth_failed"
)

// AuditLogEntry is an immutable record of a security- or data-relevant action.
// Entries are write-once: the application never updates or deletes them.
type AuditLogEntry struct {
	ID        string         `json:"id"`
	EventType string         `json:"event_type"`
	ActorID   string         `json:"actor_id"`
	RecordID  string         `json:"record_id"`
	OldData   map[string]any `json:"old_data,omitempty"`
	NewData   map[string]any `json:"new_data,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Success   bool           `json:"success"`
	IPAddress string         `json:"ip_address"`
	UserAgent string         `json:"user_agent"`
	CreatedAt time.Time      `json:"created_at"`
}

// AuditRepository appends audit log entries.
type AuditRepository interface {
	Insert(ctx context.Context, entry *AuditLogEntry) error
}
