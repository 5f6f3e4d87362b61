// Package audit provides the centralized audit sink used by all privileged
// mutations. The sink contract is deliberate: a failed audit write is logged
// and swallowed, it never propagates as a request failure, so the request
// path has no availability dependency on the logging store.
package audit

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/tranquilae/Tranquilae-sub003/models"
)

// Event describes one auditable action. Request carries the client address
// and user agent captured at the HTTP boundary.
type Event struct {
	Type     string
	ActorID  string
	RecordID string
	OldData  map[string]any
	NewData  map[string]any
	Metadata map[string]any
	Success  bool
}

// Request is the client-side context of an audited action.
type Request struct {
	IPAddress string
	UserAgent string
}

// Sink records audit events.
type Sink interface {
	Record(ctx context.Context, event Event, req Request)
}

// DBSink writes audit entries to the audit_logs table.
type DBSink struct {
	repo   models.AuditRepository
	logger *log.Logger
	now    func() time.Time
}

func NewDBSink(repo models.AuditRepository, logger *log.Logger) *DBSink {
	if logger == nil {
		logger = log.Default()
	}

	return &DBSink{repo: repo, logger: logger, now: time.Now}
}

// Record writes the event. Errors are logged, never returned.
func (s *DBSink) Record(ctx context.Context, event Event, req Request) {
	entry := &models.AuditLogEntry{
		ID:        uuid.New().String(),
		EventType: event.Type,
		ActorID:   event.ActorID,
		RecordID:  event.RecordID,
		OldData:   event.OldData,
		NewData:   event.NewData,
		Metadata:  event.Metadata,
		Success:   event.Success,
		IPAddress: req.IPAddress,
		UserAgent: req.UserAgent,
		CreatedAt: s.now().UTC(),
	}

	if err := s.repo.Insert(ctx, entry); err != nil {
		s.logger.Printf("audit: failed to record %s for actor %s: %v", event.Type, event.ActorID, err)
	}
}

// NopSink discards events. Used where auditing is not configured.
type NopSink struct{}

func (NopSink) Record(context.Context, Event, Request) {}
