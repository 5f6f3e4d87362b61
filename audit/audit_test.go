package audit

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"testing"

	"github.com/tranquilae/Tranquilae-sub003/models"
)

type memAuditRepo struct {
	mu      sync.Mutex
	entries []models.AuditLogEntry
	failing bool
}

func (r *memAuditRepo) Insert(_ context.Context, entry *models.AuditLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.failing {
		return errors.New("audit store unavailable")
	}

	r.entries = append(r.entries, *entry)

	return nil
}

func TestDBSinkRecord(t *testing.T) {
	repo := &memAuditRepo{}
	sink := NewDBSink(repo, log.New(io.Discard, "", 0))

	sink.Record(context.Background(), Event{
		Type:     models.AuditUserSuspend,
		ActorID:  "admin-1",
		RecordID: "user-2",
		OldData:  map[string]any{"status": "active"},
		NewData:  map[string]any{"status": "suspended"},
		Success:  true,
	}, Request{IPAddress: "203.0.113.9", UserAgent: "curl/8.0"})

	if len(repo.entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(repo.entries))
	}

	entry := repo.entries[0]

	if entry.EventType != models.AuditUserSuspend || entry.ActorID != "admin-1" {
		t.Errorf("unexpected entry: %+v", entry)
	}

	if entry.ID == "" || entry.CreatedAt.IsZero() {
		t.Error("expected entry id and timestamp to be set")
	}

	if entry.IPAddress != "203.0.113.9" || entry.UserAgent != "curl/8.0" {
		t.Errorf("request context not captured: %+v", entry)
	}
}

func TestDBSinkSwallowsFailures(t *testing.T) {
	repo := &memAuditRepo{failing: true}
	sink := NewDBSink(repo, log.New(io.Discard, "", 0))

	// Must not panic or surface the store error.
	sink.Record(context.Background(), Event{Type: models.AuditAccessDenied}, Request{})
}
