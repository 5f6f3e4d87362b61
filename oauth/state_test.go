package oauth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/tranquilae/Tranquilae-sub003/models"
)

// memStateRepo is an in-memory OAuthStateRepository for tests.
type memStateRepo struct {
	mu     sync.Mutex
	states map[string]*models.OAuthState
}

func newMemStateRepo() *memStateRepo {
	return &memStateRepo{states: make(map[string]*models.OAuthState)}
}

func (r *memStateRepo) Save(_ context.Context, state *models.OAuthState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *state
	r.states[state.State] = &cp
	return nil
}

func (r *memStateRepo) GetAndDelete(_ context.Context, state string) (*models.OAuthState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.states[state]
	if !ok {
		return nil, models.ErrNotFound
	}
	delete(r.states, state)
	return record, nil
}

func (r *memStateRepo) Delete(_ context.Context, state string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.states, state)
	return nil
}

func (r *memStateRepo) PurgeExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for k, v := range r.states {
		if now.After(v.ExpiresAt) {
			delete(r.states, k)
			n++
		}
	}
	return n, nil
}

func TestStateManager_SingleUse(t *testing.T) {
	repo := newMemStateRepo()
	mgr := NewStateManager(repo)
	ctx := context.Background()

	provider := NewFitbit(Credentials{ClientID: "cid", RedirectURI: "https://app.example.com/cb"})

	record, err := mgr.Create(ctx, "user-1", provider, "https://app.example.com/cb")
	if err != nil {
		t.Fatalf("failed to create state: %v", err)
	}

	if record.State == "" {
		t.Fatal("expected non-empty state token")
	}

	if record.CodeVerifier == "" {
		t.Fatal("expected code verifier for PKCE provider")
	}

	got, err := mgr.Validate(ctx, record.State)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}

	if got == nil {
		t.Fatal("expected first validation to succeed")
	}

	if got.UserID != "user-1" || got.ServiceName != models.ServiceFitbit {
		t.Errorf("unexpected state record: %+v", got)
	}

	// Replay: the same token must never be accepted twice.
	again, err := mgr.Validate(ctx, record.State)
	if err != nil {
		t.Fatalf("second validate errored: %v", err)
	}

	if again != nil {
		t.Error("expected second validation of the same state to return nil")
	}
}

func TestStateManager_Expiry(t *testing.T) {
	repo := newMemStateRepo()
	mgr := NewStateManager(repo)
	ctx := context.Background()

	provider := NewGoogleFit(Credentials{ClientID: "cid", RedirectURI: "https://app.example.com/cb"})

	record, err := mgr.Create(ctx, "user-1", provider, "https://app.example.com/cb")
	if err != nil {
		t.Fatalf("failed to create state: %v", err)
	}

	mgr.now = func() time.Time { return time.Now().Add(StateTTL + time.Minute) }

	got, err := mgr.Validate(ctx, record.State)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}

	if got != nil {
		t.Error("expected expired state to validate as nil even if never consumed")
	}
}

func TestStateManager_UnknownAndEmpty(t *testing.T) {
	mgr := NewStateManager(newMemStateRepo())
	ctx := context.Background()

	for _, token := range []string{"", "never-stored"} {
		got, err := mgr.Validate(ctx, token)
		if err != nil {
			t.Fatalf("validate(%q) errored: %v", token, err)
		}

		if got != nil {
			t.Errorf("validate(%q) = %+v, want nil", token, got)
		}
	}
}

func TestStateManager_CleanupIdempotent(t *testing.T) {
	repo := newMemStateRepo()
	mgr := NewStateManager(repo)
	ctx := context.Background()

	provider := NewGoogleFit(Credentials{ClientID: "cid", RedirectURI: "https://app.example.com/cb"})

	record, err := mgr.Create(ctx, "user-1", provider, "https://app.example.com/cb")
	if err != nil {
		t.Fatalf("failed to create state: %v", err)
	}

	mgr.Cleanup(ctx, record.State)
	mgr.Cleanup(ctx, record.State)
	mgr.Cleanup(ctx, "missing")
}

func TestStateManager_PurgeExpired(t *testing.T) {
	repo := newMemStateRepo()
	mgr := NewStateManager(repo)
	ctx := context.Background()

	provider := NewGoogleFit(Credentials{ClientID: "cid", RedirectURI: "https://app.example.com/cb"})

	if _, err := mgr.Create(ctx, "user-1", provider, "https://app.example.com/cb"); err != nil {
		t.Fatalf("failed to create state: %v", err)
	}

	mgr.now = func() time.Time { return time.Now().Add(StateTTL + time.Minute) }

	n, err := mgr.PurgeExpired(ctx)
	if err != nil {
		t.Fatalf("purge failed: %v", err)
	}

	if n != 1 {
		t.Errorf("expected 1 purged state, got %d", n)
	}
}
