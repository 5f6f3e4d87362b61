package oauth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tranquilae/Tranquilae-sub003/models"
)

// StateTTL bounds how long an OAuth initiation remains valid.
const StateTTL = 10 * time.Minute

// StateManager creates, validates and cleans up the short-lived state records
// that tie an OAuth callback back to the user and service that initiated it.
type StateManager struct {
	repo models.OAuthStateRepository
	now  func() time.Time
}

func NewStateManager(repo models.OAuthStateRepository) *StateManager {
	return &StateManager{repo: repo, now: time.Now}
}

// Create generates a random state token (and, for PKCE providers, a code
// verifier) and persists the pending flow record with a short expiry.
func (m *StateManager) Create(ctx context.Context, userID string, provider Provider, redirectURI string) (*models.OAuthState, error) {
	token, err := GenerateStateToken()
	if err != nil {
		return nil, err
	}

	record := &models.OAuthState{
		State:       token,
		UserID:      userID,
		ServiceName: provider.Name(),
		RedirectURI: redirectURI,
		Scopes:      provider.Scopes(),
		CreatedAt:   m.now().UTC(),
		ExpiresAt:   m.now().UTC().Add(StateTTL),
	}

	if provider.SupportsPKCE() {
		verifier, err := GenerateCodeVerifier()
		if err != nil {
			return nil, err
		}

		record.CodeVerifier = verifier
	}

	if err := m.repo.Save(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to persist oauth state: %w", err)
	}

	return record, nil
}

// Validate consumes a state token. It returns nil (not an error) when the
// token is unknown, already used, or expired: callers treat nil as
// "invalid/expired, restart the flow" and must not distinguish the cases.
func (m *StateManager) Validate(ctx context.Context, state string) (*models.OAuthState, error) {
	if state == "" {
		return nil, nil
	}

	record, err := m.repo.GetAndDelete(ctx, state)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, nil
		}

		return nil, err
	}

	if record.Expired(m.now()) {
		return nil, nil
	}

	return record, nil
}

// Cleanup removes a state record. It is idempotent and safe to call on
// tokens that were never stored or are already consumed.
func (m *StateManager) Cleanup(ctx context.Context, state string) {
	if state == "" {
		return
	}

	_ = m.repo.Delete(ctx, state)
}

// PurgeExpired removes all expired states. Intended for periodic background
// invocation.
func (m *StateManager) PurgeExpired(ctx context.Context) (int64, error) {
	return m.repo.PurgeExpired(ctx, m.now())
}
