package models

import (
	"context"
	"time"
)

// OAuthState is a short-lived record created when a user starts connecting an
// external health service. It carries the CSRF state token and, for PKCE
// providers, the code verifier needed for the token exchange.
//
// A state is single-use: the callback handler consumes it exactly once and it
// is rejected after its expiry regardless of whether it was ever used.
type OAuthState struct {
	State        string      `json:"state"`
	UserID       string      `json:"user_id"`
	ServiceName  ServiceName `json:"service_name"`
	CodeVerifier string      `json:"-"` // empty for non-PKCE providers
	RedirectURI  string      `json:"redirect_uri"`
	Scopes       []string    `json:"scopes"`
	ExpiresAt    time.Time   `json:"expires_at"`
	CreatedAt    time.Time   `json:"created_at"`
}

// Expired reports whether the state is past its TTL.
func (s *OAuthState) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// OAuthStateRepository persists pending OAuth flow states.
type OAuthStateRepository interface {
	Save(ctx context.Context, state *OAuthState) error

	// GetAndDelete atomically retrieves and removes a state, enforcing
	// single-use semantics. Returns ErrNotFound if the token is unknown.
	GetAndDelete(ctx context.Context, state string) (*OAuthState, error)

	// Delete is an idempotent removal, safe if the row is already gone.
	Delete(ctx context.Context, state string) error

	// PurgeExpired removes states past their expiry and returns the count.
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}
