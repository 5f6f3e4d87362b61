// Package oauth implements the authorization-code flow used to connect
// third-party health services: state and PKCE management, provider-specific
// authorization URLs, and the token exchange client.
package oauth

import (
	"context"
	"fmt"
	"net/http"

	"github.com/tranquilae/Tranquilae-sub003/models"
)

// Provider is the capability set each supported health service implements.
// One variant exists per service, selected via the Registry lookup table.
type Provider interface {
	Name() models.ServiceName
	Scopes() []string
	SupportsPKCE() bool

	// BuildAuthURL returns the provider's authorization URL carrying
	// client_id, redirect_uri, scope, state and, when PKCE is used, the
	// code challenge.
	BuildAuthURL(state, codeChallenge string) string

	Exchange(ctx context.Context, code, codeVerifier string) (*TokenResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error)
}

// Credentials hold the per-provider OAuth client registration.
type Credentials struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
}

// Configured reports whether the provider can be offered to users.
func (c Credentials) Configured() bool {
	return c.ClientID != "" && c.RedirectURI != ""
}

// Registry maps service names to their provider implementations.
type Registry struct {
	providers map[models.ServiceName]Provider
}

func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[models.ServiceName]Provider, len(providers))}
	for _, p := range providers {
		r.providers[p.Name()] = p
	}

	return r
}

// Lookup returns the provider for a service name, failing fast with
// models.ErrInvalidService before any persistence or network activity.
func (r *Registry) Lookup(name models.ServiceName) (Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrInvalidService, name)
	}

	return p, nil
}

// Services lists the registered service names.
func (r *Registry) Services() []models.ServiceName {
	out := make([]models.ServiceName, 0, len(r.providers))
	for _, s := range models.SupportedServices {
		if _, ok := r.providers[s]; ok {
			out = append(out, s)
		}
	}

	return out
}

// HTTPClient returns a client with the default exchange timeout applied.
func HTTPClient() *http.Client {
	return &http.Client{Timeout: DefaultExchangeTimeout}
}
