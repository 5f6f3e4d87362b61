// Package web carries the HTTP surface of the platform: session auth,
// middleware, JSON handlers and the integration service they share.
package web

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/tranquilae/Tranquilae-sub003/models"
	"github.com/tranquilae/Tranquilae-sub003/oauth"
	"github.com/tranquilae/Tranquilae-sub003/pkg/encryption"
)

// SyncScheduler enqueues a background health-data sync for a freshly
// connected integration.
type SyncScheduler interface {
	EnqueueHealthSync(ctx context.Context, userID string, service models.ServiceName) error
}

// IntegrationService ties the OAuth flow to the integration store: it builds
// authorization URLs, completes the token exchange, encrypts tokens at rest
// and computes the per-user integration overview.
type IntegrationService struct {
	registry  *oauth.Registry
	states    *oauth.StateManager
	repo      models.IntegrationRepository
	cipher    *encryption.Cipher
	scheduler SyncScheduler
	logger    *log.Logger
}

func NewIntegrationService(
	registry *oauth.Registry,
	states *oauth.StateManager,
	repo models.IntegrationRepository,
	cipher *encryption.Cipher,
	scheduler SyncScheduler,
	logger *log.Logger,
) *IntegrationService {
	return &IntegrationService{
		registry:  registry,
		states:    states,
		repo:      repo,
		cipher:    cipher,
		scheduler: scheduler,
		logger:    logger,
	}
}

// ConnectInitiation is returned when a user starts connecting a service.
type ConnectInitiation struct {
	AuthURL     string             `json:"authUrl"`
	State       string             `json:"state"`
	ServiceName models.ServiceName `json:"serviceName"`
}

// BeginConnect validates the service name, persists a pending state record
// and returns the provider authorization URL.
func (s *IntegrationService) BeginConnect(ctx context.Context, userID string, service models.ServiceName, redirectURI string) (*ConnectInitiation, error) {
	provider, err := s.registry.Lookup(service)
	if err != nil {
		return nil, err
	}

	record, err := s.states.Create(ctx, userID, provider, redirectURI)
	if err != nil {
		return nil, err
	}

	var challenge string

	if record.CodeVerifier != "" {
		challenge, err = oauth.CodeChallenge(record.CodeVerifier, oauth.ChallengeS256)
		if err != nil {
			s.states.Cleanup(ctx, record.State)
			return nil, err
		}
	}

	return &ConnectInitiation{
		AuthURL:     provider.BuildAuthURL(record.State, challenge),
		State:       record.State,
		ServiceName: service,
	}, nil
}

// CompleteConnect exchanges the authorization code from a validated state
// record, encrypts the returned tokens and upserts the integration row.
// Reconnecting an already connected service replaces the tokens in place.
func (s *IntegrationService) CompleteConnect(ctx context.Context, record *models.OAuthState, code string) error {
	provider, err := s.registry.Lookup(record.ServiceName)
	if err != nil {
		return err
	}

	tokens, err := provider.Exchange(ctx, code, record.CodeVerifier)
	if err != nil {
		return err
	}

	access, err := s.cipher.Encrypt(tokens.AccessToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt access token: %w", err)
	}

	var refresh []byte

	if tokens.RefreshToken != "" {
		enc, err := s.cipher.Encrypt(tokens.RefreshToken)
		if err != nil {
			return fmt.Errorf("failed to encrypt refresh token: %w", err)
		}

		refresh = []byte(enc)
	}

	scopes := record.Scopes
	if tokens.Scope != "" {
		scopes = oauth.SplitScope(tokens.Scope)
	}

	integration := &models.HealthIntegration{
		UserID:         record.UserID,
		ServiceName:    record.ServiceName,
		Status:         models.IntegrationConnected,
		AccessToken:    []byte(access),
		RefreshToken:   refresh,
		TokenExpiresAt: tokens.ExpiresAt(time.Now().UTC()),
		Scopes:         scopes,
		SyncStatus:     models.SyncIdle,
	}

	if err := s.repo.Upsert(ctx, integration); err != nil {
		return fmt.Errorf("failed to save integration: %w", err)
	}

	if s.scheduler != nil {
		if err := s.scheduler.EnqueueHealthSync(ctx, record.UserID, record.ServiceName); err != nil {
			s.logger.Printf("failed to enqueue initial sync for user %s service %s: %v", record.UserID, record.ServiceName, err)
		}
	}

	return nil
}

// AccessToken decrypts the stored access token of an integration.
func (s *IntegrationService) AccessToken(integration *models.HealthIntegration) (string, error) {
	return s.cipher.Decrypt(string(integration.AccessToken))
}

// IntegrationStats summarizes a user's connections.
type IntegrationStats struct {
	Total     int `json:"total"`
	Connected int `json:"connected"`
	Errors    int `json:"errors"`
}

// IntegrationOverview is the response of the integrations listing: the rows
// the user has, the catalog services still available to connect, and counts.
type IntegrationOverview struct {
	Integrations      []models.HealthIntegration `json:"integrations"`
	AvailableServices []models.ServiceName       `json:"availableServices"`
	Stats             IntegrationStats           `json:"stats"`
}

// Overview lists a user's integrations plus the set difference of the
// provider catalog minus their connected services.
func (s *IntegrationService) Overview(ctx context.Context, userID string) (*IntegrationOverview, error) {
	integrations, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	connected := make(map[models.ServiceName]bool, len(integrations))

	stats := IntegrationStats{Total: len(integrations)}

	for i := range integrations {
		connected[integrations[i].ServiceName] = true

		switch integrations[i].Status {
		case models.IntegrationConnected:
			stats.Connected++
		case models.IntegrationError:
			stats.Errors++
		}
	}

	available := make([]models.ServiceName, 0, len(models.SupportedServices))

	for _, svc := range s.registry.Services() {
		if !connected[svc] {
			available = append(available, svc)
		}
	}

	return &IntegrationOverview{
		Integrations:      integrations,
		AvailableServices: available,
		Stats:             stats,
	}, nil
}

// UpdateSettings applies a partial settings update to one integration.
func (s *IntegrationService) UpdateSettings(ctx context.Context, userID string, service models.ServiceName, settings map[string]any) (*models.HealthIntegration, error) {
	if _, err := s.registry.Lookup(service); err != nil {
		return nil, err
	}

	return s.repo.Patch(ctx, userID, service, models.IntegrationPatch{Settings: settings})
}

// Disconnect removes the integration row. The stored tokens go with it.
func (s *IntegrationService) Disconnect(ctx context.Context, userID string, service models.ServiceName) error {
	if _, err := s.registry.Lookup(service); err != nil {
		return err
	}

	return s.repo.Delete(ctx, userID, service)
}
