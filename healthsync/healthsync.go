// Package healthsync pulls fresh measurements for connected integrations.
// Runs are triggered from the task queue after a connect and on schedule.
package healthsync

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/tranquilae/Tranquilae-sub003/models"
	"github.com/tranquilae/Tranquilae-sub003/oauth"
	"github.com/tranquilae/Tranquilae-sub003/pkg/encryption"
)

// Fetcher pulls data points from one provider's API using an authenticated
// client. Implementations exist per service; services without a server-side
// pull API (apple_health pushes from the device) have none.
type Fetcher interface {
	Fetch(ctx context.Context, client *http.Client, since time.Time) ([]models.HealthDataPoint, error)
}

// Service orchestrates one sync: refresh expired tokens, pull data, append
// points, and flip the integration's sync status.
type Service struct {
	registry *oauth.Registry
	repo     models.IntegrationRepository
	data     models.HealthDataRepository
	cipher   *encryption.Cipher
	fetchers map[models.ServiceName]Fetcher
	logger   *log.Logger
	now      func() time.Time
}

func NewService(
	registry *oauth.Registry,
	repo models.IntegrationRepository,
	data models.HealthDataRepository,
	cipher *encryption.Cipher,
	logger *log.Logger,
) *Service {
	if logger == nil {
		logger = log.Default()
	}

	return &Service{
		registry: registry,
		repo:     repo,
		data:     data,
		cipher:   cipher,
		fetchers: map[models.ServiceName]Fetcher{
			models.ServiceGoogleFit: &googleFitFetcher{},
			models.ServiceFitbit:    &fitbitFetcher{},
		},
		logger: logger,
		now:    time.Now,
	}
}

// Sync refreshes tokens if needed and appends newly fetched data points.
func (s *Service) Sync(ctx context.Context, userID string, service models.ServiceName) error {
	integration, err := s.repo.Get(ctx, userID, service)
	if err != nil {
		return fmt.Errorf("failed to load integration: %w", err)
	}

	if err := s.setSyncStatus(ctx, userID, service, models.SyncRunning, ""); err != nil {
		return err
	}

	accessToken, err := s.freshAccessToken(ctx, integration)
	if err != nil {
		s.markError(ctx, userID, service, fmt.Sprintf("token refresh failed: %v", err))
		return err
	}

	fetcher, ok := s.fetchers[service]
	if !ok {
		// Nothing to pull server-side. The device pushes directly.
		return s.setSyncStatus(ctx, userID, service, models.SyncIdle, "")
	}

	since := s.now().UTC().Add(-7 * 24 * time.Hour)
	if integration.LastSyncAt != nil {
		since = *integration.LastSyncAt
	}

	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	}))

	points, err := fetcher.Fetch(ctx, client, since)
	if err != nil {
		s.markError(ctx, userID, service, fmt.Sprintf("data fetch failed: %v", err))
		return fmt.Errorf("fetch for %s: %w", service, err)
	}

	for i := range points {
		points[i].UserID = userID
		points[i].IntegrationID = integration.ID
	}

	if err := s.data.Insert(ctx, points); err != nil {
		s.markError(ctx, userID, service, fmt.Sprintf("data store failed: %v", err))
		return fmt.Errorf("store points for %s: %w", service, err)
	}

	now := s.now().UTC()
	status := models.SyncIdle
	errMsg := ""

	_, err = s.repo.Patch(ctx, userID, service, models.IntegrationPatch{
		SyncStatus:   &status,
		LastSyncAt:   &now,
		ErrorMessage: &errMsg,
	})
	if err != nil {
		return fmt.Errorf("failed to finalize sync: %w", err)
	}

	s.logger.Printf("synced %d points for user %s service %s", len(points), userID, service)

	return nil
}

// freshAccessToken decrypts the stored access token, refreshing it first when
// it is at or past expiry and a refresh token exists.
func (s *Service) freshAccessToken(ctx context.Context, integration *models.HealthIntegration) (string, error) {
	if s.now().UTC().Before(integration.TokenExpiresAt.Add(-time.Minute)) {
		return s.cipher.Decrypt(string(integration.AccessToken))
	}

	if len(integration.RefreshToken) == 0 {
		return "", fmt.Errorf("access token expired and no refresh token stored")
	}

	provider, err := s.registry.Lookup(integration.ServiceName)
	if err != nil {
		return "", err
	}

	refreshToken, err := s.cipher.Decrypt(string(integration.RefreshToken))
	if err != nil {
		return "", fmt.Errorf("failed to decrypt refresh token: %w", err)
	}

	tokens, err := provider.Refresh(ctx, refreshToken)
	if err != nil {
		return "", err
	}

	access, err := s.cipher.Encrypt(tokens.AccessToken)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt access token: %w", err)
	}

	integration.AccessToken = []byte(access)
	integration.TokenExpiresAt = tokens.ExpiresAt(s.now().UTC())

	if tokens.RefreshToken != "" {
		refreshed, err := s.cipher.Encrypt(tokens.RefreshToken)
		if err != nil {
			return "", fmt.Errorf("failed to encrypt refresh token: %w", err)
		}

		integration.RefreshToken = []byte(refreshed)
	}

	if err := s.repo.Upsert(ctx, integration); err != nil {
		return "", fmt.Errorf("failed to persist refreshed tokens: %w", err)
	}

	return tokens.AccessToken, nil
}

func (s *Service) setSyncStatus(ctx context.Context, userID string, service models.ServiceName, status, errMsg string) error {
	_, err := s.repo.Patch(ctx, userID, service, models.IntegrationPatch{
		SyncStatus:   &status,
		ErrorMessage: &errMsg,
	})
	if err != nil {
		return fmt.Errorf("failed to set sync status: %w", err)
	}

	return nil
}

// markError is best effort: the original failure is what propagates.
func (s *Service) markError(ctx context.Context, userID string, service models.ServiceName, msg string) {
	syncStatus := models.SyncError
	status := models.IntegrationError

	_, err := s.repo.Patch(ctx, userID, service, models.IntegrationPatch{
		Status:       &status,
		SyncStatus:   &syncStatus,
		ErrorMessage: &msg,
	})
	if err != nil {
		s.logger.Printf("failed to mark integration error for user %s service %s: %v", userID, service, err)
	}
}
