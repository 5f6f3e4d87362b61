package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/stripe/stripe-go/v81"

	"github.com/tranquilae/Tranquilae-sub003/audit"
	"github.com/tranquilae/Tranquilae-sub003/crawler"
	"github.com/tranquilae/Tranquilae-sub003/models"
	"github.com/tranquilae/Tranquilae-sub003/oauth"
	"github.com/tranquilae/Tranquilae-sub003/subscription"
	"github.com/tranquilae/Tranquilae-sub003/web"
	"github.com/tranquilae/Tranquilae-sub003/web/auth"
)

// Dependencies aggregates shared services used by handlers.
type Dependencies struct {
	Logger        *log.Logger
	Auth          *auth.AuthMiddleware
	Integrations  IntegrationService
	States        *oauth.StateManager
	UserRepo      models.UserRepository
	Ingest        MediaIngestService
	Audit         audit.Sink
	Subscriptions subscription.ServiceInterface
	Stripe        StripeVerifier

	// DashboardURL is the frontend base the OAuth callback redirects to.
	DashboardURL string
	// AdminIngestToken guards the media ingest endpoint.
	AdminIngestToken string
	// StripeWebhookSecret verifies webhook signatures.
	StripeWebhookSecret string
}

// IntegrationService is the slice of web.IntegrationService handlers need.
type IntegrationService interface {
	BeginConnect(ctx context.Context, userID string, service models.ServiceName, redirectURI string) (*web.ConnectInitiation, error)
	CompleteConnect(ctx context.Context, record *models.OAuthState, code string) error
	Overview(ctx context.Context, userID string) (*web.IntegrationOverview, error)
	UpdateSettings(ctx context.Context, userID string, service models.ServiceName, settings map[string]any) (*models.HealthIntegration, error)
	Disconnect(ctx context.Context, userID string, service models.ServiceName) error
}

// MediaIngestService runs a crawl-and-save batch.
type MediaIngestService interface {
	Run(ctx context.Context, seeds []string, opts crawler.Options) (*crawler.IngestResult, error)
}

// StripeVerifier verifies webhook payloads. Satisfied by stripe.Client.
type StripeVerifier interface {
	VerifyWebhook(payload []byte, signature, secret string) (*stripe.Event, error)
}

// HandlerGroup groups all handler categories for routing setup.
type HandlerGroup struct {
	Integration *IntegrationHandlers
	Admin       *AdminHandlers
	Webhook     *WebhookHandlers
}

// NewHandlerGroup constructs a HandlerGroup with initialized handlers.
func NewHandlerGroup(deps Dependencies) *HandlerGroup {
	return &HandlerGroup{
		Integration: &IntegrationHandlers{Deps: deps},
		Admin:       &AdminHandlers{Deps: deps},
		Webhook:     &WebhookHandlers{Deps: deps},
	}
}

// IntegrationHandlers contains the user-facing integration routes.
type IntegrationHandlers struct{ Deps Dependencies }

// AdminHandlers contains the privileged /api/admin routes.
type AdminHandlers struct{ Deps Dependencies }

// WebhookHandlers contains the Stripe webhook route.
type WebhookHandlers struct{ Deps Dependencies }

// Error codes of the JSON error envelope.
const (
	CodeAuthRequired   = "AUTH_REQUIRED"
	CodeForbidden      = "FORBIDDEN"
	CodeInvalidService = "INVALID_SERVICE"
	CodeInvalidInput   = "INVALID_INPUT"
	CodeNotFound       = "NOT_FOUND"
	CodeConflict       = "CONFLICT"
	CodeInternal       = "INTERNAL_ERROR"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

func renderJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func renderError(w http.ResponseWriter, status int, code, message string) {
	renderJSON(w, status, errorEnvelope{Error: errorBody{Code: code, Message: message}})
}

// HandleHealth is the liveness endpoint.
func HandleHealth(w http.ResponseWriter, _ *http.Request) {
	renderJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func requestMeta(r *http.Request) audit.Request {
	ip := r.Header.Get("X-Forwarded-For")
	if ip == "" {
		ip = r.RemoteAddr
	}

	return audit.Request{IPAddress: ip, UserAgent: r.UserAgent()}
}
