package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/gorilla/mux"

	"github.com/tranquilae/Tranquilae-sub003/audit"
	"github.com/tranquilae/Tranquilae-sub003/models"
	"github.com/tranquilae/Tranquilae-sub003/web/auth"
)

// Callback error reasons surfaced to the dashboard. Deliberately generic:
// the redirect never distinguishes unknown, replayed and expired states.
const (
	callbackErrInvalidService  = "invalid_service"
	callbackErrOAuth           = "oauth_error"
	callbackErrMissingParams   = "missing_params"
	callbackErrInvalidState    = "invalid_state"
	callbackErrServiceMismatch = "service_mismatch"
	callbackErrExchangeFailed  = "exchange_failed"
)

// HandleConnect handles GET /api/integrations/{service}/auth. It returns the
// provider authorization URL the frontend should send the user to.
func (h *IntegrationHandlers) HandleConnect(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.GetUserID(r.Context())
	if err != nil {
		renderError(w, http.StatusUnauthorized, CodeAuthRequired, "User not authenticated")
		return
	}

	service := models.ServiceName(mux.Vars(r)["service"])

	redirectURI := callbackURL(r, service)

	initiation, err := h.Deps.Integrations.BeginConnect(r.Context(), userID, service, redirectURI)
	if err != nil {
		if errors.Is(err, models.ErrInvalidService) {
			renderError(w, http.StatusBadRequest, CodeInvalidService, "Unsupported service")
			return
		}

		h.Deps.Logger.Printf("ERROR %s - user: %s - failed to start OAuth flow: %v", r.URL.Path, userID, err)
		renderError(w, http.StatusInternalServerError, CodeInternal, "Failed to start connection")

		return
	}

	renderJSON(w, http.StatusOK, initiation)
}

// HandleCallback handles GET /api/integrations/{service}/callback. Every
// outcome ends in a 307 redirect back to the dashboard; the pending state
// record is consumed or cleaned up on all paths.
func (h *IntegrationHandlers) HandleCallback(w http.ResponseWriter, r *http.Request) {
	service := models.ServiceName(mux.Vars(r)["service"])
	query := r.URL.Query()
	state := query.Get("state")

	if !models.IsValidService(service) {
		h.Deps.States.Cleanup(r.Context(), state)
		h.redirectError(w, r, callbackErrInvalidService)

		return
	}

	if provErr := query.Get("error"); provErr != "" {
		h.Deps.Logger.Printf("OAuth callback for %s denied by provider: %s", service, provErr)
		h.Deps.States.Cleanup(r.Context(), state)
		h.redirectError(w, r, callbackErrOAuth)

		return
	}

	code := query.Get("code")
	if code == "" || state == "" {
		h.Deps.States.Cleanup(r.Context(), state)
		h.redirectError(w, r, callbackErrMissingParams)

		return
	}

	record, err := h.Deps.States.Validate(r.Context(), state)
	if err != nil {
		h.Deps.Logger.Printf("ERROR %s - state validation failed: %v", r.URL.Path, err)
		h.redirectError(w, r, callbackErrInvalidState)

		return
	}

	if record == nil {
		h.redirectError(w, r, callbackErrInvalidState)
		return
	}

	if record.ServiceName != service {
		// Validate already consumed the record; nothing remains usable.
		h.Deps.Logger.Printf("OAuth callback service mismatch: state is for %s, callback for %s", record.ServiceName, service)
		h.redirectError(w, r, callbackErrServiceMismatch)

		return
	}

	if err := h.Deps.Integrations.CompleteConnect(r.Context(), record, code); err != nil {
		h.Deps.Logger.Printf("ERROR %s - user: %s - token exchange failed: %v", r.URL.Path, record.UserID, err)
		h.redirectError(w, r, callbackErrExchangeFailed)

		return
	}

	h.redirect(w, r, url.Values{"integration_success": {string(service)}})
}

// HandleList handles GET /api/user/integrations.
func (h *IntegrationHandlers) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.GetUserID(r.Context())
	if err != nil {
		renderError(w, http.StatusUnauthorized, CodeAuthRequired, "User not authenticated")
		return
	}

	overview, err := h.Deps.Integrations.Overview(r.Context(), userID)
	if err != nil {
		h.Deps.Logger.Printf("ERROR %s - user: %s - failed to list integrations: %v", r.URL.Path, userID, err)
		renderError(w, http.StatusInternalServerError, CodeInternal, "Failed to list integrations")

		return
	}

	renderJSON(w, http.StatusOK, overview)
}

type updateSettingsRequest struct {
	ServiceName models.ServiceName `json:"serviceName"`
	Settings    map[string]any     `json:"settings"`
}

// HandleUpdateSettings handles PATCH /api/user/integrations.
func (h *IntegrationHandlers) HandleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.GetUserID(r.Context())
	if err != nil {
		renderError(w, http.StatusUnauthorized, CodeAuthRequired, "User not authenticated")
		return
	}

	var req updateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderError(w, http.StatusBadRequest, CodeInvalidInput, "Invalid request body")
		return
	}

	if req.Settings == nil {
		renderError(w, http.StatusBadRequest, CodeInvalidInput, "Settings are required")
		return
	}

	integration, err := h.Deps.Integrations.UpdateSettings(r.Context(), userID, req.ServiceName, req.Settings)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrInvalidService):
			renderError(w, http.StatusBadRequest, CodeInvalidService, "Unsupported service")
		case errors.Is(err, models.ErrNotFound):
			renderError(w, http.StatusNotFound, CodeNotFound, "Integration not connected")
		default:
			h.Deps.Logger.Printf("ERROR %s - user: %s - failed to update settings: %v", r.URL.Path, userID, err)
			renderError(w, http.StatusInternalServerError, CodeInternal, "Failed to update settings")
		}

		return
	}

	h.Deps.Audit.Record(r.Context(), audit.Event{
		Type:     models.AuditSettingsUpdate,
		ActorID:  userID,
		RecordID: integration.ID,
		NewData:  map[string]any{"settings": req.Settings},
		Success:  true,
	}, requestMeta(r))

	renderJSON(w, http.StatusOK, integration)
}

// HandleDisconnect handles DELETE /api/user/integrations/{service}.
func (h *IntegrationHandlers) HandleDisconnect(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.GetUserID(r.Context())
	if err != nil {
		renderError(w, http.StatusUnauthorized, CodeAuthRequired, "User not authenticated")
		return
	}

	service := models.ServiceName(mux.Vars(r)["service"])

	if err := h.Deps.Integrations.Disconnect(r.Context(), userID, service); err != nil {
		if errors.Is(err, models.ErrInvalidService) {
			renderError(w, http.StatusBadRequest, CodeInvalidService, "Unsupported service")
			return
		}

		h.Deps.Logger.Printf("ERROR %s - user: %s - failed to disconnect %s: %v", r.URL.Path, userID, service, err)
		renderError(w, http.StatusInternalServerError, CodeInternal, "Failed to disconnect")

		return
	}

	h.Deps.Audit.Record(r.Context(), audit.Event{
		Type:     models.AuditIntegrationRemove,
		ActorID:  userID,
		Metadata: map[string]any{"service": string(service)},
		Success:  true,
	}, requestMeta(r))

	renderJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *IntegrationHandlers) redirectError(w http.ResponseWriter, r *http.Request, reason string) {
	h.redirect(w, r, url.Values{"integration_error": {reason}})
}

func (h *IntegrationHandlers) redirect(w http.ResponseWriter, r *http.Request, params url.Values) {
	target := h.Deps.DashboardURL + "?" + params.Encode()
	http.Redirect(w, r, target, http.StatusTemporaryRedirect)
}

func callbackURL(r *http.Request, service models.ServiceName) string {
	scheme := "https"
	if r.TLS == nil && r.Header.Get("X-Forwarded-Proto") != "https" {
		scheme = "http"
	}

	return scheme + "://" + r.Host + "/api/integrations/" + string(service) + "/callback"
}
