package handlers

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/tranquilae/Tranquilae-sub003/audit"
	"github.com/tranquilae/Tranquilae-sub003/crawler"
	"github.com/tranquilae/Tranquilae-sub003/models"
	"github.com/tranquilae/Tranquilae-sub003/web/auth"
)

// AdminTokenHeader guards the media ingest endpoint. The check is an exact
// match against the configured token and happens before any other work.
const AdminTokenHeader = "X-Admin-Token"

// requireAdmin resolves the session user and enforces the admin role. A
// non-admin caller gets a 403 after a security audit entry is written.
func (h *AdminHandlers) requireAdmin(w http.ResponseWriter, r *http.Request) (models.User, bool) {
	user, err := auth.GetUser(r.Context())
	if err != nil {
		renderError(w, http.StatusUnauthorized, CodeAuthRequired, "User not authenticated")
		return models.User{}, false
	}

	if !user.IsAdmin() {
		h.Deps.Audit.Record(r.Context(), audit.Event{
			Type:     models.AuditAccessDenied,
			ActorID:  user.ID,
			Metadata: map[string]any{"path": r.URL.Path, "method": r.Method},
			Success:  false,
		}, requestMeta(r))

		renderError(w, http.StatusForbidden, CodeForbidden, "Admin privileges required")

		return models.User{}, false
	}

	return user, true
}

// HandleSuspendUser handles POST /api/admin/users/{id}/suspend.
func (h *AdminHandlers) HandleSuspendUser(w http.ResponseWriter, r *http.Request) {
	admin, ok := h.requireAdmin(w, r)
	if !ok {
		return
	}

	targetID := mux.Vars(r)["id"]

	// Admins cannot suspend their own account. Rejected before any lookup
	// or mutation.
	if targetID == admin.ID {
		renderError(w, http.StatusBadRequest, CodeInvalidInput, "Cannot suspend your own account")
		return
	}

	target, err := h.Deps.UserRepo.GetByID(r.Context(), targetID)
	if err != nil {
		h.renderUserError(w, r, admin.ID, targetID, err)
		return
	}

	if err := h.Deps.UserRepo.UpdateStatus(r.Context(), targetID, models.UserStatusSuspended); err != nil {
		h.renderUserError(w, r, admin.ID, targetID, err)
		return
	}

	h.Deps.Audit.Record(r.Context(), audit.Event{
		Type:     models.AuditUserSuspend,
		ActorID:  admin.ID,
		RecordID: targetID,
		OldData:  map[string]any{"status": target.Status},
		NewData:  map[string]any{"status": models.UserStatusSuspended},
		Success:  true,
	}, requestMeta(r))

	renderJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// HandleActivateUser handles POST /api/admin/users/{id}/activate.
func (h *AdminHandlers) HandleActivateUser(w http.ResponseWriter, r *http.Request) {
	admin, ok := h.requireAdmin(w, r)
	if !ok {
		return
	}

	targetID := mux.Vars(r)["id"]

	target, err := h.Deps.UserRepo.GetByID(r.Context(), targetID)
	if err != nil {
		h.renderUserError(w, r, admin.ID, targetID, err)
		return
	}

	if err := h.Deps.UserRepo.UpdateStatus(r.Context(), targetID, models.UserStatusActive); err != nil {
		h.renderUserError(w, r, admin.ID, targetID, err)
		return
	}

	h.Deps.Audit.Record(r.Context(), audit.Event{
		Type:     models.AuditUserActivate,
		ActorID:  admin.ID,
		RecordID: targetID,
		OldData:  map[string]any{"status": target.Status},
		NewData:  map[string]any{"status": models.UserStatusActive},
		Success:  true,
	}, requestMeta(r))

	renderJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type emailChangeRequest struct {
	Email string `json:"email"`
}

// HandleChangeEmail handles PUT /api/admin/users/{id}/email.
func (h *AdminHandlers) HandleChangeEmail(w http.ResponseWriter, r *http.Request) {
	admin, ok := h.requireAdmin(w, r)
	if !ok {
		return
	}

	targetID := mux.Vars(r)["id"]

	var req emailChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderError(w, http.StatusBadRequest, CodeInvalidInput, "Invalid request body")
		return
	}

	email := strings.TrimSpace(strings.ToLower(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		renderError(w, http.StatusBadRequest, CodeInvalidInput, "A valid email is required")
		return
	}

	target, err := h.Deps.UserRepo.GetByID(r.Context(), targetID)
	if err != nil {
		h.renderUserError(w, r, admin.ID, targetID, err)
		return
	}

	if existing, err := h.Deps.UserRepo.GetByEmail(r.Context(), email); err == nil && existing.ID != targetID {
		renderError(w, http.StatusConflict, CodeConflict, "Email already in use")
		return
	}

	if err := h.Deps.UserRepo.UpdateEmail(r.Context(), targetID, email); err != nil {
		h.renderUserError(w, r, admin.ID, targetID, err)
		return
	}

	h.Deps.Audit.Record(r.Context(), audit.Event{
		Type:     models.AuditUserEmailChange,
		ActorID:  admin.ID,
		RecordID: targetID,
		OldData:  map[string]any{"email": target.Email},
		NewData:  map[string]any{"email": email},
		Success:  true,
	}, requestMeta(r))

	renderJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// HandleBillingSync handles POST /api/admin/users/{id}/billing/sync. It
// forces a re-read of the user's Stripe subscription state.
func (h *AdminHandlers) HandleBillingSync(w http.ResponseWriter, r *http.Request) {
	admin, ok := h.requireAdmin(w, r)
	if !ok {
		return
	}

	targetID := mux.Vars(r)["id"]

	if err := h.Deps.Subscriptions.SyncFromStripe(r.Context(), targetID); err != nil {
		h.Deps.Logger.Printf("ERROR %s - admin: %s - billing resync for %s failed: %v", r.URL.Path, admin.ID, targetID, err)
		renderError(w, http.StatusInternalServerError, CodeInternal, "Billing resync failed")

		return
	}

	h.Deps.Audit.Record(r.Context(), audit.Event{
		Type:     models.AuditBillingResync,
		ActorID:  admin.ID,
		RecordID: targetID,
		Success:  true,
	}, requestMeta(r))

	renderJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type ingestRequest struct {
	Seeds    []string `json:"seeds"`
	MaxDepth int      `json:"maxDepth"`
	MaxPages int      `json:"maxPages"`
	DelayMs  int      `json:"delayMs"`
}

type ingestResponse struct {
	Success bool `json:"success"`
	Pages   int  `json:"pages"`
	Items   int  `json:"items"`
	Saved   int  `json:"saved"`
}

// HandleMediaIngest handles POST /api/admin/exercises/media/ingest. The
// token check runs before the body is read, so an unauthorized caller never
// triggers any crawling.
func (h *AdminHandlers) HandleMediaIngest(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get(AdminTokenHeader)

	if h.Deps.AdminIngestToken == "" ||
		subtle.ConstantTimeCompare([]byte(token), []byte(h.Deps.AdminIngestToken)) != 1 {
		h.Deps.Audit.Record(r.Context(), audit.Event{
			Type:     models.AuditAuthFailed,
			ActorID:  "admin-token",
			Metadata: map[string]any{"path": r.URL.Path},
			Success:  false,
		}, requestMeta(r))

		renderError(w, http.StatusUnauthorized, CodeAuthRequired, "Invalid admin token")

		return
	}

	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderError(w, http.StatusBadRequest, CodeInvalidInput, "Invalid request body")
		return
	}

	if len(req.Seeds) == 0 {
		renderError(w, http.StatusBadRequest, CodeInvalidInput, "At least one seed URL is required")
		return
	}

	opts := crawler.Options{
		MaxDepth: req.MaxDepth,
		MaxPages: req.MaxPages,
		Delay:    time.Duration(req.DelayMs) * time.Millisecond,
	}

	result, err := h.Deps.Ingest.Run(r.Context(), req.Seeds, opts)
	if err != nil {
		h.Deps.Logger.Printf("ERROR %s - media ingest failed: %v", r.URL.Path, err)
		renderError(w, http.StatusInternalServerError, CodeInternal, "Ingest failed")

		return
	}

	h.Deps.Audit.Record(r.Context(), audit.Event{
		Type:    models.AuditMediaIngest,
		ActorID: "admin-token",
		Metadata: map[string]any{
			"seeds": req.Seeds,
			"pages": result.Pages,
			"items": result.Items,
			"saved": result.Saved,
		},
		Success: true,
	}, requestMeta(r))

	renderJSON(w, http.StatusOK, ingestResponse{
		Success: true,
		Pages:   result.Pages,
		Items:   result.Items,
		Saved:   result.Saved,
	})
}

func (h *AdminHandlers) renderUserError(w http.ResponseWriter, r *http.Request, adminID, targetID string, err error) {
	if errors.Is(err, models.ErrNotFound) {
		renderError(w, http.StatusNotFound, CodeNotFound, "User not found")
		return
	}

	h.Deps.Logger.Printf("ERROR %s - admin: %s - user operation on %s failed: %v", r.URL.Path, adminID, targetID, err)
	renderError(w, http.StatusInternalServerError, CodeInternal, "Operation failed")
}
