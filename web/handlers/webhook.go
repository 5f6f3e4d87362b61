package handlers

import (
	"io"
	"net/http"
)

// HandleStripeWebhook handles POST /webhooks/stripe.
func (h *WebhookHandlers) HandleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		h.Deps.Logger.Printf("ERROR %s - failed to read webhook body: %v", r.URL.Path, err)
		http.Error(w, "Failed to read request body", http.StatusBadRequest)

		return
	}

	signature := r.Header.Get("Stripe-Signature")
	if signature == "" {
		http.Error(w, "Missing Stripe-Signature header", http.StatusBadRequest)
		return
	}

	event, err := h.Deps.Stripe.VerifyWebhook(body, signature, h.Deps.StripeWebhookSecret)
	if err != nil {
		h.Deps.Logger.Printf("ERROR %s - webhook signature verification failed: %v", r.URL.Path, err)
		http.Error(w, "Invalid webhook signature", http.StatusBadRequest)

		return
	}

	if err := h.Deps.Subscriptions.ProcessWebhookEvent(r.Context(), event); err != nil {
		h.Deps.Logger.Printf("ERROR %s - failed to process webhook event %s (ID: %s): %v", r.URL.Path, event.Type, event.ID, err)
		http.Error(w, "Failed to process webhook event", http.StatusInternalServerError)

		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
