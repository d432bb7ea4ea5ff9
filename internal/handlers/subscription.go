package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/campodata/maquinaria-api/internal/authz"
	"github.com/campodata/maquinaria-api/internal/repository"
)

type SubscriptionHandler struct {
	subs           repository.SubscriptionRepository
	vapidPublicKey string
	logger         zerolog.Logger
}

func NewSubscriptionHandler(subs repository.SubscriptionRepository, vapidPublicKey string, logger zerolog.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{
		subs:           subs,
		vapidPublicKey: vapidPublicKey,
		logger:         logger.With().Str("handler", "subscription").Logger(),
	}
}

type registerSubscriptionRequest struct {
	Endpoint string `json:"endpoint"`
	Keys     struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
}

// Register upserts the browser's push subscription keyed on endpoint, so
// re-registration from the same browser replaces rather than duplicates.
func (h *SubscriptionHandler) Register(w http.ResponseWriter, r *http.Request) {
	userID, ok := authz.UserIDFromRequest(r)
	if !ok {
		http.Error(w, "Missing user context", http.StatusUnauthorized)
		return
	}

	var req registerSubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Endpoint = strings.TrimSpace(req.Endpoint)
	if req.Endpoint == "" || req.Keys.P256dh == "" || req.Keys.Auth == "" {
		writeError(w, http.StatusBadRequest, "endpoint and keys are required")
		return
	}

	sub, err := h.subs.Upsert(r.Context(), userID, req.Endpoint, req.Keys.P256dh, req.Keys.Auth)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("failed to register push subscription")
		writeError(w, http.StatusInternalServerError, "failed to register subscription")
		return
	}

	writeJSON(w, http.StatusCreated, sub)
}

type unsubscribeRequest struct {
	Endpoint string `json:"endpoint"`
}

// Unsubscribe removes the caller's subscription for an endpoint. The delete
// is scoped to the authenticated user, so an endpoint registered by someone
// else is untouched. Removing an endpoint that is already gone still succeeds.
func (h *SubscriptionHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	userID, ok := authz.UserIDFromRequest(r)
	if !ok {
		http.Error(w, "Missing user context", http.StatusUnauthorized)
		return
	}

	var req unsubscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Endpoint) == "" {
		writeError(w, http.StatusBadRequest, "endpoint is required")
		return
	}

	if err := h.subs.DeleteOwned(r.Context(), strings.TrimSpace(req.Endpoint), userID); err != nil {
		h.logger.Error().Err(err).Msg("failed to delete push subscription")
		writeError(w, http.StatusInternalServerError, "failed to unsubscribe")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// PublicKey hands the browser the VAPID public key it needs to subscribe.
func (h *SubscriptionHandler) PublicKey(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"public_key": h.vapidPublicKey})
}
