package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/campodata/maquinaria-api/internal/models"
)

// PushDispatcher is the slice of the dispatcher the trigger endpoint needs.
type PushDispatcher interface {
	Dispatch(ctx context.Context, rec models.Notification) (int, error)
}

// NotifyHandler is the webhook target invoked once per inserted notification
// record.
type NotifyHandler struct {
	dispatcher PushDispatcher
	logger     zerolog.Logger
}

func NewNotifyHandler(dispatcher PushDispatcher, logger zerolog.Logger) *NotifyHandler {
	return &NotifyHandler{
		dispatcher: dispatcher,
		logger:     logger.With().Str("handler", "notify").Logger(),
	}
}

// Dispatch accepts either the webhook shape {"record": {...}} or a bare
// notification record, fans the record out to eligible push subscriptions,
// and reports how many were targeted. Partial delivery failures never fail
// the call; only a snapshot fetch or configuration problem does.
func (h *NotifyHandler) Dispatch(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unable to read request body")
		return
	}

	rec, err := decodeTriggerPayload(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sent, err := h.dispatcher.Dispatch(r.Context(), rec)
	if err != nil {
		h.logger.Error().Err(err).Str("notification_id", rec.ID).Msg("dispatch failed")
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"sent_to": sent,
	})
}

// decodeTriggerPayload checks for the webhook wrapper key first and falls
// back to treating the body as a record.
func decodeTriggerPayload(body []byte) (models.Notification, error) {
	var wrapped struct {
		Record *models.Notification `json:"record"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil && wrapped.Record != nil {
		return *wrapped.Record, nil
	}

	var rec models.Notification
	if err := json.Unmarshal(body, &rec); err != nil {
		return models.Notification{}, errors.New("invalid trigger payload")
	}
	return rec, nil
}
