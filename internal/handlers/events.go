package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/campodata/maquinaria-api/internal/authz"
	"github.com/campodata/maquinaria-api/internal/realtime"
)

// SessionRegistry is the surface of the realtime listener the events handler
// needs: register a sink for a connected client and drop it on disconnect.
type SessionRegistry interface {
	Attach(sessionID, userID string, sink realtime.Sink)
	Detach(sessionID string)
}

// heartbeatInterval keeps idle SSE connections from being reaped by proxies.
const heartbeatInterval = 30 * time.Second

type EventsHandler struct {
	registry SessionRegistry
	logger   zerolog.Logger
}

func NewEventsHandler(registry SessionRegistry, logger zerolog.Logger) *EventsHandler {
	return &EventsHandler{
		registry: registry,
		logger:   logger.With().Str("handler", "events").Logger(),
	}
}

// toastSink buffers toasts for one SSE connection. Show drops the toast when
// the buffer is full rather than block the listener's fan-out loop; a slow
// client misses a transient alert, nothing more.
type toastSink struct {
	ch chan realtime.Toast
}

func (s *toastSink) Show(toast realtime.Toast) {
	select {
	case s.ch <- toast:
	default:
	}
}

// Stream holds an SSE connection open and forwards every toast decided for
// the authenticated user until the client disconnects. Each connection is its
// own session, so the same user in two browser tabs gets two streams.
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	userID, ok := authz.UserIDFromRequest(r)
	if !ok {
		http.Error(w, "Missing user context", http.StatusUnauthorized)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	sessionID := uuid.NewString()
	sink := &toastSink{ch: make(chan realtime.Toast, 16)}
	h.registry.Attach(sessionID, userID, sink)
	defer h.registry.Detach(sessionID)

	h.logger.Debug().Str("session_id", sessionID).Str("user_id", userID).Msg("event stream opened")

	// An immediate comment line commits the response headers so the browser's
	// EventSource fires its open event right away.
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			h.logger.Debug().Str("session_id", sessionID).Msg("event stream closed")
			return
		case toast := <-sink.ch:
			data, err := json.Marshal(toast)
			if err != nil {
				h.logger.Warn().Err(err).Msg("failed to encode toast")
				continue
			}
			fmt.Fprintf(w, "event: toast\ndata: %s\n\n", data)
			flusher.Flush()
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		}
	}
}
