// Package realtime feeds connected clients a live toast for every freshly
// inserted notification. Inserts reach the listener over Postgres NOTIFY
// (the notificaciones table carries an insert trigger calling pg_notify), so
// no polling is involved.
//
// The per-session filter here is intentionally looser than the push
// eligibility predicate: any session sees any record it did not author and
// that is not suppressed as noise. Toasts are a convenience layer; web push
// remains the authoritative, hierarchy-filtered channel.
package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/campodata/maquinaria-api/internal/models"
)

// Channel is the NOTIFY channel the insert trigger publishes to.
const Channel = "notificaciones_nueva"

// maxDuracionSuprimida is the FIN duration, in minutes, at or below which an
// execution is considered noise and produces no toast.
const maxDuracionSuprimida = 5

type ToastKind string

const (
	ToastInicio ToastKind = "inicio"
	ToastFin    ToastKind = "fin"
	ToastInfo   ToastKind = "info"
)

// Toast is one transient, auto-dismissing in-app alert.
type Toast struct {
	Kind     ToastKind     `json:"kind"`
	Titulo   string        `json:"titulo"`
	Mensaje  string        `json:"mensaje"`
	Duration time.Duration `json:"duration"`
}

// Sink receives the toasts decided for one session. Show must not block.
type Sink interface {
	Show(toast Toast)
}

// Decide applies the per-session suppression rules to an incoming record and
// builds the toast to render. ok is false when the record must be
// suppressed: self-authored records (the user just performed the action
// themselves) and FIN records of five minutes or less.
func Decide(rec models.Notification, userID string) (Toast, bool) {
	if rec.CreatedBy != nil && *rec.CreatedBy == userID {
		return Toast{}, false
	}
	if rec.Tipo == models.NotificationTypeFin {
		if min, ok := rec.DuracionMin(); ok && min <= maxDuracionSuprimida {
			return Toast{}, false
		}
	}

	toast := Toast{Titulo: rec.Titulo, Mensaje: rec.Mensaje}
	switch rec.Tipo {
	case models.NotificationTypeInicio:
		toast.Kind = ToastInicio
		toast.Duration = 5 * time.Second
	case models.NotificationTypeFin:
		toast.Kind = ToastFin
		toast.Duration = 8 * time.Second
	default:
		toast.Kind = ToastInfo
		toast.Duration = 5 * time.Second
	}
	return toast, true
}

type session struct {
	userID string
	sink   Sink
}

// Listener holds one LISTEN subscription for the process lifetime and fans
// incoming records out to the attached sessions.
type Listener struct {
	pq     *pq.Listener
	logger zerolog.Logger

	mu       sync.RWMutex
	sessions map[string]session
}

// New opens the LISTEN subscription. The underlying pq.Listener handles
// reconnection on its own; we only log the transitions.
func New(conninfo string, logger zerolog.Logger) (*Listener, error) {
	componentLogger := logger.With().Str("component", "realtime_listener").Logger()

	reportProblem := func(ev pq.ListenerEventType, err error) {
		if err != nil {
			componentLogger.Warn().Err(err).Int("event", int(ev)).Msg("listener connection event")
		}
	}

	pqListener := pq.NewListener(conninfo, 10*time.Second, time.Minute, reportProblem)
	if err := pqListener.Listen(Channel); err != nil {
		pqListener.Close()
		return nil, err
	}

	return &Listener{
		pq:       pqListener,
		logger:   componentLogger,
		sessions: make(map[string]session),
	}, nil
}

// Attach registers a session. Re-attaching a session ID replaces the sink,
// which matches logout/login with the same session key.
func (l *Listener) Attach(sessionID, userID string, sink Sink) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sessions[sessionID] = session{userID: userID, sink: sink}
}

// Detach tears down a session on logout. Detaching an unknown session is a
// no-op.
func (l *Listener) Detach(sessionID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.sessions, sessionID)
}

// Run consumes notifications until the context is cancelled. Each payload is
// handled to completion before the next is read; a malformed payload is
// dropped without disturbing the subscription.
func (l *Listener) Run(ctx context.Context) error {
	defer l.pq.Close()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case n := <-l.pq.Notify:
			if n == nil {
				// nil is delivered after a reconnect; events may have been
				// missed but push delivery covers the gap.
				continue
			}
			l.handlePayload([]byte(n.Extra))
		case <-time.After(90 * time.Second):
			go l.pq.Ping()
		}
	}
}

func (l *Listener) handlePayload(payload []byte) {
	var rec models.Notification
	if err := json.Unmarshal(payload, &rec); err != nil {
		// One bad event must not disable future events; the user simply
		// never sees a toast for it.
		l.logger.Warn().Err(err).Msg("dropping malformed notification payload")
		return
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, s := range l.sessions {
		if toast, ok := Decide(rec, s.userID); ok {
			s.sink.Show(toast)
		}
	}
}
