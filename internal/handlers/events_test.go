package handlers

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/campodata/maquinaria-api/internal/authz"
	"github.com/campodata/maquinaria-api/internal/models"
	"github.com/campodata/maquinaria-api/internal/realtime"
)

type fakeRegistry struct {
	mu        sync.Mutex
	attached  chan struct{}
	sessionID string
	userID    string
	sink      realtime.Sink
	detached  []string
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{attached: make(chan struct{}, 1)}
}

func (f *fakeRegistry) Attach(sessionID, userID string, sink realtime.Sink) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessionID = sessionID
	f.userID = userID
	f.sink = sink
	f.attached <- struct{}{}
}

func (f *fakeRegistry) Detach(sessionID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detached = append(f.detached, sessionID)
}

// streamRecorder is a flushable ResponseWriter whose body is safe to read
// while the handler goroutine is still writing.
type streamRecorder struct {
	mu     sync.Mutex
	header http.Header
	buf    bytes.Buffer
	status int
}

func newStreamRecorder() *streamRecorder {
	return &streamRecorder{header: make(http.Header), status: http.StatusOK}
}

func (r *streamRecorder) Header() http.Header { return r.header }

func (r *streamRecorder) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buf.Write(p)
}

func (r *streamRecorder) WriteHeader(code int) { r.status = code }

func (r *streamRecorder) Flush() {}

func (r *streamRecorder) String() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buf.String()
}

func TestStreamRequiresIdentity(t *testing.T) {
	assert := assert.New(t)

	h := NewEventsHandler(newFakeRegistry(), zerolog.Nop())
	recorder := httptest.NewRecorder()
	h.Stream(recorder, httptest.NewRequest(http.MethodGet, "/api/events", nil))

	assert.Equal(http.StatusUnauthorized, recorder.Code)
}

func TestStreamForwardsToastsUntilDisconnect(t *testing.T) {
	assert := assert.New(t)

	registry := newFakeRegistry()
	h := NewEventsHandler(registry, zerolog.Nop())

	ctx, cancel := context.WithCancel(authz.WithIdentity(context.Background(), "user-1", models.RolTecnico))
	req := httptest.NewRequest(http.MethodGet, "/api/events", nil).WithContext(ctx)
	recorder := newStreamRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.Stream(recorder, req)
	}()

	select {
	case <-registry.attached:
	case <-time.After(time.Second):
		t.Fatal("handler never attached a session")
	}
	assert.Equal("user-1", registry.userID)
	assert.NotEmpty(registry.sessionID)

	registry.sink.Show(realtime.Toast{
		Kind:    realtime.ToastInicio,
		Titulo:  "Labor iniciada",
		Mensaje: "Roturación en LA LUISA",
	})
	assert.Eventually(func() bool {
		return strings.Contains(recorder.String(), "event: toast")
	}, time.Second, 10*time.Millisecond, "toast never reached the stream")

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler did not stop on disconnect")
	}

	body := recorder.String()
	assert.Contains(body, ": connected")
	assert.Contains(body, `"titulo":"Labor iniciada"`)
	assert.Equal("text/event-stream", recorder.Header().Get("Content-Type"))
	assert.Equal([]string{registry.sessionID}, registry.detached)
}

func TestToastSinkDropsWhenFull(t *testing.T) {
	assert := assert.New(t)

	sink := &toastSink{ch: make(chan realtime.Toast, 1)}
	sink.Show(realtime.Toast{Titulo: "first"})
	// A second Show with nobody draining must return instead of blocking the
	// listener's fan-out.
	sink.Show(realtime.Toast{Titulo: "second"})

	assert.Len(sink.ch, 1)
	assert.Equal("first", (<-sink.ch).Titulo)
}
