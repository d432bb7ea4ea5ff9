package realtime

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/campodata/maquinaria-api/internal/models"
)

type recordingSink struct {
	mu     sync.Mutex
	toasts []Toast
}

func (s *recordingSink) Show(toast Toast) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.toasts = append(s.toasts, toast)
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.toasts)
}

func strPtr(s string) *string { return &s }

func TestDecideSuppressesOwnActions(t *testing.T) {
	rec := models.Notification{
		Tipo:      models.NotificationTypeInicio,
		Titulo:    "Labor iniciada",
		CreatedBy: strPtr("user-1"),
	}

	_, ok := Decide(rec, "user-1")
	assert.False(t, ok, "a user must not be told about their own action")

	_, ok = Decide(rec, "user-2")
	assert.True(t, ok)
}

func TestDecideSuppressesShortExecutions(t *testing.T) {
	assert := assert.New(t)

	short := models.Notification{
		Tipo: models.NotificationTypeFin,
		Data: []byte(`{"duracion_min": 4}`),
	}
	_, ok := Decide(short, "user-1")
	assert.False(ok, "a 4 minute execution is noise")

	boundary := models.Notification{
		Tipo: models.NotificationTypeFin,
		Data: []byte(`{"duracion_min": 5}`),
	}
	_, ok = Decide(boundary, "user-1")
	assert.False(ok, "the 5 minute boundary is still suppressed")

	long := models.Notification{
		Tipo: models.NotificationTypeFin,
		Data: []byte(`{"duracion_min": 6}`),
	}
	toast, ok := Decide(long, "user-1")
	assert.True(ok)
	assert.Equal(ToastFin, toast.Kind)

	// Duration suppression only applies to FIN records.
	otro := models.Notification{
		Tipo: models.NotificationTypeOtro,
		Data: []byte(`{"duracion_min": 1}`),
	}
	_, ok = Decide(otro, "user-1")
	assert.True(ok)
}

func TestDecideFinWithoutDuration(t *testing.T) {
	rec := models.Notification{Tipo: models.NotificationTypeFin}
	toast, ok := Decide(rec, "user-1")
	assert.True(t, ok)
	assert.Equal(t, ToastFin, toast.Kind)
}

func TestDecideToastStyling(t *testing.T) {
	assert := assert.New(t)

	toast, ok := Decide(models.Notification{Tipo: models.NotificationTypeInicio, Titulo: "t", Mensaje: "m"}, "u")
	assert.True(ok)
	assert.Equal(ToastInicio, toast.Kind)
	assert.Equal("t", toast.Titulo)
	assert.Equal("m", toast.Mensaje)
	assert.Equal(5*time.Second, toast.Duration)

	toast, ok = Decide(models.Notification{Tipo: models.NotificationTypeFin, Data: []byte(`{"duracion_min": 30}`)}, "u")
	assert.True(ok)
	assert.Equal(ToastFin, toast.Kind)
	assert.Equal(8*time.Second, toast.Duration)

	toast, ok = Decide(models.Notification{Tipo: models.NotificationTypeOtro}, "u")
	assert.True(ok)
	assert.Equal(ToastInfo, toast.Kind)
}

func TestHandlePayloadFansOutToSessions(t *testing.T) {
	assert := assert.New(t)

	l := &Listener{
		logger:   zerolog.Nop(),
		sessions: make(map[string]session),
	}

	author := &recordingSink{}
	other := &recordingSink{}
	l.Attach("sess-author", "user-1", author)
	l.Attach("sess-other", "user-2", other)

	l.handlePayload([]byte(`{
		"id": "n1",
		"tipo": "INICIO",
		"titulo": "Labor iniciada",
		"mensaje": "Roturación en LA LUISA",
		"created_by": "user-1"
	}`))

	assert.Equal(0, author.count(), "author session must be excluded")
	assert.Equal(1, other.count())
	assert.Equal(ToastInicio, other.toasts[0].Kind)
}

func TestHandlePayloadMalformedDoesNotPanic(t *testing.T) {
	l := &Listener{
		logger:   zerolog.Nop(),
		sessions: make(map[string]session),
	}
	sink := &recordingSink{}
	l.Attach("sess", "user-1", sink)

	l.handlePayload([]byte(`{not json`))
	assert.Equal(t, 0, sink.count())

	// The subscription keeps working after a bad event.
	l.handlePayload([]byte(`{"tipo": "OTRO", "titulo": "ok"}`))
	assert.Equal(t, 1, sink.count())
}

func TestDetach(t *testing.T) {
	l := &Listener{
		logger:   zerolog.Nop(),
		sessions: make(map[string]session),
	}
	sink := &recordingSink{}
	l.Attach("sess", "user-1", sink)
	l.Detach("sess")
	l.Detach("sess") // repeated teardown is harmless

	l.handlePayload([]byte(`{"tipo": "OTRO", "titulo": "t"}`))
	assert.Equal(t, 0, sink.count())
}
