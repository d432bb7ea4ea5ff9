package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/campodata/maquinaria-api/internal/models"
)

type fakeDispatcher struct {
	sent int
	err  error
	last models.Notification
}

func (f *fakeDispatcher) Dispatch(_ context.Context, rec models.Notification) (int, error) {
	f.last = rec
	return f.sent, f.err
}

func postNotify(t *testing.T, dispatcher *fakeDispatcher, body string) *httptest.ResponseRecorder {
	t.Helper()
	h := NewNotifyHandler(dispatcher, zerolog.Nop())
	req := httptest.NewRequest(http.MethodPost, "/api/notify", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Dispatch(rec, req)
	return rec
}

func TestNotifyAcceptsWebhookShape(t *testing.T) {
	assert := assert.New(t)

	dispatcher := &fakeDispatcher{sent: 3}
	rec := postNotify(t, dispatcher, `{"record": {"id": "n1", "tipo": "INICIO", "titulo": "Labor iniciada"}}`)

	assert.Equal(http.StatusOK, rec.Code)
	assert.Equal("n1", dispatcher.last.ID)
	assert.Equal(models.NotificationTypeInicio, dispatcher.last.Tipo)

	var resp struct {
		Success bool `json:"success"`
		SentTo  int  `json:"sent_to"`
	}
	assert.NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(resp.Success)
	assert.Equal(3, resp.SentTo)
}

func TestNotifyAcceptsBareRecord(t *testing.T) {
	assert := assert.New(t)

	dispatcher := &fakeDispatcher{sent: 1}
	rec := postNotify(t, dispatcher, `{"id": "n2", "tipo": "FIN", "titulo": "Labor finalizada", "zona_id": 2}`)

	assert.Equal(http.StatusOK, rec.Code)
	assert.Equal("n2", dispatcher.last.ID)
	assert.NotNil(dispatcher.last.ZonaID)
	assert.Equal(2, *dispatcher.last.ZonaID)
}

func TestNotifyEmptyEligibleSetIsSuccess(t *testing.T) {
	assert := assert.New(t)

	dispatcher := &fakeDispatcher{sent: 0}
	rec := postNotify(t, dispatcher, `{"tipo": "OTRO", "titulo": "t"}`)

	assert.Equal(http.StatusOK, rec.Code)

	var resp struct {
		SentTo int `json:"sent_to"`
	}
	assert.NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(0, resp.SentTo)
}

func TestNotifyDispatchFailure(t *testing.T) {
	assert := assert.New(t)

	dispatcher := &fakeDispatcher{err: errors.New("unable to fetch push subscriptions")}
	rec := postNotify(t, dispatcher, `{"tipo": "OTRO", "titulo": "t"}`)

	assert.Equal(http.StatusBadRequest, rec.Code)

	var resp struct {
		Error string `json:"error"`
	}
	assert.NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(resp.Error, "unable to fetch push subscriptions")
}

func TestNotifyInvalidPayload(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	rec := postNotify(t, dispatcher, `not json at all`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
