package dispatch

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/campodata/maquinaria-api/internal/config"
	"github.com/campodata/maquinaria-api/internal/models"
)

type fakeSubscriptionStore struct {
	mu          sync.Mutex
	subscribers []models.Subscriber
	listErr     error
	deleted     []string
}

func (f *fakeSubscriptionStore) Upsert(_ context.Context, userID, endpoint, p256dh, auth string) (models.PushSubscription, error) {
	return models.PushSubscription{UserID: userID, Endpoint: endpoint, P256dh: p256dh, Auth: auth}, nil
}

func (f *fakeSubscriptionStore) DeleteByEndpoint(_ context.Context, endpoint string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, endpoint)
	return nil
}

func (f *fakeSubscriptionStore) DeleteOwned(_ context.Context, endpoint, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, endpoint)
	return nil
}

func (f *fakeSubscriptionStore) ListWithProfiles(_ context.Context) ([]models.Subscriber, error) {
	return f.subscribers, f.listErr
}

// fakeSender returns a per-endpoint canned status or error and records every
// payload it saw.
type fakeSender struct {
	mu       sync.Mutex
	statuses map[string]int
	errs     map[string]error
	sent     []string
	payloads [][]byte
}

func (f *fakeSender) Send(_ context.Context, payload []byte, sub models.PushSubscription) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sub.Endpoint)
	f.payloads = append(f.payloads, payload)
	if err, ok := f.errs[sub.Endpoint]; ok {
		return 0, err
	}
	if status, ok := f.statuses[sub.Endpoint]; ok {
		return status, nil
	}
	return 201, nil
}

func adminSubscriber(userID, endpoint string) models.Subscriber {
	return models.Subscriber{
		Subscription: models.PushSubscription{ID: "sub-" + userID, UserID: userID, Endpoint: endpoint},
		Profile:      &models.UserProfile{UserID: userID, Rol: models.RolAdmin},
	}
}

func TestDispatchEmptyEligibleSet(t *testing.T) {
	assert := assert.New(t)

	store := &fakeSubscriptionStore{
		subscribers: []models.Subscriber{
			{
				Subscription: models.PushSubscription{ID: "s1", UserID: "u1", Endpoint: "ep1"},
				Profile:      &models.UserProfile{UserID: "u1", Rol: models.RolOperador},
			},
		},
	}
	sender := &fakeSender{}
	d := NewDispatcher(store, sender, zerolog.Nop())

	sent, err := d.Dispatch(context.Background(), models.Notification{Tipo: models.NotificationTypeOtro})
	assert.NoError(err)
	assert.Equal(0, sent)
	assert.Empty(sender.sent)
}

func TestDispatchFetchFailure(t *testing.T) {
	store := &fakeSubscriptionStore{listErr: errors.New("connection refused")}
	d := NewDispatcher(store, &fakeSender{}, zerolog.Nop())

	_, err := d.Dispatch(context.Background(), models.Notification{})
	assert.Error(t, err)
}

func TestDispatchSendsToAllEligible(t *testing.T) {
	assert := assert.New(t)

	store := &fakeSubscriptionStore{
		subscribers: []models.Subscriber{
			adminSubscriber("u1", "ep1"),
			adminSubscriber("u2", "ep2"),
			adminSubscriber("u3", "ep3"),
		},
	}
	sender := &fakeSender{}
	d := NewDispatcher(store, sender, zerolog.Nop())

	rec := models.Notification{
		Tipo:    models.NotificationTypeInicio,
		Titulo:  "Labor iniciada",
		Mensaje: "Roturación en LA LUISA",
	}
	sent, err := d.Dispatch(context.Background(), rec)
	assert.NoError(err)
	assert.Equal(3, sent)
	assert.ElementsMatch([]string{"ep1", "ep2", "ep3"}, sender.sent)

	var payload pushPayload
	assert.NoError(json.Unmarshal(sender.payloads[0], &payload))
	assert.Equal("Labor iniciada", payload.Title)
	assert.Equal("Roturación en LA LUISA", payload.Body)
	assert.Equal("/programaciones", payload.URL)
}

func TestDispatchPrunesDeadEndpoints(t *testing.T) {
	assert := assert.New(t)

	store := &fakeSubscriptionStore{
		subscribers: []models.Subscriber{
			adminSubscriber("u1", "ep-gone"),
			adminSubscriber("u2", "ep-missing"),
			adminSubscriber("u3", "ep-ok"),
		},
	}
	sender := &fakeSender{statuses: map[string]int{
		"ep-gone":    410,
		"ep-missing": 404,
		"ep-ok":      201,
	}}
	d := NewDispatcher(store, sender, zerolog.Nop())

	sent, err := d.Dispatch(context.Background(), models.Notification{Titulo: "t"})
	assert.NoError(err)
	assert.Equal(3, sent)
	assert.ElementsMatch([]string{"ep-gone", "ep-missing"}, store.deleted)
}

func TestDispatchServerErrorDoesNotPrune(t *testing.T) {
	assert := assert.New(t)

	store := &fakeSubscriptionStore{
		subscribers: []models.Subscriber{adminSubscriber("u1", "ep1")},
	}
	sender := &fakeSender{statuses: map[string]int{"ep1": 500}}
	d := NewDispatcher(store, sender, zerolog.Nop())

	sent, err := d.Dispatch(context.Background(), models.Notification{Titulo: "t"})
	assert.NoError(err)
	assert.Equal(1, sent)
	assert.Empty(store.deleted)
}

func TestDispatchIsolatesFailures(t *testing.T) {
	assert := assert.New(t)

	store := &fakeSubscriptionStore{
		subscribers: []models.Subscriber{
			adminSubscriber("u1", "ep-bad"),
			adminSubscriber("u2", "ep-ok"),
		},
	}
	sender := &fakeSender{errs: map[string]error{"ep-bad": errors.New("tls handshake failed")}}
	d := NewDispatcher(store, sender, zerolog.Nop())

	// A transport failure on one subscription must not abort the other nor
	// fail the overall call.
	sent, err := d.Dispatch(context.Background(), models.Notification{Titulo: "t"})
	assert.NoError(err)
	assert.Equal(2, sent)
	assert.ElementsMatch([]string{"ep-bad", "ep-ok"}, sender.sent)
	assert.Empty(store.deleted)
}

func TestDispatchTargetURLFromData(t *testing.T) {
	assert := assert.New(t)

	store := &fakeSubscriptionStore{
		subscribers: []models.Subscriber{adminSubscriber("u1", "ep1")},
	}
	sender := &fakeSender{}
	d := NewDispatcher(store, sender, zerolog.Nop())

	rec := models.Notification{
		Titulo: "t",
		Data:   []byte(`{"url": "/programaciones/abc", "duracion_min": 12}`),
	}
	_, err := d.Dispatch(context.Background(), rec)
	assert.NoError(err)

	var payload pushPayload
	assert.NoError(json.Unmarshal(sender.payloads[0], &payload))
	assert.Equal("/programaciones/abc", payload.URL)
}

func TestNewWebPushSenderRequiresKeys(t *testing.T) {
	assert := assert.New(t)

	_, err := NewWebPushSender(config.VAPIDConfig{})
	assert.Error(err)

	_, err = NewWebPushSender(config.VAPIDConfig{PublicKey: "pub"})
	assert.Error(err)

	sender, err := NewWebPushSender(config.VAPIDConfig{
		PublicKey:  "pub",
		PrivateKey: "priv",
		Subscriber: "soporte@campodata.co",
	})
	assert.NoError(err)
	assert.NotNil(sender)
}
