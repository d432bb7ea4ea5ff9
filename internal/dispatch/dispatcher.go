// Package dispatch fans a notification out to every eligible push
// subscription. One invocation works over a fresh snapshot of subscriptions,
// sends concurrently, and never fails the call because individual deliveries
// failed: dead endpoints are pruned, transient failures are logged and left
// for the next event.
package dispatch

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/campodata/maquinaria-api/internal/eligibility"
	"github.com/campodata/maquinaria-api/internal/models"
	"github.com/campodata/maquinaria-api/internal/repository"
)

// pushPayload is the pre-encryption wire format of a push message.
type pushPayload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url"`
}

type Dispatcher struct {
	subs   repository.SubscriptionRepository
	sender Sender
	logger zerolog.Logger
}

func NewDispatcher(subs repository.SubscriptionRepository, sender Sender, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		subs:   subs,
		sender: sender,
		logger: logger.With().Str("component", "push_dispatcher").Logger(),
	}
}

// Dispatch delivers rec to every eligible subscription and returns the
// number of subscriptions targeted. An empty eligible set is a successful
// dispatch of zero. Only the snapshot fetch can fail the call.
func (d *Dispatcher) Dispatch(ctx context.Context, rec models.Notification) (int, error) {
	subscribers, err := d.subs.ListWithProfiles(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "unable to fetch push subscriptions")
	}

	eligible := eligibility.FilterSubscribers(rec, subscribers)
	if len(eligible) == 0 {
		return 0, nil
	}

	payload, err := json.Marshal(pushPayload{
		Title: rec.Titulo,
		Body:  rec.Mensaje,
		URL:   targetURL(rec),
	})
	if err != nil {
		return 0, errors.Wrap(err, "unable to encode push payload")
	}

	var wg sync.WaitGroup
	for _, subscriber := range eligible {
		wg.Add(1)
		go func(sub models.PushSubscription) {
			defer wg.Done()
			d.sendOne(ctx, payload, sub)
		}(subscriber.Subscription)
	}
	wg.Wait()

	return len(eligible), nil
}

// Notify lets the dispatcher hang off the notification service as one of its
// delivery channels.
func (d *Dispatcher) Notify(ctx context.Context, rec models.Notification) error {
	_, err := d.Dispatch(ctx, rec)
	return err
}

func (d *Dispatcher) String() string {
	return "WebPushDispatcher"
}

func (d *Dispatcher) sendOne(ctx context.Context, payload []byte, sub models.PushSubscription) {
	status, err := d.sender.Send(ctx, payload, sub)
	if err != nil {
		d.logger.Warn().
			Err(err).
			Str("subscription_id", sub.ID).
			Str("user_id", sub.UserID).
			Msg("push delivery failed")
		return
	}

	switch {
	case status == http.StatusNotFound || status == http.StatusGone:
		// The endpoint is permanently dead; prune it. The delete is
		// idempotent, so racing invocations are harmless.
		if err := d.subs.DeleteByEndpoint(ctx, sub.Endpoint); err != nil {
			d.logger.Error().
				Err(err).
				Str("subscription_id", sub.ID).
				Msg("failed to prune dead subscription")
			return
		}
		d.logger.Info().
			Int("status", status).
			Str("subscription_id", sub.ID).
			Msg("pruned dead push subscription")
	case status >= 200 && status < 300:
		d.logger.Debug().
			Int("status", status).
			Str("subscription_id", sub.ID).
			Msg("push delivered")
	default:
		d.logger.Warn().
			Int("status", status).
			Str("subscription_id", sub.ID).
			Msg("unexpected push provider status")
	}
}

func targetURL(rec models.Notification) string {
	if len(rec.Data) > 0 {
		var payload struct {
			URL string `json:"url"`
		}
		if err := json.Unmarshal(rec.Data, &payload); err == nil && payload.URL != "" {
			return payload.URL
		}
	}
	return "/programaciones"
}
