package dispatch

import (
	"context"
	"io"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/pkg/errors"

	"github.com/campodata/maquinaria-api/internal/config"
	"github.com/campodata/maquinaria-api/internal/models"
)

// Sender delivers one encrypted push payload to one subscription and reports
// the provider's HTTP status code.
type Sender interface {
	Send(ctx context.Context, payload []byte, sub models.PushSubscription) (int, error)
}

// WebPushSender sends payloads over the standard web-push protocol using
// VAPID authentication.
type WebPushSender struct {
	subscriber string
	publicKey  string
	privateKey string
	ttl        int
}

// NewWebPushSender fails when the VAPID key pair is not configured; a
// dispatcher without credentials cannot deliver anything.
func NewWebPushSender(cfg config.VAPIDConfig) (*WebPushSender, error) {
	if cfg.PublicKey == "" || cfg.PrivateKey == "" {
		return nil, errors.New("VAPID keys are not configured")
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 60 * 60 * 24
	}
	return &WebPushSender{
		subscriber: cfg.Subscriber,
		publicKey:  cfg.PublicKey,
		privateKey: cfg.PrivateKey,
		ttl:        ttl,
	}, nil
}

func (s *WebPushSender) Send(ctx context.Context, payload []byte, sub models.PushSubscription) (int, error) {
	resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dh,
			Auth:   sub.Auth,
		},
	}, &webpush.Options{
		Subscriber:      s.subscriber,
		VAPIDPublicKey:  s.publicKey,
		VAPIDPrivateKey: s.privateKey,
		TTL:             s.ttl,
	})
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}
