package push

import (
	"context"
	"io"

	"linkup/internal/microservices/http-api/models"

	webpush "github.com/SherClockHolmes/webpush-go"
)

// Sender performs one delivery attempt to one endpoint and reports the
// provider's HTTP status code.
type Sender interface {
	Send(ctx context.Context, message []byte, sub *models.PushSubscription) (int, error)
}

// WebPushSender delivers payloads through the Web Push protocol with
// VAPID authentication.
type WebPushSender struct {
	subscriber      string // contact address the provider can reach us at
	vapidPublicKey  string
	vapidPrivateKey string
	ttl             int // seconds the provider may hold an undelivered message
}

// constructor for WebPushSender
func NewWebPushSender(subscriber, vapidPublicKey, vapidPrivateKey string, ttl int) *WebPushSender {
	return &WebPushSender{
		subscriber:      subscriber,
		vapidPublicKey:  vapidPublicKey,
		vapidPrivateKey: vapidPrivateKey,
		ttl:             ttl,
	}
}

func (s *WebPushSender) Send(ctx context.Context, message []byte, sub *models.PushSubscription) (int, error) {
	resp, err := webpush.SendNotificationWithContext(ctx, message, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dh,
			Auth:   sub.Auth,
		},
	}, &webpush.Options{
		Subscriber:      s.subscriber, // webpush-go adds mailto: automatically
		VAPIDPublicKey:  s.vapidPublicKey,
		VAPIDPrivateKey: s.vapidPrivateKey,
		TTL:             s.ttl,
	})
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}
