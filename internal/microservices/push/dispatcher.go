package push

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"linkup/internal/microservices/http-api/models"
)

// SubscriptionStore is the slice of the subscription repository the
// dispatcher depends on: list a user's endpoints, delete one by identity.
type SubscriptionStore interface {
	ListByUser(ctx context.Context, userID string) ([]models.PushSubscription, error)
	Delete(ctx context.Context, userID, endpoint string) error
}

// DispatchReport is the per-call delivery accounting.
type DispatchReport struct {
	Attempted int `json:"attempted"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"` // transient: timeout, 5xx, network error
	Pruned    int `json:"pruned"` // endpoint permanently gone, deleted from store
}

// Dispatcher fans one payload out to every endpoint registered for a user.
// Attempts are independent: one endpoint failing, hanging or disappearing
// never blocks or fails the others. At most one attempt per endpoint per
// call; durability is the notification record's job, not the push channel's.
type Dispatcher struct {
	store   SubscriptionStore
	sender  Sender
	timeout time.Duration // per-endpoint attempt bound
	logger  *slog.Logger
}

// constructor for Dispatcher
func NewDispatcher(store SubscriptionStore, sender Sender, timeout time.Duration) *Dispatcher {
	return &Dispatcher{
		store:   store,
		sender:  sender,
		timeout: timeout,
		logger:  slog.Default(),
	}
}

// Dispatch delivers payload to every subscription of userID.
// The only error returned is the subscription store being unavailable;
// per-endpoint outcomes are absorbed into the report.
func (d *Dispatcher) Dispatch(ctx context.Context, userID string, payload Payload) (DispatchReport, error) {
	var report DispatchReport

	subs, err := d.store.ListByUser(ctx, userID)
	if err != nil {
		return report, fmt.Errorf("failed to load push subscriptions: %w", err)
	}
	if len(subs) == 0 {
		return report, nil
	}

	message, err := payload.ToJSON()
	if err != nil {
		return report, fmt.Errorf("failed to marshal push payload: %w", err)
	}

	report.Attempted = len(subs)

	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := range subs {
		wg.Add(1)
		go func(sub *models.PushSubscription) {
			defer wg.Done()

			// bound each attempt so one hung provider cannot stall the rest
			attemptCtx, cancel := context.WithTimeout(ctx, d.timeout)
			defer cancel()

			status, err := d.sender.Send(attemptCtx, message, sub)

			switch {
			case err != nil:
				// timeout and network errors are transient: keep the
				// subscription, the next notification event retries it
				d.logger.Warn("push_delivery_failed",
					"user_id", userID,
					"endpoint", shortEndpoint(sub.Endpoint),
					"error", err.Error(),
				)
				mu.Lock()
				report.Failed++
				mu.Unlock()

			case status == http.StatusNotFound || status == http.StatusGone:
				// provider says the endpoint is permanently dead: prune it
				if derr := d.store.Delete(ctx, userID, sub.Endpoint); derr != nil {
					d.logger.Warn("push_prune_failed",
						"user_id", userID,
						"endpoint", shortEndpoint(sub.Endpoint),
						"error", derr.Error(),
					)
				} else {
					d.logger.Info("push_subscription_pruned",
						"user_id", userID,
						"endpoint", shortEndpoint(sub.Endpoint),
						"status", status,
					)
				}
				mu.Lock()
				report.Pruned++
				mu.Unlock()

			case status >= 200 && status < 300:
				mu.Lock()
				report.Succeeded++
				mu.Unlock()

			default:
				d.logger.Warn("push_unexpected_status",
					"user_id", userID,
					"endpoint", shortEndpoint(sub.Endpoint),
					"status", status,
				)
				mu.Lock()
				report.Failed++
				mu.Unlock()
			}
		}(&subs[i])
	}
	wg.Wait()

	return report, nil
}

// shortEndpoint trims endpoint URLs for logging, they carry long opaque tokens
func shortEndpoint(endpoint string) string {
	if len(endpoint) > 50 {
		return endpoint[:50]
	}
	return endpoint
}
