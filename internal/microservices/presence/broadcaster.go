package presence

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"linkup/internal/shared"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"
)

// EventOnlineUsers is the event name of the presence snapshot sent to clients.
const EventOnlineUsers = "online_users"

// ProfileSource resolves the profile projection for one user id.
// Implemented by the user repository.
type ProfileSource interface {
	ProfileSummary(ctx context.Context, userID string) (*shared.ProfileSummary, error)
}

// SnapshotPublisher delivers the snapshot to every connected client.
// Implemented by the websocket hub.
type SnapshotPublisher interface {
	Broadcast(event string, payload any)
}

// Broadcaster recomputes the visible online-user list after registry
// transitions and publishes it as a full replacement snapshot (not a diff).
// Triggers are coalesced: a connect storm costs at most one publish per
// minInterval.
type Broadcaster struct {
	registry  Registry
	profiles  ProfileSource
	publisher SnapshotPublisher
	// bounded TTL cache so a publish does not hit the user store once per
	// online user every cycle
	cache   *expirable.LRU[string, shared.ProfileSummary]
	limiter *rate.Limiter
	trigger chan struct{}
	logger  *slog.Logger
}

// constructor for Broadcaster
func NewBroadcaster(
	registry Registry,
	profiles ProfileSource,
	publisher SnapshotPublisher,
	minInterval time.Duration,
	cacheSize int,
	cacheTTL time.Duration,
) *Broadcaster {
	return &Broadcaster{
		registry:  registry,
		profiles:  profiles,
		publisher: publisher,
		cache:     expirable.NewLRU[string, shared.ProfileSummary](cacheSize, nil, cacheTTL),
		limiter:   rate.NewLimiter(rate.Every(minInterval), 1),
		// capacity 1: triggers arriving while a publish is pending collapse
		// into the one already queued
		trigger: make(chan struct{}, 1),
		logger:  slog.Default(),
	}
}

// Trigger requests a recompute-and-publish cycle. Never blocks, safe to
// call from the hub loop after every registry transition.
func (b *Broadcaster) Trigger() {
	select {
	case b.trigger <- struct{}{}:
	default:
	}
}

// Run consumes triggers until ctx is cancelled.
func (b *Broadcaster) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-b.trigger:
		}
		if err := b.limiter.Wait(ctx); err != nil {
			return
		}
		b.RecomputeAndPublish(ctx)
	}
}

// RecomputeAndPublish fetches the online set, filters it through each
// user's visibility preference and publishes the result. A profile lookup
// failing for some id omits that id instead of aborting the publish.
func (b *Broadcaster) RecomputeAndPublish(ctx context.Context) {
	ids := b.registry.OnlineUserIDs()
	sort.Strings(ids) // stable snapshot order for client reconciliation

	visible := make([]shared.ProfileSummary, 0, len(ids))
	for _, userID := range ids {
		profile, err := b.resolve(ctx, userID)
		if err != nil {
			b.logger.Warn("profile_lookup_failed", "user_id", userID, "error", err.Error())
			continue
		}
		if !profile.ShowOnlineStatus {
			continue // online internally, hidden from the snapshot
		}
		visible = append(visible, profile)
	}

	b.publisher.Broadcast(EventOnlineUsers, visible)
	b.logger.Debug("presence_snapshot_published", "online", len(ids), "visible", len(visible))
}

func (b *Broadcaster) resolve(ctx context.Context, userID string) (shared.ProfileSummary, error) {
	if cached, ok := b.cache.Get(userID); ok {
		return cached, nil
	}
	profile, err := b.profiles.ProfileSummary(ctx, userID)
	if err != nil {
		return shared.ProfileSummary{}, err
	}
	b.cache.Add(userID, *profile)
	return *profile, nil
}
