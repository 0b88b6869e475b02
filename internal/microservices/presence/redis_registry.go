package presence

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	ownersKey = "presence:owners" // hash: connection ID -> userID
	onlineKey = "presence:online" // set of online user IDs

	redisOpTimeout = 3 * time.Second
)

// RedisRegistry is the networked Registry implementation for multi-instance
// deployments: every instance mutates the same connection sets, so a user
// connected through instance A is visible as online on instance B.
type RedisRegistry struct {
	client *redis.Client
	ctx    context.Context // base context for registry operations
	logger *slog.Logger
}

// constructor for RedisRegistry
func NewRedisRegistry(redisURL, password string) (*RedisRegistry, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	if password != "" {
		opts.Password = password
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = redisOpTimeout
	opts.WriteTimeout = redisOpTimeout

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisRegistry{
		client: client,
		ctx:    context.Background(),
		logger: slog.Default(),
	}, nil
}

func connsKey(userID string) string {
	return "presence:conns:" + userID
}

func (r *RedisRegistry) Associate(connID, userID string) bool {
	ctx, cancel := context.WithTimeout(r.ctx, redisOpTimeout)
	defer cancel()

	// claim the connection id first; a connection that is already owned
	// must not be double counted
	claimed, err := r.client.HSetNX(ctx, ownersKey, connID, userID).Result()
	if err != nil {
		r.logger.Error("presence_associate_failed", "connection_id", connID, "error", err.Error())
		return false
	}
	if !claimed {
		return false
	}

	if err := r.client.SAdd(ctx, connsKey(userID), connID).Err(); err != nil {
		r.logger.Error("presence_associate_failed", "connection_id", connID, "error", err.Error())
		return false
	}

	// the online index itself is the transition signal: SAdd returns 1 for
	// exactly one of any number of concurrent associates. Deciding from a
	// separate SCard read would let two racing first connections both see
	// size 2 and neither mark the user online.
	added, err := r.client.SAdd(ctx, onlineKey, userID).Result()
	if err != nil {
		r.logger.Error("presence_online_mark_failed", "user_id", userID, "error", err.Error())
		return false
	}
	if added == 1 {
		r.logger.Info("user_online", "user_id", userID)
		return true
	}
	return false
}

func (r *RedisRegistry) Disassociate(connID string) (string, bool) {
	ctx, cancel := context.WithTimeout(r.ctx, redisOpTimeout)
	defer cancel()

	userID, err := r.client.HGet(ctx, ownersKey, connID).Result()
	if err == redis.Nil {
		return "", false // unknown connection: duplicate disconnect
	}
	if err != nil {
		r.logger.Error("presence_disassociate_failed", "connection_id", connID, "error", err.Error())
		return "", false
	}

	r.client.HDel(ctx, ownersKey, connID)
	removed, err := r.client.SRem(ctx, connsKey(userID), connID).Result()
	if err != nil || removed == 0 {
		return userID, false
	}

	size, err := r.client.SCard(ctx, connsKey(userID)).Result()
	if err != nil {
		r.logger.Error("presence_scard_failed", "user_id", userID, "error", err.Error())
		return userID, false
	}
	if size == 0 {
		// mirror of Associate: only the SRem that actually removes the
		// user from the online index reports the transition, so two
		// racing last disconnects cannot both signal went-offline
		removed, err := r.client.SRem(ctx, onlineKey, userID).Result()
		if err != nil {
			r.logger.Error("presence_online_unmark_failed", "user_id", userID, "error", err.Error())
			return userID, false
		}
		if removed == 1 {
			r.logger.Info("user_offline", "user_id", userID)
			return userID, true
		}
	}
	return userID, false
}

func (r *RedisRegistry) IsOnline(userID string) bool {
	ctx, cancel := context.WithTimeout(r.ctx, redisOpTimeout)
	defer cancel()
	online, err := r.client.SIsMember(ctx, onlineKey, userID).Result()
	if err != nil {
		r.logger.Error("presence_isonline_failed", "user_id", userID, "error", err.Error())
		return false
	}
	return online
}

func (r *RedisRegistry) OnlineUserIDs() []string {
	ctx, cancel := context.WithTimeout(r.ctx, redisOpTimeout)
	defer cancel()
	ids, err := r.client.SMembers(ctx, onlineKey).Result()
	if err != nil {
		r.logger.Error("presence_online_list_failed", "error", err.Error())
		return nil
	}
	return ids
}

func (r *RedisRegistry) ConnectionIDs(userID string) []string {
	ctx, cancel := context.WithTimeout(r.ctx, redisOpTimeout)
	defer cancel()
	ids, err := r.client.SMembers(ctx, connsKey(userID)).Result()
	if err != nil {
		r.logger.Error("presence_conns_list_failed", "user_id", userID, "error", err.Error())
		return nil
	}
	return ids
}

func (r *RedisRegistry) Count(userID string) int {
	ctx, cancel := context.WithTimeout(r.ctx, redisOpTimeout)
	defer cancel()
	size, err := r.client.SCard(ctx, connsKey(userID)).Result()
	if err != nil {
		return 0
	}
	return int(size)
}

func (r *RedisRegistry) Close() error {
	return r.client.Close()
}
