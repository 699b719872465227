// Package realtime reaches users connected to the chat/presence subsystem.
// That subsystem registers a pub/sub channel per connected user under a
// presence key; this package only reads the key and publishes to the channel.
package realtime

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultPresencePrefix is prepended to the user id to form the presence key
const DefaultPresencePrefix = "presence:user:"

// RedisChannelRegistry looks up and pushes to per-user channels in Redis
type RedisChannelRegistry struct {
	client *redis.Client
	prefix string
}

// NewRedisChannelRegistry creates a registry. A nil client yields a registry
// that reports every user as offline.
func NewRedisChannelRegistry(client *redis.Client, prefix string) *RedisChannelRegistry {
	if prefix == "" {
		prefix = DefaultPresencePrefix
	}
	return &RedisChannelRegistry{client: client, prefix: prefix}
}

// Lookup returns the channel handle of userID, or ok=false if the user is not connected
func (r *RedisChannelRegistry) Lookup(ctx context.Context, userID uuid.UUID) (handle string, ok bool, err error) {
	if r.client == nil {
		return "", false, nil
	}

	handle, err = r.client.Get(ctx, r.prefix+userID.String()).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to look up presence: %w", err)
	}
	if handle == "" {
		return "", false, nil
	}
	return handle, true, nil
}

// Push publishes payload on handle. Delivery is not confirmed.
func (r *RedisChannelRegistry) Push(ctx context.Context, handle string, payload []byte) error {
	if r.client == nil {
		return nil
	}
	if err := r.client.Publish(ctx, handle, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", handle, err)
	}
	return nil
}
