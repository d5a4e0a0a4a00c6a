// Package dedup provides idempotent admission control for inbound messages.
// A message id is admitted exactly once per channel, even when webhook
// retries for the same id race across workers or instances.
package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Deduplicator answers "already processed?" and records "now processed".
type Deduplicator interface {
	// IsProcessed reports whether the message id was already admitted.
	IsProcessed(ctx context.Context, channel, messageID string) (bool, error)

	// MarkProcessed records the id and reports whether this caller was the
	// first to do so. Marking an already-marked id is not an error; the
	// second caller simply observes first == false.
	MarkProcessed(ctx context.Context, channel, messageID string) (first bool, err error)
}

// RedisDeduplicator implements the admission set with SETNX, which gives
// atomic check-and-insert across horizontally scaled instances. Entries
// carry a retention TTL for storage hygiene; correctness only needs
// existence before expiry.
type RedisDeduplicator struct {
	client    *redis.Client
	retention time.Duration
}

// NewRedisDeduplicator creates a deduplicator over the given client.
func NewRedisDeduplicator(client *redis.Client, retention time.Duration) *RedisDeduplicator {
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	return &RedisDeduplicator{client: client, retention: retention}
}

func key(channel, messageID string) string {
	return fmt.Sprintf("dedup:%s:%s", channel, messageID)
}

func (d *RedisDeduplicator) IsProcessed(ctx context.Context, channel, messageID string) (bool, error) {
	n, err := d.client.Exists(ctx, key(channel, messageID)).Result()
	if err != nil {
		return false, fmt.Errorf("dedup exists check: %w", err)
	}
	return n > 0, nil
}

func (d *RedisDeduplicator) MarkProcessed(ctx context.Context, channel, messageID string) (bool, error) {
	first, err := d.client.SetNX(ctx, key(channel, messageID), time.Now().UTC().Format(time.RFC3339), d.retention).Result()
	if err != nil {
		return false, fmt.Errorf("dedup mark: %w", err)
	}
	return first, nil
}
