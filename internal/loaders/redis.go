package loaders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DedupCache is the advisory fast path in front of the storage-level
// deduplication constraint. A cache miss means nothing; the partial unique
// index remains the authority.
type DedupCache struct {
	client *redis.Client
}

func NewDedupCache(addr string) (*DedupCache, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return &DedupCache{client: client}, nil
}

func (d *DedupCache) Close() error {
	return d.client.Close()
}

// Seen reports whether the message key was recently admitted.
func (d *DedupCache) Seen(ctx context.Context, key string) (bool, error) {
	_, err := d.client.Get(ctx, dedupKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("dedup cache check: %w", err)
	}
	return true, nil
}

// MarkSeen records the message key with a TTL.
func (d *DedupCache) MarkSeen(ctx context.Context, key string, ttl time.Duration) error {
	if err := d.client.Set(ctx, dedupKey(key), time.Now().Unix(), ttl).Err(); err != nil {
		return fmt.Errorf("dedup cache mark: %w", err)
	}
	return nil
}

func dedupKey(key string) string {
	return "dedup:msg:" + key
}
