package runs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/zgt/job-scout/internal/jobs"
)

const (
	// DefaultChannel is the pub/sub channel run snapshots are published on.
	DefaultChannel = "job-scout:status"
	latestTTL      = 24 * time.Hour
)

// NewRedisClient parses redisURL and verifies connectivity.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis.ParseURL(%q): %w", redisURL, err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return client, nil
}

// RedisPublisher publishes every snapshot on a channel and keeps the latest one under
// "<channel>:latest" for consumers that connect mid-run.
type RedisPublisher struct {
	rdb     redis.Cmdable
	channel string
}

func NewRedisPublisher(rdb redis.Cmdable, channel string) *RedisPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisPublisher{rdb: rdb, channel: channel}
}

func (p *RedisPublisher) Publish(ctx context.Context, status jobs.Progress) error {
	payload, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}

	pipe := p.rdb.TxPipeline()
	pipe.Publish(ctx, p.channel, payload)
	pipe.Set(ctx, p.channel+":latest", payload, latestTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish to %s: %w", p.channel, err)
	}
	return nil
}
