package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// New creates a Redis client and verifies it answers. target is either a
// host:port pair or a redis:// URL carrying credentials and a database.
func New(ctx context.Context, target string) (*redis.Client, error) {
	opts, err := Options(target)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("platform/cache: ping: %w", err)
	}

	return client, nil
}

// Options resolves target into client options. The worker reuses them for
// the asynq connection so both sides talk to the same database.
func Options(target string) (*redis.Options, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return nil, fmt.Errorf("platform/cache: empty address")
	}
	if strings.HasPrefix(target, "redis://") || strings.HasPrefix(target, "rediss://") {
		opts, err := redis.ParseURL(target)
		if err != nil {
			return nil, fmt.Errorf("platform/cache: parse url: %w", err)
		}
		return opts, nil
	}
	return &redis.Options{Addr: target}, nil
}
