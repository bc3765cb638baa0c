package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const pingTimeout = 5 * time.Second

// NewRedis connects the client behind the scheduler lock and the per-template
// rate limiter. The startup ping is bounded so a bad URL or unreachable server
// fails here instead of surfacing later as a missed scheduler pass.
func NewRedis(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	opts.ClientName = "dripmail"
	if opts.MinIdleConns == 0 {
		// The limiter's Wait loop issues bursts of short commands; idle
		// connections keep it from re-dialing under backoff.
		opts.MinIdleConns = 2
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return client, nil
}
