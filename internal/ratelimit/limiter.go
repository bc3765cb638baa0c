package ratelimit

import "context"

// RateLimiter caps outbound provider calls per template.
type RateLimiter interface {
	Allow(ctx context.Context, template string) (bool, error)
	Wait(ctx context.Context, template string) error
}
