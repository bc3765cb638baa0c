package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

const schedulerLockKey = "dripmail:scheduler:lock"

var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// SchedulerLock fences scheduler passes across processes. Only the holder of
// the lock token may run a pass; a crashed holder's lock expires on its own.
type SchedulerLock struct {
	client *goredis.Client
	ttl    time.Duration
}

func NewSchedulerLock(client *goredis.Client, ttl time.Duration) (*SchedulerLock, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("lock ttl must be positive")
	}

	return &SchedulerLock{client: client, ttl: ttl}, nil
}

// Acquire attempts to take the lock. It returns the release token and true on
// success, or false when another process holds the lock.
func (l *SchedulerLock) Acquire(ctx context.Context) (string, bool, error) {
	if l == nil || l.client == nil {
		return "", false, fmt.Errorf("scheduler lock is not initialized")
	}

	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, schedulerLockKey, token, l.ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("failed to acquire scheduler lock: %w", err)
	}
	if !ok {
		return "", false, nil
	}

	return token, true, nil
}

// Release frees the lock if the token still owns it. Releasing a lock that
// expired and was re-acquired by another process is a no-op.
func (l *SchedulerLock) Release(ctx context.Context, token string) error {
	if l == nil || l.client == nil {
		return fmt.Errorf("scheduler lock is not initialized")
	}

	if err := releaseScript.Run(ctx, l.client, []string{schedulerLockKey}, token).Err(); err != nil {
		return fmt.Errorf("failed to release scheduler lock: %w", err)
	}
	return nil
}
