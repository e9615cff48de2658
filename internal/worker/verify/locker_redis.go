package verify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// Redis key prefix for per-domain verification locks
	lockKeyPrefix = "mailstead:verify:lock:"

	// Locks expire on their own so a crashed worker cannot wedge a
	// domain; the TTL just has to outlive one verification check.
	defaultLockTTL = 5 * time.Minute
)

// releaseScript deletes the lock only if it still holds our token, so
// an expired lock reacquired by another worker is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisLocker is a Redis-backed Locker for distributed deployments
// where multiple instances run the verification sweep.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// RedisLockerOption configures a RedisLocker instance.
type RedisLockerOption func(*RedisLocker)

// WithLockTTL overrides the lock expiry.
func WithLockTTL(ttl time.Duration) RedisLockerOption {
	return func(l *RedisLocker) {
		if ttl > 0 {
			l.ttl = ttl
		}
	}
}

// WithLockerLogger sets the logger used for release failures.
func WithLockerLogger(logger *slog.Logger) RedisLockerOption {
	return func(l *RedisLocker) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewRedisLocker constructs a Redis-backed locker.
func NewRedisLocker(client *redis.Client, opts ...RedisLockerOption) *RedisLocker {
	l := &RedisLocker{
		client: client,
		ttl:    defaultLockTTL,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

func (l *RedisLocker) TryAcquire(ctx context.Context, key string) (func(), bool, error) {
	fullKey := lockKeyPrefix + key
	token := uuid.NewString()

	acquired, err := l.client.SetNX(ctx, fullKey, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire verify lock %s: %w", key, err)
	}
	if !acquired {
		return nil, false, nil
	}

	release := func() {
		// Release with a fresh context: the run's context may already
		// be cancelled and the lock must still come off.
		if err := releaseScript.Run(context.Background(), l.client, []string{fullKey}, token).Err(); err != nil {
			l.logger.Warn("failed to release verify lock",
				"key", key,
				"error", err,
			)
		}
	}
	return release, true, nil
}
