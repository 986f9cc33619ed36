package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/RezaEskandarii/postfire/custom_errors"
)

var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`)

var renewScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return 0
`)

// RedisKeyedLocker is a lease lock shared by every process using the same Redis.
// The lease expires after ttl so a crashed holder cannot block a key forever; a holder that
// outlives its lease is logged and its Unlocker reports custom_errors.ErrLockNotHeld.
type RedisKeyedLocker struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	log    zerolog.Logger
}

func NewRedisKeyedLocker(client redis.UniversalClient, prefix string, ttl time.Duration, log zerolog.Logger) *RedisKeyedLocker {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &RedisKeyedLocker{
		client: client,
		prefix: prefix + ":lock:",
		ttl:    ttl,
		log:    log.With().Str("component", "post_lock").Logger(),
	}
}

func (l *RedisKeyedLocker) Lock(ctx context.Context, key string) (Unlocker, error) {
	owner := uuid.NewString()
	redisKey := l.prefix + key

	for {
		ok, err := l.client.SetNX(ctx, redisKey, owner, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, ErrLockTimeout
			}
			return nil, ctx.Err()
		case <-time.After(retryInterval):
		}
	}

	stop := make(chan struct{})
	go l.heartbeat(key, redisKey, owner, stop)

	var once sync.Once
	return func(ctx context.Context) error {
		once.Do(func() { close(stop) })
		n, err := releaseScript.Run(ctx, l.client, []string{redisKey}, owner).Int()
		if err != nil {
			return fmt.Errorf("failed to release lock %s: %w", key, err)
		}
		if n == 0 {
			return fmt.Errorf("release lock %s: %w", key, custom_errors.ErrLockNotHeld)
		}
		return nil
	}, nil
}

// heartbeat renews the lease at a third of its ttl until stop is closed or the lease is lost.
func (l *RedisKeyedLocker) heartbeat(key, redisKey, owner string, stop <-chan struct{}) {
	ticker := time.NewTicker(l.ttl / 3)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), l.ttl/3)
			n, err := renewScript.Run(ctx, l.client, []string{redisKey}, owner, l.ttl.Milliseconds()).Int()
			cancel()
			switch {
			case err != nil:
				l.log.Warn().Err(err).Str("key", key).Msg("failed to renew lock lease")
			case n == 0:
				l.log.Error().Str("key", key).Dur("ttl", l.ttl).Msg("lock lease lost while held")
				return
			}
		}
	}
}
