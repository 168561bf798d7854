package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/dmehra2102/stock-order-system/internal/apperr"
)

// unlockScript deletes the key only while it still carries our token, so an
// expired holder never releases a lock taken over by someone else.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// renewScript extends the lease only while the key still carries our token.
var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

type RedisOptions struct {
	// Wait bounds how long Acquire polls before giving up.
	Wait time.Duration
	// TTL is the lease on the key. It is renewed every RenewInterval while the
	// lock is held, so it only bounds how long a crashed holder blocks others.
	TTL time.Duration
	// RenewInterval defaults to TTL/3.
	RenewInterval time.Duration
	// RetryInterval is the pause between SET NX attempts.
	RetryInterval time.Duration
	Prefix        string
}

// RedisLocker is visible to every service instance sharing the Redis server.
type RedisLocker struct {
	log  *slog.Logger
	rdb  redis.UniversalClient
	opts RedisOptions
}

func NewRedisLocker(log *slog.Logger, rdb redis.UniversalClient, opts RedisOptions) *RedisLocker {
	if opts.Wait <= 0 {
		opts.Wait = 5 * time.Second
	}
	if opts.TTL <= 0 {
		opts.TTL = 3 * time.Second
	}
	if opts.RenewInterval <= 0 || opts.RenewInterval >= opts.TTL {
		opts.RenewInterval = opts.TTL / 3
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = 20 * time.Millisecond
	}
	if opts.Prefix == "" {
		opts.Prefix = "lock:"
	}
	return &RedisLocker{log: log, rdb: rdb, opts: opts}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string) (Release, error) {
	redisKey := l.opts.Prefix + key
	token := uuid.NewString()
	deadline := time.Now().Add(l.opts.Wait)

	for {
		ok, err := l.rdb.SetNX(ctx, redisKey, token, l.opts.TTL).Result()
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			return l.releaser(redisKey, token), nil
		}
		if time.Now().After(deadline) {
			l.log.Warn("lock wait exceeded", "key", key, "wait", l.opts.Wait)
			return nil, apperr.Wrap(apperr.ErrLockAcquisitionFailed, "key %s: waited %s", key, l.opts.Wait)
		}

		t := time.NewTimer(l.opts.RetryInterval)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, apperr.Wrap(apperr.ErrLockAcquisitionFailed, "key %s: %v", key, ctx.Err())
		case <-t.C:
		}
	}
}

// releaser starts the lease watchdog and returns the Release that stops it.
func (l *RedisLocker) releaser(redisKey, token string) Release {
	ctx, stop := context.WithCancel(context.Background())
	var lost atomic.Bool
	done := make(chan struct{})
	go func() {
		defer close(done)
		l.renew(ctx, redisKey, token, &lost)
	}()

	return func(ctx context.Context) error {
		stop()
		<-done
		n, err := unlockScript.Run(ctx, l.rdb, []string{redisKey}, token).Int()
		if err != nil {
			return fmt.Errorf("unlock %s: %w", redisKey, err)
		}
		if n == 0 || lost.Load() {
			return fmt.Errorf("%w: %s", ErrLeaseLost, redisKey)
		}
		return nil
	}
}

// renew extends the lease every RenewInterval until ctx is done. It stops
// early once the key no longer carries token.
func (l *RedisLocker) renew(ctx context.Context, redisKey, token string, lost *atomic.Bool) {
	t := time.NewTicker(l.opts.RenewInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := renewScript.Run(ctx, l.rdb, []string{redisKey}, token, l.opts.TTL.Milliseconds()).Int()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				l.log.Warn("lock renewal failed", "key", redisKey, "err", err)
				continue
			}
			if n == 0 {
				lost.Store(true)
				l.log.Error("lock lease lost while held", "key", redisKey)
				return
			}
		}
	}
}
