// Package lock serializes critical sections by resource key. Stock mutations
// lock on StockKey, order transitions on OrderKey.
package lock

import (
	"context"
	"errors"
	"log/slog"
)

// ErrLeaseLost is returned by a Release when the lock expired or was taken
// over while it was held. The critical section may have overlapped another.
var ErrLeaseLost = errors.New("lock lease lost")

// Release gives up a held lock. It must be safe to call exactly once.
type Release func(ctx context.Context) error

// Locker acquires an exclusive lock on key, waiting at most the locker's
// configured bound. A timeout is reported as apperr.ErrLockAcquisitionFailed.
// Lockers are not reentrant.
type Locker interface {
	Acquire(ctx context.Context, key string) (Release, error)
}

func StockKey(productID string) string { return "stock:" + productID }

func OrderKey(orderID string) string { return "order:" + orderID }

// WithLock runs fn exactly once while holding key. The lock is released on
// every exit path, including a panic inside fn. fn is never run when the lock
// cannot be acquired.
//
// fn's result and error are returned as is. A failed release is logged and
// never replaces them: fn's writes are already committed, and an unreleased
// lock still expires with its lease.
func WithLock[T any](ctx context.Context, l Locker, key string, fn func(ctx context.Context) (T, error)) (result T, err error) {
	release, err := l.Acquire(ctx, key)
	if err != nil {
		return result, err
	}
	defer func() {
		// release with a fresh context so a cancelled caller still unlocks
		if rerr := release(context.WithoutCancel(ctx)); rerr != nil {
			level := slog.LevelWarn
			if errors.Is(rerr, ErrLeaseLost) {
				level = slog.LevelError
			}
			slog.Default().Log(ctx, level, "lock release failed", "key", key, "err", rerr)
		}
	}()
	return fn(ctx)
}

// Do is WithLock for critical sections without a result.
func Do(ctx context.Context, l Locker, key string, fn func(ctx context.Context) error) error {
	_, err := WithLock(ctx, l, key, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}
