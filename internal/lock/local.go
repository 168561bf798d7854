package lock

import (
	"context"
	"sync"
	"time"

	"github.com/dmehra2102/stock-order-system/internal/apperr"
)

// LocalLocker coordinates goroutines of a single process. It is used for
// single-node deployments and tests; multi-instance deployments use RedisLocker.
type LocalLocker struct {
	wait time.Duration

	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

func NewLocalLocker(wait time.Duration) *LocalLocker {
	return &LocalLocker{wait: wait, slots: make(map[string]*slot)}
}

func (l *LocalLocker) Acquire(ctx context.Context, key string) (Release, error) {
	s := l.ref(key)

	timer := time.NewTimer(l.wait)
	defer timer.Stop()

	select {
	case s.ch <- struct{}{}:
	case <-timer.C:
		l.unref(key)
		return nil, apperr.Wrap(apperr.ErrLockAcquisitionFailed, "key %s: waited %s", key, l.wait)
	case <-ctx.Done():
		l.unref(key)
		return nil, apperr.Wrap(apperr.ErrLockAcquisitionFailed, "key %s: %v", key, ctx.Err())
	}

	var once sync.Once
	return func(context.Context) error {
		once.Do(func() {
			<-s.ch
			l.unref(key)
		})
		return nil
	}, nil
}

func (l *LocalLocker) ref(key string) *slot {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	return s
}

func (l *LocalLocker) unref(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.slots[key]
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}
