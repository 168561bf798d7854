package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dmehra2102/stock-order-system/internal/apperr"
	"github.com/dmehra2102/stock-order-system/internal/inventory/domain"
	"github.com/dmehra2102/stock-order-system/internal/lock"
	"github.com/dmehra2102/stock-order-system/pkg/metrics"
)

// Ledger is the only writer of product availability. Every mutation runs
// under lock.StockKey(productID).
type Ledger struct {
	log     *slog.Logger
	locker  lock.Locker
	store   ProductStore
	metrics *metrics.OrderMetrics
}

func NewLedger(log *slog.Logger, locker lock.Locker, store ProductStore, m *metrics.OrderMetrics) *Ledger {
	return &Ledger{log: log, locker: locker, store: store, metrics: m}
}

func (l *Ledger) Product(ctx context.Context, productID string) (domain.Product, error) {
	return l.store.FindProduct(ctx, productID)
}

// Register stores a new product record. Existing stock is not merged.
func (l *Ledger) Register(ctx context.Context, p domain.Product) error {
	return lock.Do(ctx, l.locker, lock.StockKey(p.ID), func(ctx context.Context) error {
		return l.store.SaveProduct(ctx, p)
	})
}

// Reserve takes qty units out of stock, or fails with
// apperr.ErrInsufficientStock leaving the record untouched.
func (l *Ledger) Reserve(ctx context.Context, productID string, qty int64) (domain.Product, error) {
	p, err := lock.WithLock(ctx, l.locker, lock.StockKey(productID), func(ctx context.Context) (domain.Product, error) {
		p, err := l.store.FindProduct(ctx, productID)
		if err != nil {
			return domain.Product{}, err
		}
		next, err := p.Reserve(qty)
		if err != nil {
			return domain.Product{}, err
		}
		if err := l.store.SaveProduct(ctx, next); err != nil {
			return domain.Product{}, fmt.Errorf("save product %s: %w", productID, err)
		}
		return next, nil
	})
	if err != nil {
		l.observe(err)
		return domain.Product{}, err
	}
	return p, nil
}

// Release returns qty units unconditionally. Callers must only release what
// they reserved; use ReleaseOnce when the call may be retried.
func (l *Ledger) Release(ctx context.Context, productID string, qty int64) error {
	err := lock.Do(ctx, l.locker, lock.StockKey(productID), func(ctx context.Context) error {
		p, err := l.store.FindProduct(ctx, productID)
		if err != nil {
			return err
		}
		next, err := p.Release(qty)
		if err != nil {
			return err
		}
		return l.store.SaveProduct(ctx, next)
	})
	if err != nil {
		l.observe(err)
		return err
	}
	return nil
}

// ReleaseOnce applies a release at most once per key. A retried call with a
// key that already succeeded is a no-op and reports applied=false.
func (l *Ledger) ReleaseOnce(ctx context.Context, key, productID string, qty int64) (bool, error) {
	if qty <= 0 {
		return false, apperr.ErrInvalidParameter
	}
	applied, err := lock.WithLock(ctx, l.locker, lock.StockKey(productID), func(ctx context.Context) (bool, error) {
		return l.store.ApplyRelease(ctx, key, productID, qty)
	})
	if err != nil {
		l.observe(err)
		return false, err
	}
	if !applied {
		l.log.Info("release already applied", "key", key, "product_id", productID)
	}
	return applied, nil
}

func (l *Ledger) observe(err error) {
	switch {
	case errors.Is(err, apperr.ErrInsufficientStock):
		l.metrics.ReservationDenied("insufficient_stock")
	case errors.Is(err, apperr.ErrLockAcquisitionFailed):
		l.metrics.LockFailed("stock")
	}
}
