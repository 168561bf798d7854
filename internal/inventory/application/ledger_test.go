package application_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/dmehra2102/stock-order-system/internal/apperr"
	"github.com/dmehra2102/stock-order-system/internal/inventory/application"
	"github.com/dmehra2102/stock-order-system/internal/inventory/domain"
	"github.com/dmehra2102/stock-order-system/internal/inventory/infrastructure/memory"
	"github.com/dmehra2102/stock-order-system/internal/lock"
)

func newLedger(t *testing.T, stock int64) (*application.Ledger, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	ledger := application.NewLedger(log, lock.NewLocalLocker(5*time.Second), store, nil)
	p, err := domain.NewProduct("p-1", "keyboard", 1500, stock)
	require.NoError(t, err)
	require.NoError(t, ledger.Register(context.Background(), p))
	return ledger, store
}

func TestReserveDecrementsStock(t *testing.T) {
	ledger, _ := newLedger(t, 10)

	p, err := ledger.Reserve(context.Background(), "p-1", 2)
	require.NoError(t, err)
	assert.Equal(t, int64(8), p.Available)

	got, err := ledger.Product(context.Background(), "p-1")
	require.NoError(t, err)
	assert.Equal(t, int64(8), got.Available)
}

func TestReserveInsufficientStockLeavesRecordUntouched(t *testing.T) {
	ledger, _ := newLedger(t, 3)

	_, err := ledger.Reserve(context.Background(), "p-1", 4)
	require.ErrorIs(t, err, apperr.ErrInsufficientStock)

	got, err := ledger.Product(context.Background(), "p-1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.Available)
}

func TestReserveUnknownProduct(t *testing.T) {
	ledger, _ := newLedger(t, 3)

	_, err := ledger.Reserve(context.Background(), "missing", 1)
	assert.ErrorIs(t, err, apperr.ErrProductNotFound)
}

func TestReserveRejectsNonPositiveQuantity(t *testing.T) {
	ledger, _ := newLedger(t, 3)

	_, err := ledger.Reserve(context.Background(), "p-1", 0)
	assert.ErrorIs(t, err, apperr.ErrInvalidParameter)
}

func TestReserveMarksSoldOutAndReleaseReactivates(t *testing.T) {
	ledger, _ := newLedger(t, 2)

	p, err := ledger.Reserve(context.Background(), "p-1", 2)
	require.NoError(t, err)
	assert.Equal(t, domain.ProductSoldOut, p.Status)

	require.NoError(t, ledger.Release(context.Background(), "p-1", 1))
	got, err := ledger.Product(context.Background(), "p-1")
	require.NoError(t, err)
	assert.Equal(t, domain.ProductActive, got.Status)
	assert.Equal(t, int64(1), got.Available)
}

func TestConcurrentReservationsNeverOversell(t *testing.T) {
	const stock, attempts = 25, 100
	ledger, store := newLedger(t, stock)

	var ok, denied int32
	var g errgroup.Group
	for i := 0; i < attempts; i++ {
		g.Go(func() error {
			_, err := ledger.Reserve(context.Background(), "p-1", 1)
			switch {
			case err == nil:
				atomic.AddInt32(&ok, 1)
			case errors.Is(err, apperr.ErrInsufficientStock):
				atomic.AddInt32(&denied, 1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int32(stock), ok)
	assert.Equal(t, int32(attempts-stock), denied)

	got, err := ledger.Product(context.Background(), "p-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.Available)
	assert.GreaterOrEqual(t, store.LowestObserved("p-1"), int64(0))
}

func TestReleaseOnceIsIdempotentPerKey(t *testing.T) {
	ledger, _ := newLedger(t, 10)
	_, err := ledger.Reserve(context.Background(), "p-1", 4)
	require.NoError(t, err)

	applied, err := ledger.ReleaseOnce(context.Background(), "cancel:o-1:li-1", "p-1", 4)
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = ledger.ReleaseOnce(context.Background(), "cancel:o-1:li-1", "p-1", 4)
	require.NoError(t, err)
	assert.False(t, applied)

	got, err := ledger.Product(context.Background(), "p-1")
	require.NoError(t, err)
	assert.Equal(t, int64(10), got.Available)
}

func TestReleaseOnceUnknownProduct(t *testing.T) {
	ledger, _ := newLedger(t, 10)

	_, err := ledger.ReleaseOnce(context.Background(), "k", "missing", 1)
	assert.ErrorIs(t, err, apperr.ErrProductNotFound)
}

func TestReserveFailsWhenStockLockHeld(t *testing.T) {
	store := memory.NewStore()
	locker := lock.NewLocalLocker(20 * time.Millisecond)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	ledger := application.NewLedger(log, locker, store, nil)
	p, err := domain.NewProduct("p-1", "keyboard", 1500, 5)
	require.NoError(t, err)
	require.NoError(t, store.SaveProduct(context.Background(), p))

	release, err := locker.Acquire(context.Background(), lock.StockKey("p-1"))
	require.NoError(t, err)
	defer func() { _ = release(context.Background()) }()

	_, err = ledger.Reserve(context.Background(), "p-1", 1)
	require.ErrorIs(t, err, apperr.ErrLockAcquisitionFailed)

	got, err := store.FindProduct(context.Background(), "p-1")
	require.NoError(t, err)
	assert.Equal(t, int64(5), got.Available)
}
