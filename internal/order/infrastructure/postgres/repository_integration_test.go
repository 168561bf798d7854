//go:build integration

package postgres_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/dmehra2102/stock-order-system/internal/apperr"
	invapp "github.com/dmehra2102/stock-order-system/internal/inventory/application"
	invdomain "github.com/dmehra2102/stock-order-system/internal/inventory/domain"
	invpg "github.com/dmehra2102/stock-order-system/internal/inventory/infrastructure/postgres"
	"github.com/dmehra2102/stock-order-system/internal/lock"
	"github.com/dmehra2102/stock-order-system/internal/order/application"
	"github.com/dmehra2102/stock-order-system/internal/order/domain"
	"github.com/dmehra2102/stock-order-system/internal/order/infrastructure/events"
	orderkafka "github.com/dmehra2102/stock-order-system/internal/order/infrastructure/kafka"
	"github.com/dmehra2102/stock-order-system/internal/order/infrastructure/postgres"
	"github.com/dmehra2102/stock-order-system/internal/platform/postgres/pgtest"
	"github.com/dmehra2102/stock-order-system/pkg/outbox"
)

var (
	owner    = application.Actor{UserID: "u-1"}
	receiver = domain.Receiver{Name: "Kim", Address: "1 Main St", Mobile: "010"}
)

func TestOrderLifecycleAgainstPostgres(t *testing.T) {
	ctx := context.Background()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	pool := pgtest.Pool(t)

	locker := lock.NewLocalLocker(5 * time.Second)
	ledger := invapp.NewLedger(log, locker, invpg.NewRepository(log, pool), nil)
	p, err := invdomain.NewProduct("p-1", "lamp", 2500, 10)
	require.NoError(t, err)
	require.NoError(t, ledger.Register(ctx, p))

	repo := postgres.NewRepository(log, pool)
	outboxStore := postgres.NewOutboxStore(log, pool)
	svc := application.NewService(log, repo, ledger, locker, events.NewOutboxSink(outboxStore, "order-service"), nil)

	var ok, short atomic.Int32
	ids := make(chan string, 5)
	var g errgroup.Group
	for range 5 {
		g.Go(func() error {
			id, err := svc.CreateOrder(ctx, owner.UserID, "p-1", receiver, 3)
			switch {
			case err == nil:
				ok.Add(1)
				ids <- id
			case errors.Is(err, apperr.ErrInsufficientStock):
				short.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	close(ids)
	assert.Equal(t, int32(3), ok.Load())
	assert.Equal(t, int32(2), short.Load())

	stock := func() int64 {
		p, err := ledger.Product(ctx, "p-1")
		require.NoError(t, err)
		return p.Available
	}
	assert.Equal(t, int64(1), stock())

	first := <-ids
	o, err := repo.FindOrder(ctx, first)
	require.NoError(t, err)
	require.Len(t, o.Items, 1)
	assert.Equal(t, int64(7500), o.TotalCents())

	require.NoError(t, svc.CancelOrder(ctx, first, owner, "changed my mind"))
	assert.Equal(t, int64(4), stock())
	assert.ErrorIs(t, svc.CancelOrder(ctx, first, owner, ""), apperr.ErrInvalidOrderStatus)
	assert.Equal(t, int64(4), stock())

	applied, err := ledger.ReleaseOnce(ctx, application.ReleaseKey(first, "p-1"), "p-1", 3)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, int64(4), stock())

	second := <-ids
	require.NoError(t, svc.AcceptPayment(ctx, second, "pay-1"))
	require.NoError(t, svc.ChangeOrderStatus(ctx, second, domain.StatusPreparing))
	require.NoError(t, svc.ChangeOrderStatus(ctx, second, domain.StatusShipping))
	assert.ErrorIs(t, svc.ChangeReceiver(ctx, second, owner, receiver), apperr.ErrCannotUpdateOrder)

	_, err = svc.RequestRefund(ctx, second, owner, domain.RefundTypeRefund, "late")
	require.NoError(t, err)
	_, err = svc.RequestRefund(ctx, second, owner, domain.RefundTypeRefund, "late")
	assert.ErrorIs(t, err, apperr.ErrDuplicateRequest)

	require.NoError(t, svc.ApproveRefund(ctx, second))
	assert.Equal(t, int64(7), stock())

	pending, err := repo.FindPendingReleases(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	list, err := svc.ListOrders(ctx, owner.UserID, application.Page{Size: 10})
	require.NoError(t, err)
	assert.Len(t, list, 3)
}

func TestDuplicatePendingRefundRejectedByIndex(t *testing.T) {
	ctx := context.Background()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := postgres.NewRepository(log, pgtest.Pool(t))

	o := domain.NewOrder("o-1", "u-1", receiver, time.Now())
	_, err := repo.SaveOrder(ctx, o)
	require.NoError(t, err)

	r1, err := domain.NewRefund("r-1", "o-1", "u-1", domain.RefundTypeRefund, "late", time.Now())
	require.NoError(t, err)
	require.NoError(t, repo.SaveRefundWithOrder(ctx, r1, o))

	r2, err := domain.NewRefund("r-2", "o-1", "u-1", domain.RefundTypeRefund, "late", time.Now())
	require.NoError(t, err)
	assert.ErrorIs(t, repo.SaveRefundWithOrder(ctx, r2, o), apperr.ErrDuplicateRequest)

	got, err := repo.FindRefundsByOrder(ctx, "o-1")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestOutboxRelayDeliversToKafka(t *testing.T) {
	ctx := context.Background()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := postgres.NewOutboxStore(log, pgtest.Pool(t))
	brokers := pgtest.Brokers(t)

	writer := orderkafka.NewWriter(brokers)
	t.Cleanup(func() { _ = writer.Close() })

	o := domain.NewOrder("o-42", "u-1", receiver, time.Now())
	sink := events.NewOutboxSink(store, "order-service")
	require.NoError(t, sink.Publish(ctx, domain.NewEvent(domain.EventOrderPlaced, o, "")))

	relay := outbox.NewRelay(log, store, outbox.NewDispatcher(log, writer, "order.events"), "it-relay")
	require.Eventually(t, func() bool {
		n, err := relay.Tick(ctx)
		return err == nil && n == 1
	}, 30*time.Second, 500*time.Millisecond)

	reader := kafka.NewReader(kafka.ReaderConfig{Brokers: brokers, Topic: "order.events", Partition: 0})
	t.Cleanup(func() { _ = reader.Close() })
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	msg, err := reader.ReadMessage(readCtx)
	require.NoError(t, err)

	var ev domain.Event
	require.NoError(t, json.Unmarshal(msg.Value, &ev))
	assert.Equal(t, "o-42", ev.OrderID)
	assert.Equal(t, domain.EventOrderPlaced, ev.Type)
}

func TestStockReturnJournalAgainstPostgres(t *testing.T) {
	ctx := context.Background()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := postgres.NewRepository(log, pgtest.Pool(t))

	now := time.Now().UTC().Truncate(time.Microsecond)
	owed := domain.StockReturn{Key: application.ReleaseKey("o-1", "p-1"), OrderID: "o-1", ProductID: "p-1", Quantity: 4, CreatedAt: now}
	require.NoError(t, repo.SaveStockReturn(ctx, owed))
	dup := owed
	dup.Quantity = 99
	require.NoError(t, repo.SaveStockReturn(ctx, dup))

	got, err := repo.FindStockReturns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(4), got[0].Quantity)
	assert.True(t, now.Equal(got[0].CreatedAt))

	require.NoError(t, repo.DeleteStockReturn(ctx, owed.Key))
	got, err = repo.FindStockReturns(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}
