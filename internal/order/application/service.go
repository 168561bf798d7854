package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/stock-order-system/internal/apperr"
	"github.com/dmehra2102/stock-order-system/internal/lock"
	"github.com/dmehra2102/stock-order-system/internal/order/domain"
	"github.com/dmehra2102/stock-order-system/pkg/metrics"
)

// Actor is the authenticated caller as resolved by the outer layer.
type Actor struct {
	UserID string
	Admin  bool
}

func (a Actor) CanActFor(ownerID string) bool { return a.Admin || (a.UserID != "" && a.UserID == ownerID) }

type Service struct {
	log     *slog.Logger
	repo    Repository
	inv     Inventory
	locker  lock.Locker
	events  EventSink
	metrics *metrics.OrderMetrics
	tracer  trace.Tracer

	now   func() time.Time
	newID func() string

	// owed holds stock returns that could not be journaled in repo either.
	owedMu sync.Mutex
	owed   []domain.StockReturn
}

func NewService(log *slog.Logger, repo Repository, inv Inventory, locker lock.Locker, events EventSink, m *metrics.OrderMetrics) *Service {
	return &Service{
		log:     log,
		repo:    repo,
		inv:     inv,
		locker:  locker,
		events:  events,
		metrics: m,
		tracer:  otel.Tracer("order-service"),
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// CreateOrder reserves qty units of productID and records a new order in
// Created state with a single line item. When the order cannot be stored
// after the reservation succeeded, the reservation is returned.
func (s *Service) CreateOrder(ctx context.Context, ownerID, productID string, receiver domain.Receiver, qty int64) (id string, err error) {
	ctx, span := s.tracer.Start(ctx, "CreateOrder", trace.WithAttributes(
		attribute.String("product.id", productID),
		attribute.Int64("order.quantity", qty),
	))
	defer func() { endSpan(span, err) }()

	if ownerID == "" || productID == "" || qty <= 0 {
		return "", apperr.Wrap(apperr.ErrInvalidParameter, "owner, product and a positive quantity are required")
	}
	r, err := domain.NewReceiver(receiver.Name, receiver.Address, receiver.Mobile)
	if err != nil {
		return "", err
	}
	if _, err := s.inv.Product(ctx, productID); err != nil {
		return "", err
	}

	product, err := s.inv.Reserve(ctx, productID, qty)
	if err != nil {
		s.log.Info("reservation refused", "product_id", productID, "qty", qty, "err", err)
		return "", err
	}

	o := domain.NewOrder(s.newID(), ownerID, r, s.now())
	o.AddItem(domain.LineItem{
		ID:             s.newID(),
		ProductID:      productID,
		Quantity:       qty,
		UnitPriceCents: product.PriceCents,
	})

	if err := s.persistNew(ctx, &o); err != nil {
		s.log.Error("order persist failed, returning reservation", "order_id", o.ID, "product_id", productID, "err", err)
		return "", err
	}

	s.metrics.OrderPlaced()
	s.metrics.Transition(string(o.Status))
	s.publish(ctx, domain.NewEvent(domain.EventOrderPlaced, o,
		fmt.Sprintf("User: %s ordered: %d", ownerID, o.TotalCents())))
	s.log.Info("order placed", "order_id", o.ID, "owner_id", ownerID, "product_id", productID, "qty", qty)
	return o.ID, nil
}

func (s *Service) persistNew(ctx context.Context, o *domain.Order) error {
	id, err := s.repo.SaveOrder(ctx, *o)
	if err != nil {
		s.compensate(ctx, o, false)
		return fmt.Errorf("save order: %w", err)
	}
	o.ID = id
	for i := range o.Items {
		o.Items[i].OrderID = id
		if err := s.repo.SaveLineItem(ctx, o.Items[i]); err != nil {
			s.compensate(ctx, o, true)
			return fmt.Errorf("save line item: %w", err)
		}
	}
	return nil
}

// compensate returns the stock taken for a placement that could not be
// stored. A release that fails is journaled as a StockReturn for the release
// sweeper. A saved order row is cancelled so it never looks reserved, and it
// is only marked released once every product came back.
func (s *Service) compensate(ctx context.Context, o *domain.Order, saved bool) {
	ctx = context.WithoutCancel(ctx)
	settled := true
	for _, rel := range releasesFor(*o) {
		applied, err := s.inv.ReleaseOnce(ctx, rel.key, rel.productID, rel.qty)
		if err != nil {
			settled = false
			s.log.Error("compensating release failed", "order_id", o.ID, "product_id", rel.productID, "err", err)
			s.oweStock(ctx, domain.StockReturn{
				Key:       rel.key,
				OrderID:   o.ID,
				ProductID: rel.productID,
				Quantity:  rel.qty,
				CreatedAt: s.now().UTC(),
			})
			continue
		}
		if applied {
			s.metrics.Released("placement_failed", rel.qty)
		}
	}
	if !saved {
		return
	}
	if err := o.Cancel("placement failed"); err != nil {
		return
	}
	if settled {
		o.MarkStockReleased()
	}
	if _, err := s.repo.SaveOrder(ctx, *o); err != nil {
		s.log.Error("could not mark failed placement cancelled", "order_id", o.ID, "err", err)
	}
}

func (s *Service) GetOrder(ctx context.Context, orderID string, actor Actor) (domain.Order, error) {
	o, err := s.repo.FindOrder(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if !actor.CanActFor(o.OwnerID) {
		return domain.Order{}, apperr.Wrap(apperr.ErrOrderNotFound, "order %s", orderID)
	}
	return o, nil
}

func (s *Service) ListOrders(ctx context.Context, ownerID string, page Page) ([]domain.Order, error) {
	return s.repo.FindOrdersByOwner(ctx, ownerID, page.Normalize())
}

func (s *Service) ChangeReceiver(ctx context.Context, orderID string, actor Actor, receiver domain.Receiver) (err error) {
	ctx, span := s.tracer.Start(ctx, "ChangeReceiver")
	defer func() { endSpan(span, err) }()

	r, err := domain.NewReceiver(receiver.Name, receiver.Address, receiver.Mobile)
	if err != nil {
		return err
	}
	o, err := s.mutate(ctx, orderID, func(ctx context.Context, o *domain.Order) error {
		if !actor.CanActFor(o.OwnerID) {
			return apperr.ErrUnauthorized
		}
		if err := o.ChangeReceiver(r); err != nil {
			return err
		}
		_, err := s.repo.SaveOrder(ctx, *o)
		return err
	})
	if err != nil {
		return err
	}
	s.publish(ctx, domain.NewEvent(domain.EventReceiverChanged, o, ""))
	return nil
}

// mutate loads the order under its lock and hands it to fn. fn persists its
// own changes; the returned order is the state fn left behind.
func (s *Service) mutate(ctx context.Context, orderID string, fn func(ctx context.Context, o *domain.Order) error) (domain.Order, error) {
	o, err := lock.WithLock(ctx, s.locker, lock.OrderKey(orderID), func(ctx context.Context) (domain.Order, error) {
		o, err := s.repo.FindOrder(ctx, orderID)
		if err != nil {
			return domain.Order{}, err
		}
		from := o.Status
		if err := fn(ctx, &o); err != nil {
			return domain.Order{}, err
		}
		if o.Status != from {
			s.metrics.Transition(string(o.Status))
		}
		return o, nil
	})
	if errors.Is(err, apperr.ErrLockAcquisitionFailed) {
		s.metrics.LockFailed("order")
	}
	return o, err
}

func (s *Service) publish(ctx context.Context, ev domain.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(context.WithoutCancel(ctx), ev); err != nil {
		s.metrics.PublishFailed()
		s.log.Warn("event publish failed", "type", ev.Type, "order_id", ev.OrderID, "err", err)
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, apperr.From(err).Code)
	}
	span.End()
}
