package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/stock-order-system/internal/apperr"
	orderapp "github.com/dmehra2102/stock-order-system/internal/order/application"
	orderdomain "github.com/dmehra2102/stock-order-system/internal/order/domain"
	"github.com/dmehra2102/stock-order-system/internal/payment/domain"
)

// system acts for gateway callbacks, which are not tied to a user session.
var system = orderapp.Actor{UserID: "payment-gateway", Admin: true}

type Service struct {
	log      *slog.Logger
	repo     PaymentRepository
	orders   Orders
	feeCents int64
	tracer   trace.Tracer

	now   func() time.Time
	newID func() string
}

func NewService(log *slog.Logger, repo PaymentRepository, orders Orders, deliveryFeeCents int64) *Service {
	return &Service{
		log:      log,
		repo:     repo,
		orders:   orders,
		feeCents: deliveryFeeCents,
		tracer:   otel.Tracer("payment-service"),
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Pay records a payment for a Created order and accepts it. Paying anything
// other than a Created order fails with apperr.ErrAlreadyPaid.
func (s *Service) Pay(ctx context.Context, orderID string, actor orderapp.Actor, method domain.Method) (domain.Payment, error) {
	ctx, span := s.tracer.Start(ctx, "Pay", trace.WithAttributes(
		attribute.String("order.id", orderID),
		attribute.String("payment.method", string(method)),
	))
	defer span.End()

	o, err := s.orders.GetOrder(ctx, orderID, actor)
	if err != nil {
		return domain.Payment{}, err
	}
	if o.Status != orderdomain.StatusCreated {
		return domain.Payment{}, apperr.ErrAlreadyPaid
	}

	p, err := domain.NewPayment(s.newID(), o.ID, method, o.TotalCents(), 0, s.feeCents, s.now())
	if err != nil {
		return domain.Payment{}, err
	}
	if err := s.repo.SavePayment(ctx, p); err != nil {
		return domain.Payment{}, fmt.Errorf("save payment: %w", err)
	}

	if err := s.orders.AcceptPayment(ctx, o.ID, p.ID); err != nil {
		p.Fail("order not payable: " + apperr.From(err).Code)
		if saveErr := s.repo.SavePayment(ctx, p); saveErr != nil {
			s.log.Error("could not void payment", "payment_id", p.ID, "err", saveErr)
		}
		if errors.Is(err, apperr.ErrInvalidOrderStatus) {
			return domain.Payment{}, apperr.ErrAlreadyPaid
		}
		return domain.Payment{}, err
	}

	s.log.Info("payment accepted", "order_id", o.ID, "payment_id", p.ID, "final_cents", p.FinalCents)
	return p, nil
}

// Fail records a declined payment and cancels the order, returning its stock.
func (s *Service) Fail(ctx context.Context, orderID, reason string) error {
	ctx, span := s.tracer.Start(ctx, "FailPayment", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer span.End()

	o, err := s.orders.GetOrder(ctx, orderID, system)
	if err != nil {
		return err
	}
	if o.Status != orderdomain.StatusCreated {
		return apperr.ErrAlreadyPaid
	}
	p, err := domain.NewPayment(s.newID(), o.ID, domain.MethodCard, o.TotalCents(), 0, s.feeCents, s.now())
	if err != nil {
		return err
	}
	p.Fail(reason)
	if err := s.repo.SavePayment(ctx, p); err != nil {
		return fmt.Errorf("save payment: %w", err)
	}
	if err := s.orders.FailPayment(ctx, o.ID, reason); err != nil {
		return err
	}
	s.log.Info("payment failed", "order_id", o.ID, "reason", reason)
	return nil
}

func (s *Service) Payments(ctx context.Context, orderID string) ([]domain.Payment, error) {
	return s.repo.FindByOrder(ctx, orderID)
}

// HandleProcessed applies a gateway success callback.
func (s *Service) HandleProcessed(ctx context.Context, ev domain.PaymentProcessed) error {
	method := ev.Method
	if method == "" {
		method = domain.MethodCard
	}
	_, err := s.Pay(ctx, ev.OrderID, system, method)
	return err
}

func (s *Service) HandleFailed(ctx context.Context, ev domain.PaymentFailed) error {
	return s.Fail(ctx, ev.OrderID, ev.Reason)
}
