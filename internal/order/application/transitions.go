package application

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/stock-order-system/internal/apperr"
	"github.com/dmehra2102/stock-order-system/internal/order/domain"
)

// CancelOrder cancels immediately, without an approval step, and returns each
// product's reserved quantity to stock. Allowed for the owner or an admin
// while the order is Created, Accepted or Preparing.
func (s *Service) CancelOrder(ctx context.Context, orderID string, actor Actor, reason string) (err error) {
	ctx, span := s.tracer.Start(ctx, "CancelOrder", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer func() { endSpan(span, err) }()

	o, err := s.mutate(ctx, orderID, func(ctx context.Context, o *domain.Order) error {
		if !actor.CanActFor(o.OwnerID) {
			return apperr.ErrUnauthorized
		}
		if err := o.Cancel(reason); err != nil {
			return err
		}
		if _, err := s.repo.SaveOrder(ctx, *o); err != nil {
			return err
		}
		s.settleRelease(ctx, o, "cancel")
		return nil
	})
	if err != nil {
		s.log.Info("cancel refused", "order_id", orderID, "err", err)
		return err
	}
	s.publish(ctx, domain.NewEvent(domain.EventOrderCancelled, o, reason))
	return nil
}

// RequestCancel asks an administrator to cancel. Stock stays reserved until
// the request is approved.
func (s *Service) RequestCancel(ctx context.Context, orderID string, actor Actor, reason string) (err error) {
	ctx, span := s.tracer.Start(ctx, "RequestCancel", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer func() { endSpan(span, err) }()

	o, err := s.mutate(ctx, orderID, func(ctx context.Context, o *domain.Order) error {
		if !actor.CanActFor(o.OwnerID) {
			return apperr.ErrUnauthorized
		}
		if err := o.RequestCancel(reason); err != nil {
			return err
		}
		_, err := s.repo.SaveOrder(ctx, *o)
		return err
	})
	if err != nil {
		return err
	}
	s.publish(ctx, domain.NewEvent(domain.EventCancelRequested, o, reason))
	return nil
}

// DecideCancel is the administrator's answer to RequestCancel. Approval
// cancels and releases stock; rejection restores the previous status.
func (s *Service) DecideCancel(ctx context.Context, orderID string, approve bool, reason string) (err error) {
	ctx, span := s.tracer.Start(ctx, "DecideCancel", trace.WithAttributes(
		attribute.String("order.id", orderID),
		attribute.Bool("cancel.approved", approve),
	))
	defer func() { endSpan(span, err) }()

	if !approve && reason == "" {
		return apperr.ErrReasonRequired
	}
	o, err := s.mutate(ctx, orderID, func(ctx context.Context, o *domain.Order) error {
		if !approve {
			if err := o.RejectCancel(reason); err != nil {
				return err
			}
			_, err := s.repo.SaveOrder(ctx, *o)
			return err
		}
		if err := o.ApproveCancel(reason); err != nil {
			return err
		}
		if _, err := s.repo.SaveOrder(ctx, *o); err != nil {
			return err
		}
		s.settleRelease(ctx, o, "cancel")
		return nil
	})
	if err != nil {
		return err
	}
	if approve {
		s.publish(ctx, domain.NewEvent(domain.EventOrderCancelled, o, reason))
	} else {
		s.publish(ctx, domain.NewEvent(domain.EventCancelRejected, o, reason))
	}
	return nil
}

func (s *Service) AcceptPayment(ctx context.Context, orderID, paymentID string) (err error) {
	ctx, span := s.tracer.Start(ctx, "AcceptPayment", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer func() { endSpan(span, err) }()

	o, err := s.mutate(ctx, orderID, func(ctx context.Context, o *domain.Order) error {
		if err := o.AcceptPayment(paymentID); err != nil {
			return err
		}
		_, err := s.repo.SaveOrder(ctx, *o)
		return err
	})
	if err != nil {
		return err
	}
	s.publish(ctx, domain.NewEvent(domain.EventPaymentAccepted, o, paymentID))
	return nil
}

// FailPayment cancels a Created order whose payment was declined and returns
// its stock.
func (s *Service) FailPayment(ctx context.Context, orderID, reason string) (err error) {
	ctx, span := s.tracer.Start(ctx, "FailPayment", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer func() { endSpan(span, err) }()

	o, err := s.mutate(ctx, orderID, func(ctx context.Context, o *domain.Order) error {
		if err := o.CancelByPaymentFailure(reason); err != nil {
			return err
		}
		if _, err := s.repo.SaveOrder(ctx, *o); err != nil {
			return err
		}
		s.settleRelease(ctx, o, "payment_failed")
		return nil
	})
	if err != nil {
		return err
	}
	s.publish(ctx, domain.NewEvent(domain.EventOrderCancelled, o, reason))
	return nil
}

// ChangeOrderStatus is the administrative fulfillment step. It only accepts
// the next status on the fulfillment path (Accepted, Preparing, Shipping,
// Delivered, Confirmed); cancellation and refunds have their own operations.
func (s *Service) ChangeOrderStatus(ctx context.Context, orderID string, next domain.OrderStatus) (err error) {
	ctx, span := s.tracer.Start(ctx, "ChangeOrderStatus", trace.WithAttributes(
		attribute.String("order.id", orderID),
		attribute.String("order.status", string(next)),
	))
	defer func() { endSpan(span, err) }()

	if !next.Valid() {
		return apperr.Wrap(apperr.ErrInvalidParameter, "unknown status %q", next)
	}
	o, err := s.mutate(ctx, orderID, func(ctx context.Context, o *domain.Order) error {
		if err := o.Advance(next); err != nil {
			return err
		}
		_, err := s.repo.SaveOrder(ctx, *o)
		return err
	})
	if err != nil {
		return err
	}
	s.publish(ctx, domain.NewEvent(domain.EventStatusAdvanced, o, ""))
	return nil
}

func (s *Service) ConfirmPurchase(ctx context.Context, orderID string, actor Actor) (err error) {
	ctx, span := s.tracer.Start(ctx, "ConfirmPurchase", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer func() { endSpan(span, err) }()

	o, err := s.mutate(ctx, orderID, func(ctx context.Context, o *domain.Order) error {
		if o.OwnerID != actor.UserID {
			return apperr.ErrUnauthorized
		}
		if err := o.ConfirmPurchase(); err != nil {
			return err
		}
		_, err := s.repo.SaveOrder(ctx, *o)
		return err
	})
	if err != nil {
		return err
	}
	s.publish(ctx, domain.NewEvent(domain.EventPurchaseConfirmed, o, ""))
	return nil
}
