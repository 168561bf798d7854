package application

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/stock-order-system/internal/apperr"
	"github.com/dmehra2102/stock-order-system/internal/order/domain"
)

// RequestRefund opens a refund or return on a Shipping or Delivered order.
// Only the owner may ask, and only while no other request is pending or
// completed for the order.
func (s *Service) RequestRefund(ctx context.Context, orderID string, actor Actor, t domain.RefundType, reason string) (refundID string, err error) {
	ctx, span := s.tracer.Start(ctx, "RequestRefund", trace.WithAttributes(
		attribute.String("order.id", orderID),
		attribute.String("refund.type", string(t)),
	))
	defer func() { endSpan(span, err) }()

	var refund domain.Refund
	o, err := s.mutate(ctx, orderID, func(ctx context.Context, o *domain.Order) error {
		if actor.UserID == "" || o.OwnerID != actor.UserID {
			return apperr.ErrUnauthorized
		}
		existing, err := s.repo.FindRefundsByOrder(ctx, o.ID)
		if err != nil {
			return fmt.Errorf("find refunds: %w", err)
		}
		for _, r := range existing {
			if !r.Blocking() {
				continue
			}
			if r.Status == domain.RefundCompleted {
				return apperr.ErrAlreadyRefunded
			}
			return apperr.ErrDuplicateRequest
		}
		refund, err = domain.NewRefund(s.newID(), o.ID, actor.UserID, t, reason, s.now())
		if err != nil {
			return err
		}
		if err := o.RequestRefund(t, reason); err != nil {
			return err
		}
		return s.repo.SaveRefundWithOrder(ctx, refund, *o)
	})
	if err != nil {
		s.log.Info("refund request refused", "order_id", orderID, "err", err)
		return "", err
	}
	s.publish(ctx, domain.NewEvent(domain.EventRefundRequested, o, reason))
	return refund.ID, nil
}

// ApproveRefund completes the order's pending request and returns its stock.
func (s *Service) ApproveRefund(ctx context.Context, orderID string) (err error) {
	ctx, span := s.tracer.Start(ctx, "ApproveRefund", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer func() { endSpan(span, err) }()

	o, err := s.mutate(ctx, orderID, func(ctx context.Context, o *domain.Order) error {
		refund, err := s.pendingRefund(ctx, o.ID)
		if err != nil {
			return err
		}
		if err := o.CompleteRefund(refund.Type); err != nil {
			return err
		}
		if refund.Status == domain.RefundRequested {
			if err := refund.Approve(); err != nil {
				return err
			}
		}
		if err := refund.Complete(); err != nil {
			return err
		}
		if err := s.repo.SaveRefundWithOrder(ctx, refund, *o); err != nil {
			return err
		}
		s.settleRelease(ctx, o, "refund")
		return nil
	})
	if err != nil {
		return err
	}
	s.publish(ctx, domain.NewEvent(domain.EventRefundCompleted, o, ""))
	return nil
}

// RejectRefund declines a pending request and puts the order back where it
// was before the request. Inventory is not touched.
func (s *Service) RejectRefund(ctx context.Context, refundID, reason string) (err error) {
	ctx, span := s.tracer.Start(ctx, "RejectRefund", trace.WithAttributes(attribute.String("refund.id", refundID)))
	defer func() { endSpan(span, err) }()

	found, err := s.repo.FindRefund(ctx, refundID)
	if err != nil {
		return err
	}
	o, err := s.mutate(ctx, found.OrderID, func(ctx context.Context, o *domain.Order) error {
		refund, err := s.repo.FindRefund(ctx, refundID)
		if err != nil {
			return err
		}
		if err := refund.Reject(reason); err != nil {
			return err
		}
		if err := o.RejectRefund(refund.Type, reason); err != nil {
			return err
		}
		return s.repo.SaveRefundWithOrder(ctx, refund, *o)
	})
	if err != nil {
		return err
	}
	s.publish(ctx, domain.NewEvent(domain.EventRefundRejected, o, reason))
	return nil
}

func (s *Service) GetRefund(ctx context.Context, refundID string) (domain.Refund, error) {
	return s.repo.FindRefund(ctx, refundID)
}

func (s *Service) ListRefunds(ctx context.Context, page Page) ([]domain.Refund, error) {
	return s.repo.ListRefunds(ctx, page.Normalize())
}

func (s *Service) pendingRefund(ctx context.Context, orderID string) (domain.Refund, error) {
	refunds, err := s.repo.FindRefundsByOrder(ctx, orderID)
	if err != nil {
		return domain.Refund{}, fmt.Errorf("find refunds: %w", err)
	}
	for _, r := range refunds {
		if r.Pending() {
			return r, nil
		}
	}
	return domain.Refund{}, apperr.Wrap(apperr.ErrRefundNotFound, "no pending request for order %s", orderID)
}
