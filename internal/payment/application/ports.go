package application

import (
	"context"

	orderapp "github.com/dmehra2102/stock-order-system/internal/order/application"
	orderdomain "github.com/dmehra2102/stock-order-system/internal/order/domain"
	"github.com/dmehra2102/stock-order-system/internal/payment/domain"
)

type PaymentRepository interface {
	SavePayment(ctx context.Context, p domain.Payment) error
	// FindByOrder returns the order's payments, newest first.
	FindByOrder(ctx context.Context, orderID string) ([]domain.Payment, error)
}

// Orders is the part of the order service a payment drives.
type Orders interface {
	GetOrder(ctx context.Context, orderID string, actor orderapp.Actor) (orderdomain.Order, error)
	AcceptPayment(ctx context.Context, orderID, paymentID string) error
	FailPayment(ctx context.Context, orderID, reason string) error
}
