package application

import (
	"context"

	inventory "github.com/dmehra2102/stock-order-system/internal/inventory/domain"
	"github.com/dmehra2102/stock-order-system/internal/order/domain"
)

type Page struct {
	Number int
	Size   int
}

func (p Page) Normalize() Page {
	if p.Number < 0 {
		p.Number = 0
	}
	if p.Size <= 0 || p.Size > 100 {
		p.Size = 20
	}
	return p
}

func (p Page) Offset() int { return p.Number * p.Size }

// Inventory is the slice of the stock ledger the order workflows depend on.
type Inventory interface {
	Product(ctx context.Context, productID string) (inventory.Product, error)
	Reserve(ctx context.Context, productID string, qty int64) (inventory.Product, error)
	ReleaseOnce(ctx context.Context, key, productID string, qty int64) (bool, error)
}

type OrderStore interface {
	// SaveOrder inserts or updates the order row. Line items are stored
	// separately through LineItemStore.
	SaveOrder(ctx context.Context, o domain.Order) (string, error)
	// FindOrder loads the order with its line items, or apperr.ErrOrderNotFound.
	FindOrder(ctx context.Context, id string) (domain.Order, error)
	FindOrdersByOwner(ctx context.Context, ownerID string, page Page) ([]domain.Order, error)
	// FindPendingReleases lists orders that left a stock-holding status but
	// have not returned all their stock yet.
	FindPendingReleases(ctx context.Context, limit int) ([]domain.Order, error)
}

type LineItemStore interface {
	SaveLineItem(ctx context.Context, item domain.LineItem) error
}

type RefundStore interface {
	FindRefund(ctx context.Context, id string) (domain.Refund, error)
	FindRefundsByOrder(ctx context.Context, orderID string) ([]domain.Refund, error)
	ListRefunds(ctx context.Context, page Page) ([]domain.Refund, error)
	// SaveRefundWithOrder writes both records atomically.
	SaveRefundWithOrder(ctx context.Context, r domain.Refund, o domain.Order) error
}

// StockReturnStore journals compensating releases that have no stored line
// items to be rebuilt from.
type StockReturnStore interface {
	// SaveStockReturn is a no-op when the key is already journaled.
	SaveStockReturn(ctx context.Context, r domain.StockReturn) error
	FindStockReturns(ctx context.Context, limit int) ([]domain.StockReturn, error)
	DeleteStockReturn(ctx context.Context, key string) error
}

// Repository is what a single backing store provides.
type Repository interface {
	OrderStore
	LineItemStore
	RefundStore
	StockReturnStore
}

// EventSink receives notifications after a change is stored. Publish must not
// block the caller for long; failures are logged and never undo the change.
type EventSink interface {
	Publish(ctx context.Context, ev domain.Event) error
}
