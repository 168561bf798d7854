package application

import (
	"context"

	"github.com/dmehra2102/stock-order-system/internal/inventory/domain"
)

// ProductStore persists inventory records. Callers hold the product's stock
// lock around every read-modify-write.
type ProductStore interface {
	// FindProduct returns apperr.ErrProductNotFound when id is unknown.
	FindProduct(ctx context.Context, id string) (domain.Product, error)
	SaveProduct(ctx context.Context, p domain.Product) error
	// ApplyRelease records key and adds qty to the product atomically. It
	// returns false without touching stock when key was already recorded.
	ApplyRelease(ctx context.Context, key, productID string, qty int64) (bool, error)
}
