package domain

import (
	"strings"
	"time"

	"github.com/dmehra2102/stock-order-system/internal/apperr"
)

type ProductStatus string

const (
	ProductActive   ProductStatus = "ACTIVATED"
	ProductSoldOut  ProductStatus = "SOLD_OUT"
	ProductInactive ProductStatus = "IN_ACTIVATED"
)

// Product is the inventory record. Available is never negative; it only moves
// through Reserve and Release.
type Product struct {
	ID         string
	Name       string
	PriceCents int64
	Available  int64
	Status     ProductStatus
	UpdatedAt  time.Time
}

func NewProduct(id, name string, priceCents, stock int64) (Product, error) {
	if strings.TrimSpace(id) == "" || strings.TrimSpace(name) == "" || priceCents < 0 || stock < 0 {
		return Product{}, apperr.ErrInvalidParameter
	}
	return Product{
		ID:         id,
		Name:       name,
		PriceCents: priceCents,
		Available:  stock,
		Status:     ProductActive,
		UpdatedAt:  time.Now().UTC(),
	}, nil
}

func (p Product) CanProvide(qty int64) bool {
	return p.Status != ProductInactive && p.Available >= qty
}

// Reserve returns the product with qty taken out of Available.
func (p Product) Reserve(qty int64) (Product, error) {
	if qty <= 0 {
		return p, apperr.ErrInvalidParameter
	}
	if !p.CanProvide(qty) {
		return p, apperr.ErrInsufficientStock
	}
	p.Available -= qty
	if p.Available == 0 {
		p.Status = ProductSoldOut
	}
	p.UpdatedAt = time.Now().UTC()
	return p, nil
}

func (p Product) Release(qty int64) (Product, error) {
	if qty <= 0 {
		return p, apperr.ErrInvalidParameter
	}
	p.Available += qty
	if p.Status == ProductSoldOut {
		p.Status = ProductActive
	}
	p.UpdatedAt = time.Now().UTC()
	return p, nil
}
