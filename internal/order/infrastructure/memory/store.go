package memory

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/dmehra2102/stock-order-system/internal/apperr"
	"github.com/dmehra2102/stock-order-system/internal/order/application"
	"github.com/dmehra2102/stock-order-system/internal/order/domain"
)

// Store holds orders, line items and refunds in maps keyed by id. Records are
// copied in and out so callers never share slices with the store.
type Store struct {
	mu      sync.RWMutex
	orders  map[string]domain.Order
	items   map[string][]domain.LineItem
	refunds map[string]domain.Refund
	returns map[string]domain.StockReturn
}

var _ application.Repository = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		orders:  make(map[string]domain.Order),
		items:   make(map[string][]domain.LineItem),
		refunds: make(map[string]domain.Refund),
		returns: make(map[string]domain.StockReturn),
	}
}

func (s *Store) SaveOrder(_ context.Context, o domain.Order) (string, error) {
	if o.ID == "" {
		return "", apperr.Wrap(apperr.ErrInvalidParameter, "order id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putOrder(o)
	return o.ID, nil
}

func (s *Store) SaveLineItem(_ context.Context, item domain.LineItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[item.OrderID]; !ok {
		return apperr.Wrap(apperr.ErrOrderNotFound, "order %s", item.OrderID)
	}
	items := s.items[item.OrderID]
	for i := range items {
		if items[i].ID == item.ID {
			items[i] = item
			return nil
		}
	}
	s.items[item.OrderID] = append(items, item)
	return nil
}

func (s *Store) FindOrder(_ context.Context, id string) (domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return domain.Order{}, apperr.Wrap(apperr.ErrOrderNotFound, "order %s", id)
	}
	return s.load(o), nil
}

func (s *Store) FindOrdersByOwner(_ context.Context, ownerID string, page application.Page) ([]domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Order
	for _, o := range s.orders {
		if o.OwnerID == ownerID {
			out = append(out, s.load(o))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return paginate(out, page), nil
}

func (s *Store) FindPendingReleases(_ context.Context, limit int) ([]domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Order
	for _, o := range s.orders {
		o = s.load(o)
		if o.PendingRelease() {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) FindRefund(_ context.Context, id string) (domain.Refund, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.refunds[id]
	if !ok {
		return domain.Refund{}, apperr.Wrap(apperr.ErrRefundNotFound, "refund %s", id)
	}
	return r, nil
}

func (s *Store) FindRefundsByOrder(_ context.Context, orderID string) ([]domain.Refund, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Refund
	for _, r := range s.refunds {
		if r.OrderID == orderID {
			out = append(out, r)
		}
	}
	sortRefunds(out)
	return out, nil
}

func (s *Store) ListRefunds(_ context.Context, page application.Page) ([]domain.Refund, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Refund, 0, len(s.refunds))
	for _, r := range s.refunds {
		out = append(out, r)
	}
	sortRefunds(out)
	return paginate(out, page), nil
}

func (s *Store) SaveRefundWithOrder(_ context.Context, r domain.Refund, o domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[o.ID]; !ok {
		return apperr.Wrap(apperr.ErrOrderNotFound, "order %s", o.ID)
	}
	s.refunds[r.ID] = r
	s.putOrder(o)
	return nil
}

func (s *Store) SaveStockReturn(_ context.Context, r domain.StockReturn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.returns[r.Key]; !ok {
		s.returns[r.Key] = r
	}
	return nil
}

func (s *Store) FindStockReturns(_ context.Context, limit int) ([]domain.StockReturn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.StockReturn, 0, len(s.returns))
	for _, r := range s.returns {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Key < out[j].Key
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) DeleteStockReturn(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.returns, key)
	return nil
}

// putOrder stores the order row without its items; items live under
// SaveLineItem. Caller holds mu.
func (s *Store) putOrder(o domain.Order) {
	o.Reasons = slices.Clone(o.Reasons)
	o.Items = nil
	s.orders[o.ID] = o
}

// load attaches copies of the order's line items. Caller holds mu.
func (s *Store) load(o domain.Order) domain.Order {
	o.Reasons = slices.Clone(o.Reasons)
	o.Items = slices.Clone(s.items[o.ID])
	return o
}

func sortRefunds(rs []domain.Refund) {
	sort.Slice(rs, func(i, j int) bool {
		if rs[i].CreatedAt.Equal(rs[j].CreatedAt) {
			return rs[i].ID < rs[j].ID
		}
		return rs[i].CreatedAt.After(rs[j].CreatedAt)
	})
}

func paginate[T any](all []T, page application.Page) []T {
	page = page.Normalize()
	start := page.Offset()
	if start >= len(all) {
		return []T{}
	}
	end := min(start+page.Size, len(all))
	return all[start:end]
}
