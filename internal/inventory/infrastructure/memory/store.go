package memory

import (
	"context"
	"sync"

	"github.com/dmehra2102/stock-order-system/internal/apperr"
	"github.com/dmehra2102/stock-order-system/internal/inventory/domain"
)

// Store keeps products by id plus the set of applied release keys.
type Store struct {
	mu       sync.RWMutex
	products map[string]domain.Product
	releases map[string]struct{}

	// observed tracks the lowest Available ever written, for invariant checks.
	observed map[string]int64
}

func NewStore() *Store {
	return &Store{
		products: make(map[string]domain.Product),
		releases: make(map[string]struct{}),
		observed: make(map[string]int64),
	}
}

func (s *Store) FindProduct(_ context.Context, id string) (domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	if !ok {
		return domain.Product{}, apperr.Wrap(apperr.ErrProductNotFound, "product %s", id)
	}
	return p, nil
}

func (s *Store) SaveProduct(_ context.Context, p domain.Product) error {
	if p.Available < 0 {
		return apperr.Wrap(apperr.ErrInvalidParameter, "product %s: negative stock %d", p.ID, p.Available)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p
	s.track(p)
	return nil
}

func (s *Store) ApplyRelease(_ context.Context, key, productID string, qty int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, done := s.releases[key]; done {
		return false, nil
	}
	p, ok := s.products[productID]
	if !ok {
		return false, apperr.Wrap(apperr.ErrProductNotFound, "product %s", productID)
	}
	next, err := p.Release(qty)
	if err != nil {
		return false, err
	}
	s.products[productID] = next
	s.releases[key] = struct{}{}
	s.track(next)
	return true, nil
}

// LowestObserved returns the minimum availability ever stored for id.
func (s *Store) LowestObserved(id string) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.observed[id]
}

func (s *Store) track(p domain.Product) {
	if low, ok := s.observed[p.ID]; !ok || p.Available < low {
		s.observed[p.ID] = p.Available
	}
}
