package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/dmehra2102/stock-order-system/internal/payment/domain"
)

type Store struct {
	mu       sync.RWMutex
	payments map[string]domain.Payment
}

func NewStore() *Store {
	return &Store{payments: make(map[string]domain.Payment)}
}

func (s *Store) SavePayment(_ context.Context, p domain.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payments[p.ID] = p
	return nil
}

func (s *Store) FindByOrder(_ context.Context, orderID string) ([]domain.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Payment
	for _, p := range s.payments {
		if p.OrderID == orderID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
