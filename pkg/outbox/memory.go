package outbox

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-process outbox for single-node deployments and tests.
// Sent events are dropped.
type MemoryStore struct {
	mu     sync.Mutex
	nextID int64
	events map[int64]Event
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{events: make(map[int64]Event)}
}

func (m *MemoryStore) Append(_ context.Context, e Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	e.ID = m.nextID
	e.Status = StatusPending
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	m.events[e.ID] = e
	return nil
}

func (m *MemoryStore) LockBatch(_ context.Context, relayID string, batchSize int, lease time.Duration) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	ids := make([]int64, 0, len(m.events))
	for id, e := range m.events {
		if e.Claimable(now) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if len(ids) > batchSize {
		ids = ids[:batchSize]
	}
	out := make([]Event, 0, len(ids))
	for _, id := range ids {
		e := m.events[id]
		e.Status = StatusInProgress
		e.RelayID = relayID
		e.LeaseUntil = now.Add(lease)
		m.events[id] = e
		out = append(out, e)
	}
	return out, nil
}

func (m *MemoryStore) MarkSent(_ context.Context, ids []int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	updated := 0
	for _, id := range ids {
		if _, ok := m.events[id]; ok {
			delete(m.events, id)
			updated++
		}
	}
	if updated == 0 {
		return errors.New("no rows updated")
	}
	return nil
}

func (m *MemoryStore) MarkFailed(_ context.Context, id int64, errMsg string, permanent bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[id]
	if !ok {
		return errors.New("no rows updated")
	}
	e.Status = StatusFailed
	e.LastError = &errMsg
	e.RetryCount++
	if permanent {
		e.RetryCount = MaxRetries
	}
	m.events[id] = e
	return nil
}

func (m *MemoryStore) ExtendLease(_ context.Context, relayID string, ids []int64, lease time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	until := time.Now().Add(lease)
	for _, id := range ids {
		if e, ok := m.events[id]; ok && e.RelayID == relayID {
			e.LeaseUntil = until
			m.events[id] = e
		}
	}
	return nil
}

// Get returns a copy of the event with id.
func (m *MemoryStore) Get(id int64) (Event, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[id]
	return e, ok
}
