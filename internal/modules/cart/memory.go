package cart

import (
	"context"
	"sync"
	"time"
)

type MemoryStore struct {
	mu    sync.RWMutex
	carts map[string]Snapshot
	now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{carts: map[string]Snapshot{}, now: time.Now}
}

func (m *MemoryStore) Get(ctx context.Context, userID string) (Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.carts[userID]
	if !ok {
		return Snapshot{}, ErrNotFound
	}
	return clone(s), nil
}

func (m *MemoryStore) Put(ctx context.Context, s Snapshot) error {
	if err := s.Validate(); err != nil {
		return err
	}
	s = clone(s)
	s.Recalculate()
	s.UpdatedAt = m.now()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.carts[s.UserID] = s
	return nil
}

func (m *MemoryStore) Clear(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.carts, userID)
	return nil
}

func clone(s Snapshot) Snapshot {
	items := make([]Item, len(s.Items))
	copy(items, s.Items)
	s.Items = items
	if s.DiscountID != nil {
		id := *s.DiscountID
		s.DiscountID = &id
	}
	return s
}
