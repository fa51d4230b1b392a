package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore backs tests and the "memory" DB driver.
type MemoryStore struct {
	mu       sync.Mutex
	attempts map[string]Attempt
	events   map[string]ProviderEvent // provider + "/" + event id
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		attempts: make(map[string]Attempt),
		events:   make(map[string]ProviderEvent),
	}
}

func (s *MemoryStore) SaveAttempt(_ context.Context, a *Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if prev, ok := s.attempts[a.ID]; ok {
		a.CreatedAt = prev.CreatedAt
		a.PaymentStatus = mergeSnapshot(prev.PaymentStatus, a.PaymentStatus)
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	s.attempts[a.ID] = *a
	return nil
}

func (s *MemoryStore) GetAttempt(_ context.Context, id string) (Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attempts[id]
	if !ok {
		return Attempt{}, ErrNotFound
	}
	return a, nil
}

func (s *MemoryStore) FindByIntent(_ context.Context, intentID string) (Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findByIntent(intentID)
}

func (s *MemoryStore) findByIntent(intentID string) (Attempt, error) {
	for _, a := range s.attempts {
		if a.IntentID != nil && *a.IntentID == intentID {
			return a, nil
		}
	}
	return Attempt{}, ErrNotFound
}

func (s *MemoryStore) RecordPaymentEvent(_ context.Context, ev ProviderEvent, upd *PaymentUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := ev.Provider + "/" + ev.EventID
	if _, ok := s.events[key]; ok {
		return ErrDuplicateEvent
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.ReceivedAt.IsZero() {
		ev.ReceivedAt = time.Now()
	}

	if upd != nil {
		a, err := s.findByIntent(upd.IntentID)
		if err != nil {
			msg := err.Error()
			ev.ProcessError = &msg
			s.events[key] = ev
			return nil
		}
		if status, changed := applyStatus(a.PaymentStatus, upd.Status); changed {
			a.PaymentStatus = status
			a.ErrorTitle = strPtr(upd.ErrorTitle)
			a.ErrorMessage = strPtr(upd.ErrorMessage)
			a.UpdatedAt = time.Now()
			s.attempts[a.ID] = a
		}
	}

	now := time.Now()
	ev.ProcessedAt = &now
	s.events[key] = ev
	return nil
}

// Event returns a recorded provider event, for tests and tooling.
func (s *MemoryStore) Event(provider, eventID string) (ProviderEvent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[provider+"/"+eventID]
	return ev, ok
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*GormStore)(nil)
	_ Store = (*PgStore)(nil)
)
