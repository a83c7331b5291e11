package memory

import (
	"context"
	"sync"

	id "dealerhub/pkg/domain"
	audit "dealerhub/pkg/platform/audit"
	txcontext "dealerhub/pkg/platform/tx"
)

type InMemoryStore struct {
	mu     sync.RWMutex
	events map[id.AccountID][]audit.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{events: make(map[id.AccountID][]audit.Event)}
}

// Append records event, deferred to commit inside an in-memory account
// transaction.
func (s *InMemoryStore) Append(ctx context.Context, event audit.Event) error {
	txcontext.Stage(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.events[event.AccountID] = append(s.events[event.AccountID], event)
	})
	return nil
}

func (s *InMemoryStore) ListByAccount(_ context.Context, accountID id.AccountID) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Event{}, s.events[accountID]...), nil
}

// Clear drops all events. Test helper.
func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = make(map[id.AccountID][]audit.Event)
}
