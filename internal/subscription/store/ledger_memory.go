package store

import (
	"context"
	"sync"

	"dealerhub/internal/subscription/models"
	id "dealerhub/pkg/domain"
	txcontext "dealerhub/pkg/platform/tx"
)

// InMemoryLedger keeps credit ledger entries per account in insertion order.
type InMemoryLedger struct {
	mu      sync.RWMutex
	entries map[id.AccountID][]models.LedgerEntry
}

func NewInMemoryLedger() *InMemoryLedger {
	return &InMemoryLedger{entries: make(map[id.AccountID][]models.LedgerEntry)}
}

// Append records entry. Inside an in-memory account transaction the write
// is held until that transaction commits.
func (s *InMemoryLedger) Append(ctx context.Context, entry models.LedgerEntry) error {
	txcontext.Stage(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.entries[entry.AccountID] = append(s.entries[entry.AccountID], entry)
	})
	return nil
}

func (s *InMemoryLedger) ListByAccount(_ context.Context, accountID id.AccountID) ([]models.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.LedgerEntry(nil), s.entries[accountID]...), nil
}

// HasActivation reports whether a plan activation with this payment
// reference was already recorded for the account.
func (s *InMemoryLedger) HasActivation(_ context.Context, accountID id.AccountID, reference string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.entries[accountID] {
		if e.IsActivation() && e.Reference == reference {
			return true, nil
		}
	}
	return false, nil
}
