package store

import (
	"context"
	"fmt"
	"sync"

	"dealerhub/internal/account/models"
	id "dealerhub/pkg/domain"
	"dealerhub/pkg/platform/sentinel"
	txcontext "dealerhub/pkg/platform/tx"
)

// InMemory is a process-local account store. Execute serializes per account
// and commits the mutated copy only when the callback succeeds.
type InMemory struct {
	mu       sync.RWMutex
	accounts map[id.AccountID]*models.Account
	locks    *txcontext.ShardedLocker
}

func NewInMemory() *InMemory {
	return &InMemory{
		accounts: make(map[id.AccountID]*models.Account),
		locks:    txcontext.NewShardedLocker(0),
	}
}

// Create inserts a new account. Returns sentinel.ErrConflict if the id exists.
func (s *InMemory) Create(_ context.Context, account *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[account.ID]; ok {
		return fmt.Errorf("account %s: %w", account.ID, sentinel.ErrConflict)
	}
	s.accounts[account.ID] = account.Clone()
	return nil
}

// FindByID returns a copy of the account.
func (s *InMemory) FindByID(_ context.Context, accountID id.AccountID) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[accountID]
	if !ok {
		return nil, fmt.Errorf("account %s: %w", accountID, sentinel.ErrNotFound)
	}
	c := a.Clone()
	c.Upgrade()
	return c, nil
}

// Execute runs fn against a copy of the account under its per-key lock and
// stores the copy, with Version bumped, only when fn returns nil. Writes fn
// stages through txcontext.Stage land with the commit and are dropped
// otherwise.
func (s *InMemory) Execute(ctx context.Context, accountID id.AccountID, fn func(ctx context.Context, account *models.Account) error) (*models.Account, error) {
	var committed *models.Account
	err := s.locks.Run(ctx, accountID.String(), func(ctx context.Context) error {
		ctx, staged, owner := txcontext.WithStaged(ctx)
		working, err := s.FindByID(ctx, accountID)
		if err != nil {
			return err
		}
		if err := fn(ctx, working); err != nil {
			return err
		}
		working.Version++
		s.mu.Lock()
		s.accounts[accountID] = working.Clone()
		s.mu.Unlock()
		if owner {
			staged.Flush()
		}
		committed = working
		return nil
	})
	if err != nil {
		return nil, err
	}
	return committed, nil
}
