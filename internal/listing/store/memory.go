package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"dealerhub/internal/listing/models"
	id "dealerhub/pkg/domain"
	"dealerhub/pkg/platform/sentinel"
	txcontext "dealerhub/pkg/platform/tx"
)

// InMemory is a process-local listing store.
type InMemory struct {
	mu       sync.RWMutex
	listings map[id.ListingID]*models.Listing
	locks    *txcontext.ShardedLocker
}

func NewInMemory() *InMemory {
	return &InMemory{
		listings: make(map[id.ListingID]*models.Listing),
		locks:    txcontext.NewShardedLocker(0),
	}
}

func (s *InMemory) Create(_ context.Context, listing *models.Listing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.listings[listing.ID]; ok {
		return fmt.Errorf("listing %s: %w", listing.ID, sentinel.ErrConflict)
	}
	s.listings[listing.ID] = listing.Clone()
	return nil
}

func (s *InMemory) FindByID(_ context.Context, listingID id.ListingID) (*models.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.listings[listingID]
	if !ok {
		return nil, fmt.Errorf("listing %s: %w", listingID, sentinel.ErrNotFound)
	}
	return l.Clone(), nil
}

// Execute runs fn against a copy of the listing under its per-key lock and
// stores the copy, with Version bumped, only when fn returns nil.
func (s *InMemory) Execute(ctx context.Context, listingID id.ListingID, fn func(ctx context.Context, listing *models.Listing) error) (*models.Listing, error) {
	var committed *models.Listing
	err := s.locks.Run(ctx, listingID.String(), func(ctx context.Context) error {
		working, err := s.FindByID(ctx, listingID)
		if err != nil {
			return err
		}
		if err := fn(ctx, working); err != nil {
			return err
		}
		working.Version++
		s.mu.Lock()
		s.listings[listingID] = working.Clone()
		s.mu.Unlock()
		committed = working
		return nil
	})
	if err != nil {
		return nil, err
	}
	return committed, nil
}

// ListByDealer returns the dealer's listings, newest first.
func (s *InMemory) ListByDealer(_ context.Context, dealerID id.AccountID) ([]*models.Listing, error) {
	return s.collect(func(l *models.Listing) bool { return l.DealerID == dealerID }, 0), nil
}

// ListMarketplace returns active, public listings, newest first.
func (s *InMemory) ListMarketplace(_ context.Context, filter MarketplaceFilter) ([]*models.Listing, error) {
	return s.collect(filter.matches, filter.limit()), nil
}

// ListForModerationRetry returns listings awaiting another moderation check,
// oldest first.
func (s *InMemory) ListForModerationRetry(_ context.Context, staleBefore time.Time, limit int) ([]*models.Listing, error) {
	s.mu.RLock()
	var out []*models.Listing
	for _, l := range s.listings {
		if awaitingRetry(l, staleBefore) {
			out = append(out, l.Clone())
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemory) collect(match func(*models.Listing) bool, limit int) []*models.Listing {
	s.mu.RLock()
	var out []*models.Listing
	for _, l := range s.listings {
		if match(l) {
			out = append(out, l.Clone())
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
