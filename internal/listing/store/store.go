// Package store persists listings. Both implementations expose the same
// per-listing Execute transaction used by the lifecycle service.
package store

import (
	"strings"
	"time"

	"dealerhub/internal/listing/models"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

// MarketplaceFilter narrows the active, public listing query.
type MarketplaceFilter struct {
	Make  string
	City  string
	Limit int
}

func (f MarketplaceFilter) limit() int {
	switch {
	case f.Limit <= 0:
		return DefaultPageSize
	case f.Limit > MaxPageSize:
		return MaxPageSize
	}
	return f.Limit
}

func (f MarketplaceFilter) matches(l *models.Listing) bool {
	if !l.IsListed() {
		return false
	}
	if f.Make != "" && !strings.EqualFold(f.Make, l.Content.Make) {
		return false
	}
	if f.City != "" && !strings.EqualFold(f.City, l.Content.City) {
		return false
	}
	return true
}

// awaitingRetry selects active listings whose moderation round needs another
// check: every retry round, and pending rounds older than staleBefore.
func awaitingRetry(l *models.Listing, staleBefore time.Time) bool {
	if l.Status != models.StatusActive {
		return false
	}
	switch l.Moderation.State {
	case models.ModerationRetry:
		return true
	case models.ModerationPending:
		return l.UpdatedAt.Before(staleBefore)
	}
	return false
}
