package models

import (
	"slices"
	"strings"
	"time"

	id "dealerhub/pkg/domain"
	dErrors "dealerhub/pkg/domain-errors"
)

const (
	MaxMedia          = 20
	maxTitleLength    = 120
	maxDescLength     = 5000
	minYear           = 1950
	maxReasonLength   = 500
	defaultFlagReason = "listing violates content policy"
)

// Listing is a dealer's advertisement.
//
// Invariants:
//   - DealerID, CreatedAt are immutable
//   - Status moves active → sold, active → removed, sold → removed only
//   - SoldAt and RemovedAt are set at most once
//   - Visibility is private whenever the owner's subscription is not live;
//     otherwise private while ModerationReason is set
//   - Media holds at most MaxMedia references
type Listing struct {
	ID               id.ListingID `json:"id"`
	DealerID         id.AccountID `json:"dealer_id"`
	Content          Content      `json:"content"`
	Media            []string     `json:"media"`
	Status           Status       `json:"status"`
	Visibility       Visibility   `json:"visibility"`
	ModerationReason *string      `json:"moderation_reason"`
	Moderation       Moderation   `json:"moderation"`
	Version          int64        `json:"version"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
	SoldAt           *time.Time   `json:"sold_at,omitempty"`
	RemovedAt        *time.Time   `json:"removed_at,omitempty"`
}

// Content is the dealer-authored part of a listing.
type Content struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Make        string `json:"make"`
	Model       string `json:"model"`
	Year        int    `json:"year"`
	MileageKm   int    `json:"mileage_km"`
	PriceMinor  int64  `json:"price_minor"`
	City        string `json:"city"`
}

// Normalize trims whitespace from text fields.
func (c *Content) Normalize() {
	c.Title = strings.TrimSpace(c.Title)
	c.Description = strings.TrimSpace(c.Description)
	c.Make = strings.TrimSpace(c.Make)
	c.Model = strings.TrimSpace(c.Model)
	c.City = strings.TrimSpace(c.City)
}

// Validate checks content against now's model year.
func (c Content) Validate(now time.Time) error {
	switch {
	case c.Title == "":
		return dErrors.New(dErrors.CodeValidation, "title is required")
	case len(c.Title) > maxTitleLength:
		return dErrors.New(dErrors.CodeValidation, "title must be 120 characters or less")
	case len(c.Description) > maxDescLength:
		return dErrors.New(dErrors.CodeValidation, "description must be 5000 characters or less")
	case c.Year != 0 && (c.Year < minYear || c.Year > now.Year()+1):
		return dErrors.New(dErrors.CodeValidation, "year is out of range")
	case c.MileageKm < 0:
		return dErrors.New(dErrors.CodeValidation, "mileage cannot be negative")
	case c.PriceMinor < 0:
		return dErrors.New(dErrors.CodeValidation, "price cannot be negative")
	}
	return nil
}

// ValidateMedia checks count and non-empty references.
func ValidateMedia(media []string) error {
	if len(media) > MaxMedia {
		return dErrors.New(dErrors.CodeValidation, "at most 20 media items are allowed")
	}
	seen := make(map[string]bool, len(media))
	for _, m := range media {
		if strings.TrimSpace(m) == "" {
			return dErrors.New(dErrors.CodeValidation, "media reference cannot be empty")
		}
		if seen[m] {
			return dErrors.New(dErrors.CodeValidation, "duplicate media reference")
		}
		seen[m] = true
	}
	return nil
}

// NewListing builds an active, public listing awaiting moderation of requestID.
func NewListing(listingID id.ListingID, dealerID id.AccountID, content Content, media []string, requestID id.ModerationRequestID, now time.Time) (*Listing, error) {
	content.Normalize()
	if err := content.Validate(now); err != nil {
		return nil, err
	}
	if err := ValidateMedia(media); err != nil {
		return nil, err
	}
	return &Listing{
		ID:         listingID,
		DealerID:   dealerID,
		Content:    content,
		Media:      slices.Clone(media),
		Status:     StatusActive,
		Visibility: VisibilityPublic,
		Moderation: Moderation{
			RequestID:       requestID,
			Origin:          OriginCreate,
			State:           ModerationPending,
			PriorVisibility: VisibilityPrivate,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (l *Listing) IsOwnedBy(accountID id.AccountID) bool {
	return l.DealerID == accountID
}

// IsListed reports whether buyers can see the listing in the marketplace.
func (l *Listing) IsListed() bool {
	return l.Status == StatusActive && l.Visibility == VisibilityPublic
}

// Clone returns a deep copy.
func (l *Listing) Clone() *Listing {
	if l == nil {
		return nil
	}
	c := *l
	c.Media = slices.Clone(l.Media)
	c.ModerationReason = clonePtr(l.ModerationReason)
	c.SoldAt = clonePtr(l.SoldAt)
	c.RemovedAt = clonePtr(l.RemovedAt)
	c.Moderation.PriorReason = clonePtr(l.Moderation.PriorReason)
	c.Moderation.CheckedAt = clonePtr(l.Moderation.CheckedAt)
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// CanEdit checks the listing accepts content changes.
func (l *Listing) CanEdit() error {
	if l.Status != StatusActive {
		return dErrors.New(dErrors.CodeInvalidState, "only active listings can be edited")
	}
	return nil
}

// ApplyEdit replaces content (and media when non-nil), clears any moderation
// flag and starts a fresh moderation round for requestID. The prior
// visibility and reason are kept so a checker outage can restore them.
func (l *Listing) ApplyEdit(content Content, media []string, requestID id.ModerationRequestID, now time.Time) error {
	content.Normalize()
	if err := content.Validate(now); err != nil {
		return err
	}
	if media != nil {
		if err := ValidateMedia(media); err != nil {
			return err
		}
		l.Media = slices.Clone(media)
	}
	l.Content = content
	l.Moderation = Moderation{
		RequestID:       requestID,
		Origin:          OriginEdit,
		State:           ModerationPending,
		PriorVisibility: l.Visibility,
		PriorReason:     clonePtr(l.ModerationReason),
		CreditRefunded:  l.Moderation.CreditRefunded,
	}
	l.ModerationReason = nil
	l.Visibility = VisibilityPublic
	l.UpdatedAt = now
	return nil
}

func (l *Listing) CanMarkSold() error {
	if !l.Status.CanTransitionTo(StatusSold) {
		return dErrors.New(dErrors.CodeInvalidState, "only active listings can be marked sold")
	}
	return nil
}

func (l *Listing) ApplyMarkSold(now time.Time) {
	l.Status = StatusSold
	if l.SoldAt == nil {
		l.SoldAt = &now
	}
	l.UpdatedAt = now
}

func (l *Listing) CanRemove() error {
	if !l.Status.CanTransitionTo(StatusRemoved) {
		return dErrors.New(dErrors.CodeInvalidState, "listing is already removed")
	}
	return nil
}

func (l *Listing) ApplyRemove(now time.Time) {
	l.Status = StatusRemoved
	l.Visibility = VisibilityPrivate
	if l.RemovedAt == nil {
		l.RemovedAt = &now
	}
	l.UpdatedAt = now
}

// ApplyMediaOrder reorders media. order must be a permutation of the current
// references.
func (l *Listing) ApplyMediaOrder(order []string, now time.Time) error {
	if l.Status != StatusActive {
		return dErrors.New(dErrors.CodeInvalidState, "only active listings can be reordered")
	}
	if len(order) != len(l.Media) {
		return dErrors.New(dErrors.CodeValidation, "media order must contain every existing item exactly once")
	}
	remaining := make(map[string]int, len(l.Media))
	for _, m := range l.Media {
		remaining[m]++
	}
	for _, m := range order {
		if remaining[m] == 0 {
			return dErrors.New(dErrors.CodeValidation, "media order must contain every existing item exactly once")
		}
		remaining[m]--
	}
	l.Media = slices.Clone(order)
	l.UpdatedAt = now
	return nil
}
