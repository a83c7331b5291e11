package models

import "time"

// OwnerState is the slice of the dealer's account that governs visibility.
type OwnerState struct {
	SubscriptionLive bool
	Verified         bool
	// HideWhenUnverified applies the unverify policy.
	HideWhenUnverified bool
}

// DesiredVisibility is the visibility rule. In order:
//  0. removed: private
//  1. no live subscription (or unverified under the unverify policy): private
//  2. a moderation flag: private
//  3. a checker outage: keep the current visibility
//  4. otherwise public (including while a verdict is pending)
func (l *Listing) DesiredVisibility(owner OwnerState) Visibility {
	if l.Status == StatusRemoved {
		return VisibilityPrivate
	}
	if !owner.SubscriptionLive || (owner.HideWhenUnverified && !owner.Verified) {
		return VisibilityPrivate
	}
	if l.ModerationReason != nil {
		return VisibilityPrivate
	}
	if l.Moderation.State == ModerationRetry {
		return l.Visibility
	}
	return VisibilityPublic
}

// NeedsReconcile reports whether Reconcile would change the listing.
func (l *Listing) NeedsReconcile(owner OwnerState) bool {
	return l.DesiredVisibility(owner) != l.Visibility
}

// Reconcile applies DesiredVisibility. Idempotent.
func (l *Listing) Reconcile(owner OwnerState, now time.Time) bool {
	if !l.NeedsReconcile(owner) {
		return false
	}
	l.Visibility = l.DesiredVisibility(owner)
	l.UpdatedAt = now
	return true
}
