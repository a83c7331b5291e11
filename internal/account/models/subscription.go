package models

import (
	"time"

	dErrors "dealerhub/pkg/domain-errors"
)

// Subscription is the dealer's plan and spendable credit balance. It lives on
// the Account so plan state and credits change in the same transaction.
type Subscription struct {
	PlanID      string    `json:"plan_id"`
	PlanName    string    `json:"plan_name"`
	IsYearly    bool      `json:"is_yearly"`
	IsActive    bool      `json:"is_active"`
	ExpiresAt   time.Time `json:"expires_at"`
	AdCredits   int       `json:"ad_credits"`
	ActivatedAt time.Time `json:"activated_at"`
}

// IsLive reports whether the plan is active and not yet expired. A stale
// active flag past expiresAt is not live.
func (s *Subscription) IsLive(now time.Time) bool {
	return s != nil && s.IsActive && now.Before(s.ExpiresAt)
}

// ActivationKind distinguishes a fresh purchase from an additive upgrade.
type ActivationKind string

const (
	ActivationNew     ActivationKind = "new"
	ActivationUpgrade ActivationKind = "upgrade"
)

// Expiry describes a lazy expiry transition.
type Expiry struct {
	ForfeitedCredits int
}

// ExpireIfDue deactivates a stale plan and zeroes its credits. Idempotent:
// returns false when the plan is absent, inactive or still valid.
func (a *Account) ExpireIfDue(now time.Time) (Expiry, bool) {
	s := a.Subscription
	if s == nil || !s.IsActive || now.Before(s.ExpiresAt) {
		return Expiry{}, false
	}
	forfeited := s.AdCredits
	s.IsActive = false
	s.AdCredits = 0
	a.UpdatedAt = now
	return Expiry{ForfeitedCredits: forfeited}, true
}

// ApplyPlan activates a plan. An account whose plan is active at call time
// receives the allotment on top of its balance; any other purchase sets the
// balance to the allotment. Callers apply ExpireIfDue first.
func (a *Account) ApplyPlan(planID, planName string, allotment int, isYearly bool, now time.Time) (ActivationKind, int) {
	kind := ActivationNew
	credits := allotment
	if a.Subscription != nil && a.Subscription.IsActive {
		kind = ActivationUpgrade
		credits = a.Subscription.AdCredits + allotment
	}
	expires := now.AddDate(0, 1, 0)
	if isYearly {
		expires = now.AddDate(1, 0, 0)
	}
	a.Subscription = &Subscription{
		PlanID:      planID,
		PlanName:    planName,
		IsYearly:    isYearly,
		IsActive:    true,
		ExpiresAt:   expires,
		AdCredits:   credits,
		ActivatedAt: now,
	}
	a.UpdatedAt = now
	return kind, credits
}

// CanConsumeCredit checks a credit is available.
func (a *Account) CanConsumeCredit() error {
	if a.Credits() <= 0 {
		return dErrors.New(dErrors.CodeInsufficientCredits, "no ad credits remaining")
	}
	return nil
}

// ApplyConsumeCredit spends one credit. Call CanConsumeCredit first.
func (a *Account) ApplyConsumeCredit(now time.Time) {
	a.Subscription.AdCredits--
	a.UpdatedAt = now
}

// ApplyRefundCredit returns one credit. Credits forfeited by expiry stay
// forfeited: without a live plan it is a no-op and reports false.
func (a *Account) ApplyRefundCredit(now time.Time) bool {
	if !a.Subscription.IsLive(now) {
		return false
	}
	a.Subscription.AdCredits++
	a.UpdatedAt = now
	return true
}
