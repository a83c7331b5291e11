package models

import (
	"strings"
	"time"
	"unicode/utf8"

	id "dealerhub/pkg/domain"
)

// Moderation tracks the current moderation round. Only a verdict carrying
// RequestID may change the listing; older verdicts are stale.
type Moderation struct {
	RequestID       id.ModerationRequestID `json:"request_id"`
	Origin          ModerationOrigin       `json:"origin"`
	State           ModerationState        `json:"state"`
	CheckedAt       *time.Time             `json:"checked_at,omitempty"`
	PriorVisibility Visibility             `json:"prior_visibility,omitempty"`
	PriorReason     *string                `json:"prior_reason,omitempty"`
	CreditRefunded  bool                   `json:"credit_refunded"`
}

// Verdict is the moderation checker's answer.
type Verdict struct {
	Violation bool   `json:"violation"`
	Reason    string `json:"reason"`
}

// ResultOutcome describes what ApplyVerdict did.
type ResultOutcome string

const (
	OutcomeApplied   ResultOutcome = "applied"
	OutcomeStale     ResultOutcome = "stale"
	OutcomeDuplicate ResultOutcome = "duplicate"
)

// AwaitingVerdict reports whether the current round has no verdict yet.
func (m Moderation) AwaitingVerdict() bool {
	return m.State == ModerationPending || m.State == ModerationRetry
}

// ApplyVerdict records a verdict for requestID. Verdicts for another request
// are stale, and a second verdict for a decided request is a duplicate; both
// leave the listing unchanged. Call Reconcile afterwards.
func (l *Listing) ApplyVerdict(requestID id.ModerationRequestID, v Verdict, now time.Time) ResultOutcome {
	if l.Moderation.RequestID != requestID {
		return OutcomeStale
	}
	if !l.Moderation.AwaitingVerdict() {
		return OutcomeDuplicate
	}
	if v.Violation {
		reason := normalizeReason(v.Reason)
		l.ModerationReason = &reason
		l.Moderation.State = ModerationFlagged
	} else {
		l.ModerationReason = nil
		l.Moderation.State = ModerationPassed
	}
	l.Moderation.CheckedAt = &now
	l.Moderation.PriorReason = nil
	l.Moderation.PriorVisibility = ""
	l.UpdatedAt = now
	return OutcomeApplied
}

// ApplyCheckerOutage marks requestID for retry and restores the visibility and
// reason the listing had before the round started. Returns false when
// requestID is no longer current or already decided.
func (l *Listing) ApplyCheckerOutage(requestID id.ModerationRequestID, now time.Time) bool {
	if l.Moderation.RequestID != requestID || !l.Moderation.AwaitingVerdict() {
		return false
	}
	if l.Moderation.State == ModerationPending {
		prior := l.Moderation.PriorVisibility
		if prior == "" {
			prior = VisibilityPrivate
		}
		l.Visibility = prior
		l.ModerationReason = clonePtr(l.Moderation.PriorReason)
	}
	l.Moderation.State = ModerationRetry
	l.UpdatedAt = now
	return true
}

// ApplyModerationOverride sets or clears the moderation flag by hand and
// closes the current round so late verdicts for it are ignored.
func (l *Listing) ApplyModerationOverride(reason *string, now time.Time) {
	if reason != nil {
		r := normalizeReason(*reason)
		l.ModerationReason = &r
		l.Moderation.State = ModerationFlagged
	} else {
		l.ModerationReason = nil
		l.Moderation.State = ModerationPassed
	}
	l.Moderation.RequestID = id.NewModerationRequestID()
	l.Moderation.Origin = OriginAdmin
	l.Moderation.CheckedAt = &now
	l.Moderation.PriorReason = nil
	l.Moderation.PriorVisibility = ""
	l.UpdatedAt = now
}

// ShouldRefund reports whether a credit refund is owed under the refund
// policy: a creation round that ended flagged and was not refunded yet.
func (l *Listing) ShouldRefund() bool {
	return l.Moderation.Origin == OriginCreate &&
		l.Moderation.State == ModerationFlagged &&
		!l.Moderation.CreditRefunded
}

func normalizeReason(r string) string {
	r = strings.TrimSpace(r)
	if r == "" {
		return defaultFlagReason
	}
	if len(r) <= maxReasonLength {
		return r
	}
	cut := maxReasonLength
	for cut > 0 && !utf8.RuneStart(r[cut]) {
		cut--
	}
	return r[:cut]
}
