package models

import (
	"strconv"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "dealerhub/pkg/domain"
	dErrors "dealerhub/pkg/domain-errors"
)

var now = time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)

var liveOwner = OwnerState{SubscriptionLive: true, Verified: true}

func validContent() Content {
	return Content{
		Title:      "  2019 Swift VXi  ",
		Make:       "Maruti",
		Model:      "Swift",
		Year:       2019,
		MileageKm:  42000,
		PriceMinor: 55000000,
		City:       "Pune",
	}
}

func newTestListing(t *testing.T) (*Listing, id.ModerationRequestID) {
	t.Helper()
	req := id.NewModerationRequestID()
	l, err := NewListing(id.NewListingID(), "dealer-1", validContent(), []string{"m1", "m2", "m3"}, req, now)
	require.NoError(t, err)
	return l, req
}

func TestNewListing(t *testing.T) {
	l, req := newTestListing(t)
	assert.Equal(t, StatusActive, l.Status)
	assert.Equal(t, VisibilityPublic, l.Visibility)
	assert.Nil(t, l.ModerationReason)
	assert.Equal(t, "2019 Swift VXi", l.Content.Title)
	assert.Equal(t, req, l.Moderation.RequestID)
	assert.Equal(t, ModerationPending, l.Moderation.State)
	assert.Equal(t, OriginCreate, l.Moderation.Origin)
	assert.True(t, l.IsListed())

	t.Run("rejects invalid content", func(t *testing.T) {
		cases := map[string]func(c *Content){
			"missing title":    func(c *Content) { c.Title = "   " },
			"future year":      func(c *Content) { c.Year = now.Year() + 2 },
			"negative price":   func(c *Content) { c.PriceMinor = -1 },
			"negative mileage": func(c *Content) { c.MileageKm = -5 },
		}
		for name, mutate := range cases {
			t.Run(name, func(t *testing.T) {
				c := validContent()
				mutate(&c)
				_, err := NewListing(id.NewListingID(), "dealer-1", c, nil, id.NewModerationRequestID(), now)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
			})
		}
	})

	t.Run("rejects more than twenty media items", func(t *testing.T) {
		media := make([]string, MaxMedia+1)
		for i := range media {
			media[i] = "m" + strconv.Itoa(i)
		}
		_, err := NewListing(id.NewListingID(), "dealer-1", validContent(), media, id.NewModerationRequestID(), now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func TestStatusTransitions(t *testing.T) {
	t.Run("sold then removed", func(t *testing.T) {
		l, _ := newTestListing(t)
		require.NoError(t, l.CanMarkSold())
		l.ApplyMarkSold(now)
		require.NotNil(t, l.SoldAt)
		assert.False(t, l.IsListed())
		assert.True(t, dErrors.HasCode(l.CanMarkSold(), dErrors.CodeInvalidState))
		assert.True(t, dErrors.HasCode(l.CanEdit(), dErrors.CodeInvalidState))

		require.NoError(t, l.CanRemove())
		l.ApplyRemove(now.Add(time.Hour))
		assert.Equal(t, StatusRemoved, l.Status)
		assert.Equal(t, now, *l.SoldAt)
		assert.True(t, dErrors.HasCode(l.CanRemove(), dErrors.CodeInvalidState))
	})

	t.Run("removed is terminal", func(t *testing.T) {
		l, _ := newTestListing(t)
		l.ApplyRemove(now)
		assert.True(t, dErrors.HasCode(l.CanMarkSold(), dErrors.CodeInvalidState))
	})
}

func TestApplyMediaOrder(t *testing.T) {
	l, _ := newTestListing(t)
	before := l.Content

	require.NoError(t, l.ApplyMediaOrder([]string{"m3", "m1", "m2"}, now))
	assert.Equal(t, []string{"m3", "m1", "m2"}, l.Media)
	assert.Equal(t, before, l.Content)
	assert.Equal(t, VisibilityPublic, l.Visibility)

	for name, order := range map[string][]string{
		"missing item":   {"m3", "m1"},
		"unknown item":   {"m3", "m1", "m9"},
		"duplicate item": {"m3", "m3", "m1"},
	} {
		t.Run(name, func(t *testing.T) {
			err := l.ApplyMediaOrder(order, now)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
			assert.Equal(t, []string{"m3", "m1", "m2"}, l.Media)
		})
	}
}

func TestApplyVerdict(t *testing.T) {
	t.Run("violation flags and hides", func(t *testing.T) {
		l, req := newTestListing(t)
		assert.Equal(t, OutcomeApplied, l.ApplyVerdict(req, Verdict{Violation: true, Reason: "contact details in photos"}, now))
		l.Reconcile(liveOwner, now)
		require.NotNil(t, l.ModerationReason)
		assert.Equal(t, "contact details in photos", *l.ModerationReason)
		assert.Equal(t, VisibilityPrivate, l.Visibility)
		assert.Equal(t, ModerationFlagged, l.Moderation.State)
	})

	t.Run("empty reason gets a default", func(t *testing.T) {
		l, req := newTestListing(t)
		l.ApplyVerdict(req, Verdict{Violation: true}, now)
		assert.Equal(t, defaultFlagReason, *l.ModerationReason)
	})

	t.Run("long reasons are cut on a rune boundary", func(t *testing.T) {
		l, req := newTestListing(t)
		reason := strings.Repeat("a", maxReasonLength-1) + "₹₹"
		l.ApplyVerdict(req, Verdict{Violation: true, Reason: reason}, now)
		require.NotNil(t, l.ModerationReason)
		assert.True(t, utf8.ValidString(*l.ModerationReason))
		assert.Equal(t, strings.Repeat("a", maxReasonLength-1), *l.ModerationReason)
	})

	t.Run("stale and duplicate verdicts are ignored", func(t *testing.T) {
		l, req := newTestListing(t)
		assert.Equal(t, OutcomeStale, l.ApplyVerdict(id.NewModerationRequestID(), Verdict{Violation: true}, now))
		assert.Nil(t, l.ModerationReason)

		assert.Equal(t, OutcomeApplied, l.ApplyVerdict(req, Verdict{}, now))
		assert.Equal(t, OutcomeDuplicate, l.ApplyVerdict(req, Verdict{Violation: true}, now))
		assert.Nil(t, l.ModerationReason)
	})
}

func TestEditClearsFlag(t *testing.T) {
	l, req := newTestListing(t)
	l.ApplyVerdict(req, Verdict{Violation: true, Reason: "price bait"}, now)
	l.Reconcile(liveOwner, now)
	require.Equal(t, VisibilityPrivate, l.Visibility)

	next := id.NewModerationRequestID()
	c := validContent()
	c.Title = "2019 Swift VXi, single owner"
	require.NoError(t, l.ApplyEdit(c, nil, next, now))
	assert.Nil(t, l.ModerationReason)
	assert.Equal(t, VisibilityPublic, l.Visibility)
	assert.Equal(t, OriginEdit, l.Moderation.Origin)
	assert.Equal(t, VisibilityPrivate, l.Moderation.PriorVisibility)
	assert.Equal(t, []string{"m1", "m2", "m3"}, l.Media, "nil media keeps the current set")

	assert.Equal(t, OutcomeStale, l.ApplyVerdict(req, Verdict{Violation: true}, now), "old round")
	assert.Equal(t, OutcomeApplied, l.ApplyVerdict(next, Verdict{}, now))
	l.Reconcile(liveOwner, now)
	assert.Nil(t, l.ModerationReason)
	assert.Equal(t, VisibilityPublic, l.Visibility)
}

func TestCheckerOutage(t *testing.T) {
	t.Run("create fails closed", func(t *testing.T) {
		l, req := newTestListing(t)
		require.True(t, l.ApplyCheckerOutage(req, now))
		l.Reconcile(liveOwner, now)
		assert.Equal(t, VisibilityPrivate, l.Visibility)
		assert.Equal(t, ModerationRetry, l.Moderation.State)

		assert.Equal(t, OutcomeApplied, l.ApplyVerdict(req, Verdict{}, now))
		l.Reconcile(liveOwner, now)
		assert.Equal(t, VisibilityPublic, l.Visibility)
	})

	t.Run("edit restores prior flag", func(t *testing.T) {
		l, req := newTestListing(t)
		l.ApplyVerdict(req, Verdict{Violation: true, Reason: "spam"}, now)
		l.Reconcile(liveOwner, now)

		next := id.NewModerationRequestID()
		require.NoError(t, l.ApplyEdit(validContent(), nil, next, now))
		require.True(t, l.ApplyCheckerOutage(next, now))
		l.Reconcile(liveOwner, now)
		require.NotNil(t, l.ModerationReason)
		assert.Equal(t, "spam", *l.ModerationReason)
		assert.Equal(t, VisibilityPrivate, l.Visibility)
	})

	t.Run("edit of public listing stays public", func(t *testing.T) {
		l, req := newTestListing(t)
		l.ApplyVerdict(req, Verdict{}, now)

		next := id.NewModerationRequestID()
		require.NoError(t, l.ApplyEdit(validContent(), nil, next, now))
		require.True(t, l.ApplyCheckerOutage(next, now))
		l.Reconcile(liveOwner, now)
		assert.Equal(t, VisibilityPublic, l.Visibility)
	})

	t.Run("decided round is not reopened", func(t *testing.T) {
		l, req := newTestListing(t)
		l.ApplyVerdict(req, Verdict{}, now)
		assert.False(t, l.ApplyCheckerOutage(req, now))
		assert.Equal(t, ModerationPassed, l.Moderation.State)
	})
}

func TestDesiredVisibility(t *testing.T) {
	expiredOwner := OwnerState{SubscriptionLive: false, Verified: true}

	t.Run("lapsed subscription forces private", func(t *testing.T) {
		l, req := newTestListing(t)
		l.ApplyVerdict(req, Verdict{}, now)
		assert.True(t, l.Reconcile(expiredOwner, now))
		assert.Equal(t, VisibilityPrivate, l.Visibility)
		assert.False(t, l.Reconcile(expiredOwner, now), "idempotent")

		assert.True(t, l.Reconcile(liveOwner, now))
		assert.Equal(t, VisibilityPublic, l.Visibility)
	})

	t.Run("renewal alone does not clear a flag", func(t *testing.T) {
		l, req := newTestListing(t)
		l.ApplyVerdict(req, Verdict{Violation: true, Reason: "spam"}, now)
		l.Reconcile(expiredOwner, now)
		l.Reconcile(liveOwner, now)
		assert.Equal(t, VisibilityPrivate, l.Visibility)
	})

	t.Run("unverify policy", func(t *testing.T) {
		l, _ := newTestListing(t)
		unverified := OwnerState{SubscriptionLive: true, Verified: false}
		assert.False(t, l.NeedsReconcile(unverified), "policy off")

		unverified.HideWhenUnverified = true
		assert.True(t, l.Reconcile(unverified, now))
		assert.Equal(t, VisibilityPrivate, l.Visibility)
	})

	t.Run("removed listings stay private", func(t *testing.T) {
		l, req := newTestListing(t)
		l.ApplyVerdict(req, Verdict{}, now)
		l.ApplyRemove(now)
		assert.Equal(t, VisibilityPrivate, l.Visibility)
		assert.False(t, l.Reconcile(liveOwner, now), "renewal never republishes")
		assert.False(t, l.Reconcile(expiredOwner, now))

		l.Visibility = VisibilityPublic
		assert.True(t, l.Reconcile(expiredOwner, now), "rows removed while public converge")
		assert.Equal(t, VisibilityPrivate, l.Visibility)
	})
}

func TestModerationOverride(t *testing.T) {
	l, req := newTestListing(t)
	reason := "manual takedown"
	l.ApplyModerationOverride(&reason, now)
	l.Reconcile(liveOwner, now)
	assert.Equal(t, VisibilityPrivate, l.Visibility)
	assert.Equal(t, OriginAdmin, l.Moderation.Origin)
	assert.Equal(t, OutcomeStale, l.ApplyVerdict(req, Verdict{}, now), "late verdict for the old round")

	l.ApplyModerationOverride(nil, now)
	l.Reconcile(liveOwner, now)
	assert.Equal(t, VisibilityPublic, l.Visibility)
}

func TestShouldRefund(t *testing.T) {
	l, req := newTestListing(t)
	l.ApplyVerdict(req, Verdict{Violation: true}, now)
	assert.True(t, l.ShouldRefund())
	l.Moderation.CreditRefunded = true
	assert.False(t, l.ShouldRefund())

	e, req := newTestListing(t)
	next := id.NewModerationRequestID()
	e.ApplyVerdict(req, Verdict{}, now)
	require.NoError(t, e.ApplyEdit(validContent(), nil, next, now))
	e.ApplyVerdict(next, Verdict{Violation: true}, now)
	assert.False(t, e.ShouldRefund(), "edits never refund")
}

func TestCloneIsDeep(t *testing.T) {
	l, req := newTestListing(t)
	l.ApplyVerdict(req, Verdict{Violation: true, Reason: "x"}, now)
	c := l.Clone()
	c.Media[0] = "changed"
	*c.ModerationReason = "changed"
	assert.Equal(t, "m1", l.Media[0])
	assert.Equal(t, "x", *l.ModerationReason)
}
