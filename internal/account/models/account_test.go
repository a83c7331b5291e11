package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "dealerhub/pkg/domain"
	dErrors "dealerhub/pkg/domain-errors"
)

var now = time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)

func newTestDealer(t *testing.T) *Account {
	t.Helper()
	a, err := NewDealer(id.AccountID("dealer-1"), "d@example.com", now)
	require.NoError(t, err)
	return a
}

func TestNewDealer(t *testing.T) {
	a := newTestDealer(t)
	assert.Equal(t, RoleDealer, a.Role)
	assert.Equal(t, VerificationUnverified, a.VerificationStatus)
	assert.Nil(t, a.Subscription)
	assert.Equal(t, CurrentSchemaVersion, a.SchemaVersion)
	assert.Equal(t, 0, a.Credits())

	_, err := NewDealer("", "", now)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestVerificationTransitions(t *testing.T) {
	t.Run("submission moves to pending and returns replaced refs", func(t *testing.T) {
		a := newTestDealer(t)
		require.NoError(t, a.CanSubmitDocuments())
		prev := a.ApplyDocuments(Documents{Aadhar: "a1", PAN: "p1", ShopLicense: "s1"}, now)
		assert.Nil(t, prev)
		assert.Equal(t, VerificationPending, a.VerificationStatus)

		prev = a.ApplyDocuments(Documents{Aadhar: "a2", PAN: "p2", ShopLicense: "s2"}, now.Add(time.Minute))
		require.NotNil(t, prev)
		assert.Equal(t, []string{"a1", "p1", "s1"}, prev.Refs())
		assert.Equal(t, VerificationPending, a.VerificationStatus)
		assert.Equal(t, "a2", a.Documents.Aadhar)
	})

	t.Run("verified account cannot resubmit", func(t *testing.T) {
		a := newTestDealer(t)
		a.VerificationStatus = VerificationVerified
		assert.True(t, dErrors.HasCode(a.CanSubmitDocuments(), dErrors.CodeInvalidState))
	})

	t.Run("review requires pending", func(t *testing.T) {
		a := newTestDealer(t)
		assert.True(t, dErrors.HasCode(a.CanReview(), dErrors.CodeInvalidState))

		a.ApplyDocuments(Documents{Aadhar: "a", PAN: "p", ShopLicense: "s"}, now)
		require.NoError(t, a.CanReview())
		a.ApplyReview(false, now)
		assert.Equal(t, VerificationRejected, a.VerificationStatus)

		require.NoError(t, a.CanSubmitDocuments())
		a.ApplyDocuments(Documents{Aadhar: "a", PAN: "p", ShopLicense: "s"}, now)
		a.ApplyReview(true, now)
		assert.True(t, a.IsVerified())
	})
}

func TestExpireIfDue(t *testing.T) {
	a := newTestDealer(t)
	_, expired := a.ExpireIfDue(now)
	assert.False(t, expired, "no subscription")

	a.ApplyPlan("basic", "Basic", 5, false, now.AddDate(0, -2, 0))
	assert.True(t, a.Subscription.IsActive, "stale active flag")
	assert.False(t, a.HasLiveSubscription(now))

	exp, expired := a.ExpireIfDue(now)
	require.True(t, expired)
	assert.Equal(t, 5, exp.ForfeitedCredits)
	assert.False(t, a.Subscription.IsActive)
	assert.Equal(t, 0, a.Subscription.AdCredits)

	_, expired = a.ExpireIfDue(now)
	assert.False(t, expired, "idempotent")
}

func TestApplyPlan(t *testing.T) {
	t.Run("first purchase sets credits", func(t *testing.T) {
		a := newTestDealer(t)
		kind, credits := a.ApplyPlan("basic", "Basic", 5, false, now)
		assert.Equal(t, ActivationNew, kind)
		assert.Equal(t, 5, credits)
		assert.Equal(t, now.AddDate(0, 1, 0), a.Subscription.ExpiresAt)
	})

	t.Run("upgrade while active adds credits", func(t *testing.T) {
		a := newTestDealer(t)
		a.ApplyPlan("basic", "Basic", 5, false, now)
		a.ApplyConsumeCredit(now)
		kind, credits := a.ApplyPlan("premium", "Premium", 40, true, now)
		assert.Equal(t, ActivationUpgrade, kind)
		assert.Equal(t, 44, credits)
		assert.Equal(t, now.AddDate(1, 0, 0), a.Subscription.ExpiresAt)
		assert.Equal(t, "premium", a.Subscription.PlanID)
	})

	t.Run("purchase after lapse sets credits absolutely", func(t *testing.T) {
		a := newTestDealer(t)
		a.ApplyPlan("basic", "Basic", 5, false, now.AddDate(0, -3, 0))
		a.ExpireIfDue(now)
		kind, credits := a.ApplyPlan("basic", "Basic", 5, false, now)
		assert.Equal(t, ActivationNew, kind)
		assert.Equal(t, 5, credits)
	})
}

func TestCredits(t *testing.T) {
	a := newTestDealer(t)
	assert.True(t, dErrors.HasCode(a.CanConsumeCredit(), dErrors.CodeInsufficientCredits))

	a.ApplyPlan("basic", "Basic", 1, false, now)
	require.NoError(t, a.CanConsumeCredit())
	a.ApplyConsumeCredit(now)
	assert.Equal(t, 0, a.Credits())
	assert.True(t, dErrors.HasCode(a.CanConsumeCredit(), dErrors.CodeInsufficientCredits))

	assert.True(t, a.ApplyRefundCredit(now))
	assert.Equal(t, 1, a.Credits())

	a.ExpireIfDue(now.AddDate(0, 2, 0))
	assert.False(t, a.ApplyRefundCredit(now.AddDate(0, 2, 0)), "no refund onto a lapsed plan")
	assert.Equal(t, 0, a.Credits())
}

func TestCloneIsDeep(t *testing.T) {
	a := newTestDealer(t)
	a.ApplyDocuments(Documents{Aadhar: "a", PAN: "p", ShopLicense: "s"}, now)
	a.ApplyPlan("basic", "Basic", 5, false, now)

	c := a.Clone()
	c.Subscription.AdCredits = 0
	c.Documents.PAN = "changed"
	assert.Equal(t, 5, a.Subscription.AdCredits)
	assert.Equal(t, "p", a.Documents.PAN)
}

func TestUpgradeFromV1(t *testing.T) {
	created := now.AddDate(-1, 0, 0)
	a := &Account{
		ID:            "legacy",
		SchemaVersion: 1,
		CreatedAt:     created,
		Subscription:  &Subscription{PlanName: "Basic", IsActive: true, ExpiresAt: now, AdCredits: 2},
	}
	a.Upgrade()
	assert.Equal(t, CurrentSchemaVersion, a.SchemaVersion)
	assert.Equal(t, RoleDealer, a.Role)
	assert.Equal(t, VerificationUnverified, a.VerificationStatus)
	assert.Equal(t, created, a.Subscription.ActivatedAt)
	assert.Equal(t, created, a.UpdatedAt)
}

func TestValidateContactFields(t *testing.T) {
	name := func(s string) *string { return &s }

	assert.NoError(t, ValidateContactFields(name("Sharma Motors"), name("+91 98765-43210")))
	assert.NoError(t, ValidateContactFields(nil, name("")), "empty phone clears it")

	for label, tc := range map[string][2]*string{
		"nothing to update": {nil, nil},
		"blank name":        {name("  "), nil},
		"letters in phone":  {nil, name("98765abc")},
		"short phone":       {nil, name("12345")},
		"plus not leading":  {nil, name("98+7654321")},
	} {
		t.Run(label, func(t *testing.T) {
			err := ValidateContactFields(tc[0], tc[1])
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
		})
	}
}
