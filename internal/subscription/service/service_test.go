package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks ProcessedPayments,ListingSweeper,AuditPublisher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	accountmodels "dealerhub/internal/account/models"
	accountservice "dealerhub/internal/account/service"
	accountstore "dealerhub/internal/account/store"
	"dealerhub/internal/subscription/models"
	"dealerhub/internal/subscription/service/mocks"
	"dealerhub/internal/subscription/store"
	id "dealerhub/pkg/domain"
	dErrors "dealerhub/pkg/domain-errors"
	"dealerhub/pkg/requestcontext"
)

// =============================================================================
// Subscription Service Test Suite
// =============================================================================
// Runs against in-memory accounts, ledger and payment claims; the listing
// sweeper is mocked so expiry and renewal fan-out can be asserted.

type SubscriptionServiceSuite struct {
	suite.Suite
	ctrl     *gomock.Controller
	sweeper  *mocks.MockListingSweeper
	accounts *accountservice.Service
	ledger   *store.InMemoryLedger
	service  *Service
	now      time.Time
	ctx      context.Context
}

func TestSubscriptionServiceSuite(t *testing.T) {
	suite.Run(t, new(SubscriptionServiceSuite))
}

func (s *SubscriptionServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.sweeper = mocks.NewMockListingSweeper(s.ctrl)
	s.accounts = accountservice.New(accountstore.NewInMemory())
	s.ledger = store.NewInMemoryLedger()
	s.service = New(s.accounts, s.ledger, store.NewInMemoryPayments(), WithListingSweeper(s.sweeper))
	s.now = time.Date(2026, 1, 31, 8, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)

	_, _, err := s.accounts.EnsureAccount(s.ctx, "dealer-1", "")
	s.Require().NoError(err)
}

func (s *SubscriptionServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *SubscriptionServiceSuite) at(t time.Time) context.Context {
	return requestcontext.WithTime(context.Background(), t)
}

func (s *SubscriptionServiceSuite) account() *accountmodels.Account {
	a, err := s.accounts.Get(s.ctx, "dealer-1")
	s.Require().NoError(err)
	return a
}

func (s *SubscriptionServiceSuite) TestActivatePlan() {
	s.sweeper.EXPECT().SweepDealer(gomock.Any(), id.AccountID("dealer-1")).Return(nil).AnyTimes()

	s.Run("first purchase sets the allotment and expiry", func() {
		a, err := s.service.ActivatePlan(s.ctx, "dealer-1", "basic", false, "pay-1")
		s.Require().NoError(err)
		s.True(a.Subscription.IsActive)
		s.Equal(5, a.Credits())
		s.Equal(s.now.AddDate(0, 1, 0), a.Subscription.ExpiresAt)
	})

	s.Run("upgrade while active is additive", func() {
		a, err := s.service.ActivatePlan(s.ctx, "dealer-1", "standard", true, "pay-2")
		s.Require().NoError(err)
		s.Equal(20, a.Credits())
		s.Equal(s.now.AddDate(1, 0, 0), a.Subscription.ExpiresAt)
		s.Equal("Standard", a.Subscription.PlanName)
	})

	s.Run("same reference twice does not double-credit", func() {
		a, err := s.service.ActivatePlan(s.ctx, "dealer-1", "standard", true, "pay-2")
		s.Require().NoError(err)
		s.Equal(20, a.Credits())
	})

	s.Run("unknown plan is a validation error", func() {
		_, err := s.service.ActivatePlan(s.ctx, "dealer-1", "platinum", false, "pay-3")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("ledger records each movement", func() {
		entries, err := s.service.Ledger(s.ctx, "dealer-1")
		s.Require().NoError(err)
		s.Require().Len(entries, 2)
		s.Equal(models.EntryPlanSet, entries[0].Kind)
		s.Equal(5, entries[0].Delta)
		s.Equal(models.EntryPlanTop, entries[1].Kind)
		s.Equal(15, entries[1].Delta)
		s.Equal(20, entries[1].BalanceAfter)
	})
}

func (s *SubscriptionServiceSuite) TestActivateAfterLapseIsNewPurchase() {
	s.sweeper.EXPECT().SweepDealer(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	_, err := s.service.ActivatePlan(s.at(s.now.AddDate(0, -3, 0)), "dealer-1", "premium", false, "old")
	s.Require().NoError(err)
	s.True(s.account().Subscription.IsActive, "stale active flag still set")

	a, err := s.service.ActivatePlan(s.ctx, "dealer-1", "basic", false, "new")
	s.Require().NoError(err)
	s.Equal(5, a.Credits(), "expired credits are not carried into the new plan")

	entries, _ := s.service.Ledger(s.ctx, "dealer-1")
	s.Require().Len(entries, 3)
	s.Equal(models.EntryExpire, entries[1].Kind)
	s.Equal(-40, entries[1].Delta)
	s.Equal(models.EntryPlanSet, entries[2].Kind)
}

func (s *SubscriptionServiceSuite) TestCheckExpiry() {
	s.sweeper.EXPECT().SweepDealer(gomock.Any(), id.AccountID("dealer-1")).Return(nil).Times(1)
	past := s.now.AddDate(0, -2, 0)
	_, err := s.service.ActivatePlan(s.at(past), "dealer-1", "basic", false, "pay-1")
	s.Require().NoError(err)

	s.Run("valid plan is untouched", func() {
		expired, err := s.service.CheckExpiry(s.at(past.AddDate(0, 0, 10)), "dealer-1")
		s.Require().NoError(err)
		s.False(expired)
	})

	s.Run("lapsed plan goes inactive with zero credits and sweeps listings", func() {
		s.sweeper.EXPECT().SweepDealer(gomock.Any(), id.AccountID("dealer-1")).Return(errors.New("sweep failed"))

		expired, err := s.service.CheckExpiry(s.ctx, "dealer-1")
		s.Require().NoError(err, "sweep failure is best-effort")
		s.True(expired)

		a := s.account()
		s.False(a.Subscription.IsActive)
		s.Equal(0, a.Credits())
	})

	s.Run("is idempotent", func() {
		expired, err := s.service.CheckExpiry(s.ctx, "dealer-1")
		s.Require().NoError(err)
		s.False(expired)
	})

	s.Run("account without a plan", func() {
		_, _, err := s.accounts.EnsureAccount(s.ctx, "fresh", "")
		s.Require().NoError(err)
		expired, err := s.service.CheckExpiry(s.ctx, "fresh")
		s.Require().NoError(err)
		s.False(expired)
	})
}

func (s *SubscriptionServiceSuite) TestConsumeCredit() {
	s.sweeper.EXPECT().SweepDealer(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	s.Run("refused without a plan and leaves state unchanged", func() {
		_, err := s.service.ConsumeCredit(s.ctx, "dealer-1", "l-0")
		s.True(dErrors.HasCode(err, dErrors.CodeInsufficientCredits))
		s.Nil(s.account().Subscription)
	})

	s.Run("decrements to zero then refuses", func() {
		catalog, err := models.NewCatalog([]models.Plan{{ID: "single", Name: "Single", CreditAllotment: 1}})
		s.Require().NoError(err)
		svc := New(s.accounts, s.ledger, store.NewInMemoryPayments(), WithCatalog(catalog))
		_, err = svc.ActivatePlan(s.ctx, "dealer-1", "single", false, "pay-single")
		s.Require().NoError(err)

		a, err := svc.ConsumeCredit(s.ctx, "dealer-1", "l-1")
		s.Require().NoError(err)
		s.Equal(0, a.Credits())

		_, err = svc.ConsumeCredit(s.ctx, "dealer-1", "l-2")
		s.True(dErrors.HasCode(err, dErrors.CodeInsufficientCredits))
		s.Equal(0, s.account().Credits())
	})

	s.Run("stale active plan past expiry cannot be spent", func() {
		_, err := s.service.ConsumeCredit(s.at(s.now.AddDate(0, 2, 0)), "dealer-1", "l-3")
		s.True(dErrors.HasCode(err, dErrors.CodeInsufficientCredits))
	})
}

func (s *SubscriptionServiceSuite) TestConcurrentConsumeAndActivate() {
	s.sweeper.EXPECT().SweepDealer(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	_, err := s.service.ActivatePlan(s.ctx, "dealer-1", "basic", false, "pay-1")
	s.Require().NoError(err)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = s.service.ConsumeCredit(s.ctx, "dealer-1", "l")
		}()
		go func(i int) {
			defer wg.Done()
			_, _ = s.service.ActivatePlan(s.ctx, "dealer-1", "basic", false, id.PaymentReference("topup-"+string(rune('a'+i))))
		}(i)
	}
	wg.Wait()

	// 5 initial + 5 upgrades of 5 - 5 consumed, regardless of interleaving.
	s.Equal(25, s.account().Credits())

	entries, _ := s.service.Ledger(s.ctx, "dealer-1")
	sum := 0
	for _, e := range entries {
		sum += e.Delta
	}
	s.Equal(25, sum, "ledger deltas reconcile with the balance")
}

func (s *SubscriptionServiceSuite) TestRefundCredit() {
	s.sweeper.EXPECT().SweepDealer(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	_, err := s.service.ActivatePlan(s.ctx, "dealer-1", "basic", false, "pay-1")
	s.Require().NoError(err)
	_, err = s.service.ConsumeCredit(s.ctx, "dealer-1", "l-1")
	s.Require().NoError(err)

	refunded, err := s.service.RefundCredit(s.ctx, "dealer-1", id.NewListingID())
	s.Require().NoError(err)
	s.True(refunded)
	s.Equal(5, s.account().Credits())

	refunded, err = s.service.RefundCredit(s.at(s.now.AddDate(0, 2, 0)), "dealer-1", id.NewListingID())
	s.Require().NoError(err)
	s.False(refunded, "no refund onto a lapsed plan")
}

func (s *SubscriptionServiceSuite) TestRefundCreditRollsBackLedgerWhenAuditFails() {
	s.sweeper.EXPECT().SweepDealer(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	publisher := mocks.NewMockAuditPublisher(s.ctrl)
	publisher.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(errors.New("audit down"))
	svc := New(s.accounts, s.ledger, store.NewInMemoryPayments(),
		WithListingSweeper(s.sweeper), WithAuditPublisher(publisher))

	_, err := s.service.ActivatePlan(s.ctx, "dealer-1", "basic", false, "pay-1")
	s.Require().NoError(err)
	_, err = s.service.ConsumeCredit(s.ctx, "dealer-1", "l-1")
	s.Require().NoError(err)
	before, err := s.service.Ledger(s.ctx, "dealer-1")
	s.Require().NoError(err)

	refunded, err := svc.RefundCredit(s.ctx, "dealer-1", id.NewListingID())
	s.Require().Error(err)
	s.False(refunded)

	s.Equal(4, s.account().Credits())
	after, err := s.service.Ledger(s.ctx, "dealer-1")
	s.Require().NoError(err)
	s.Equal(before, after)
	sum := 0
	for _, e := range after {
		sum += e.Delta
	}
	s.Equal(s.account().Credits(), sum, "ledger and balance agree")
}

func (s *SubscriptionServiceSuite) TestOnPaymentConfirmed() {
	s.sweeper.EXPECT().SweepDealer(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	evt := models.PaymentConfirmation{AccountID: "dealer-1", PlanID: "basic", PaymentReference: "pay-9"}

	s.Run("activates once per reference", func() {
		s.Require().NoError(s.service.OnPaymentConfirmed(s.ctx, evt))
		s.Require().NoError(s.service.OnPaymentConfirmed(s.ctx, evt))
		s.Equal(5, s.account().Credits())
	})

	s.Run("validates the event", func() {
		bad := evt
		bad.PlanID = "nope"
		s.True(dErrors.HasCode(s.service.OnPaymentConfirmed(s.ctx, bad), dErrors.CodeValidation))

		bad = evt
		bad.PaymentReference = ""
		s.True(dErrors.HasCode(s.service.OnPaymentConfirmed(s.ctx, bad), dErrors.CodeValidation))
	})
}

func (s *SubscriptionServiceSuite) TestOnPaymentConfirmedReleasesClaimOnFailure() {
	payments := mocks.NewMockProcessedPayments(s.ctrl)
	svc := New(s.accounts, s.ledger, payments)
	evt := models.PaymentConfirmation{AccountID: "unknown-dealer", PlanID: "basic", PaymentReference: "pay-x"}

	gomock.InOrder(
		payments.EXPECT().Begin(gomock.Any(), id.PaymentReference("pay-x")).Return(true, nil),
		payments.EXPECT().Release(gomock.Any(), id.PaymentReference("pay-x")).Return(nil),
	)
	err := svc.OnPaymentConfirmed(s.ctx, evt)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *SubscriptionServiceSuite) TestOnPaymentConfirmedStoreOutage() {
	payments := mocks.NewMockProcessedPayments(s.ctrl)
	svc := New(s.accounts, s.ledger, payments)
	payments.EXPECT().Begin(gomock.Any(), gomock.Any()).Return(false, errors.New("redis down"))

	err := svc.OnPaymentConfirmed(s.ctx, models.PaymentConfirmation{AccountID: "dealer-1", PlanID: "basic", PaymentReference: "p"})
	s.True(dErrors.HasCode(err, dErrors.CodeExternalService))
	s.Nil(s.account().Subscription)
}
