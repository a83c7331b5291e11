package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks AssetStore,ListingSweeper

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"dealerhub/internal/account/models"
	accountservice "dealerhub/internal/account/service"
	accountstore "dealerhub/internal/account/store"
	"dealerhub/internal/verification/service/mocks"
	id "dealerhub/pkg/domain"
	dErrors "dealerhub/pkg/domain-errors"
	"dealerhub/pkg/platform/audit"
	"dealerhub/pkg/platform/audit/publishers/compliance"
	auditmemory "dealerhub/pkg/platform/audit/store/memory"
	"dealerhub/pkg/requestcontext"
)

// =============================================================================
// Verification Service Test Suite
// =============================================================================
// Accounts run on the in-memory store so transitions are observed end to end;
// the asset store and listing sweeper are mocked to assert best-effort calls.

type VerificationServiceSuite struct {
	suite.Suite
	ctrl       *gomock.Controller
	assets     *mocks.MockAssetStore
	sweeper    *mocks.MockListingSweeper
	accounts   *accountservice.Service
	auditStore *auditmemory.InMemoryStore
	service    *Service
	ctx        context.Context
}

func TestVerificationServiceSuite(t *testing.T) {
	suite.Run(t, new(VerificationServiceSuite))
}

func (s *VerificationServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.assets = mocks.NewMockAssetStore(s.ctrl)
	s.sweeper = mocks.NewMockListingSweeper(s.ctrl)
	s.auditStore = auditmemory.NewInMemoryStore()
	publisher := compliance.New(s.auditStore)
	s.accounts = accountservice.New(accountstore.NewInMemory(), accountservice.WithAuditPublisher(publisher))
	s.service = New(s.accounts, s.assets,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithAuditPublisher(publisher),
	)
	s.ctx = requestcontext.WithTime(context.Background(), time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC))

	_, _, err := s.accounts.EnsureAccount(s.ctx, "dealer-1", "")
	s.Require().NoError(err)
	_, err = s.accounts.EnsureAdmin(s.ctx, "admin-1")
	s.Require().NoError(err)
}

func (s *VerificationServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func fullRefs(suffix string) DocumentRefs {
	return DocumentRefs{Aadhar: "a-" + suffix, PAN: "p-" + suffix, ShopLicense: "s-" + suffix}
}

func (s *VerificationServiceSuite) status(accountID id.AccountID) models.VerificationStatus {
	a, err := s.accounts.Get(s.ctx, accountID)
	s.Require().NoError(err)
	return a.VerificationStatus
}

func (s *VerificationServiceSuite) TestSubmitDocuments() {
	s.Run("missing document is a validation error and does not change status", func() {
		_, err := s.service.SubmitDocuments(s.ctx, "dealer-1", DocumentRefs{Aadhar: "a", PAN: "p"})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Contains(err.Error(), "shop_license")
		s.Equal(models.VerificationUnverified, s.status("dealer-1"))
	})

	s.Run("complete set moves to pending", func() {
		a, err := s.service.SubmitDocuments(s.ctx, "dealer-1", fullRefs("1"))
		s.Require().NoError(err)
		s.Equal(models.VerificationPending, a.VerificationStatus)
	})

	s.Run("resubmission while pending overwrites and deletes superseded refs", func() {
		s.assets.EXPECT().Delete(gomock.Any(), "a-1").Return(nil)
		s.assets.EXPECT().Delete(gomock.Any(), "p-1").Return(errors.New("bucket offline"))
		s.assets.EXPECT().Delete(gomock.Any(), "s-1").Return(nil)

		a, err := s.service.SubmitDocuments(s.ctx, "dealer-1", fullRefs("2"))
		s.Require().NoError(err)
		s.Equal(models.VerificationPending, a.VerificationStatus)
		s.Equal("a-2", a.Documents.Aadhar)
	})

	s.Run("verified account cannot resubmit", func() {
		_, err := s.service.ReviewDocuments(s.ctx, "admin-1", "dealer-1", true, "")
		s.Require().NoError(err)

		_, err = s.service.SubmitDocuments(s.ctx, "dealer-1", fullRefs("3"))
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})
}

func (s *VerificationServiceSuite) TestReviewDocuments() {
	s.Run("reviewing non-pending documents is an invalid state", func() {
		_, err := s.service.ReviewDocuments(s.ctx, "admin-1", "dealer-1", true, "")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
		s.Equal(models.VerificationUnverified, s.status("dealer-1"))
	})

	s.Run("non-admin reviewer is refused", func() {
		_, err := s.service.SubmitDocuments(s.ctx, "dealer-1", fullRefs("1"))
		s.Require().NoError(err)

		_, err = s.service.ReviewDocuments(s.ctx, "dealer-1", "dealer-1", true, "")
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
		s.Equal(models.VerificationPending, s.status("dealer-1"))
	})

	s.Run("rejection is audited and allows fresh resubmission", func() {
		_, err := s.service.ReviewDocuments(s.ctx, "admin-1", "dealer-1", false, "blurry PAN")
		s.Require().NoError(err)
		s.Equal(models.VerificationRejected, s.status("dealer-1"))

		events, _ := s.auditStore.ListByAccount(s.ctx, "dealer-1")
		var found bool
		for _, e := range events {
			if e.Action == string(audit.EventDocumentsRejected) {
				found = true
				s.Equal(id.AccountID("admin-1"), e.ActorID)
				s.Equal("pending", e.OldValue)
				s.Equal("rejected", e.NewValue)
				s.Equal("blurry PAN", e.Reason)
			}
		}
		s.True(found)

		s.assets.EXPECT().Delete(gomock.Any(), gomock.Any()).Times(3).Return(nil)
		_, err = s.service.SubmitDocuments(s.ctx, "dealer-1", fullRefs("2"))
		s.Require().NoError(err)
		s.Equal(models.VerificationPending, s.status("dealer-1"))
	})
}

func (s *VerificationServiceSuite) TestSweepOnVerificationChange() {
	svc := New(s.accounts, s.assets, WithHideListingsOnUnverify(s.sweeper))
	_, err := svc.SubmitDocuments(s.ctx, "dealer-1", fullRefs("1"))
	s.Require().NoError(err)

	s.sweeper.EXPECT().SweepDealer(gomock.Any(), id.AccountID("dealer-1")).Return(nil)
	_, err = svc.ReviewDocuments(s.ctx, "admin-1", "dealer-1", true, "")
	s.Require().NoError(err)
}

func (s *VerificationServiceSuite) TestUploadDocument() {
	s.Run("stores known document types", func() {
		s.assets.EXPECT().
			Store(gomock.Any(), id.AccountID("dealer-1"), DocPAN, "image/png", []byte("png")).
			Return("mem://documents/dealer-1/pan/x", nil)

		ref, err := s.service.UploadDocument(s.ctx, "dealer-1", DocPAN, "image/png", []byte("png"))
		s.Require().NoError(err)
		s.Equal("mem://documents/dealer-1/pan/x", ref)
	})

	s.Run("rejects unknown type and empty files", func() {
		_, err := s.service.UploadDocument(s.ctx, "dealer-1", "passport", "image/png", []byte("x"))
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		_, err = s.service.UploadDocument(s.ctx, "dealer-1", DocPAN, "image/png", nil)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("storage outage is an external service error", func() {
		s.assets.EXPECT().Store(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return("", errors.New("timeout"))
		_, err := s.service.UploadDocument(s.ctx, "dealer-1", DocAadhar, "image/jpeg", []byte("x"))
		s.True(dErrors.HasCode(err, dErrors.CodeExternalService))
	})
}

func (s *VerificationServiceSuite) TestContactFlags() {
	ok, err := s.service.IsPhoneVerified(s.ctx, "dealer-1")
	s.Require().NoError(err)
	s.False(ok)

	s.Require().NoError(s.service.RecordPhoneVerified(s.ctx, "dealer-1"))
	ok, _ = s.service.IsPhoneVerified(s.ctx, "dealer-1")
	s.True(ok)

	s.Require().NoError(s.service.RecordEmailVerified(s.ctx, "dealer-1", "d@example.com"))
	a, _ := s.accounts.Get(s.ctx, "dealer-1")
	s.True(a.EmailVerified)
	s.Equal("d@example.com", a.Email)
	s.Equal(models.VerificationUnverified, a.VerificationStatus, "contact flags never gate verification")
}
