package httptransport

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"

	accountservice "dealerhub/internal/account/service"
	accountstore "dealerhub/internal/account/store"
	adminservice "dealerhub/internal/admin/service"
	"dealerhub/internal/identity"
	listingmodels "dealerhub/internal/listing/models"
	"dealerhub/internal/listing/moderation"
	listingservice "dealerhub/internal/listing/service"
	listingstore "dealerhub/internal/listing/store"
	"dealerhub/internal/platform/metrics"
	subscriptionservice "dealerhub/internal/subscription/service"
	subscriptionstore "dealerhub/internal/subscription/store"
	"dealerhub/internal/verification/assets"
	verificationservice "dealerhub/internal/verification/service"
	id "dealerhub/pkg/domain"
	dErrors "dealerhub/pkg/domain-errors"
	"dealerhub/pkg/platform/audit/publishers/compliance"
	"dealerhub/pkg/platform/audit/store/memory"
	"dealerhub/pkg/testutil"
)

// =============================================================================
// Router Test Suite
// =============================================================================
// Drives the full route table against in-memory services: authentication,
// the callback secrets and the status mapping of each handler.

const (
	signingKey     = "router-test-key"
	paymentSecret  = "pay-secret"
	callbackSecret = "callback-secret"
	appOrigin      = "https://app.example.com"

	adminID  = id.AccountID("admin-1")
	dealerID = id.AccountID("dealer-1")
	otherID  = id.AccountID("dealer-2")
)

// toggleChecker fails like an unreachable moderation service while down.
type toggleChecker struct {
	inner *moderation.KeywordChecker
	down  atomic.Bool
}

func (c *toggleChecker) Check(ctx context.Context, req moderation.Request) (listingmodels.Verdict, error) {
	if c.down.Load() {
		return listingmodels.Verdict{}, dErrors.New(dErrors.CodeExternalService, "moderation service unavailable")
	}
	return c.inner.Check(ctx, req)
}

type RouterSuite struct {
	suite.Suite
	validator *identity.Validator
	checker   *toggleChecker
	listings  *listingservice.Service
	router    http.Handler
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := prometheus.NewRegistry()
	m := metrics.NewWith(registry)
	publisher := compliance.New(memory.NewInMemoryStore())

	accounts := accountservice.New(accountstore.NewInMemory(), accountservice.WithAuditPublisher(publisher))
	subscriptions := subscriptionservice.New(accounts, subscriptionstore.NewInMemoryLedger(), subscriptionstore.NewInMemoryPayments())
	s.checker = &toggleChecker{inner: moderation.NewKeywordChecker("whatsapp")}
	s.listings = listingservice.New(listingstore.NewInMemory(), accounts, subscriptions, s.checker,
		listingservice.WithAuditPublisher(publisher),
	)
	verification := verificationservice.New(accounts, assets.NewInMemory(), verificationservice.WithAuditPublisher(publisher))
	admin := adminservice.New(accounts, verification, subscriptions, s.listings, publisher)
	_, err := admin.EnsureAdminAccounts(ctx, []id.AccountID{adminID})
	s.Require().NoError(err)

	s.validator = identity.NewValidator(signingKey, "")
	s.router = NewRouter(Deps{
		Logger:         logger,
		Metrics:        m,
		Gatherer:       registry,
		Tokens:         s.validator,
		Gate:           identity.NewGate(accounts, subscriptions, verification, logger),
		Accounts:       accounts,
		Verification:   verification,
		Subscriptions:  subscriptions,
		Listings:       s.listings,
		Admin:          admin,
		PaymentSecret:  paymentSecret,
		CallbackSecret: callbackSecret,
		AllowedOrigins: []string{appOrigin},
	})
}

func (s *RouterSuite) token(accountID id.AccountID) string {
	tok, err := s.validator.Issue(accountID, string(accountID)+"@example.com", true, time.Hour)
	s.Require().NoError(err)
	return tok
}

func (s *RouterSuite) as(accountID id.AccountID, req *http.Request) *http.Request {
	return testutil.WithBearer(req, s.token(accountID))
}

func (s *RouterSuite) do(req *http.Request) *httptest.ResponseRecorder {
	return testutil.Do(s.router, req)
}

func (s *RouterSuite) signIn(accountID id.AccountID) {
	rr := s.do(s.as(accountID, testutil.NewJSONRequest(s.T(), http.MethodPost, "/auth/sign-in", nil)))
	s.Require().Contains([]int{http.StatusOK, http.StatusCreated}, rr.Code, rr.Body.String())
}

// givenListableDealer signs the dealer in, verifies it and activates the
// basic plan through the payment webhook.
func (s *RouterSuite) givenListableDealer(accountID id.AccountID) {
	s.signIn(accountID)
	s.signIn(adminID)
	rr := s.do(s.as(adminID, testutil.NewJSONRequest(s.T(), http.MethodPost,
		"/admin/accounts/"+accountID.String()+"/approve", reasonRequest{Reason: "checked offline"})))
	s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())

	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/webhooks/payments", paymentRequest{
		AccountID:        accountID.String(),
		PlanID:           "basic",
		PaymentReference: "pay-" + accountID.String(),
	})
	req.Header.Set(SecretHeader, paymentSecret)
	rr = s.do(req)
	s.Require().Equal(http.StatusNoContent, rr.Code, rr.Body.String())
}

func (s *RouterSuite) createListing(accountID id.AccountID, description string) *httptest.ResponseRecorder {
	return s.do(s.as(accountID, testutil.NewJSONRequest(s.T(), http.MethodPost, "/listings", listingRequest{
		Content: listingmodels.Content{
			Title:       "2019 Honda City VX",
			Description: description,
			Make:        "Honda",
			Model:       "City",
			Year:        2019,
			MileageKm:   42000,
			PriceMinor:  85000000,
			City:        "Pune",
		},
		Media: []string{"img-1", "img-2"},
	})))
}

func (s *RouterSuite) TestAuthentication() {
	s.Run("missing token is rejected", func() {
		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodGet, "/me", nil))
		testutil.AssertError(s.T(), rr, http.StatusUnauthorized, "unauthorized")
	})

	s.Run("token signed with another key is rejected", func() {
		forged, err := identity.NewValidator("other-key", "").Issue(dealerID, "d@example.com", true, time.Hour)
		s.Require().NoError(err)
		req := testutil.WithBearer(testutil.NewJSONRequest(s.T(), http.MethodGet, "/me", nil), forged)
		testutil.AssertError(s.T(), s.do(req), http.StatusUnauthorized, "unauthorized")
	})

	s.Run("first sign-in creates the dealer account", func() {
		rr := s.do(s.as(dealerID, testutil.NewJSONRequest(s.T(), http.MethodPost, "/auth/sign-in", nil)))
		s.Require().Equal(http.StatusCreated, rr.Code)
		body := testutil.Decode[accountResponse](s.T(), rr)
		s.Equal("dealer", body.Role)
		s.Equal("unverified", body.VerificationStatus)
		s.True(body.EmailVerified)
		s.True(body.Created)

		rr = s.do(s.as(dealerID, testutil.NewJSONRequest(s.T(), http.MethodPost, "/auth/sign-in", nil)))
		s.Equal(http.StatusOK, rr.Code)
	})
}

func (s *RouterSuite) TestDocumentSubmission() {
	s.signIn(dealerID)

	refs := map[string]string{}
	for _, docType := range []string{"aadhar", "pan", "shop_license"} {
		req := testutil.NewMultipartRequest(s.T(), "/me/documents/"+docType, "file", docType+".pdf", "application/pdf", []byte("%PDF-1.7"))
		rr := s.do(s.as(dealerID, req))
		s.Require().Equal(http.StatusCreated, rr.Code, rr.Body.String())
		refs[docType] = testutil.Decode[documentUploadResponse](s.T(), rr).Ref
	}

	s.Run("unknown document type is rejected", func() {
		req := testutil.NewMultipartRequest(s.T(), "/me/documents/passport", "file", "p.pdf", "application/pdf", []byte("x"))
		testutil.AssertError(s.T(), s.do(s.as(dealerID, req)), http.StatusBadRequest, "validation_error")
	})

	s.Run("incomplete submission is a validation error", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/me/documents/submit",
			verificationservice.DocumentRefs{Aadhar: refs["aadhar"]})
		testutil.AssertError(s.T(), s.do(s.as(dealerID, req)), http.StatusBadRequest, "validation_error")
	})

	s.Run("complete submission moves the account to pending", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/me/documents/submit", verificationservice.DocumentRefs{
			Aadhar:      refs["aadhar"],
			PAN:         refs["pan"],
			ShopLicense: refs["shop_license"],
		})
		rr := s.do(s.as(dealerID, req))
		s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())
		s.Equal("pending", testutil.Decode[accountResponse](s.T(), rr).VerificationStatus)
	})

	s.Run("only admins review", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/admin/accounts/"+dealerID.String()+"/review", reviewRequest{Approve: true})
		testutil.AssertError(s.T(), s.do(s.as(dealerID, req)), http.StatusForbidden, "permission_denied")
	})

	s.Run("admin approval verifies the dealer", func() {
		s.signIn(adminID)
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/admin/accounts/"+dealerID.String()+"/review", reviewRequest{Approve: true})
		rr := s.do(s.as(adminID, req))
		s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())
		s.Equal("verified", testutil.Decode[accountResponse](s.T(), rr).VerificationStatus)

		// Reviewing again is an invalid state: the account is no longer pending.
		testutil.AssertError(s.T(), s.do(s.as(adminID, testutil.NewJSONRequest(s.T(), http.MethodPost,
			"/admin/accounts/"+dealerID.String()+"/review", reviewRequest{Approve: true}))),
			http.StatusConflict, "invalid_state")
	})
}

func (s *RouterSuite) TestPaymentWebhook() {
	s.signIn(dealerID)
	payment := paymentRequest{AccountID: dealerID.String(), PlanID: "standard", PaymentReference: "pay-42"}

	s.Run("requires the shared secret", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/webhooks/payments", payment)
		req.Header.Set(SecretHeader, "wrong")
		testutil.AssertError(s.T(), s.do(req), http.StatusUnauthorized, "unauthorized")
	})

	s.Run("activates once per payment reference", func() {
		for range 2 {
			req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/webhooks/payments", payment)
			req.Header.Set(SecretHeader, paymentSecret)
			s.Require().Equal(http.StatusNoContent, s.do(req).Code)
		}
		rr := s.do(s.as(dealerID, testutil.NewJSONRequest(s.T(), http.MethodGet, "/me", nil)))
		s.Require().Equal(http.StatusOK, rr.Code)
		body := testutil.Decode[accountResponse](s.T(), rr)
		s.Require().NotNil(body.Subscription)
		s.Equal(15, body.Subscription.AdCredits)

		ledger := testutil.Decode[ledgerResponse](s.T(),
			s.do(s.as(dealerID, testutil.NewJSONRequest(s.T(), http.MethodGet, "/me/ledger", nil))))
		s.Len(ledger.Entries, 1)
	})

	s.Run("unknown plan is a validation error", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/webhooks/payments",
			paymentRequest{AccountID: dealerID.String(), PlanID: "gold", PaymentReference: "pay-43"})
		req.Header.Set(SecretHeader, paymentSecret)
		testutil.AssertError(s.T(), s.do(req), http.StatusBadRequest, "validation_error")
	})
}

func (s *RouterSuite) TestListingLifecycle() {
	s.Run("unverified dealer cannot list", func() {
		s.signIn(otherID)
		testutil.AssertError(s.T(), s.createListing(otherID, "clean"), http.StatusConflict, "invalid_state")
	})

	s.givenListableDealer(dealerID)
	var listingID string

	s.Run("create publishes and lists on the marketplace", func() {
		rr := s.createListing(dealerID, "Single owner, full service history")
		s.Require().Equal(http.StatusCreated, rr.Code, rr.Body.String())
		body := testutil.Decode[listingResponse](s.T(), rr)
		s.Equal("public", body.Visibility)
		s.Equal("passed", body.ModerationState)
		listingID = body.ID

		market := testutil.Decode[listingsResponse](s.T(),
			s.do(testutil.NewJSONRequest(s.T(), http.MethodGet, "/marketplace?make=honda", nil)))
		s.Require().Len(market.Listings, 1)
		s.Equal(listingID, market.Listings[0].ID)
		s.Empty(market.Listings[0].ModerationState)
	})

	s.Run("violating content is hidden with a reason", func() {
		rr := s.createListing(dealerID, "Call me on whatsapp")
		s.Require().Equal(http.StatusCreated, rr.Code)
		body := testutil.Decode[listingResponse](s.T(), rr)
		s.Equal("private", body.Visibility)
		s.Require().NotNil(body.ModerationReason)

		rr = s.do(testutil.NewJSONRequest(s.T(), http.MethodGet, "/listings/"+body.ID, nil))
		testutil.AssertError(s.T(), rr, http.StatusNotFound, "not_found")
	})

	s.Run("checker outage commits the listing and answers 202", func() {
		s.checker.down.Store(true)
		defer s.checker.down.Store(false)

		rr := s.createListing(dealerID, "Top condition")
		s.Require().Equal(http.StatusAccepted, rr.Code, rr.Body.String())
		body := testutil.Decode[listingResponse](s.T(), rr)
		s.Equal("private", body.Visibility)
		s.Equal("retry", body.ModerationState)
	})

	s.Run("only the owner edits", func() {
		s.signIn(otherID)
		req := testutil.NewJSONRequest(s.T(), http.MethodPut, "/listings/"+listingID, listingRequest{
			Content: listingmodels.Content{Title: "Mine now", Make: "Honda", Model: "City", Year: 2019, PriceMinor: 1, City: "Pune"},
		})
		testutil.AssertError(s.T(), s.do(s.as(otherID, req)), http.StatusForbidden, "permission_denied")
	})

	s.Run("media reorder must be a permutation", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPut, "/listings/"+listingID+"/media-order", reorderRequest{Order: []string{"img-2"}})
		testutil.AssertError(s.T(), s.do(s.as(dealerID, req)), http.StatusBadRequest, "validation_error")

		req = testutil.NewJSONRequest(s.T(), http.MethodPut, "/listings/"+listingID+"/media-order", reorderRequest{Order: []string{"img-2", "img-1"}})
		rr := s.do(s.as(dealerID, req))
		s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())
		s.Equal([]string{"img-2", "img-1"}, testutil.Decode[listingResponse](s.T(), rr).Media)
	})

	s.Run("sold listings leave the marketplace", func() {
		rr := s.do(s.as(dealerID, testutil.NewJSONRequest(s.T(), http.MethodPost, "/listings/"+listingID+"/sold", nil)))
		s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())
		s.NotNil(testutil.Decode[listingResponse](s.T(), rr).SoldAt)

		market := testutil.Decode[listingsResponse](s.T(),
			s.do(testutil.NewJSONRequest(s.T(), http.MethodGet, "/marketplace", nil)))
		s.Empty(market.Listings)

		mine := testutil.Decode[listingsResponse](s.T(),
			s.do(s.as(dealerID, testutil.NewJSONRequest(s.T(), http.MethodGet, "/me/listings", nil))))
		s.Len(mine.Listings, 3)
	})

	s.Run("malformed ids and queries are validation errors", func() {
		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodGet, "/listings/not-a-uuid", nil))
		testutil.AssertError(s.T(), rr, http.StatusBadRequest, "validation_error")

		rr = s.do(testutil.NewJSONRequest(s.T(), http.MethodGet, "/marketplace?limit=zero", nil))
		testutil.AssertError(s.T(), rr, http.StatusBadRequest, "validation_error")
	})
}

func (s *RouterSuite) TestInsufficientCredits() {
	s.givenListableDealer(dealerID)
	for range 5 {
		s.Require().Equal(http.StatusCreated, s.createListing(dealerID, "clean").Code)
	}
	testutil.AssertError(s.T(), s.createListing(dealerID, "clean"), http.StatusPaymentRequired, "insufficient_credits")
}

func (s *RouterSuite) TestModerationCallback() {
	s.givenListableDealer(dealerID)
	s.checker.down.Store(true)
	rr := s.createListing(dealerID, "Top condition")
	s.checker.down.Store(false)
	s.Require().Equal(http.StatusAccepted, rr.Code)
	listingID := testutil.Decode[listingResponse](s.T(), rr).ID

	parsed, err := id.ParseListingID(listingID)
	s.Require().NoError(err)
	current, err := s.listings.Get(context.Background(), parsed)
	s.Require().NoError(err)
	violation := false
	result := moderationResultRequest{
		ListingID: listingID,
		RequestID: current.Moderation.RequestID.String(),
		Violation: &violation,
	}

	s.Run("requires the callback secret", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/webhooks/moderation", result)
		req.Header.Set(SecretHeader, paymentSecret)
		testutil.AssertError(s.T(), s.do(req), http.StatusUnauthorized, "unauthorized")
	})

	s.Run("a passing verdict publishes the listing", func() {
		for range 2 {
			req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/webhooks/moderation", result)
			req.Header.Set(SecretHeader, callbackSecret)
			rr := s.do(req)
			s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())
			body := testutil.Decode[listingResponse](s.T(), rr)
			s.Equal("public", body.Visibility)
			s.Equal("passed", body.ModerationState)
		}
	})

	s.Run("verdict is required", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/webhooks/moderation",
			moderationResultRequest{ListingID: listingID, RequestID: result.RequestID})
		req.Header.Set(SecretHeader, callbackSecret)
		testutil.AssertError(s.T(), s.do(req), http.StatusBadRequest, "validation_error")
	})
}

func (s *RouterSuite) TestAdminSurface() {
	s.givenListableDealer(dealerID)
	rr := s.createListing(dealerID, "clean")
	s.Require().Equal(http.StatusCreated, rr.Code)
	listingID := testutil.Decode[listingResponse](s.T(), rr).ID

	s.Run("dealers cannot use admin routes", func() {
		rr := s.do(s.as(dealerID, testutil.NewJSONRequest(s.T(), http.MethodGet, "/admin/accounts/"+dealerID.String()+"/support", nil)))
		testutil.AssertError(s.T(), rr, http.StatusForbidden, "permission_denied")
	})

	s.Run("edit contact fields", func() {
		name := "Sharma Motors"
		req := testutil.NewJSONRequest(s.T(), http.MethodPatch, "/admin/accounts/"+dealerID.String(),
			accountFieldsRequest{Name: &name, Reason: "support ticket"})
		rr := s.do(s.as(adminID, req))
		s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())
		s.Equal(name, testutil.Decode[accountResponse](s.T(), rr).Name)
	})

	s.Run("set an unknown verification status", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPut, "/admin/accounts/"+dealerID.String()+"/verification-status",
			verificationStatusRequest{Status: "golden"})
		testutil.AssertError(s.T(), s.do(s.as(adminID, req)), http.StatusBadRequest, "validation_error")
	})

	s.Run("flag a listing by hand", func() {
		reason := "misleading price"
		req := testutil.NewJSONRequest(s.T(), http.MethodPut, "/admin/listings/"+listingID+"/moderation",
			listingModerationRequest{Reason: &reason, Note: "buyer complaint"})
		rr := s.do(s.as(adminID, req))
		s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())
		body := testutil.Decode[listingResponse](s.T(), rr)
		s.Equal("private", body.Visibility)
		s.Equal(&reason, body.ModerationReason)
	})

	s.Run("support view carries ledger and audit trail", func() {
		rr := s.do(s.as(adminID, testutil.NewJSONRequest(s.T(), http.MethodGet, "/admin/accounts/"+dealerID.String()+"/support", nil)))
		s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())
		view := testutil.Decode[supportViewResponse](s.T(), rr)
		s.Equal("verified", view.Account.VerificationStatus)
		s.NotEmpty(view.Ledger)
		s.NotEmpty(view.AuditTrail)
	})
}

func (s *RouterSuite) TestOperationalRoutes() {
	s.Equal(http.StatusNoContent, s.do(testutil.NewJSONRequest(s.T(), http.MethodGet, "/healthz", nil)).Code)

	plans := testutil.Decode[plansResponse](s.T(), s.do(testutil.NewJSONRequest(s.T(), http.MethodGet, "/plans", nil)))
	s.Len(plans.Plans, 3)

	rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodGet, "/metrics", nil))
	s.Equal(http.StatusOK, rr.Code)
	s.Contains(rr.Body.String(), "http_request_duration_seconds")
}

func (s *RouterSuite) TestCORS() {
	s.Run("preflight from an allowed origin", func() {
		req := httptest.NewRequest(http.MethodOptions, "/listings", nil)
		req.Header.Set("Origin", appOrigin)
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		req.Header.Set("Access-Control-Request-Headers", "Authorization, Content-Type")
		rr := s.do(req)
		s.Less(rr.Code, 300)
		s.Equal(appOrigin, rr.Header().Get("Access-Control-Allow-Origin"))
	})

	s.Run("unknown origins get no CORS headers", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodGet, "/plans", nil)
		req.Header.Set("Origin", "https://evil.example.com")
		rr := s.do(req)
		s.Equal(http.StatusOK, rr.Code)
		s.Empty(rr.Header().Get("Access-Control-Allow-Origin"))
	})
}
