// Package httptransport is the thin HTTP layer over the domain services.
// Handlers decode, call one service method and render the result; business
// rules stay in the services.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	accountmodels "dealerhub/internal/account/models"
	adminmodels "dealerhub/internal/admin/models"
	"dealerhub/internal/identity"
	listingmodels "dealerhub/internal/listing/models"
	listingstore "dealerhub/internal/listing/store"
	"dealerhub/internal/platform/metrics"
	subscriptionmodels "dealerhub/internal/subscription/models"
	verificationservice "dealerhub/internal/verification/service"
	id "dealerhub/pkg/domain"
)

// SignInGate runs the sign-in hook for an authenticated subject.
type SignInGate interface {
	SignIn(ctx context.Context, accountID id.AccountID, email string, emailVerified bool) (*accountmodels.Account, bool, error)
}

type Accounts interface {
	Get(ctx context.Context, accountID id.AccountID) (*accountmodels.Account, error)
}

type Verification interface {
	UploadDocument(ctx context.Context, accountID id.AccountID, docType, contentType string, data []byte) (string, error)
	SubmitDocuments(ctx context.Context, accountID id.AccountID, refs verificationservice.DocumentRefs) (*accountmodels.Account, error)
	ReviewDocuments(ctx context.Context, actorID, accountID id.AccountID, approve bool, reason string) (*accountmodels.Account, error)
	RecordPhoneVerified(ctx context.Context, accountID id.AccountID) error
}

type Subscriptions interface {
	Plans() []subscriptionmodels.Plan
	CheckExpiry(ctx context.Context, accountID id.AccountID) (bool, error)
	OnPaymentConfirmed(ctx context.Context, evt subscriptionmodels.PaymentConfirmation) error
	Ledger(ctx context.Context, accountID id.AccountID) ([]subscriptionmodels.LedgerEntry, error)
}

type Listings interface {
	Create(ctx context.Context, dealerID id.AccountID, content listingmodels.Content, media []string) (*listingmodels.Listing, error)
	Edit(ctx context.Context, actorID id.AccountID, listingID id.ListingID, content listingmodels.Content, media []string) (*listingmodels.Listing, error)
	MarkSold(ctx context.Context, actorID id.AccountID, listingID id.ListingID) (*listingmodels.Listing, error)
	Remove(ctx context.Context, actorID id.AccountID, listingID id.ListingID) (*listingmodels.Listing, error)
	ReorderMedia(ctx context.Context, actorID id.AccountID, listingID id.ListingID, order []string) (*listingmodels.Listing, error)
	Get(ctx context.Context, listingID id.ListingID) (*listingmodels.Listing, error)
	ListByDealer(ctx context.Context, dealerID id.AccountID) ([]*listingmodels.Listing, error)
	ListMarketplace(ctx context.Context, filter listingstore.MarketplaceFilter) ([]*listingmodels.Listing, error)
	ApplyModerationResult(ctx context.Context, listingID id.ListingID, requestID id.ModerationRequestID, verdict listingmodels.Verdict) (*listingmodels.Listing, error)
}

type Admin interface {
	Approve(ctx context.Context, actorID, accountID id.AccountID, reason string) (*accountmodels.Account, error)
	Reject(ctx context.Context, actorID, accountID id.AccountID, reason string) (*accountmodels.Account, error)
	Unverify(ctx context.Context, actorID, accountID id.AccountID, reason string) (*accountmodels.Account, error)
	SetVerificationStatus(ctx context.Context, actorID, accountID id.AccountID, status accountmodels.VerificationStatus, reason string) (*accountmodels.Account, error)
	EditAccountFields(ctx context.Context, actorID, accountID id.AccountID, fields adminmodels.ContactFields, reason string) (*accountmodels.Account, error)
	SupportView(ctx context.Context, actorID, accountID id.AccountID) (*adminmodels.SupportView, error)
	SetListingModeration(ctx context.Context, actorID id.AccountID, listingID id.ListingID, reason *string, note string) (*listingmodels.Listing, error)
}

// Deps are the collaborators the router dispatches to.
type Deps struct {
	Logger        *slog.Logger
	Metrics       *metrics.Metrics
	Gatherer      prometheus.Gatherer
	Tokens        identity.TokenValidator
	Gate          SignInGate
	Accounts      Accounts
	Verification  Verification
	Subscriptions Subscriptions
	Listings      Listings
	Admin         Admin

	// PaymentSecret guards the payment webhook; CallbackSecret guards
	// moderation results and phone verification callbacks.
	PaymentSecret  string
	CallbackSecret string
	// AllowedOrigins enables CORS for browser clients; empty disables it.
	AllowedOrigins []string
	// Health reports backing store readiness; nil means always ready.
	Health func(ctx context.Context) error
}

// Handler holds the dependencies shared by every route.
type Handler struct {
	Deps
}

// NewRouter wires every public, authenticated, admin and callback route.
func NewRouter(deps Deps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}
	h := &Handler{Deps: deps}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(RequestContext)
	r.Use(chimw.Recoverer)
	if len(deps.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: deps.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
			ExposedHeaders: []string{"X-Request-ID"},
			MaxAge:         300,
		}))
	}
	r.Use(Observe(deps.Metrics))
	r.Use(chimw.Timeout(30 * time.Second))

	r.Get("/healthz", h.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))

	r.Get("/plans", h.handlePlans)
	r.Get("/marketplace", h.handleMarketplace)
	r.Get("/listings/{listingID}", h.handleGetListing)

	r.Group(func(r chi.Router) {
		r.Use(RequireSharedSecret(deps.PaymentSecret, deps.Logger))
		r.Post("/webhooks/payments", h.handlePaymentConfirmed)
	})
	r.Group(func(r chi.Router) {
		r.Use(RequireSharedSecret(deps.CallbackSecret, deps.Logger))
		r.Post("/webhooks/moderation", h.handleModerationResult)
		r.Post("/webhooks/phone-verified", h.handlePhoneVerified)
	})

	r.Group(func(r chi.Router) {
		r.Use(identity.RequireAuth(deps.Tokens, deps.Logger))

		r.Post("/auth/sign-in", h.handleSignIn)
		r.Get("/me", h.handleMe)
		r.Get("/me/ledger", h.handleMyLedger)
		r.Post("/me/documents/{docType}", h.handleUploadDocument)
		r.Post("/me/documents/submit", h.handleSubmitDocuments)

		r.Get("/me/listings", h.handleMyListings)
		r.Post("/listings", h.handleCreateListing)
		r.Put("/listings/{listingID}", h.handleEditListing)
		r.Post("/listings/{listingID}/sold", h.handleMarkSold)
		r.Post("/listings/{listingID}/remove", h.handleRemoveListing)
		r.Put("/listings/{listingID}/media-order", h.handleReorderMedia)

		r.Route("/admin", func(r chi.Router) {
			r.Post("/accounts/{accountID}/review", h.handleReview)
			r.Post("/accounts/{accountID}/approve", h.handleApprove)
			r.Post("/accounts/{accountID}/reject", h.handleReject)
			r.Post("/accounts/{accountID}/unverify", h.handleUnverify)
			r.Put("/accounts/{accountID}/verification-status", h.handleSetVerificationStatus)
			r.Patch("/accounts/{accountID}", h.handleEditAccountFields)
			r.Get("/accounts/{accountID}/support", h.handleSupportView)
			r.Put("/listings/{listingID}/moderation", h.handleSetListingModeration)
		})
	})
	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if h.Health != nil {
		if err := h.Health(r.Context()); err != nil {
			h.Logger.WarnContext(r.Context(), "health check failed", "error", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}
