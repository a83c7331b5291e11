// Package service runs the listing lifecycle: creation against an ad credit,
// owner edits, moderation rounds and the lazy visibility sweep that keeps
// listings private while the owner's plan is not live.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	accountmodels "dealerhub/internal/account/models"
	"dealerhub/internal/listing/models"
	"dealerhub/internal/listing/moderation"
	"dealerhub/internal/listing/store"
	"dealerhub/internal/platform/metrics"
	id "dealerhub/pkg/domain"
	dErrors "dealerhub/pkg/domain-errors"
	"dealerhub/pkg/platform/audit"
	"dealerhub/pkg/platform/sentinel"
	"dealerhub/pkg/requestcontext"
)

const (
	DefaultRetryBatch   = 100
	DefaultPendingStale = 10 * time.Minute
	sweepConcurrency    = 8
)

// Store persists listings. Create and Execute must honour a transaction
// carried in ctx.
type Store interface {
	Create(ctx context.Context, listing *models.Listing) error
	FindByID(ctx context.Context, listingID id.ListingID) (*models.Listing, error)
	Execute(ctx context.Context, listingID id.ListingID, fn func(ctx context.Context, listing *models.Listing) error) (*models.Listing, error)
	ListByDealer(ctx context.Context, dealerID id.AccountID) ([]*models.Listing, error)
	ListMarketplace(ctx context.Context, filter store.MarketplaceFilter) ([]*models.Listing, error)
	ListForModerationRetry(ctx context.Context, staleBefore time.Time, limit int) ([]*models.Listing, error)
}

// Accounts is the account record boundary.
type Accounts interface {
	Get(ctx context.Context, accountID id.AccountID) (*accountmodels.Account, error)
	Execute(ctx context.Context, accountID id.AccountID, fn func(ctx context.Context, account *accountmodels.Account) error) (*accountmodels.Account, error)
}

// Credits spends and refunds ad credits. Consume runs inside the caller's
// account transaction.
type Credits interface {
	Consume(ctx context.Context, a *accountmodels.Account, reference string) error
	RefundCredit(ctx context.Context, accountID id.AccountID, listingID id.ListingID) (bool, error)
}

// ModerationChecker inspects listing content.
type ModerationChecker interface {
	Check(ctx context.Context, req moderation.Request) (models.Verdict, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Policy holds the configurable lifecycle decisions.
type Policy struct {
	// RefundOnModerationRejection returns the credit when a new listing is
	// flagged by its first moderation round.
	RefundOnModerationRejection bool
	// HideListingsOnUnverify keeps listings private while the owner is not
	// verified.
	HideListingsOnUnverify bool
}

var errUnchanged = errors.New("listing unchanged")

type Service struct {
	store          Store
	accounts       Accounts
	credits        Credits
	checker        ModerationChecker
	policy         Policy
	pendingStale   time.Duration
	retryBatch     int
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	tracer         trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithPolicy(p Policy) Option {
	return func(s *Service) {
		s.policy = p
	}
}

// WithPendingStaleAfter sets how long a pending round may wait for an
// asynchronous verdict before RetryPendingModeration checks it again.
func WithPendingStaleAfter(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.pendingStale = d
		}
	}
}

func New(listings Store, accounts Accounts, credits Credits, checker ModerationChecker, opts ...Option) *Service {
	s := &Service{
		store:        listings,
		accounts:     accounts,
		credits:      credits,
		checker:      checker,
		pendingStale: DefaultPendingStale,
		retryBatch:   DefaultRetryBatch,
		logger:       slog.New(slog.DiscardHandler),
		tracer:       otel.Tracer("dealerhub/listing"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create publishes a listing for a verified dealer and spends one credit.
// The listing and the credit movement commit in the dealer's account
// transaction; moderation runs after commit.
//
// When the checker is unreachable the listing is still returned, kept
// private with moderation state retry, together with a CodeExternalService
// error.
func (s *Service) Create(ctx context.Context, dealerID id.AccountID, content models.Content, media []string) (*models.Listing, error) {
	now := requestcontext.Now(ctx)
	var listing *models.Listing
	_, err := s.accounts.Execute(ctx, dealerID, func(ctx context.Context, a *accountmodels.Account) error {
		if !a.IsVerified() {
			return dErrors.New(dErrors.CodeInvalidState, "account must be verified to create listings")
		}
		l, err := models.NewListing(id.NewListingID(), dealerID, content, media, id.NewModerationRequestID(), now)
		if err != nil {
			return err
		}
		if err := s.credits.Consume(ctx, a, l.ID.String()); err != nil {
			return err
		}
		if err := s.store.Create(ctx, l); err != nil {
			return err
		}
		listing = l
		return nil
	})
	if err != nil {
		return nil, translate(err)
	}
	s.metrics.IncListingTransition("create")
	s.logger.InfoContext(ctx, "listing created",
		"listing_id", listing.ID,
		"dealer_id", dealerID,
	)
	return s.moderate(ctx, listing)
}

// Edit replaces the listing content and starts a fresh moderation round. A
// previous moderation flag is cleared pending the new verdict.
func (s *Service) Edit(ctx context.Context, actorID id.AccountID, listingID id.ListingID, content models.Content, media []string) (*models.Listing, error) {
	now := requestcontext.Now(ctx)
	listing, err := s.store.Execute(ctx, listingID, func(ctx context.Context, l *models.Listing) error {
		if err := requireOwner(l, actorID, "edit"); err != nil {
			return err
		}
		if err := l.CanEdit(); err != nil {
			return err
		}
		if err := l.ApplyEdit(content, media, id.NewModerationRequestID(), now); err != nil {
			return err
		}
		owner, err := s.ownerState(ctx, l.DealerID, now)
		if err != nil {
			return err
		}
		l.Reconcile(owner, now)
		return nil
	})
	if err != nil {
		return nil, translate(err)
	}
	s.metrics.IncListingTransition("edit")
	return s.moderate(ctx, listing)
}

// MarkSold closes the listing as sold. Sold listings leave the marketplace.
func (s *Service) MarkSold(ctx context.Context, actorID id.AccountID, listingID id.ListingID) (*models.Listing, error) {
	now := requestcontext.Now(ctx)
	listing, err := s.store.Execute(ctx, listingID, func(_ context.Context, l *models.Listing) error {
		if err := requireOwner(l, actorID, "mark sold"); err != nil {
			return err
		}
		if err := l.CanMarkSold(); err != nil {
			return err
		}
		l.ApplyMarkSold(now)
		return nil
	})
	if err != nil {
		return nil, translate(err)
	}
	s.metrics.IncListingTransition("sold")
	return listing, nil
}

// Remove withdraws the listing. The spent credit is not returned.
func (s *Service) Remove(ctx context.Context, actorID id.AccountID, listingID id.ListingID) (*models.Listing, error) {
	now := requestcontext.Now(ctx)
	listing, err := s.store.Execute(ctx, listingID, func(_ context.Context, l *models.Listing) error {
		if err := requireOwner(l, actorID, "remove"); err != nil {
			return err
		}
		if err := l.CanRemove(); err != nil {
			return err
		}
		l.ApplyRemove(now)
		return nil
	})
	if err != nil {
		return nil, translate(err)
	}
	s.metrics.IncListingTransition("removed")
	return listing, nil
}

// ReorderMedia applies a permutation of the listing's media references.
func (s *Service) ReorderMedia(ctx context.Context, actorID id.AccountID, listingID id.ListingID, order []string) (*models.Listing, error) {
	now := requestcontext.Now(ctx)
	listing, err := s.store.Execute(ctx, listingID, func(_ context.Context, l *models.Listing) error {
		if err := requireOwner(l, actorID, "reorder"); err != nil {
			return err
		}
		return l.ApplyMediaOrder(order, now)
	})
	if err != nil {
		return nil, translate(err)
	}
	s.metrics.IncListingTransition("reorder")
	return listing, nil
}

// Get returns a listing after reconciling its visibility.
func (s *Service) Get(ctx context.Context, listingID id.ListingID) (*models.Listing, error) {
	l, err := s.store.FindByID(ctx, listingID)
	if err != nil {
		return nil, translate(err)
	}
	owners := map[id.AccountID]models.OwnerState{}
	return s.reconcile(ctx, l, owners)
}

// ListByDealer returns the dealer's listings, newest first, reconciled.
func (s *Service) ListByDealer(ctx context.Context, dealerID id.AccountID) ([]*models.Listing, error) {
	listings, err := s.store.ListByDealer(ctx, dealerID)
	if err != nil {
		return nil, translate(err)
	}
	owners := map[id.AccountID]models.OwnerState{}
	for i, l := range listings {
		if listings[i], err = s.reconcile(ctx, l, owners); err != nil {
			return nil, err
		}
	}
	return listings, nil
}

// ListMarketplace returns active, public listings. Listings that turn private
// on reconciliation are dropped from the page.
func (s *Service) ListMarketplace(ctx context.Context, filter store.MarketplaceFilter) ([]*models.Listing, error) {
	listings, err := s.store.ListMarketplace(ctx, filter)
	if err != nil {
		return nil, translate(err)
	}
	owners := map[id.AccountID]models.OwnerState{}
	out := listings[:0]
	for _, l := range listings {
		l, err = s.reconcile(ctx, l, owners)
		if err != nil {
			return nil, err
		}
		if l.IsListed() {
			out = append(out, l)
		}
	}
	return out, nil
}

// SweepDealer reconciles every listing of one dealer, each in its own
// transaction.
func (s *Service) SweepDealer(ctx context.Context, dealerID id.AccountID) error {
	listings, err := s.store.ListByDealer(ctx, dealerID)
	if err != nil {
		return translate(err)
	}
	now := requestcontext.Now(ctx)
	owner, err := s.ownerState(ctx, dealerID, now)
	if err != nil {
		return translate(err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(sweepConcurrency)
	for _, l := range listings {
		if !l.NeedsReconcile(owner) {
			continue
		}
		listingID := l.ID
		g.Go(func() error {
			_, err := s.reconcileByID(gctx, listingID, now)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return translate(err)
	}
	return nil
}

// ApplyModerationResult records a verdict delivered for requestID. Verdicts
// for a superseded round, and repeats of a decided round, are ignored.
func (s *Service) ApplyModerationResult(ctx context.Context, listingID id.ListingID, requestID id.ModerationRequestID, verdict models.Verdict) (*models.Listing, error) {
	now := requestcontext.Now(ctx)
	var outcome models.ResultOutcome
	listing, err := s.store.Execute(ctx, listingID, func(ctx context.Context, l *models.Listing) error {
		outcome = l.ApplyVerdict(requestID, verdict, now)
		if outcome != models.OutcomeApplied {
			return errUnchanged
		}
		owner, err := s.ownerState(ctx, l.DealerID, now)
		if err != nil {
			return err
		}
		l.Reconcile(owner, now)
		if s.policy.RefundOnModerationRejection && l.ShouldRefund() {
			refunded, err := s.credits.RefundCredit(ctx, l.DealerID, l.ID)
			if err != nil {
				return err
			}
			l.Moderation.CreditRefunded = refunded
		}
		return nil
	})
	if errors.Is(err, errUnchanged) {
		s.metrics.IncModerationOutcome(string(outcome))
		s.logger.InfoContext(ctx, "moderation result ignored",
			"listing_id", listingID,
			"request_id", requestID,
			"outcome", outcome,
		)
		return s.Get(ctx, listingID)
	}
	if err != nil {
		return nil, translate(err)
	}
	s.metrics.IncModerationOutcome(string(listing.Moderation.State))
	if listing.ModerationReason != nil {
		s.logger.InfoContext(ctx, "listing flagged by moderation",
			"listing_id", listingID,
			"reason", *listing.ModerationReason,
			"credit_refunded", listing.Moderation.CreditRefunded,
		)
	}
	return listing, nil
}

// RetryPendingModeration re-checks listings left in retry by a checker outage
// and pending rounds whose verdict never arrived. It returns how many
// listings received a verdict.
func (s *Service) RetryPendingModeration(ctx context.Context) (int, error) {
	now := requestcontext.Now(ctx)
	due, err := s.store.ListForModerationRetry(ctx, now.Add(-s.pendingStale), s.retryBatch)
	if err != nil {
		return 0, translate(err)
	}
	if len(due) == 0 {
		return 0, nil
	}

	results := make([]bool, len(due))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(sweepConcurrency)
	for i, l := range due {
		g.Go(func() error {
			_, err := s.moderate(gctx, l)
			if err == nil {
				results[i] = true
				return nil
			}
			if dErrors.HasCode(err, dErrors.CodeExternalService) {
				return nil
			}
			return err
		})
	}
	err = g.Wait()

	decided := 0
	for _, ok := range results {
		if ok {
			decided++
		}
	}
	s.logger.InfoContext(ctx, "moderation retry sweep finished",
		"due", len(due),
		"decided", decided,
	)
	if err != nil {
		return decided, translate(err)
	}
	return decided, nil
}

// OverrideModeration sets (reason != nil) or clears a moderation flag by
// hand. The caller has already checked the actor's privilege; the audit
// event commits with the change.
func (s *Service) OverrideModeration(ctx context.Context, actorID id.AccountID, listingID id.ListingID, reason *string, note string) (*models.Listing, error) {
	now := requestcontext.Now(ctx)
	listing, err := s.store.Execute(ctx, listingID, func(ctx context.Context, l *models.Listing) error {
		old := ""
		if l.ModerationReason != nil {
			old = *l.ModerationReason
		}
		l.ApplyModerationOverride(reason, now)
		owner, err := s.ownerState(ctx, l.DealerID, now)
		if err != nil {
			return err
		}
		l.Reconcile(owner, now)
		newValue := ""
		if l.ModerationReason != nil {
			newValue = *l.ModerationReason
		}
		return s.emit(ctx, audit.Event{
			AccountID: l.DealerID,
			ListingID: l.ID.String(),
			Action:    string(audit.EventListingModerationOverride),
			Field:     "moderation_reason",
			OldValue:  old,
			NewValue:  newValue,
			ActorID:   actorID,
			Reason:    note,
			RequestID: requestcontext.RequestID(ctx),
			Timestamp: now,
		})
	})
	if err != nil {
		return nil, translate(err)
	}
	s.logAudit(ctx, string(audit.EventListingModerationOverride),
		"listing_id", listingID,
		"actor_id", actorID,
		"visibility", listing.Visibility,
	)
	return listing, nil
}

// moderate runs the current moderation round for l. A checker failure marks
// the round for retry and restores the prior visibility.
func (s *Service) moderate(ctx context.Context, l *models.Listing) (result *models.Listing, err error) {
	requestID := l.Moderation.RequestID
	ctx, span := s.tracer.Start(ctx, "listing.moderate",
		trace.WithAttributes(
			attribute.String("listing.id", l.ID.String()),
			attribute.String("moderation.request_id", requestID.String()),
			attribute.String("moderation.origin", string(l.Moderation.Origin)),
		))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, dErrors.MessageOf(err))
		}
		span.End()
	}()

	verdict, checkErr := s.checker.Check(ctx, moderation.RequestFor(l))
	if checkErr == nil {
		span.SetAttributes(attribute.Bool("moderation.violation", verdict.Violation))
		result, err = s.ApplyModerationResult(ctx, l.ID, requestID, verdict)
		if err != nil {
			return l, err
		}
		return result, nil
	}
	if !dErrors.HasCode(checkErr, dErrors.CodeExternalService) {
		checkErr = dErrors.Wrap(checkErr, dErrors.CodeExternalService, "moderation service unavailable")
	}

	now := requestcontext.Now(ctx)
	updated, err := s.store.Execute(ctx, l.ID, func(ctx context.Context, l *models.Listing) error {
		if !l.ApplyCheckerOutage(requestID, now) {
			return errUnchanged
		}
		owner, err := s.ownerState(ctx, l.DealerID, now)
		if err != nil {
			return err
		}
		l.Reconcile(owner, now)
		return nil
	})
	switch {
	case errors.Is(err, errUnchanged):
		// A verdict or a newer round landed while the checker was failing.
		updated, err = s.store.FindByID(ctx, l.ID)
		if err != nil {
			return nil, translate(err)
		}
		return updated, nil
	case err != nil:
		return nil, translate(err)
	}
	s.metrics.IncModerationOutcome(string(models.ModerationRetry))
	s.logger.WarnContext(ctx, "moderation deferred: checker unavailable",
		"listing_id", l.ID,
		"request_id", requestID,
		"error", checkErr,
	)
	return updated, checkErr
}

func (s *Service) reconcile(ctx context.Context, l *models.Listing, owners map[id.AccountID]models.OwnerState) (*models.Listing, error) {
	now := requestcontext.Now(ctx)
	owner, ok := owners[l.DealerID]
	if !ok {
		var err error
		if owner, err = s.ownerState(ctx, l.DealerID, now); err != nil {
			return nil, translate(err)
		}
		owners[l.DealerID] = owner
	}
	if !l.NeedsReconcile(owner) {
		return l, nil
	}
	updated, err := s.reconcileByID(ctx, l.ID, now)
	if err != nil {
		return nil, translate(err)
	}
	return updated, nil
}

func (s *Service) reconcileByID(ctx context.Context, listingID id.ListingID, now time.Time) (*models.Listing, error) {
	listing, err := s.store.Execute(ctx, listingID, func(ctx context.Context, l *models.Listing) error {
		owner, err := s.ownerState(ctx, l.DealerID, now)
		if err != nil {
			return err
		}
		if !l.Reconcile(owner, now) {
			return errUnchanged
		}
		return nil
	})
	if errors.Is(err, errUnchanged) {
		return s.store.FindByID(ctx, listingID)
	}
	if err != nil {
		return nil, err
	}
	s.metrics.IncVisibilitySweep(string(listing.Visibility))
	return listing, nil
}

func (s *Service) ownerState(ctx context.Context, dealerID id.AccountID, now time.Time) (models.OwnerState, error) {
	a, err := s.accounts.Get(ctx, dealerID)
	if err != nil {
		return models.OwnerState{}, err
	}
	return models.OwnerState{
		SubscriptionLive:   a.HasLiveSubscription(now),
		Verified:           a.IsVerified(),
		HideWhenUnverified: s.policy.HideListingsOnUnverify,
	}, nil
}

func requireOwner(l *models.Listing, actorID id.AccountID, action string) error {
	if !l.IsOwnedBy(actorID) {
		return dErrors.New(dErrors.CodeForbidden, "only the listing owner can "+action+" it")
	}
	return nil
}

func (s *Service) emit(ctx context.Context, event audit.Event) error {
	if s.auditPublisher == nil {
		return nil
	}
	if err := s.auditPublisher.Emit(ctx, event); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record audit event")
	}
	return nil
}

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", event, "log_type", "audit")
	s.logger.InfoContext(ctx, event, args...)
}

func translate(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := dErrors.CodeOf(err); ok {
		return err
	}
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "listing not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "listing already exists")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "listing operation failed")
}
