// Package service keeps plan state and the ad-credit balance consistent:
// activation, lazy expiry, consumption and refunds all run inside one account
// transaction and leave a ledger entry behind.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	accountmodels "dealerhub/internal/account/models"
	"dealerhub/internal/platform/metrics"
	"dealerhub/internal/subscription/models"
	id "dealerhub/pkg/domain"
	dErrors "dealerhub/pkg/domain-errors"
	"dealerhub/pkg/platform/audit"
	"dealerhub/pkg/requestcontext"
)

// Accounts is the account record boundary.
type Accounts interface {
	Get(ctx context.Context, accountID id.AccountID) (*accountmodels.Account, error)
	Execute(ctx context.Context, accountID id.AccountID, fn func(ctx context.Context, account *accountmodels.Account) error) (*accountmodels.Account, error)
}

// Ledger is the append-only credit history. Append must honour a transaction
// carried in ctx.
type Ledger interface {
	Append(ctx context.Context, entry models.LedgerEntry) error
	ListByAccount(ctx context.Context, accountID id.AccountID) ([]models.LedgerEntry, error)
	HasActivation(ctx context.Context, accountID id.AccountID, reference string) (bool, error)
}

// ProcessedPayments claims payment references so concurrent or repeated
// deliveries of one confirmation activate a plan once.
type ProcessedPayments interface {
	Begin(ctx context.Context, ref id.PaymentReference) (bool, error)
	Complete(ctx context.Context, ref id.PaymentReference) error
	Release(ctx context.Context, ref id.PaymentReference) error
}

// ListingSweeper reconciles a dealer's listing visibility after a
// subscription change.
type ListingSweeper interface {
	SweepDealer(ctx context.Context, dealerID id.AccountID) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

var errAlreadyApplied = errors.New("payment already applied")

type Service struct {
	accounts       Accounts
	ledger         Ledger
	payments       ProcessedPayments
	catalog        *models.Catalog
	sweeper        ListingSweeper
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

func WithCatalog(c *models.Catalog) Option {
	return func(s *Service) {
		if c != nil {
			s.catalog = c
		}
	}
}

// WithListingSweeper sets the sweeper run after expiry and renewal. Without
// one, listings reconcile lazily on their next read.
func WithListingSweeper(sweeper ListingSweeper) Option {
	return func(s *Service) {
		s.sweeper = sweeper
	}
}

func New(accounts Accounts, ledger Ledger, payments ProcessedPayments, opts ...Option) *Service {
	s := &Service{
		accounts: accounts,
		ledger:   ledger,
		payments: payments,
		catalog:  models.DefaultCatalog(),
		tracer:   otel.Tracer("dealerhub/subscription"),
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Plans lists the purchasable plans.
func (s *Service) Plans() []models.Plan {
	return s.catalog.List()
}

// ActivatePlan applies a settled plan purchase. An account whose plan is
// live at call time is upgraded additively; otherwise credits are set to the
// plan allotment. A stale active flag is expired first, in the same
// transaction, so a lapsed plan counts as a new purchase. A non-empty
// reference already recorded in the ledger makes the call a no-op.
func (s *Service) ActivatePlan(ctx context.Context, accountID id.AccountID, planID string, isYearly bool, reference id.PaymentReference) (*accountmodels.Account, error) {
	plan, err := s.catalog.Lookup(planID)
	if err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	var (
		kind    accountmodels.ActivationKind
		expired bool
	)
	account, err := s.accounts.Execute(ctx, accountID, func(ctx context.Context, a *accountmodels.Account) error {
		if reference != "" {
			applied, err := s.ledger.HasActivation(ctx, accountID, reference.String())
			if err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read credit ledger")
			}
			if applied {
				return errAlreadyApplied
			}
		}
		if exp, ok := a.ExpireIfDue(now); ok {
			expired = true
			if err := s.appendEntry(ctx, a, models.EntryExpire, -exp.ForfeitedCredits, "", now); err != nil {
				return err
			}
		}
		before := a.Credits()
		var after int
		kind, after = a.ApplyPlan(plan.ID, plan.Name, plan.CreditAllotment, isYearly, now)
		entryKind := models.EntryPlanSet
		if kind == accountmodels.ActivationUpgrade {
			entryKind = models.EntryPlanTop
		}
		return s.appendEntry(ctx, a, entryKind, after-before, reference.String(), now)
	})
	if errors.Is(err, errAlreadyApplied) {
		s.metrics.IncDuplicatePayments()
		return s.accounts.Get(ctx, accountID)
	}
	if err != nil {
		return nil, err
	}

	if expired {
		s.metrics.IncSubscriptionsExpired()
	}
	s.metrics.IncPlanActivation(plan.ID, string(kind))
	s.logAudit(ctx, string(audit.EventPlanActivated),
		"account_id", accountID,
		"plan_id", plan.ID,
		"kind", kind,
		"is_yearly", isYearly,
		"credits", account.Credits(),
		"payment_reference", reference,
	)
	s.sweep(ctx, accountID)
	return account, nil
}

// CheckExpiry lazily expires a lapsed plan: isActive becomes false and the
// balance drops to zero. It reports whether this call performed the
// transition. The dealer's listings are then swept best-effort; each listing
// also reconciles on its next read.
func (s *Service) CheckExpiry(ctx context.Context, accountID id.AccountID) (bool, error) {
	now := requestcontext.Now(ctx)
	current, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		return false, err
	}
	if sub := current.Subscription; sub == nil || !sub.IsActive || now.Before(sub.ExpiresAt) {
		return false, nil
	}

	expired := false
	var forfeited int
	_, err = s.accounts.Execute(ctx, accountID, func(ctx context.Context, a *accountmodels.Account) error {
		exp, ok := a.ExpireIfDue(now)
		if !ok {
			return nil
		}
		expired = true
		forfeited = exp.ForfeitedCredits
		return s.appendEntry(ctx, a, models.EntryExpire, -exp.ForfeitedCredits, "", now)
	})
	if err != nil {
		return false, err
	}
	if !expired {
		return false, nil
	}
	s.metrics.IncSubscriptionsExpired()
	s.logAudit(ctx, string(audit.EventSubscriptionExpired),
		"account_id", accountID,
		"forfeited_credits", forfeited,
	)
	s.sweep(ctx, accountID)
	return true, nil
}

// Consume spends one credit on an account already loaded inside a caller's
// account transaction and records the ledger entry in that transaction.
// A plan that is inactive or past expiry has nothing to spend.
//
// Errors: CodeInsufficientCredits, without mutating the account.
func (s *Service) Consume(ctx context.Context, a *accountmodels.Account, reference string) error {
	now := requestcontext.Now(ctx)
	if !a.HasLiveSubscription(now) {
		return dErrors.New(dErrors.CodeInsufficientCredits, "no active subscription")
	}
	if err := a.CanConsumeCredit(); err != nil {
		return err
	}
	a.ApplyConsumeCredit(now)
	if err := s.appendEntry(ctx, a, models.EntryConsume, -1, reference, now); err != nil {
		return err
	}
	s.metrics.IncCreditsConsumed()
	return nil
}

// ConsumeCredit spends one credit in its own account transaction.
func (s *Service) ConsumeCredit(ctx context.Context, accountID id.AccountID, reference string) (*accountmodels.Account, error) {
	return s.accounts.Execute(ctx, accountID, func(ctx context.Context, a *accountmodels.Account) error {
		return s.Consume(ctx, a, reference)
	})
}

// RefundCredit returns one credit for a listing. Credits forfeited by expiry
// are not restored; refunded reports whether a credit was returned.
func (s *Service) RefundCredit(ctx context.Context, accountID id.AccountID, listingID id.ListingID) (bool, error) {
	now := requestcontext.Now(ctx)
	refunded := false
	_, err := s.accounts.Execute(ctx, accountID, func(ctx context.Context, a *accountmodels.Account) error {
		if !a.ApplyRefundCredit(now) {
			return nil
		}
		refunded = true
		if err := s.appendEntry(ctx, a, models.EntryRefund, 1, listingID.String(), now); err != nil {
			return err
		}
		return s.emit(ctx, audit.Event{
			AccountID: accountID,
			ListingID: listingID.String(),
			Action:    string(audit.EventCreditRefunded),
			Field:     "ad_credits",
			NewValue:  strconv.Itoa(a.Credits()),
			Reason:    "moderation rejection on creation",
			Timestamp: now,
		})
	})
	if err != nil {
		return false, err
	}
	return refunded, nil
}

// OnPaymentConfirmed handles a settled payment from the webhook or the
// payment topic. Redelivery of the same reference is a no-op. When
// activation fails the claim is released so the boundary can retry.
func (s *Service) OnPaymentConfirmed(ctx context.Context, evt models.PaymentConfirmation) (err error) {
	ctx, span := s.tracer.Start(ctx, "subscription.OnPaymentConfirmed",
		trace.WithAttributes(
			attribute.String("account.id", evt.AccountID.String()),
			attribute.String("plan.id", evt.PlanID),
			attribute.String("payment.reference", evt.PaymentReference.String()),
		))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, dErrors.MessageOf(err))
		}
		span.End()
	}()

	if evt.AccountID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "account id is required")
	}
	if _, err := id.ParsePaymentReference(evt.PaymentReference.String()); err != nil {
		return err
	}
	if _, err := s.catalog.Lookup(evt.PlanID); err != nil {
		return err
	}

	claimed, err := s.payments.Begin(ctx, evt.PaymentReference)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeExternalService, "payment idempotency store unavailable")
	}
	if !claimed {
		span.SetAttributes(attribute.Bool("payment.duplicate", true))
		s.metrics.IncDuplicatePayments()
		s.logger.InfoContext(ctx, "duplicate payment confirmation ignored",
			"payment_reference", evt.PaymentReference,
			"account_id", evt.AccountID,
		)
		return nil
	}

	if _, err := s.ActivatePlan(ctx, evt.AccountID, evt.PlanID, evt.IsYearly, evt.PaymentReference); err != nil {
		if relErr := s.payments.Release(ctx, evt.PaymentReference); relErr != nil {
			s.logger.ErrorContext(ctx, "failed to release payment claim",
				"payment_reference", evt.PaymentReference,
				"error", relErr,
			)
		}
		return err
	}
	if err := s.payments.Complete(ctx, evt.PaymentReference); err != nil {
		// The ledger still rejects a replay of this reference.
		s.logger.WarnContext(ctx, "failed to mark payment processed",
			"payment_reference", evt.PaymentReference,
			"error", err,
		)
	}
	return nil
}

// Ledger returns the account's credit history, oldest first.
func (s *Service) Ledger(ctx context.Context, accountID id.AccountID) ([]models.LedgerEntry, error) {
	entries, err := s.ledger.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read credit ledger")
	}
	return entries, nil
}

func (s *Service) appendEntry(ctx context.Context, a *accountmodels.Account, kind models.EntryKind, delta int, reference string, now time.Time) error {
	err := s.ledger.Append(ctx, models.LedgerEntry{
		ID:           id.NewLedgerEntryID(),
		AccountID:    a.ID,
		Kind:         kind,
		Delta:        delta,
		BalanceAfter: a.Credits(),
		Reference:    reference,
		CreatedAt:    now,
	})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record credit movement")
	}
	return nil
}

func (s *Service) sweep(ctx context.Context, accountID id.AccountID) {
	if s.sweeper == nil {
		return
	}
	if err := s.sweeper.SweepDealer(ctx, accountID); err != nil {
		s.logger.WarnContext(ctx, "listing visibility sweep failed",
			"account_id", accountID,
			"error", err,
		)
	}
}

func (s *Service) emit(ctx context.Context, event audit.Event) error {
	if s.auditPublisher == nil {
		return nil
	}
	return s.auditPublisher.Emit(ctx, event)
}

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", event, "log_type", "audit")
	s.logger.InfoContext(ctx, event, args...)
}
