// Package service is the admin override surface. Every mutation requires an
// admin actor, bypasses the normal state-machine preconditions and commits
// together with its audit record.
package service

import (
	"context"
	"errors"
	"log/slog"

	accountmodels "dealerhub/internal/account/models"
	"dealerhub/internal/admin/models"
	listingmodels "dealerhub/internal/listing/models"
	"dealerhub/internal/platform/metrics"
	subscriptionmodels "dealerhub/internal/subscription/models"
	id "dealerhub/pkg/domain"
	dErrors "dealerhub/pkg/domain-errors"
	"dealerhub/pkg/platform/audit"
	"dealerhub/pkg/requestcontext"
)

type Accounts interface {
	Get(ctx context.Context, accountID id.AccountID) (*accountmodels.Account, error)
	Execute(ctx context.Context, accountID id.AccountID, fn func(ctx context.Context, account *accountmodels.Account) error) (*accountmodels.Account, error)
	RequireAdmin(ctx context.Context, actorID id.AccountID, action string, target id.AccountID) error
	EnsureAdmin(ctx context.Context, accountID id.AccountID) (bool, error)
}

// Verification runs follow-up work after a status change.
type Verification interface {
	AfterVerificationChange(ctx context.Context, accountID id.AccountID)
}

type Ledger interface {
	Ledger(ctx context.Context, accountID id.AccountID) ([]subscriptionmodels.LedgerEntry, error)
}

type Listings interface {
	Get(ctx context.Context, listingID id.ListingID) (*listingmodels.Listing, error)
	OverrideModeration(ctx context.Context, actorID id.AccountID, listingID id.ListingID, reason *string, note string) (*listingmodels.Listing, error)
}

// AuditPublisher writes audit events; List reads an account's trail.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
	List(ctx context.Context, accountID id.AccountID) ([]audit.Event, error)
}

var errUnchanged = errors.New("account unchanged")

type Service struct {
	accounts       Accounts
	verification   Verification
	ledger         Ledger
	listings       Listings
	auditPublisher AuditPublisher
	logger         *slog.Logger
	metrics        *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New wires the override surface. auditPublisher is required: overrides are
// refused when they cannot be audited.
func New(accounts Accounts, verification Verification, ledger Ledger, listings Listings, auditPublisher AuditPublisher, opts ...Option) *Service {
	s := &Service{
		accounts:       accounts,
		verification:   verification,
		ledger:         ledger,
		listings:       listings,
		auditPublisher: auditPublisher,
		logger:         slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Approve marks the account verified regardless of its current status.
func (s *Service) Approve(ctx context.Context, actorID, accountID id.AccountID, reason string) (*accountmodels.Account, error) {
	return s.setVerification(ctx, actorID, accountID, accountmodels.VerificationVerified, "approve", audit.EventVerificationOverride, reason)
}

// Reject marks the account rejected regardless of its current status.
func (s *Service) Reject(ctx context.Context, actorID, accountID id.AccountID, reason string) (*accountmodels.Account, error) {
	return s.setVerification(ctx, actorID, accountID, accountmodels.VerificationRejected, "reject", audit.EventVerificationOverride, reason)
}

// Unverify revokes verification. Existing listings keep their visibility
// unless listings hide on unverify.
func (s *Service) Unverify(ctx context.Context, actorID, accountID id.AccountID, reason string) (*accountmodels.Account, error) {
	return s.setVerification(ctx, actorID, accountID, accountmodels.VerificationUnverified, "unverify", audit.EventVerificationRevoked, reason)
}

// SetVerificationStatus sets any status directly, as a manual correction.
func (s *Service) SetVerificationStatus(ctx context.Context, actorID, accountID id.AccountID, status accountmodels.VerificationStatus, reason string) (*accountmodels.Account, error) {
	if !status.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "unknown verification status")
	}
	event := audit.EventVerificationOverride
	if status == accountmodels.VerificationUnverified {
		event = audit.EventVerificationRevoked
	}
	return s.setVerification(ctx, actorID, accountID, status, "set_verification_status", event, reason)
}

func (s *Service) setVerification(ctx context.Context, actorID, accountID id.AccountID, status accountmodels.VerificationStatus, action string, event audit.AuditEvent, reason string) (*accountmodels.Account, error) {
	if err := s.accounts.RequireAdmin(ctx, actorID, action, accountID); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	var old accountmodels.VerificationStatus
	account, err := s.accounts.Execute(ctx, accountID, func(ctx context.Context, a *accountmodels.Account) error {
		old = a.VerificationStatus
		if old == status {
			return errUnchanged
		}
		a.ApplyVerificationStatus(status, now)
		return s.emit(ctx, audit.Event{
			AccountID: accountID,
			ActorID:   actorID,
			Action:    string(event),
			Field:     "verification_status",
			OldValue:  string(old),
			NewValue:  string(status),
			Reason:    reason,
			Timestamp: now,
		})
	})
	if errors.Is(err, errUnchanged) {
		return s.accounts.Get(ctx, accountID)
	}
	if err != nil {
		return nil, err
	}
	s.metrics.IncAdminOverride(action)
	s.metrics.IncVerification(string(status), "admin")
	s.logAudit(ctx, string(event),
		"account_id", accountID,
		"actor_id", actorID,
		"old_status", old,
		"new_status", status,
	)
	s.verification.AfterVerificationChange(ctx, accountID)
	return account, nil
}

// EditAccountFields changes name and phone. Each changed field gets its own
// audit record.
func (s *Service) EditAccountFields(ctx context.Context, actorID, accountID id.AccountID, fields models.ContactFields, reason string) (*accountmodels.Account, error) {
	if err := s.accounts.RequireAdmin(ctx, actorID, "edit_account_fields", accountID); err != nil {
		return nil, err
	}
	if err := accountmodels.ValidateContactFields(fields.Name, fields.Phone); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	account, err := s.accounts.Execute(ctx, accountID, func(ctx context.Context, a *accountmodels.Account) error {
		oldName, oldPhone := a.Name, a.Phone
		a.ApplyContactFields(fields.Name, fields.Phone, now)
		changes := [][3]string{{"name", oldName, a.Name}, {"phone", oldPhone, a.Phone}}
		changed := false
		for _, c := range changes {
			if c[1] == c[2] {
				continue
			}
			changed = true
			if err := s.emit(ctx, audit.Event{
				AccountID: accountID,
				ActorID:   actorID,
				Action:    string(audit.EventAccountFieldEdited),
				Field:     c[0],
				OldValue:  c[1],
				NewValue:  c[2],
				Reason:    reason,
				Timestamp: now,
			}); err != nil {
				return err
			}
		}
		if !changed {
			return errUnchanged
		}
		return nil
	})
	if errors.Is(err, errUnchanged) {
		return s.accounts.Get(ctx, accountID)
	}
	if err != nil {
		return nil, err
	}
	s.metrics.IncAdminOverride("edit_account_fields")
	s.logAudit(ctx, string(audit.EventAccountFieldEdited),
		"account_id", accountID,
		"actor_id", actorID,
	)
	return account, nil
}

// SupportView returns the account with its ledger and audit trail. The access
// itself is audited before anything is returned.
func (s *Service) SupportView(ctx context.Context, actorID, accountID id.AccountID) (*models.SupportView, error) {
	if err := s.accounts.RequireAdmin(ctx, actorID, "support_view", accountID); err != nil {
		return nil, err
	}
	account, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}
	ledger, err := s.ledger.Ledger(ctx, accountID)
	if err != nil {
		return nil, err
	}
	trail, err := s.auditPublisher.List(ctx, accountID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read audit trail")
	}
	if err := s.emit(ctx, audit.Event{
		AccountID: accountID,
		ActorID:   actorID,
		Action:    string(audit.EventSupportViewAccessed),
		Timestamp: requestcontext.Now(ctx),
	}); err != nil {
		return nil, err
	}
	return &models.SupportView{Account: account, Ledger: ledger, AuditTrail: trail}, nil
}

// SetListingModeration sets (reason != nil) or clears a listing's moderation
// flag by hand.
func (s *Service) SetListingModeration(ctx context.Context, actorID id.AccountID, listingID id.ListingID, reason *string, note string) (*listingmodels.Listing, error) {
	if reason != nil && *reason == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "moderation reason cannot be empty")
	}
	listing, err := s.listings.Get(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if err := s.accounts.RequireAdmin(ctx, actorID, "set_listing_moderation", listing.DealerID); err != nil {
		return nil, err
	}
	listing, err = s.listings.OverrideModeration(ctx, actorID, listingID, reason, note)
	if err != nil {
		return nil, err
	}
	s.metrics.IncAdminOverride("set_listing_moderation")
	return listing, nil
}

// EnsureAdminAccounts makes every configured id an admin. It is idempotent and
// returns how many accounts were created or promoted.
func (s *Service) EnsureAdminAccounts(ctx context.Context, ids []id.AccountID) (int, error) {
	changed := 0
	for _, accountID := range ids {
		promoted, err := s.accounts.EnsureAdmin(ctx, accountID)
		if err != nil {
			return changed, err
		}
		if promoted {
			changed++
			s.logger.InfoContext(ctx, "admin account bootstrapped", "account_id", accountID)
		}
	}
	return changed, nil
}

func (s *Service) emit(ctx context.Context, event audit.Event) error {
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
