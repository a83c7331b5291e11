// Package service is the account record boundary: the only path through
// which other modules read or mutate an Account.
package service

import (
	"context"
	"errors"
	"log/slog"

	"dealerhub/internal/account/models"
	"dealerhub/internal/platform/metrics"
	id "dealerhub/pkg/domain"
	dErrors "dealerhub/pkg/domain-errors"
	mail "dealerhub/pkg/email"
	"dealerhub/pkg/platform/audit"
	"dealerhub/pkg/platform/sentinel"
	"dealerhub/pkg/requestcontext"
)

// Store persists accounts. Execute must run fn atomically: either every
// change fn makes to the account (and to other stores through ctx) commits,
// or none does.
type Store interface {
	Create(ctx context.Context, account *models.Account) error
	FindByID(ctx context.Context, accountID id.AccountID) (*models.Account, error)
	Execute(ctx context.Context, accountID id.AccountID, fn func(ctx context.Context, account *models.Account) error) (*models.Account, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service owns account creation and the transactional mutation entry point.
type Service struct {
	store          Store
	logger         *slog.Logger
	auditPublisher AuditPublisher
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

func New(store Store, opts ...Option) *Service {
	s := &Service{store: store, logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EnsureAccount returns the account for an authenticated subject, creating a
// default unverified dealer on first sign-in. created reports whether this
// call created it.
func (s *Service) EnsureAccount(ctx context.Context, accountID id.AccountID, email string) (*models.Account, bool, error) {
	if existing, err := s.store.FindByID(ctx, accountID); err == nil {
		return existing, false, nil
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load account")
	}

	account, err := models.NewDealer(accountID, email, requestcontext.Now(ctx))
	if err != nil {
		return nil, false, err
	}
	account.Name = mail.DisplayName(email)
	return s.createIfAbsent(ctx, account)
}

// EnsureAdmin makes accountID an admin. A missing account is first created as
// a dealer; the promotion and its audit event then commit together, so a
// failed audit write leaves the account unpromoted and a re-run retries.
// promoted is false when the account was already an admin.
func (s *Service) EnsureAdmin(ctx context.Context, accountID id.AccountID) (promoted bool, err error) {
	now := requestcontext.Now(ctx)
	seed, err := models.NewDealer(accountID, "", now)
	if err != nil {
		return false, err
	}
	if _, _, err := s.createIfAbsent(ctx, seed); err != nil {
		return false, err
	}

	_, err = s.Execute(ctx, accountID, func(ctx context.Context, a *models.Account) error {
		if a.IsAdmin() {
			return nil
		}
		old := a.Role
		a.ApplyRole(models.RoleAdmin, now)
		promoted = true
		return s.emit(ctx, audit.Event{
			AccountID: accountID,
			Action:    string(audit.EventAdminBootstrapped),
			Field:     "role",
			OldValue:  string(old),
			NewValue:  string(models.RoleAdmin),
			Reason:    "startup bootstrap",
		})
	})
	if err != nil {
		return false, err
	}
	return promoted, nil
}

func (s *Service) createIfAbsent(ctx context.Context, account *models.Account) (*models.Account, bool, error) {
	err := s.store.Create(ctx, account)
	if err == nil {
		s.metrics.IncAccountsCreated()
		s.logAudit(ctx, string(audit.EventAccountCreated),
			"account_id", account.ID,
			"role", account.Role,
		)
		return account, true, nil
	}
	if !errors.Is(err, sentinel.ErrConflict) {
		return nil, false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create account")
	}
	// Lost a race with a concurrent first sign-in.
	existing, err := s.store.FindByID(ctx, account.ID)
	if err != nil {
		return nil, false, translate(err)
	}
	return existing, false, nil
}

// Get loads an account.
func (s *Service) Get(ctx context.Context, accountID id.AccountID) (*models.Account, error) {
	account, err := s.store.FindByID(ctx, accountID)
	if err != nil {
		return nil, translate(err)
	}
	return account, nil
}

// Execute runs fn as an atomic read-modify-write of one account. Coded errors
// from fn pass through unchanged.
func (s *Service) Execute(ctx context.Context, accountID id.AccountID, fn func(ctx context.Context, account *models.Account) error) (*models.Account, error) {
	account, err := s.store.Execute(ctx, accountID, fn)
	if err != nil {
		return nil, translate(err)
	}
	return account, nil
}

// RequireAdmin returns CodeForbidden unless actorID is an admin. Refusals are
// logged and audited best-effort as security events.
func (s *Service) RequireAdmin(ctx context.Context, actorID id.AccountID, action string, target id.AccountID) error {
	actor, err := s.store.FindByID(ctx, actorID)
	if err == nil && actor.IsAdmin() {
		return nil
	}
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return translate(err)
	}
	s.logger.WarnContext(ctx, "privileged action denied",
		"actor_id", actorID,
		"action", action,
		"target_id", target,
	)
	if s.auditPublisher != nil && !target.IsNil() {
		_ = s.auditPublisher.Emit(ctx, audit.Event{
			AccountID: target,
			ActorID:   actorID,
			Action:    string(audit.EventPrivilegedActionDeny),
			Reason:    action,
		})
	}
	return dErrors.New(dErrors.CodeForbidden, "admin privileges required")
}

func (s *Service) emit(ctx context.Context, event audit.Event) error {
	if s.auditPublisher == nil {
		return nil
	}
	if event.ActorID.IsNil() {
		event.ActorID = requestcontext.AccountID(ctx)
	}
	return s.auditPublisher.Emit(ctx, event)
}

func translate(err error) error {
	var de *dErrors.Error
	switch {
	case errors.As(err, &de):
		return err
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "account not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "account was modified concurrently")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "account store failure")
	}
}

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", event, "log_type", "audit")
	s.logger.InfoContext(ctx, event, args...)
}
