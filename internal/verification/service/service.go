// Package service implements the document verification workflow.
package service

import (
	"context"
	"log/slog"
	"strings"

	"dealerhub/internal/account/models"
	"dealerhub/internal/platform/metrics"
	id "dealerhub/pkg/domain"
	dErrors "dealerhub/pkg/domain-errors"
	"dealerhub/pkg/platform/audit"
	"dealerhub/pkg/requestcontext"
)

// Document types accepted for upload.
const (
	DocAadhar      = "aadhar"
	DocPAN         = "pan"
	DocShopLicense = "shop_license"
)

const maxDocumentBytes = 10 << 20

// Accounts is the account record boundary.
type Accounts interface {
	Get(ctx context.Context, accountID id.AccountID) (*models.Account, error)
	Execute(ctx context.Context, accountID id.AccountID, fn func(ctx context.Context, account *models.Account) error) (*models.Account, error)
	RequireAdmin(ctx context.Context, actorID id.AccountID, action string, target id.AccountID) error
}

// AssetStore stores uploaded documents and returns an opaque reference.
type AssetStore interface {
	Store(ctx context.Context, accountID id.AccountID, docType string, contentType string, data []byte) (string, error)
	Delete(ctx context.Context, ref string) error
}

// ListingSweeper reconciles a dealer's listing visibility after a
// verification change. Only used when listings hide on unverify.
type ListingSweeper interface {
	SweepDealer(ctx context.Context, dealerID id.AccountID) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// DocumentRefs are the storage references for one submission.
type DocumentRefs struct {
	Aadhar      string `json:"aadhar"`
	PAN         string `json:"pan"`
	ShopLicense string `json:"shop_license"`
}

func (d DocumentRefs) validate() error {
	var missing []string
	if strings.TrimSpace(d.Aadhar) == "" {
		missing = append(missing, DocAadhar)
	}
	if strings.TrimSpace(d.PAN) == "" {
		missing = append(missing, DocPAN)
	}
	if strings.TrimSpace(d.ShopLicense) == "" {
		missing = append(missing, DocShopLicense)
	}
	if len(missing) > 0 {
		return dErrors.New(dErrors.CodeValidation, "missing documents: "+strings.Join(missing, ", "))
	}
	return nil
}

type Service struct {
	accounts       Accounts
	assets         AssetStore
	sweeper        ListingSweeper
	hideOnUnverify bool
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

// WithHideListingsOnUnverify makes verification changes reconcile the
// dealer's listings through sweeper.
func WithHideListingsOnUnverify(sweeper ListingSweeper) Option {
	return func(s *Service) {
		s.sweeper = sweeper
		s.hideOnUnverify = sweeper != nil
	}
}

func New(accounts Accounts, assets AssetStore, opts ...Option) *Service {
	s := &Service{accounts: accounts, assets: assets, logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// UploadDocument stores one document file and returns its reference for a
// later SubmitDocuments call.
func (s *Service) UploadDocument(ctx context.Context, accountID id.AccountID, docType, contentType string, data []byte) (string, error) {
	switch docType {
	case DocAadhar, DocPAN, DocShopLicense:
	default:
		return "", dErrors.New(dErrors.CodeValidation, "unknown document type")
	}
	if len(data) == 0 {
		return "", dErrors.New(dErrors.CodeValidation, "document is empty")
	}
	if len(data) > maxDocumentBytes {
		return "", dErrors.New(dErrors.CodeValidation, "document exceeds 10MB")
	}
	ref, err := s.assets.Store(ctx, accountID, docType, contentType, data)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeExternalService, "document storage unavailable")
	}
	return ref, nil
}

// SubmitDocuments records a complete document set and moves the account to
// pending. Resubmitting while pending replaces the references; the replaced
// objects are deleted best-effort after commit.
//
// Errors: CodeValidation when any reference is missing, CodeInvalidState when
// the account is already verified.
func (s *Service) SubmitDocuments(ctx context.Context, accountID id.AccountID, refs DocumentRefs) (*models.Account, error) {
	if err := refs.validate(); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	var replaced *models.Documents
	var from models.VerificationStatus
	account, err := s.accounts.Execute(ctx, accountID, func(_ context.Context, a *models.Account) error {
		if err := a.CanSubmitDocuments(); err != nil {
			return err
		}
		from = a.VerificationStatus
		replaced = a.ApplyDocuments(models.Documents{
			Aadhar:      refs.Aadhar,
			PAN:         refs.PAN,
			ShopLicense: refs.ShopLicense,
		}, now)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.deleteSuperseded(ctx, replaced, account.Documents)
	if from != models.VerificationPending {
		s.metrics.IncVerification(string(models.VerificationPending), "submission")
	}
	s.logAudit(ctx, string(audit.EventDocumentsSubmitted),
		"account_id", accountID,
		"from", from,
	)
	return account, nil
}

func (s *Service) deleteSuperseded(ctx context.Context, replaced, current *models.Documents) {
	if replaced == nil {
		return
	}
	keep := map[string]bool{}
	for _, r := range current.Refs() {
		keep[r] = true
	}
	for _, ref := range replaced.Refs() {
		if keep[ref] {
			continue
		}
		if err := s.assets.Delete(ctx, ref); err != nil {
			s.logger.WarnContext(ctx, "failed to delete superseded document",
				"ref", ref,
				"error", err,
			)
		}
	}
}

// ReviewDocuments approves or rejects a pending submission. actorID must be
// an admin. The decision and its audit record commit together.
func (s *Service) ReviewDocuments(ctx context.Context, actorID, accountID id.AccountID, approve bool, reason string) (*models.Account, error) {
	if err := s.accounts.RequireAdmin(ctx, actorID, "review_documents", accountID); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	action := audit.EventDocumentsRejected
	if approve {
		action = audit.EventDocumentsApproved
	}
	account, err := s.accounts.Execute(ctx, accountID, func(ctx context.Context, a *models.Account) error {
		if err := a.CanReview(); err != nil {
			return err
		}
		old := a.VerificationStatus
		a.ApplyReview(approve, now)
		return s.emit(ctx, audit.Event{
			AccountID: accountID,
			ActorID:   actorID,
			Action:    string(action),
			Field:     "verification_status",
			OldValue:  string(old),
			NewValue:  string(a.VerificationStatus),
			Reason:    reason,
			Timestamp: now,
		})
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncVerification(string(account.VerificationStatus), "review")
	s.logAudit(ctx, string(action),
		"account_id", accountID,
		"actor_id", actorID,
	)
	s.AfterVerificationChange(ctx, accountID)
	return account, nil
}

// AfterVerificationChange reconciles listing visibility when listings hide
// on unverify. Best-effort; each listing also reconciles lazily on read.
func (s *Service) AfterVerificationChange(ctx context.Context, accountID id.AccountID) {
	if !s.hideOnUnverify {
		return
	}
	if err := s.sweeper.SweepDealer(ctx, accountID); err != nil {
		s.logger.WarnContext(ctx, "listing sweep after verification change failed",
			"account_id", accountID,
			"error", err,
		)
	}
}

// RecordPhoneVerified marks the phone verified. Informational only.
func (s *Service) RecordPhoneVerified(ctx context.Context, accountID id.AccountID) error {
	now := requestcontext.Now(ctx)
	_, err := s.accounts.Execute(ctx, accountID, func(_ context.Context, a *models.Account) error {
		a.ApplyPhoneVerified(now)
		return nil
	})
	return err
}

func (s *Service) IsPhoneVerified(ctx context.Context, accountID id.AccountID) (bool, error) {
	a, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		return false, err
	}
	return a.PhoneVerified, nil
}

// RecordEmailVerified mirrors the identity provider's verified-email claim.
// It skips the write when nothing would change.
func (s *Service) RecordEmailVerified(ctx context.Context, accountID id.AccountID, email string) error {
	a, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		return err
	}
	if a.EmailVerified && (email == "" || a.Email == email) {
		return nil
	}
	now := requestcontext.Now(ctx)
	_, err = s.accounts.Execute(ctx, accountID, func(_ context.Context, a *models.Account) error {
		a.ApplyEmailVerified(email, now)
		return nil
	})
	return err
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
