package httptransport

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"dealerhub/internal/identity"
	subscriptionmodels "dealerhub/internal/subscription/models"
	verificationservice "dealerhub/internal/verification/service"
	id "dealerhub/pkg/domain"
	dErrors "dealerhub/pkg/domain-errors"
	"dealerhub/pkg/platform/httputil"
	"dealerhub/pkg/requestcontext"
)

// 10MB documents plus multipart framing.
const maxUploadBytes = 11 << 20

// handleSignIn runs the sign-in hook for the token's subject.
func (h *Handler) handleSignIn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims, ok := identity.ClaimsFrom(ctx)
	if !ok {
		h.fail(ctx, w, dErrors.New(dErrors.CodeInternal, "authentication context error"), "claims missing despite auth middleware")
		return
	}
	account, created, err := h.Gate.SignIn(ctx, requestcontext.AccountID(ctx), claims.Email, claims.EmailVerified)
	if err != nil {
		h.fail(ctx, w, err, "sign-in failed")
		return
	}
	resp := toAccountResponse(account)
	resp.Created = created
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	httputil.WriteJSON(w, status, resp)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	accountID := requestcontext.AccountID(ctx)
	if _, err := h.Subscriptions.CheckExpiry(ctx, accountID); err != nil {
		h.fail(ctx, w, err, "expiry check failed")
		return
	}
	account, err := h.Accounts.Get(ctx, accountID)
	if err != nil {
		h.fail(ctx, w, err, "failed to load account")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toAccountResponse(account))
}

func (h *Handler) handleMyLedger(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	entries, err := h.Subscriptions.Ledger(ctx, requestcontext.AccountID(ctx))
	if err != nil {
		h.fail(ctx, w, err, "failed to load ledger")
		return
	}
	if entries == nil {
		entries = []subscriptionmodels.LedgerEntry{}
	}
	httputil.WriteJSON(w, http.StatusOK, ledgerResponse{Entries: entries})
}

// handleUploadDocument accepts one multipart "file" for the document type in
// the path and returns its storage reference.
func (h *Handler) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	docType := chi.URLParam(r, "docType")

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.fail(ctx, w, dErrors.New(dErrors.CodeValidation, "document exceeds 10MB"), "upload too large")
			return
		}
		h.fail(ctx, w, dErrors.Wrap(err, dErrors.CodeValidation, "multipart field \"file\" is required"), "invalid upload")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.fail(ctx, w, dErrors.Wrap(err, dErrors.CodeValidation, "failed to read document"), "invalid upload")
		return
	}
	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	ref, err := h.Verification.UploadDocument(ctx, requestcontext.AccountID(ctx), docType, contentType, data)
	if err != nil {
		h.fail(ctx, w, err, "document upload failed")
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, documentUploadResponse{DocType: docType, Ref: ref})
}

func (h *Handler) handleSubmitDocuments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var refs verificationservice.DocumentRefs
	if err := httputil.DecodeJSON(r, &refs); err != nil {
		h.fail(ctx, w, err, "invalid submit documents request")
		return
	}
	account, err := h.Verification.SubmitDocuments(ctx, requestcontext.AccountID(ctx), refs)
	if err != nil {
		h.fail(ctx, w, err, "document submission failed")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toAccountResponse(account))
}

func (h *Handler) handlePlans(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, plansResponse{Plans: h.Subscriptions.Plans()})
}

// fail logs err at a level matching its code and renders it.
func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, err error, msg string) {
	code, _ := dErrors.CodeOf(err)
	attrs := []any{
		"request_id", requestcontext.RequestID(ctx),
		"error", err.Error(),
	}
	if accountID := requestcontext.AccountID(ctx); !accountID.IsNil() {
		attrs = append(attrs, "account_id", accountID.String())
	}
	switch code {
	case "", dErrors.CodeInternal, dErrors.CodeExternalService, dErrors.CodeTimeout:
		h.Logger.ErrorContext(ctx, msg, attrs...)
	default:
		h.Logger.WarnContext(ctx, msg, attrs...)
	}
	httputil.WriteError(w, err)
}

// actor returns the authenticated account id.
func actor(ctx context.Context) id.AccountID {
	return requestcontext.AccountID(ctx)
}
