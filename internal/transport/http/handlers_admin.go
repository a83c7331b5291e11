package httptransport

import (
	"context"
	"net/http"

	accountmodels "dealerhub/internal/account/models"
	adminmodels "dealerhub/internal/admin/models"
	id "dealerhub/pkg/domain"
	dErrors "dealerhub/pkg/domain-errors"
	"dealerhub/pkg/platform/httputil"
)

// Admin routes authenticate like any other account; the services check the
// admin role and audit both granted and refused actions.

// handleReview is the normal review path: pending accounts only.
func (h *Handler) handleReview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	accountID, err := accountIDParam(r)
	if err != nil {
		h.fail(ctx, w, err, "invalid account id")
		return
	}
	var req reviewRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.fail(ctx, w, err, "invalid review request")
		return
	}
	account, err := h.Verification.ReviewDocuments(ctx, actor(ctx), accountID, req.Approve, req.Reason)
	if err != nil {
		h.fail(ctx, w, err, "review failed")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toAccountResponse(account))
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	h.verificationOverride(w, r, h.Admin.Approve, "approve failed")
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	h.verificationOverride(w, r, h.Admin.Reject, "reject failed")
}

func (h *Handler) handleUnverify(w http.ResponseWriter, r *http.Request) {
	h.verificationOverride(w, r, h.Admin.Unverify, "unverify failed")
}

type overrideFunc func(ctx context.Context, actorID, accountID id.AccountID, reason string) (*accountmodels.Account, error)

func (h *Handler) verificationOverride(w http.ResponseWriter, r *http.Request, apply overrideFunc, msg string) {
	ctx := r.Context()
	accountID, err := accountIDParam(r)
	if err != nil {
		h.fail(ctx, w, err, "invalid account id")
		return
	}
	var req reasonRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.fail(ctx, w, err, "invalid override request")
		return
	}
	account, err := apply(ctx, actor(ctx), accountID, req.Reason)
	if err != nil {
		h.fail(ctx, w, err, msg)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toAccountResponse(account))
}

func (h *Handler) handleSetVerificationStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	accountID, err := accountIDParam(r)
	if err != nil {
		h.fail(ctx, w, err, "invalid account id")
		return
	}
	var req verificationStatusRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.fail(ctx, w, err, "invalid verification status request")
		return
	}
	status, ok := accountmodels.ParseVerificationStatus(req.Status)
	if !ok {
		h.fail(ctx, w, dErrors.New(dErrors.CodeValidation, "unknown verification status"), "invalid verification status request")
		return
	}
	account, err := h.Admin.SetVerificationStatus(ctx, actor(ctx), accountID, status, req.Reason)
	if err != nil {
		h.fail(ctx, w, err, "set verification status failed")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toAccountResponse(account))
}

func (h *Handler) handleEditAccountFields(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	accountID, err := accountIDParam(r)
	if err != nil {
		h.fail(ctx, w, err, "invalid account id")
		return
	}
	var req accountFieldsRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.fail(ctx, w, err, "invalid account fields request")
		return
	}
	fields := adminmodels.ContactFields{Name: req.Name, Phone: req.Phone}
	account, err := h.Admin.EditAccountFields(ctx, actor(ctx), accountID, fields, req.Reason)
	if err != nil {
		h.fail(ctx, w, err, "edit account fields failed")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toAccountResponse(account))
}

func (h *Handler) handleSupportView(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	accountID, err := accountIDParam(r)
	if err != nil {
		h.fail(ctx, w, err, "invalid account id")
		return
	}
	view, err := h.Admin.SupportView(ctx, actor(ctx), accountID)
	if err != nil {
		h.fail(ctx, w, err, "support view failed")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toSupportViewResponse(view))
}

func (h *Handler) handleSetListingModeration(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	listingID, err := listingIDParam(r)
	if err != nil {
		h.fail(ctx, w, err, "invalid listing id")
		return
	}
	var req listingModerationRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.fail(ctx, w, err, "invalid listing moderation request")
		return
	}
	listing, err := h.Admin.SetListingModeration(ctx, actor(ctx), listingID, req.Reason, req.Note)
	if err != nil {
		h.fail(ctx, w, err, "set listing moderation failed")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toListingResponse(listing, true))
}
