package httptransport

import (
	"net/http"

	id "dealerhub/pkg/domain"
	"dealerhub/pkg/platform/httputil"
)

// handlePaymentConfirmed is the gateway webhook. Redelivery of a processed
// payment reference is acknowledged without effect.
func (h *Handler) handlePaymentConfirmed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req paymentRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.fail(ctx, w, err, "invalid payment confirmation")
		return
	}
	evt, err := req.parse()
	if err != nil {
		h.fail(ctx, w, err, "invalid payment confirmation")
		return
	}
	if err := h.Subscriptions.OnPaymentConfirmed(ctx, evt); err != nil {
		h.fail(ctx, w, err, "payment confirmation failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleModerationResult accepts an asynchronous verdict. Stale and duplicate
// deliveries succeed with the listing's current state.
func (h *Handler) handleModerationResult(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req moderationResultRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.fail(ctx, w, err, "invalid moderation result")
		return
	}
	listingID, requestID, verdict, err := req.parse()
	if err != nil {
		h.fail(ctx, w, err, "invalid moderation result")
		return
	}
	listing, err := h.Listings.ApplyModerationResult(ctx, listingID, requestID, verdict)
	if err != nil {
		h.fail(ctx, w, err, "apply moderation result failed")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toListingResponse(listing, true))
}

func (h *Handler) handlePhoneVerified(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req phoneVerifiedRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.fail(ctx, w, err, "invalid phone verification callback")
		return
	}
	accountID, err := id.ParseAccountID(req.AccountID)
	if err != nil {
		h.fail(ctx, w, err, "invalid phone verification callback")
		return
	}
	if err := h.Verification.RecordPhoneVerified(ctx, accountID); err != nil {
		h.fail(ctx, w, err, "record phone verification failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
