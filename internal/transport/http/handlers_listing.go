package httptransport

import (
	"net/http"
	"strconv"

	listingmodels "dealerhub/internal/listing/models"
	listingstore "dealerhub/internal/listing/store"
	dErrors "dealerhub/pkg/domain-errors"
	"dealerhub/pkg/platform/httputil"
)

// handleCreateListing spends one credit and publishes a listing. A moderation
// outage still commits the listing; it is returned with 202 and re-checked
// later.
func (h *Handler) handleCreateListing(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req listingRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.fail(ctx, w, err, "invalid create listing request")
		return
	}
	listing, err := h.Listings.Create(ctx, actor(ctx), req.Content, req.Media)
	h.writeListingWrite(w, r, listing, err, http.StatusCreated, "create listing failed")
}

func (h *Handler) handleEditListing(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	listingID, err := listingIDParam(r)
	if err != nil {
		h.fail(ctx, w, err, "invalid listing id")
		return
	}
	var req listingRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.fail(ctx, w, err, "invalid edit listing request")
		return
	}
	listing, err := h.Listings.Edit(ctx, actor(ctx), listingID, req.Content, req.Media)
	h.writeListingWrite(w, r, listing, err, http.StatusOK, "edit listing failed")
}

func (h *Handler) handleMarkSold(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	listingID, err := listingIDParam(r)
	if err != nil {
		h.fail(ctx, w, err, "invalid listing id")
		return
	}
	listing, err := h.Listings.MarkSold(ctx, actor(ctx), listingID)
	h.writeListingWrite(w, r, listing, err, http.StatusOK, "mark sold failed")
}

func (h *Handler) handleRemoveListing(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	listingID, err := listingIDParam(r)
	if err != nil {
		h.fail(ctx, w, err, "invalid listing id")
		return
	}
	listing, err := h.Listings.Remove(ctx, actor(ctx), listingID)
	h.writeListingWrite(w, r, listing, err, http.StatusOK, "remove listing failed")
}

func (h *Handler) handleReorderMedia(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	listingID, err := listingIDParam(r)
	if err != nil {
		h.fail(ctx, w, err, "invalid listing id")
		return
	}
	var req reorderRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.fail(ctx, w, err, "invalid reorder request")
		return
	}
	listing, err := h.Listings.ReorderMedia(ctx, actor(ctx), listingID, req.Order)
	h.writeListingWrite(w, r, listing, err, http.StatusOK, "reorder media failed")
}

// handleGetListing serves a listing to anyone while it is listed; the owner
// sees it in every state through /me/listings.
func (h *Handler) handleGetListing(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	listingID, err := listingIDParam(r)
	if err != nil {
		h.fail(ctx, w, err, "invalid listing id")
		return
	}
	listing, err := h.Listings.Get(ctx, listingID)
	if err != nil {
		h.fail(ctx, w, err, "get listing failed")
		return
	}
	if !listing.IsListed() {
		h.fail(ctx, w, dErrors.New(dErrors.CodeNotFound, "listing not found"), "listing not listed")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toListingResponse(listing, false))
}

func (h *Handler) handleMyListings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	listings, err := h.Listings.ListByDealer(ctx, actor(ctx))
	if err != nil {
		h.fail(ctx, w, err, "list dealer listings failed")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toListingsResponse(listings, true))
}

// handleMarketplace lists active public listings, optionally filtered by
// make and city.
func (h *Handler) handleMarketplace(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	filter := listingstore.MarketplaceFilter{
		Make: q.Get("make"),
		City: q.Get("city"),
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			h.fail(ctx, w, dErrors.New(dErrors.CodeValidation, "limit must be a positive integer"), "invalid marketplace query")
			return
		}
		filter.Limit = limit
	}
	listings, err := h.Listings.ListMarketplace(ctx, filter)
	if err != nil {
		h.fail(ctx, w, err, "marketplace query failed")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toListingsResponse(listings, false))
}

func (h *Handler) writeListingWrite(w http.ResponseWriter, r *http.Request, listing *listingmodels.Listing, err error, okStatus int, msg string) {
	ctx := r.Context()
	if err != nil {
		if listing != nil && dErrors.HasCode(err, dErrors.CodeExternalService) {
			h.Logger.WarnContext(ctx, "listing saved, moderation deferred",
				"listing_id", listing.ID.String(),
				"error", err.Error(),
			)
			httputil.WriteJSON(w, http.StatusAccepted, toListingResponse(listing, true))
			return
		}
		h.fail(ctx, w, err, msg)
		return
	}
	httputil.WriteJSON(w, okStatus, toListingResponse(listing, true))
}
