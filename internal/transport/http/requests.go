package httptransport

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	listingmodels "dealerhub/internal/listing/models"
	subscriptionmodels "dealerhub/internal/subscription/models"
	id "dealerhub/pkg/domain"
	dErrors "dealerhub/pkg/domain-errors"
)

type listingRequest struct {
	listingmodels.Content
	// Media is nil on edit to keep the current gallery.
	Media []string `json:"media"`
}

type reorderRequest struct {
	Order []string `json:"order"`
}

type reviewRequest struct {
	Approve bool   `json:"approve"`
	Reason  string `json:"reason"`
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

type verificationStatusRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

type accountFieldsRequest struct {
	Name   *string `json:"name"`
	Phone  *string `json:"phone"`
	Reason string  `json:"reason"`
}

type listingModerationRequest struct {
	// Reason nil clears a flag; a string flags the listing.
	Reason *string `json:"reason"`
	Note   string  `json:"note"`
}

type moderationResultRequest struct {
	ListingID string `json:"listing_id"`
	RequestID string `json:"request_id"`
	Violation *bool  `json:"violation"`
	Reason    string `json:"reason"`
}

func (m moderationResultRequest) parse() (id.ListingID, id.ModerationRequestID, listingmodels.Verdict, error) {
	listingID, err := id.ParseListingID(m.ListingID)
	if err != nil {
		return id.ListingID{}, id.ModerationRequestID{}, listingmodels.Verdict{}, err
	}
	requestID, err := id.ParseModerationRequestID(m.RequestID)
	if err != nil {
		return id.ListingID{}, id.ModerationRequestID{}, listingmodels.Verdict{}, err
	}
	if m.Violation == nil {
		return id.ListingID{}, id.ModerationRequestID{}, listingmodels.Verdict{}, dErrors.New(dErrors.CodeValidation, "violation is required")
	}
	return listingID, requestID, listingmodels.Verdict{Violation: *m.Violation, Reason: strings.TrimSpace(m.Reason)}, nil
}

type paymentRequest struct {
	AccountID        string `json:"account_id"`
	PlanID           string `json:"plan_id"`
	IsYearly         bool   `json:"is_yearly"`
	PaymentReference string `json:"payment_reference"`
}

func (p paymentRequest) parse() (subscriptionmodels.PaymentConfirmation, error) {
	accountID, err := id.ParseAccountID(p.AccountID)
	if err != nil {
		return subscriptionmodels.PaymentConfirmation{}, err
	}
	ref, err := id.ParsePaymentReference(p.PaymentReference)
	if err != nil {
		return subscriptionmodels.PaymentConfirmation{}, err
	}
	return subscriptionmodels.PaymentConfirmation{
		AccountID:        accountID,
		PlanID:           p.PlanID,
		IsYearly:         p.IsYearly,
		PaymentReference: ref,
	}, nil
}

type phoneVerifiedRequest struct {
	AccountID string `json:"account_id"`
}

func listingIDParam(r *http.Request) (id.ListingID, error) {
	return id.ParseListingID(chi.URLParam(r, "listingID"))
}

func accountIDParam(r *http.Request) (id.AccountID, error) {
	return id.ParseAccountID(chi.URLParam(r, "accountID"))
}
