package httptransport

import (
	"time"

	accountmodels "dealerhub/internal/account/models"
	adminmodels "dealerhub/internal/admin/models"
	listingmodels "dealerhub/internal/listing/models"
	subscriptionmodels "dealerhub/internal/subscription/models"
	"dealerhub/pkg/platform/audit"
)

type subscriptionResponse struct {
	PlanID    string    `json:"plan_id"`
	PlanName  string    `json:"plan_name"`
	IsYearly  bool      `json:"is_yearly"`
	IsActive  bool      `json:"is_active"`
	ExpiresAt time.Time `json:"expires_at"`
	AdCredits int       `json:"ad_credits"`
}

type accountResponse struct {
	ID                 string                `json:"id"`
	Role               string                `json:"role"`
	Name               string                `json:"name"`
	Email              string                `json:"email"`
	Phone              string                `json:"phone"`
	VerificationStatus string                `json:"verification_status"`
	EmailVerified      bool                  `json:"email_verified"`
	PhoneVerified      bool                  `json:"phone_verified"`
	DocumentsSubmitted bool                  `json:"documents_submitted"`
	Subscription       *subscriptionResponse `json:"subscription,omitempty"`
	Created            bool                  `json:"created,omitempty"`
}

func toAccountResponse(a *accountmodels.Account) accountResponse {
	resp := accountResponse{
		ID:                 a.ID.String(),
		Role:               string(a.Role),
		Name:               a.Name,
		Email:              a.Email,
		Phone:              a.Phone,
		VerificationStatus: string(a.VerificationStatus),
		EmailVerified:      a.EmailVerified,
		PhoneVerified:      a.PhoneVerified,
		DocumentsSubmitted: a.Documents != nil,
	}
	if s := a.Subscription; s != nil {
		resp.Subscription = &subscriptionResponse{
			PlanID:    s.PlanID,
			PlanName:  s.PlanName,
			IsYearly:  s.IsYearly,
			IsActive:  s.IsActive,
			ExpiresAt: s.ExpiresAt,
			AdCredits: s.AdCredits,
		}
	}
	return resp
}

type listingResponse struct {
	ID         string                `json:"id"`
	DealerID   string                `json:"dealer_id"`
	Content    listingmodels.Content `json:"content"`
	Media      []string              `json:"media"`
	Status     string                `json:"status"`
	Visibility string                `json:"visibility"`
	CreatedAt  time.Time             `json:"created_at"`
	UpdatedAt  time.Time             `json:"updated_at"`
	SoldAt     *time.Time            `json:"sold_at,omitempty"`
	RemovedAt  *time.Time            `json:"removed_at,omitempty"`

	// Owner and admin view only.
	ModerationReason *string `json:"moderation_reason,omitempty"`
	ModerationState  string  `json:"moderation_state,omitempty"`
}

func toListingResponse(l *listingmodels.Listing, ownerView bool) listingResponse {
	resp := listingResponse{
		ID:         l.ID.String(),
		DealerID:   l.DealerID.String(),
		Content:    l.Content,
		Media:      l.Media,
		Status:     string(l.Status),
		Visibility: string(l.Visibility),
		CreatedAt:  l.CreatedAt,
		UpdatedAt:  l.UpdatedAt,
		SoldAt:     l.SoldAt,
		RemovedAt:  l.RemovedAt,
	}
	if resp.Media == nil {
		resp.Media = []string{}
	}
	if ownerView {
		resp.ModerationReason = l.ModerationReason
		resp.ModerationState = string(l.Moderation.State)
	}
	return resp
}

type listingsResponse struct {
	Listings []listingResponse `json:"listings"`
}

func toListingsResponse(ls []*listingmodels.Listing, ownerView bool) listingsResponse {
	out := listingsResponse{Listings: make([]listingResponse, 0, len(ls))}
	for _, l := range ls {
		out.Listings = append(out.Listings, toListingResponse(l, ownerView))
	}
	return out
}

type plansResponse struct {
	Plans []subscriptionmodels.Plan `json:"plans"`
}

type ledgerResponse struct {
	Entries []subscriptionmodels.LedgerEntry `json:"entries"`
}

type documentUploadResponse struct {
	DocType string `json:"doc_type"`
	Ref     string `json:"ref"`
}

type auditEventResponse struct {
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	ListingID string    `json:"listing_id,omitempty"`
	Field     string    `json:"field,omitempty"`
	OldValue  string    `json:"old_value,omitempty"`
	NewValue  string    `json:"new_value,omitempty"`
	ActorID   string    `json:"actor_id,omitempty"`
	Reason    string    `json:"reason,omitempty"`
}

type supportViewResponse struct {
	Account    accountResponse                  `json:"account"`
	Ledger     []subscriptionmodels.LedgerEntry `json:"ledger"`
	AuditTrail []auditEventResponse             `json:"audit_trail"`
}

func toSupportViewResponse(v *adminmodels.SupportView) supportViewResponse {
	resp := supportViewResponse{
		Account:    toAccountResponse(v.Account),
		Ledger:     v.Ledger,
		AuditTrail: make([]auditEventResponse, 0, len(v.AuditTrail)),
	}
	if resp.Ledger == nil {
		resp.Ledger = []subscriptionmodels.LedgerEntry{}
	}
	for _, e := range v.AuditTrail {
		resp.AuditTrail = append(resp.AuditTrail, toAuditEventResponse(e))
	}
	return resp
}

func toAuditEventResponse(e audit.Event) auditEventResponse {
	return auditEventResponse{
		Timestamp: e.Timestamp,
		Action:    e.Action,
		ListingID: e.ListingID,
		Field:     e.Field,
		OldValue:  e.OldValue,
		NewValue:  e.NewValue,
		ActorID:   e.ActorID.String(),
		Reason:    e.Reason,
	}
}
