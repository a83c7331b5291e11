package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	id "dealerhub/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies and routing per category.
type EventCategory string

const (
	// CategoryCompliance covers privileged or regulatory-significant changes:
	// verification decisions and every admin override. Fail-closed.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers refused privileged actions.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine lifecycle activity.
	CategoryOperations EventCategory = "operations"
)

// Event is one audit row. Field-level events carry the old and new value so a
// manual correction can be reconstructed without the surrounding record.
type Event struct {
	ID        uuid.UUID
	Timestamp time.Time
	AccountID id.AccountID
	ListingID string
	Action    string
	Field     string
	OldValue  string
	NewValue  string
	// ActorID is who performed the action; for admin overrides it differs
	// from AccountID.
	ActorID   id.AccountID
	Reason    string
	RequestID string
}

// Category derives the event category from its action.
func (e Event) Category() EventCategory {
	return AuditEvent(e.Action).Category()
}

type AuditEvent string

const (
	// Verification
	EventDocumentsSubmitted   AuditEvent = "documents_submitted"
	EventDocumentsApproved    AuditEvent = "documents_approved"
	EventDocumentsRejected    AuditEvent = "documents_rejected"
	EventVerificationOverride AuditEvent = "verification_overridden"
	EventVerificationRevoked  AuditEvent = "verification_revoked"

	// Account
	EventAccountCreated       AuditEvent = "account_created"
	EventAccountFieldEdited   AuditEvent = "account_field_edited"
	EventAdminBootstrapped    AuditEvent = "admin_bootstrapped"
	EventSupportViewAccessed  AuditEvent = "support_view_accessed"
	EventPrivilegedActionDeny AuditEvent = "privileged_action_denied"

	// Subscription
	EventPlanActivated       AuditEvent = "plan_activated"
	EventSubscriptionExpired AuditEvent = "subscription_expired"
	EventCreditRefunded      AuditEvent = "credit_refunded"

	// Listing
	EventListingModerationOverride AuditEvent = "listing_moderation_overridden"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventDocumentsApproved:         CategoryCompliance,
	EventDocumentsRejected:         CategoryCompliance,
	EventVerificationOverride:      CategoryCompliance,
	EventVerificationRevoked:       CategoryCompliance,
	EventAccountFieldEdited:        CategoryCompliance,
	EventAdminBootstrapped:         CategoryCompliance,
	EventListingModerationOverride: CategoryCompliance,
	EventCreditRefunded:            CategoryCompliance,

	EventPrivilegedActionDeny: CategorySecurity,
	EventSupportViewAccessed:  CategorySecurity,

	EventDocumentsSubmitted:  CategoryOperations,
	EventAccountCreated:      CategoryOperations,
	EventPlanActivated:       CategoryOperations,
	EventSubscriptionExpired: CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByAccount(ctx context.Context, accountID id.AccountID) ([]Event, error)
}
