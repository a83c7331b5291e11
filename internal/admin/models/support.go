// Package models holds the read models served to support staff.
package models

import (
	accountmodels "dealerhub/internal/account/models"
	subscriptionmodels "dealerhub/internal/subscription/models"
	"dealerhub/pkg/platform/audit"
)

// SupportView is the read-only picture of one dealer used by support:
// account state with subscription and credits, the credit ledger and the
// audit trail.
type SupportView struct {
	Account    *accountmodels.Account           `json:"account"`
	Ledger     []subscriptionmodels.LedgerEntry `json:"ledger"`
	AuditTrail []audit.Event                    `json:"audit_trail"`
}

// ContactFields are the admin-editable contact fields. Nil leaves a field
// unchanged.
type ContactFields struct {
	Name  *string `json:"name,omitempty"`
	Phone *string `json:"phone,omitempty"`
}
