package models

import (
	"time"

	id "dealerhub/pkg/domain"
)

// EntryKind classifies a credit movement.
type EntryKind string

const (
	EntryPlanSet EntryKind = "plan_set"
	EntryPlanTop EntryKind = "plan_topup"
	EntryConsume EntryKind = "consume"
	EntryExpire  EntryKind = "expire"
	EntryRefund  EntryKind = "refund"
)

// LedgerEntry is an append-only record of one change to an account's credit
// balance. Reference is the payment reference for plan entries and the
// listing id for consume and refund entries.
type LedgerEntry struct {
	ID           id.LedgerEntryID `json:"id"`
	AccountID    id.AccountID     `json:"account_id"`
	Kind         EntryKind        `json:"kind"`
	Delta        int              `json:"delta"`
	BalanceAfter int              `json:"balance_after"`
	Reference    string           `json:"reference,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
}

// IsActivation reports whether the entry came from a plan purchase.
func (e LedgerEntry) IsActivation() bool {
	return e.Kind == EntryPlanSet || e.Kind == EntryPlanTop
}

// PaymentConfirmation is the event delivered by the payment boundary once a
// plan purchase has settled.
type PaymentConfirmation struct {
	AccountID        id.AccountID        `json:"account_id"`
	PlanID           string              `json:"plan_id"`
	IsYearly         bool                `json:"is_yearly"`
	PaymentReference id.PaymentReference `json:"payment_reference"`
}
