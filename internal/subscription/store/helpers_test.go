package store

import (
	"time"

	"dealerhub/internal/subscription/models"
	id "dealerhub/pkg/domain"
)

func entry(accountID, kind, ref string) models.LedgerEntry {
	return models.LedgerEntry{
		ID:        id.NewLedgerEntryID(),
		AccountID: id.AccountID(accountID),
		Kind:      models.EntryKind(kind),
		Reference: ref,
		CreatedAt: time.Now(),
	}
}
