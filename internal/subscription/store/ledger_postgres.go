package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"dealerhub/internal/subscription/models"
	id "dealerhub/pkg/domain"
	txcontext "dealerhub/pkg/platform/tx"
)

// PostgresLedger stores entries in credit_ledger. Appends join the account
// transaction carried in ctx so a balance change and its entry commit together.
type PostgresLedger struct {
	pool *pgxpool.Pool
}

func NewPostgresLedger(pool *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{pool: pool}
}

func (s *PostgresLedger) Append(ctx context.Context, entry models.LedgerEntry) error {
	_, err := txcontext.Pick(ctx, s.pool).Exec(ctx, `
		INSERT INTO credit_ledger (id, account_id, kind, delta, balance_after, reference, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.UUID(entry.ID), entry.AccountID.String(), string(entry.Kind), entry.Delta,
		entry.BalanceAfter, entry.Reference, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return nil
}

func (s *PostgresLedger) ListByAccount(ctx context.Context, accountID id.AccountID) ([]models.LedgerEntry, error) {
	rows, err := txcontext.Pick(ctx, s.pool).Query(ctx, `
		SELECT id, kind, delta, balance_after, reference, created_at
		FROM credit_ledger
		WHERE account_id = $1
		ORDER BY created_at ASC, id ASC`, accountID.String())
	if err != nil {
		return nil, fmt.Errorf("list ledger: %w", err)
	}
	defer rows.Close()

	var out []models.LedgerEntry
	for rows.Next() {
		var (
			e       models.LedgerEntry
			entryID uuid.UUID
			kind    string
		)
		if err := rows.Scan(&entryID, &kind, &e.Delta, &e.BalanceAfter, &e.Reference, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		e.ID = id.LedgerEntryID(entryID)
		e.AccountID = accountID
		e.Kind = models.EntryKind(kind)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger: %w", err)
	}
	return out, nil
}

func (s *PostgresLedger) HasActivation(ctx context.Context, accountID id.AccountID, reference string) (bool, error) {
	var exists bool
	err := txcontext.Pick(ctx, s.pool).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM credit_ledger
			WHERE account_id = $1 AND reference = $2 AND kind IN ('plan_set', 'plan_topup')
		)`, accountID.String(), reference).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check ledger reference: %w", err)
	}
	return exists, nil
}
