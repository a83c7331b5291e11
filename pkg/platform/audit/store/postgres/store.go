package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	id "dealerhub/pkg/domain"
	audit "dealerhub/pkg/platform/audit"
	txcontext "dealerhub/pkg/platform/tx"
)

// Store implements audit.Store on the audit_events table. Writes join the
// caller's transaction when one is present in the context, so an admin
// override and its audit row commit or roll back together.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a PostgreSQL audit store.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Append inserts an audit event. Duplicate IDs are ignored.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	const query = `
		INSERT INTO audit_events (
			id, category, occurred_at, account_id, listing_id, action,
			field, old_value, new_value, actor_id, reason, request_id
		) VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, $9, NULLIF($10, ''), $11, $12)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := txcontext.Pick(ctx, s.pool).Exec(ctx, query,
		event.ID,
		string(event.Category()),
		event.Timestamp,
		event.AccountID.String(),
		event.ListingID,
		event.Action,
		event.Field,
		event.OldValue,
		event.NewValue,
		event.ActorID.String(),
		event.Reason,
		event.RequestID,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// ListByAccount returns events for an account, oldest first.
func (s *Store) ListByAccount(ctx context.Context, accountID id.AccountID) ([]audit.Event, error) {
	const query = `
		SELECT id, occurred_at, account_id, COALESCE(listing_id, ''), action,
		       field, old_value, new_value, COALESCE(actor_id, ''), reason, request_id
		FROM audit_events
		WHERE account_id = $1
		ORDER BY occurred_at ASC, id ASC
	`
	rows, err := txcontext.Pick(ctx, s.pool).Query(ctx, query, accountID.String())
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var (
			e         audit.Event
			accountID string
			actorID   string
		)
		if err := rows.Scan(&e.ID, &e.Timestamp, &accountID, &e.ListingID, &e.Action,
			&e.Field, &e.OldValue, &e.NewValue, &actorID, &e.Reason, &e.RequestID); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.AccountID = id.AccountID(accountID)
		e.ActorID = id.AccountID(actorID)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}
