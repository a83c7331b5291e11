// Package compliance provides a fail-closed audit publisher.
//
// Emit is synchronous: the caller blocks until the store write succeeds. If the
// write fails an error is returned and the calling operation MUST fail. Admin
// overrides emit from inside their account transaction so a failed audit write
// rolls the mutation back.
package compliance

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	id "dealerhub/pkg/domain"
	audit "dealerhub/pkg/platform/audit"
	"dealerhub/pkg/requestcontext"
)

// Publisher emits audit events with fail-closed semantics.
type Publisher struct {
	store  audit.Store
	logger *slog.Logger
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithLogger sets a logger for error reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// New creates a compliance publisher.
func New(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit synchronously writes an audit event. Timestamp, ID and RequestID are
// filled from the context when unset.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.AccountID.IsNil() {
		return fmt.Errorf("audit event requires AccountID")
	}
	if event.Action == "" {
		return fmt.Errorf("audit event requires Action")
	}
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}

	if err := p.store.Append(ctx, event); err != nil {
		if p.logger != nil {
			p.logger.ErrorContext(ctx, "CRITICAL: compliance audit failed",
				"action", event.Action,
				"account_id", event.AccountID,
				"actor_id", event.ActorID,
				"error", err,
			)
		}
		return fmt.Errorf("audit persistence failed: %w", err)
	}
	return nil
}

// List returns the audit trail for one account.
func (p *Publisher) List(ctx context.Context, accountID id.AccountID) ([]audit.Event, error) {
	return p.store.ListByAccount(ctx, accountID)
}
