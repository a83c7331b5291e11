package identity

import (
	"context"
	"log/slog"

	"dealerhub/internal/account/models"
	id "dealerhub/pkg/domain"
)

type Accounts interface {
	EnsureAccount(ctx context.Context, accountID id.AccountID, email string) (*models.Account, bool, error)
	Get(ctx context.Context, accountID id.AccountID) (*models.Account, error)
}

type Subscriptions interface {
	CheckExpiry(ctx context.Context, accountID id.AccountID) (bool, error)
}

type Verification interface {
	RecordEmailVerified(ctx context.Context, accountID id.AccountID, email string) error
}

// Gate runs the sign-in hook.
type Gate struct {
	accounts      Accounts
	subscriptions Subscriptions
	verification  Verification
	logger        *slog.Logger
}

func NewGate(accounts Accounts, subscriptions Subscriptions, verification Verification, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		accounts:      accounts,
		subscriptions: subscriptions,
		verification:  verification,
		logger:        logger,
	}
}

// SignIn is the sign-in hook. It creates a default dealer account on first
// sign-in, applies the lazy subscription expiry check and mirrors the
// verified-email claim.
func (g *Gate) SignIn(ctx context.Context, accountID id.AccountID, email string, emailVerified bool) (*models.Account, bool, error) {
	_, created, err := g.accounts.EnsureAccount(ctx, accountID, email)
	if err != nil {
		return nil, false, err
	}
	if created {
		g.logger.InfoContext(ctx, "account created on first sign-in", "account_id", accountID)
	}
	if _, err := g.subscriptions.CheckExpiry(ctx, accountID); err != nil {
		return nil, false, err
	}
	if emailVerified {
		if err := g.verification.RecordEmailVerified(ctx, accountID, email); err != nil {
			return nil, false, err
		}
	}
	account, err := g.accounts.Get(ctx, accountID)
	if err != nil {
		return nil, false, err
	}
	return account, created, nil
}
