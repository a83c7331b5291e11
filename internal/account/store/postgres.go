package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"dealerhub/internal/account/models"
	"dealerhub/internal/platform/postgres"
	id "dealerhub/pkg/domain"
	"dealerhub/pkg/platform/sentinel"
	txcontext "dealerhub/pkg/platform/tx"
)

const accountColumns = `id, role, name, email, phone, verification_status, email_verified,
	phone_verified, documents, subscription, schema_version, version, created_at, updated_at`

// PostgresStore persists accounts. Execute locks the row with
// SELECT ... FOR UPDATE so the callback, and any store writes it makes with
// the same context, commit in one transaction.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Create(ctx context.Context, account *models.Account) error {
	docs, subs, err := marshalNested(account)
	if err != nil {
		return err
	}
	tag, err := txcontext.Pick(ctx, s.pool).Exec(ctx, `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO NOTHING`,
		account.ID.String(), string(account.Role), account.Name, account.Email, account.Phone,
		string(account.VerificationStatus), account.EmailVerified, account.PhoneVerified,
		docs, subs, account.SchemaVersion, account.Version, account.CreatedAt, account.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("account %s: %w", account.ID, sentinel.ErrConflict)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, accountID id.AccountID) (*models.Account, error) {
	row := txcontext.Pick(ctx, s.pool).QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, accountID.String())
	return scanAccount(row)
}

func (s *PostgresStore) Execute(ctx context.Context, accountID id.AccountID, fn func(ctx context.Context, account *models.Account) error) (*models.Account, error) {
	var result *models.Account
	err := postgres.RunInTx(ctx, s.pool, func(ctx context.Context) error {
		q := txcontext.Pick(ctx, s.pool)
		account, err := scanAccount(q.QueryRow(ctx,
			`SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, accountID.String()))
		if err != nil {
			return err
		}
		if err := fn(ctx, account); err != nil {
			return err
		}
		docs, subs, err := marshalNested(account)
		if err != nil {
			return err
		}
		account.Version++
		_, err = q.Exec(ctx, `
			UPDATE accounts SET role = $2, name = $3, email = $4, phone = $5,
				verification_status = $6, email_verified = $7, phone_verified = $8,
				documents = $9, subscription = $10, schema_version = $11,
				version = $12, updated_at = $13
			WHERE id = $1`,
			account.ID.String(), string(account.Role), account.Name, account.Email, account.Phone,
			string(account.VerificationStatus), account.EmailVerified, account.PhoneVerified,
			docs, subs, account.SchemaVersion, account.Version, account.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("update account: %w", err)
		}
		result = account
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func scanAccount(row pgx.Row) (*models.Account, error) {
	var (
		a                models.Account
		accountID        string
		role, status     string
		docsRaw, subsRaw []byte
	)
	err := row.Scan(&accountID, &role, &a.Name, &a.Email, &a.Phone, &status, &a.EmailVerified,
		&a.PhoneVerified, &docsRaw, &subsRaw, &a.SchemaVersion, &a.Version, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("account: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("scan account: %w", err)
	}
	a.ID = id.AccountID(accountID)
	a.Role = models.Role(role)
	a.VerificationStatus = models.VerificationStatus(status)
	if len(docsRaw) > 0 {
		if err := json.Unmarshal(docsRaw, &a.Documents); err != nil {
			return nil, fmt.Errorf("decode documents: %w", err)
		}
	}
	if len(subsRaw) > 0 {
		if err := json.Unmarshal(subsRaw, &a.Subscription); err != nil {
			return nil, fmt.Errorf("decode subscription: %w", err)
		}
	}
	a.Upgrade()
	return &a, nil
}

// marshalNested encodes the optional sub-records; nil stays SQL NULL.
func marshalNested(a *models.Account) (docs, subs []byte, err error) {
	if a.Documents != nil {
		if docs, err = json.Marshal(a.Documents); err != nil {
			return nil, nil, fmt.Errorf("encode documents: %w", err)
		}
	}
	if a.Subscription != nil {
		if subs, err = json.Marshal(a.Subscription); err != nil {
			return nil, nil, fmt.Errorf("encode subscription: %w", err)
		}
	}
	return docs, subs, nil
}
