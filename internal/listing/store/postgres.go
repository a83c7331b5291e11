package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"dealerhub/internal/listing/models"
	"dealerhub/internal/platform/postgres"
	id "dealerhub/pkg/domain"
	"dealerhub/pkg/platform/sentinel"
	txcontext "dealerhub/pkg/platform/tx"
)

const listingColumns = `id, dealer_id, title, description, make, model, year, mileage_km,
	price_minor, city, media, status, visibility, moderation_reason, moderation,
	version, created_at, updated_at, sold_at, removed_at`

// PostgresStore persists listings. Writes join a transaction carried in ctx,
// so a listing created inside an account transaction commits with it.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Create(ctx context.Context, l *models.Listing) error {
	media, moderation, err := marshalNested(l)
	if err != nil {
		return err
	}
	tag, err := txcontext.Pick(ctx, s.pool).Exec(ctx, `
		INSERT INTO listings (`+listingColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		ON CONFLICT (id) DO NOTHING`,
		uuid.UUID(l.ID), l.DealerID.String(), l.Content.Title, l.Content.Description,
		l.Content.Make, l.Content.Model, l.Content.Year, l.Content.MileageKm,
		l.Content.PriceMinor, l.Content.City, media, string(l.Status), string(l.Visibility),
		l.ModerationReason, moderation, l.Version, l.CreatedAt, l.UpdatedAt, l.SoldAt, l.RemovedAt,
	)
	if err != nil {
		return fmt.Errorf("insert listing: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("listing %s: %w", l.ID, sentinel.ErrConflict)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, listingID id.ListingID) (*models.Listing, error) {
	row := txcontext.Pick(ctx, s.pool).QueryRow(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE id = $1`, uuid.UUID(listingID))
	return scanListing(row)
}

func (s *PostgresStore) Execute(ctx context.Context, listingID id.ListingID, fn func(ctx context.Context, listing *models.Listing) error) (*models.Listing, error) {
	var result *models.Listing
	err := postgres.RunInTx(ctx, s.pool, func(ctx context.Context) error {
		q := txcontext.Pick(ctx, s.pool)
		l, err := scanListing(q.QueryRow(ctx,
			`SELECT `+listingColumns+` FROM listings WHERE id = $1 FOR UPDATE`, uuid.UUID(listingID)))
		if err != nil {
			return err
		}
		if err := fn(ctx, l); err != nil {
			return err
		}
		media, moderation, err := marshalNested(l)
		if err != nil {
			return err
		}
		l.Version++
		_, err = q.Exec(ctx, `
			UPDATE listings SET title = $2, description = $3, make = $4, model = $5, year = $6,
				mileage_km = $7, price_minor = $8, city = $9, media = $10, status = $11,
				visibility = $12, moderation_reason = $13, moderation = $14, version = $15,
				updated_at = $16, sold_at = $17, removed_at = $18
			WHERE id = $1`,
			uuid.UUID(l.ID), l.Content.Title, l.Content.Description, l.Content.Make,
			l.Content.Model, l.Content.Year, l.Content.MileageKm, l.Content.PriceMinor,
			l.Content.City, media, string(l.Status), string(l.Visibility), l.ModerationReason,
			moderation, l.Version, l.UpdatedAt, l.SoldAt, l.RemovedAt,
		)
		if err != nil {
			return fmt.Errorf("update listing: %w", err)
		}
		result = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *PostgresStore) ListByDealer(ctx context.Context, dealerID id.AccountID) ([]*models.Listing, error) {
	return s.query(ctx, `SELECT `+listingColumns+` FROM listings
		WHERE dealer_id = $1 ORDER BY created_at DESC, id`, dealerID.String())
}

func (s *PostgresStore) ListMarketplace(ctx context.Context, filter MarketplaceFilter) ([]*models.Listing, error) {
	return s.query(ctx, `SELECT `+listingColumns+` FROM listings
		WHERE status = 'active' AND visibility = 'public'
			AND ($1 = '' OR lower(make) = lower($1))
			AND ($2 = '' OR lower(city) = lower($2))
		ORDER BY created_at DESC, id
		LIMIT $3`, filter.Make, filter.City, filter.limit())
}

func (s *PostgresStore) ListForModerationRetry(ctx context.Context, staleBefore time.Time, limit int) ([]*models.Listing, error) {
	if limit <= 0 {
		limit = MaxPageSize
	}
	return s.query(ctx, `SELECT `+listingColumns+` FROM listings
		WHERE status = 'active'
			AND (moderation->>'state' = 'retry'
				OR (moderation->>'state' = 'pending' AND updated_at < $1))
		ORDER BY updated_at
		LIMIT $2`, staleBefore, limit)
}

func (s *PostgresStore) query(ctx context.Context, sql string, args ...any) ([]*models.Listing, error) {
	rows, err := txcontext.Pick(ctx, s.pool).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query listings: %w", err)
	}
	defer rows.Close()
	var out []*models.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate listings: %w", err)
	}
	return out, nil
}

func scanListing(row pgx.Row) (*models.Listing, error) {
	var (
		l                      models.Listing
		listingID              uuid.UUID
		dealerID               string
		status, visibility     string
		mediaRaw, moderationRw []byte
	)
	err := row.Scan(&listingID, &dealerID, &l.Content.Title, &l.Content.Description,
		&l.Content.Make, &l.Content.Model, &l.Content.Year, &l.Content.MileageKm,
		&l.Content.PriceMinor, &l.Content.City, &mediaRaw, &status, &visibility,
		&l.ModerationReason, &moderationRw, &l.Version, &l.CreatedAt, &l.UpdatedAt,
		&l.SoldAt, &l.RemovedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("listing: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("scan listing: %w", err)
	}
	l.ID = id.ListingID(listingID)
	l.DealerID = id.AccountID(dealerID)
	l.Status = models.Status(status)
	l.Visibility = models.Visibility(visibility)
	if len(mediaRaw) > 0 {
		if err := json.Unmarshal(mediaRaw, &l.Media); err != nil {
			return nil, fmt.Errorf("decode media: %w", err)
		}
	}
	if len(moderationRw) > 0 {
		if err := json.Unmarshal(moderationRw, &l.Moderation); err != nil {
			return nil, fmt.Errorf("decode moderation: %w", err)
		}
	}
	return &l, nil
}

func marshalNested(l *models.Listing) (media, moderation []byte, err error) {
	m := l.Media
	if m == nil {
		m = []string{}
	}
	if media, err = json.Marshal(m); err != nil {
		return nil, nil, fmt.Errorf("encode media: %w", err)
	}
	if moderation, err = json.Marshal(l.Moderation); err != nil {
		return nil, nil, fmt.Errorf("encode moderation: %w", err)
	}
	return media, moderation, nil
}
