package main

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	accountservice "dealerhub/internal/account/service"
	accountstore "dealerhub/internal/account/store"
	listingservice "dealerhub/internal/listing/service"
	listingstore "dealerhub/internal/listing/store"
	"dealerhub/internal/platform/config"
	"dealerhub/internal/platform/postgres"
	"dealerhub/internal/platform/redis"
	subscriptionservice "dealerhub/internal/subscription/service"
	subscriptionstore "dealerhub/internal/subscription/store"
	"dealerhub/pkg/platform/audit"
	auditmemory "dealerhub/pkg/platform/audit/store/memory"
	auditpostgres "dealerhub/pkg/platform/audit/store/postgres"
)

// stores holds the persistence adapters selected by configuration: Postgres
// when DATABASE_URL is set, Redis payment claims when REDIS_URL is set, and
// in-memory otherwise.
type stores struct {
	accounts accountservice.Store
	listings listingservice.Store
	ledger   subscriptionservice.Ledger
	payments subscriptionservice.ProcessedPayments
	audit    audit.Store

	pool  *pgxpool.Pool
	redis *redis.Client
}

func openStores(ctx context.Context, cfg *config.Server, log *slog.Logger) (*stores, error) {
	st := &stores{
		accounts: accountstore.NewInMemory(),
		listings: listingstore.NewInMemory(),
		ledger:   subscriptionstore.NewInMemoryLedger(),
		payments: subscriptionstore.NewInMemoryPayments(),
		audit:    auditmemory.NewInMemoryStore(),
	}

	if cfg.DatabaseURL != "" {
		if err := postgres.Migrate(cfg.DatabaseURL, "up"); err != nil {
			return nil, err
		}
		pool, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		st.pool = pool
		st.accounts = accountstore.NewPostgres(pool)
		st.listings = listingstore.NewPostgres(pool)
		st.ledger = subscriptionstore.NewPostgresLedger(pool)
		st.audit = auditpostgres.New(pool)
		log.Info("using postgres stores")
	} else {
		log.Warn("DATABASE_URL not set, using in-memory stores")
	}

	client, err := redis.New(ctx, cfg.RedisURL)
	if err != nil {
		st.Close()
		return nil, err
	}
	if client != nil {
		st.redis = client
		st.payments = subscriptionstore.NewRedisPayments(client.Client)
		log.Info("using redis payment idempotency")
	}
	return st, nil
}

// Health pings the external stores in use.
func (s *stores) Health(ctx context.Context) error {
	if s.pool != nil {
		if err := s.pool.Ping(ctx); err != nil {
			return err
		}
	}
	if s.redis != nil {
		return s.redis.Health(ctx)
	}
	return nil
}

func (s *stores) Close() {
	if s.redis != nil {
		_ = s.redis.Close()
	}
	if s.pool != nil {
		s.pool.Close()
	}
}
