package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	accountservice "dealerhub/internal/account/service"
	adminservice "dealerhub/internal/admin/service"
	"dealerhub/internal/identity"
	"dealerhub/internal/listing/moderation"
	listingservice "dealerhub/internal/listing/service"
	"dealerhub/internal/platform/config"
	"dealerhub/internal/platform/httpserver"
	kafkaadmin "dealerhub/internal/platform/kafka/admin"
	"dealerhub/internal/platform/kafka/consumer"
	"dealerhub/internal/platform/logger"
	"dealerhub/internal/platform/metrics"
	subscriptionconsumer "dealerhub/internal/subscription/consumer"
	subscriptionmodels "dealerhub/internal/subscription/models"
	subscriptionservice "dealerhub/internal/subscription/service"
	httptransport "dealerhub/internal/transport/http"
	"dealerhub/internal/verification/assets"
	verificationservice "dealerhub/internal/verification/service"
	id "dealerhub/pkg/domain"
	"dealerhub/pkg/platform/audit/publishers/compliance"
	"dealerhub/pkg/platform/circuit"
)

// main wires stores, services and the HTTP router, then runs the server and
// the background workers until SIGINT or SIGTERM.
func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Server, log *slog.Logger) error {
	m := metrics.New()

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.Close()

	publisher := compliance.New(st.audit, compliance.WithLogger(log))

	accounts := accountservice.New(st.accounts,
		accountservice.WithLogger(log),
		accountservice.WithAuditPublisher(publisher),
		accountservice.WithMetrics(m),
	)

	catalog, err := subscriptionmodels.ParseCatalog(cfg.PlanCatalog)
	if err != nil {
		return err
	}
	// Listings depend on subscriptions for credits; subscriptions sweep
	// listings after expiry. The sweeper is bound once both exist.
	sweeper := &deferredSweeper{}
	subscriptions := subscriptionservice.New(accounts, st.ledger, st.payments,
		subscriptionservice.WithLogger(log),
		subscriptionservice.WithAuditPublisher(publisher),
		subscriptionservice.WithMetrics(m),
		subscriptionservice.WithCatalog(catalog),
		subscriptionservice.WithListingSweeper(sweeper),
	)

	listings := listingservice.New(st.listings, accounts, subscriptions, newChecker(cfg, log, m),
		listingservice.WithLogger(log),
		listingservice.WithAuditPublisher(publisher),
		listingservice.WithMetrics(m),
		listingservice.WithPolicy(listingservice.Policy{
			RefundOnModerationRejection: cfg.Policy.RefundOnModerationRejection,
			HideListingsOnUnverify:      cfg.Policy.HideListingsOnUnverify,
		}),
	)
	sweeper.target = listings

	verificationOpts := []verificationservice.Option{
		verificationservice.WithLogger(log),
		verificationservice.WithAuditPublisher(publisher),
		verificationservice.WithMetrics(m),
	}
	if cfg.Policy.HideListingsOnUnverify {
		verificationOpts = append(verificationOpts, verificationservice.WithHideListingsOnUnverify(listings))
	}
	verification := verificationservice.New(accounts, assets.NewInMemory(), verificationOpts...)

	admin := adminservice.New(accounts, verification, subscriptions, listings, publisher,
		adminservice.WithLogger(log),
		adminservice.WithMetrics(m),
	)
	if err := bootstrapAdmins(ctx, admin, cfg.AdminIDs(), log); err != nil {
		return err
	}

	router := httptransport.NewRouter(httptransport.Deps{
		Logger:         log,
		Metrics:        m,
		Gatherer:       prometheus.DefaultGatherer,
		Tokens:         identity.NewValidator(cfg.JWTSigningKey, cfg.JWTIssuer),
		Gate:           identity.NewGate(accounts, subscriptions, verification, log),
		Accounts:       accounts,
		Verification:   verification,
		Subscriptions:  subscriptions,
		Listings:       listings,
		Admin:          admin,
		PaymentSecret:  cfg.PaymentWebhookSecret,
		CallbackSecret: cfg.CallbackSecret(),
		AllowedOrigins: cfg.CORSOrigins(),
		Health:         st.Health,
	})
	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting dealerhub", "addr", cfg.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		retryModeration(gctx, listings, cfg.ModerationRetryEvery(), log)
		return nil
	})

	if brokers := cfg.KafkaBrokersList(); len(brokers) > 0 {
		if err := kafkaadmin.EnsureTopics(ctx, brokers, 3, 1, cfg.PaymentTopic); err != nil {
			return err
		}
		c, err := consumer.New(consumer.Config{
			Brokers: brokers,
			GroupID: cfg.KafkaGroupID,
			Topics:  []string{cfg.PaymentTopic},
		}, subscriptionconsumer.NewPaymentHandler(subscriptions, log), log)
		if err != nil {
			return err
		}
		g.Go(func() error {
			log.Info("consuming payment confirmations", "topic", cfg.PaymentTopic, "group", cfg.KafkaGroupID)
			return c.Run(gctx)
		})
	}

	return g.Wait()
}

// newChecker returns the HTTP moderation client behind a circuit breaker, or
// the keyword checker when no moderation service is configured.
func newChecker(cfg *config.Server, log *slog.Logger, m *metrics.Metrics) listingservice.ModerationChecker {
	if cfg.ModerationURL == "" {
		log.Warn("MODERATION_URL not set, using keyword moderation")
		return moderation.NewKeywordChecker()
	}
	breaker := circuit.New("moderation",
		circuit.WithFailureThreshold(5),
		circuit.WithCooldown(30*time.Second),
	)
	return moderation.NewHTTPChecker(cfg.ModerationURL, cfg.ModerationTimeoutDuration(),
		moderation.WithBreaker(breaker),
		moderation.WithLogger(log),
		moderation.WithMetrics(m),
	)
}

func bootstrapAdmins(ctx context.Context, admin *adminservice.Service, subjects []string, log *slog.Logger) error {
	ids := make([]id.AccountID, 0, len(subjects))
	for _, s := range subjects {
		accountID, err := id.ParseAccountID(s)
		if err != nil {
			return err
		}
		ids = append(ids, accountID)
	}
	promoted, err := admin.EnsureAdminAccounts(ctx, ids)
	if err != nil {
		return err
	}
	if promoted > 0 {
		log.Info("bootstrapped admin accounts", "count", promoted)
	}
	return nil
}

// retryModeration periodically re-checks listings whose moderation round was
// left pending by an outage.
func retryModeration(ctx context.Context, listings *listingservice.Service, every time.Duration, log *slog.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := listings.RetryPendingModeration(ctx)
			if err != nil {
				log.Warn("moderation retry failed", "error", err)
				continue
			}
			if n > 0 {
				log.Info("moderation retried", "listings", n)
			}
		}
	}
}

type deferredSweeper struct {
	target *listingservice.Service
}

func (d *deferredSweeper) SweepDealer(ctx context.Context, dealerID id.AccountID) error {
	if d.target == nil {
		return nil
	}
	return d.target.SweepDealer(ctx, dealerID)
}
