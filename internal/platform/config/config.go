// Package config loads and validates service configuration from the
// environment and an optional .env file using Viper.
package config

import (
	"errors"
	"time"

	"github.com/spf13/viper"

	strutil "dealerhub/pkg/platform/strings"
)

// Server captures process-level configuration.
type Server struct {
	// Addr is the HTTP listen address.
	Addr string `mapstructure:"APP_ADDR"`
	// Env is the deployment environment ("development", "production").
	Env string `mapstructure:"APP_ENV"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// DatabaseURL selects Postgres-backed stores when set; in-memory otherwise.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// RedisURL selects the Redis payment idempotency store when set.
	RedisURL string `mapstructure:"REDIS_URL"`

	// JWTSigningKey is the HS256 secret shared with the identity provider.
	JWTSigningKey string `mapstructure:"JWT_SIGNING_KEY"`
	// JWTIssuer is the expected iss claim; empty disables the check.
	JWTIssuer string `mapstructure:"JWT_ISSUER"`

	// AdminAccountIDs is a comma-separated list of identity subjects that are
	// bootstrapped as admins at startup.
	AdminAccountIDs string `mapstructure:"ADMIN_ACCOUNT_IDS"`

	// CORSAllowedOrigins is a comma-separated list of browser origins allowed
	// to call the API; empty disables CORS.
	CORSAllowedOrigins string `mapstructure:"CORS_ALLOWED_ORIGINS"`

	// PaymentWebhookSecret authenticates the payment confirmation webhook.
	PaymentWebhookSecret string `mapstructure:"PAYMENT_WEBHOOK_SECRET"`
	// ModerationWebhookSecret authenticates asynchronous moderation results
	// and provider callbacks. Falls back to PaymentWebhookSecret when empty.
	ModerationWebhookSecret string `mapstructure:"MODERATION_WEBHOOK_SECRET"`

	// KafkaBrokers enables the payment confirmation consumer when non-empty.
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// PaymentTopic carries payment confirmation events.
	PaymentTopic string `mapstructure:"PAYMENT_TOPIC"`
	// KafkaGroupID is the consumer group for payment confirmations.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`

	// ModerationURL is the moderation checker endpoint; empty uses the
	// permissive development checker.
	ModerationURL string `mapstructure:"MODERATION_URL"`
	// ModerationTimeout bounds one moderation call (e.g. "5s").
	ModerationTimeout string `mapstructure:"MODERATION_TIMEOUT"`
	// ModerationRetryInterval is how often listings left in retry are re-checked.
	ModerationRetryInterval string `mapstructure:"MODERATION_RETRY_INTERVAL"`

	// PlanCatalog optionally replaces the built-in plans with a JSON array of
	// {"id","name","credits","monthly_price_minor","yearly_price_minor"}.
	PlanCatalog string `mapstructure:"PLAN_CATALOG"`

	Policy Policy `mapstructure:",squash"`
}

// Policy holds the lifecycle decisions that are deliberately configurable.
type Policy struct {
	// RefundOnModerationRejection returns the spent credit when a listing is
	// flagged by moderation on its creation request.
	RefundOnModerationRejection bool `mapstructure:"REFUND_ON_MODERATION_REJECTION"`
	// HideListingsOnUnverify forces a dealer's listings private while the
	// dealer is not verified.
	HideListingsOnUnverify bool `mapstructure:"HIDE_LISTINGS_ON_UNVERIFY"`
}

// Load reads .env (if present), then the environment, applies defaults and
// validates. Env vars override .env.
func Load() (*Server, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // missing .env is fine

	v.AutomaticEnv()

	v.SetDefault("APP_ADDR", ":8080")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("JWT_SIGNING_KEY", "")
	v.SetDefault("JWT_ISSUER", "")
	v.SetDefault("ADMIN_ACCOUNT_IDS", "")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "")
	v.SetDefault("PAYMENT_WEBHOOK_SECRET", "")
	v.SetDefault("MODERATION_WEBHOOK_SECRET", "")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("PAYMENT_TOPIC", "dealerhub.payments.confirmed")
	v.SetDefault("KAFKA_GROUP_ID", "dealerhub-payments")
	v.SetDefault("MODERATION_URL", "")
	v.SetDefault("MODERATION_TIMEOUT", "5s")
	v.SetDefault("MODERATION_RETRY_INTERVAL", "1m")
	v.SetDefault("PLAN_CATALOG", "")
	v.SetDefault("REFUND_ON_MODERATION_REJECTION", false)
	v.SetDefault("HIDE_LISTINGS_ON_UNVERIFY", false)

	var cfg Server
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Server) validate() error {
	if c.Addr == "" {
		return errors.New("config: APP_ADDR must be set")
	}
	if c.JWTSigningKey == "" {
		if c.Env == "production" {
			return errors.New("config: JWT_SIGNING_KEY must be set when APP_ENV=production")
		}
		c.JWTSigningKey = "dev-secret-key-change-in-production"
	}
	if c.Env == "production" && c.PaymentWebhookSecret == "" {
		return errors.New("config: PAYMENT_WEBHOOK_SECRET must be set when APP_ENV=production")
	}
	if c.Env == "production" && c.ModerationURL == "" {
		return errors.New("config: MODERATION_URL must be set when APP_ENV=production")
	}
	return nil
}

// AdminIDs returns the bootstrap admin subjects.
func (c *Server) AdminIDs() []string {
	return strutil.SplitList(c.AdminAccountIDs)
}

// CallbackSecret is the shared secret for moderation and provider callbacks.
func (c *Server) CallbackSecret() string {
	if c.ModerationWebhookSecret != "" {
		return c.ModerationWebhookSecret
	}
	return c.PaymentWebhookSecret
}

// CORSOrigins returns the allowed browser origins.
func (c *Server) CORSOrigins() []string {
	return strutil.SplitList(c.CORSAllowedOrigins)
}

// KafkaBrokersList returns broker addresses; empty disables Kafka.
func (c *Server) KafkaBrokersList() []string {
	if c == nil {
		return nil
	}
	return strutil.SplitList(c.KafkaBrokers)
}

// ModerationTimeoutDuration parses ModerationTimeout; 5s if unset or invalid.
func (c *Server) ModerationTimeoutDuration() time.Duration {
	return parseDuration(c.ModerationTimeout, 5*time.Second)
}

// ModerationRetryEvery parses ModerationRetryInterval; 1m if unset or invalid.
func (c *Server) ModerationRetryEvery() time.Duration {
	return parseDuration(c.ModerationRetryInterval, time.Minute)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
