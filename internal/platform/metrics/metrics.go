package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the lifecycle metrics shared by the account, subscription and
// listing services. All helpers are nil-safe so services can run without it.
type Metrics struct {
	AccountsCreated      prometheus.Counter
	VerificationChanges  *prometheus.CounterVec
	PlanActivations      *prometheus.CounterVec
	SubscriptionsExpired prometheus.Counter
	CreditsConsumed      prometheus.Counter
	DuplicatePayments    prometheus.Counter
	ListingTransitions   *prometheus.CounterVec
	ModerationOutcomes   *prometheus.CounterVec
	ModerationLatency    prometheus.Histogram
	VisibilitySweeps     *prometheus.CounterVec
	AdminOverrides       *prometheus.CounterVec
	HTTPLatency          *prometheus.HistogramVec
}

// New creates and registers all metrics on the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers metrics on reg. Tests pass a fresh registry.
func NewWith(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		AccountsCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "dealerhub_accounts_created_total",
			Help: "Accounts created on first sign-in or admin bootstrap",
		}),
		VerificationChanges: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dealerhub_verification_transitions_total",
			Help: "Verification status transitions by target status and trigger",
		}, []string{"to", "trigger"}),
		PlanActivations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dealerhub_plan_activations_total",
			Help: "Plan activations by plan and kind (new, upgrade)",
		}, []string{"plan", "kind"}),
		SubscriptionsExpired: f.NewCounter(prometheus.CounterOpts{
			Name: "dealerhub_subscriptions_expired_total",
			Help: "Subscriptions transitioned to inactive by the lazy expiry check",
		}),
		CreditsConsumed: f.NewCounter(prometheus.CounterOpts{
			Name: "dealerhub_credits_consumed_total",
			Help: "Ad credits consumed by listing creation",
		}),
		DuplicatePayments: f.NewCounter(prometheus.CounterOpts{
			Name: "dealerhub_payment_duplicates_total",
			Help: "Payment confirmations ignored because the reference was already applied",
		}),
		ListingTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dealerhub_listing_transitions_total",
			Help: "Listing lifecycle transitions by operation",
		}, []string{"op"}),
		ModerationOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dealerhub_moderation_outcomes_total",
			Help: "Moderation results by outcome (passed, flagged, retry, stale)",
		}, []string{"outcome"}),
		ModerationLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "dealerhub_moderation_duration_seconds",
			Help:    "Latency of moderation checker calls",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		VisibilitySweeps: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dealerhub_visibility_sweeps_total",
			Help: "Listings whose visibility was changed by reconciliation, by target visibility",
		}, []string{"to"}),
		AdminOverrides: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dealerhub_admin_overrides_total",
			Help: "Privileged admin mutations by action",
		}, []string{"action"}),
		HTTPLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dealerhub_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern and status class",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "status"}),
	}
}

func (m *Metrics) IncAccountsCreated() {
	if m != nil {
		m.AccountsCreated.Inc()
	}
}

func (m *Metrics) IncVerification(to, trigger string) {
	if m != nil {
		m.VerificationChanges.WithLabelValues(to, trigger).Inc()
	}
}

func (m *Metrics) IncPlanActivation(plan, kind string) {
	if m != nil {
		m.PlanActivations.WithLabelValues(plan, kind).Inc()
	}
}

func (m *Metrics) IncSubscriptionsExpired() {
	if m != nil {
		m.SubscriptionsExpired.Inc()
	}
}

func (m *Metrics) IncCreditsConsumed() {
	if m != nil {
		m.CreditsConsumed.Inc()
	}
}

func (m *Metrics) IncDuplicatePayments() {
	if m != nil {
		m.DuplicatePayments.Inc()
	}
}

func (m *Metrics) IncListingTransition(op string) {
	if m != nil {
		m.ListingTransitions.WithLabelValues(op).Inc()
	}
}

func (m *Metrics) IncModerationOutcome(outcome string) {
	if m != nil {
		m.ModerationOutcomes.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) ObserveModerationLatency(d time.Duration) {
	if m != nil {
		m.ModerationLatency.Observe(d.Seconds())
	}
}

func (m *Metrics) IncVisibilitySweep(to string) {
	if m != nil {
		m.VisibilitySweeps.WithLabelValues(to).Inc()
	}
}

func (m *Metrics) IncAdminOverride(action string) {
	if m != nil {
		m.AdminOverrides.WithLabelValues(action).Inc()
	}
}

func (m *Metrics) ObserveHTTP(route, status string, d time.Duration) {
	if m != nil {
		m.HTTPLatency.WithLabelValues(route, status).Observe(d.Seconds())
	}
}
