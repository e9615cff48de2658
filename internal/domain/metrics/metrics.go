package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Provisioning and verification outcome label values.
const (
	OutcomeProvisioned    = "provisioned"
	OutcomeIdentityFailed = "identity_failed"
	OutcomeSkipped        = "skipped"

	OutcomeVerified    = "verified"
	OutcomeTimedOut    = "timed_out"
	OutcomeUnconfirmed = "unconfirmed"
	OutcomeError       = "error"
)

// Metrics provides observability for the domain lifecycle: API-level
// creations plus the two background jobs. All methods are nil-safe so
// tests and wiring that do not care about metrics can pass nil.
type Metrics struct {
	DomainsCreated prometheus.Counter

	// Provisioning run outcomes and latency
	ProvisionOutcome  *prometheus.CounterVec
	ProvisionDuration prometheus.Histogram

	// Per-domain verification check outcomes and full cycle latency
	VerificationOutcome *prometheus.CounterVec
	VerificationCycle   prometheus.Histogram

	// DNS records published to the managed zone during provisioning
	DNSRecordsPublished prometheus.Counter
}

// New creates a Metrics instance with all domain lifecycle metrics
// registered on the default registry.
func New() *Metrics {
	return &Metrics{
		DomainsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mailstead_domains_created_total",
			Help: "Total number of sending domains registered",
		}),
		ProvisionOutcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "mailstead_provisioning_runs_total",
			Help: "Total provisioning runs by outcome",
		}, []string{"outcome"}), // outcome: "provisioned", "identity_failed", "skipped"
		ProvisionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "mailstead_provisioning_duration_seconds",
			Help:    "Duration of a single provisioning run including provider and DNS calls",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		VerificationOutcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "mailstead_verification_checks_total",
			Help: "Total per-domain verification checks by outcome",
		}, []string{"outcome"}), // outcome: "verified", "timed_out", "unconfirmed", "error"
		VerificationCycle: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "mailstead_verification_cycle_duration_seconds",
			Help:    "Duration of a full verification sweep across all verifying domains",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		DNSRecordsPublished: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mailstead_dns_records_published_total",
			Help: "Total DNS records created in the managed zone during provisioning",
		}),
	}
}

// IncrementDomainsCreated records a successful domain registration.
func (m *Metrics) IncrementDomainsCreated() {
	if m != nil {
		m.DomainsCreated.Inc()
	}
}

// IncrementProvisionOutcome records the outcome of one provisioning run.
func (m *Metrics) IncrementProvisionOutcome(outcome string) {
	if m != nil {
		m.ProvisionOutcome.WithLabelValues(outcome).Inc()
	}
}

// ObserveProvisionDuration records the duration of one provisioning run.
func (m *Metrics) ObserveProvisionDuration(d time.Duration) {
	if m != nil {
		m.ProvisionDuration.Observe(d.Seconds())
	}
}

// IncrementVerificationOutcome records a per-domain verification check.
func (m *Metrics) IncrementVerificationOutcome(outcome string) {
	if m != nil {
		m.VerificationOutcome.WithLabelValues(outcome).Inc()
	}
}

// ObserveVerificationCycle records the duration of a verification sweep.
func (m *Metrics) ObserveVerificationCycle(d time.Duration) {
	if m != nil {
		m.VerificationCycle.Observe(d.Seconds())
	}
}

// AddDNSRecordsPublished records DNS records created during provisioning.
func (m *Metrics) AddDNSRecordsPublished(n int) {
	if m != nil {
		m.DNSRecordsPublished.Add(float64(n))
	}
}
