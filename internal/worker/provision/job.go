// Package provision turns a newly registered domain into a verifiable
// sending identity: it creates the provider identity, publishes the
// authentication records to the managed DNS zone, and opens the
// verification window.
package provision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"mailstead/internal/audit"
	"mailstead/internal/domain/metrics"
	"mailstead/internal/domain/models"
	id "mailstead/pkg/domain"
	"mailstead/pkg/platform/sentinel"
	"mailstead/pkg/requestcontext"
)

// Clock supplies the current time; tests substitute a fixed one.
type Clock func() time.Time

// Store is the slice of the domain store the job needs.
type Store interface {
	FindByID(ctx context.Context, domainID id.DomainID) (*models.Domain, error)
	Update(ctx context.Context, domain *models.Domain) error
}

// IdentityGateway registers sending identities with the email provider.
type IdentityGateway interface {
	CreateDomainIdentity(ctx context.Context, name string) (identityRef string, dkimTokens []string, err error)
}

// DNSGateway publishes records to the managed zone.
type DNSGateway interface {
	CreateDNSRecord(ctx context.Context, record models.DNSRecord, proxied bool) (recordID string, err error)
}

// AuditPublisher records lifecycle events.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Job provisions one domain per Run. It is safe to dispatch the same
// domain more than once: only a pending domain is acted on.
type Job struct {
	store          Store
	identity       IdentityGateway
	dns            DNSGateway
	providerSuffix string

	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	logger         *slog.Logger
	clock          Clock
}

// Option configures a Job.
type Option func(*Job)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(j *Job) {
		if logger != nil {
			j.logger = logger
		}
	}
}

// WithAuditPublisher enables audit event emission.
func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(j *Job) {
		j.auditPublisher = publisher
	}
}

// WithMetrics enables provisioning metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(j *Job) {
		j.metrics = m
	}
}

// WithClock sets the clock function for testability.
func WithClock(clock Clock) Option {
	return func(j *Job) {
		if clock != nil {
			j.clock = clock
		}
	}
}

// NewJob constructs a provisioning job. providerSuffix is the provider DNS
// suffix the published records point at (e.g. "amazonses.com").
func NewJob(store Store, identity IdentityGateway, dns DNSGateway, providerSuffix string, opts ...Option) *Job {
	j := &Job{
		store:          store,
		identity:       identity,
		dns:            dns,
		providerSuffix: providerSuffix,
		logger:         slog.Default(),
		clock:          time.Now,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Run provisions a single domain.
//
// The domain must exist and be pending; anything else is treated as a
// stale dispatch and skipped without touching the provider or the zone.
// A provider identity failure moves the domain to failed and consumes
// the error. Individual DNS record failures are logged and skipped: the
// verification job will keep reporting which records are missing, and
// operators can publish them by hand. The domain always reaches
// verifying once its provider identity exists.
func (j *Job) Run(ctx context.Context, domainID id.DomainID) error {
	start := j.clock()

	domain, err := j.store.FindByID(ctx, domainID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			// Deleted between dispatch and execution.
			j.logger.InfoContext(ctx, "provisioning skipped, domain no longer exists",
				"domain_id", domainID,
			)
			j.metrics.IncrementProvisionOutcome(metrics.OutcomeSkipped)
			return nil
		}
		return fmt.Errorf("load domain %s: %w", domainID, err)
	}

	if domain.Status != models.StatusPending {
		j.logger.InfoContext(ctx, "provisioning skipped, domain is not pending",
			"domain_id", domain.ID,
			"domain", domain.Name,
			"status", domain.Status,
		)
		j.metrics.IncrementProvisionOutcome(metrics.OutcomeSkipped)
		return nil
	}

	identityRef, dkimTokens, err := j.identity.CreateDomainIdentity(ctx, string(domain.Name))
	if err != nil {
		return j.failProvisioning(ctx, domain, fmt.Sprintf("provider identity creation failed: %v", err))
	}

	records := models.ExpectedRecordsFor(domain.Name, dkimTokens, j.providerSuffix)
	published := 0
	for _, record := range records {
		// Authentication records must stay DNS-only; proxying breaks
		// provider CNAME resolution.
		if _, err := j.dns.CreateDNSRecord(ctx, record, false); err != nil {
			j.logger.WarnContext(ctx, "failed to publish dns record",
				"domain", domain.Name,
				"record_type", record.Type,
				"record_name", record.Name,
				"error", err,
			)
			continue
		}
		published++
	}
	j.metrics.AddDNSRecordsPublished(published)

	now := j.clock()
	if err := domain.BeginVerification(identityRef, records, now); err != nil {
		return err
	}
	if err := j.store.Update(ctx, domain); err != nil {
		return fmt.Errorf("persist verifying domain %s: %w", domain.Name, err)
	}

	j.emitAudit(ctx, audit.EventDomainProvisioned, domain,
		fmt.Sprintf("published %d of %d dns records", published, len(records)))
	j.metrics.IncrementProvisionOutcome(metrics.OutcomeProvisioned)
	j.metrics.ObserveProvisionDuration(j.clock().Sub(start))

	j.logger.InfoContext(ctx, "domain provisioned",
		"domain_id", domain.ID,
		"domain", domain.Name,
		"identity_ref", identityRef,
		"records_published", published,
		"records_expected", len(records),
	)
	return nil
}

// failProvisioning records a terminal provisioning failure on the
// domain. The underlying cause is preserved in the failure reason, not
// returned: a failed domain is a handled outcome, not a job error.
func (j *Job) failProvisioning(ctx context.Context, domain *models.Domain, reason string) error {
	j.logger.ErrorContext(ctx, "provisioning failed",
		"domain_id", domain.ID,
		"domain", domain.Name,
		"reason", reason,
	)

	if err := domain.MarkFailed(reason, j.clock()); err != nil {
		return err
	}
	if err := j.store.Update(ctx, domain); err != nil {
		return fmt.Errorf("persist failed domain %s: %w", domain.Name, err)
	}

	j.emitAudit(ctx, audit.EventDomainProvisionFailed, domain, reason)
	j.metrics.IncrementProvisionOutcome(metrics.OutcomeIdentityFailed)
	return nil
}

func (j *Job) emitAudit(ctx context.Context, action audit.AuditEvent, domain *models.Domain, detail string) {
	if j.auditPublisher == nil {
		return
	}
	err := j.auditPublisher.Emit(ctx, audit.Event{
		Action:     string(action),
		DomainID:   domain.ID,
		DomainName: string(domain.Name),
		Detail:     detail,
		RequestID:  requestcontext.RequestID(ctx),
	})
	if err != nil {
		j.logger.WarnContext(ctx, "failed to emit audit event",
			"action", action,
			"domain", domain.Name,
			"error", err,
		)
	}
}
