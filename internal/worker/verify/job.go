// Package verify drives verifying domains to a terminal state: it asks
// the email provider whether DKIM is confirmed, fails domains whose
// verification window has expired, and reports which expected DNS
// records are still missing while a domain waits.
package verify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"mailstead/internal/audit"
	"mailstead/internal/dnscheck"
	"mailstead/internal/domain/metrics"
	"mailstead/internal/domain/models"
	id "mailstead/pkg/domain"
	"mailstead/pkg/platform/sentinel"
	"mailstead/pkg/requestcontext"
)

// DefaultTimeoutWindow is how long a domain may stay verifying before
// it is failed.
const DefaultTimeoutWindow = 72 * time.Hour

const timeoutReason = "verification timed out"

// Clock supplies the current time; tests substitute a fixed one.
type Clock func() time.Time

// Store is the slice of the domain store the job needs.
type Store interface {
	FindByID(ctx context.Context, domainID id.DomainID) (*models.Domain, error)
	ListPendingVerification(ctx context.Context) ([]*models.Domain, error)
	Update(ctx context.Context, domain *models.Domain) error
}

// IdentityGateway answers whether the provider has confirmed a domain.
type IdentityGateway interface {
	CheckDKIMVerification(ctx context.Context, name string) (bool, error)
}

// DNSChecker resolves a domain's expected records against live DNS.
type DNSChecker interface {
	VerifyAll(ctx context.Context, records []models.DNSRecord) dnscheck.Report
}

// AuditPublisher records lifecycle events.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Job evaluates verifying domains. Run sweeps everything in the
// verifying state; RunDomain checks one domain on demand. Both paths
// take the domain's lock first, so concurrent sweeps and manual
// triggers never double-process a domain.
type Job struct {
	store    Store
	identity IdentityGateway
	dns      DNSChecker
	locker   Locker
	window   time.Duration

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

// WithMetrics enables verification metrics.
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

// WithTimeoutWindow overrides the verification window.
func WithTimeoutWindow(window time.Duration) Option {
	return func(j *Job) {
		if window > 0 {
			j.window = window
		}
	}
}

// NewJob constructs a verification job.
func NewJob(store Store, identity IdentityGateway, dns DNSChecker, locker Locker, opts ...Option) *Job {
	j := &Job{
		store:    store,
		identity: identity,
		dns:      dns,
		locker:   locker,
		window:   DefaultTimeoutWindow,
		logger:   slog.Default(),
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Run sweeps every verifying domain once.
//
// Each domain is checked independently: one domain's failure, panic, or
// held lock never stops the rest of the sweep. Cancellation is honored
// between domains, so shutdown waits for at most one in-flight check.
func (j *Job) Run(ctx context.Context) error {
	start := j.clock()

	domains, err := j.store.ListPendingVerification(ctx)
	if err != nil {
		return fmt.Errorf("list verifying domains: %w", err)
	}
	if len(domains) == 0 {
		j.logger.DebugContext(ctx, "no domains awaiting verification")
		return nil
	}

	j.logger.InfoContext(ctx, "verification sweep started",
		"domains", len(domains),
	)

	checked := 0
	for _, domain := range domains {
		if err := ctx.Err(); err != nil {
			j.logger.InfoContext(ctx, "verification sweep interrupted",
				"checked", checked,
				"remaining", len(domains)-checked,
			)
			return err
		}

		if err := j.checkDomain(ctx, domain.ID); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				j.logger.DebugContext(ctx, "domain locked by another run",
					"domain", domain.Name,
				)
				continue
			}
			j.logger.ErrorContext(ctx, "verification check failed",
				"domain_id", domain.ID,
				"domain", domain.Name,
				"error", err,
			)
			j.metrics.IncrementVerificationOutcome(metrics.OutcomeError)
		}
		checked++
	}

	elapsed := j.clock().Sub(start)
	j.metrics.ObserveVerificationCycle(elapsed)
	j.logger.InfoContext(ctx, "verification sweep finished",
		"domains", len(domains),
		"checked", checked,
		"duration", elapsed,
	)
	return nil
}

// RunDomain checks a single domain on demand. It returns
// sentinel.ErrAlreadyUsed when another run holds the domain's lock.
func (j *Job) RunDomain(ctx context.Context, domainID id.DomainID) error {
	return j.checkDomain(ctx, domainID)
}

func (j *Job) checkDomain(ctx context.Context, domainID id.DomainID) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("verification panic for domain %s: %v", domainID, r)
		}
	}()

	release, acquired, err := j.locker.TryAcquire(ctx, domainID.String())
	if err != nil {
		return fmt.Errorf("acquire verification lock: %w", err)
	}
	if !acquired {
		return fmt.Errorf("domain %s: %w", domainID, sentinel.ErrAlreadyUsed)
	}
	defer release()

	// Re-load under the lock; the sweep's listing is a stale snapshot
	// by the time the lock is held.
	domain, err := j.store.FindByID(ctx, domainID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("load domain %s: %w", domainID, err)
	}
	if domain.Status != models.StatusVerifying {
		return nil
	}

	return j.evaluate(ctx, domain)
}

// evaluate decides the outcome for one verifying domain.
//
// Order matters: the timeout is checked before the provider so an
// expired window fails the domain even when the provider is down. The
// provider's answer alone moves a domain to verified; DNS lookups are
// diagnostics for operators and never transition anything.
func (j *Job) evaluate(ctx context.Context, domain *models.Domain) error {
	now := j.clock()

	if domain.IsTimedOut(j.window, now) {
		if err := domain.MarkFailed(timeoutReason, now); err != nil {
			return err
		}
		if err := j.store.Update(ctx, domain); err != nil {
			return fmt.Errorf("persist timed out domain %s: %w", domain.Name, err)
		}
		j.emitAudit(ctx, audit.EventDomainVerificationFailed, domain, timeoutReason)
		j.metrics.IncrementVerificationOutcome(metrics.OutcomeTimedOut)
		j.logger.InfoContext(ctx, "domain verification timed out",
			"domain_id", domain.ID,
			"domain", domain.Name,
			"window", j.window,
		)
		return nil
	}

	confirmed, err := j.identity.CheckDKIMVerification(ctx, string(domain.Name))
	if err != nil {
		return fmt.Errorf("provider verification check for %s: %w", domain.Name, err)
	}

	if confirmed {
		if err := domain.MarkVerified(now); err != nil {
			return err
		}
		if err := j.store.Update(ctx, domain); err != nil {
			return fmt.Errorf("persist verified domain %s: %w", domain.Name, err)
		}
		j.emitAudit(ctx, audit.EventDomainVerified, domain, "provider confirmed dkim")
		j.metrics.IncrementVerificationOutcome(metrics.OutcomeVerified)
		j.logger.InfoContext(ctx, "domain verified",
			"domain_id", domain.ID,
			"domain", domain.Name,
		)
		return nil
	}

	j.reportMissingRecords(ctx, domain)
	j.metrics.IncrementVerificationOutcome(metrics.OutcomeUnconfirmed)
	return nil
}

// reportMissingRecords logs which expected records live DNS cannot see
// yet. Operators fix their zone from these lines; the domain itself
// only moves when the provider confirms.
func (j *Job) reportMissingRecords(ctx context.Context, domain *models.Domain) {
	report := j.dns.VerifyAll(ctx, domain.ExpectedDNSRecords)

	missing := 0
	for _, result := range report.Results {
		if result.Found || result.Skipped {
			continue
		}
		missing++
		j.logger.InfoContext(ctx, "expected dns record not visible",
			"domain", domain.Name,
			"record_type", result.Record.Type,
			"record_name", result.Record.Name,
			"detail", result.Detail(),
		)
	}

	j.logger.InfoContext(ctx, "domain awaiting provider confirmation",
		"domain_id", domain.ID,
		"domain", domain.Name,
		"records_expected", len(report.Results),
		"records_missing", missing,
	)
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
