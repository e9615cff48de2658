// Package service orchestrates the sending-domain lifecycle behind the
// HTTP API: registration with background provisioning dispatch, reads,
// deletion with best-effort collaborator teardown, on-demand
// verification, and live DNS diagnostics.
package service

import (
	"context"
	"log/slog"
	"time"

	"mailstead/internal/audit"
	"mailstead/internal/dnscheck"
	"mailstead/internal/domain/metrics"
	"mailstead/internal/domain/models"
	id "mailstead/pkg/domain"
	"mailstead/pkg/requestcontext"
)

// Clock supplies the current time so tests can pin it.
type Clock func() time.Time

// Store is the persistent domain record store.
type Store interface {
	Create(ctx context.Context, domain *models.Domain) error
	FindByID(ctx context.Context, domainID id.DomainID) (*models.Domain, error)
	List(ctx context.Context) ([]*models.Domain, error)
	Delete(ctx context.Context, domainID id.DomainID) error
}

// IdentityGateway is the slice of the mail provider API used when a
// domain is deleted.
type IdentityGateway interface {
	DeleteDomainIdentity(ctx context.Context, name string) error
}

// DNSGateway is the slice of the DNS management API used when a domain
// is deleted.
type DNSGateway interface {
	DeleteAllRecordsForDomain(ctx context.Context, domainName string) error
}

// DNSChecker resolves expected records against live DNS for operator
// diagnostics.
type DNSChecker interface {
	VerifyAll(ctx context.Context, records []models.DNSRecord) dnscheck.Report
}

// ProvisionJob is the one-shot work unit dispatched once per new domain.
type ProvisionJob interface {
	Run(ctx context.Context, domainID id.DomainID) error
}

// VerifyJob evaluates a single verifying domain on demand.
type VerifyJob interface {
	RunDomain(ctx context.Context, domainID id.DomainID) error
}

// Dispatcher hands one-shot tasks to the background scheduler.
type Dispatcher interface {
	RunOnce(name string, task func(context.Context) error)
}

// AuditPublisher records lifecycle transitions.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service exposes the domain lifecycle operations.
type Service struct {
	store          Store
	identity       IdentityGateway
	dns            DNSGateway
	checker        DNSChecker
	provisionJob   ProvisionJob
	verifyJob      VerifyJob
	dispatcher     Dispatcher
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	clock          Clock
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithAuditPublisher attaches the audit trail.
func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

// WithMetrics attaches lifecycle metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithClock overrides the time source.
func WithClock(clock Clock) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// New constructs a Service.
func New(
	store Store,
	identity IdentityGateway,
	dns DNSGateway,
	checker DNSChecker,
	provisionJob ProvisionJob,
	verifyJob VerifyJob,
	dispatcher Dispatcher,
	opts ...Option,
) *Service {
	s := &Service{
		store:        store,
		identity:     identity,
		dns:          dns,
		checker:      checker,
		provisionJob: provisionJob,
		verifyJob:    verifyJob,
		dispatcher:   dispatcher,
		logger:       slog.Default(),
		clock:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *Service) emitAudit(ctx context.Context, action audit.AuditEvent, domain *models.Domain, detail string) {
	if s.auditPublisher == nil {
		return
	}
	err := s.auditPublisher.Emit(ctx, audit.Event{
		Action:     string(action),
		DomainID:   domain.ID,
		DomainName: string(domain.Name),
		Detail:     detail,
		RequestID:  requestcontext.RequestID(ctx),
	})
	if err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event",
			"action", action,
			"domain", domain.Name,
			"error", err,
		)
	}
}
