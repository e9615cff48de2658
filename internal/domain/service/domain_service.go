package service

import (
	"context"
	"errors"
	"fmt"

	"mailstead/internal/audit"
	"mailstead/internal/dnscheck"
	"mailstead/internal/domain/models"
	id "mailstead/pkg/domain"
	dErrors "mailstead/pkg/domain-errors"
	"mailstead/pkg/platform/sentinel"
)

// Create registers a new sending domain and dispatches its provisioning
// to the background scheduler. The returned domain is pending; callers
// observe provisioning progress through subsequent reads.
func (s *Service) Create(ctx context.Context, rawName string) (*models.Domain, error) {
	domain, err := models.NewDomain(id.NewDomainID(), rawName, s.clock())
	if err != nil {
		return nil, err
	}

	if err := s.store.Create(ctx, domain); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.New(dErrors.CodeConflict, "domain name is already registered")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create domain")
	}

	s.logger.InfoContext(ctx, "domain created",
		"domain_id", domain.ID,
		"domain", domain.Name,
	)
	s.emitAudit(ctx, audit.EventDomainCreated, domain, "provisioning dispatched")
	if s.metrics != nil {
		s.metrics.IncrementDomainsCreated()
	}

	domainID := domain.ID
	s.dispatcher.RunOnce(fmt.Sprintf("provision %s", domain.Name), func(ctx context.Context) error {
		return s.provisionJob.Run(ctx, domainID)
	})

	return domain, nil
}

// Get returns one domain by id.
func (s *Service) Get(ctx context.Context, domainID id.DomainID) (*models.Domain, error) {
	domain, err := s.store.FindByID(ctx, domainID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "domain not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load domain")
	}
	return domain, nil
}

// List returns all domains, oldest first.
func (s *Service) List(ctx context.Context) ([]*models.Domain, error) {
	domains, err := s.store.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list domains")
	}
	return domains, nil
}

// Delete removes a domain after asking the provider and the DNS host to
// tear down their resources. Teardown is best-effort: an unreachable
// collaborator leaves orphans behind but never blocks the deletion.
func (s *Service) Delete(ctx context.Context, domainID id.DomainID) error {
	domain, err := s.store.FindByID(ctx, domainID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "domain not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load domain")
	}

	// A provider identity exists only once provisioning has run.
	if domain.ProviderIdentityRef != "" {
		if err := s.identity.DeleteDomainIdentity(ctx, domain.Name.String()); err != nil {
			s.logger.WarnContext(ctx, "provider identity teardown failed",
				"domain", domain.Name,
				"identity_ref", domain.ProviderIdentityRef,
				"error", err,
			)
		}
	}
	if err := s.dns.DeleteAllRecordsForDomain(ctx, domain.Name.String()); err != nil {
		s.logger.WarnContext(ctx, "dns record cleanup failed",
			"domain", domain.Name,
			"error", err,
		)
	}

	if err := s.store.Delete(ctx, domainID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "domain not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete domain")
	}

	s.logger.InfoContext(ctx, "domain deleted",
		"domain_id", domainID,
		"domain", domain.Name,
		"status", domain.Status,
	)
	s.emitAudit(ctx, audit.EventDomainDeleted, domain, fmt.Sprintf("deleted while %s", domain.Status))
	return nil
}

// VerifyNow synchronously runs the same per-domain evaluation the
// recurring job performs and returns the refreshed domain. Only a
// domain currently verifying can be checked; the per-domain lock turns
// a concurrent evaluation into a conflict instead of a race.
func (s *Service) VerifyNow(ctx context.Context, domainID id.DomainID) (*models.Domain, error) {
	domain, err := s.store.FindByID(ctx, domainID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "domain not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load domain")
	}
	if domain.Status != models.StatusVerifying {
		return nil, dErrors.New(dErrors.CodeConflict,
			fmt.Sprintf("domain is %s; only verifying domains can be checked", domain.Status))
	}

	s.emitAudit(ctx, audit.EventDomainVerifyRequested, domain, "manual verification requested")

	if err := s.verifyJob.RunDomain(ctx, domainID); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.New(dErrors.CodeConflict, "verification already in progress")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "verification check failed")
	}

	refreshed, err := s.store.FindByID(ctx, domainID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to reload domain")
	}
	return refreshed, nil
}

// CheckDNS resolves the domain's expected records against live DNS and
// returns the per-record diagnostic. The outcome never changes domain
// state; provider confirmation is the only verification authority.
func (s *Service) CheckDNS(ctx context.Context, domainID id.DomainID) (*models.Domain, dnscheck.Report, error) {
	domain, err := s.store.FindByID(ctx, domainID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dnscheck.Report{}, dErrors.New(dErrors.CodeNotFound, "domain not found")
		}
		return nil, dnscheck.Report{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load domain")
	}

	// Before provisioning runs there is nothing to resolve.
	if len(domain.ExpectedDNSRecords) == 0 {
		return domain, dnscheck.Report{}, nil
	}
	return domain, s.checker.VerifyAll(ctx, domain.ExpectedDNSRecords), nil
}
