package models

import (
	"time"

	id "mailstead/pkg/domain"
	dErrors "mailstead/pkg/domain-errors"
)

// Domain is the aggregate root for a sending domain identity.
//
// Invariants:
//   - Name is non-blank, stored lowercase, immutable after creation
//   - Status only moves forward along the machine in status.go
//   - VerificationStartedAt is set exactly once, entering verifying
//   - VerifiedAt is set exactly once, entering verified, never cleared
//   - FailureReason is set only when entering failed
//   - ExpectedDNSRecords is set once by provisioning and never mutated
//
// The entity itself performs no I/O; jobs load it, apply a transition,
// and persist it through a store.
type Domain struct {
	ID                    id.DomainID   `json:"id"`
	Name                  id.DomainName `json:"name"`
	Status                Status        `json:"status"`
	CreatedAt             time.Time     `json:"created_at"`
	UpdatedAt             time.Time     `json:"updated_at"`
	VerificationStartedAt *time.Time    `json:"verification_started_at,omitempty"`
	VerifiedAt            *time.Time    `json:"verified_at,omitempty"`
	FailureReason         string        `json:"failure_reason,omitempty"`
	ProviderIdentityRef   string        `json:"provider_identity_ref,omitempty"`
	ExpectedDNSRecords    []DNSRecord   `json:"expected_dns_records,omitempty"`
}

// NewDomain constructs a pending domain from raw user input. The name is
// validated and normalized (lowercased, trailing dot dropped) here so a
// Domain never carries a denormalized name.
func NewDomain(domainID id.DomainID, rawName string, now time.Time) (*Domain, error) {
	name, err := id.ParseDomainName(rawName)
	if err != nil {
		return nil, err
	}
	return &Domain{
		ID:        domainID,
		Name:      name,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// CanBeginVerification checks that provisioning may move the domain into
// verifying. Use with ApplyBeginVerification; BeginVerification combines
// both.
func (d *Domain) CanBeginVerification() error {
	if !d.Status.CanTransitionTo(StatusVerifying) {
		return dErrors.New(dErrors.CodeInvariantViolation, "domain is not pending provisioning")
	}
	return nil
}

// ApplyBeginVerification records the provisioning outcome and starts the
// verification window. Call CanBeginVerification first.
func (d *Domain) ApplyBeginVerification(identityRef string, records []DNSRecord, now time.Time) {
	d.Status = StatusVerifying
	d.ProviderIdentityRef = identityRef
	d.ExpectedDNSRecords = records
	d.VerificationStartedAt = &now
	d.UpdatedAt = now
}

// BeginVerification validates and applies the pending→verifying
// transition in one call.
func (d *Domain) BeginVerification(identityRef string, records []DNSRecord, now time.Time) error {
	if err := d.CanBeginVerification(); err != nil {
		return err
	}
	d.ApplyBeginVerification(identityRef, records, now)
	return nil
}

// CanMarkVerified checks that the provider-confirmed transition is
// allowed.
func (d *Domain) CanMarkVerified() error {
	if !d.Status.CanTransitionTo(StatusVerified) {
		return dErrors.New(dErrors.CodeInvariantViolation, "domain is not pending verification")
	}
	return nil
}

// ApplyMarkVerified moves the domain into its verified terminal state.
// Call CanMarkVerified first.
func (d *Domain) ApplyMarkVerified(now time.Time) {
	d.Status = StatusVerified
	d.VerifiedAt = &now
	d.UpdatedAt = now
}

// MarkVerified validates and applies verifying→verified in one call.
func (d *Domain) MarkVerified(now time.Time) error {
	if err := d.CanMarkVerified(); err != nil {
		return err
	}
	d.ApplyMarkVerified(now)
	return nil
}

// CanMarkFailed checks that the domain may still fail; terminal states
// never change.
func (d *Domain) CanMarkFailed() error {
	if !d.Status.CanTransitionTo(StatusFailed) {
		return dErrors.New(dErrors.CodeInvariantViolation, "domain is already in a terminal state")
	}
	return nil
}

// ApplyMarkFailed moves the domain into its failed terminal state with a
// diagnostic reason. Call CanMarkFailed first.
func (d *Domain) ApplyMarkFailed(reason string, now time.Time) {
	d.Status = StatusFailed
	d.FailureReason = reason
	d.UpdatedAt = now
}

// MarkFailed validates and applies the transition to failed in one call.
func (d *Domain) MarkFailed(reason string, now time.Time) error {
	if err := d.CanMarkFailed(); err != nil {
		return err
	}
	d.ApplyMarkFailed(reason, now)
	return nil
}

// IsTimedOut reports whether a verifying domain has exceeded the
// verification window. Pure; the caller supplies now so batches evaluate
// against one consistent clock.
func (d *Domain) IsTimedOut(window time.Duration, now time.Time) bool {
	if d.Status != StatusVerifying || d.VerificationStartedAt == nil {
		return false
	}
	return now.Sub(*d.VerificationStartedAt) > window
}

// Clone returns a deep copy so stores can hand out domains without
// aliasing their internal state.
func (d *Domain) Clone() *Domain {
	clone := *d
	if d.VerificationStartedAt != nil {
		t := *d.VerificationStartedAt
		clone.VerificationStartedAt = &t
	}
	if d.VerifiedAt != nil {
		t := *d.VerifiedAt
		clone.VerifiedAt = &t
	}
	if d.ExpectedDNSRecords != nil {
		clone.ExpectedDNSRecords = make([]DNSRecord, len(d.ExpectedDNSRecords))
		copy(clone.ExpectedDNSRecords, d.ExpectedDNSRecords)
	}
	return &clone
}
