// Package audit records domain lifecycle transitions for operators and
// compliance. Events fan out to a store (queryable history) and an
// optional sink (streaming export).
package audit

import (
	"time"

	id "mailstead/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryCompliance covers events changing who is authorized to
	// send mail on a domain's behalf. These require long retention.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers failed attempts to establish sending
	// authority; these feed monitoring and alerting pipelines.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine lifecycle progress useful for
	// debugging and operational visibility.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key transitions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp  time.Time
	Category   EventCategory
	Action     string
	DomainID   id.DomainID
	DomainName string
	// Detail carries the transition-specific diagnostic, e.g. the
	// failure reason or the provider identity reference.
	Detail string
	// RequestID correlates the event with the HTTP request that caused
	// it; empty for job-originated events.
	RequestID string
}

// AuditEvent names every action this service records.
type AuditEvent string

const (
	EventDomainCreated            AuditEvent = "domain_created"
	EventDomainProvisioned        AuditEvent = "domain_provisioned"
	EventDomainProvisionFailed    AuditEvent = "domain_provision_failed"
	EventDomainVerified           AuditEvent = "domain_verified"
	EventDomainVerificationFailed AuditEvent = "domain_verification_failed"
	EventDomainVerifyRequested    AuditEvent = "domain_verify_requested"
	EventDomainDeleted            AuditEvent = "domain_deleted"
)

var eventCategories = map[AuditEvent]EventCategory{
	// Compliance: the set of domains authorized to send mail changed.
	EventDomainCreated:  CategoryCompliance,
	EventDomainVerified: CategoryCompliance,
	EventDomainDeleted:  CategoryCompliance,

	// Security: an attempt to establish sending authority failed.
	EventDomainProvisionFailed:    CategorySecurity,
	EventDomainVerificationFailed: CategorySecurity,

	// Operations: routine lifecycle progress.
	EventDomainProvisioned:     CategoryOperations,
	EventDomainVerifyRequested: CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}
