package handler

import (
	"time"

	"mailstead/internal/dnscheck"
	"mailstead/internal/domain/models"
)

// DomainResponse is the HTTP representation of a sending domain.
type DomainResponse struct {
	ID                    string              `json:"id"`
	Name                  string              `json:"name"`
	Status                string              `json:"status"`
	CreatedAt             time.Time           `json:"created_at"`
	UpdatedAt             time.Time           `json:"updated_at"`
	VerificationStartedAt *time.Time          `json:"verification_started_at,omitempty"`
	VerifiedAt            *time.Time          `json:"verified_at,omitempty"`
	FailureReason         string              `json:"failure_reason,omitempty"`
	ProviderIdentityRef   string              `json:"provider_identity_ref,omitempty"`
	ExpectedDNSRecords    []DNSRecordResponse `json:"expected_dns_records,omitempty"`
}

// DNSRecordResponse is one DNS record the owner must publish.
type DNSRecordResponse struct {
	Type     string `json:"type"`
	Name     string `json:"name"`
	Value    string `json:"value"`
	Priority int    `json:"priority,omitempty"`
}

// ListDomainsResponse is the HTTP response for GET /domains.
type ListDomainsResponse struct {
	Domains []*DomainResponse `json:"domains"`
	Total   int               `json:"total"`
}

// DNSCheckResponse is the HTTP response for GET /domains/{domainID}/dns.
// The check is diagnostic: all_found does not change the domain status.
type DNSCheckResponse struct {
	Domain   string                   `json:"domain"`
	Status   string                   `json:"status"`
	AllFound bool                     `json:"all_found"`
	Records  []DNSCheckRecordResponse `json:"records"`
}

// DNSCheckRecordResponse reports how one expected record looked in
// public DNS at check time.
type DNSCheckRecordResponse struct {
	Type        string `json:"type"`
	Name        string `json:"name"`
	Expected    string `json:"expected"`
	Found       bool   `json:"found"`
	Skipped     bool   `json:"skipped,omitempty"`
	Actual      string `json:"actual,omitempty"`
	ConfirmedBy string `json:"confirmed_by,omitempty"`
	Detail      string `json:"detail"`
}

// FromDomain converts a domain model to an HTTP response.
func FromDomain(domain *models.Domain) *DomainResponse {
	resp := &DomainResponse{
		ID:                    domain.ID.String(),
		Name:                  string(domain.Name),
		Status:                string(domain.Status),
		CreatedAt:             domain.CreatedAt,
		UpdatedAt:             domain.UpdatedAt,
		VerificationStartedAt: domain.VerificationStartedAt,
		VerifiedAt:            domain.VerifiedAt,
		FailureReason:         domain.FailureReason,
		ProviderIdentityRef:   domain.ProviderIdentityRef,
	}
	for _, record := range domain.ExpectedDNSRecords {
		resp.ExpectedDNSRecords = append(resp.ExpectedDNSRecords, DNSRecordResponse{
			Type:     string(record.Type),
			Name:     record.Name,
			Value:    record.Value,
			Priority: record.Priority,
		})
	}
	return resp
}

// FromDomains converts a domain list to the list response.
func FromDomains(domains []*models.Domain) *ListDomainsResponse {
	resp := &ListDomainsResponse{
		Domains: make([]*DomainResponse, 0, len(domains)),
		Total:   len(domains),
	}
	for _, domain := range domains {
		resp.Domains = append(resp.Domains, FromDomain(domain))
	}
	return resp
}

// FromReport converts a DNS check report to an HTTP response.
func FromReport(domain *models.Domain, report dnscheck.Report) *DNSCheckResponse {
	resp := &DNSCheckResponse{
		Domain:   string(domain.Name),
		Status:   string(domain.Status),
		AllFound: report.AllFound(),
		Records:  make([]DNSCheckRecordResponse, 0, len(report.Results)),
	}
	for _, result := range report.Results {
		resp.Records = append(resp.Records, DNSCheckRecordResponse{
			Type:        string(result.Record.Type),
			Name:        result.Record.Name,
			Expected:    result.Record.Value,
			Found:       result.Found,
			Skipped:     result.Skipped,
			Actual:      result.ActualValue,
			ConfirmedBy: result.ConfirmedBy,
			Detail:      result.Detail(),
		})
	}
	return resp
}
