// Package cloudflare adapts the Cloudflare DNS API to the record
// management operations the provisioning job and domain deletion
// consume.
package cloudflare

import (
	"context"
	"fmt"
	"strings"

	cf "github.com/cloudflare/cloudflare-go"

	"mailstead/internal/domain/models"
)

// automaticTTL asks Cloudflare to manage the record TTL.
const automaticTTL = 1

// Record is a DNS record as it exists at the provider, carrying the
// provider-assigned ID needed for deletion.
type Record struct {
	ID       string
	Type     string
	Name     string
	Value    string
	Priority int
	Proxied  bool
}

// Config addresses the Cloudflare zone the service manages records in.
type Config struct {
	APIToken string
	ZoneID   string
}

func (c Config) validate() error {
	if c.APIToken == "" {
		return fmt.Errorf("cloudflare: api token is required")
	}
	if c.ZoneID == "" {
		return fmt.Errorf("cloudflare: zone id is required")
	}
	return nil
}

// Client is the real Cloudflare-backed DNS management gateway.
type Client struct {
	api  *cf.API
	zone *cf.ResourceContainer
}

// New constructs a Cloudflare DNS gateway scoped to a single zone.
func New(cfg Config) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	api, err := cf.NewWithAPIToken(cfg.APIToken)
	if err != nil {
		return nil, fmt.Errorf("cloudflare: create api client: %w", err)
	}
	return &Client{
		api:  api,
		zone: cf.ZoneIdentifier(cfg.ZoneID),
	}, nil
}

// CreateDNSRecord creates one record in the zone and returns the
// provider-assigned record ID.
func (c *Client) CreateDNSRecord(ctx context.Context, record models.DNSRecord, proxied bool) (string, error) {
	params := cf.CreateDNSRecordParams{
		Type:    string(record.Type),
		Name:    record.Name,
		Content: record.Value,
		TTL:     automaticTTL,
		Proxied: cf.BoolPtr(proxied),
	}
	if record.Priority > 0 {
		priority := uint16(record.Priority)
		params.Priority = &priority
	}

	created, err := c.api.CreateDNSRecord(ctx, c.zone, params)
	if err != nil {
		return "", fmt.Errorf("create dns record %s %s: %w", record.Type, record.Name, err)
	}
	return created.ID, nil
}

// DeleteDNSRecord removes one record by provider ID.
func (c *Client) DeleteDNSRecord(ctx context.Context, recordID string) error {
	if err := c.api.DeleteDNSRecord(ctx, c.zone, recordID); err != nil {
		return fmt.Errorf("delete dns record %s: %w", recordID, err)
	}
	return nil
}

// ListDNSRecords returns zone records, optionally filtered by exact name
// and/or type. Results are paginated by the API; all pages are drained.
func (c *Client) ListDNSRecords(ctx context.Context, nameFilter, typeFilter string) ([]Record, error) {
	params := cf.ListDNSRecordsParams{
		Name: nameFilter,
		Type: typeFilter,
	}
	params.PerPage = 100

	var out []Record
	for page := 1; ; page++ {
		params.Page = page
		records, info, err := c.api.ListDNSRecords(ctx, c.zone, params)
		if err != nil {
			return nil, fmt.Errorf("list dns records: %w", err)
		}
		for _, record := range records {
			out = append(out, fromAPIRecord(record))
		}
		if info == nil || page >= info.TotalPages {
			break
		}
	}
	return out, nil
}

// DeleteAllRecordsForDomain removes every record that belongs to the
// domain, matched by name pattern. Cleanup is best-effort: individual
// deletion failures are collected but do not stop the sweep.
func (c *Client) DeleteAllRecordsForDomain(ctx context.Context, domainName string) error {
	records, err := c.ListDNSRecords(ctx, "", "")
	if err != nil {
		return fmt.Errorf("list records for cleanup of %q: %w", domainName, err)
	}

	var failed []string
	for _, record := range records {
		if !matchesDomain(record.Name, domainName) {
			continue
		}
		if err := c.DeleteDNSRecord(ctx, record.ID); err != nil {
			failed = append(failed, record.Name)
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("cleanup of %q left records behind: %s", domainName, strings.Join(failed, ", "))
	}
	return nil
}

// matchesDomain reports whether a record name belongs to the domain:
// the apex itself, anything under it, or a DKIM selector for it.
func matchesDomain(recordName, domainName string) bool {
	name := strings.ToLower(strings.TrimSuffix(recordName, "."))
	domain := strings.ToLower(strings.TrimSuffix(domainName, "."))

	switch {
	case name == domain:
		return true
	case strings.HasSuffix(name, "._domainkey."+domain):
		return true
	case strings.HasSuffix(name, "."+domain):
		return true
	}
	return false
}

func fromAPIRecord(record cf.DNSRecord) Record {
	out := Record{
		ID:    record.ID,
		Type:  record.Type,
		Name:  record.Name,
		Value: record.Content,
	}
	if record.Priority != nil {
		out.Priority = int(*record.Priority)
	}
	if record.Proxied != nil {
		out.Proxied = *record.Proxied
	}
	return out
}
