package models

import (
	"fmt"

	id "mailstead/pkg/domain"
)

// RecordType identifies the DNS record kind of an expected record.
type RecordType string

const (
	RecordTypeCNAME RecordType = "CNAME"
	RecordTypeTXT   RecordType = "TXT"
	RecordTypeMX    RecordType = "MX"
)

// DNSRecord is one DNS record a sending domain is expected to publish.
// The list computed at provisioning time is immutable afterwards; it is
// the reference the verification diagnostics compare live DNS against.
//
// Business logic always works with the typed list. Encoding to a storage
// blob happens in the store adapters only.
type DNSRecord struct {
	Type     RecordType `json:"type"`
	Name     string     `json:"name"`
	Value    string     `json:"value"`
	Priority int        `json:"priority,omitempty"`
}

// DKIM CNAME targets and the SPF include both point at the provider's
// sending infrastructure; the suffix is configurable because it differs
// per provider region/partition.
const (
	spfValueFormat = "v=spf1 include:%s ~all"
	dmarcValue     = "v=DMARC1; p=none;"
	dmarcPrefix    = "_dmarc."
	dkimInfix      = "._domainkey."
)

// ExpectedRecordsFor computes the DNS records a domain must publish
// before the provider will confirm it: one CNAME per DKIM token (in the
// order the provider returned them), then the apex SPF TXT record, then
// the DMARC policy TXT record.
func ExpectedRecordsFor(name id.DomainName, dkimTokens []string, providerSuffix string) []DNSRecord {
	records := make([]DNSRecord, 0, len(dkimTokens)+2)
	for _, token := range dkimTokens {
		records = append(records, DNSRecord{
			Type:  RecordTypeCNAME,
			Name:  token + dkimInfix + name.String(),
			Value: fmt.Sprintf("%s.dkim.%s", token, providerSuffix),
		})
	}
	records = append(records, DNSRecord{
		Type:  RecordTypeTXT,
		Name:  name.String(),
		Value: fmt.Sprintf(spfValueFormat, providerSuffix),
	})
	records = append(records, DNSRecord{
		Type:  RecordTypeTXT,
		Name:  dmarcPrefix + name.String(),
		Value: dmarcValue,
	})
	return records
}
