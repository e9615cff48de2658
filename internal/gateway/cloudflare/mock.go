package cloudflare

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"mailstead/internal/domain/models"
)

// Mock is an in-memory DNS management gateway for dev mode and tests.
type Mock struct {
	mu      sync.Mutex
	nextID  int
	records map[string]Record
}

// NewMock constructs an empty mock DNS gateway.
func NewMock() *Mock {
	return &Mock{records: make(map[string]Record)}
}

func (m *Mock) CreateDNSRecord(_ context.Context, record models.DNSRecord, proxied bool) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	recordID := fmt.Sprintf("mock-record-%d", m.nextID)
	m.records[recordID] = Record{
		ID:       recordID,
		Type:     string(record.Type),
		Name:     record.Name,
		Value:    record.Value,
		Priority: record.Priority,
		Proxied:  proxied,
	}
	return recordID, nil
}

func (m *Mock) DeleteDNSRecord(_ context.Context, recordID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.records[recordID]; !exists {
		return fmt.Errorf("mock: record %q does not exist", recordID)
	}
	delete(m.records, recordID)
	return nil
}

func (m *Mock) ListDNSRecords(_ context.Context, nameFilter, typeFilter string) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Record
	for _, record := range m.records {
		if nameFilter != "" && !strings.EqualFold(record.Name, nameFilter) {
			continue
		}
		if typeFilter != "" && record.Type != typeFilter {
			continue
		}
		out = append(out, record)
	}
	return out, nil
}

func (m *Mock) DeleteAllRecordsForDomain(_ context.Context, domainName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for recordID, record := range m.records {
		if matchesDomain(record.Name, domainName) {
			delete(m.records, recordID)
		}
	}
	return nil
}
