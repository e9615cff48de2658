package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"mailstead/internal/domain/models"
	id "mailstead/pkg/domain"
	"mailstead/pkg/platform/sentinel"
)

// Error Contract:
// All store methods follow this error pattern:
// - Return ErrNotFound when the requested domain does not exist
// - Return ErrAlreadyUsed when a create collides with an existing name
// - Return nil for successful operations
// - Return wrapped errors with context for infrastructure failures

// InMemory stores domains in memory for tests and dev mode. All reads
// return deep copies so callers can mutate freely before Update.
type InMemory struct {
	mu      sync.RWMutex
	domains map[id.DomainID]*models.Domain
	byName  map[id.DomainName]id.DomainID
}

// NewInMemory constructs an empty in-memory domain store.
func NewInMemory() *InMemory {
	return &InMemory{
		domains: make(map[id.DomainID]*models.Domain),
		byName:  make(map[id.DomainName]id.DomainID),
	}
}

func (s *InMemory) Create(_ context.Context, domain *models.Domain) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byName[domain.Name]; exists {
		return fmt.Errorf("domain name %q: %w", domain.Name, sentinel.ErrAlreadyUsed)
	}
	if _, exists := s.domains[domain.ID]; exists {
		return fmt.Errorf("domain id %s: %w", domain.ID, sentinel.ErrAlreadyUsed)
	}

	s.domains[domain.ID] = domain.Clone()
	s.byName[domain.Name] = domain.ID
	return nil
}

func (s *InMemory) FindByID(_ context.Context, domainID id.DomainID) (*models.Domain, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	domain, ok := s.domains[domainID]
	if !ok {
		return nil, fmt.Errorf("domain %s not found: %w", domainID, sentinel.ErrNotFound)
	}
	return domain.Clone(), nil
}

func (s *InMemory) FindByName(_ context.Context, name id.DomainName) (*models.Domain, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	domainID, ok := s.byName[name]
	if !ok {
		return nil, fmt.Errorf("domain %q not found: %w", name, sentinel.ErrNotFound)
	}
	return s.domains[domainID].Clone(), nil
}

// List returns all domains ordered by creation time, oldest first.
func (s *InMemory) List(_ context.Context) ([]*models.Domain, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Domain, 0, len(s.domains))
	for _, domain := range s.domains {
		out = append(out, domain.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Name < out[j].Name
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// ListPendingVerification returns domains in verifying status, oldest
// verification window first, so the recurring job checks the domains
// that have waited longest before fresher ones.
func (s *InMemory) ListPendingVerification(_ context.Context) ([]*models.Domain, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Domain
	for _, domain := range s.domains {
		if domain.Status == models.StatusVerifying {
			out = append(out, domain.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		ti, tj := out[i].VerificationStartedAt, out[j].VerificationStartedAt
		switch {
		case ti == nil:
			return false
		case tj == nil:
			return true
		case ti.Equal(*tj):
			return out[i].Name < out[j].Name
		default:
			return ti.Before(*tj)
		}
	})
	return out, nil
}

func (s *InMemory) Update(_ context.Context, domain *models.Domain) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.domains[domain.ID]; !ok {
		return fmt.Errorf("domain %s not found: %w", domain.ID, sentinel.ErrNotFound)
	}
	s.domains[domain.ID] = domain.Clone()
	return nil
}

func (s *InMemory) Delete(_ context.Context, domainID id.DomainID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	domain, ok := s.domains[domainID]
	if !ok {
		return fmt.Errorf("domain %s not found: %w", domainID, sentinel.ErrNotFound)
	}
	delete(s.byName, domain.Name)
	delete(s.domains, domainID)
	return nil
}

func (s *InMemory) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.domains), nil
}
