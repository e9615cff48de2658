package ses

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
)

// Mock is an in-memory identity gateway for dev mode and tests. Tokens
// are derived deterministically from the domain name, and DKIM flips to
// confirmed after a configurable number of checks so the verification
// loop can be exercised end to end without AWS credentials.
type Mock struct {
	mu         sync.Mutex
	identities map[string]int // name -> checks performed so far

	// ConfirmAfterChecks is how many CheckDKIMVerification calls a
	// domain sees before the mock reports it confirmed. Zero confirms
	// on the first check.
	ConfirmAfterChecks int
}

// NewMock constructs a mock identity gateway.
func NewMock() *Mock {
	return &Mock{identities: make(map[string]int)}
}

func (m *Mock) CreateDomainIdentity(_ context.Context, name string) (string, []string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.identities[name]; !exists {
		m.identities[name] = 0
	}
	return "mock:identity/" + name, mockTokens(name), nil
}

func (m *Mock) CheckDKIMVerification(_ context.Context, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	checks, exists := m.identities[name]
	if !exists {
		return false, fmt.Errorf("mock: identity %q does not exist", name)
	}
	m.identities[name] = checks + 1
	return checks >= m.ConfirmAfterChecks, nil
}

func (m *Mock) DeleteDomainIdentity(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.identities, name)
	return nil
}

// mockTokens derives three stable pseudo-DKIM tokens from the name.
func mockTokens(name string) []string {
	tokens := make([]string, 3)
	for i := range tokens {
		sum := sha256.Sum256([]byte(fmt.Sprintf("%s/%d", name, i)))
		tokens[i] = hex.EncodeToString(sum[:])[:16]
	}
	return tokens
}
