package domain

import (
	"fmt"
	"strings"

	dErrors "mailstead/pkg/domain-errors"
)

// DomainName is the DNS name of a sending domain, normalized to
// lowercase with no trailing dot.
//
// Invariant: a DomainName constructed via ParseDomainName is a
// syntactically valid hostname with at least two labels. Direct casting
// bypasses validation; only do that with values already normalized.
type DomainName string

// maxDomainNameLen is the RFC 1035 limit on a full domain name.
const maxDomainNameLen = 253

// ParseDomainName validates raw input and returns the normalized name.
// Input is lowercased and a single trailing dot is dropped, so
// "Example.COM." and "example.com" parse to the same value.
func ParseDomainName(s string) (DomainName, error) {
	name := strings.ToLower(strings.TrimSuffix(strings.TrimSpace(s), "."))
	if name == "" {
		return "", dErrors.New(dErrors.CodeValidation, "domain name must not be empty")
	}
	if len(name) > maxDomainNameLen {
		return "", dErrors.New(dErrors.CodeValidation, "domain name exceeds 253 characters")
	}
	labels := strings.Split(name, ".")
	if len(labels) < 2 {
		return "", dErrors.New(dErrors.CodeValidation, "domain name must contain at least two labels")
	}
	for _, label := range labels {
		if !validLabel(label) {
			return "", dErrors.New(dErrors.CodeValidation, fmt.Sprintf("invalid domain label %q", label))
		}
	}
	return DomainName(name), nil
}

func validLabel(label string) bool {
	if len(label) == 0 || len(label) > 63 {
		return false
	}
	if label[0] == '-' || label[len(label)-1] == '-' {
		return false
	}
	for i := 0; i < len(label); i++ {
		c := label[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= '0' && c <= '9':
		case c == '-':
		default:
			return false
		}
	}
	return true
}

func (n DomainName) String() string {
	return string(n)
}

// IsNil reports whether the name is empty.
func (n DomainName) IsNil() bool {
	return n == ""
}
