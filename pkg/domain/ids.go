package domain

import (
	"github.com/google/uuid"

	dErrors "mailstead/pkg/domain-errors"
)

// DomainID uniquely identifies a sending domain record.
//
// IDs are typed wrappers over UUIDs so the compiler rejects passing an
// unrelated identifier where a DomainID is expected.
type DomainID uuid.UUID

// NewDomainID returns a fresh random DomainID.
func NewDomainID() DomainID {
	return DomainID(uuid.New())
}

// ParseDomainID validates and converts a string into a DomainID.
// IDs must be valid, non-empty, non-nil UUIDs.
func ParseDomainID(s string) (DomainID, error) {
	if s == "" {
		return DomainID{}, dErrors.New(dErrors.CodeInvalidInput, "domain id must not be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return DomainID{}, dErrors.Wrap(err, dErrors.CodeInvalidInput, "domain id must be a valid uuid")
	}
	if u == uuid.Nil {
		return DomainID{}, dErrors.New(dErrors.CodeInvalidInput, "domain id must not be the nil uuid")
	}
	return DomainID(u), nil
}

func (d DomainID) String() string {
	return uuid.UUID(d).String()
}

// IsNil reports whether the ID is the zero UUID.
func (d DomainID) IsNil() bool {
	return uuid.UUID(d) == uuid.Nil
}
