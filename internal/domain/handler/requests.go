package handler

import (
	"strings"

	dErrors "mailstead/pkg/domain-errors"
)

// CreateDomainRequest is the HTTP request body for POST /domains.
type CreateDomainRequest struct {
	Name string `json:"name"`
}

// Validate checks the request shape. Full domain-name syntax rules live
// in the domain layer; this only rejects bodies not worth parsing.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *CreateDomainRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	// Size validation (fail fast)
	if len(r.Name) > 253 {
		return dErrors.New(dErrors.CodeValidation, "name must be at most 253 characters")
	}

	// Required fields
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}

	return nil
}
