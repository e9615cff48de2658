// Package dnscheck verifies that expected DNS records are visible in
// public DNS. It queries an ordered pool of resolvers and accepts the
// first confirming answer: resolvers propagate at different speeds, and
// requiring unanimity would under-report readiness while a change is
// still spreading.
package dnscheck

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"mailstead/internal/domain/models"
)

const defaultQueryTimeout = 10 * time.Second

// Pool queries a fixed, ordered list of resolvers. Configuration is
// immutable after construction; the pool holds no per-domain state.
type Pool struct {
	resolvers []Resolver
	timeout   time.Duration
	logger    *slog.Logger
}

// Option configures a Pool.
type Option func(*Pool)

// WithQueryTimeout bounds each individual resolver query.
func WithQueryTimeout(timeout time.Duration) Option {
	return func(p *Pool) {
		if timeout > 0 {
			p.timeout = timeout
		}
	}
}

// WithLogger sets the logger for per-resolver query failures.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pool) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewPool constructs a resolver pool. Resolvers are queried in the order
// given; when none are supplied the system resolver is used alone.
func NewPool(resolvers []Resolver, opts ...Option) *Pool {
	pool := &Pool{
		resolvers: resolvers,
		timeout:   defaultQueryTimeout,
		logger:    slog.Default(),
	}
	if len(pool.resolvers) == 0 {
		pool.resolvers = []Resolver{NewSystemResolver()}
	}
	for _, opt := range opts {
		if opt != nil {
			opt(pool)
		}
	}
	return pool
}

// Result describes the outcome of checking a single expected record.
type Result struct {
	Record      models.DNSRecord
	Found       bool
	Skipped     bool
	ActualValue string
	ConfirmedBy string
}

// Detail renders the result for operator-facing diagnostics.
func (r Result) Detail() string {
	switch {
	case r.Skipped:
		return fmt.Sprintf("%s %s: skipped (unsupported record type)", r.Record.Type, r.Record.Name)
	case r.Found:
		return fmt.Sprintf("%s %s: confirmed by %s", r.Record.Type, r.Record.Name, r.ConfirmedBy)
	case r.ActualValue != "":
		return fmt.Sprintf("%s %s: expected %q, observed %q", r.Record.Type, r.Record.Name, r.Record.Value, r.ActualValue)
	default:
		return fmt.Sprintf("%s %s: not found in any resolver", r.Record.Type, r.Record.Name)
	}
}

// Report aggregates per-record results for one expected record set.
type Report struct {
	Results []Result
}

// AllFound reports whether every checkable record was confirmed by at
// least one resolver. Skipped records do not count against readiness.
func (r Report) AllFound() bool {
	for _, result := range r.Results {
		if result.Skipped {
			continue
		}
		if !result.Found {
			return false
		}
	}
	return true
}

// VerifyAll checks every expected record. The outcome is diagnostic
// only; callers must not treat a full match as provider confirmation.
func (p *Pool) VerifyAll(ctx context.Context, records []models.DNSRecord) Report {
	report := Report{Results: make([]Result, 0, len(records))}
	for _, record := range records {
		report.Results = append(report.Results, p.Verify(ctx, record))
	}
	return report
}

// Verify checks a single expected record against the pool. Unsupported
// record types are skipped rather than treated as errors.
func (p *Pool) Verify(ctx context.Context, record models.DNSRecord) Result {
	switch record.Type {
	case models.RecordTypeCNAME:
		return p.verifyCNAME(ctx, record)
	case models.RecordTypeTXT:
		return p.verifyTXT(ctx, record)
	default:
		return Result{Record: record, Skipped: true}
	}
}

// verifyCNAME accepts the first resolver whose answer matches the
// expected target, comparing case-insensitively and ignoring trailing
// dots. Resolver errors and timeouts count as "no answer" from that
// resolver, never as a failure of the overall check.
func (p *Pool) verifyCNAME(ctx context.Context, record models.DNSRecord) Result {
	result := Result{Record: record}
	want := canonical(record.Value)

	for _, resolver := range p.resolvers {
		target, err := p.lookupCNAME(ctx, resolver, record.Name)
		if err != nil {
			p.logger.Debug("cname lookup failed",
				"resolver", resolver.Name(),
				"name", record.Name,
				"error", err,
			)
			continue
		}
		if target == "" {
			continue
		}
		if canonical(target) == want {
			result.Found = true
			result.ConfirmedBy = resolver.Name()
			result.ActualValue = strings.TrimSuffix(target, ".")
			return result
		}
		result.ActualValue = strings.TrimSuffix(target, ".")
	}
	return result
}

// verifyTXT accepts the first resolver that returns the expected value,
// either as one of the answer strings or as the concatenation of all of
// them (DNS may split a long logical value into multiple strings).
func (p *Pool) verifyTXT(ctx context.Context, record models.DNSRecord) Result {
	result := Result{Record: record}

	for _, resolver := range p.resolvers {
		values, err := p.lookupTXT(ctx, resolver, record.Name)
		if err != nil {
			p.logger.Debug("txt lookup failed",
				"resolver", resolver.Name(),
				"name", record.Name,
				"error", err,
			)
			continue
		}
		if len(values) == 0 {
			continue
		}
		if txtMatches(values, record.Value) {
			result.Found = true
			result.ConfirmedBy = resolver.Name()
			result.ActualValue = record.Value
			return result
		}
		result.ActualValue = strings.Join(values, "; ")
	}
	return result
}

func (p *Pool) lookupCNAME(ctx context.Context, resolver Resolver, name string) (string, error) {
	queryCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return resolver.LookupCNAME(queryCtx, name)
}

func (p *Pool) lookupTXT(ctx context.Context, resolver Resolver, name string) ([]string, error) {
	queryCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return resolver.LookupTXT(queryCtx, name)
}

func txtMatches(values []string, expected string) bool {
	for _, value := range values {
		if value == expected {
			return true
		}
	}
	return strings.Join(values, "") == expected
}

// canonical lowercases a DNS name and drops the trailing dot so that
// answers compare equal regardless of how the resolver renders them.
func canonical(name string) string {
	return strings.ToLower(strings.TrimSuffix(name, "."))
}
