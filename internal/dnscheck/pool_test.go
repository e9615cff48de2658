package dnscheck_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"mailstead/internal/dnscheck"
	"mailstead/internal/domain/models"
)

// fakeResolver serves scripted answers and records how often it was
// queried, so tests can assert first-match-wins short-circuiting.
type fakeResolver struct {
	name    string
	cnames  map[string]string
	txts    map[string][]string
	err     error
	queries int
}

func (f *fakeResolver) Name() string { return f.name }

func (f *fakeResolver) LookupCNAME(_ context.Context, host string) (string, error) {
	f.queries++
	if f.err != nil {
		return "", f.err
	}
	return f.cnames[host], nil
}

func (f *fakeResolver) LookupTXT(_ context.Context, name string) ([]string, error) {
	f.queries++
	if f.err != nil {
		return nil, f.err
	}
	return f.txts[name], nil
}

type PoolSuite struct {
	suite.Suite
	ctx context.Context
}

func TestPoolSuite(t *testing.T) {
	suite.Run(t, new(PoolSuite))
}

func (s *PoolSuite) SetupTest() {
	s.ctx = context.Background()
}

func (s *PoolSuite) cnameRecord() models.DNSRecord {
	return models.DNSRecord{
		Type:  models.RecordTypeCNAME,
		Name:  "tok._domainkey.example.com",
		Value: "tok.dkim.amazonses.com",
	}
}

func (s *PoolSuite) TestVerifyCNAME() {
	s.Run("first resolver with the answer wins", func() {
		blind := &fakeResolver{name: "blind"}
		sighted := &fakeResolver{
			name:   "sighted",
			cnames: map[string]string{"tok._domainkey.example.com": "tok.dkim.amazonses.com."},
		}
		unreached := &fakeResolver{
			name:   "unreached",
			cnames: map[string]string{"tok._domainkey.example.com": "tok.dkim.amazonses.com."},
		}
		pool := dnscheck.NewPool([]dnscheck.Resolver{blind, sighted, unreached})

		result := pool.Verify(s.ctx, s.cnameRecord())

		s.True(result.Found)
		s.Equal("sighted", result.ConfirmedBy)
		s.Equal(0, unreached.queries, "match must short-circuit remaining resolvers")
	})

	s.Run("comparison ignores case and trailing dot", func() {
		resolver := &fakeResolver{
			name:   "shouty",
			cnames: map[string]string{"tok._domainkey.example.com": "TOK.DKIM.AmazonSES.COM."},
		}
		pool := dnscheck.NewPool([]dnscheck.Resolver{resolver})

		result := pool.Verify(s.ctx, s.cnameRecord())

		s.True(result.Found)
	})

	s.Run("resolver errors are treated as no answer", func() {
		broken := &fakeResolver{name: "broken", err: errors.New("i/o timeout")}
		working := &fakeResolver{
			name:   "working",
			cnames: map[string]string{"tok._domainkey.example.com": "tok.dkim.amazonses.com"},
		}
		pool := dnscheck.NewPool([]dnscheck.Resolver{broken, working})

		result := pool.Verify(s.ctx, s.cnameRecord())

		s.True(result.Found)
		s.Equal("working", result.ConfirmedBy)
	})

	s.Run("no resolver confirms", func() {
		pool := dnscheck.NewPool([]dnscheck.Resolver{
			&fakeResolver{name: "a", err: errors.New("servfail")},
			&fakeResolver{name: "b"},
		})

		result := pool.Verify(s.ctx, s.cnameRecord())

		s.False(result.Found)
		s.Empty(result.ConfirmedBy)
		s.Contains(result.Detail(), "not found in any resolver")
	})

	s.Run("mismatch records the observed value", func() {
		stale := &fakeResolver{
			name:   "stale",
			cnames: map[string]string{"tok._domainkey.example.com": "old.dkim.amazonses.com."},
		}
		pool := dnscheck.NewPool([]dnscheck.Resolver{stale})

		result := pool.Verify(s.ctx, s.cnameRecord())

		s.False(result.Found)
		s.Equal("old.dkim.amazonses.com", result.ActualValue)
		s.Contains(result.Detail(), "observed")
	})
}

func (s *PoolSuite) TestVerifyTXT() {
	record := models.DNSRecord{
		Type:  models.RecordTypeTXT,
		Name:  "example.com",
		Value: "v=spf1 include:amazonses.com ~all",
	}

	s.Run("matches one of several TXT answers", func() {
		resolver := &fakeResolver{
			name: "multi",
			txts: map[string][]string{
				"example.com": {
					"google-site-verification=abc123",
					"v=spf1 include:amazonses.com ~all",
				},
			},
		}
		pool := dnscheck.NewPool([]dnscheck.Resolver{resolver})

		result := pool.Verify(s.ctx, record)

		s.True(result.Found)
		s.Equal("multi", result.ConfirmedBy)
	})

	s.Run("concatenates split chunks before comparison", func() {
		resolver := &fakeResolver{
			name: "chunked",
			txts: map[string][]string{
				"example.com": {"v=spf1 include:", "amazonses.com ~all"},
			},
		}
		pool := dnscheck.NewPool([]dnscheck.Resolver{resolver})

		result := pool.Verify(s.ctx, record)

		s.True(result.Found)
	})

	s.Run("falls through to the next resolver on mismatch", func() {
		wrong := &fakeResolver{
			name: "wrong",
			txts: map[string][]string{"example.com": {"v=spf1 -all"}},
		}
		right := &fakeResolver{
			name: "right",
			txts: map[string][]string{"example.com": {"v=spf1 include:amazonses.com ~all"}},
		}
		pool := dnscheck.NewPool([]dnscheck.Resolver{wrong, right})

		result := pool.Verify(s.ctx, record)

		s.True(result.Found)
		s.Equal("right", result.ConfirmedBy)
	})
}

func (s *PoolSuite) TestUnsupportedTypeSkipped() {
	record := models.DNSRecord{
		Type:     models.RecordTypeMX,
		Name:     "example.com",
		Value:    "10 inbound.example.com",
		Priority: 10,
	}
	pool := dnscheck.NewPool([]dnscheck.Resolver{&fakeResolver{name: "any"}})

	result := pool.Verify(s.ctx, record)

	s.True(result.Skipped)
	s.False(result.Found)
	s.Contains(result.Detail(), "skipped")
}

func (s *PoolSuite) TestVerifyAll() {
	resolver := &fakeResolver{
		name: "good",
		cnames: map[string]string{
			"tok._domainkey.example.com": "tok.dkim.amazonses.com",
		},
		txts: map[string][]string{
			"example.com":        {"v=spf1 include:amazonses.com ~all"},
			"_dmarc.example.com": {"v=DMARC1; p=none;"},
		},
	}
	pool := dnscheck.NewPool([]dnscheck.Resolver{resolver})

	records := []models.DNSRecord{
		{Type: models.RecordTypeCNAME, Name: "tok._domainkey.example.com", Value: "tok.dkim.amazonses.com"},
		{Type: models.RecordTypeTXT, Name: "example.com", Value: "v=spf1 include:amazonses.com ~all"},
		{Type: models.RecordTypeTXT, Name: "_dmarc.example.com", Value: "v=DMARC1; p=none;"},
	}

	s.Run("all records confirmed", func() {
		report := pool.VerifyAll(s.ctx, records)

		s.Require().Len(report.Results, 3)
		s.True(report.AllFound())
	})

	s.Run("one missing record fails the aggregate", func() {
		missing := append(records, models.DNSRecord{
			Type:  models.RecordTypeTXT,
			Name:  "selector2._domainkey.example.com",
			Value: "never propagated",
		})

		report := pool.VerifyAll(s.ctx, missing)

		s.Require().Len(report.Results, 4)
		s.False(report.AllFound())
		s.False(report.Results[3].Found)
	})

	s.Run("skipped records do not fail the aggregate", func() {
		withMX := append(records, models.DNSRecord{
			Type:  models.RecordTypeMX,
			Name:  "example.com",
			Value: "inbound.example.com",
		})

		report := pool.VerifyAll(s.ctx, withMX)

		s.True(report.AllFound())
	})
}

func (s *PoolSuite) TestQueryTimeoutOption() {
	// A resolver that honors context deadlines: it blocks until the
	// per-query timeout fires, so the pool must move on.
	slow := &slowResolver{delay: 500 * time.Millisecond}
	fast := &fakeResolver{
		name:   "fast",
		cnames: map[string]string{"tok._domainkey.example.com": "tok.dkim.amazonses.com"},
	}
	pool := dnscheck.NewPool(
		[]dnscheck.Resolver{slow, fast},
		dnscheck.WithQueryTimeout(10*time.Millisecond),
	)

	start := time.Now()
	result := pool.Verify(s.ctx, s.cnameRecord())

	s.True(result.Found)
	s.Equal("fast", result.ConfirmedBy)
	s.Less(time.Since(start), 400*time.Millisecond, "slow resolver must be cut off by the query timeout")
}

type slowResolver struct {
	delay time.Duration
}

func (r *slowResolver) Name() string { return "slow" }

func (r *slowResolver) LookupCNAME(ctx context.Context, _ string) (string, error) {
	select {
	case <-time.After(r.delay):
		return "", errors.New("too late")
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (r *slowResolver) LookupTXT(ctx context.Context, _ string) ([]string, error) {
	select {
	case <-time.After(r.delay):
		return nil, errors.New("too late")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
