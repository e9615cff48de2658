package models_test

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"mailstead/internal/domain/models"
	id "mailstead/pkg/domain"
)

type DNSRecordSuite struct {
	suite.Suite
	name id.DomainName
}

func TestDNSRecordSuite(t *testing.T) {
	suite.Run(t, new(DNSRecordSuite))
}

func (s *DNSRecordSuite) SetupTest() {
	name, err := id.ParseDomainName("example.com")
	s.Require().NoError(err)
	s.name = name
}

func (s *DNSRecordSuite) TestExpectedRecordsFor() {
	tokens := []string{"tok1", "tok2", "tok3"}

	records := models.ExpectedRecordsFor(s.name, tokens, "amazonses.com")

	s.Require().Len(records, 5)

	s.Run("one DKIM CNAME per token", func() {
		for i, token := range tokens {
			rec := records[i]
			s.Equal(models.RecordTypeCNAME, rec.Type)
			s.Equal(token+"._domainkey.example.com", rec.Name)
			s.Equal(token+".dkim.amazonses.com", rec.Value)
		}
	})

	s.Run("SPF TXT at the apex", func() {
		rec := records[3]
		s.Equal(models.RecordTypeTXT, rec.Type)
		s.Equal("example.com", rec.Name)
		s.Equal("v=spf1 include:amazonses.com ~all", rec.Value)
	})

	s.Run("DMARC TXT under _dmarc", func() {
		rec := records[4]
		s.Equal(models.RecordTypeTXT, rec.Type)
		s.Equal("_dmarc.example.com", rec.Name)
		s.Equal("v=DMARC1; p=none;", rec.Value)
	})
}

func (s *DNSRecordSuite) TestExpectedRecordsForNoTokens() {
	records := models.ExpectedRecordsFor(s.name, nil, "amazonses.com")

	s.Require().Len(records, 2)
	s.Equal("example.com", records[0].Name)
	s.Equal("_dmarc.example.com", records[1].Name)
}
