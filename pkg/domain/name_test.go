package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "mailstead/pkg/domain-errors"
)

// TestParseDomainName_Normalization validates the storage invariant:
// domain names are persisted lowercase with no trailing dot.
func TestParseDomainName_Normalization(t *testing.T) {
	t.Run("lowercases input", func(t *testing.T) {
		name, err := ParseDomainName("Example.COM")
		require.NoError(t, err)
		assert.Equal(t, DomainName("example.com"), name)
	})

	t.Run("strips single trailing dot", func(t *testing.T) {
		name, err := ParseDomainName("mail.example.com.")
		require.NoError(t, err)
		assert.Equal(t, DomainName("mail.example.com"), name)
	})

	t.Run("trims surrounding whitespace", func(t *testing.T) {
		name, err := ParseDomainName("  example.com ")
		require.NoError(t, err)
		assert.Equal(t, DomainName("example.com"), name)
	})
}

func TestParseDomainName_Rejections(t *testing.T) {
	cases := map[string]string{
		"blank":               "",
		"whitespace only":     "   ",
		"bare dot":            ".",
		"single label":        "localhost",
		"empty label":         "mail..example.com",
		"leading hyphen":      "-mail.example.com",
		"trailing hyphen":     "mail-.example.com",
		"underscore":          "my_domain.example.com",
		"illegal characters":  "exa mple.com",
		"oversized name":      strings.Repeat("a", 250) + ".com",
		"oversized label":     strings.Repeat("a", 64) + ".com",
		"unicode":             "exämple.com",
		"scheme not a domain": "https://example.com",
	}
	for label, input := range cases {
		t.Run(label, func(t *testing.T) {
			_, err := ParseDomainName(input)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
		})
	}
}
