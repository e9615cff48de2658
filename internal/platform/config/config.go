// Package config reads process configuration from the environment so
// main stays lean. Every infrastructure setting is optional: unset
// backends fall back to in-memory implementations, which is how dev
// mode and most tests run.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	platformstrings "mailstead/pkg/platform/strings"
)

// Config holds the full process configuration, read once at startup and
// treated as immutable.
type Config struct {
	// Server
	Addr     string
	LogLevel string

	// Backends. Empty values select the in-memory fallback.
	DatabaseURL  string
	RedisURL     string
	KafkaBrokers []string
	KafkaTopic   string

	// Email provider (Amazon SES). Unset credentials select the mock
	// gateway.
	AWS AWSConfig

	// DNS zone management (Cloudflare). Unset token selects the mock
	// gateway.
	Cloudflare CloudflareConfig

	// Verification behavior.
	VerifyInterval      time.Duration
	VerifyTimeoutWindow time.Duration
	DNSResolvers        []string
	DNSQueryTimeout     time.Duration
	ProviderDKIMSuffix  string

	// AuditBuffer sizes the async audit writer; zero means synchronous
	// emission.
	AuditBuffer int
}

// AWSConfig carries SES credentials and addressing.
type AWSConfig struct {
	Region    string
	AccessKey string
	SecretKey string
	AccountID string
}

// Enabled reports whether real SES credentials were supplied.
func (c AWSConfig) Enabled() bool {
	return c.AccessKey != "" && c.SecretKey != ""
}

// CloudflareConfig addresses the managed DNS zone.
type CloudflareConfig struct {
	APIToken string
	ZoneID   string
}

// Enabled reports whether a real Cloudflare zone was supplied.
func (c CloudflareConfig) Enabled() bool {
	return c.APIToken != "" && c.ZoneID != ""
}

// FromEnv builds the Config from environment variables, applying
// defaults for everything unset or unparseable.
func FromEnv() Config {
	return Config{
		Addr:     getEnvString("MAILSTEAD_ADDR", ":8080"),
		LogLevel: getEnvString("LOG_LEVEL", "info"),

		DatabaseURL:  os.Getenv("DATABASE_URL"),
		RedisURL:     os.Getenv("REDIS_URL"),
		KafkaBrokers: getEnvList("KAFKA_BROKERS"),
		KafkaTopic:   getEnvString("KAFKA_AUDIT_TOPIC", "mailstead.audit.events"),

		AWS: AWSConfig{
			Region:    getEnvString("AWS_REGION", "us-east-1"),
			AccessKey: os.Getenv("AWS_ACCESS_KEY_ID"),
			SecretKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
			AccountID: os.Getenv("AWS_ACCOUNT_ID"),
		},

		Cloudflare: CloudflareConfig{
			APIToken: os.Getenv("CLOUDFLARE_API_TOKEN"),
			ZoneID:   os.Getenv("CLOUDFLARE_ZONE_ID"),
		},

		VerifyInterval:      getEnvDuration("VERIFY_INTERVAL", 5*time.Minute),
		VerifyTimeoutWindow: getEnvDuration("VERIFY_TIMEOUT_WINDOW", 72*time.Hour),
		DNSResolvers:        getEnvListDefault("DNS_RESOLVERS", []string{"8.8.8.8:53", "1.1.1.1:53"}),
		DNSQueryTimeout:     getEnvDuration("DNS_QUERY_TIMEOUT", 10*time.Second),
		ProviderDKIMSuffix:  getEnvString("PROVIDER_DKIM_SUFFIX", "amazonses.com"),

		AuditBuffer: getEnvInt("AUDIT_BUFFER", 256),
	}
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

// getEnvList splits a comma-separated variable, dropping blanks and
// duplicates.
func getEnvList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	return platformstrings.DedupeAndTrim(strings.Split(v, ","))
}

func getEnvListDefault(key string, defaultVal []string) []string {
	if list := getEnvList(key); len(list) > 0 {
		return list
	}
	return defaultVal
}
