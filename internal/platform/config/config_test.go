package config

import (
	"testing"
	"time"
)

func TestFromEnvDefaults(t *testing.T) {
	// Blank out anything the host environment may carry.
	for _, key := range []string{
		"MAILSTEAD_ADDR", "VERIFY_INTERVAL", "VERIFY_TIMEOUT_WINDOW",
		"DNS_RESOLVERS", "DNS_QUERY_TIMEOUT", "PROVIDER_DKIM_SUFFIX",
		"AWS_ACCESS_KEY_ID", "AWS_SECRET_ACCESS_KEY",
		"CLOUDFLARE_API_TOKEN", "CLOUDFLARE_ZONE_ID",
	} {
		t.Setenv(key, "")
	}

	cfg := FromEnv()

	if cfg.Addr != ":8080" {
		t.Fatalf("expected default addr :8080, got %q", cfg.Addr)
	}
	if cfg.VerifyInterval != 5*time.Minute {
		t.Fatalf("expected default verify interval 5m, got %s", cfg.VerifyInterval)
	}
	if cfg.VerifyTimeoutWindow != 72*time.Hour {
		t.Fatalf("expected default timeout window 72h, got %s", cfg.VerifyTimeoutWindow)
	}
	if cfg.DNSQueryTimeout != 10*time.Second {
		t.Fatalf("expected default query timeout 10s, got %s", cfg.DNSQueryTimeout)
	}
	if len(cfg.DNSResolvers) != 2 {
		t.Fatalf("expected two default resolvers, got %v", cfg.DNSResolvers)
	}
	if cfg.ProviderDKIMSuffix != "amazonses.com" {
		t.Fatalf("expected default provider suffix, got %q", cfg.ProviderDKIMSuffix)
	}
	if cfg.AWS.Enabled() {
		t.Fatalf("expected AWS disabled without credentials")
	}
	if cfg.Cloudflare.Enabled() {
		t.Fatalf("expected Cloudflare disabled without a token")
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("MAILSTEAD_ADDR", ":9999")
	t.Setenv("VERIFY_INTERVAL", "30s")
	t.Setenv("VERIFY_TIMEOUT_WINDOW", "24h")
	t.Setenv("DNS_RESOLVERS", " 9.9.9.9:53 ,9.9.9.9:53, 8.8.4.4:53 ")
	t.Setenv("PROVIDER_DKIM_SUFFIX", "eu.amazonses.com")
	t.Setenv("KAFKA_BROKERS", "broker-1:9092,broker-2:9092")

	cfg := FromEnv()

	if cfg.Addr != ":9999" {
		t.Fatalf("expected addr override, got %q", cfg.Addr)
	}
	if cfg.VerifyInterval != 30*time.Second {
		t.Fatalf("expected 30s interval, got %s", cfg.VerifyInterval)
	}
	if cfg.VerifyTimeoutWindow != 24*time.Hour {
		t.Fatalf("expected 24h window, got %s", cfg.VerifyTimeoutWindow)
	}
	if len(cfg.DNSResolvers) != 2 || cfg.DNSResolvers[0] != "9.9.9.9:53" || cfg.DNSResolvers[1] != "8.8.4.4:53" {
		t.Fatalf("expected deduped trimmed resolvers, got %v", cfg.DNSResolvers)
	}
	if cfg.ProviderDKIMSuffix != "eu.amazonses.com" {
		t.Fatalf("expected suffix override, got %q", cfg.ProviderDKIMSuffix)
	}
	if len(cfg.KafkaBrokers) != 2 {
		t.Fatalf("expected two brokers, got %v", cfg.KafkaBrokers)
	}
}

func TestFromEnvMalformedDurationFallsBack(t *testing.T) {
	t.Setenv("VERIFY_INTERVAL", "often")

	cfg := FromEnv()
	if cfg.VerifyInterval != 5*time.Minute {
		t.Fatalf("expected fallback to default interval, got %s", cfg.VerifyInterval)
	}
}

func TestAWSConfigEnabled(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "AKIAEXAMPLE")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "secret")

	cfg := FromEnv()
	if !cfg.AWS.Enabled() {
		t.Fatalf("expected AWS enabled with both credentials set")
	}
}
