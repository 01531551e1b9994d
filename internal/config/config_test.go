package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"LoanLedger/internal/config"
)

const (
	adminHex    = "0xAAA0000000000000000000000000000000000001"
	treasuryHex = "0xAAA0000000000000000000000000000000000002"
	usdcHex     = "0x2222222222222222222222222222222222222222"
)

func validConfig() config.Config {
	cfg := config.Defaults()
	cfg.Deployment.Administrator = adminHex
	cfg.Deployment.Treasury = treasuryHex
	cfg.Deployment.USDCToken = usdcHex
	return cfg
}

// ============================================================================
// Test: Defaults and Validate
// ============================================================================

func TestDefaults(t *testing.T) {
	cfg := config.Defaults()

	if cfg.Deployment.AprBps != 2400 {
		t.Errorf("apr: got %d, want 2400", cfg.Deployment.AprBps)
	}
	if cfg.Deployment.PayoutDeadlineSeconds != 7200 {
		t.Errorf("deadline: got %d, want 7200", cfg.Deployment.PayoutDeadlineSeconds)
	}
	if cfg.Deployment.UsdIdrRate != "16000" {
		t.Errorf("rate: got %q, want 16000", cfg.Deployment.UsdIdrRate)
	}
	if cfg.Deployment.BlockCreateOnStaleFx {
		t.Error("stale fx blocking must default off")
	}
	if cfg.Persistence.BatchSize != 100 || cfg.Persistence.ChannelSize != 1024 {
		t.Errorf("persistence defaults: %+v", cfg.Persistence)
	}
}

func TestValidate_OK(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}
}

func TestValidate_Problems(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*config.Config)
		wantSub string
	}{
		{"missing admin", func(c *config.Config) { c.Deployment.Administrator = "" }, "administrator"},
		{"bad admin hex", func(c *config.Config) { c.Deployment.Administrator = "not-an-address" }, "administrator"},
		{"missing treasury", func(c *config.Config) { c.Deployment.Treasury = "" }, "treasury"},
		{"bad usdc hex", func(c *config.Config) { c.Deployment.USDCToken = "0xzz" }, "usdc_token"},
		{"missing usdc token", func(c *config.Config) { c.Deployment.USDCToken = "" }, "usdc_token"},
		{"zero usdc token", func(c *config.Config) {
			c.Deployment.USDCToken = "0x0000000000000000000000000000000000000000"
		}, "usdc_token"},
		{"apr over 100%", func(c *config.Config) { c.Deployment.AprBps = 10_001 }, "apr_bps"},
		{"zero deadline", func(c *config.Config) { c.Deployment.PayoutDeadlineSeconds = 0 }, "payout_deadline_seconds"},
		{"empty postgres url", func(c *config.Config) { c.Postgres.URL = "" }, "postgres.url"},
		{"nats enabled without url", func(c *config.Config) { c.NATS.URL = "" }, "nats.url"},
		{"zero batch size", func(c *config.Config) { c.Persistence.BatchSize = 0 }, "batch_size"},
	}

	for _, tc := range cases {
		cfg := validConfig()
		tc.mutate(&cfg)
		err := cfg.Validate()
		if err == nil {
			t.Errorf("%s: want error", tc.name)
			continue
		}
		if !strings.Contains(err.Error(), tc.wantSub) {
			t.Errorf("%s: error %q does not mention %q", tc.name, err, tc.wantSub)
		}
	}
}

func TestValidate_NATSDisabledSkipsURLCheck(t *testing.T) {
	cfg := validConfig()
	cfg.NATS.Enabled = false
	cfg.NATS.URL = ""
	if err := cfg.Validate(); err != nil {
		t.Errorf("disabled nats should not require a url: %v", err)
	}
}

// ============================================================================
// Test: Load
// ============================================================================

func TestLoad_TOMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
log_level = "debug"

[deployment]
administrator = "` + adminHex + `"
treasury = "` + treasuryHex + `"
apr_bps = 1800
usd_idr_rate = "16500"

[persistence]
batch_size = 250
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Deployment.AprBps != 1800 {
		t.Errorf("apr: got %d, want 1800", cfg.Deployment.AprBps)
	}
	if cfg.Deployment.UsdIdrRate != "16500" {
		t.Errorf("rate: got %q", cfg.Deployment.UsdIdrRate)
	}
	if cfg.Persistence.BatchSize != 250 {
		t.Errorf("batch size: got %d", cfg.Persistence.BatchSize)
	}
	// Untouched sections keep their defaults.
	if cfg.Server.APIAddr != ":8080" {
		t.Errorf("api addr: got %q, want default", cfg.Server.APIAddr)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("log level: got %q", cfg.LogLevel)
	}
}

func TestLoad_EnvOverridesTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
[deployment]
administrator = "` + adminHex + `"
treasury = "` + treasuryHex + `"
apr_bps = 1800
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("LOAN_APR_BPS", "3600")
	t.Setenv("LOAN_POSTGRES_URL", "postgres://db.internal:5432/loans")
	t.Setenv("LOAN_BLOCK_CREATE_ON_STALE_FX", "true")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Deployment.AprBps != 3600 {
		t.Errorf("apr: got %d, want env override 3600", cfg.Deployment.AprBps)
	}
	if cfg.Postgres.URL != "postgres://db.internal:5432/loans" {
		t.Errorf("postgres url: got %q", cfg.Postgres.URL)
	}
	if !cfg.Deployment.BlockCreateOnStaleFx {
		t.Error("stale fx blocking env override not applied")
	}
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Postgres.URL == "" || cfg.NATS.URL == "" {
		t.Error("defaults missing")
	}
}

func TestLoad_MissingFileErrors(t *testing.T) {
	if _, err := config.Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Error("want error for missing config file")
	}
}

func TestLoad_MalformedEnvValueIgnored(t *testing.T) {
	t.Setenv("LOAN_APR_BPS", "not-a-number")

	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Deployment.AprBps != 2400 {
		t.Errorf("apr: got %d, want default 2400", cfg.Deployment.AprBps)
	}
}
