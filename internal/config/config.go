// Package config defines the loan ledger's configuration and validation
// helpers.
package config

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by LOAN_* environment variables.
type Config struct {
	Postgres    PostgresConfig    `toml:"postgres"`
	NATS        NATSConfig        `toml:"nats"`
	Server      ServerConfig      `toml:"server"`
	Deployment  DeploymentConfig  `toml:"deployment"`
	Persistence PersistenceConfig `toml:"persistence"`
	LogLevel    string            `toml:"log_level"`
}

// PostgresConfig holds database connection parameters.
type PostgresConfig struct {
	URL           string `toml:"url"`
	MigrationsDir string `toml:"migrations_dir"`
	RunMigrations bool   `toml:"run_migrations"`
}

// NATSConfig holds messaging parameters.
type NATSConfig struct {
	URL     string `toml:"url"`
	Enabled bool   `toml:"enabled"`
}

// ServerConfig holds the HTTP API and metrics listener addresses.
type ServerConfig struct {
	APIAddr     string `toml:"api_addr"`
	MetricsAddr string `toml:"metrics_addr"`
}

// DeploymentConfig seeds the ledger's administrative parameters. Addresses
// are 0x-hex strings; UsdIdrRate is whole IDR per USD as a decimal string.
type DeploymentConfig struct {
	Administrator         string `toml:"administrator"`
	Treasury              string `toml:"treasury"`
	OracleAddress         string `toml:"oracle_address"`
	USDCToken             string `toml:"usdc_token"`
	AprBps                uint32 `toml:"apr_bps"`
	PayoutDeadlineSeconds uint64 `toml:"payout_deadline_seconds"`
	UsdIdrRate            string `toml:"usd_idr_rate"`

	// BlockCreateOnStaleFx rejects loan creation while the USD/IDR rate is
	// older than the staleness window.
	BlockCreateOnStaleFx bool `toml:"block_create_on_stale_fx"`
}

// PersistenceConfig tunes the Postgres batch writer.
type PersistenceConfig struct {
	BatchSize      int `toml:"batch_size"`
	FlushTimeoutMs int `toml:"flush_timeout_ms"`
	ChannelSize    int `toml:"channel_size"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Postgres: PostgresConfig{
			URL:           "postgres://localhost:5432/loanledger?sslmode=disable",
			MigrationsDir: "migrations",
			RunMigrations: true,
		},
		NATS: NATSConfig{
			URL:     "nats://localhost:4222",
			Enabled: true,
		},
		Server: ServerConfig{
			APIAddr:     ":8080",
			MetricsAddr: ":9090",
		},
		Deployment: DeploymentConfig{
			AprBps:                2400,
			PayoutDeadlineSeconds: 7200,
			UsdIdrRate:            "16000",
		},
		Persistence: PersistenceConfig{
			BatchSize:      100,
			FlushTimeoutMs: 50,
			ChannelSize:    1024,
		},
		LogLevel: "info",
	}
}

// Validate checks the configuration for obvious mistakes.
func (c *Config) Validate() error {
	var problems []string

	if c.Postgres.URL == "" {
		problems = append(problems, "postgres.url is required")
	}
	if c.NATS.Enabled && c.NATS.URL == "" {
		problems = append(problems, "nats.url is required when nats is enabled")
	}
	if c.Deployment.Administrator == "" || !common.IsHexAddress(c.Deployment.Administrator) {
		problems = append(problems, "deployment.administrator must be a hex address")
	}
	if c.Deployment.Treasury == "" || !common.IsHexAddress(c.Deployment.Treasury) {
		problems = append(problems, "deployment.treasury must be a hex address")
	}
	if c.Deployment.USDCToken == "" || !common.IsHexAddress(c.Deployment.USDCToken) {
		problems = append(problems, "deployment.usdc_token must be a hex address")
	} else if common.HexToAddress(c.Deployment.USDCToken) == (common.Address{}) {
		problems = append(problems, "deployment.usdc_token must not be the zero address")
	}
	if c.Deployment.AprBps > 10_000 {
		problems = append(problems, "deployment.apr_bps exceeds 100%")
	}
	if c.Deployment.PayoutDeadlineSeconds == 0 {
		problems = append(problems, "deployment.payout_deadline_seconds must be positive")
	}
	if c.Persistence.BatchSize <= 0 {
		problems = append(problems, "persistence.batch_size must be positive")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}
