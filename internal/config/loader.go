package config

import (
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies LOAN_* environment variable overrides, and
// returns the final Config. The caller should invoke Config.Validate() after
// Load. An empty path skips the TOML file and uses defaults plus env.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known LOAN_* environment variables and
// overwrites the corresponding Config fields when a variable is set. Lets
// operators inject secrets at deploy time without touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Postgres.URL, "LOAN_POSTGRES_URL")
	setStr(&cfg.Postgres.MigrationsDir, "LOAN_MIGRATIONS_DIR")
	setBool(&cfg.Postgres.RunMigrations, "LOAN_RUN_MIGRATIONS")

	setStr(&cfg.NATS.URL, "LOAN_NATS_URL")
	setBool(&cfg.NATS.Enabled, "LOAN_NATS_ENABLED")

	setStr(&cfg.Server.APIAddr, "LOAN_API_ADDR")
	setStr(&cfg.Server.MetricsAddr, "LOAN_METRICS_ADDR")

	setStr(&cfg.Deployment.Administrator, "LOAN_ADMINISTRATOR")
	setStr(&cfg.Deployment.Treasury, "LOAN_TREASURY")
	setStr(&cfg.Deployment.OracleAddress, "LOAN_ORACLE_ADDRESS")
	setStr(&cfg.Deployment.USDCToken, "LOAN_USDC_TOKEN")
	setUint32(&cfg.Deployment.AprBps, "LOAN_APR_BPS")
	setUint64(&cfg.Deployment.PayoutDeadlineSeconds, "LOAN_PAYOUT_DEADLINE_SECONDS")
	setStr(&cfg.Deployment.UsdIdrRate, "LOAN_USD_IDR_RATE")
	setBool(&cfg.Deployment.BlockCreateOnStaleFx, "LOAN_BLOCK_CREATE_ON_STALE_FX")

	setInt(&cfg.Persistence.BatchSize, "LOAN_PERSIST_BATCH_SIZE")
	setInt(&cfg.Persistence.FlushTimeoutMs, "LOAN_PERSIST_FLUSH_TIMEOUT_MS")
	setInt(&cfg.Persistence.ChannelSize, "LOAN_PERSIST_CHANNEL_SIZE")

	setStr(&cfg.LogLevel, "LOAN_LOG_LEVEL")
}

// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setUint32(dst *uint32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			*dst = uint32(n)
		}
	}
}

func setUint64(dst *uint64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
