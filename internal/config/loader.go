package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load builds the runtime configuration in three layers: built-in
// defaults, then an optional TOML file, then BW_* environment
// variables. A missing file is not an error; a malformed one is.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, &cfg); err != nil {
				return nil, fmt.Errorf("parse config file %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("stat config file %s: %w", path, err)
		}
	}

	// .env is a convenience for local development. Ignore if absent.
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	setStr("BW_HTTP_ADDR", &cfg.Server.HTTPAddr)
	setStr("BW_METRICS_ADDR", &cfg.Server.MetricsAddr)
	setDuration("BW_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	setDuration("BW_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	setDuration("BW_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)

	setStr("BW_POSTGRES_DSN", &cfg.Postgres.DSN)
	setInt("BW_POSTGRES_MAX_OPEN_CONNS", &cfg.Postgres.MaxOpenConns)
	setInt("BW_POSTGRES_MAX_IDLE_CONNS", &cfg.Postgres.MaxIdleConns)
	setDuration("BW_POSTGRES_CONN_MAX_LIFETIME", &cfg.Postgres.ConnMaxLifetime)
	setStr("BW_MIGRATIONS_DIR", &cfg.Postgres.MigrationsDir)

	setStr("BW_NATS_URL", &cfg.NATS.URL)
	setBool("BW_NATS_ENABLED", &cfg.NATS.Enabled)
	setStr("BW_NATS_STREAM", &cfg.NATS.StreamName)
	setStr("BW_NATS_SUBJECT_PREFIX", &cfg.NATS.SubjectPrefix)
	setInt("BW_NATS_PUBLISH_BUFFER", &cfg.NATS.PublishBuffer)

	setStr("BW_ADMIN_ID", &cfg.Engine.AdminID)
	setStr("BW_REDEMPTION_POLICY", &cfg.Engine.RedemptionPolicy)
	setInt("BW_IDEMPOTENCY_CAPACITY", &cfg.Engine.IdempotencyCapacity)
	setInt("BW_PERSIST_BUFFER", &cfg.Engine.PersistBuffer)
	setInt("BW_PROJECTION_BUFFER", &cfg.Engine.ProjectionBuffer)
	setInt("BW_PERSIST_BATCH_SIZE", &cfg.Engine.PersistBatchSize)
	setDuration("BW_PERSIST_FLUSH_TIMEOUT", &cfg.Engine.PersistFlushTimeout)
	setInt64("BW_SNAPSHOT_INTERVAL", &cfg.Engine.SnapshotInterval)

	setInt64("BW_FEE_PROTOCOL_BPS", &cfg.Fees.ProtocolBps)
	setInt64("BW_FEE_LP_BPS", &cfg.Fees.LPBps)
	setInt64("BW_FEE_DRIP_PCT", &cfg.Fees.DripPct)
	setInt64("BW_FEE_BRC_PCT", &cfg.Fees.BrcPct)
	setInt64("BW_FEE_TEAM_PCT", &cfg.Fees.TeamPct)
	setBool("BW_FEE_LOCKED", &cfg.Fees.Locked)

	setStr("BW_LOG_LEVEL", &cfg.Log.Level)
}

func setStr(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(key string, dst *int64) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(key string, dst *time.Duration) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
