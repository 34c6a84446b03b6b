package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bitcoinworldapp/bitcoin-world-app/internal/config"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := config.Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if got, want := cfg.Engine.RedemptionPolicy, "pro-rata"; got != want {
		t.Errorf("default redemption policy = %q, want %q", got, want)
	}
	if cfg.Fees.DripPct+cfg.Fees.BrcPct+cfg.Fees.TeamPct != 100 {
		t.Error("default fee split must sum to 100")
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("Load with missing file: %v", err)
	}
	if got, want := cfg.Server.HTTPAddr, ":8080"; got != want {
		t.Errorf("HTTPAddr = %q, want %q", got, want)
	}
}

func TestLoadTOMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bw.toml")
	body := `
[server]
http_addr = ":9999"

[engine]
redemption_policy = "flat"
admin_id = "c0ffee00-0000-4000-8000-000000000001"

[fees]
protocol_bps = 200
lp_bps = 100
drip_pct = 50
brc_pct = 30
team_pct = 20
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got, want := cfg.Server.HTTPAddr, ":9999"; got != want {
		t.Errorf("HTTPAddr = %q, want %q", got, want)
	}
	if got, want := cfg.Engine.RedemptionPolicy, "flat"; got != want {
		t.Errorf("RedemptionPolicy = %q, want %q", got, want)
	}
	if cfg.AdminUUID().String() != "c0ffee00-0000-4000-8000-000000000001" {
		t.Errorf("AdminUUID = %s", cfg.AdminUUID())
	}
	if got, want := cfg.Fees.ProtocolBps, int64(200); got != want {
		t.Errorf("ProtocolBps = %d, want %d", got, want)
	}
	// Untouched sections keep defaults.
	if got, want := cfg.Postgres.MaxOpenConns, 20; got != want {
		t.Errorf("MaxOpenConns = %d, want %d", got, want)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bw.toml")
	if err := os.WriteFile(path, []byte("[server]\nhttp_addr = \":9999\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("BW_HTTP_ADDR", ":7777")
	t.Setenv("BW_PERSIST_BUFFER", "512")
	t.Setenv("BW_NATS_ENABLED", "false")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got, want := cfg.Server.HTTPAddr, ":7777"; got != want {
		t.Errorf("HTTPAddr = %q, want %q (env must beat file)", got, want)
	}
	if got, want := cfg.Engine.PersistBuffer, 512; got != want {
		t.Errorf("PersistBuffer = %d, want %d", got, want)
	}
	if cfg.NATS.Enabled {
		t.Error("NATS.Enabled should be false from env")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
		frag   string
	}{
		{"bad policy", func(c *config.Config) { c.Engine.RedemptionPolicy = "lifo" }, "redemption_policy"},
		{"bad admin id", func(c *config.Config) { c.Engine.AdminID = "not-a-uuid" }, "admin_id"},
		{"split not 100", func(c *config.Config) { c.Fees.TeamPct = 99 }, "equal 100"},
		{"bps over cap", func(c *config.Config) { c.Fees.ProtocolBps = 10_001 }, "protocol_bps"},
		{"bad log level", func(c *config.Config) { c.Log.Level = "loud" }, "log.level"},
		{"empty dsn", func(c *config.Config) { c.Postgres.DSN = "" }, "postgres.dsn"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Defaults()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate should fail")
			}
			if !strings.Contains(err.Error(), tc.frag) {
				t.Errorf("error %q does not mention %q", err, tc.frag)
			}
		})
	}
}
