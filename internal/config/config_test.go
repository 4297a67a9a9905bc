package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "backtest.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

// clearEnv blanks every variable applyEnvOverrides reads.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"DATA_DIR", "SQLITE_PATH", "STATIC_DATA_DIR", "LOG_LEVEL", "PORT",
		"ALPACA_API_KEY", "ALPACA_API_SECRET", "ALPACA_DATA_URL",
		"APCA_API_KEY_ID", "APCA_API_SECRET_KEY",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
storage:
  data_dir: "/tmp/backtestlab/data"
  sqlite_path: "/tmp/backtestlab/runs.db"
server:
  host: "127.0.0.1"
  port: 8081
  grpc_port: 9091
alpaca:
  api_key: "test-key"
  api_secret: "test-secret"
  data_url: "https://data.alpaca.markets"
logging:
  level: "debug"
  format: "text"
data:
  providers: ["static", "synthetic"]
  static_dir: "/tmp/static"
  cache_enabled: false
  cache_max_age: 2h
  rate_limit_per_min: 50
backtest:
  initial_capital: 25000
  risk_free_rate: 0.03
  periods_per_year: 365
  min_bars: 60
  max_bars: 5000
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	// -- Storage --
	if cfg.Storage.DataDir != "/tmp/backtestlab/data" {
		t.Errorf("Storage.DataDir = %q, want %q", cfg.Storage.DataDir, "/tmp/backtestlab/data")
	}
	if cfg.Storage.SQLitePath != "/tmp/backtestlab/runs.db" {
		t.Errorf("Storage.SQLitePath = %q, want %q", cfg.Storage.SQLitePath, "/tmp/backtestlab/runs.db")
	}

	// -- Server --
	if cfg.Server.Addr() != "127.0.0.1:8081" {
		t.Errorf("Server.Addr() = %q, want %q", cfg.Server.Addr(), "127.0.0.1:8081")
	}
	if cfg.Server.GRPCAddr() != "127.0.0.1:9091" {
		t.Errorf("Server.GRPCAddr() = %q, want %q", cfg.Server.GRPCAddr(), "127.0.0.1:9091")
	}

	// -- Alpaca --
	if cfg.Alpaca.APIKey != "test-key" {
		t.Errorf("Alpaca.APIKey = %q, want %q", cfg.Alpaca.APIKey, "test-key")
	}
	// Unset fields keep their defaults.
	if cfg.Alpaca.Feed != "iex" {
		t.Errorf("Alpaca.Feed = %q, want default %q", cfg.Alpaca.Feed, "iex")
	}

	// -- Logging --
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "text" {
		t.Errorf("Logging = %+v, want debug/text", cfg.Logging)
	}

	// -- Data --
	if len(cfg.Data.Providers) != 2 || cfg.Data.Providers[0] != "static" {
		t.Errorf("Data.Providers = %v, want [static synthetic]", cfg.Data.Providers)
	}
	if cfg.Data.CacheEnabled {
		t.Error("Data.CacheEnabled = true, want false")
	}
	if cfg.Data.CacheMaxAge != 2*time.Hour {
		t.Errorf("Data.CacheMaxAge = %s, want 2h", cfg.Data.CacheMaxAge)
	}
	if cfg.Data.MaxRetries != 3 {
		t.Errorf("Data.MaxRetries = %d, want default 3", cfg.Data.MaxRetries)
	}

	// -- Backtest --
	if cfg.Backtest.InitialCapital != 25000 {
		t.Errorf("Backtest.InitialCapital = %v, want 25000", cfg.Backtest.InitialCapital)
	}
	if cfg.Backtest.RiskFreeRate != 0.03 {
		t.Errorf("Backtest.RiskFreeRate = %v, want 0.03", cfg.Backtest.RiskFreeRate)
	}
	if cfg.Backtest.PeriodsPerYear != 365 || cfg.Backtest.MinBars != 60 || cfg.Backtest.MaxBars != 5000 {
		t.Errorf("Backtest = %+v", cfg.Backtest)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
alpaca:
  api_key: "yaml-key"
  api_secret: "yaml-secret"
storage:
  data_dir: "/original/data"
`)

	clearEnv(t)
	t.Setenv("ALPACA_API_KEY", "env-key")
	t.Setenv("DATA_DIR", "/env/data")
	t.Setenv("PORT", "7070")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Alpaca.APIKey != "env-key" {
		t.Errorf("Alpaca.APIKey = %q, want %q (env override)", cfg.Alpaca.APIKey, "env-key")
	}
	// api_secret should remain from YAML since no env override was set.
	if cfg.Alpaca.APISecret != "yaml-secret" {
		t.Errorf("Alpaca.APISecret = %q, want %q (from YAML)", cfg.Alpaca.APISecret, "yaml-secret")
	}
	if cfg.Storage.DataDir != "/env/data" {
		t.Errorf("Storage.DataDir = %q, want %q (env override)", cfg.Storage.DataDir, "/env/data")
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("Server.Port = %d, want 7070 (env override)", cfg.Server.Port)
	}

	t.Setenv("APCA_API_KEY_ID", "sdk-key")
	cfg, err = Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.Alpaca.APIKey != "sdk-key" {
		t.Errorf("Alpaca.APIKey = %q, want %q (APCA_API_KEY_ID wins)", cfg.Alpaca.APIKey, "sdk-key")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults are valid", func(*Config) {}, ""},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"zero capital", func(c *Config) { c.Backtest.InitialCapital = 0 }, "initial_capital"},
		{"zero periods", func(c *Config) { c.Backtest.PeriodsPerYear = 0 }, "periods_per_year"},
		{"max below min", func(c *Config) { c.Backtest.MaxBars = 10 }, "max_bars"},
		{"unknown provider", func(c *Config) { c.Data.Providers = []string{"bloomberg"} }, "unknown provider"},
		{"no providers", func(c *Config) { c.Data.Providers = nil }, "must not be empty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadOrDefault(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadOrDefault() returned error: %v", err)
	}
	if cfg.Backtest.InitialCapital != 100000 {
		t.Errorf("Backtest.InitialCapital = %v, want default 100000", cfg.Backtest.InitialCapital)
	}
}

func TestPath(t *testing.T) {
	t.Setenv("BACKTEST_CONFIG", "")
	if got := Path("config/backtest.yaml"); got != "config/backtest.yaml" {
		t.Errorf("Path() = %q, want fallback", got)
	}
	t.Setenv("BACKTEST_CONFIG", "/etc/backtest.yaml")
	if got := Path("config/backtest.yaml"); got != "/etc/backtest.yaml" {
		t.Errorf("Path() = %q, want %q", got, "/etc/backtest.yaml")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Load() of a missing file should fail")
	}
}
