package config

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load([]string{"--env-file="})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":8080" || cfg.Store.Driver != DriverSQLite || cfg.Auth.TokenTTL != 30*time.Minute {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Summarizer.Enabled {
		t.Fatalf("summarizer must be off by default")
	}
	if cfg.RateLimit.TrustProxyHeaders {
		t.Fatalf("proxy headers must not be trusted by default")
	}
}

func TestTrustProxyHeaders(t *testing.T) {
	file := writeFile(t, "surveyd.yaml", "rate_limit:\n  trust_proxy_headers: true\n")
	cfg, err := Load([]string{"--env-file=", "--config", file})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.RateLimit.TrustProxyHeaders {
		t.Fatalf("trust_proxy_headers not read from file")
	}

	t.Setenv("SURVEYD_TRUST_PROXY_HEADERS", "false")
	cfg, err = Load([]string{"--env-file=", "--config", file})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RateLimit.TrustProxyHeaders {
		t.Fatalf("environment must override the file")
	}
}

func TestLoadLayering(t *testing.T) {
	file := writeFile(t, "surveyd.yaml", `
addr: ":9000"
store:
  driver: postgres
  dsn: postgres://file
auth:
  token_ttl: 10m
log:
  level: debug
`)
	t.Setenv("SURVEYD_STORE_DSN", "postgres://env")
	t.Setenv("SURVEYD_SUBMIT_PER_MINUTE", "5")

	cfg, err := Load([]string{"--env-file=", "--config", file, "--log-format", "json"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":9000" {
		t.Fatalf("addr = %q, want value from file", cfg.Addr)
	}
	if cfg.Store.Driver != DriverPostgres || cfg.Store.DSN != "postgres://env" {
		t.Fatalf("store = %+v, want env dsn over file", cfg.Store)
	}
	if cfg.Auth.TokenTTL != 10*time.Minute || cfg.RateLimit.SubmitPerMinute != 5 {
		t.Fatalf("ttl/rate = %v/%d", cfg.Auth.TokenTTL, cfg.RateLimit.SubmitPerMinute)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Fatalf("log = %+v", cfg.Log)
	}
}

func TestFlagsBeatEnvironment(t *testing.T) {
	t.Setenv("SURVEYD_ADDR", ":7000")
	cfg, err := Load([]string{"--env-file=", "--addr", ":7001", "--store-driver", "MEMORY"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":7001" || cfg.Store.Driver != DriverMemory {
		t.Fatalf("addr=%q driver=%q", cfg.Addr, cfg.Store.Driver)
	}
}

func TestConfigFileFromEnvironment(t *testing.T) {
	file := writeFile(t, "c.yaml", "store:\n  driver: memory\n")
	t.Setenv("SURVEYD_CONFIG", file)
	cfg, err := Load([]string{"--env-file="})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Store.Driver != DriverMemory {
		t.Fatalf("driver = %q", cfg.Store.Driver)
	}
}

func TestDotEnvDoesNotOverrideEnvironment(t *testing.T) {
	env := writeFile(t, ".env", "SURVEYD_SWEEP_SCHEDULE=@daily\nSURVEYD_LOG_LEVEL=warn\n")
	t.Setenv("SURVEYD_LOG_LEVEL", "error")
	cfg, err := Load([]string{"--env-file", env})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	t.Cleanup(func() { _ = os.Unsetenv("SURVEYD_SWEEP_SCHEDULE") })
	if cfg.Sweeper.Schedule != "@daily" || cfg.Log.Level != "error" {
		t.Fatalf("schedule=%q level=%q", cfg.Sweeper.Schedule, cfg.Log.Level)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load([]string{"--help"}); !errors.Is(err, pflag.ErrHelp) {
		t.Fatalf("want ErrHelp, got %v", err)
	}
	if _, err := Load([]string{"--env-file=", "--config", filepath.Join(t.TempDir(), "missing.yaml")}); err == nil {
		t.Fatalf("missing config file must fail")
	}
	bad := writeFile(t, "bad.yaml", "store: [\n")
	if _, err := Load([]string{"--env-file=", "--config", bad}); err == nil {
		t.Fatalf("malformed yaml must fail")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown driver", func(c *Config) { c.Store.Driver = "redis" }, "unknown store.driver"},
		{"sql without dsn", func(c *Config) { c.Store.Driver = DriverMySQL; c.Store.DSN = "" }, "store.dsn is required"},
		{"mongo uri", func(c *Config) { c.Store.Driver = DriverMongo; c.Store.DSN = "localhost" }, "mongodb:// URI"},
		{"bcrypt cost", func(c *Config) { c.Auth.BcryptCost = 2 }, "bcrypt_cost"},
		{"override hash", func(c *Config) { c.Auth.OverridePasswordHash = "plaintext" }, "override_password_hash"},
		{"summarizer", func(c *Config) { c.Summarizer.Enabled = true }, "summarizer needs"},
		{"log level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("validate = %v, want mention of %q", err, tc.want)
			}
		})
	}
	if err := Default().Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := LogConfig{Level: "warn", Format: "json"}.NewLogger(&buf)
	logger.Info("hidden")
	logger.Warn("shown", "k", 1)
	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, `"msg":"shown"`) {
		t.Fatalf("log output = %q", out)
	}
}
