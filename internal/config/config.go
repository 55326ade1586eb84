// Package config loads surveyd settings.
//
// Values are layered, later sources winning:
//   - built-in defaults
//   - a YAML file named by --config or SURVEYD_CONFIG
//   - variables from a .env file (never overriding the real environment)
//   - SURVEYD_* environment variables
//   - command-line flags that were set explicitly
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"github.com/soaringjerry/surveyd/internal/utils"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverMongo    = "mongo"
)

type Config struct {
	// Addr is the HTTP listen address.
	Addr string `yaml:"addr"`
	// StaticDir, when set, is served at / for a bundled frontend.
	StaticDir string `yaml:"static_dir"`

	Store      StoreConfig      `yaml:"store"`
	Auth       AuthConfig       `yaml:"auth"`
	Summarizer SummarizerConfig `yaml:"summarizer"`
	Sweeper    SweeperConfig    `yaml:"sweeper"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
	Log        LogConfig        `yaml:"log"`

	// Build metadata, injected through the environment by the image.
	Commit    string `yaml:"-"`
	BuildTime string `yaml:"-"`
}

// StoreConfig selects and tunes the persistence backend.
type StoreConfig struct {
	// Driver is one of memory, sqlite, postgres, mysql or mongo.
	Driver string `yaml:"driver"`
	// DSN is a database/sql data source name, a sqlite file path or a mongodb:// URI.
	DSN string `yaml:"dsn"`
	// Database names the Mongo database. Ignored by other drivers.
	Database string `yaml:"database"`
	// MigrationsDir overrides the embedded SQL migrations when it contains
	// a directory for the active dialect.
	MigrationsDir string `yaml:"migrations_dir"`
	MaxOpenConns  int    `yaml:"max_open_conns"`
}

type AuthConfig struct {
	// JWTSecret signs survey admin tokens. When empty a random secret is
	// generated at startup and tokens do not survive restarts.
	JWTSecret  string        `yaml:"jwt_secret"`
	TokenTTL   time.Duration `yaml:"token_ttl"`
	BcryptCost int           `yaml:"bcrypt_cost"`
	// OverridePasswordHash is a bcrypt hash accepted for every survey.
	// Leave empty to disable the override.
	OverridePasswordHash string `yaml:"override_password_hash"`
}

type SummarizerConfig struct {
	Enabled   bool          `yaml:"enabled"`
	BaseURL   string        `yaml:"base_url"`
	APIKey    string        `yaml:"api_key"`
	Model     string        `yaml:"model"`
	Timeout   time.Duration `yaml:"timeout"`
	PerMinute int           `yaml:"per_minute"`
}

type SweeperConfig struct {
	// Schedule is a cron spec; empty disables the sweeper.
	Schedule string `yaml:"schedule"`
}

// RateLimitConfig bounds response submissions per client IP.
// A zero SubmitPerMinute disables the limit. TrustProxyHeaders keys the
// limit by X-Forwarded-For / X-Real-IP and must stay off unless a reverse
// proxy sets those headers.
type RateLimitConfig struct {
	SubmitPerMinute   int  `yaml:"submit_per_minute"`
	Burst             int  `yaml:"burst"`
	TrustProxyHeaders bool `yaml:"trust_proxy_headers"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used before any source is applied.
func Default() *Config {
	return &Config{
		Addr: ":8080",
		Store: StoreConfig{
			Driver:       DriverSQLite,
			DSN:          "data/surveyd.db",
			Database:     "surveyd",
			MaxOpenConns: 10,
		},
		Auth: AuthConfig{
			TokenTTL:   30 * time.Minute,
			BcryptCost: bcrypt.DefaultCost,
		},
		Summarizer: SummarizerConfig{
			Timeout:   30 * time.Second,
			PerMinute: 6,
		},
		Sweeper:   SweeperConfig{Schedule: "@every 1h"},
		RateLimit: RateLimitConfig{SubmitPerMinute: 30, Burst: 10},
		Log:       LogConfig{Level: "info", Format: "text"},
	}
}

// Load builds the configuration from args (without the program name) and
// the process environment. It returns pflag.ErrHelp when --help is given.
func Load(args []string) (*Config, error) {
	var (
		configPath string
		envFile    string
	)
	cfg := Default()
	flags := pflag.NewFlagSet("surveyd", pflag.ContinueOnError)
	flags.StringVar(&configPath, "config", "", "path to a YAML config file (default $SURVEYD_CONFIG)")
	flags.StringVar(&envFile, "env-file", ".env", "dotenv file loaded into the environment if present")
	addr := flags.String("addr", cfg.Addr, "HTTP listen address")
	driver := flags.String("store-driver", cfg.Store.Driver, "store driver: memory, sqlite, postgres, mysql or mongo")
	dsn := flags.String("store-dsn", cfg.Store.DSN, "store data source name or URI")
	migrations := flags.String("migrations-dir", "", "directory with per-dialect SQL migrations")
	logLevel := flags.String("log-level", cfg.Log.Level, "debug, info, warn or error")
	logFormat := flags.String("log-format", cfg.Log.Format, "text or json")
	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	if configPath == "" {
		configPath = utils.SafeEnv("SURVEYD_CONFIG", "")
	}
	if configPath != "" {
		if err := cfg.loadFile(configPath); err != nil {
			return nil, fmt.Errorf("load config %s: %w", configPath, err)
		}
	}
	cfg.applyEnv()

	if flags.Changed("addr") {
		cfg.Addr = *addr
	}
	if flags.Changed("store-driver") {
		cfg.Store.Driver = *driver
	}
	if flags.Changed("store-dsn") {
		cfg.Store.DSN = *dsn
	}
	if flags.Changed("migrations-dir") {
		cfg.Store.MigrationsDir = *migrations
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = *logLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = *logFormat
	}

	cfg.Store.Driver = strings.ToLower(strings.TrimSpace(cfg.Store.Driver))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, c)
}

func (c *Config) applyEnv() {
	c.Addr = utils.SafeEnv("SURVEYD_ADDR", c.Addr)
	c.StaticDir = utils.SafeEnv("SURVEYD_STATIC_DIR", c.StaticDir)

	c.Store.Driver = utils.SafeEnv("SURVEYD_STORE_DRIVER", c.Store.Driver)
	c.Store.DSN = utils.SafeEnv("SURVEYD_STORE_DSN", c.Store.DSN)
	c.Store.Database = utils.SafeEnv("SURVEYD_MONGO_DATABASE", c.Store.Database)
	c.Store.MigrationsDir = utils.SafeEnv("SURVEYD_MIGRATIONS_DIR", c.Store.MigrationsDir)
	c.Store.MaxOpenConns = utils.SafeEnvInt("SURVEYD_MAX_OPEN_CONNS", c.Store.MaxOpenConns)

	c.Auth.JWTSecret = utils.SafeEnv("SURVEYD_JWT_SECRET", c.Auth.JWTSecret)
	c.Auth.TokenTTL = utils.SafeEnvDuration("SURVEYD_TOKEN_TTL", c.Auth.TokenTTL)
	c.Auth.BcryptCost = utils.SafeEnvInt("SURVEYD_BCRYPT_COST", c.Auth.BcryptCost)
	c.Auth.OverridePasswordHash = utils.SafeEnv("SURVEYD_OVERRIDE_HASH", c.Auth.OverridePasswordHash)

	c.Summarizer.Enabled = utils.SafeEnvBool("SURVEYD_SUMMARY_ENABLED", c.Summarizer.Enabled)
	c.Summarizer.BaseURL = utils.SafeEnv("SURVEYD_SUMMARY_BASE_URL", c.Summarizer.BaseURL)
	c.Summarizer.APIKey = utils.SafeEnv("SURVEYD_SUMMARY_API_KEY", c.Summarizer.APIKey)
	c.Summarizer.Model = utils.SafeEnv("SURVEYD_SUMMARY_MODEL", c.Summarizer.Model)
	c.Summarizer.Timeout = utils.SafeEnvDuration("SURVEYD_SUMMARY_TIMEOUT", c.Summarizer.Timeout)
	c.Summarizer.PerMinute = utils.SafeEnvInt("SURVEYD_SUMMARY_PER_MINUTE", c.Summarizer.PerMinute)

	c.Sweeper.Schedule = utils.SafeEnv("SURVEYD_SWEEP_SCHEDULE", c.Sweeper.Schedule)
	c.RateLimit.SubmitPerMinute = utils.SafeEnvInt("SURVEYD_SUBMIT_PER_MINUTE", c.RateLimit.SubmitPerMinute)
	c.RateLimit.Burst = utils.SafeEnvInt("SURVEYD_SUBMIT_BURST", c.RateLimit.Burst)
	c.RateLimit.TrustProxyHeaders = utils.SafeEnvBool("SURVEYD_TRUST_PROXY_HEADERS", c.RateLimit.TrustProxyHeaders)

	c.Log.Level = utils.SafeEnv("SURVEYD_LOG_LEVEL", c.Log.Level)
	c.Log.Format = utils.SafeEnv("SURVEYD_LOG_FORMAT", c.Log.Format)

	c.Commit = utils.SafeEnv("SURVEYD_COMMIT", c.Commit)
	c.BuildTime = utils.SafeEnv("SURVEYD_BUILD_TIME", c.BuildTime)
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Addr) == "" {
		errs = append(errs, errors.New("addr is required"))
	}
	switch c.Store.Driver {
	case DriverMemory:
	case DriverSQLite, DriverPostgres, DriverMySQL:
		if c.Store.DSN == "" {
			errs = append(errs, fmt.Errorf("store.dsn is required for driver %s", c.Store.Driver))
		}
	case DriverMongo:
		if !strings.HasPrefix(c.Store.DSN, "mongodb://") && !strings.HasPrefix(c.Store.DSN, "mongodb+srv://") {
			errs = append(errs, errors.New("store.dsn must be a mongodb:// URI for driver mongo"))
		}
		if c.Store.Database == "" {
			errs = append(errs, errors.New("store.database is required for driver mongo"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store.driver %q", c.Store.Driver))
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("auth.token_ttl must be positive"))
	}
	if c.Auth.BcryptCost < bcrypt.MinCost || c.Auth.BcryptCost > bcrypt.MaxCost {
		errs = append(errs, fmt.Errorf("auth.bcrypt_cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost))
	}
	if h := c.Auth.OverridePasswordHash; h != "" {
		if _, err := bcrypt.Cost([]byte(h)); err != nil {
			errs = append(errs, fmt.Errorf("auth.override_password_hash: %w", err))
		}
	}
	if c.Summarizer.Enabled && c.Summarizer.APIKey == "" && c.Summarizer.BaseURL == "" {
		errs = append(errs, errors.New("summarizer needs base_url or api_key when enabled"))
	}
	if c.RateLimit.SubmitPerMinute < 0 || c.RateLimit.Burst < 0 {
		errs = append(errs, errors.New("rate_limit values must not be negative"))
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if f := c.Log.Format; f != "text" && f != "json" {
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", f))
	}
	return errors.Join(errs...)
}

// NewLogger builds the process logger described by c.
func (c LogConfig) NewLogger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}
