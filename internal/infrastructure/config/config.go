// Package config loads ledger configuration from a TOML file and
// LEDGER_-prefixed environment variables, with environment taking priority.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all ledger configuration
type Config struct {
	App      AppConfig
	Ledger   LedgerConfig
	Store    StoreConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Log      LogConfig
	Outbox   OutboxConfig
}

// AppConfig holds application-level settings
type AppConfig struct {
	Name string
	Env  string
}

// LedgerConfig holds posting behavior settings
type LedgerConfig struct {
	// FunctionalCurrency, when set, makes the posting service convert every
	// entry into this currency. Empty disables conversion.
	FunctionalCurrency string
	// ConcurrencyRetries bounds reload-and-retry cycles after an optimistic
	// concurrency conflict.
	ConcurrencyRetries int
}

// StoreConfig selects the event store backend
type StoreConfig struct {
	// Backend is "memory", "sqlite" or "postgres"
	Backend string
	// SQLitePath is the database file for the sqlite backend
	SQLitePath string
}

// DatabaseConfig holds Postgres connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings for the stream publisher
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	Stream   string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// OutboxConfig holds outbox processor configuration
type OutboxConfig struct {
	ProcessorEnabled bool
	BatchSize        int
	PollInterval     time.Duration
	CleanupEnabled   bool
	CleanupRetention time.Duration
}

// Load reads configuration. Priority, highest first: LEDGER_-prefixed
// environment variables (e.g. LEDGER_DATABASE_PASSWORD), config.toml,
// built-in defaults.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/ledger")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// No config file is fine; defaults and env vars apply
	}

	v.SetEnvPrefix("LEDGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
		},
		Ledger: LedgerConfig{
			FunctionalCurrency: v.GetString("ledger.functional_currency"),
			ConcurrencyRetries: v.GetInt("ledger.concurrency_retries"),
		},
		Store: StoreConfig{
			Backend:    v.GetString("store.backend"),
			SQLitePath: v.GetString("store.sqlite_path"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
			Stream:   v.GetString("redis.stream"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Outbox: OutboxConfig{
			ProcessorEnabled: v.GetBool("outbox.processor_enabled"),
			BatchSize:        v.GetInt("outbox.batch_size"),
			PollInterval:     v.GetDuration("outbox.poll_interval"),
			CleanupEnabled:   v.GetBool("outbox.cleanup_enabled"),
			CleanupRetention: v.GetDuration("outbox.cleanup_retention"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "ledger"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.Ledger.ConcurrencyRetries == 0 {
		cfg.Ledger.ConcurrencyRetries = 3
	}
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = "memory"
	}
	if cfg.Store.SQLitePath == "" {
		cfg.Store.SQLitePath = "ledger.db"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "ledger"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.Outbox.BatchSize == 0 {
		cfg.Outbox.BatchSize = 100
	}
	if cfg.Outbox.PollInterval == 0 {
		cfg.Outbox.PollInterval = 5 * time.Second
	}
	if cfg.Outbox.CleanupRetention == 0 {
		cfg.Outbox.CleanupRetention = 168 * time.Hour
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	switch c.Store.Backend {
	case "memory", "sqlite", "postgres":
	default:
		return fmt.Errorf("store.backend must be memory, sqlite or postgres, got %q", c.Store.Backend)
	}
	if c.Ledger.FunctionalCurrency != "" && len(c.Ledger.FunctionalCurrency) != 3 {
		return fmt.Errorf("ledger.functional_currency must be a 3-letter ISO 4217 code, got %q", c.Ledger.FunctionalCurrency)
	}
	if c.Ledger.ConcurrencyRetries < 0 {
		return fmt.Errorf("ledger.concurrency_retries cannot be negative")
	}
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	if c.App.Env == "production" {
		if c.Store.Backend == "memory" {
			return fmt.Errorf("store.backend cannot be 'memory' in production")
		}
		if c.Store.Backend == "postgres" {
			if c.Database.Password == "" {
				return fmt.Errorf("database.password is required in production")
			}
			if c.Database.SSLMode == "disable" {
				return fmt.Errorf("database.sslmode cannot be 'disable' in production")
			}
		}
	}
	return nil
}

// DSN returns the Postgres connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Addr returns the Redis host:port address
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
