// Package config loads rosterd settings from a YAML file with environment
// variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config is the top-level rosterd.yaml document.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Store   StoreConfig   `yaml:"store"`
	Redis   RedisConfig   `yaml:"redis"`
	Engine  EngineConfig  `yaml:"engine"`
	Logging LoggingConfig `yaml:"logging"`
}

type ServerConfig struct {
	Port         string        `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// StoreConfig selects and configures the roster store.
type StoreConfig struct {
	Driver   string         `yaml:"driver"`
	Postgres PostgresConfig `yaml:"postgres"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
}

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	DBName          string        `yaml:"dbname"`
	SSLMode         string        `yaml:"sslmode"`
	MaxConns        int32         `yaml:"max_conns"`
	MinConns        int32         `yaml:"min_conns"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time"`
}

// DSN builds a libpq-compatible connection string.
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// RedisConfig points at the redis instance backing the display surface.
type RedisConfig struct {
	URL       string `yaml:"url"`
	KeyPrefix string `yaml:"key_prefix"`
}

// EngineConfig tunes roster engine behaviour.
type EngineConfig struct {
	// BlockClaimsWhenLocked also refuses fresh claims once the lock window engaged.
	BlockClaimsWhenLocked bool          `yaml:"block_claims_when_locked"`
	RetentionDays         int           `yaml:"retention_days"`
	SweepInterval         time.Duration `yaml:"sweep_interval"`
}

// Retention returns how long after its start a roster is kept.
func (c EngineConfig) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         "8080",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Store: StoreConfig{
			Driver: DriverPostgres,
			Postgres: PostgresConfig{
				Host:            "localhost",
				Port:            "5432",
				User:            "postgres",
				Password:        "postgres",
				DBName:          "guildroster",
				SSLMode:         "disable",
				MaxConns:        20,
				MinConns:        2,
				MaxConnLifetime: 30 * time.Minute,
				MaxConnIdleTime: 5 * time.Minute,
			},
			SQLite: SQLiteConfig{Path: "guildroster.db"},
		},
		Redis: RedisConfig{
			URL:       "redis://localhost:6379/0",
			KeyPrefix: "roster",
		},
		Engine: EngineConfig{
			RetentionDays: 7,
			SweepInterval: time.Hour,
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

// Load reads path (if it exists) over the defaults, then applies environment
// overrides and validates the result. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.Server.Port = getEnv("PORT", c.Server.Port)

	c.Store.Driver = getEnv("STORE_DRIVER", c.Store.Driver)
	pg := &c.Store.Postgres
	pg.Host = getEnv("DB_HOST", pg.Host)
	pg.Port = getEnv("DB_PORT", pg.Port)
	pg.User = getEnv("DB_USER", pg.User)
	pg.Password = getEnv("DB_PASSWORD", pg.Password)
	pg.DBName = getEnv("DB_NAME", pg.DBName)
	pg.SSLMode = getEnv("DB_SSLMODE", pg.SSLMode)
	c.Store.SQLite.Path = getEnv("SQLITE_PATH", c.Store.SQLite.Path)

	c.Redis.URL = getEnv("REDIS_URL", c.Redis.URL)
	c.Logging.Level = getEnv("LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = getEnv("LOG_FORMAT", c.Logging.Format)

	if v := os.Getenv("BLOCK_CLAIMS_WHEN_LOCKED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("BLOCK_CLAIMS_WHEN_LOCKED: %w", err)
		}
		c.Engine.BlockClaimsWhenLocked = b
	}
	return nil
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverPostgres:
		if c.Store.Postgres.Host == "" || c.Store.Postgres.DBName == "" {
			return fmt.Errorf("store.postgres: host and dbname are required")
		}
		if c.Store.Postgres.MaxConns <= 0 {
			return fmt.Errorf("store.postgres.max_conns must be positive, got %d", c.Store.Postgres.MaxConns)
		}
	case DriverSQLite:
		if c.Store.SQLite.Path == "" {
			return fmt.Errorf("store.sqlite.path is required")
		}
	default:
		return fmt.Errorf("unsupported store driver: %q (expected %s or %s)", c.Store.Driver, DriverPostgres, DriverSQLite)
	}
	if c.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}
	if c.Redis.URL == "" {
		return fmt.Errorf("redis.url is required")
	}
	if c.Engine.RetentionDays <= 0 {
		return fmt.Errorf("engine.retention_days must be positive, got %d", c.Engine.RetentionDays)
	}
	if c.Engine.SweepInterval < 0 {
		return fmt.Errorf("engine.sweep_interval cannot be negative")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
