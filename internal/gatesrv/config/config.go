// Package config holds the process configuration for the postgate service.
// Configuration is environment-first (DATABASE_URL, POSTGATE_HOST,
// POSTGATE_PORT) with an optional TOML file for the remaining knobs.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// ServerConfig holds the HTTP server configuration.
type ServerConfig struct {
	Host               string `toml:"host"`
	Port               string `toml:"port"`
	HandleCORS         bool   `toml:"handle_cors"`
	MaxRequestBodySize int64  `toml:"max_request_body_size"`
}

// LimitsConfig holds the execution limits applied to every query.
type LimitsConfig struct {
	QueryTimeout   string `toml:"query_timeout"`   // per-statement server-side timeout
	AcquireTimeout string `toml:"acquire_timeout"` // bounded wait for a pooled session
	DefaultMaxRows int    `toml:"default_max_rows"`
}

// GetQueryTimeout returns the query timeout as a duration.
func (l *LimitsConfig) GetQueryTimeout() time.Duration {
	d, err := time.ParseDuration(l.QueryTimeout)
	if err != nil {
		panic(fmt.Sprintf("invalid query timeout: %v", err))
	}
	return d
}

// GetAcquireTimeout returns the session acquisition timeout as a duration.
func (l *LimitsConfig) GetAcquireTimeout() time.Duration {
	d, err := time.ParseDuration(l.AcquireTimeout)
	if err != nil {
		panic(fmt.Sprintf("invalid acquire timeout: %v", err))
	}
	return d
}

// ConfigParam holds all configuration parameters for the postgate service.
type ConfigParam struct {
	Server ServerConfig `toml:"server"`
	Limits LimitsConfig `toml:"limits"`

	// DatabaseURL is the DSN to the host database. Required.
	DatabaseURL string `toml:"-"`
}

var cfg *ConfigParam

// Config returns the loaded configuration. LoadConfig must have been called.
func Config() *ConfigParam {
	if cfg == nil {
		panic("config not loaded")
	}
	return cfg
}

// TestInit installs a configuration for tests.
func TestInit(c *ConfigParam) {
	if c.Server.Host == "" {
		c.Server.Host = "127.0.0.1"
	}
	applyDefaults(c)
	cfg = c
}

// LoadConfig loads configuration from the optional TOML file at path (empty
// path skips the file), then applies environment overrides and defaults.
// DATABASE_URL (or the POSTGRES_* quintet) must resolve or an error is
// returned.
func LoadConfig(path string) error {
	c := &ConfigParam{}

	if path != "" {
		if _, err := toml.DecodeFile(path, c); err != nil {
			return fmt.Errorf("decoding config file %s: %w", path, err)
		}
	}

	if v := os.Getenv("POSTGATE_HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("POSTGATE_PORT"); v != "" {
		if _, err := strconv.Atoi(v); err != nil {
			return fmt.Errorf("invalid POSTGATE_PORT: %q", v)
		}
		c.Server.Port = v
	}

	dsn, err := resolveDatabaseURL()
	if err != nil {
		return err
	}
	c.DatabaseURL = dsn

	applyDefaults(c)
	cfg = c
	return nil
}

// resolveDatabaseURL returns DATABASE_URL, or assembles a DSN from the
// POSTGRES_* variables when it is unset.
func resolveDatabaseURL() (string, error) {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url, nil
	}

	host := os.Getenv("POSTGRES_HOST")
	port := os.Getenv("POSTGRES_PORT")
	user := os.Getenv("POSTGRES_USER")
	password := os.Getenv("POSTGRES_PASSWORD")
	dbname := os.Getenv("POSTGRES_DB")
	if host == "" || port == "" || user == "" || password == "" || dbname == "" {
		return "", fmt.Errorf("DATABASE_URL is not set and POSTGRES_* variables are incomplete")
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s", user, password, host, port, dbname), nil
}

func applyDefaults(c *ConfigParam) {
	if c.Server.Host == "" {
		c.Server.Host = "127.0.0.1"
	}
	if c.Server.Port == "" {
		c.Server.Port = "3000"
	}
	if c.Server.MaxRequestBodySize == 0 {
		c.Server.MaxRequestBodySize = 10 << 20
	}
	if c.Limits.QueryTimeout == "" {
		c.Limits.QueryTimeout = "30s"
	}
	if c.Limits.AcquireTimeout == "" {
		c.Limits.AcquireTimeout = "5s"
	}
	if c.Limits.DefaultMaxRows == 0 {
		c.Limits.DefaultMaxRows = 1000
	}
}
