// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package config loads postdesk settings from the environment.
package config

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/olegiv/postdesk/internal/util"
)

// Database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

// Session backends.
const (
	SessionMemory = "memory"
	SessionSQL    = "sql"
	SessionRedis  = "redis"
)

// knownWeakSecrets contains default/example secrets that must be rejected in production.
var knownWeakSecrets = []string{
	"change-me-to-32-byte-secret-key!",
	"REPLACE_WITH_YOUR_OWN_SECRET_KEY!",
}

// Config holds the application configuration loaded from environment variables.
type Config struct {
	Env        string `env:"POSTDESK_ENV" envDefault:"development"`
	LogLevel   string `env:"POSTDESK_LOG_LEVEL" envDefault:"info"`
	ServerHost string `env:"POSTDESK_SERVER_HOST" envDefault:"localhost"`
	ServerPort int    `env:"POSTDESK_SERVER_PORT" envDefault:"8080"`

	// RequestTimeout bounds every request handled by the router.
	RequestTimeout time.Duration `env:"POSTDESK_REQUEST_TIMEOUT" envDefault:"30s"`

	// Database configuration
	DBDriver          string        `env:"POSTDESK_DB_DRIVER" envDefault:"sqlite"`
	DBDSN             string        `env:"POSTDESK_DB_DSN" envDefault:"./data/postdesk.db"`
	DBMaxOpenConns    int           `env:"POSTDESK_DB_MAX_OPEN_CONNS" envDefault:"25"`
	DBMaxIdleConns    int           `env:"POSTDESK_DB_MAX_IDLE_CONNS" envDefault:"10"`
	DBConnMaxLifetime time.Duration `env:"POSTDESK_DB_CONN_MAX_LIFETIME" envDefault:"30m"`
	DBAcquireTimeout  time.Duration `env:"POSTDESK_DB_ACQUIRE_TIMEOUT" envDefault:"5s"` // Wait for a pooled connection

	// Session configuration
	SessionBackend string `env:"POSTDESK_SESSION_BACKEND" envDefault:"sql"`
	SessionSecret  string `env:"POSTDESK_SESSION_SECRET,required"`
	RedisURL       string `env:"POSTDESK_REDIS_URL"`
	RedisPrefix    string `env:"POSTDESK_REDIS_PREFIX" envDefault:"postdesk:session:"`

	// Login protection
	LoginMaxFailures int           `env:"POSTDESK_LOGIN_MAX_FAILURES" envDefault:"5"`
	LoginWindow      time.Duration `env:"POSTDESK_LOGIN_WINDOW" envDefault:"5m"`
	IPRateLimit      float64       `env:"POSTDESK_IP_RATE_LIMIT" envDefault:"10"` // Requests per second per IP on login
	IPBurst          int           `env:"POSTDESK_IP_BURST" envDefault:"20"`

	// TrustedProxies are CIDR ranges or addresses of reverse proxies whose
	// forwarding headers set the client address. Empty trusts none.
	TrustedProxies []string `env:"POSTDESK_TRUSTED_PROXIES" envSeparator:","`

	// TrustedOrigins are host[:port] values allowed to make cross-origin writes.
	TrustedOrigins []string `env:"POSTDESK_TRUSTED_ORIGINS" envSeparator:","`

	// GeoIP configuration
	GeoIPDBPath string `env:"POSTDESK_GEOIP_DB_PATH"` // Path to GeoLite2-Country.mmdb file

	// Seeding configuration
	DoSeed bool `env:"POSTDESK_DO_SEED" envDefault:"false"`
}

// IsDevelopment returns true if the application is running in development mode.
func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

// ServerAddr returns the full server address in host:port format.
func (c Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

// SlogLevel maps LogLevel to a slog level, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// MinSessionSecretLength is the minimum required length for the session secret.
const MinSessionSecretLength = 32

// Load parses environment variables and returns a Config struct.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if !hasMinimumEntropy(cfg.SessionSecret) {
		slog.Warn("POSTDESK_SESSION_SECRET has low character diversity; " +
			"consider generating a random secret with: openssl rand -base64 32")
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if len(c.SessionSecret) < MinSessionSecretLength {
		return fmt.Errorf("POSTDESK_SESSION_SECRET must be at least %d bytes long, got %d bytes; "+
			"generate a secure secret with: openssl rand -base64 32",
			MinSessionSecretLength, len(c.SessionSecret))
	}
	if slices.Contains(knownWeakSecrets, c.SessionSecret) {
		return fmt.Errorf("POSTDESK_SESSION_SECRET is a known default value and must not be used")
	}

	if !slices.Contains([]string{DriverSQLite, DriverMySQL, DriverPostgres}, c.DBDriver) {
		return fmt.Errorf("POSTDESK_DB_DRIVER must be one of sqlite, mysql, postgres; got %q", c.DBDriver)
	}
	if c.DBDSN == "" {
		return fmt.Errorf("POSTDESK_DB_DSN must not be empty")
	}
	if c.DBAcquireTimeout <= 0 {
		return fmt.Errorf("POSTDESK_DB_ACQUIRE_TIMEOUT must be positive")
	}

	switch c.SessionBackend {
	case SessionMemory, SessionSQL:
	case SessionRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("POSTDESK_REDIS_URL is required when POSTDESK_SESSION_BACKEND=redis")
		}
	default:
		return fmt.Errorf("POSTDESK_SESSION_BACKEND must be one of memory, sql, redis; got %q", c.SessionBackend)
	}

	if c.LoginMaxFailures <= 0 || c.LoginWindow <= 0 {
		return fmt.Errorf("login protection thresholds must be positive")
	}
	if _, err := util.ParseNetworks(c.TrustedProxies); err != nil {
		return fmt.Errorf("POSTDESK_TRUSTED_PROXIES: %w", err)
	}

	return nil
}

// hasMinimumEntropy checks that a secret contains at least 3 character classes
// (lowercase, uppercase, digits, special characters).
func hasMinimumEntropy(s string) bool {
	charTypes := 0
	if strings.ContainsAny(s, "abcdefghijklmnopqrstuvwxyz") {
		charTypes++
	}
	if strings.ContainsAny(s, "ABCDEFGHIJKLMNOPQRSTUVWXYZ") {
		charTypes++
	}
	if strings.ContainsAny(s, "0123456789") {
		charTypes++
	}
	if strings.ContainsAny(s, "!@#$%^&*()-_=+[]{}|;:,.<>?/~`'\"\\") {
		charTypes++
	}
	return charTypes >= 3
}
