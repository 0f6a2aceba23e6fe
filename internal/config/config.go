// Package config loads worker configuration from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all runtime configuration for a trading worker.
type Config struct {
	ServerName string `env:"SERVER_NAME" envDefault:"worker1"`
	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`

	KafkaBrokers  []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092"`
	CommandTopic  string   `env:"COMMAND_TOPIC" envDefault:"commands"`
	ResponseTopic string   `env:"RESPONSE_TOPIC" envDefault:"responses"`
	GroupID       string   `env:"KAFKA_GROUP_ID" envDefault:"workers"`

	QuoteAddr     string        `env:"QUOTE_ADDR"`
	QuoteCacheTTL time.Duration `env:"QUOTE_CACHE_TTL" envDefault:"2s"`

	ReservationTTL time.Duration `env:"RESERVATION_TTL" envDefault:"60s"`
	PollInterval   time.Duration `env:"POLL_INTERVAL" envDefault:"120s"`

	LedgerDriver string `env:"LEDGER_DRIVER" envDefault:"memory"`
	SQLitePath   string `env:"SQLITE_PATH" envDefault:"ledger.db"`

	OpsPort         int           `env:"OPS_PORT" envDefault:"8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Load reads configuration from environment variables, applies defaults,
// and validates values. It returns an error for any invalid value.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if !isValidLogLevel(c.LogLevel) {
		return fmt.Errorf("invalid LOG_LEVEL: %q, must be one of: debug, info, warn, error", c.LogLevel)
	}
	switch c.LedgerDriver {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("invalid LEDGER_DRIVER: %q, must be memory or sqlite", c.LedgerDriver)
	}
	if len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS must name at least one broker")
	}
	if c.ReservationTTL <= 0 {
		return fmt.Errorf("invalid RESERVATION_TTL: %s, must be positive", c.ReservationTTL)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("invalid POLL_INTERVAL: %s, must be positive", c.PollInterval)
	}
	if c.OpsPort <= 0 || c.OpsPort > 65535 {
		return fmt.Errorf("invalid OPS_PORT: %d", c.OpsPort)
	}
	return nil
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}
