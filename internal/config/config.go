/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Database backend selection.
type DatabaseBackend string

const (
	DatabasePostgres DatabaseBackend = "postgres"
	DatabaseMySQL    DatabaseBackend = "mysql"
	DatabaseSQLite   DatabaseBackend = "sqlite"
)

// Config covers process level configuration read from environment variables.
type Config struct {
	Environment   string
	HTTPBind      string
	HTTPPort      int
	DBBackend     DatabaseBackend
	DBDSN         string
	JWTSigningKey string
	MetricsBind   string

	// Slot generation
	DaysAhead       int    // default horizon for range generation
	BatchHour       int    // hour of day (UTC) the daily batch fires
	DefaultTimezone string // applied to businesses without a timezone

	// Tracing configuration
	TracingEnabled    bool
	OTLPEndpoint      string
	TracingSampleRate float64

	// Redis cache and multi-instance configuration
	CacheEnabled          bool
	LeaderElectionEnabled bool
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	InstanceID            string

	// NATS event mirroring; empty URL keeps events in-process
	NATSURL string
}

// Load reads environment variables, applies defaults, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Environment:   getEnvAny([]string{"SLOTBOOK_ENV", "ENVIRONMENT"}, "development"),
		HTTPBind:      getEnv("SLOTBOOK_HTTP_BIND", "0.0.0.0"),
		HTTPPort:      getEnvInt("SLOTBOOK_HTTP_PORT", 8080),
		DBBackend:     DatabaseBackend(getEnv("SLOTBOOK_DB_BACKEND", string(DatabasePostgres))),
		DBDSN:         getEnvAny([]string{"SLOTBOOK_DB_DSN", "DATABASE_URL"}, ""),
		JWTSigningKey: getEnv("SLOTBOOK_JWT_SIGNING_KEY", ""),
		MetricsBind:   getEnv("SLOTBOOK_METRICS_BIND", "127.0.0.1:9000"),

		DaysAhead:       getEnvInt("SLOTBOOK_DAYS_AHEAD", 7),
		BatchHour:       getEnvInt("SLOTBOOK_BATCH_HOUR", 0),
		DefaultTimezone: getEnv("SLOTBOOK_DEFAULT_TIMEZONE", "UTC"),

		TracingEnabled:    getEnvBoolAny([]string{"SLOTBOOK_TRACING_ENABLED"}, false),
		OTLPEndpoint:      getEnv("SLOTBOOK_OTLP_ENDPOINT", "localhost:4317"),
		TracingSampleRate: getEnvFloatAny([]string{"SLOTBOOK_TRACING_SAMPLE_RATE"}, 1.0),

		CacheEnabled:          getEnvBoolAny([]string{"SLOTBOOK_CACHE_ENABLED"}, false),
		LeaderElectionEnabled: getEnvBoolAny([]string{"SLOTBOOK_LEADER_ELECTION_ENABLED"}, false),
		RedisAddr:             getEnvAny([]string{"SLOTBOOK_REDIS_ADDR", "REDIS_ADDR"}, "localhost:6379"),
		RedisPassword:         getEnvAny([]string{"SLOTBOOK_REDIS_PASSWORD", "REDIS_PASSWORD"}, ""),
		RedisDB:               getEnvIntAny([]string{"SLOTBOOK_REDIS_DB", "REDIS_DB"}, 0),
		InstanceID:            getEnv("SLOTBOOK_INSTANCE_ID", ""),

		NATSURL: getEnvAny([]string{"SLOTBOOK_NATS_URL", "NATS_URL"}, ""),
	}

	if cfg.DBBackend != DatabasePostgres && cfg.DBBackend != DatabaseMySQL && cfg.DBBackend != DatabaseSQLite {
		return nil, fmt.Errorf("unsupported database backend %q", cfg.DBBackend)
	}

	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("SLOTBOOK_DB_DSN or DATABASE_URL must be provided")
	}

	if cfg.DaysAhead < 1 {
		return nil, fmt.Errorf("SLOTBOOK_DAYS_AHEAD must be at least 1, got %d", cfg.DaysAhead)
	}

	if cfg.BatchHour < 0 || cfg.BatchHour > 23 {
		return nil, fmt.Errorf("SLOTBOOK_BATCH_HOUR must be between 0 and 23, got %d", cfg.BatchHour)
	}

	if _, err := time.LoadLocation(cfg.DefaultTimezone); err != nil {
		return nil, fmt.Errorf("SLOTBOOK_DEFAULT_TIMEZONE %q: %w", cfg.DefaultTimezone, err)
	}

	if strings.EqualFold(cfg.Environment, "production") && cfg.JWTSigningKey == "" {
		return nil, fmt.Errorf("SLOTBOOK_JWT_SIGNING_KEY must be provided in production")
	}

	return cfg, nil
}

// HTTPAddr joins bind address and port.
func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.HTTPBind, c.HTTPPort)
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}

// getEnvAny returns the first non-empty environment variable value from keys, or def if none set.
func getEnvAny(keys []string, def string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}

// getEnvIntAny returns the first set integer environment variable value from keys, or def.
func getEnvIntAny(keys []string, def int) int {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				return parsed
			}
		}
	}
	return def
}

// getEnvBoolAny returns the first set boolean environment variable value from keys, or def.
func getEnvBoolAny(keys []string, def bool) bool {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			v = strings.ToLower(strings.TrimSpace(v))
			if v == "true" || v == "1" || v == "yes" {
				return true
			}
			if v == "false" || v == "0" || v == "no" {
				return false
			}
		}
	}
	return def
}

// getEnvFloatAny returns the first set float environment variable value from keys, or def.
func getEnvFloatAny(keys []string, def float64) float64 {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.ParseFloat(v, 64); err == nil {
				return parsed
			}
		}
	}
	return def
}
