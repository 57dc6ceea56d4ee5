/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package cache provides a Redis-based caching layer for frequently accessed data.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/friendsincode/slotbook/internal/models"
	"github.com/friendsincode/slotbook/internal/telemetry"
)

// Default TTL values for different cache types
const (
	DefaultBusinessListTTL = 5 * time.Minute
	DefaultBusinessTTL     = 30 * time.Minute
)

// Key prefixes for Redis cache
const (
	KeyBusinessList = "slotbook:cache:businesses"
	KeyBusiness     = "slotbook:cache:business:" // + business_id
)

// Config contains cache configuration.
type Config struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	BusinessListTTL time.Duration
	BusinessTTL     time.Duration

	// Fallback behavior
	DisableOnError bool // If true, disable caching on Redis errors
}

// DefaultConfig returns default cache configuration.
func DefaultConfig() Config {
	return Config{
		RedisAddr:       "localhost:6379",
		BusinessListTTL: DefaultBusinessListTTL,
		BusinessTTL:     DefaultBusinessTTL,
		DisableOnError:  true,
	}
}

// Cache provides Redis-backed caching with graceful fallback.
type Cache struct {
	client *redis.Client
	logger zerolog.Logger
	config Config

	mu       sync.RWMutex
	disabled bool // Circuit breaker state
}

// New creates a new cache instance.
func New(cfg Config, logger zerolog.Logger) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Msg("Redis cache unavailable, running without caching")
		return &Cache{
			logger:   logger.With().Str("component", "cache").Logger(),
			config:   cfg,
			disabled: true,
		}, nil
	}

	logger.Info().Str("addr", cfg.RedisAddr).Msg("Redis cache initialized")

	return &Cache{
		client: client,
		logger: logger.With().Str("component", "cache").Logger(),
		config: cfg,
	}, nil
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// IsAvailable returns true if the cache is operational.
func (c *Cache) IsAvailable() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.disabled && c.client != nil
}

// handleError handles Redis errors with circuit breaker logic.
func (c *Cache) handleError(err error, operation string) {
	if err == nil || err == redis.Nil {
		return
	}

	c.logger.Debug().Err(err).Str("operation", operation).Msg("cache operation failed")

	if c.config.DisableOnError {
		c.mu.Lock()
		c.disabled = true
		c.mu.Unlock()
		c.logger.Warn().Msg("disabling cache due to Redis error")
	}
}

// get retrieves a value from cache and unmarshals it.
func (c *Cache) get(ctx context.Context, key string, dest any) (bool, error) {
	if !c.IsAvailable() {
		return false, nil
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		telemetry.CacheOperationsTotal.WithLabelValues("get", "miss").Inc()
		return false, nil
	}
	if err != nil {
		telemetry.CacheOperationsTotal.WithLabelValues("get", "error").Inc()
		c.handleError(err, "get")
		return false, err
	}
	telemetry.CacheOperationsTotal.WithLabelValues("get", "hit").Inc()

	if err := json.Unmarshal(data, dest); err != nil {
		c.logger.Debug().Err(err).Str("key", key).Msg("failed to unmarshal cached value")
		return false, nil
	}

	return true, nil
}

// set stores a value in cache with TTL.
func (c *Cache) set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if !c.IsAvailable() {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value: %w", err)
	}

	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		c.handleError(err, "set")
		return err
	}

	return nil
}

// delete removes a key from cache.
func (c *Cache) delete(ctx context.Context, key string) error {
	if !c.IsAvailable() {
		return nil
	}

	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.handleError(err, "delete")
		return err
	}

	return nil
}

// Business caching methods

// GetBusinessList retrieves the cached list of business ids.
func (c *Cache) GetBusinessList(ctx context.Context) ([]string, bool) {
	var ids []string
	found, err := c.get(ctx, KeyBusinessList, &ids)
	if err != nil || !found {
		return nil, false
	}
	c.logger.Debug().Int("count", len(ids)).Msg("business list cache hit")
	return ids, true
}

// SetBusinessList caches the list of business ids.
func (c *Cache) SetBusinessList(ctx context.Context, ids []string) error {
	return c.set(ctx, KeyBusinessList, ids, c.config.BusinessListTTL)
}

// InvalidateBusinessList removes the cached business list.
func (c *Cache) InvalidateBusinessList(ctx context.Context) error {
	return c.delete(ctx, KeyBusinessList)
}

// GetBusiness retrieves a cached business record.
func (c *Cache) GetBusiness(ctx context.Context, businessID string) (*models.Business, bool) {
	var business models.Business
	found, err := c.get(ctx, KeyBusiness+businessID, &business)
	if err != nil || !found {
		return nil, false
	}
	return &business, true
}

// SetBusiness caches a business record.
func (c *Cache) SetBusiness(ctx context.Context, business *models.Business) error {
	return c.set(ctx, KeyBusiness+business.ID, business, c.config.BusinessTTL)
}

// InvalidateBusiness removes one business and the list that contains it.
func (c *Cache) InvalidateBusiness(ctx context.Context, businessID string) error {
	if err := c.delete(ctx, KeyBusiness+businessID); err != nil {
		return err
	}
	return c.InvalidateBusinessList(ctx)
}

