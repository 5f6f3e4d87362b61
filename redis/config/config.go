// Package config provides Redis configuration management for the background
// task queue.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// RedisConfig holds Redis connection and worker parameters
type RedisConfig struct {
	Host            string
	Port            int
	Password        string
	DB              int
	Workers         int
	RetryInterval   time.Duration
	MaxRetries      int
	RetentionPeriod time.Duration
	QueuePriorities map[string]int
}

const (
	defaultHost          = "localhost"
	defaultPort          = 6379
	defaultDB            = 0
	defaultWorkers       = 10
	defaultRetryInterval = 5 * time.Second
	defaultMaxRetries    = 3
	defaultRetention     = 7 * 24 * time.Hour
)

// DefaultQueuePriorities defines the default priority settings for task queues
var DefaultQueuePriorities = map[string]int{
	"critical": 6,
	"default":  3,
	"low":      1,
}

// NewRedisConfig creates a new Redis configuration from environment variables.
// REDIS_URL, when set, takes precedence over the individual variables.
func NewRedisConfig() (*RedisConfig, error) {
	cfg := &RedisConfig{
		Host:            getEnvOrDefault("REDIS_HOST", defaultHost),
		Port:            getEnvInt("REDIS_PORT", defaultPort),
		Password:        os.Getenv("REDIS_PASSWORD"),
		DB:              getEnvInt("REDIS_DB", defaultDB),
		Workers:         getEnvInt("REDIS_WORKERS", defaultWorkers),
		RetryInterval:   getEnvDuration("REDIS_RETRY_INTERVAL", defaultRetryInterval),
		MaxRetries:      getEnvInt("REDIS_MAX_RETRIES", defaultMaxRetries),
		RetentionPeriod: getEnvDuration("REDIS_RETENTION_PERIOD", defaultRetention),
		QueuePriorities: DefaultQueuePriorities,
	}

	if rawURL := os.Getenv("REDIS_URL"); rawURL != "" {
		if err := cfg.applyURL(rawURL); err != nil {
			return nil, err
		}
	}

	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid redis port: %d", cfg.Port)
	}

	if cfg.Workers < 1 {
		return nil, fmt.Errorf("invalid worker count: %d", cfg.Workers)
	}

	return cfg, nil
}

// GetRedisAddr returns the host:port address
func (c *RedisConfig) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c *RedisConfig) applyURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid REDIS_URL: %w", err)
	}

	if u.Hostname() != "" {
		c.Host = u.Hostname()
	}

	if u.Port() != "" {
		port, err := strconv.Atoi(u.Port())
		if err != nil {
			return fmt.Errorf("invalid REDIS_URL port: %w", err)
		}

		c.Port = port
	}

	if pw, ok := u.User.Password(); ok {
		c.Password = pw
	}

	if db := strings.TrimPrefix(u.Path, "/"); db != "" {
		n, err := strconv.Atoi(db)
		if err != nil {
			return fmt.Errorf("invalid REDIS_URL database: %w", err)
		}

		c.DB = n
	}

	return nil
}

func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}

	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}

	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}

	return d
}
