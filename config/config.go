// Package config provides access to dynamic configuration values stored in
// the system_config table, with a short-lived in-process cache and
// environment variable override.
package config

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Well-known keys. Environment overrides derive from the key by uppercasing
// and replacing dots with underscores (e.g. CRAWL_MAX_DEPTH).
const (
	KeyCrawlMaxDepth  = "crawl.max_depth"
	KeyCrawlMaxPages  = "crawl.max_pages"
	KeyCrawlDelay     = "crawl.delay"
	KeyRateLimitPerIP = "ratelimit.per_minute"
)

// Service reads dynamic configuration with a one minute cache.
type Service struct {
	db    *sql.DB
	mu    sync.RWMutex
	cache map[string]cachedEntry
}

type cachedEntry struct {
	value     string
	expiresAt time.Time
}

const defaultTTL = time.Minute

func New(db *sql.DB) *Service {
	return &Service{db: db, cache: make(map[string]cachedEntry)}
}

// GetString returns a string config value. An environment variable overrides
// the DB value when present.
func (s *Service) GetString(ctx context.Context, key, defaultValue string) (string, error) {
	if v, ok := envOverride(key); ok {
		return v, nil
	}

	if v, ok := s.getFromCache(key); ok {
		return v, nil
	}

	const q = `SELECT value FROM system_config WHERE key = $1 LIMIT 1`

	var v string

	err := s.db.QueryRowContext(ctx, q, key).Scan(&v)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return defaultValue, nil
		}

		return "", err
	}

	s.putInCache(key, v)

	return v, nil
}

// GetInt returns an integer config value clamped to the row's optional
// min_value/max_value bounds.
func (s *Service) GetInt(ctx context.Context, key string, defaultValue int) (int, error) {
	if v, ok := envOverride(key); ok {
		return parseIntOr(v, defaultValue), nil
	}

	if v, ok := s.getFromCache(key); ok {
		return parseIntOr(v, defaultValue), nil
	}

	const q = `SELECT value, min_value, max_value FROM system_config WHERE key = $1 LIMIT 1`

	var v, minv, maxv sql.NullString

	err := s.db.QueryRowContext(ctx, q, key).Scan(&v, &minv, &maxv)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return defaultValue, nil
		}

		return 0, err
	}

	s.putInCache(key, v.String)

	parsed := parseIntOr(v.String, defaultValue)

	if minv.Valid {
		if bound, err := strconv.Atoi(strings.TrimSpace(minv.String)); err == nil && parsed < bound {
			parsed = bound
		}
	}

	if maxv.Valid {
		if bound, err := strconv.Atoi(strings.TrimSpace(maxv.String)); err == nil && parsed > bound {
			parsed = bound
		}
	}

	return parsed, nil
}

// GetDuration returns a duration config value stored in time.ParseDuration
// syntax ("500ms", "2s").
func (s *Service) GetDuration(ctx context.Context, key string, defaultValue time.Duration) (time.Duration, error) {
	raw, err := s.GetString(ctx, key, defaultValue.String())
	if err != nil {
		return 0, err
	}

	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return defaultValue, nil
	}

	return d, nil
}

// Upsert writes a configuration value with associated metadata type.
func (s *Service) Upsert(ctx context.Context, key, value, typ, description string) error {
	const q = `INSERT INTO system_config (key, value, type, description, updated_at, updated_by)
	           VALUES ($1, $2, $3, $4, NOW(), 'system')
	           ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, type = EXCLUDED.type, description = EXCLUDED.description, updated_at = NOW()`

	_, err := s.db.ExecContext(ctx, q, key, value, typ, description)
	if err == nil {
		s.mu.Lock()
		delete(s.cache, key)
		s.mu.Unlock()
	}

	return err
}

func envOverride(key string) (string, bool) {
	envKey := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
	if v := os.Getenv(envKey); v != "" {
		return v, true
	}

	return "", false
}

func parseIntOr(v string, fallback int) int {
	parsed, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fallback
	}

	return parsed
}

func (s *Service) getFromCache(key string) (string, bool) {
	s.mu.RLock()
	entry, ok := s.cache[key]
	s.mu.RUnlock()

	if !ok {
		return "", false
	}

	if time.Now().After(entry.expiresAt) {
		s.mu.Lock()
		delete(s.cache, key)
		s.mu.Unlock()

		return "", false
	}

	return entry.value, true
}

func (s *Service) putInCache(key, value string) {
	s.mu.Lock()
	s.cache[key] = cachedEntry{value: value, expiresAt: time.Now().Add(defaultTTL)}
	s.mu.Unlock()
}
