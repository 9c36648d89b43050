// Package config builds runtime configuration from environment variables so
// main stays lean.
package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"verimed/internal/crypto"
)

// Server captures the full runtime configuration.
type Server struct {
	Addr string

	// MasterSecret derives all field-encryption keys. Required.
	MasterSecret string
	// KDFIterations tunes the reveal latency/security trade-off.
	KDFIterations int

	JWTSigningKey string
	JWTIssuer     string
	JWTAudience   string

	// DataMode reports whether the practice management system is trusted
	// for live transaction history. On, status is derived from the log;
	// off, the manually edited record governs.
	DataMode bool

	DatabaseURL string
	Redis       RedisConfig

	RevealMaxFailures int
	RevealLockWindow  time.Duration
}

// RedisConfig captures the reveal-throttle backing store. An empty URL
// selects the in-process store.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds a Server config from environment variables.
func FromEnv() (Server, error) {
	cfg := Server{
		Addr:              envOr("VERIMED_ADDR", ":8080"),
		MasterSecret:      os.Getenv("VERIMED_MASTER_SECRET"),
		KDFIterations:     envIntOr("VERIMED_KDF_ITERATIONS", crypto.DefaultIterations),
		JWTSigningKey:     os.Getenv("JWT_SIGNING_KEY"),
		JWTIssuer:         envOr("JWT_ISSUER", "verimed"),
		JWTAudience:       envOr("JWT_AUDIENCE", "verimed-api"),
		DataMode:          os.Getenv("PMS_DATA_MODE") == "true",
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		RevealMaxFailures: envIntOr("REVEAL_MAX_FAILURES", 5),
		RevealLockWindow:  envDurationOr("REVEAL_LOCK_WINDOW", 15*time.Minute),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envIntOr("REDIS_POOL_SIZE", 10),
			MinIdleConns: envIntOr("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDurationOr("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDurationOr("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDurationOr("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
	}
	if cfg.MasterSecret == "" {
		return Server{}, errors.New("VERIMED_MASTER_SECRET is required")
	}
	if cfg.JWTSigningKey == "" {
		return Server{}, errors.New("JWT_SIGNING_KEY is required")
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
