// Package config builds runtime configuration from environment variables so
// main stays lean. Empty Postgres/Redis/Kafka settings select the in-process
// fallbacks, which keeps local development dependency-free.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the full server configuration.
type Config struct {
	Addr            string
	ShutdownTimeout time.Duration

	PostgresURL string
	DevSeed     bool

	Redis    Redis
	Analyzer Analyzer
	Kafka    Kafka

	JWTSigningKey string
	Admin         Admin
}

// Admin configures the dev admin login. The password is bcrypt-hashed at
// startup and never kept in memory as plaintext after that.
type Admin struct {
	Username string
	Password string
}

// Redis configures the optional shared enrichment cache.
type Redis struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Analyzer configures the external compliance analysis call.
type Analyzer struct {
	BaseURL    string
	APIKey     string
	Model      string
	Timeout    time.Duration
	MaxRetries int
	UseCache   bool
	CacheSize  int
}

// Kafka configures the optional compliance event sink.
type Kafka struct {
	Brokers []string
	Topic   string
}

// FromEnv reads configuration from the environment with development defaults.
func FromEnv() Config {
	return Config{
		Addr:            envOr("CONSENTRY_ADDR", ":8080"),
		ShutdownTimeout: envDuration("CONSENTRY_SHUTDOWN_TIMEOUT", 10*time.Second),
		PostgresURL:     os.Getenv("CONSENTRY_POSTGRES_URL"),
		DevSeed:         os.Getenv("CONSENTRY_DEV_SEED") == "true",
		Redis: Redis{
			URL:          os.Getenv("CONSENTRY_REDIS_URL"),
			PoolSize:     envInt("CONSENTRY_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("CONSENTRY_REDIS_MIN_IDLE", 2),
			DialTimeout:  envDuration("CONSENTRY_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("CONSENTRY_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("CONSENTRY_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Analyzer: Analyzer{
			BaseURL:    envOr("ANALYZER_BASE_URL", "https://generativelanguage.googleapis.com"),
			APIKey:     os.Getenv("ANALYZER_API_KEY"),
			Model:      envOr("ANALYZER_MODEL", "gemini-2.5-flash"),
			Timeout:    envDuration("ANALYZER_TIMEOUT", 1500*time.Millisecond),
			MaxRetries: envInt("ANALYZER_MAX_RETRIES", 1),
			UseCache:   envOr("ANALYZER_USE_CACHE", "true") == "true",
			CacheSize:  envInt("ANALYZER_CACHE_SIZE", 1024),
		},
		Kafka: Kafka{
			Brokers: envList("CONSENTRY_KAFKA_BROKERS"),
			Topic:   envOr("CONSENTRY_KAFKA_TOPIC", "consentry.audit"),
		},
		JWTSigningKey: envOr("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		Admin: Admin{
			Username: envOr("ADMIN_USERNAME", "admin"),
			Password: envOr("ADMIN_PASSWORD", "admin"),
		},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
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

func envDuration(key string, fallback time.Duration) time.Duration {
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

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
