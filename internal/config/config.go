package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Backend names for the job store.
const (
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Config holds all runtime configuration loaded from environment variables.
// ENCRYPTION_KEY and FINGERPRINT_SALT are required, plus the connection
// string for whichever queue backend is selected; everything else has a
// sensible default.
type Config struct {
	// Server
	HTTPPort        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	Env             string // development | production

	// Job store backend
	QueueBackend string
	RedisURL     string
	DatabaseURL  string
	DBMaxConns   int32
	DBMinConns   int32

	// Secrets
	EncryptionKey   string // hex-encoded 32-byte AEAD key
	FingerprintSalt string
	AccessToken     string // bearer token for the API; empty disables auth

	// Outbound notification API
	NotificationsBaseURL string
	ProviderTimeout      time.Duration

	// Workers
	WorkerConcurrency int
	PollInterval      time.Duration
	JanitorInterval   time.Duration

	// Queue behaviour
	DefaultDelay time.Duration
	Retention    time.Duration

	// Rate limiting: submissions per minute per client fingerprint
	RateLimitPerMinute int
}

func Load() (*Config, error) {
	encKey := os.Getenv("ENCRYPTION_KEY")
	if encKey == "" {
		return nil, fmt.Errorf("ENCRYPTION_KEY is required")
	}
	salt := os.Getenv("FINGERPRINT_SALT")
	if salt == "" {
		return nil, fmt.Errorf("FINGERPRINT_SALT is required")
	}

	cfg := &Config{
		HTTPPort:        getEnv("HTTP_PORT", "3031"),
		ReadTimeout:     getDuration("READ_TIMEOUT", 5*time.Second),
		WriteTimeout:    getDuration("WRITE_TIMEOUT", 10*time.Second),
		ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		Env:             getEnv("APP_ENV", "development"),

		QueueBackend: getEnv("QUEUE_BACKEND", BackendRedis),
		RedisURL:     os.Getenv("REDIS_URL"),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		DBMaxConns:   int32(getInt("DB_MAX_CONNS", 25)),
		DBMinConns:   int32(getInt("DB_MIN_CONNS", 5)),

		EncryptionKey:   encKey,
		FingerprintSalt: salt,
		AccessToken:     os.Getenv("ACCESS_TOKEN"),

		NotificationsBaseURL: getEnv("NOTIFICATIONS_BASE_URL", "https://apis.roblox.com"),
		ProviderTimeout:      getDuration("PROVIDER_TIMEOUT", 10*time.Second),

		WorkerConcurrency: getInt("WORKER_CONCURRENCY", 10),
		PollInterval:      getDuration("POLL_INTERVAL", 500*time.Millisecond),
		JanitorInterval:   getDuration("JANITOR_INTERVAL", time.Minute),

		DefaultDelay: getDuration("DEFAULT_DELAY", 25*time.Second),
		Retention:    getDuration("RETENTION", 10*24*time.Hour),

		RateLimitPerMinute: getInt("RATE_LIMIT_PER_MINUTE", 60),
	}

	switch cfg.QueueBackend {
	case BackendRedis:
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("REDIS_URL is required for the redis backend")
		}
	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required for the postgres backend")
		}
	default:
		return nil, fmt.Errorf("unknown QUEUE_BACKEND %q", cfg.QueueBackend)
	}

	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
