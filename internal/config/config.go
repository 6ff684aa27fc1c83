package config

import (
	"os"
	"strconv"
	"time"
)

type AppConfig struct {
	// Server
	HTTPAddr  string
	RedisAddr string
	RedisPass string
	AdminKey  string

	// Providers
	NationalBaseURL  string
	NationalAPIKey   string
	NationalClientID string
	StateBaseURL     string
	StateToken       string

	// Retry / circuit breaker
	MaxAttempts      int
	BackoffBase      time.Duration
	BreakerThreshold int
	BreakerCooldown  time.Duration

	// Compliance policy
	GPSWindow  time.Duration
	FleetLimit int
	CacheTTL   time.Duration

	// Batch
	BatchSize      int
	BatchWorkers   int
	BatchStaleness time.Duration
	BatchCron      string
	BatchTimeout   time.Duration

	// Manual review
	ReviewWebhookURL string
}

// Load loads environment variables into AppConfig.
func Load() AppConfig {
	return AppConfig{
		HTTPAddr:  getEnv("HTTP_ADDR", ":8000"),
		RedisAddr: getEnv("REDIS_ADDR", "redis-fleetcheck:6379"),
		RedisPass: getEnv("REDIS_PASS", ""),
		AdminKey:  getEnv("ADMIN_API_KEY", ""),

		NationalBaseURL:  getEnv("NATIONAL_REGISTRY_URL", ""),
		NationalAPIKey:   getEnv("NATIONAL_REGISTRY_API_KEY", ""),
		NationalClientID: getEnv("NATIONAL_REGISTRY_CLIENT_ID", ""),
		StateBaseURL:     getEnv("STATE_TRANSPORT_URL", ""),
		StateToken:       getEnv("STATE_TRANSPORT_TOKEN", ""),

		MaxAttempts:      getEnvInt("PROVIDER_MAX_ATTEMPTS", 3),
		BackoffBase:      getEnvDuration("PROVIDER_BACKOFF_BASE", 200*time.Millisecond),
		BreakerThreshold: getEnvInt("BREAKER_FAILURE_THRESHOLD", 5),
		BreakerCooldown:  getEnvDuration("BREAKER_COOLDOWN", 60*time.Second),

		GPSWindow:  getEnvDuration("GPS_FRESHNESS_WINDOW", 60*time.Minute),
		FleetLimit: getEnvInt("OPERATOR_FLEET_LIMIT", 10),
		CacheTTL:   getEnvDuration("COMPLIANCE_CACHE_TTL", 7*24*time.Hour),

		BatchSize:      getEnvInt("BATCH_SIZE", 50),
		BatchWorkers:   getEnvInt("BATCH_CONCURRENCY", 10),
		BatchStaleness: getEnvDuration("BATCH_STALENESS", 7*24*time.Hour),
		BatchCron:      getEnv("BATCH_CRON", "0 2 * * *"),
		BatchTimeout:   getEnvDuration("BATCH_TIMEOUT", 2*time.Hour),

		ReviewWebhookURL: getEnv("REVIEW_WEBHOOK_URL", ""),
	}
}

// --- Helper functions ---

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
