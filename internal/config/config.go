// Package config provides configuration management for the trigger
// daemon. It loads settings from environment variables with sensible
// defaults and validates them before the daemon starts.
//
// Environment Variables:
//
// Application settings:
//   - PORT: Admin server port (default: 8080)
//   - LOG_LEVEL: Logging level (default: info)
//   - LOG_FILE: Optional log file path (default: stdout)
//
// Storage:
//   - STORE_TYPE: Storage backend - "postgres" or "memory" (default: memory)
//   - POSTGRES_URL: PostgreSQL connection URL (required for postgres)
//
// Queue:
//   - QUEUE_TYPE: Task queue backend - "redis" or "local" (default: local)
//   - REDIS_ADDRESS: Redis server address (default: localhost:6379)
//   - REDIS_PASSWORD: Redis password
//   - REDIS_DB: Redis database number 0-15 (default: 0)
//   - REDIS_POOL_SIZE: Redis connection pool size (default: 10)
//   - QUEUE_POLL_INTERVAL: Redis queue poll interval (default: 1s)
//
// Delivery:
//   - DELIVERY_CHANNEL: Outbound channel - "webhook", "amqp" or "log" (default: log)
//   - WEBHOOK_URL: Messaging gateway URL (required for webhook)
//   - RABBITMQ_URL: RabbitMQ connection URL (required for amqp)
//   - DELIVERY_QUEUE: AMQP queue name (default: guest-messages)
//   - DELIVERY_RATE_LIMIT: Outbound messages per second per hotel,
//     0 disables rate limiting (default: 0)
//   - DELIVERY_BREAKER_FAILURES: Consecutive send failures that open
//     the delivery circuit, 0 disables the breaker (default: 5;
//     applies to webhook and amqp channels)
//
// Caching:
//   - ENTITY_CACHE_TTL: Hotel/guest cache TTL (default: 1m)
//
// Evaluation:
//   - SWEEP_SCHEDULE: Cron expression for the periodic evaluation
//     sweep of condition-based triggers (default: every minute)
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all settings for the trigger daemon. Load() reads the
// environment; call Validate() before use.
type Config struct {
	// Application settings
	Port     string
	LogLevel string
	LogFile  string

	// Storage
	StoreType   string // "postgres" or "memory"
	PostgresURL string

	// Queue
	QueueType         string // "redis" or "local"
	RedisAddress      string
	RedisPassword     string
	RedisDB           int
	RedisPoolSize     int
	QueuePollInterval time.Duration

	// Delivery
	DeliveryChannel   string // "webhook", "amqp" or "log"
	WebhookURL        string
	RabbitMQURL       string
	DeliveryQueue     string
	DeliveryRateLimit float64
	BreakerFailures   int

	// Caching
	EntityCacheTTL time.Duration

	// Evaluation
	SweepSchedule string
}

// Load creates a Config from environment variables, applying defaults
// for anything unset. It does not validate; call Validate() on the
// result.
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  getEnv("LOG_FILE", ""),

		StoreType:   getEnv("STORE_TYPE", "memory"),
		PostgresURL: getEnv("POSTGRES_URL", ""),

		QueueType:         getEnv("QUEUE_TYPE", "local"),
		RedisAddress:      getEnv("REDIS_ADDRESS", "localhost:6379"),
		RedisPassword:     getEnv("REDIS_PASSWORD", ""),
		RedisDB:           getIntEnv("REDIS_DB", 0),
		RedisPoolSize:     getIntEnv("REDIS_POOL_SIZE", 10),
		QueuePollInterval: getDurationEnv("QUEUE_POLL_INTERVAL", time.Second),

		DeliveryChannel:   getEnv("DELIVERY_CHANNEL", "log"),
		WebhookURL:        getEnv("WEBHOOK_URL", ""),
		RabbitMQURL:       getEnv("RABBITMQ_URL", ""),
		DeliveryQueue:     getEnv("DELIVERY_QUEUE", "guest-messages"),
		DeliveryRateLimit: getFloatEnv("DELIVERY_RATE_LIMIT", 0),
		BreakerFailures:   getIntEnv("DELIVERY_BREAKER_FAILURES", 5),

		EntityCacheTTL: getDurationEnv("ENTITY_CACHE_TTL", time.Minute),

		SweepSchedule: getEnv("SWEEP_SCHEDULE", "* * * * *"),
	}
}

// Validate checks that the configuration is internally consistent and
// that every selected backend has the settings it needs.
func (c *Config) Validate() error {
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("PORT must be numeric, got %q", c.Port)
	}

	switch c.StoreType {
	case "memory":
	case "postgres":
		if c.PostgresURL == "" {
			return fmt.Errorf("POSTGRES_URL is required when STORE_TYPE=postgres")
		}
	default:
		return fmt.Errorf("STORE_TYPE must be \"postgres\" or \"memory\", got %q", c.StoreType)
	}

	switch c.QueueType {
	case "local":
	case "redis":
		if c.RedisAddress == "" {
			return fmt.Errorf("REDIS_ADDRESS is required when QUEUE_TYPE=redis")
		}
		if c.RedisDB < 0 || c.RedisDB > 15 {
			return fmt.Errorf("REDIS_DB must be 0-15, got %d", c.RedisDB)
		}
	default:
		return fmt.Errorf("QUEUE_TYPE must be \"redis\" or \"local\", got %q", c.QueueType)
	}

	switch c.DeliveryChannel {
	case "log":
	case "webhook":
		if c.WebhookURL == "" {
			return fmt.Errorf("WEBHOOK_URL is required when DELIVERY_CHANNEL=webhook")
		}
	case "amqp":
		if c.RabbitMQURL == "" {
			return fmt.Errorf("RABBITMQ_URL is required when DELIVERY_CHANNEL=amqp")
		}
	default:
		return fmt.Errorf("DELIVERY_CHANNEL must be \"webhook\", \"amqp\" or \"log\", got %q", c.DeliveryChannel)
	}

	if c.DeliveryRateLimit < 0 {
		return fmt.Errorf("DELIVERY_RATE_LIMIT must not be negative")
	}
	if c.BreakerFailures < 0 {
		return fmt.Errorf("DELIVERY_BREAKER_FAILURES must not be negative")
	}
	if c.EntityCacheTTL < 0 {
		return fmt.Errorf("ENTITY_CACHE_TTL must not be negative")
	}
	if c.QueuePollInterval <= 0 {
		return fmt.Errorf("QUEUE_POLL_INTERVAL must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
