package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures server-level configuration.
type Config struct {
	Addr          string
	JWTSigningKey string

	// DatabaseURL selects the PostgreSQL store; empty falls back to the
	// in-memory store (development and tests only).
	DatabaseURL string

	Redis RedisConfig
	Kafka KafkaConfig

	// AuditWorkers is the number of background goroutines computing audits.
	AuditWorkers int
	// QueueDepth bounds pending submissions before Submit blocks.
	QueueDepth int
	// ResultCacheTTL bounds how long terminal audits are served from Redis.
	ResultCacheTTL time.Duration
}

// RedisConfig configures the optional result cache. An empty URL disables it.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures the optional audit event publisher. Empty brokers
// disable it.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	cfg := Config{
		Addr:          envOr("EQUILENS_ADDR", ":8080"),
		JWTSigningKey: os.Getenv("JWT_SIGNING_KEY"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Topic: envOr("KAFKA_AUDIT_TOPIC", "equilens.audit.completed"),
		},
		AuditWorkers:   envInt("AUDIT_WORKERS", 4),
		QueueDepth:     envInt("AUDIT_QUEUE_DEPTH", 64),
		ResultCacheTTL: envDuration("RESULT_CACHE_TTL", 10*time.Minute),
	}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.Kafka.Brokers = append(cfg.Kafka.Brokers, b)
			}
		}
	}

	if cfg.JWTSigningKey == "" {
		// Use a default for development - should be overridden in production
		cfg.JWTSigningKey = "dev-secret-key-change-in-production"
	}

	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
