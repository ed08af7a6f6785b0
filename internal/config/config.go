// Package config loads runtime configuration from the environment, in the
// fail-fast must()-helper style used across the example pack.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"
)

// Config holds every environment-derived setting the gateway needs. Field
// names match the environment variables named in spec §6.
type Config struct {
	DatabaseURL        string
	SessionStoragePath string
	FrontendURL        string
	LogLevel           string
	Port               string
	WebhookSecret      string

	RedisAddr     string
	KafkaBrokers  []string
	AsynqRedisURL string

	JWTSecret string

	TierConfigPath string
	Env            string
}

// Load reads configuration from the environment. Required variables cause a
// fatal log and process exit, matching the teacher/pack's must() idiom
// (iliyamo-cinema-seat-reservation/internal/config).
func Load() Config {
	cfg := Config{
		DatabaseURL:        must("DATABASE_URL"),
		SessionStoragePath: getenv("SESSION_STORAGE_PATH", "./session-store"),
		FrontendURL:        os.Getenv("FRONTEND_URL"),
		LogLevel:           getenv("LOG_LEVEL", "info"),
		Port:               getenv("PORT", "8080"),
		WebhookSecret:      os.Getenv("WEBHOOK_SECRET"),
		RedisAddr:          getenv("REDIS_ADDR", "localhost:6379"),
		AsynqRedisURL:      getenv("ASYNQ_REDIS_ADDR", getenv("REDIS_ADDR", "localhost:6379")),
		JWTSecret:          must("JWT_SECRET"),
		TierConfigPath:     getenv("TIER_CONFIG_PATH", "./config.yaml"),
		Env:                getenv("APP_ENV", "dev"),
	}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitCSV(brokers)
	}
	if err := os.MkdirAll(cfg.SessionStoragePath, 0o755); err != nil {
		log.Fatalf("config: cannot create SESSION_STORAGE_PATH %q: %v", cfg.SessionStoragePath, err)
	}
	return cfg
}

func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("config: missing required env var: %s", key)
	}
	return v
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func splitCSV(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}

// Duration parses an env var as a duration, falling back to def on error or
// absence. Used by components that accept duration overrides for tests.
func Duration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

// Int parses an env var as an int, falling back to def.
func Int(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func (c Config) String() string {
	return fmt.Sprintf("Config{port=%s env=%s storage=%s}", c.Port, c.Env, c.SessionStoragePath)
}
