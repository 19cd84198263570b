package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	SinkPostgres = "postgres"
	SinkKafka    = "kafka"
	SinkSQLite   = "sqlite"
)

type Config struct {
	Addr               string
	Environment        string
	DatabaseURL        string
	JWTSecret          string
	RunMigrations      bool
	MigrationsDir      string
	CatalogPath        string
	RedisAddr          string
	OrgCacheTTL        time.Duration
	KafkaBrokers       []string
	ActivityTopic      string
	ActivitySinks      []string
	ActivitySQLitePath string
	BulkConcurrency    int
	MaxBodyBytes       int64
	RateLimitPerMinute int
	MetricsEnabled     bool
	ShutdownTimeout    time.Duration
}

func Load() Config {
	return Config{
		Addr:               getEnv("APP_ADDR", ":8080"),
		Environment:        getEnv("APP_ENV", "development"),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		JWTSecret:          getEnv("JWT_SECRET", ""),
		RunMigrations:      getEnvBool("RUN_MIGRATIONS", true),
		MigrationsDir:      getEnv("MIGRATIONS_DIR", "migrations"),
		CatalogPath:        getEnv("CATALOG_PATH", "configs/catalog.yaml"),
		RedisAddr:          getEnv("REDIS_ADDR", ""),
		OrgCacheTTL:        getEnvDuration("ORG_CACHE_TTL", 15*time.Minute),
		KafkaBrokers:       getEnvList("KAFKA_BROKERS"),
		ActivityTopic:      getEnv("ACTIVITY_TOPIC", "evaluation.activity.v1"),
		ActivitySinks:      getEnvListDefault("ACTIVITY_SINKS", []string{SinkPostgres}),
		ActivitySQLitePath: getEnv("ACTIVITY_SQLITE_PATH", "data/activity.db"),
		BulkConcurrency:    getEnvInt("BULK_CONCURRENCY", 8),
		MaxBodyBytes:       int64(getEnvInt("MAX_BODY_BYTES", 1048576)),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 600),
		MetricsEnabled:     getEnvBool("METRICS_ENABLED", true),
		ShutdownTimeout:    getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvList(key string) []string {
	return getEnvListDefault(key, nil)
}

func getEnvListDefault(key string, fallback []string) []string {
	value := os.Getenv(key)
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, strings.ToLower(part))
		}
	}
	return out
}

func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c Config) HasSink(name string) bool {
	for _, sink := range c.ActivitySinks {
		if sink == name {
			return true
		}
	}
	return false
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.IsProduction() && strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("JWT_SECRET must be set in production")
	}
	for _, sink := range c.ActivitySinks {
		switch sink {
		case SinkPostgres, SinkKafka, SinkSQLite:
		default:
			return fmt.Errorf("ACTIVITY_SINKS contains unknown sink %q", sink)
		}
	}
	if c.HasSink(SinkKafka) && len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS must be set when the kafka activity sink is enabled")
	}
	if c.HasSink(SinkSQLite) && strings.TrimSpace(c.ActivitySQLitePath) == "" {
		return fmt.Errorf("ACTIVITY_SQLITE_PATH must be set when the sqlite activity sink is enabled")
	}
	if c.BulkConcurrency <= 0 {
		return fmt.Errorf("BULK_CONCURRENCY must be positive")
	}
	if c.RateLimitPerMinute < 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must not be negative")
	}
	if c.MaxBodyBytes < 1024 {
		return fmt.Errorf("MAX_BODY_BYTES must be at least 1024")
	}
	return nil
}
