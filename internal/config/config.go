// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/aristath/fincache/internal/cache"
	"github.com/aristath/fincache/internal/storage/remote"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Local storage kinds
const (
	LocalSQLite = "sqlite"
	LocalMemory = "memory"
)

// Remote backend kinds
const (
	RemoteS3     = "s3"
	RemoteRedis  = "redis"
	RemoteMemory = "memory"
	RemoteNone   = "none"
)

// Config holds application configuration
type Config struct {
	DataDir   string // Base directory for the local cache database (always absolute)
	LogLevel  string
	LogPretty bool
	Port      int
	DevMode   bool

	AlphaVantage AlphaVantageConfig
	Cache        cache.Config

	LocalStorage  string
	RemoteBackend string
	S3            remote.S3Config
	Redis         remote.RedisConfig

	RefreshSchedule string // empty disables the refresh job
	PurgeSchedule   string // empty disables the local cleanup job
	WALSchedule     string
	// ShutdownTimeout bounds graceful shutdown of the HTTP server.
	ShutdownTimeout time.Duration
}

// AlphaVantageConfig holds fetch client settings
type AlphaVantageConfig struct {
	APIKey            string
	DailyLimit        int
	RequestsPerMinute int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("FINCACHE_DATA_DIR", "./data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	defaults := cache.DefaultConfig()

	cfg := &Config{
		DataDir:   absDataDir,
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogPretty: getEnvAsBool("LOG_PRETTY", false),
		Port:      getEnvAsInt("PORT", 8080),
		DevMode:   getEnvAsBool("DEV_MODE", false),
		AlphaVantage: AlphaVantageConfig{
			APIKey:            getEnv("ALPHAVANTAGE_API_KEY", ""),
			DailyLimit:        getEnvAsInt("ALPHAVANTAGE_DAILY_LIMIT", 25),
			RequestsPerMinute: getEnvAsInt("ALPHAVANTAGE_REQUESTS_PER_MINUTE", 5),
		},
		Cache: cache.Config{
			DefaultTTL:              getEnvAsDuration("CACHE_DEFAULT_TTL", defaults.DefaultTTL),
			MaxAge:                  getEnvAsDuration("CACHE_MAX_AGE", defaults.MaxAge),
			MaxCacheSize:            getEnvAsInt64("CACHE_MAX_SIZE_BYTES", defaults.MaxCacheSize),
			UseLocalStorage:         getEnvAsBool("CACHE_USE_LOCAL", defaults.UseLocalStorage),
			UseRemoteStorage:        getEnvAsBool("CACHE_USE_REMOTE", defaults.UseRemoteStorage),
			EnableCompression:       getEnvAsBool("CACHE_ENABLE_COMPRESSION", defaults.EnableCompression),
			EnableBackgroundRefresh: getEnvAsBool("CACHE_ENABLE_BACKGROUND_REFRESH", defaults.EnableBackgroundRefresh),
			BackgroundConcurrency:   getEnvAsInt("CACHE_BACKGROUND_CONCURRENCY", defaults.BackgroundConcurrency),
			DeduplicateFetches:      getEnvAsBool("CACHE_DEDUPLICATE_FETCHES", defaults.DeduplicateFetches),
		},
		LocalStorage:  strings.ToLower(getEnv("LOCAL_STORAGE", LocalSQLite)),
		RemoteBackend: strings.ToLower(getEnv("REMOTE_BACKEND", RemoteMemory)),
		S3: remote.S3Config{
			Bucket:          getEnv("S3_BUCKET", ""),
			Region:          getEnv("S3_REGION", "auto"),
			Endpoint:        getEnv("S3_ENDPOINT", ""),
			AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
		},
		Redis: remote.RedisConfig{
			Addr:      getEnv("REDIS_ADDR", "localhost:6379"),
			Password:  getEnv("REDIS_PASSWORD", ""),
			DB:        getEnvAsInt("REDIS_DB", 0),
			Namespace: getEnv("REDIS_NAMESPACE", ""),
		},
		RefreshSchedule: getEnv("REFRESH_SCHEDULE", "@every 30m"),
		PurgeSchedule:   getEnv("PURGE_SCHEDULE", ""),
		WALSchedule:     getEnv("WAL_CHECKPOINT_SCHEDULE", "@hourly"),
		ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port)
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL %q: %w", c.LogLevel, err)
	}
	if c.AlphaVantage.DailyLimit < 1 {
		return fmt.Errorf("ALPHAVANTAGE_DAILY_LIMIT must be positive")
	}
	if c.AlphaVantage.RequestsPerMinute < 0 {
		return fmt.Errorf("ALPHAVANTAGE_REQUESTS_PER_MINUTE must not be negative")
	}

	switch c.LocalStorage {
	case LocalSQLite, LocalMemory:
	default:
		return fmt.Errorf("LOCAL_STORAGE must be %q or %q, got %q", LocalSQLite, LocalMemory, c.LocalStorage)
	}

	switch c.RemoteBackend {
	case RemoteS3:
		if c.S3.Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required when REMOTE_BACKEND=s3")
		}
	case RemoteRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("REDIS_ADDR is required when REMOTE_BACKEND=redis")
		}
	case RemoteMemory, RemoteNone:
	default:
		return fmt.Errorf("unknown REMOTE_BACKEND %q", c.RemoteBackend)
	}

	if err := c.Cache.Validate(); err != nil {
		return fmt.Errorf("invalid cache settings: %w", err)
	}
	return nil
}

// LocalDatabasePath returns the path of the local cache database
func (c *Config) LocalDatabasePath() string {
	return filepath.Join(c.DataDir, "local_cache.db")
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("36h") and whole days ("100d").
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	if days, ok := strings.CutSuffix(value, "d"); ok {
		if n, err := strconv.Atoi(days); err == nil {
			return time.Duration(n) * 24 * time.Hour
		}
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	return defaultValue
}
