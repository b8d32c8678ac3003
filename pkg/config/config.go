// Package config loads application configuration from the environment into
// explicit structs that are passed down to the components that need them.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Storage       StorageConfig
	Ingest        IngestConfig
	Observability ObservabilityConfig
}

type ServerConfig struct {
	Host               string
	Port               int
	RateLimitPerSecond int
	RateLimitBurst     int
	AllowedOrigins     []string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

type StorageConfig struct {
	LocalPath string
}

// IngestConfig carries pipeline defaults. These used to be read ad hoc from
// the environment inside the pipeline; they are config now so every call is
// explicit and reproducible.
type IngestConfig struct {
	SourceSystem         string
	DefaultCurrency      string
	NormalizationVersion string
	StuckRunThresholdMin int
}

type ObservabilityConfig struct {
	MetricsEnabled bool
	MetricsPort    int
}

// Load reads configuration from environment variables, honoring a .env file
// when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Host:               getEnv("SERVER_HOST", "localhost"),
			Port:               getEnvAsInt("SERVER_PORT", 8080),
			RateLimitPerSecond: getEnvAsInt("SERVER_RATE_LIMIT_PER_SECOND", 50),
			RateLimitBurst:     getEnvAsInt("SERVER_RATE_LIMIT_BURST", 100),
			AllowedOrigins:     strings.Split(getEnv("SERVER_ALLOWED_ORIGINS", "*"), ","),
		},
		Database: DatabaseConfig{
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnvAsInt("POSTGRES_PORT", 5432),
			User:     getEnv("POSTGRES_USER", "postgres"),
			Password: getEnv("POSTGRES_PASSWORD", "postgres"),
			Database: getEnv("POSTGRES_DB", "statement-ingest"),
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		},
		Storage: StorageConfig{
			LocalPath: getEnv("STORAGE_LOCAL_PATH", "./uploads"),
		},
		Ingest: IngestConfig{
			SourceSystem:         getEnv("INGEST_SOURCE_SYSTEM", "default"),
			DefaultCurrency:      getEnv("INGEST_DEFAULT_CURRENCY", ""),
			NormalizationVersion: getEnv("INGEST_NORMALIZATION_VERSION", "v1"),
			StuckRunThresholdMin: getEnvAsInt("INGEST_STUCK_RUN_THRESHOLD_MIN", 30),
		},
		Observability: ObservabilityConfig{
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
			MetricsPort:    getEnvAsInt("METRICS_PORT", 9090),
		},
	}

	if cfg.Ingest.DefaultCurrency != "" {
		code := strings.ToUpper(strings.TrimSpace(cfg.Ingest.DefaultCurrency))
		if money.GetCurrency(code) == nil {
			return nil, fmt.Errorf("INGEST_DEFAULT_CURRENCY %q is not an ISO-4217 code", cfg.Ingest.DefaultCurrency)
		}
		cfg.Ingest.DefaultCurrency = code
	}

	return cfg, nil
}

// DSN returns the database connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}
