package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// Config holds all configuration for the application.
type Config struct {
	AppEnv                string
	DBDriver              string
	DBDSN                 string
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	CacheTTL              time.Duration
	HTTPPort              int
	GRPCPort              int
	GRPCReflectionEnabled bool
	RefreshInterval       time.Duration
	FetchTimeout          time.Duration
	FetchLimit            int
}

// LoadFromEnv loads configuration from environment variables. Unparseable
// values fall back to their defaults.
func LoadFromEnv() *Config {
	dsn := getEnv("DB_DSN", "")
	if dsn == "" {
		dsn = getEnv("DB_PATH", "./data/database.db")
	}

	return &Config{
		AppEnv:                getEnv("APP_ENV", "development"),
		DBDriver:              getEnv("DB_DRIVER", "sqlite3"),
		DBDSN:                 dsn,
		RedisAddr:             os.Getenv("REDIS_ADDR"),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		RedisDB:               getInt("REDIS_DB", 0),
		CacheTTL:              getDuration("CACHE_TTL", 10*time.Second),
		HTTPPort:              getInt("HTTP_PORT", 8080),
		GRPCPort:              getInt("GRPC_PORT", 50051),
		GRPCReflectionEnabled: getBool("GRPC_REFLECTION_ENABLED", false),
		RefreshInterval:       getDuration("REFRESH_INTERVAL", 30*time.Second),
		FetchTimeout:          getDuration("FETCH_TIMEOUT", 15*time.Second),
		FetchLimit:            getInt("FETCH_LIMIT", 10000),
	}
}

// Validate reports every setting the application cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.DBDriver != "sqlite3" && c.DBDriver != "pgx" {
		errs = append(errs, fmt.Errorf("DB_DRIVER %q: must be sqlite3 or pgx", c.DBDriver))
	}
	if c.DBDSN == "" {
		errs = append(errs, errors.New("DB_DSN must not be empty"))
	}
	if c.RefreshInterval <= 0 {
		errs = append(errs, fmt.Errorf("REFRESH_INTERVAL %s: must be positive", c.RefreshInterval))
	}
	if c.FetchTimeout <= 0 {
		errs = append(errs, fmt.Errorf("FETCH_TIMEOUT %s: must be positive", c.FetchTimeout))
	}
	if c.FetchLimit <= 0 {
		errs = append(errs, fmt.Errorf("FETCH_LIMIT %d: must be positive", c.FetchLimit))
	}
	for name, port := range map[string]int{"HTTP_PORT": c.HTTPPort, "GRPC_PORT": c.GRPCPort} {
		if port < 0 || port > 65535 {
			errs = append(errs, fmt.Errorf("%s %d: must be between 0 and 65535", name, port))
		}
	}
	// 0 picks a free port for each server
	if c.HTTPPort != 0 && c.HTTPPort == c.GRPCPort {
		errs = append(errs, fmt.Errorf("HTTP_PORT and GRPC_PORT must differ, both are %d", c.HTTPPort))
	}
	return errors.Join(errs...)
}

// NewLogger creates a new Zap logger based on the config.
func NewLogger(cfg *Config) (*zap.Logger, error) {
	if cfg.AppEnv == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}

func getBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}
