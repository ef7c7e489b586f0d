package config

import (
	"fmt"
	"os"
	"time"
)

// Config contains runtime configuration values.
type Config struct {
	Environment         string
	HTTPPort            string
	DatabaseURL         string
	RedisAddr           string
	ProcessorBaseURL    string
	ProcessorAPIKey     string
	ProvisioningTimeout time.Duration
	ServiceName         string
}

// Load reads configuration from environment variables with sane defaults.
func Load() (Config, error) {
	cfg := Config{
		Environment:         getEnv("APP_ENV", "development"),
		HTTPPort:            getEnv("HTTP_PORT", "8080"),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		RedisAddr:           getEnv("REDIS_ADDR", "localhost:6379"),
		ProcessorBaseURL:    getEnv("PROCESSOR_BASE_URL", "https://api.processor.local"),
		ProcessorAPIKey:     os.Getenv("PROCESSOR_API_KEY"),
		ProvisioningTimeout: getDuration("PROVISIONING_TIMEOUT", 60*time.Second),
		ServiceName:         getEnv("SERVICE_NAME", "tenancy"),
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
	}
	return def
}
