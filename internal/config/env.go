package config

import (
	"os"
	"strconv"
)

// ApplyEnvOverrides lets a handful of env vars override whatever Load
// produced, for the common case of injecting bucket/endpoint from a
// container environment without templating the config file itself.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("S3SWEEP_BUCKET"); v != "" {
		cfg.Bucket = v
	}
	if v := os.Getenv("S3SWEEP_ENDPOINT"); v != "" {
		cfg.Endpoint = v
	}
	if v := os.Getenv("S3SWEEP_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("S3SWEEP_INITIAL_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.InitialWorkers = n
		}
	}
	if v := os.Getenv("S3SWEEP_RATE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimit = n
		}
	}
}

// GetEnvOrDefault returns the named environment variable, or
// defaultValue when it is unset or empty.
func GetEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
