// Package config provides CLI-ambient configuration: the settings that
// surround a run (log level, log destination, provider endpoint, client-side
// rate limiting) but are not themselves part of RunConfig. RunConfig is
// business input and is built from flags by the cmd entrypoint; this package
// only covers operational knobs conventionally read from the environment.
package config

import (
	"os"
	"strconv"
)

// Config holds CLI-ambient settings.
type Config struct {
	LogLevel        string
	LogFilePath     string
	ProviderBaseURL string
	RateLimitRPS    float64
	RateLimitBurst  int
}

// Load loads Config from environment variables, applying defaults for
// anything unset or unparseable.
func Load() *Config {
	return &Config{
		LogLevel:        getEnvOrDefault("FLEET_UPGRADE_LOG_LEVEL", "info"),
		LogFilePath:     getEnvOrDefault("FLEET_UPGRADE_LOG_FILE", ""),
		ProviderBaseURL: getEnvOrDefault("FLEET_UPGRADE_PROVIDER_BASE_URL", "https://compute.example.com/v1"),
		RateLimitRPS:    getEnvFloatOrDefault("FLEET_UPGRADE_RATE_LIMIT_RPS", 10),
		RateLimitBurst:  getEnvIntOrDefault("FLEET_UPGRADE_RATE_LIMIT_BURST", 20),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return f
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return i
}
