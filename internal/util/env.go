package util

import (
	"os"
	"strconv"
	"time"
)

// EnvOrDefault returns the environment variable value or fallback when it is empty.
func EnvOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// EnvDuration parses a time.Duration such as "750ms" from key.
func EnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	return time.ParseDuration(raw)
}

// EnvInt parses a base 10 integer from key.
func EnvInt(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}

// EnvBool parses a boolean ("true", "0", ...) from key.
func EnvBool(key string, fallback bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	return strconv.ParseBool(raw)
}
