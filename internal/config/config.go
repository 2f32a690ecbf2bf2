// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// Config holds everything the process needs at startup.
type Config struct {
	// Token authenticates the bot against the Discord gateway. Required.
	Token string
	// DatabasePath is the sqlite file backing the store.
	DatabasePath string
	// HealthAddr is the listen address for the liveness probe.
	HealthAddr string
	// LogLevel is a zerolog level name (debug, info, warn, error).
	LogLevel string
}

// Load reads configuration from environment variables. A missing bot
// token is a startup error.
func Load() (*Config, error) {
	token := strings.TrimSpace(os.Getenv("DISCORD_TOKEN"))
	if token == "" {
		return nil, errors.New("no Discord token found, set DISCORD_TOKEN")
	}

	addr, err := healthAddr()
	if err != nil {
		return nil, err
	}

	return &Config{
		Token:        token,
		DatabasePath: getEnvOrDefault("DATABASE_PATH", "updatebuddy.db"),
		HealthAddr:   addr,
		LogLevel:     getEnvOrDefault("LOG_LEVEL", "info"),
	}, nil
}

func healthAddr() (string, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}
	if strings.Contains(port, ":") {
		// Allow ":8080" or "127.0.0.1:8080" directly.
		return port, nil
	}
	if strings.Contains(port, " ") {
		return "", fmt.Errorf("invalid PORT value: %q", port)
	}
	return ":" + port, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}
