// Package config loads Monument server configuration from environment
// variables (with an optional .env file) plus an optional namespaces.yaml
// bootstrap file describing namespaces and actors to create on startup.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// ServerConfig holds the settings needed to start the HTTP server.
type ServerConfig struct {
	HTTPPort       string
	DataDir        string
	NamespacesYAML string // optional; empty means no bootstrap
	SweepInterval  string // parsed to time.Duration by the caller
	GinMode        string

	RetentionTicks   int64  // history rows older than this many ticks behind the current tick are pruned
	KeepChatMessages int    // most recent chat rows kept per namespace
	CleanupInterval  string // parsed to time.Duration by the caller
}

// Load reads a .env file at envPath (if present) and then builds a
// ServerConfig from environment variables, applying defaults.
func Load(envPath string) (*ServerConfig, error) {
	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil {
			// Matches the teacher's tolerance of a missing .env file — env
			// vars already set in the process environment still apply.
			fmt.Fprintf(os.Stderr, "warning: could not load %s: %v\n", envPath, err)
		}
	}

	retentionTicks, err := strconv.ParseInt(getEnvOrDefault("MONUMENT_RETENTION_TICKS", "10000"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid MONUMENT_RETENTION_TICKS: %w", err)
	}
	keepChat, err := strconv.Atoi(getEnvOrDefault("MONUMENT_KEEP_CHAT_MESSAGES", "500"))
	if err != nil {
		return nil, fmt.Errorf("invalid MONUMENT_KEEP_CHAT_MESSAGES: %w", err)
	}

	cfg := &ServerConfig{
		HTTPPort:         getEnvOrDefault("HTTP_PORT", "8080"),
		DataDir:          getEnvOrDefault("MONUMENT_DATA_DIR", "./data/sims"),
		NamespacesYAML:   os.Getenv("MONUMENT_NAMESPACES_YAML"),
		SweepInterval:    getEnvOrDefault("MONUMENT_SWEEP_INTERVAL", "2s"),
		GinMode:          getEnvOrDefault("GIN_MODE", "release"),
		RetentionTicks:   retentionTicks,
		KeepChatMessages: keepChat,
		CleanupInterval:  getEnvOrDefault("MONUMENT_CLEANUP_INTERVAL", "1h"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for obviously broken settings.
func (c *ServerConfig) Validate() error {
	if c.HTTPPort == "" {
		return fmt.Errorf("HTTP_PORT must not be empty")
	}
	if c.DataDir == "" {
		return fmt.Errorf("MONUMENT_DATA_DIR must not be empty")
	}
	if c.NamespacesYAML != "" {
		if _, err := os.Stat(c.NamespacesYAML); err != nil {
			return fmt.Errorf("namespaces bootstrap file %s: %w", c.NamespacesYAML, err)
		}
	}
	return nil
}

func getEnvOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// DefaultEnvPath returns the conventional .env location next to configDir,
// mirroring the teacher's config-dir/.env layout.
func DefaultEnvPath(configDir string) string {
	return filepath.Join(configDir, ".env")
}
