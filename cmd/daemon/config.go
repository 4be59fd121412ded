package main

import (
	"os"
	"strconv"
	"time"
)

// DaemonConfig holds daemon-specific configuration
type DaemonConfig struct {
	ConfigPath   string        // Path to feedsync config YAML
	Interval     time.Duration // Time between sync runs
	StateFile    string        // File recording the last successful run
	RunOnStartup bool          // Sync on startup if the last run is stale
}

// LoadDaemonConfig loads configuration from environment variables
func LoadDaemonConfig() *DaemonConfig {
	return &DaemonConfig{
		ConfigPath:   getEnvOrDefault("FEEDSYNC_DAEMON_CONFIG_PATH", "/app/configs/feedsync.yaml"),
		Interval:     getEnvDurationOrDefault("FEEDSYNC_DAEMON_INTERVAL", time.Hour),
		StateFile:    getEnvOrDefault("FEEDSYNC_DAEMON_STATE_FILE", "/app/data/.daemon-state"),
		RunOnStartup: getEnvBoolOrDefault("FEEDSYNC_DAEMON_RUN_ON_STARTUP", true),
	}
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil && d > 0 {
			return d
		}
	}
	return defaultVal
}

func getEnvBoolOrDefault(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}
