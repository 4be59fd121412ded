package config

import (
	"fmt"
	"os"
	"strconv"
)

// DevRelayConfig configures the in-memory development relay. It is read
// from the environment so the relay stays container friendly.
type DevRelayConfig struct {
	Port        string
	Name        string
	FixturePath string
	Token       string
	WSEnabled   bool
}

func LoadDevRelayConfig() (*DevRelayConfig, error) {
	name := getEnvOrDefault("RELAY_NAME", "")
	if name == "" {
		hostname, _ := os.Hostname()
		if hostname != "" {
			name = hostname
		} else {
			name = "devrelay"
		}
	}

	cfg := &DevRelayConfig{
		Port:        getEnvOrDefault("PORT", "8080"),
		Name:        name,
		FixturePath: getEnvOrDefault("FIXTURE_PATH", ""),
		Token:       getEnvOrDefault("AUTH_TOKEN", ""),
		WSEnabled:   getEnvOrDefault("WS_ENABLED", "true") == "true",
	}

	if _, err := strconv.Atoi(cfg.Port); err != nil {
		return nil, fmt.Errorf("invalid PORT: %s (must be numeric)", cfg.Port)
	}

	return cfg, nil
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
