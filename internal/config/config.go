package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/feedsync/feedsync/internal/feed"
)

type Config struct {
	Relays    map[string]RelayConfig `mapstructure:"relays"`
	Users     map[string]UserConfig  `mapstructure:"users"`
	Transport TransportConfig        `mapstructure:"transport"`
	Sync      SyncConfig             `mapstructure:"sync"`
	Logging   LoggingConfig          `mapstructure:"logging"`
	Notify    NotifyConfig           `mapstructure:"notify"`
}

type RelayConfig struct {
	URL         string `mapstructure:"url"`
	Destination bool   `mapstructure:"destination"`
	Token       string `mapstructure:"token"`
}

type UserConfig struct {
	ID   string         `mapstructure:"id"`
	Sync UserSyncConfig `mapstructure:"sync"`
}

type UserSyncConfig struct {
	Mode                string `mapstructure:"mode"`
	Count               int    `mapstructure:"count"`
	Follows             bool   `mapstructure:"follows"`
	BackfillAttachments bool   `mapstructure:"backfill_attachments"`
}

type TransportConfig struct {
	TimeoutSec    int `mapstructure:"timeout_sec"`
	RetryCount    int `mapstructure:"retry_count"`
	RetryDelaySec int `mapstructure:"retry_delay_sec"`
	RatePerSecond int `mapstructure:"rate_per_second"`
}

type SyncConfig struct {
	Workers  int `mapstructure:"workers"`
	PageSize int `mapstructure:"page_size"`
}

type LoggingConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Directory string `mapstructure:"directory"`
	Level     string `mapstructure:"level"`
}

type NotifyConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Server   string `mapstructure:"server"`
	Topic    string `mapstructure:"topic"`
	Priority string `mapstructure:"priority"`
	Tags     string `mapstructure:"tags"`
	Token    string `mapstructure:"token"`
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("transport.timeout_sec", 30)
	v.SetDefault("transport.retry_count", 3)
	v.SetDefault("transport.retry_delay_sec", 5)
	v.SetDefault("transport.rate_per_second", 10)
	v.SetDefault("sync.workers", 5)
	v.SetDefault("sync.page_size", 200)
	v.SetDefault("logging.enabled", true)
	v.SetDefault("logging.directory", "logs")
	v.SetDefault("logging.level", "info")
	v.SetDefault("notify.enabled", false)
	v.SetDefault("notify.server", "https://ntfy.sh")
	v.SetDefault("notify.priority", "default")
	v.SetDefault("notify.tags", "feedsync")

	// Environment variable support
	v.SetEnvPrefix("FEEDSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// Explicitly bind nested keys to env vars
	_ = v.BindEnv("notify.token", "FEEDSYNC_NTFY_TOKEN")

	// Load config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("feedsync")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// RelayNames returns the configured relay names in lexical order. The order
// is load-bearing: it decides which relay serves as copy source when several
// hold the same item.
func (c *Config) RelayNames() []string {
	names := make([]string, 0, len(c.Relays))
	for name := range c.Relays {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// UserNames returns the configured user names in lexical order, so directly
// configured users always enter the dedup map before any follow expansion.
func (c *Config) UserNames() []string {
	names := make([]string, 0, len(c.Users))
	for name := range c.Users {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SyncMode converts the raw user sync settings into an engine mode,
// applying the latest-mode defaults.
func (u UserSyncConfig) SyncMode() feed.SyncMode {
	if u.Mode == ModeFull {
		return feed.FullMode(u.BackfillAttachments)
	}
	count := u.Count
	if count <= 0 {
		count = feed.DefaultLatestCount
	}
	return feed.LatestMode(count)
}

func (t TransportConfig) Timeout() time.Duration {
	return time.Duration(t.TimeoutSec) * time.Second
}

func (t TransportConfig) RetryDelay() time.Duration {
	return time.Duration(t.RetryDelaySec) * time.Second
}
