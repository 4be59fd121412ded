package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/feedsync/feedsync/internal/feed"
)

func writeConfig(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "feedsync.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("writing config fixture: %v", err)
	}
	return path
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
relays:
  alpha:
    url: http://localhost:7701
    destination: true
  beta:
    url: http://localhost:7702
    destination: true
    token: secret
users:
  alice:
    id: user-alice
    sync:
      mode: full
      follows: true
  bob:
    id: user-bob
    sync:
      mode: latest
      count: 50
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("expected config to load, got error: %v", err)
	}

	if len(cfg.Relays) != 2 {
		t.Errorf("expected 2 relays, got %d", len(cfg.Relays))
	}
	if cfg.Relays["beta"].Token != "secret" {
		t.Errorf("expected beta token to load, got '%s'", cfg.Relays["beta"].Token)
	}
	if !cfg.Users["alice"].Sync.Follows {
		t.Error("expected alice follows to be true")
	}

	// Defaults fill the unspecified sections
	if cfg.Sync.Workers != 5 {
		t.Errorf("expected 5 workers by default, got %d", cfg.Sync.Workers)
	}
	if cfg.Sync.PageSize != 200 {
		t.Errorf("expected page size 200 by default, got %d", cfg.Sync.PageSize)
	}
	if cfg.Transport.TimeoutSec != 30 {
		t.Errorf("expected 30s timeout by default, got %d", cfg.Transport.TimeoutSec)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	path := writeConfig(t, `
relays:
  alpha:
    url: http://localhost:7701
    destination: true
users:
  alice:
    id: user-alice
`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for single-relay config")
	}
}

func TestRelayAndUserNamesAreSorted(t *testing.T) {
	cfg := &Config{
		Relays: map[string]RelayConfig{
			"zeta": {}, "alpha": {}, "mid": {},
		},
		Users: map[string]UserConfig{
			"walter": {}, "alice": {},
		},
	}

	relays := cfg.RelayNames()
	if relays[0] != "alpha" || relays[1] != "mid" || relays[2] != "zeta" {
		t.Errorf("relay names not sorted: %v", relays)
	}

	users := cfg.UserNames()
	if users[0] != "alice" || users[1] != "walter" {
		t.Errorf("user names not sorted: %v", users)
	}
}

func TestSyncModeDefaults(t *testing.T) {
	cases := []struct {
		name string
		in   UserSyncConfig
		want feed.SyncMode
	}{
		{"empty defaults to latest", UserSyncConfig{}, feed.LatestMode(feed.DefaultLatestCount)},
		{"latest with count", UserSyncConfig{Mode: ModeLatest, Count: 50}, feed.LatestMode(50)},
		{"latest without count", UserSyncConfig{Mode: ModeLatest}, feed.LatestMode(feed.DefaultLatestCount)},
		{"full", UserSyncConfig{Mode: ModeFull}, feed.FullMode(false)},
		{"full with backfill", UserSyncConfig{Mode: ModeFull, BackfillAttachments: true}, feed.FullMode(true)},
	}

	for _, tc := range cases {
		got := tc.in.SyncMode()
		if got != tc.want {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestTransportDurations(t *testing.T) {
	tc := TransportConfig{TimeoutSec: 30, RetryDelaySec: 5}
	if tc.Timeout() != 30*time.Second {
		t.Errorf("unexpected timeout: %v", tc.Timeout())
	}
	if tc.RetryDelay() != 5*time.Second {
		t.Errorf("unexpected retry delay: %v", tc.RetryDelay())
	}
}
