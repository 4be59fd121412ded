package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/feedsync/feedsync/internal/config"
	"github.com/feedsync/feedsync/internal/engine"
	"github.com/feedsync/feedsync/internal/feed"
	"github.com/feedsync/feedsync/internal/relay"
)

// buildRelays constructs one HTTP client per configured relay. Relay order
// follows config.RelayNames, which decides the copy source when several
// relays hold the same item.
func buildRelays(cfg *config.Config, logger *zap.Logger) []engine.Relay {
	var relays []engine.Relay
	for _, name := range cfg.RelayNames() {
		rc := cfg.Relays[name]
		client := relay.NewHTTPClient(
			rc.URL,
			rc.Token,
			cfg.Transport.RatePerSecond,
			cfg.Transport.Timeout(),
			cfg.Transport.RetryDelay(),
			cfg.Transport.RetryCount,
			logger.With(zap.String("relay", name)),
		)
		relays = append(relays, engine.Relay{
			Name:        name,
			URL:         rc.URL,
			Destination: rc.Destination,
			Client:      client,
		})
	}
	return relays
}

// buildSeeds creates seed tasks from the configured users, in the order
// config.UserNames reports them.
func buildSeeds(cfg *config.Config) []engine.Task {
	var seeds []engine.Task
	for _, name := range cfg.UserNames() {
		uc := cfg.Users[name]
		seeds = append(seeds, engine.Task{
			User: feed.UserRef{
				ID:        feed.UserID(uc.ID),
				KnownName: name,
			},
			Mode:    uc.Sync.SyncMode(),
			Follows: uc.Sync.Follows,
		})
	}
	return seeds
}

// filterSeeds restricts seeds to the named users. Names match either the
// config entry name or the raw user ID.
func filterSeeds(seeds []engine.Task, only []string) ([]engine.Task, error) {
	if len(only) == 0 {
		return seeds, nil
	}

	want := make(map[string]bool, len(only))
	for _, name := range only {
		want[name] = true
	}

	var filtered []engine.Task
	for _, seed := range seeds {
		if want[seed.User.KnownName] || want[string(seed.User.ID)] {
			filtered = append(filtered, seed)
			delete(want, seed.User.KnownName)
			delete(want, string(seed.User.ID))
		}
	}

	for name := range want {
		return nil, fmt.Errorf("unknown user %q (not in config)", name)
	}

	return filtered, nil
}

// pickRelay resolves a relay name to its config, defaulting to the first
// configured relay when name is empty.
func pickRelay(cfg *config.Config, name string) (string, config.RelayConfig, error) {
	names := cfg.RelayNames()
	if len(names) == 0 {
		return "", config.RelayConfig{}, fmt.Errorf("no relays configured")
	}
	if name == "" {
		name = names[0]
	}
	rc, ok := cfg.Relays[name]
	if !ok {
		return "", config.RelayConfig{}, fmt.Errorf("unknown relay %q (not in config)", name)
	}
	return name, rc, nil
}

// notifyCtx returns a context suitable for delivering a notification. The
// command context may already be canceled when a run aborts, so in that
// case delivery runs on a fresh context with a short deadline.
func notifyCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx.Err() == nil {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(context.Background(), 10*time.Second)
}
