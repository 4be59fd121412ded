package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/feedsync/feedsync/internal/config"
	"github.com/feedsync/feedsync/internal/engine"
	"github.com/feedsync/feedsync/internal/feed"
	"github.com/feedsync/feedsync/internal/notify"
	"github.com/feedsync/feedsync/internal/relay"
	"github.com/feedsync/feedsync/internal/report"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Setup logger
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		return 1
	}
	defer logger.Sync()

	// Load daemon config
	daemonCfg := LoadDaemonConfig()

	logger.Info("daemon configuration loaded",
		zap.String("configPath", daemonCfg.ConfigPath),
		zap.Duration("interval", daemonCfg.Interval),
		zap.String("stateFile", daemonCfg.StateFile),
		zap.Bool("runOnStartup", daemonCfg.RunOnStartup),
	)

	// Load sync config
	cfg, err := config.Load(daemonCfg.ConfigPath)
	if err != nil {
		logger.Error("failed to load sync config", zap.Error(err))
		return 1
	}

	logger.Info("sync configuration loaded",
		zap.Int("relays", len(cfg.Relays)),
		zap.Int("users", len(cfg.Users)),
		zap.Int("workers", cfg.Sync.Workers),
	)

	// Setup context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	// Build the sync pipeline once; every run reuses it
	relays := buildRelays(cfg, logger)
	seeds := buildSeeds(cfg)
	reporter := report.NewZapReporter(logger)
	syncer := engine.NewSyncer(relays, cfg.Sync.PageSize, reporter, logger)
	scheduler := engine.NewScheduler(syncer, cfg.Sync.Workers, reporter, logger)

	syncRun := func(ctx context.Context) (*engine.RunResult, error) {
		return scheduler.Run(ctx, seeds)
	}

	daemon := NewDaemon(
		daemonCfg,
		NewRunTracker(daemonCfg.StateFile),
		syncRun,
		notify.New(&cfg.Notify, logger),
		clockwork.NewRealClock(),
		logger,
	)

	logger.Info("daemon started", zap.Duration("interval", daemonCfg.Interval))

	if err := daemon.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error("daemon stopped", zap.Error(err))
		return 1
	}
	return 0
}

// buildRelays constructs one HTTP client per configured relay, in
// config.RelayNames order.
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

// buildSeeds creates seed tasks from the configured users
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
