package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/feedsync/feedsync/internal/engine"
	"github.com/feedsync/feedsync/internal/notify"
	"github.com/feedsync/feedsync/internal/report"
)

func syncCmd() *cobra.Command {
	var (
		dryRun bool
		users  []string
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one replication pass over the configured relays",
		Long: `Run one replication pass over the configured relays.

Every configured user is reconciled across all relays: profiles are
resolved, follow lists expanded one hop, and missing items copied to the
destination relays.

Examples:
  # Sync everything in the config
  feedsync sync

  # Sync two specific users
  feedsync sync --users alice,bob

  # Show the task list without touching any relay
  feedsync sync --dry-run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			seeds := buildSeeds(cfg)
			seeds, err := filterSeeds(seeds, users)
			if err != nil {
				return err
			}
			if len(seeds) == 0 {
				return fmt.Errorf("no users configured")
			}

			logger.Info("generated tasks", zap.Int("count", len(seeds)))

			if dryRun {
				for _, t := range seeds {
					fmt.Printf("Would sync: %s\n", t)
				}
				return nil
			}

			relays := buildRelays(cfg, logger)
			reporter := report.NewZapReporter(logger)
			syncer := engine.NewSyncer(relays, cfg.Sync.PageSize, reporter, logger)
			scheduler := engine.NewScheduler(syncer, cfg.Sync.Workers, reporter, logger)
			notifier := notify.New(&cfg.Notify, logger)

			start := time.Now()
			result, runErr := scheduler.Run(ctx, seeds)
			duration := time.Since(start)

			// Print summary
			logger.Info("sync complete",
				zap.Int("tasks", result.Tasks),
				zap.Int("succeeded", result.Succeeded),
				zap.Int("failed", result.Failed),
				zap.Int("items_copied", result.ItemsCopied),
				zap.Int64("bytes_copied", result.BytesCopied),
				zap.Duration("duration", duration),
			)

			if runErr == nil && result.Failed > 0 {
				runErr = fmt.Errorf("%d users failed", result.Failed)
			}

			if runErr != nil {
				for _, e := range result.Errors {
					logger.Error("sync error", zap.String("error", e))
				}
				nctx, cancel := notifyCtx(ctx)
				defer cancel()
				if err := notifier.SendFailure(nctx, result, duration, runErr); err != nil {
					logger.Warn("failed to send notification", zap.Error(err))
				}
				return runErr
			}

			if err := notifier.SendSuccess(ctx, result, duration); err != nil {
				logger.Warn("failed to send notification", zap.Error(err))
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "show what would be synced")
	cmd.Flags().StringSliceVar(&users, "users", nil, "restrict the run to these users")

	return cmd
}
