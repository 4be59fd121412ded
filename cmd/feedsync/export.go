package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/feedsync/feedsync/internal/export"
	"github.com/feedsync/feedsync/internal/relay"
	"github.com/feedsync/feedsync/internal/report"
)

func exportCmd() *cobra.Command {
	var (
		outDir    string
		relayName string
		users     []string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Archive user logs as compressed JSONL files",
		Long: `Archive user logs as compressed JSONL files.

Each user's full log is read from a single relay and written to
<out>/<user>.jsonl.zst, oldest item first.

Examples:
  # Archive every configured user from the first relay
  feedsync export

  # Archive one user from a specific relay
  feedsync export --relay mirror --users alice -o backups`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			name, rc, err := pickRelay(cfg, relayName)
			if err != nil {
				return err
			}

			seeds := buildSeeds(cfg)
			seeds, err = filterSeeds(seeds, users)
			if err != nil {
				return err
			}
			if len(seeds) == 0 {
				return fmt.Errorf("no users configured")
			}

			client := relay.NewHTTPClient(
				rc.URL,
				rc.Token,
				cfg.Transport.RatePerSecond,
				cfg.Transport.Timeout(),
				cfg.Transport.RetryDelay(),
				cfg.Transport.RetryCount,
				logger.With(zap.String("relay", name)),
			)
			exporter := export.NewExporter(client, name, cfg.Sync.PageSize, report.NewZapReporter(logger), logger)

			var failed int
			for _, seed := range seeds {
				res, err := exporter.ExportUser(ctx, seed.User, outDir)
				if err != nil {
					failed++
					logger.Error("export failed",
						zap.String("user", seed.User.Label()),
						zap.Error(err),
					)
					if ctx.Err() != nil {
						break
					}
					continue
				}
				logger.Info("exported user",
					zap.String("user", seed.User.Label()),
					zap.String("path", res.Path),
					zap.Int("items", res.Items),
					zap.Int64("bytes", res.Bytes),
				)
			}

			if failed > 0 {
				return fmt.Errorf("%d exports failed", failed)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outDir, "out", "o", "exports", "output directory")
	cmd.Flags().StringVar(&relayName, "relay", "", "relay to read from (default: first configured)")
	cmd.Flags().StringSliceVar(&users, "users", nil, "restrict the export to these users")

	return cmd
}
