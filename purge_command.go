package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/yeti47/mocap/config"
	"github.com/yeti47/mocap/retention"
)

func newPurgeCommand(ctx *commandContext) *cobra.Command {
	var root, maxAge string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete remote files older than the retention age",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx.overrides = config.ConfigOverrides{RetentionAge: &maxAge}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger := ctx.newLogger(cfg)

			settings := retention.NewRetentionSettingsProvider(config.NewStaticSettingsProvider(cfg)).GetSettings()
			if root != "" {
				settings.Root = root
			}
			settings.DryRun = dryRun

			factory, err := ctx.storeFactory(cfg, logger)
			if err != nil {
				return err
			}
			scheduler := retention.NewScheduler(factory, config.NewStaticSettingsProvider(settings), retention.NewPassLock(cfg.LockPath), logger)

			result, err := scheduler.RunPass(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			verb := "Deleted"
			if result.DryRun {
				verb = "Would delete"
			}
			if len(result.Deleted) > 0 {
				rows := make([][]string, 0, len(result.Deleted))
				for _, path := range result.Deleted {
					rows = append(rows, []string{path})
				}
				fmt.Fprintln(out, renderTable([]string{verb}, rows, nil))
			}
			fmt.Fprintf(out, "%s %d of %d files older than %s under %q (%d failed, %d unreadable directories) in %s\n",
				verb, len(result.Deleted), result.Scanned, result.AgeLimit, result.Root,
				result.Failed, result.ListErrors, result.FinishedAt.Sub(result.StartedAt).Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().StringVar(&root, "root", "", "Remote directory to purge (defaults to retention_root or the remote working dir)")
	cmd.Flags().StringVar(&maxAge, "max-age", "", "Age limit, e.g. 7d or 48h (defaults to retention_age)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "List files that would be deleted without deleting them")

	return cmd
}
