package main

import (
	"github.com/spf13/cobra"

	"github.com/koustreak/dbkit/internal/app"
	"github.com/koustreak/dbkit/internal/watch"
)

var watchSchedule string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-validate on a cron schedule until interrupted",
	Long: `Run the validation of every declared table on a cron schedule
(watch.schedule, e.g. "*/15 * * * *" or "@every 10m") and archive each run
when a report archive is configured.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signalContext()
		defer stop()

		if cmd.Flags().Changed("schedule") {
			cfg.Watch.Schedule = watchSchedule
		}

		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		w := newWatcher(a)
		if err := w.Start(ctx); err != nil {
			return err
		}
		<-ctx.Done()
		return w.Stop()
	},
}

func newWatcher(a *app.App) *watch.Watcher {
	opts := []watch.Option{
		watch.WithMeta(a.Meta()),
		watch.WithLogger(a.Log),
	}
	if a.Archiver != nil {
		opts = append(opts, watch.WithArchive(a.Archiver))
	}
	return watch.New(a.Validator, a.Tables, cfg.Watch.Schedule, opts...)
}

func init() {
	watchCmd.Flags().StringVar(&watchSchedule, "schedule", "", "cron schedule (overrides watch.schedule)")
	rootCmd.AddCommand(watchCmd)
}
