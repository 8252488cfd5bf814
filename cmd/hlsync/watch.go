package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/hlsync/hlsync/internal/daemon"
	"github.com/hlsync/hlsync/internal/sync"
	"github.com/hlsync/hlsync/internal/ui"
	"github.com/spf13/cobra"
)

var (
	watchDebounce time.Duration
	watchInterval time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the database and sync on changes (foreground)",
	Long: `Run in the foreground, watching the GoodLinks database for writes.

After each quiet period a sync run is triggered; an optional interval adds
a periodic run independent of file events. Runs execute one at a time.
Press Ctrl+C to stop.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, closeApp, err := newApp()
		if err != nil {
			return err
		}
		defer closeApp()

		d, err := daemon.New(daemon.Config{
			DatabasePath:     a.cfg.DatabasePath,
			DebounceInterval: watchDebounce,
			PollInterval:     watchInterval,
			Logger:           a.logger,
		}, func(ctx context.Context) error {
			result, err := a.runner.Run(ctx, sync.RunOptions{})
			if err != nil {
				return err
			}
			if result.Fetched > 0 {
				printResult(result)
			}
			return nil
		})
		if err != nil {
			return err
		}

		fmt.Printf("%s Watching %s\n", ui.RenderAccent("●"), a.cfg.DatabasePath)
		fmt.Println("Press Ctrl+C to stop")

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return d.Run(ctx)
	},
}

func init() {
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 2*time.Second,
		"Quiet period before a change triggers a sync")
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 0,
		"Also sync on this fixed interval (0 disables)")
	rootCmd.AddCommand(watchCmd)
}
