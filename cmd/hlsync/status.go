package main

import (
	"fmt"
	"time"

	"github.com/hlsync/hlsync/internal/highlight"
	"github.com/hlsync/hlsync/internal/ui"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show sync state",
	Long: `Display the current sync state.

Shows the source database location, the watermark file and its value, and
how many highlights are waiting to be synced.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, closeApp, err := newApp()
		if err != nil {
			return err
		}
		defer closeApp()

		mark, present, err := a.marks.Load()
		if err != nil {
			return err
		}

		var since *float64
		if present {
			since = &mark
		}
		pending, err := a.db.CountSince(cmd.Context(), since)
		if err != nil {
			return err
		}

		fmt.Printf("\n%s Sync Status\n\n", ui.RenderAccent("●"))
		fmt.Printf("Source:    %s\n", a.cfg.DatabasePath)
		fmt.Printf("State:     %s\n", a.marks.Path())
		if present {
			fmt.Printf("Last sync: %s\n", highlight.FormatTimestamp(mark, time.Local))
		} else {
			fmt.Printf("Last sync: %s\n", ui.RenderDim("never (full history pending)"))
		}
		if pending > 0 {
			fmt.Printf("Pending:   %s\n", ui.RenderWarn(fmt.Sprintf("%d highlight(s)", pending)))
		} else {
			fmt.Printf("Pending:   %s\n", ui.RenderPass("none"))
		}
		fmt.Println()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
