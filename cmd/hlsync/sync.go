package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hlsync/hlsync/internal/highlight"
	"github.com/hlsync/hlsync/internal/sync"
	"github.com/hlsync/hlsync/internal/ui"
	"github.com/spf13/cobra"
)

var dryRun bool

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync new highlights to Readwise",
	Long: `Sync highlights committed since the last successful run.

With --dry-run, prints the payload that would be posted and the watermark
that would be recorded, without any network call or state change.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, closeApp, err := newApp()
		if err != nil {
			return err
		}
		defer closeApp()

		result, err := a.runner.Run(cmd.Context(), sync.RunOptions{DryRun: dryRun})
		if err != nil {
			return err
		}

		printResult(result)
		return nil
	},
}

func init() {
	syncCmd.Flags().BoolVar(&dryRun, "dry-run", false,
		"Show what would be posted without posting or updating state")
	rootCmd.AddCommand(syncCmd)
}

func printResult(result *sync.Result) {
	if result.Fetched == 0 {
		fmt.Printf("%s No new highlights found.\n", ui.RenderAccent("•"))
		return
	}

	if result.DryRun {
		fmt.Printf("%s DRY RUN: no highlights will be posted and state will not be updated.\n\n",
			ui.RenderWarn("⚠"))

		payload, err := json.MarshalIndent(result.Batch, "", "  ")
		if err == nil {
			fmt.Println("Would post the following payload to Readwise:")
			fmt.Println(string(payload))
			fmt.Println()
		}

		fmt.Printf("Would sync %d highlight(s).\n", result.Fetched)
		fmt.Printf("Would update last sync time to: %s\n",
			highlight.FormatTimestamp(*result.NewWatermark, time.Local))
		return
	}

	fmt.Printf("%s Synced %d highlight(s) to Readwise.\n", ui.RenderPass("✓"), result.Fetched)
	fmt.Printf("   Last sync time updated to: %s\n",
		highlight.FormatTimestamp(*result.NewWatermark, time.Local))
}
