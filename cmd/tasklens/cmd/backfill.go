package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Embed every task in the task table",
	Long: `Index every task sequentially, pausing SEARCH_BACKFILL_DELAY between
tasks. Existing embeddings are replaced, so the command is safe to re-run.
A task that fails to embed is counted and the run continues.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger()
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		stats, err := a.indexer.BackfillAll(ctx)
		if outputFormat == "json" {
			_ = json.NewEncoder(os.Stdout).Encode(stats)
		} else {
			fmt.Printf("Backfill complete: %d success, %d failed\n", stats.Success, stats.Failed)
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(backfillCmd)
}
