package cmd

import (
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// outputFormat is the output format (table, json)
var outputFormat string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tasklens",
	Short: "Semantic search over kanban tasks",
	Long: `Tasklens keeps a vector embedding for every task and ranks tasks by
cosine similarity to a free-text query.

Examples:
  # Run the HTTP API, NATS subscriber and reconcile worker
  tasklens serve

  # Embed every task (safe to re-run)
  tasklens backfill

  # Query the index from the terminal
  tasklens search "certificate expiration" --limit 5

  # Seal a provider key for OPENAI_API_KEY_SEALED
  tasklens seal sk-...`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: false,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "Output format: table, json")
}

// newLogger builds the JSON logger used by every command.
func newLogger() *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(os.Getenv("TASKLENS_LOG_LEVEL")) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}
