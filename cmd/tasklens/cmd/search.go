package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/Tasklens/internal/search"
)

var (
	searchLimit         int
	searchMinSimilarity float64
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Rank tasks by similarity to a query",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger()
		ctx := context.Background()

		a, err := newApp(ctx, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		minSimilarity := a.searchCfg.DefaultMinSimilarity
		if cmd.Flags().Changed("min-similarity") {
			minSimilarity = searchMinSimilarity
		}

		matches, err := a.engine.Search(ctx, strings.Join(args, " "), searchLimit, minSimilarity)
		if err != nil {
			return err
		}
		return printMatches(matches)
	},
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "l", search.DefaultLimit, "Maximum number of results")
	searchCmd.Flags().Float64Var(&searchMinSimilarity, "min-similarity", search.DefaultMinSimilarity, "Only return tasks scoring above this")
	rootCmd.AddCommand(searchCmd)
}

func printMatches(matches []search.Match) error {
	if outputFormat == "json" {
		return json.NewEncoder(os.Stdout).Encode(matches)
	}
	if len(matches) == 0 {
		fmt.Println("No matching tasks")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TASK\tSIMILARITY")
	for _, m := range matches {
		fmt.Fprintf(w, "%s\t%.4f\n", m.TaskID, m.Similarity)
	}
	return w.Flush()
}
