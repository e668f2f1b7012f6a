package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/brensch/midiset/internal/display"
	"github.com/brensch/midiset/internal/inspector"
)

// inspectCmd summarises a dataset written by the root command.
var inspectCmd = &cobra.Command{
	Use:   "inspect <dataset>",
	Short: "Summarise a MIDI Parquet dataset per group",
	Long: `Queries every partition file of <dataset> with DuckDB and prints the number
of MIDI files and their total, smallest and largest size for each group.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := getLogger()
		dataset := args[0]

		logger.Info("Starting inspection", slog.String("dataset", dataset))
		groups, err := inspector.Summarize(cmd.Context(), dataset, logger)
		if err != nil {
			return fmt.Errorf("inspection failed: %w", err)
		}
		display.DatasetSummary(cmd.OutOrStdout(), dataset, groups)
		return nil
	},
}
