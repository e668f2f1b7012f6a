package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/brensch/midiset/internal/db"
)

var historyLimit int

// historyCmd prints the run ledger kept when --db-path is set.
var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "View past runs recorded in the DuckDB ledger",
	Long: `Lists the most recent runs recorded in the ledger at --db-path. Pass a run ID
to list the outcome of every archive in that run instead.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := getLogger()
		cfg := getConfig()
		if cfg.DbPath == "" {
			return errors.New("--db-path (or db_path in the config file) is required")
		}

		runID := ""
		if len(args) == 1 {
			runID = args[0]
		}

		ledger, err := db.OpenLedger(cmd.Context(), cfg.DbPath)
		if err != nil {
			return err
		}
		defer ledger.Close()

		logger.Debug("Querying run ledger", "run_id", runID, "limit", historyLimit)
		if err := db.DisplayRuns(cmd.Context(), cmd.OutOrStdout(), ledger, runID, historyLimit); err != nil {
			logger.Error("Failed to display run history", "error", err)
			return err
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Limit the number of runs displayed")
}
