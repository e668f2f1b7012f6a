package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/brensch/midiset/internal/display"
	"github.com/brensch/midiset/internal/inspector"
)

var errDatasetInvalid = errors.New("dataset has rows whose file_size does not match their content")

var verifyCmd = &cobra.Command{
	Use:   "verify <dataset>",
	Short: "Check that every row's file_size matches its content length",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dataset := args[0]
		report, err := inspector.Verify(dataset, getLogger())
		if err != nil {
			return fmt.Errorf("verification failed: %w", err)
		}
		display.VerifyResult(cmd.OutOrStdout(), dataset, report)
		if !report.OK() {
			return fmt.Errorf("%w (%d rows)", errDatasetInvalid, len(report.Violations))
		}
		return nil
	},
}
