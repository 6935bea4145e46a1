package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"namaste-icd-mapper/services"
)

// NewFeedbackCmd creates the feedback command group.
func NewFeedbackCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feedback",
		Short: "Work with the clinician feedback log",
	}
	cmd.AddCommand(NewFeedbackExportCmd())
	return cmd
}

// NewFeedbackExportCmd creates the feedback export subcommand.
func NewFeedbackExportCmd() *cobra.Command {
	var (
		input  string
		output string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the feedback log to a spreadsheet",
		Long: `Writes every feedback record to an .xlsx workbook with a Feedback
sheet and a Summary sheet of acceptance counts per NAMASTE code.

Example:
  vocabctl feedback export --input data/feedback.json --output feedback.xlsx`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFeedbackExport(cmd.Context(), cmd.OutOrStdout(), input, output)
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "data/feedback.json", "Path to the feedback log")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Path of the .xlsx file to write")
	cmd.MarkFlagRequired("output")

	return cmd
}

func runFeedbackExport(ctx context.Context, out io.Writer, input, output string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, err := os.Stat(input); err != nil {
		return fmt.Errorf("feedback log not found: %w", err)
	}

	records, err := services.NewFileFeedbackStore(input).List(ctx)
	if err != nil {
		return err
	}

	resp, err := services.ExportFeedbackExcel(records, output)
	if err != nil {
		return err
	}

	summary := services.SummarizeFeedback(records)
	fmt.Fprintf(out, "Exported %d records -> %s\n", resp.RecordCount, resp.Path)
	fmt.Fprintf(out, "Accepted: %d  Rejected: %d  Acceptance rate: %.2f\n",
		summary.Accepted, summary.Rejected, summary.AcceptanceRate)
	return nil
}
