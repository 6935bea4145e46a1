package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"namaste-icd-mapper/internal/vocab"
)

// NewConvertCmd creates the convert command.
func NewConvertCmd() *cobra.Command {
	var (
		input  string
		output string
		sheet  string
	)

	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert the NAMASTE code workbook to the JSON dataset",
		Long: `Reads the national morbidity code workbook and writes the NAMASTE
dataset consumed by the mapping server.

Rows without a code, and the AYU/DIS section rows, are skipped. Each entry
gets a browse category derived from its ontology branches. Rows with no term,
English name or diacritical name are skipped as well.

The workbook must be in .xlsx format; save legacy .xls files as .xlsx first.

Examples:
  vocabctl convert --input NATIONAL_MORBIDITY_CODES.xlsx --output data/namaste_codes.json
  vocabctl convert --input codes.xlsx --output out.json --sheet Ayurveda`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(cmd.OutOrStdout(), input, output, sheet)
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "Path to the source .xlsx workbook")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Path of the JSON dataset to write")
	cmd.Flags().StringVar(&sheet, "sheet", "", "Worksheet name (default: first sheet)")
	cmd.MarkFlagRequired("input")
	cmd.MarkFlagRequired("output")

	return cmd
}

func runConvert(out io.Writer, input, output, sheet string) error {
	codes, stats, err := vocab.ConvertWorkbook(input, sheet)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(codes, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode dataset: %w", err)
	}
	if dir := filepath.Dir(output); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := os.WriteFile(output, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", output, err)
	}

	fmt.Fprintf(out, "Converted %d of %d rows (%d skipped) -> %s\n",
		stats.Converted, stats.Rows, stats.Skipped, output)
	fmt.Fprintln(out, "\nCategories:")
	for _, c := range stats.SortedCategories() {
		fmt.Fprintf(out, "  %-20s %d\n", c, stats.Categories[c])
	}
	return nil
}
