package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"namaste-icd-mapper/internal/vocab"
)

// NewValidateCmd creates the validate command.
func NewValidateCmd() *cobra.Command {
	var (
		namastePath string
		icdPath     string
	)

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check that the datasets load cleanly",
		Long: `Loads both datasets with the same validation the server applies at
startup and reports entry counts and browse categories.

Example:
  vocabctl validate --namaste data/namaste_codes.json --icd data/icd11_codes.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd.OutOrStdout(), namastePath, icdPath)
		},
	}

	cmd.Flags().StringVar(&namastePath, "namaste", "data/namaste_codes.json", "Path to the NAMASTE dataset")
	cmd.Flags().StringVar(&icdPath, "icd", "data/icd11_codes.json", "Path to the ICD-11 dataset")

	return cmd
}

func runValidate(out io.Writer, namastePath, icdPath string) error {
	ayush, err := vocab.LoadAyushCodes(namastePath)
	if err != nil {
		return err
	}
	icd, err := vocab.LoadICDCodes(icdPath)
	if err != nil {
		return err
	}

	catalog := vocab.NewCatalog(ayush)
	categories := catalog.Categories()

	fmt.Fprintf(out, "NAMASTE codes: %d (%s)\n", catalog.Len(), namastePath)
	fmt.Fprintf(out, "ICD-11 codes:  %d (%s)\n", len(icd), icdPath)
	fmt.Fprintf(out, "Categories:    %d\n", len(categories))
	for _, c := range categories {
		fmt.Fprintf(out, "  - %s\n", c)
	}
	return nil
}
