/*
Package main is the entry point for vocabctl, the dataset tooling that ships
with the mapping server.

Usage:

	vocabctl [command]

Available Commands:

	convert     Convert the NAMASTE code workbook to the JSON dataset
	validate    Check that the datasets load cleanly
	feedback    Work with the clinician feedback log
	token       Issue a bearer token for the admin API
*/
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"namaste-icd-mapper/internal/cli"
)

// Version information (set via ldflags during build)
var (
	version = "dev"
	commit  = "none"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "vocabctl",
		Short: "Dataset tooling for the NAMASTE to ICD-11 mapper",
		Long: `vocabctl prepares and inspects the files the mapping server reads:
the NAMASTE vocabulary converted from the national morbidity workbook, the
ICD-11 classification dataset, and the clinician feedback log.`,
		Version:      fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage: true,
	}

	rootCmd.AddCommand(cli.NewConvertCmd())
	rootCmd.AddCommand(cli.NewValidateCmd())
	rootCmd.AddCommand(cli.NewFeedbackCmd())
	rootCmd.AddCommand(cli.NewTokenCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
