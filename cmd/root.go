package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"posdash/internal/logger"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "posdash",
	Short: "posdash - point-of-sale dashboard client",
	Long: `posdash manages the categories, products and sales of a point-of-sale
backend and composes new invoices from the command line.

Every list supports server-side filtering and pagination, either as a
one-shot listing or as an interactive browser (--interactive). Deletes always
ask for confirmation unless --yes is given.

Required environment variables:
  POSDASH_API_URL - Base URL of the backend (e.g. https://pos.example.com)`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	Run: func(cmd *cobra.Command, args []string) {
		log := logger.WithComponent("root")
		log.Info().
			Str("version", version).
			Msg("posdash executed")

		fmt.Println("Welcome to posdash!")
		fmt.Println("Use --help to see available commands and options.")
	},
}

func Execute() {
	log := logger.WithComponent("cmd")

	if err := rootCmd.Execute(); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")

		// Failures already shown as a notice are not printed twice.
		var shown *reportedError
		if !errors.As(err, &shown) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().BoolP("version", "v", false, "Print version information")
}
