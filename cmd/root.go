// Package cmd defines and implements the CLI commands for the normcrawler
// executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "normcrawler",
		Short: "An incremental crawler for the state legislature norm corpus.",
		Long: `normcrawler keeps a local full-text index of legal norms in sync with
the state legislature portal. Each run discovers the highest published number
per norm type and year, fetches the numbers that appeared since the last run,
and revalidates a trailing window of recent documents, all within a fixed
request budget.`,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./normcrawler.yaml)")

	cmd.AddCommand(newCrawlCmd())
	cmd.AddCommand(newProbeCmd())
	cmd.AddCommand(newStateCmd())

	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
