// Package main provides the ci CLI entry point.
package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags
var Version = "dev"

// humanOutput controls whether to use human-readable output
var humanOutput bool

// verbose enables debug logging on stderr
var verbose bool

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(ExitError)
	}
}

var rootCmd = &cobra.Command{
	Use:   "ci",
	Short: "Citation impact analysis for academic papers",
	Long: `ci analyzes who cites a paper: it pulls the citing papers from
Semantic Scholar and Google Scholar, reconciles the citing authors into
canonical profiles with their best-known h-index and affiliation, and
reports institution, venue, and influence breakdowns.

All commands output JSON by default for easy scripting; pass --human
for a readable summary. API keys (S2_API_KEY, SERPAPI_API_KEY,
OPENALEX_MAILTO) are read from the environment or a .env file.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		_ = godotenv.Load()
		if verbose {
			logrus.SetLevel(logrus.DebugLevel)
		} else {
			logrus.SetLevel(logrus.WarnLevel)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&humanOutput, "human", false, "Use human-readable output instead of JSON")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.Version = Version
}
