package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var cacheOlderThan string

func init() {
	cacheClearCmd.Flags().StringVar(&cacheOlderThan, "older-than", "", "Only clear entries older than this (e.g. 30d, 12h)")
	cacheCmd.AddCommand(cacheListCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear cached analysis results",
}

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached analysis results",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		eng, err := buildEngine(cfg, cfg.HIndexThreshold)
		if err != nil {
			exitWithError(ExitError, "%v", err)
		}
		defer eng.Close()

		entries := eng.results.List()
		if !humanOutput {
			return outputJSON(entries)
		}
		for _, e := range entries {
			outputHuman("%-8s %s (threshold %d, max %d, %s)\n",
				e.Age, e.Key.Title, e.Key.HIndexThreshold, e.Key.MaxCitations, e.Key.DataSource)
		}
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear cached results and expired author profiles",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		maxAge := time.Duration(0)
		if cacheOlderThan != "" {
			d, err := parseAge(cacheOlderThan)
			if err != nil {
				exitWithError(ExitError, "%v", err)
			}
			maxAge = d
		}

		cfg := loadConfig()
		eng, err := buildEngine(cfg, cfg.HIndexThreshold)
		if err != nil {
			exitWithError(ExitError, "%v", err)
		}
		defer eng.Close()

		removed := eng.results.Clear(maxAge)
		removed += eng.index.Clear(maxAge)
		if !humanOutput {
			return outputJSON(StatusResponse{Status: "cleared", Count: removed})
		}
		outputHuman("cleared %d entries\n", removed)
		return nil
	},
}

// parseAge parses durations like "30d" and "12h". Days are the common
// case for cache ages, which time.ParseDuration does not accept.
func parseAge(s string) (time.Duration, error) {
	if strings.HasSuffix(s, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err != nil || days < 0 {
			return 0, fmt.Errorf("invalid age %q", s)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid age %q", s)
	}
	return d, nil
}
