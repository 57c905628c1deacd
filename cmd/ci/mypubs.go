package main

import (
	"github.com/spf13/cobra"

	"github.com/matsen/scholarimpact/internal/citation"
)

var (
	mypubsScholarID string
	mypubsRefresh   bool
	mypubsLimit     int
)

func init() {
	mypubsCmd.Flags().StringVar(&mypubsScholarID, "scholar-id", "", "Google Scholar profile ID (default from config)")
	mypubsCmd.Flags().BoolVar(&mypubsRefresh, "refresh", false, "Refetch even when a cached list exists")
	mypubsCmd.Flags().IntVar(&mypubsLimit, "limit", 100, "Maximum publications to fetch")
	rootCmd.AddCommand(mypubsCmd)
}

var mypubsCmd = &cobra.Command{
	Use:   "mypubs",
	Short: "List your publications with citation-cluster IDs",
	Long: `Fetch the publication list of a Google Scholar profile and cache
it. The stored citation-cluster IDs let later analyze runs fetch citing
papers directly, without a paper search.`,
	Args: cobra.NoArgs,
	RunE: runMypubs,
}

func runMypubs(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	scholarID := cfg.ScholarID
	if mypubsScholarID != "" {
		scholarID = mypubsScholarID
	}
	if scholarID == "" {
		exitWithError(ExitConfigError, "no scholar ID: pass --scholar-id or set scholar_id in config")
	}

	eng, err := buildEngine(cfg, cfg.HIndexThreshold)
	if err != nil {
		exitWithError(ExitError, "%v", err)
	}
	defer eng.Close()

	if !mypubsRefresh {
		if pubs, ok := eng.pubs.Get(scholarID); ok {
			return outputPubs(pubs)
		}
	}

	if eng.secondary == nil {
		exitWithError(ExitError, "no scraped source available: set SERPAPI_API_KEY or data_source=scholar")
	}
	if eng.session != nil {
		if err := eng.session.Acquire(); err != nil {
			exitWithError(ExitBlocked, "%v", err)
		}
		defer eng.session.Release()
	}

	pubs, err := eng.secondary.GetAuthorPublications(cmd.Context(), scholarID, mypubsLimit)
	if err != nil {
		exitWithError(ExitError, "fetching publications: %v", err)
	}
	if err := eng.pubs.Put(scholarID, pubs); err != nil {
		exitWithError(ExitError, "caching publications: %v", err)
	}
	return outputPubs(pubs)
}

func outputPubs(pubs []citation.Publication) error {
	if !humanOutput {
		return outputJSON(pubs)
	}
	for _, p := range pubs {
		cluster := p.CitesID
		if cluster == "" {
			cluster = "-"
		}
		outputHuman("%4d  %6d  %-14s %s\n", p.Year, p.CitationCount, cluster, p.Title)
	}
	return nil
}
