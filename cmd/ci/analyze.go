package main

import (
	"errors"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/matsen/scholarimpact/internal/analyze"
	"github.com/matsen/scholarimpact/internal/cache"
	"github.com/matsen/scholarimpact/internal/match"
	"github.com/matsen/scholarimpact/internal/pdfmeta"
	"github.com/matsen/scholarimpact/internal/reconcile"
)

var (
	analyzeThreshold int
	analyzeMax       int
	analyzeSource    string
	analyzeNoCache   bool
	analyzePDF       string
)

func init() {
	analyzeCmd.Flags().IntVar(&analyzeThreshold, "threshold", 0, "High-profile h-index cutoff (default from config)")
	analyzeCmd.Flags().IntVar(&analyzeMax, "max-citations", 0, "Maximum citations to analyze (default from config)")
	analyzeCmd.Flags().StringVar(&analyzeSource, "source", "", "Data source: api or scholar (default from config)")
	analyzeCmd.Flags().BoolVar(&analyzeNoCache, "no-cache", false, "Skip the result cache for this run")
	analyzeCmd.Flags().StringVar(&analyzePDF, "pdf", "", "Resolve the paper from a local PDF instead of a title")
	rootCmd.AddCommand(analyzeCmd)
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze [title]",
	Short: "Analyze the citation impact of a paper",
	Long: `Analyze who cites a paper: citing papers, their authors with
reconciled h-indexes and affiliations, and institution/venue/year
breakdowns. Results are cached for seven days per
(title, threshold, max citations, source) combination.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAnalyze,
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	title := ""
	if len(args) > 0 {
		title = args[0]
	}
	if analyzePDF != "" {
		extracted, err := pdfmeta.ExtractTitle(analyzePDF)
		if err != nil {
			exitWithError(ExitError, "reading %s: %v", analyzePDF, err)
		}
		if extracted == "" {
			exitWithError(ExitError, "no title found in %s", analyzePDF)
		}
		title = extracted
	}
	if title == "" {
		exitWithError(ExitError, "a paper title or --pdf is required")
	}

	cfg := loadConfig()
	if analyzeSource != "" {
		if err := cfg.Set("data_source", analyzeSource); err != nil {
			exitWithError(ExitConfigError, "%v", err)
		}
	}
	threshold := cfg.HIndexThreshold
	if cmd.Flags().Changed("threshold") {
		threshold = analyzeThreshold
	}
	maxCitations := cfg.MaxCitations
	if cmd.Flags().Changed("max-citations") {
		maxCitations = analyzeMax
	}

	eng, err := buildEngine(cfg, threshold)
	if err != nil {
		exitWithError(ExitError, "%v", err)
	}
	defer eng.Close()

	key := cache.Key{
		Title:           title,
		HIndexThreshold: threshold,
		MaxCitations:    maxCitations,
		DataSource:      cfg.DataSource,
	}
	if !analyzeNoCache {
		var cached analyze.Result
		if eng.results.Get(key, &cached) {
			return outputResult(&cached)
		}
	}

	an, err := eng.reconciler.Analyze(cmd.Context(), title, reconcile.AnalyzeOptions{
		MaxCitations: maxCitations,
		CitesID:      lookupCitesID(eng, title),
	})
	if err != nil {
		if errors.Is(err, reconcile.ErrPaperNotFound) {
			res := analyze.Empty(title, err.Error())
			outputResult(res)
			os.Exit(ExitNotFound)
		}
		exitWithError(ExitError, "%v", err)
	}

	res := eng.aggregator.Aggregate(an)
	eng.results.Put(key, res)
	return outputResult(res)
}

// lookupCitesID checks the cached publication list of the configured
// Scholar profile for this paper's citation-cluster ID, which unlocks
// the direct secondary citation path.
func lookupCitesID(eng *engine, title string) string {
	if eng.cfg.ScholarID == "" {
		return ""
	}
	pubs, ok := eng.pubs.Get(eng.cfg.ScholarID)
	if !ok {
		return ""
	}
	for _, p := range pubs {
		if p.CitesID != "" && match.Titles(p.Title, title) {
			return p.CitesID
		}
	}
	return ""
}

func outputResult(res *analyze.Result) error {
	if !humanOutput {
		return outputJSON(res)
	}

	outputHuman("%s (%d)\n", res.PaperTitle, res.PaperYear)
	if res.Error != "" {
		outputHuman("error: %s\n", res.Error)
		return nil
	}
	outputHuman("citations: %d total, %d analyzed, %d recent\n",
		res.TotalCitations, res.AnalyzedCitations, res.RecentCitations)

	if len(res.HighProfileAuthors) > 0 {
		outputHuman("\nhigh-profile citing authors:\n")
		for _, a := range res.HighProfileAuthors {
			aff := a.Affiliation
			if aff == "" {
				aff = "unknown affiliation"
			}
			outputHuman("  h=%-4d %s (%s)\n", a.HIndex, a.Name, aff)
		}
	}

	if len(res.InstitutionBreakdown) > 0 {
		outputHuman("\ninstitutions:\n")
		for _, k := range sortedKeys(res.InstitutionBreakdown) {
			outputHuman("  %-12s %d\n", k, res.InstitutionBreakdown[k])
		}
	}
	if len(res.VenueTiers) > 0 {
		outputHuman("\nvenue tiers:\n")
		for _, k := range sortedKeys(res.VenueTiers) {
			outputHuman("  %-12s %d\n", k, res.VenueTiers[k])
		}
	}
	if len(res.InfluentialCitations) > 0 {
		outputHuman("\ninfluential citations:\n")
		for _, c := range res.InfluentialCitations {
			outputHuman("  %s (%s, %d)\n", c.CitingPaperTitle, c.Venue, c.Year)
		}
	}
	return nil
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
