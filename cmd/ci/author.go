package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/matsen/scholarimpact/internal/citation"
	"github.com/matsen/scholarimpact/internal/identity"
)

// namedAuthorSource is the profile-search capability both scraped
// adapters offer beyond the reconcile.Secondary contract.
type namedAuthorSource interface {
	GetAuthor(ctx context.Context, name string) (*citation.Author, error)
}

var authorSource string

func init() {
	authorCmd.Flags().StringVar(&authorSource, "source", "", "Data source: api or scholar (default from config)")
	rootCmd.AddCommand(authorCmd)
}

var authorCmd = &cobra.Command{
	Use:   "author <name>",
	Short: "Look up a reconciled author profile",
	Long: `Resolve an author by name: the identity index first, then the
structured sources. A fresh resolution is written back to the index so
later analyses start warm.`,
	Args: cobra.ExactArgs(1),
	RunE: runAuthor,
}

func runAuthor(cmd *cobra.Command, args []string) error {
	name := args[0]
	cfg := loadConfig()
	if authorSource != "" {
		if err := cfg.Set("data_source", authorSource); err != nil {
			exitWithError(ExitConfigError, "%v", err)
		}
	}
	eng, err := buildEngine(cfg, cfg.HIndexThreshold)
	if err != nil {
		exitWithError(ExitError, "%v", err)
	}
	defer eng.Close()

	if p, ok := eng.index.GetByAnyID(identity.Query{Name: name}); ok {
		return outputAuthor(&p.Author)
	}

	author, err := eng.primary.GetAuthor(cmd.Context(), name)
	if err != nil {
		exitWithError(ExitError, "author search: %v", err)
	}
	if author == nil && eng.secondary != nil {
		// Both scraped adapters can also search profiles by name.
		if s, ok := eng.secondary.(namedAuthorSource); ok {
			author, err = s.GetAuthor(cmd.Context(), name)
			if err != nil {
				exitWithError(ExitError, "author search: %v", err)
			}
		}
	}
	if author == nil {
		exitWithError(ExitNotFound, "author %q not found", name)
	}

	eng.index.UpdateProfile(*author, nil)
	return outputAuthor(author)
}

func outputAuthor(a *citation.Author) error {
	if !humanOutput {
		return outputJSON(a)
	}
	outputHuman("%s\n", a.Name)
	if a.Affiliation != "" {
		outputHuman("  affiliation: %s\n", a.Affiliation)
	}
	outputHuman("  h-index: %d (%s)\n", a.HIndex, a.HIndexSource)
	if a.CitationCount > 0 {
		outputHuman("  citations: %d over %d works\n", a.CitationCount, a.WorksCount)
	}
	if a.GoogleScholarID != "" {
		outputHuman("  google scholar: %s\n", a.GoogleScholarID)
	}
	if a.SemanticScholarID != "" {
		outputHuman("  semantic scholar: %s\n", a.SemanticScholarID)
	}
	if a.OrcidID != "" {
		outputHuman("  orcid: %s\n", a.OrcidID)
	}
	return nil
}
