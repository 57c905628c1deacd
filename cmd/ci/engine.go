package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/matsen/scholarimpact/internal/analyze"
	"github.com/matsen/scholarimpact/internal/cache"
	"github.com/matsen/scholarimpact/internal/citation"
	"github.com/matsen/scholarimpact/internal/config"
	"github.com/matsen/scholarimpact/internal/identity"
	"github.com/matsen/scholarimpact/internal/institution"
	"github.com/matsen/scholarimpact/internal/rankings"
	"github.com/matsen/scholarimpact/internal/reconcile"
	"github.com/matsen/scholarimpact/internal/source/crossref"
	"github.com/matsen/scholarimpact/internal/source/dblp"
	"github.com/matsen/scholarimpact/internal/source/orcid"
	"github.com/matsen/scholarimpact/internal/source/s2"
	"github.com/matsen/scholarimpact/internal/source/scholar"
	"github.com/matsen/scholarimpact/internal/source/serpapi"
)

// engine bundles the wired-up analysis pipeline for one command run.
type engine struct {
	cfg        *config.Config
	reconciler *reconcile.Reconciler
	aggregator *analyze.Aggregator
	primary    *s2.Client
	secondary  reconcile.Secondary
	session    *scholar.Session
	results    *cache.Results
	pubs       *cache.Publications
	index      *identity.Index

	closers []func() error
}

// buildEngine wires sources, caches, and the reconciler from the user
// configuration. The threshold is the high-profile h-index cutoff after
// flag overrides have been applied.
func buildEngine(cfg *config.Config, threshold int) (*engine, error) {
	cacheDir, err := cfg.EffectiveCacheDir()
	if err != nil {
		return nil, err
	}
	results, err := cache.NewResults(filepath.Join(cacheDir, config.ResultsDir))
	if err != nil {
		return nil, fmt.Errorf("opening result cache: %w", err)
	}
	pubs, err := cache.NewPublications(filepath.Join(cacheDir, config.PubsDir))
	if err != nil {
		return nil, fmt.Errorf("opening publication cache: %w", err)
	}
	index, err := identity.New(filepath.Join(cacheDir, config.ProfilesDir))
	if err != nil {
		return nil, fmt.Errorf("opening identity index: %w", err)
	}
	categorizer, err := institution.NewCategorizer()
	if err != nil {
		return nil, err
	}

	e := &engine{
		cfg:     cfg,
		primary: s2.NewClient(),
		results: results,
		pubs:    pubs,
		index:   index,
	}

	opts := []reconcile.Option{
		reconcile.WithPrimary(e.primary),
		// Crossref first for DOI and venue; DBLP catches the CS papers
		// Crossref lists under a bare proceedings title.
		reconcile.WithEnhancer(enhancerChain{crossref.NewClient(), dblp.NewClient()}),
		reconcile.WithAuthorFallback(orcid.NewClient()),
		reconcile.WithIndex(index),
		reconcile.WithCategorizer(categorizer),
	}

	// "scholar" drives the scraper through the session state machine;
	// "api" uses SerpAPI as the scraped source when a key is present and
	// otherwise runs structured-only.
	switch cfg.DataSource {
	case "scholar":
		session := scholar.NewSession(scholar.NewHTTPBrowser(), logrus.StandardLogger())
		scraper := scholar.NewScraper(session)
		e.secondary = scraper
		e.session = session
		e.closers = append(e.closers, session.Close)
		opts = append(opts, reconcile.WithSecondary(scraper), reconcile.WithSession(session))
	default:
		if sp := serpapi.NewClient(); sp.Available() {
			e.secondary = sp
			opts = append(opts, reconcile.WithSecondary(sp))
		}
	}

	var aggOpts []analyze.Option
	if cfg.RankingsDB != "" {
		db, err := rankings.Open(cfg.RankingsDB)
		if err != nil {
			return nil, fmt.Errorf("opening rankings database: %w", err)
		}
		e.closers = append(e.closers, db.Close)
		aggOpts = append(aggOpts, analyze.WithRankings(db))
	}

	e.reconciler = reconcile.New(opts...)
	e.aggregator = analyze.New(threshold, aggOpts...)
	return e, nil
}

// enhancerChain tries each metadata source in order, returning the
// first hit.
type enhancerChain []reconcile.Enhancer

func (c enhancerChain) SearchPaper(ctx context.Context, title string) (*citation.Paper, error) {
	for _, e := range c {
		p, err := e.SearchPaper(ctx, title)
		if err != nil {
			logrus.WithError(err).Debug("metadata source failed")
			continue
		}
		if p != nil {
			return p, nil
		}
	}
	return nil, nil
}

// Close releases the engine's long-lived resources.
func (e *engine) Close() {
	for _, fn := range e.closers {
		if err := fn(); err != nil {
			logrus.WithError(err).Debug("engine close")
		}
	}
}

// loadConfig reads the user configuration, exiting on parse errors.
func loadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		exitWithError(ExitConfigError, "loading config: %v", err)
	}
	return cfg
}
