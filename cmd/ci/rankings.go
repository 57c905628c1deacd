package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/matsen/scholarimpact/internal/rankings"
)

var (
	rankingsVenuesCSV       string
	rankingsUniversitiesCSV string
	rankingsDBPath          string
)

func init() {
	rankingsLoadCmd.Flags().StringVar(&rankingsVenuesCSV, "venues", "", "CSV of venue ranks (name,rank,tier[,source])")
	rankingsLoadCmd.Flags().StringVar(&rankingsUniversitiesCSV, "universities", "", "CSV of university ranks (name,rank,tier[,source])")
	rankingsLoadCmd.Flags().StringVar(&rankingsDBPath, "db", "", "Rankings database path (default from config)")
	rankingsCmd.AddCommand(rankingsLoadCmd)
	rootCmd.AddCommand(rankingsCmd)
}

var rankingsCmd = &cobra.Command{
	Use:   "rankings",
	Short: "Manage the venue and university rankings database",
}

var rankingsLoadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load ranking tables from CSV files",
	Long: `Import prepared ranking tables into the local SQLite database
used for venue tiers and university ranks. Rows are
name,rank,tier[,source]; a header row is skipped automatically.`,
	Args: cobra.NoArgs,
	RunE: runRankingsLoad,
}

func runRankingsLoad(cmd *cobra.Command, args []string) error {
	if rankingsVenuesCSV == "" && rankingsUniversitiesCSV == "" {
		exitWithError(ExitError, "nothing to load: pass --venues and/or --universities")
	}

	cfg := loadConfig()
	path := cfg.RankingsDB
	if rankingsDBPath != "" {
		path = rankingsDBPath
	}
	if path == "" {
		exitWithError(ExitConfigError, "no database path: pass --db or set rankings_db in config")
	}

	db, err := rankings.Open(path)
	if err != nil {
		exitWithError(ExitError, "%v", err)
	}
	defer db.Close()

	total := 0
	if rankingsVenuesCSV != "" {
		n, err := loadRankCSV(rankingsVenuesCSV, db.PutVenue)
		if err != nil {
			exitWithError(ExitError, "loading venues: %v", err)
		}
		total += n
	}
	if rankingsUniversitiesCSV != "" {
		n, err := loadRankCSV(rankingsUniversitiesCSV, db.PutUniversity)
		if err != nil {
			exitWithError(ExitError, "loading universities: %v", err)
		}
		total += n
	}

	if path != cfg.RankingsDB {
		cfg.RankingsDB = path
		if err := cfg.Save(); err != nil {
			exitWithError(ExitError, "saving config: %v", err)
		}
	}

	if humanOutput {
		outputHuman("loaded %d entries into %s\n", total, path)
		return nil
	}
	return outputJSON(StatusResponse{Status: "loaded", Count: total})
}

func loadRankCSV(path string, put func(string, rankings.RankInfo) error) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	count := 0
	for line := 1; ; line++ {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return count, err
		}
		if len(rec) < 3 {
			return count, fmt.Errorf("%s:%d: want name,rank,tier[,source]", path, line)
		}
		rank, err := strconv.Atoi(rec[1])
		if err != nil {
			if line == 1 {
				continue // header row
			}
			return count, fmt.Errorf("%s:%d: bad rank %q", path, line, rec[1])
		}
		info := rankings.RankInfo{Rank: rank, Tier: rec[2]}
		if len(rec) > 3 {
			info.Source = rec[3]
		}
		if err := put(rec[0], info); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}
