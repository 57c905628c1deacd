package main

import (
	"github.com/spf13/cobra"

	"github.com/matsen/scholarimpact/internal/config"
)

func init() {
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	rootCmd.AddCommand(configCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Get or set configuration values",
	Long: `Get or set configuration values stored in
~/` + config.AppDir + `/` + config.ConfigFile + `.

Keys:
  h_index_threshold  High-profile h-index cutoff (default 20)
  max_citations      Citations fetched per analysis (default 100)
  data_source        "api" or "scholar"
  scholar_id         Your Google Scholar profile ID
  rankings_db        Path to a venue/university rankings database
  cache_dir          Override for the cache directory`,
}

var configGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Show the whole configuration or one value",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		if len(args) == 0 {
			return outputJSON(cfg)
		}
		value, err := cfg.Get(args[0])
		if err != nil {
			exitWithError(ExitConfigError, "%v", err)
		}
		if humanOutput {
			outputHuman("%s\n", value)
			return nil
		}
		return outputJSON(map[string]string{args[0]: value})
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		if err := cfg.Set(args[0], args[1]); err != nil {
			exitWithError(ExitConfigError, "%v", err)
		}
		if err := cfg.Save(); err != nil {
			exitWithError(ExitError, "saving config: %v", err)
		}
		if humanOutput {
			outputHuman("%s = %s\n", args[0], args[1])
			return nil
		}
		return outputJSON(UpdateResponse{Status: "updated", Key: args[0], Value: args[1]})
	},
}
