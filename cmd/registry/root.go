package main

import (
	"github.com/spf13/cobra"

	"robotregistry/internal/config"
	"robotregistry/internal/logging"
	"robotregistry/internal/observability"
)

type rootOptions struct {
	configFile string
	logLevel   string
	logFormat  string

	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "registry",
		Short: "Robot registry scraper and catalog merger",
		Long: `registry logs into every configured robot console, extracts the robot
listing and reconciles it with the baseline catalog into the merged catalog
served to readers.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			config.LoadDotEnv()
			logging.Configure(logConfig(cmd, opts.logLevel, opts.logFormat))

			cfg, err := config.Load(opts.configFile)
			if err != nil {
				return err
			}
			opts.cfg = cfg
			observability.Start(cfg.MetricsPort)
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file (yaml, json or toml)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "trace, debug, info, warn or error")
	cmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "auto", "auto, console or json")

	cmd.AddCommand(
		newScrapeCmd(opts),
		newMergeCmd(opts),
		newRunCmd(opts),
		newSitesCmd(opts),
		newHistoryCmd(opts),
		newDevicesCmd(opts),
		newExportCmd(opts),
	)
	return cmd
}

// logConfig lets LOG_LEVEL and LOG_FORMAT, from the environment or .env,
// stand in for flags that were not given.
func logConfig(cmd *cobra.Command, level, format string) logging.Config {
	if !cmd.Flags().Changed("log-level") {
		level = envOr("LOG_LEVEL", level)
	}
	if !cmd.Flags().Changed("log-format") {
		format = envOr("LOG_FORMAT", format)
	}
	return logging.Config{Level: level, Format: format}
}
