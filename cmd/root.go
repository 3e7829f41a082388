// =============================================================================
// Rural Credit Season Pipeline - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI and the setup shared
// by every subcommand: configuration, logging, metrics and the partition
// loader.
//
// COBRA CLI STRUCTURE:
//   rootCmd (safra)
//   ├── reportCmd  (safra report)   workbook, charts and logs for a selection
//   ├── inspectCmd (safra inspect)  load summary, data quality and preview
//   ├── serveCmd   (safra serve)    HTTP API over the cached table
//   └── versionCmd (safra version)
//
// CONFIGURATION:
//   --config points at a YAML file. When the flag is left at its default and
//   the file does not exist, built-in defaults are used. Environment
//   variables prefixed with SAFRA_ override both.
//
// =============================================================================

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jpmelo-tech/acompanhamento-safra/internal/config"
	"github.com/jpmelo-tech/acompanhamento-safra/internal/loader"
	"github.com/jpmelo-tech/acompanhamento-safra/internal/logger"
	"github.com/jpmelo-tech/acompanhamento-safra/internal/metrics"
	"github.com/jpmelo-tech/acompanhamento-safra/internal/source"
	"github.com/jpmelo-tech/acompanhamento-safra/pkg/utils"
)

// =============================================================================
// GLOBAL FLAGS
// =============================================================================

// cfgFile holds the path to the configuration file.
var cfgFile string

// verbose switches logging to debug level.
var verbose bool

// sourceDir, when set, reads partitions from a local directory instead of
// the configured source.
var sourceDir string

// seasonIDs, when set, replaces the configured partition list.
var seasonIDs []string

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "safra",
	Short: "Rural credit season tracking - load, filter and aggregate SICOR partitions",
	Long: `safra loads the per-season rural credit partitions, harmonizes them into a
single table and reports, for a window of months within the agricultural
season (July to June), the monthly evolution of credit per institution
segment and each segment's market share per season.

Example Usage:
  safra report --start julho --end dezembro   # Workbook for July-December
  safra report --season 2023-2024 --charts    # One season, with PNG charts
  safra inspect --source-dir ./data           # Check local partition files
  safra serve                                 # Start the HTTP API`,

	SilenceUsage: true,

	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute runs the root command. It is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// init sets up the persistent flags.
func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"config.yaml",
		"Path to the configuration file",
	)

	rootCmd.PersistentFlags().BoolVarP(
		&verbose,
		"verbose",
		"v",
		false,
		"Enable debug logging",
	)

	rootCmd.PersistentFlags().StringVar(
		&sourceDir,
		"source-dir",
		"",
		"Read partition files from this directory instead of the configured source",
	)

	rootCmd.PersistentFlags().StringSliceVar(
		&seasonIDs,
		"partitions",
		nil,
		"Partition ids to load (default: the configured seasons)",
	)
}

// =============================================================================
// SHARED SETUP
// =============================================================================

// pipeline bundles what every subcommand needs to load the table.
type pipeline struct {
	cfg     *config.Config
	log     zerolog.Logger
	metrics *metrics.Metrics
	source  source.PartitionSource
	loader  *loader.Loader

	closers []io.Closer
}

// loadConfig reads the configuration and applies command-line overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path := cfgFile
	if !cmd.Flags().Changed("config") && !utils.FileExists(path) {
		path = ""
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if sourceDir != "" {
		cfg.Source.Kind = "dir"
		cfg.Source.Dir = sourceDir
	}
	if len(seasonIDs) > 0 {
		cfg.Seasons = seasonIDs
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}

	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newPipeline builds the configuration, logger, metrics, source and loader.
// The caller must Close the result.
func newPipeline(ctx context.Context, cmd *cobra.Command) (*pipeline, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	log, logCloser, err := logger.New(cfg.Logging)
	if err != nil {
		return nil, err
	}
	p := &pipeline{cfg: cfg, log: log, metrics: metrics.New(), closers: []io.Closer{logCloser}}

	src, err := source.New(ctx, cfg.Source)
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to create partition source: %w", err)
	}
	if c, ok := src.(io.Closer); ok {
		p.closers = append(p.closers, c)
	}
	p.source = src
	p.loader = loader.New(src, loader.OptionsFromConfig(cfg, log, p.metrics))

	log.Debug().
		Str("source", cfg.Source.Kind).
		Strs("partitions", cfg.Seasons).
		Int("season_start_month", cfg.SeasonStartMonth).
		Msg("pipeline ready")

	return p, nil
}

// Close releases the source client and the log file.
func (p *pipeline) Close() {
	for i := len(p.closers) - 1; i >= 0; i-- {
		p.closers[i].Close()
	}
}
