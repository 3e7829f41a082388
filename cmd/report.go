// =============================================================================
// Rural Credit Season Pipeline - Report Command
// =============================================================================
//
// This file defines the 'report' command, which runs the whole pipeline once
// and writes its outputs to the output directory.
//
// COMMAND USAGE:
//   safra report [flags]
//
// FLAGS:
//   --start, --end   : Season window, month number or name (default: whole season)
//   --season         : Restrict to these seasons (repeatable)
//   --institution    : Restrict to these institution segments (repeatable)
//   --charts         : Also render PNG charts
//   --output-dir     : Override the configured output directory
//   --retention      : Remove outputs older than this before writing
//   --strict         : Fail when the data quality check finds errors
//
// PROCESSING PIPELINE:
//   1. Load every configured partition (skipping the ones that fail)
//   2. Check data quality and log the issues
//   3. Resolve the month window and filter the table
//   4. Aggregate the monthly evolution and the market share
//   5. Write the workbook, charts, failure log and run summary
//
// =============================================================================

package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jpmelo-tech/acompanhamento-safra/internal/aggregate"
	"github.com/jpmelo-tech/acompanhamento-safra/internal/export"
	"github.com/jpmelo-tech/acompanhamento-safra/internal/filter"
	"github.com/jpmelo-tech/acompanhamento-safra/internal/loader"
	"github.com/jpmelo-tech/acompanhamento-safra/internal/render"
	"github.com/jpmelo-tech/acompanhamento-safra/internal/season"
	"github.com/jpmelo-tech/acompanhamento-safra/internal/validation"
	"github.com/jpmelo-tech/acompanhamento-safra/pkg/utils"
)

// errNoPartitions is returned when every requested partition failed to load.
var errNoPartitions = errors.New("no partition could be loaded")

// reportFlags holds the local flags of the report command.
type reportFlags struct {
	start        string
	end          string
	seasons      []string
	institutions []string
	charts       bool
	outputDir    string
	retention    time.Duration
	strict       bool
}

var reportOpts reportFlags

// reportCmd represents the 'report' command.
var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Build the evolution and market-share report for a season window",
	Long: `The report command loads every configured partition, keeps the rows whose
issue month falls in the selected window of the agricultural season, and
writes:

  - an XLSX workbook with the monthly evolution and one market-share sheet
    per season (newest first)
  - PNG charts (with --charts)
  - a log of the partitions that could not be loaded
  - a data quality log and a run summary

A partition that fails is skipped; the report is built from the rest.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		return runReport(cmd, reportOpts)
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)

	f := reportCmd.Flags()
	f.StringVar(&reportOpts.start, "start", "", "First month of the window (number or name)")
	f.StringVar(&reportOpts.end, "end", "", "Last month of the window (number or name)")
	f.StringSliceVar(&reportOpts.seasons, "season", nil, "Restrict to these seasons")
	f.StringSliceVar(&reportOpts.institutions, "institution", nil, "Restrict to these institution segments")
	f.BoolVar(&reportOpts.charts, "charts", false, "Render PNG charts (default: output.charts from the config)")
	f.StringVar(&reportOpts.outputDir, "output-dir", "", "Override the configured output directory")
	f.DurationVar(&reportOpts.retention, "retention", 0, "Remove outputs older than this duration (0 keeps everything)")
	f.BoolVar(&reportOpts.strict, "strict", false, "Fail when the data quality check finds errors")
}

// =============================================================================
// REPORT EXECUTION
// =============================================================================

// runReport executes the pipeline and writes every output.
func runReport(cmd *cobra.Command, opts reportFlags) error {
	ctx := cmd.Context()
	startTime := time.Now()

	p, err := newPipeline(ctx, cmd)
	if err != nil {
		return err
	}
	defer p.Close()

	order := season.NewCyclicOrder(p.cfg.SeasonStartMonth)
	window, err := resolveWindow(order, opts.start, opts.end)
	if err != nil {
		return err
	}

	// ==========================================================================
	// LOAD
	// ==========================================================================
	t, rep := p.loader.Load(ctx, p.cfg.Seasons)
	log := p.log.With().Str("run_id", rep.RunID).Logger()

	outputDir := p.cfg.Output.Dir
	if opts.outputDir != "" {
		outputDir = opts.outputDir
	}
	om := utils.NewOutputManager(outputDir, p.cfg.Output.FileFormat, rep.RunID)
	if err := om.EnsureDirectories(); err != nil {
		return err
	}
	if opts.retention > 0 {
		removed, err := utils.CleanOldOutputs(om.Dir, opts.retention)
		if err != nil {
			log.Warn().Err(err).Msg("failed to clean old outputs")
		} else if removed > 0 {
			log.Info().Int("removed", removed).Msg("old outputs removed")
		}
	}

	summary := utils.RunSummary{
		RunID:        rep.RunID,
		StartTime:    startTime,
		Requested:    rep.Requested,
		Partitions:   partitionInfo(rep),
		Failures:     failureEntries(rep),
		Months:       monthNames(window),
		Seasons:      opts.seasons,
		Institutions: opts.institutions,
		TableRows:    t.Len(),
	}

	failureLog := om.Path("falhas", "txt")
	written, err := utils.WriteFailureLog(summary.Failures, failureLog)
	if err != nil {
		log.Error().Err(err).Msg("failed to write failure log")
	} else if written {
		summary.Outputs = append(summary.Outputs, failureLog)
		log.Warn().Int("failed", len(rep.Failures)).Str("log", failureLog).Msg("some partitions were skipped")
	}

	if rep.AllFailed() {
		writeSummary(om, &summary, log)
		return fmt.Errorf("%w: see %s", errNoPartitions, failureLog)
	}

	// ==========================================================================
	// DATA QUALITY
	// ==========================================================================
	quality := validation.Check(t, validation.Options{})
	summary.ValidationErrors = quality.ErrorCount
	summary.ValidationWarnings = quality.WarningCount
	if len(quality.Issues) > 0 {
		qualityLog := om.Path("qualidade", "txt")
		if err := validation.WriteIssueLog(quality, qualityLog); err != nil {
			log.Error().Err(err).Msg("failed to write data quality log")
		} else {
			summary.Outputs = append(summary.Outputs, qualityLog)
		}
		log.Warn().
			Int("errors", quality.ErrorCount).
			Int("warnings", quality.WarningCount).
			Msg("data quality issues found")
	}
	if opts.strict && !quality.IsValid {
		writeSummary(om, &summary, log)
		return fmt.Errorf("data quality check failed with %d error(s)", quality.ErrorCount)
	}

	// ==========================================================================
	// FILTER AND AGGREGATE
	// ==========================================================================
	view := filter.Apply(t, filter.ForWindow(window, opts.seasons, opts.institutions))
	summary.ViewRows = view.Len()
	if view.IsEmpty() {
		log.Warn().Msg("selection matched no rows")
	}

	evolution, err := aggregate.MonthlyEvolution(view)
	if err != nil {
		return fmt.Errorf("monthly evolution: %w", err)
	}
	shares, err := aggregate.MarketShare(view)
	if err != nil {
		return fmt.Errorf("market share: %w", err)
	}
	summary.EvolutionRows = len(evolution)
	summary.ShareSeasons = len(shares)

	// ==========================================================================
	// OUTPUTS
	// ==========================================================================
	workbook := om.Path("relatorio", "xlsx")
	err = export.Write(&export.Report{
		Summary: export.Summary{
			RunID:        rep.RunID,
			GeneratedAt:  time.Now(),
			Window:       window,
			Seasons:      opts.seasons,
			Institutions: opts.institutions,
			TableRows:    t.Len(),
			ViewRows:     view.Len(),
			Loaded:       t.Partitions(),
			Failed:       failedPartitionIDs(rep),
		},
		Evolution: evolution,
		Shares:    shares,
	}, workbook)
	if err != nil {
		return err
	}
	summary.Outputs = append(summary.Outputs, workbook)
	log.Info().Str("file", workbook).Int("evolution_rows", len(evolution)).Msg("workbook written")

	if opts.charts || p.cfg.Output.Charts {
		paths, err := writeCharts(om, evolution, shares, order)
		if err != nil {
			return err
		}
		summary.Outputs = append(summary.Outputs, paths...)
		log.Info().Int("charts", len(paths)).Str("dir", om.ChartsDir()).Msg("charts written")
	}

	writeSummary(om, &summary, log)

	for _, out := range summary.Outputs {
		fmt.Fprintln(cmd.OutOrStdout(), out)
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

// resolveWindow parses the --start and --end values. An empty value means
// the first or last month of the season.
func resolveWindow(order season.CyclicOrder, start, end string) (season.Window, error) {
	s, e := order[0], order[len(order)-1]
	if start != "" {
		m, err := season.ParseMonth("start", start)
		if err != nil {
			return season.Window{}, err
		}
		s = m
	}
	if end != "" {
		m, err := season.ParseMonth("end", end)
		if err != nil {
			return season.Window{}, err
		}
		e = m
	}
	return season.Resolve(order, s, e)
}

func writeCharts(om *utils.OutputManager, evolution []aggregate.EvolutionRow, shares []aggregate.SeasonShare, order season.CyclicOrder) ([]string, error) {
	var paths []string

	p, err := render.EvolutionPlot(evolution, order)
	if err != nil {
		return nil, err
	}
	path := om.ChartPath("evolucao_mensal")
	if err := render.SavePNG(p, path); err != nil {
		return nil, err
	}
	paths = append(paths, path)

	for _, share := range shares {
		p, err := render.SharePlot(share)
		if err != nil {
			return nil, err
		}
		path := om.ChartPath("participacao_" + share.Season)
		if err := render.SavePNG(p, path); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeSummary(om *utils.OutputManager, summary *utils.RunSummary, log zerolog.Logger) {
	summary.EndTime = time.Now()
	path := om.Path("resumo", "txt")
	summary.Outputs = append(summary.Outputs, path)
	if err := utils.WriteSummaryLog(*summary, path); err != nil {
		log.Error().Err(err).Msg("failed to write run summary")
	}
}

func monthNames(w season.Window) []string {
	names := make([]string, len(w.Months))
	for i, m := range w.Months {
		names[i] = season.MonthName(m)
	}
	return names
}

func partitionInfo(rep *loader.Report) []utils.PartitionInfo {
	infos := make([]utils.PartitionInfo, len(rep.Loaded))
	for i, s := range rep.Loaded {
		infos[i] = utils.PartitionInfo{
			Partition: s.Partition,
			File:      s.File,
			Format:    string(s.Format),
			Bytes:     s.Bytes,
			Rows:      s.Rows,
			FetchTime: s.FetchTime,
		}
	}
	return infos
}

func failureEntries(rep *loader.Report) []utils.FailureLogEntry {
	entries := make([]utils.FailureLogEntry, len(rep.Failures))
	for i, f := range rep.Failures {
		entries[i] = utils.FailureLogEntry{
			Partition: f.Partition,
			Stage:     string(f.Stage),
			Message:   f.Err.Error(),
		}
	}
	return entries
}

func failedPartitionIDs(rep *loader.Report) []string {
	ids := make([]string, len(rep.Failures))
	for i, f := range rep.Failures {
		ids[i] = f.Partition
	}
	return ids
}
