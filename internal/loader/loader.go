// =============================================================================
// Rural Credit Season Pipeline - Partition Loader
// =============================================================================
//
// This module builds the harmonized table from a list of partition ids. It
// orchestrates, for every partition:
//
// LOAD PIPELINE:
//   1. Fetch the raw bytes from the partition source (with a timeout)
//   2. Decode them into a raw table (Parquet, CSV or XLSX)
//   3. Harmonize column names and coerce values
//   4. Concatenate every successful partition in request order
//
// FAILURE HANDLING:
//   A partition that cannot be fetched, decoded or harmonized is skipped and
//   recorded as a *PartitionLoadError in the Report. A timeout is a fetch
//   failure like any other. When no partition succeeds the result is
//   table.Empty(), never an error, so "no data" stays distinguishable from a
//   crash.
//
// CONCURRENCY:
//   Partitions are fetched in parallel, bounded by MaxConcurrency. Results
//   are assembled in request order regardless of completion order, so the
//   same ids always produce the same table.
//
// =============================================================================

package loader

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/jpmelo-tech/acompanhamento-safra/internal/config"
	"github.com/jpmelo-tech/acompanhamento-safra/internal/harmonize"
	"github.com/jpmelo-tech/acompanhamento-safra/internal/metrics"
	"github.com/jpmelo-tech/acompanhamento-safra/internal/partition"
	"github.com/jpmelo-tech/acompanhamento-safra/internal/source"
	"github.com/jpmelo-tech/acompanhamento-safra/internal/table"
)

// =============================================================================
// ERRORS
// =============================================================================

// Stage names the load step a partition failed in.
type Stage string

const (
	StageFetch     Stage = "fetch"
	StageDecode    Stage = "decode"
	StageHarmonize Stage = "harmonize"
)

// PartitionLoadError records one skipped partition.
type PartitionLoadError struct {
	Partition string
	Stage     Stage
	Err       error
}

// Error implements the error interface.
func (e *PartitionLoadError) Error() string {
	return fmt.Sprintf("partition %s: %s failed: %v", e.Partition, e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *PartitionLoadError) Unwrap() error {
	return e.Err
}

// =============================================================================
// REPORT
// =============================================================================

// PartitionStats describes one partition that loaded successfully.
type PartitionStats struct {
	Partition string
	File      string
	Format    partition.Format
	Bytes     int
	Rows      int
	FetchTime time.Duration
}

// Report summarizes one load cycle.
type Report struct {
	// RunID identifies the load in logs and output files.
	RunID string

	// Requested lists the partition ids asked for, without duplicates.
	Requested []string

	// Loaded lists the partitions that made it into the table, in order.
	Loaded []PartitionStats

	// Failures lists the skipped partitions, in request order.
	Failures []*PartitionLoadError

	Rows     int
	Columns  int
	Duration time.Duration
}

// AllFailed reports whether no requested partition loaded.
func (r *Report) AllFailed() bool {
	return len(r.Loaded) == 0
}

// Err joins every partition failure into a single error, or returns nil.
func (r *Report) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	errs := make([]error, len(r.Failures))
	for i, f := range r.Failures {
		errs[i] = f
	}
	return errors.Join(errs...)
}

// =============================================================================
// LOADER
// =============================================================================

// Options tunes a Loader.
type Options struct {
	// Timeout bounds the fetch of one partition. Zero disables it.
	Timeout time.Duration

	// MaxConcurrency bounds parallel fetches. Values below 1 mean 1.
	MaxConcurrency int

	// Aliases maps canonical column names to raw header names.
	Aliases map[string][]string

	// FillSeason labels rows with the partition id when the season is
	// missing.
	FillSeason bool

	Logger  zerolog.Logger
	Metrics *metrics.Metrics
}

// OptionsFromConfig derives loader options from the application config.
func OptionsFromConfig(cfg *config.Config, log zerolog.Logger, m *metrics.Metrics) Options {
	return Options{
		Timeout:        cfg.Source.Timeout,
		MaxConcurrency: cfg.Source.MaxConcurrency,
		Aliases:        cfg.Columns,
		FillSeason:     cfg.FillSeason(),
		Logger:         log,
		Metrics:        m,
	}
}

// Loader builds harmonized tables from a partition source.
type Loader struct {
	src        source.PartitionSource
	harmonizer *harmonize.Harmonizer
	opts       Options
}

// New creates a Loader.
//
// PARAMETERS:
//   - src: Where partition bytes come from.
//   - opts: Load options.
//
// RETURNS:
//   - A new Loader instance.
func New(src source.PartitionSource, opts Options) *Loader {
	if opts.MaxConcurrency < 1 {
		opts.MaxConcurrency = 1
	}
	aliases := opts.Aliases
	if aliases == nil {
		aliases = config.DefaultColumnAliases()
	}
	return &Loader{
		src:        src,
		harmonizer: harmonize.New(aliases, opts.FillSeason),
		opts:       opts,
	}
}

// partitionResult is what one worker hands back.
type partitionResult struct {
	harmonized *harmonize.Result
	stats      PartitionStats
	err        *PartitionLoadError
}

// Load fetches, decodes and harmonizes every partition in ids and returns
// the concatenated table. It never fails as a whole: partition failures are
// listed in the Report, and if nothing loads the table is empty.
//
// PARAMETERS:
//   - ctx: Cancelling ctx fails the partitions not yet fetched.
//   - ids: Partition ids in retrieval order. Duplicates are ignored.
//
// RETURNS:
//   - The harmonized table (table.Empty() when nothing loaded).
//   - The load report.
func (l *Loader) Load(ctx context.Context, ids []string) (*table.Table, *Report) {
	start := time.Now()
	report := &Report{
		RunID:     uuid.NewString(),
		Requested: dedupe(ids),
	}
	log := l.opts.Logger.With().Str("run_id", report.RunID).Logger()

	log.Info().Int("partitions", len(report.Requested)).Msg("Loading partitions")

	// =========================================================================
	// STEP 1-3: FETCH, DECODE, HARMONIZE (PARALLEL)
	// =========================================================================

	results := make([]partitionResult, len(report.Requested))
	interner := harmonize.NewInterner()

	g := new(errgroup.Group)
	g.SetLimit(l.opts.MaxConcurrency)
	for i, id := range report.Requested {
		g.Go(func() error {
			results[i] = l.loadPartition(ctx, id, interner)
			return nil
		})
	}
	_ = g.Wait()

	// =========================================================================
	// STEP 4: CONCATENATE IN REQUEST ORDER
	// =========================================================================

	total := 0
	for _, r := range results {
		if r.err == nil {
			total += len(r.harmonized.Records)
		}
	}

	records := make([]table.Record, 0, total)
	var columns, partitions []string
	seen := make(map[string]bool)

	for _, r := range results {
		if r.err != nil {
			report.Failures = append(report.Failures, r.err)
			l.opts.Metrics.PartitionFailed(string(r.err.Stage))
			log.Warn().
				Str("partition", r.err.Partition).
				Str("stage", string(r.err.Stage)).
				Err(r.err.Err).
				Msg("Skipping partition")
			continue
		}

		records = append(records, r.harmonized.Records...)
		partitions = append(partitions, r.stats.Partition)
		for _, c := range r.harmonized.Columns {
			if !seen[c] {
				seen[c] = true
				columns = append(columns, c)
			}
		}
		report.Loaded = append(report.Loaded, r.stats)
		l.opts.Metrics.PartitionLoaded(r.stats.FetchTime)
		log.Debug().
			Str("partition", r.stats.Partition).
			Str("format", string(r.stats.Format)).
			Int("rows", r.stats.Rows).
			Dur("fetch", r.stats.FetchTime).
			Msg("Partition loaded")
	}

	var t *table.Table
	if len(report.Loaded) == 0 {
		t = table.Empty()
	} else {
		t = table.New(records, columns, partitions)
	}

	report.Rows = t.Len()
	report.Columns = len(t.Columns())
	report.Duration = time.Since(start)
	l.opts.Metrics.LoadFinished(report.Rows, report.Duration)

	event := log.Info()
	if report.AllFailed() {
		event = log.Error()
	}
	event.
		Int("rows", report.Rows).
		Int("columns", report.Columns).
		Int("files", len(report.Loaded)).
		Int("failed", len(report.Failures)).
		Dur("took", report.Duration).
		Msg("Load finished")

	return t, report
}

// loadPartition runs the fetch, decode and harmonize steps for one id.
func (l *Loader) loadPartition(ctx context.Context, id string, interner *harmonize.Interner) partitionResult {
	fail := func(stage Stage, err error) partitionResult {
		return partitionResult{err: &PartitionLoadError{Partition: id, Stage: stage, Err: err}}
	}

	fetchCtx := ctx
	if l.opts.Timeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, l.opts.Timeout)
		defer cancel()
	}

	fetchStart := time.Now()
	data, err := l.src.Fetch(fetchCtx, id)
	fetchTime := time.Since(fetchStart)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			err = fmt.Errorf("timed out after %s: %w", l.opts.Timeout, err)
		}
		return fail(StageFetch, err)
	}

	name := l.src.Name(id)
	raw, err := partition.Decode(name, data)
	if err != nil {
		return fail(StageDecode, err)
	}

	harmonized, err := l.harmonizer.Harmonize(id, raw, interner)
	if err != nil {
		return fail(StageHarmonize, err)
	}

	return partitionResult{
		harmonized: harmonized,
		stats: PartitionStats{
			Partition: id,
			File:      name,
			Format:    partition.DetectFormat(name, data),
			Bytes:     len(data),
			Rows:      len(harmonized.Records),
			FetchTime: fetchTime,
		},
	}
}

// dedupe drops repeated ids, keeping the first occurrence.
func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
