// =============================================================================
// Rural Credit Season Pipeline - Output File Management
// =============================================================================
//
// This module handles the files a report run leaves behind:
//   - Creating the output directory layout
//   - Naming output files from a configurable pattern
//   - Writing the partition failure log and the run summary
//   - Pruning old outputs
//
// DIRECTORY STRUCTURE:
//   output/
//   ├── charts/        PNG charts, one set per run
//   └── *.xlsx, *.txt  workbooks, failure logs, summaries, quality logs
//
// =============================================================================

package utils

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ChartsDirName is the subdirectory of the output directory holding charts.
const ChartsDirName = "charts"

// separator frames the sections of the text logs.
const separator = "================================================================================\n"

// =============================================================================
// OUTPUT MANAGER
// =============================================================================

// OutputManager owns the output directory of one run.
type OutputManager struct {
	// Dir is the root output directory.
	Dir string

	// FileFormat is the pattern passed to GenerateOutputFileName.
	FileFormat string

	// RunID fills the {run} placeholder.
	RunID string
}

// NewOutputManager creates an OutputManager.
func NewOutputManager(dir, fileFormat, runID string) *OutputManager {
	return &OutputManager{Dir: dir, FileFormat: fileFormat, RunID: runID}
}

// ChartsDir returns the directory charts are written to.
func (m *OutputManager) ChartsDir() string {
	return filepath.Join(m.Dir, ChartsDirName)
}

// EnsureDirectories creates the output directories if they don't exist.
//
// RETURNS:
//   - An error if any directory cannot be created.
func (m *OutputManager) EnsureDirectories() error {
	for _, dir := range []string{m.Dir, m.ChartsDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// Path returns the full path of a new output file of the given kind.
//
// PARAMETERS:
//   - kind: What the file holds, e.g. "relatorio" or "falhas".
//   - ext: The file extension, with or without the leading dot.
func (m *OutputManager) Path(kind, ext string) string {
	name := GenerateOutputFileName(m.FileFormat, map[string]string{
		"kind": kind,
		"run":  m.RunID,
	}, ext)
	return filepath.Join(m.Dir, name)
}

// ChartPath returns the path of a chart file inside ChartsDir.
func (m *OutputManager) ChartPath(name string) string {
	return filepath.Join(m.ChartsDir(), SanitizeFileName(name)+".png")
}

// =============================================================================
// FILE NAMING
// =============================================================================

// GenerateOutputFileName builds a file name from a pattern.
//
// PARAMETERS:
//   - format: The pattern. Supported placeholders:
//               {uuid}      - A new random UUID
//               {timestamp} - Current timestamp (YYYYMMDD_HHMMSS)
//               {date}      - Current date (YYYYMMDD)
//               {time}      - Current time (HHMMSS)
//               {<key>}     - Any key of params, e.g. {kind} or {run}
//   - params: Extra placeholder values.
//   - ext: The extension to enforce.
//
// RETURNS:
//   - The generated file name.
//
// EXAMPLE:
//   format: "{kind}_{date}_{run}"
//   params: {"kind": "relatorio", "run": "9f1c"}
//   ext:    "xlsx"
//   output: "relatorio_20240115_9f1c.xlsx"
func GenerateOutputFileName(format string, params map[string]string, ext string) string {
	now := time.Now()

	replacements := map[string]string{
		"{uuid}":      uuid.New().String(),
		"{timestamp}": now.Format("20060102_150405"),
		"{date}":      now.Format("20060102"),
		"{time}":      now.Format("150405"),
	}
	for key, value := range params {
		replacements["{"+key+"}"] = SanitizeFileName(value)
	}

	placeholders := make([]string, 0, len(replacements))
	for placeholder := range replacements {
		placeholders = append(placeholders, placeholder)
	}
	sort.Strings(placeholders)

	pairs := make([]string, 0, 2*len(placeholders))
	for _, placeholder := range placeholders {
		pairs = append(pairs, placeholder, replacements[placeholder])
	}
	result := strings.NewReplacer(pairs...).Replace(format)

	if ext != "" {
		ext = "." + strings.TrimPrefix(ext, ".")
		if !strings.HasSuffix(strings.ToLower(result), strings.ToLower(ext)) {
			result += ext
		}
	}
	return result
}

// SanitizeFileName replaces characters that are unsafe in file names.
func SanitizeFileName(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ':
			return '_'
		}
		return r
	}, name)
}

// =============================================================================
// FAILURE LOG
// =============================================================================

// FailureLogEntry is one partition that was skipped during a load.
type FailureLogEntry struct {
	Partition string
	Stage     string
	Message   string
}

// WriteFailureLog writes the skipped partitions to path. Nothing is written
// when entries is empty.
//
// PARAMETERS:
//   - entries: The skipped partitions, in request order.
//   - path: The log file to create.
//
// RETURNS:
//   - true if the file was written.
//   - An error if writing fails.
func WriteFailureLog(entries []FailureLogEntry, path string) (bool, error) {
	if len(entries) == 0 {
		return false, nil
	}

	file, err := os.Create(path)
	if err != nil {
		return false, fmt.Errorf("failed to create failure log: %w", err)
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	fmt.Fprintf(w, "Acompanhamento Safra - Partition Failures\n"+
		"Generated: %s\n"+
		"Skipped Partitions: %d\n"+
		separator+"\n",
		time.Now().Format("2006-01-02 15:04:05"), len(entries))

	for i, entry := range entries {
		fmt.Fprintf(w, "Failure #%d\n"+
			"  Partition: %s\n"+
			"  Stage:     %s\n"+
			"  Message:   %s\n\n",
			i+1, entry.Partition, entry.Stage, entry.Message)
	}
	w.WriteString(separator + "End of Failure Log\n")

	if err := w.Flush(); err != nil {
		return false, fmt.Errorf("failed to flush failure log: %w", err)
	}
	return true, nil
}

// =============================================================================
// RUN SUMMARY
// =============================================================================

// RunSummary describes one report run.
type RunSummary struct {
	RunID     string
	StartTime time.Time
	EndTime   time.Time

	Requested  []string
	Partitions []PartitionInfo
	Failures   []FailureLogEntry

	Months       []string
	Seasons      []string
	Institutions []string

	TableRows          int
	ViewRows           int
	EvolutionRows      int
	ShareSeasons       int
	ValidationErrors   int
	ValidationWarnings int

	Outputs []string
}

// PartitionInfo describes a partition that loaded.
type PartitionInfo struct {
	Partition string
	File      string
	Format    string
	Bytes     int
	Rows      int
	FetchTime time.Duration
}

// WriteSummaryLog writes a run summary to path.
//
// PARAMETERS:
//   - summary: The run summary.
//   - path: The summary file to create.
//
// RETURNS:
//   - An error if writing fails.
func WriteSummaryLog(summary RunSummary, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create summary file: %w", err)
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	fmt.Fprintf(w, "Acompanhamento Safra - Run Summary\n"+
		separator+"\n"+
		"Run Information:\n"+
		"  Run ID:         %s\n"+
		"  Start Time:     %s\n"+
		"  End Time:       %s\n"+
		"  Duration:       %s\n\n"+
		"Selection:\n"+
		"  Months:         %s\n"+
		"  Seasons:        %s\n"+
		"  Institutions:   %s\n\n"+
		"Statistics:\n"+
		"  Requested:          %d\n"+
		"  Loaded:             %d\n"+
		"  Failed:             %d\n"+
		"  Table Rows:         %d\n"+
		"  Selected Rows:      %d\n"+
		"  Evolution Rows:     %d\n"+
		"  Share Seasons:      %d\n"+
		"  Validation Errors:  %d\n"+
		"  Validation Warnings: %d\n\n",
		summary.RunID,
		summary.StartTime.Format("2006-01-02 15:04:05"),
		summary.EndTime.Format("2006-01-02 15:04:05"),
		summary.EndTime.Sub(summary.StartTime).String(),
		joinOrAll(summary.Months),
		joinOrAll(summary.Seasons),
		joinOrAll(summary.Institutions),
		len(summary.Requested),
		len(summary.Partitions),
		len(summary.Failures),
		summary.TableRows,
		summary.ViewRows,
		summary.EvolutionRows,
		summary.ShareSeasons,
		summary.ValidationErrors,
		summary.ValidationWarnings)

	if len(summary.Partitions) > 0 {
		w.WriteString("Loaded Partitions:\n")
		w.WriteString(strings.Repeat("-", 80) + "\n")
		for _, p := range summary.Partitions {
			fmt.Fprintf(w, "  Partition:  %s\n", p.Partition)
			fmt.Fprintf(w, "  File:       %s (%s, %d bytes)\n", p.File, p.Format, p.Bytes)
			fmt.Fprintf(w, "  Rows:       %d\n", p.Rows)
			fmt.Fprintf(w, "  Fetch Time: %s\n\n", p.FetchTime.String())
		}
	}

	if len(summary.Failures) > 0 {
		w.WriteString("Failed Partitions:\n")
		w.WriteString(strings.Repeat("-", 80) + "\n")
		for _, f := range summary.Failures {
			fmt.Fprintf(w, "  Partition: %s (%s)\n", f.Partition, f.Stage)
			fmt.Fprintf(w, "  Error:     %s\n\n", f.Message)
		}
	}

	if len(summary.Outputs) > 0 {
		w.WriteString("Outputs:\n")
		w.WriteString(strings.Repeat("-", 80) + "\n")
		for _, o := range summary.Outputs {
			fmt.Fprintf(w, "  %s\n", o)
		}
		w.WriteString("\n")
	}

	w.WriteString(separator + "End of Summary\n")

	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to flush summary file: %w", err)
	}
	return nil
}

func joinOrAll(values []string) string {
	if len(values) == 0 {
		return "(all)"
	}
	return strings.Join(values, ", ")
}

// =============================================================================
// UTILITY FUNCTIONS
// =============================================================================

// FileExists checks if a file exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

// CleanOldOutputs removes files under dir older than maxAge.
//
// PARAMETERS:
//   - dir: The output directory to clean.
//   - maxAge: The maximum age of files to keep.
//
// RETURNS:
//   - The number of files removed.
//   - An error if cleaning fails.
func CleanOldOutputs(dir string, maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge)
	removed := 0

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(path); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	if err != nil {
		return removed, fmt.Errorf("failed to clean outputs: %w", err)
	}

	return removed, nil
}
