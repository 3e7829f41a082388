// =============================================================================
// Rural Credit Season Pipeline - Inspect Command
// =============================================================================
//
// This file defines the 'inspect' command. It loads the configured
// partitions and prints what came out of them, without writing any file:
//
// OUTPUT:
//   - Load summary: rows, columns, partitions loaded and skipped
//   - Seasons and institutions present
//   - Data quality issues
//   - A preview of the first rows of the harmonized table
//
// =============================================================================

package cmd

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jpmelo-tech/acompanhamento-safra/internal/filter"
	"github.com/jpmelo-tech/acompanhamento-safra/internal/loader"
	"github.com/jpmelo-tech/acompanhamento-safra/internal/table"
	"github.com/jpmelo-tech/acompanhamento-safra/internal/validation"
)

// previewRows is the number of rows printed by inspect.
var previewRows int

// inspectCmd represents the 'inspect' command.
var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Load the partitions and print a summary, quality issues and a preview",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInspect(cmd)
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().IntVar(&previewRows, "rows", 50, "Number of rows to preview (0 disables the preview)")
}

func runInspect(cmd *cobra.Command) error {
	ctx := cmd.Context()

	p, err := newPipeline(ctx, cmd)
	if err != nil {
		return err
	}
	defer p.Close()

	t, rep := p.loader.Load(ctx, p.cfg.Seasons)
	out := cmd.OutOrStdout()

	printLoadSummary(out, t, rep)
	if rep.AllFailed() {
		return errNoPartitions
	}

	fmt.Fprintf(out, "Seasons:      %s\n", strings.Join(filter.Seasons(t), ", "))
	fmt.Fprintf(out, "Institutions: %s\n\n", strings.Join(filter.Institutions(t), ", "))

	quality := validation.Check(t, validation.Options{})
	fmt.Fprintln(out, validation.FormatIssues(quality.Issues))

	if previewRows > 0 {
		return printPreview(out, t, previewRows)
	}
	return nil
}

func printLoadSummary(out io.Writer, t *table.Table, rep *loader.Report) {
	fmt.Fprintf(out, "Run %s: %d row(s), %d column(s), %d of %d partition(s) loaded in %s\n\n",
		rep.RunID, t.Len(), len(t.Columns()), len(rep.Loaded), len(rep.Requested), rep.Duration)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PARTITION\tFILE\tFORMAT\tBYTES\tROWS\tSTATUS")
	for _, s := range rep.Loaded {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\tok\n", s.Partition, s.File, s.Format, s.Bytes, s.Rows)
	}
	for _, f := range rep.Failures {
		fmt.Fprintf(w, "%s\t-\t-\t-\t-\t%s failed: %v\n", f.Partition, f.Stage, f.Err)
	}
	w.Flush()
	fmt.Fprintln(out)
}

// printPreview writes the first n rows in canonical column order.
func printPreview(out io.Writer, t *table.Table, n int) error {
	columns := []string{
		"partition", table.ColumnSeason, table.ColumnInstitution, table.ColumnState,
		table.ColumnIssueMonth, table.ColumnIssueYear,
	}
	for _, p := range table.Purposes() {
		columns = append(columns, p.Column())
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.ToUpper(strings.Join(columns, "\t")))

	t.Each(func(i int, r *table.Record) bool {
		if i >= n {
			return false
		}
		cells := []string{
			r.Partition, r.Season, r.Institution, r.State,
			r.IssueMonth.String(), r.IssueYear.String(),
		}
		for _, p := range table.Purposes() {
			cells = append(cells, amountCell(r.Amount(p)))
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
		return true
	})
	return w.Flush()
}

func amountCell(a table.Amount) string {
	if !a.Valid {
		return "!" + a.Raw
	}
	return a.Value.StringFixed(2)
}
