// =============================================================================
// Rural Credit Season Pipeline - Data Quality Checks
// =============================================================================
//
// This module inspects a harmonized table and reports data-quality defects.
// Harmonization never rejects a cell, so bad values survive into the table
// as missing or invalid markers. The checks here count them per partition
// and column so that a load can be judged before it is aggregated.
//
// CHECKS:
//   - issue_month missing                 (warning)
//   - issue_month outside 1..12           (error)
//   - issue_year missing                  (warning)
//   - amount_* not numeric                (error, aggregation will reject it)
//   - amount_* negative                   (warning)
//   - institution or season empty         (warning)
//
// ERROR HANDLING:
//   - Issues are collected, not returned as errors
//   - One Issue per (partition, column, rule) with an occurrence count and
//     the first offending value as a sample
//   - Severity "error" marks the table as not valid
//
// =============================================================================

package validation

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/jpmelo-tech/acompanhamento-safra/internal/table"
)

// Severity levels.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// Rule names.
const (
	RuleMissing    = "missing"
	RuleOutOfRange = "out_of_range"
	RuleNotNumeric = "not_numeric"
	RuleNegative   = "negative"
)

// =============================================================================
// ISSUES
// =============================================================================

// Issue is one kind of defect found in one column of one partition.
type Issue struct {
	// Severity is SeverityError or SeverityWarning.
	Severity string

	Partition string
	Column    string
	Rule      string

	// Count is the number of rows affected.
	Count int

	// Sample is the first offending value, when there is one.
	Sample string

	// FirstRow is the 1-based position of the first affected row within
	// its partition.
	FirstRow int
}

// String renders the issue on one line.
func (i *Issue) String() string {
	msg := fmt.Sprintf("[%s] partition %s, column %q: %s in %d row(s), first at row %d",
		strings.ToUpper(i.Severity), i.Partition, i.Column, i.Rule, i.Count, i.FirstRow)
	if i.Sample != "" {
		msg += fmt.Sprintf(" (sample: %q)", i.Sample)
	}
	return msg
}

// =============================================================================
// RESULT
// =============================================================================

// Result contains the outcome of Check.
type Result struct {
	// IsValid is true if there are no error-severity issues.
	IsValid bool

	// Issues is sorted by partition, column and rule.
	Issues []*Issue

	ErrorCount   int
	WarningCount int

	// RowsChecked is the number of rows inspected.
	RowsChecked int
}

// Options tunes Check.
type Options struct {
	// TreatWarningsAsErrors promotes every warning to an error.
	// Default: false
	TreatWarningsAsErrors bool
}

// =============================================================================
// CHECKING
// =============================================================================

type issueKey struct {
	partition, column, rule string
}

// collector accumulates issues keyed by (partition, column, rule).
type collector struct {
	issues map[issueKey]*Issue

	// rowInPartition tracks the position within the current partition.
	rowInPartition int
	lastPartition  string
}

func (c *collector) add(severity string, rec *table.Record, column, rule, sample string) {
	key := issueKey{rec.Partition, column, rule}
	issue, ok := c.issues[key]
	if !ok {
		issue = &Issue{
			Severity:  severity,
			Partition: rec.Partition,
			Column:    column,
			Rule:      rule,
			Sample:    sample,
			FirstRow:  c.rowInPartition,
		}
		c.issues[key] = issue
	}
	issue.Count++
}

// Check runs every data-quality check over t.
//
// PARAMETERS:
//   - t: The harmonized table. A nil or empty table yields a valid result.
//   - opts: Check options.
//
// RETURNS:
//   - The collected issues and counts.
func Check(t *table.Table, opts Options) *Result {
	c := &collector{issues: make(map[issueKey]*Issue)}

	t.Each(func(_ int, rec *table.Record) bool {
		if rec.Partition != c.lastPartition {
			c.lastPartition = rec.Partition
			c.rowInPartition = 0
		}
		c.rowInPartition++
		checkRecord(c, rec)
		return true
	})

	result := &Result{
		IsValid:     true,
		Issues:      make([]*Issue, 0, len(c.issues)),
		RowsChecked: t.Len(),
	}
	for _, issue := range c.issues {
		if opts.TreatWarningsAsErrors {
			issue.Severity = SeverityError
		}
		if issue.Severity == SeverityError {
			result.ErrorCount++
			result.IsValid = false
		} else {
			result.WarningCount++
		}
		result.Issues = append(result.Issues, issue)
	}

	sort.Slice(result.Issues, func(i, j int) bool {
		a, b := result.Issues[i], result.Issues[j]
		if a.Partition != b.Partition {
			return a.Partition < b.Partition
		}
		if a.Column != b.Column {
			return a.Column < b.Column
		}
		return a.Rule < b.Rule
	})

	return result
}

func checkRecord(c *collector, rec *table.Record) {
	if rec.Season == "" {
		c.add(SeverityWarning, rec, table.ColumnSeason, RuleMissing, "")
	}
	if rec.Institution == "" {
		c.add(SeverityWarning, rec, table.ColumnInstitution, RuleMissing, "")
	}

	switch {
	case !rec.IssueMonth.Valid:
		c.add(SeverityWarning, rec, table.ColumnIssueMonth, RuleMissing, "")
	case rec.IssueMonth.Value < 1 || rec.IssueMonth.Value > 12:
		c.add(SeverityError, rec, table.ColumnIssueMonth, RuleOutOfRange, rec.IssueMonth.String())
	}

	if !rec.IssueYear.Valid {
		c.add(SeverityWarning, rec, table.ColumnIssueYear, RuleMissing, "")
	}

	for _, p := range table.Purposes() {
		amount := rec.Amount(p)
		switch {
		case !amount.Valid:
			c.add(SeverityError, rec, p.Column(), RuleNotNumeric, amount.Raw)
		case amount.Value.IsNegative():
			c.add(SeverityWarning, rec, p.Column(), RuleNegative, amount.Raw)
		}
	}
}

// =============================================================================
// OUTPUT
// =============================================================================

// FormatIssues formats issues for display or logging.
//
// PARAMETERS:
//   - issues: The issues to format.
//
// RETURNS:
//   - A formatted string containing all issues.
func FormatIssues(issues []*Issue) string {
	if len(issues) == 0 {
		return "No data quality issues."
	}

	var builder strings.Builder
	fmt.Fprintf(&builder, "Data quality check found %d issue(s):\n\n", len(issues))
	for i, issue := range issues {
		fmt.Fprintf(&builder, "%d. %s\n", i+1, issue)
	}
	return builder.String()
}

// WriteIssueLog writes the check result to a log file.
//
// PARAMETERS:
//   - result: The check result to write.
//   - filePath: The path to the output file.
//
// RETURNS:
//   - An error if writing fails.
func WriteIssueLog(result *Result, filePath string) error {
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create issue log: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	fmt.Fprintf(writer, "Data quality report - %s\n", time.Now().Format(time.RFC3339))
	fmt.Fprintf(writer, "Rows checked: %d, errors: %d, warnings: %d\n\n",
		result.RowsChecked, result.ErrorCount, result.WarningCount)
	writer.WriteString(FormatIssues(result.Issues))

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("failed to write issue log: %w", err)
	}
	return nil
}
