// =============================================================================
// Rural Credit Season Pipeline - Workbook Export
// =============================================================================
//
// This module writes the aggregation outputs to an XLSX workbook.
//
// WORKBOOK LAYOUT:
//   Resumo              run metadata: seasons, months, filters, row counts,
//                       loaded and failed partitions
//   Evolucao Mensal     one row per (institution, season, month)
//   Safra <label>       one sheet per season with the market-share table,
//                       newest season first
//
// Undefined percentages are left as empty cells. Amounts are written as
// numbers so the sheet stays usable for further analysis.
//
// =============================================================================

package export

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/jpmelo-tech/acompanhamento-safra/internal/aggregate"
	"github.com/jpmelo-tech/acompanhamento-safra/internal/season"
	"github.com/jpmelo-tech/acompanhamento-safra/internal/table"
)

// Sheet names.
const (
	SummarySheet   = "Resumo"
	EvolutionSheet = "Evolucao Mensal"
)

// maxSheetName is the Excel limit on sheet name length.
const maxSheetName = 31

// =============================================================================
// INPUT
// =============================================================================

// Summary describes the run that produced the report.
type Summary struct {
	RunID        string
	GeneratedAt  time.Time
	Window       season.Window
	Seasons      []string
	Institutions []string
	TableRows    int
	ViewRows     int
	Loaded       []string
	Failed       []string
}

// Report is everything written to one workbook.
type Report struct {
	Summary   Summary
	Evolution []aggregate.EvolutionRow
	Shares    []aggregate.SeasonShare
}

// =============================================================================
// WORKBOOK GENERATION
// =============================================================================

// Build creates the workbook in memory. The caller owns the returned file
// and must Close it.
//
// PARAMETERS:
//   - r: The report content.
//
// RETURNS:
//   - The workbook.
//   - An error if any sheet cannot be written.
func Build(r *Report) (*excelize.File, error) {
	f := excelize.NewFile()

	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("rename default sheet: %w", err)
	}

	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"DDEBF7"}, Pattern: 1},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create header style: %w", err)
	}

	steps := []func() error{
		func() error { return writeSummary(f, header, r.Summary) },
		func() error { return writeEvolution(f, header, r.Evolution) },
	}
	labels := make([]string, len(r.Shares))
	for i, share := range r.Shares {
		labels[i] = share.Season
	}
	sheets := SeasonSheetNames(labels)
	for i, share := range r.Shares {
		steps = append(steps, func() error { return writeShare(f, header, sheets[i], share) })
	}

	for _, step := range steps {
		if err := step(); err != nil {
			f.Close()
			return nil, err
		}
	}

	f.SetActiveSheet(0)
	return f, nil
}

// Write builds the workbook and saves it to path.
func Write(r *Report, path string) error {
	f, err := Build(r)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook %s: %w", path, err)
	}
	return nil
}

// SeasonSheetName returns the sheet name used for a season label, cut to
// the Excel limit of 31 characters.
func SeasonSheetName(label string) string {
	name := "Safra " + strings.NewReplacer(
		"/", "-", "\\", "-", "?", "", "*", "", "[", "(", "]", ")", ":", "-",
	).Replace(label)
	return truncateRunes(name, maxSheetName)
}

// SeasonSheetNames returns one sheet name per label. Excel compares sheet
// names case-insensitively, so a name already taken by an earlier label or a
// fixed sheet gets a " (2)", " (3)", ... suffix.
func SeasonSheetNames(labels []string) []string {
	used := map[string]bool{
		strings.ToLower(SummarySheet):   true,
		strings.ToLower(EvolutionSheet): true,
	}
	names := make([]string, len(labels))
	for i, label := range labels {
		base := SeasonSheetName(label)
		name := base
		for n := 2; used[strings.ToLower(name)]; n++ {
			suffix := fmt.Sprintf(" (%d)", n)
			name = truncateRunes(base, maxSheetName-utf8.RuneCountInString(suffix)) + suffix
		}
		used[strings.ToLower(name)] = true
		names[i] = name
	}
	return names
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// =============================================================================
// SHEETS
// =============================================================================

func writeSummary(f *excelize.File, header int, s Summary) error {
	months := make([]string, len(s.Window.Months))
	for i, m := range s.Window.Months {
		months[i] = season.MonthName(m)
	}

	rows := [][]any{
		{"Execução", s.RunID},
		{"Gerado em", s.GeneratedAt.Format(time.RFC3339)},
		{"Meses", strings.Join(months, ", ")},
		{"Safras", listOrAll(s.Seasons)},
		{"Segmentos", listOrAll(s.Institutions)},
		{"Linhas carregadas", s.TableRows},
		{"Linhas na seleção", s.ViewRows},
		{"Partições carregadas", strings.Join(s.Loaded, ", ")},
		{"Partições com falha", strings.Join(s.Failed, ", ")},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(SummarySheet, cell, &row); err != nil {
			return fmt.Errorf("write summary: %w", err)
		}
	}
	if err := f.SetCellStyle(SummarySheet, "A1", fmt.Sprintf("A%d", len(rows)), header); err != nil {
		return fmt.Errorf("style summary: %w", err)
	}
	return f.SetColWidth(SummarySheet, "A", "B", 28)
}

func writeEvolution(f *excelize.File, header int, rows []aggregate.EvolutionRow) error {
	if _, err := f.NewSheet(EvolutionSheet); err != nil {
		return fmt.Errorf("create sheet %s: %w", EvolutionSheet, err)
	}

	headers := []any{"Segmento", "Safra", "Mês", "Mês (nome)", "Total (R$)", "Total (R$ bi)"}
	if err := writeHeader(f, EvolutionSheet, header, headers); err != nil {
		return err
	}

	for i, r := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		values := []any{
			r.Institution, r.Season, r.Month, season.MonthName(r.Month),
			r.Total.InexactFloat64(), r.TotalBillions,
		}
		if err := f.SetSheetRow(EvolutionSheet, cell, &values); err != nil {
			return fmt.Errorf("write evolution row %d: %w", i+1, err)
		}
	}
	return nil
}

func writeShare(f *excelize.File, header int, sheet string, s aggregate.SeasonShare) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("create sheet %s: %w", sheet, err)
	}

	headers := []any{"Segmento"}
	for _, p := range table.Purposes() {
		headers = append(headers, p.Label())
	}
	headers = append(headers, "Total", "Participação (%)")
	for _, p := range table.Purposes() {
		headers = append(headers, p.Label()+" (%)")
	}
	if err := writeHeader(f, sheet, header, headers); err != nil {
		return err
	}

	for i, r := range s.Rows {
		values := []any{r.Institution}
		for _, p := range table.Purposes() {
			values = append(values, r.Amounts[p].InexactFloat64())
		}
		values = append(values, r.RowTotal.InexactFloat64(), percentCell(r.SharePct))
		for _, p := range table.Purposes() {
			values = append(values, percentCell(r.PurposePct[p]))
		}

		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("write share row %d of %s: %w", i+1, s.Season, err)
		}
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func writeHeader(f *excelize.File, sheet string, style int, headers []any) error {
	if err := f.SetSheetRow(sheet, "A1", &headers); err != nil {
		return fmt.Errorf("write header of %s: %w", sheet, err)
	}
	last, _ := excelize.CoordinatesToCellName(len(headers), 1)
	if err := f.SetCellStyle(sheet, "A1", last, style); err != nil {
		return fmt.Errorf("style header of %s: %w", sheet, err)
	}
	lastCol, _ := excelize.ColumnNumberToName(len(headers))
	return f.SetColWidth(sheet, "A", lastCol, 18)
}

// percentCell returns nil for a missing percentage so the cell stays empty.
func percentCell(p aggregate.Percent) any {
	if p.IsMissing() {
		return nil
	}
	return float64(p)
}

func listOrAll(values []string) string {
	if len(values) == 0 {
		return "Todos"
	}
	return strings.Join(values, ", ")
}
