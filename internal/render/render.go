// =============================================================================
// Rural Credit Season Pipeline - Charts
// =============================================================================
//
// PNG charts for the two aggregation outputs:
//   - Monthly evolution: one line per institution and season, months laid
//     out along the season (July first by default), values in R$ billions
//   - Market share: one bar per institution, share of the season total
//
// An empty input still renders a chart titled with a "no data" notice so
// that callers never have to special-case an empty selection.
//
// =============================================================================

package render

import (
	"fmt"
	"image/color"
	"io"
	"math"
	"sort"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/jpmelo-tech/acompanhamento-safra/internal/aggregate"
	"github.com/jpmelo-tech/acompanhamento-safra/internal/season"
)

// Chart sizes.
const (
	Width  = 12 * vg.Inch
	Height = 6 * vg.Inch
)

// NoDataTitle is shown on charts built from an empty selection.
const NoDataTitle = "Sem dados para a seleção atual"

// =============================================================================
// MONTHLY EVOLUTION
// =============================================================================

// EvolutionPlot draws the monthly series.
//
// PARAMETERS:
//   - rows: The monthly evolution rows.
//   - order: The cyclic month order used for the x axis.
//
// RETURNS:
//   - The plot, ready to be saved.
//   - An error if a series cannot be built.
func EvolutionPlot(rows []aggregate.EvolutionRow, order season.CyclicOrder) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Evolução mensal do crédito rural"
	p.Title.TextStyle.Font.Size = vg.Points(16)
	p.X.Label.Text = "Mês de emissão"
	p.Y.Label.Text = "R$ bilhões"
	p.Add(plotter.NewGrid())

	labels := make([]string, len(order))
	for i, m := range order {
		labels[i] = season.MonthName(m)
	}
	p.NominalX(labels...)
	p.X.Tick.Label.Rotation = math.Pi / 4
	p.X.Tick.Label.XAlign = draw.XRight
	p.X.Tick.Label.YAlign = draw.YCenter

	if len(rows) == 0 {
		p.Title.Text = NoDataTitle
		return p, nil
	}

	// Group rows into series keyed by institution and season.
	series := make(map[string]plotter.XYs)
	for _, r := range rows {
		idx := order.IndexOf(r.Month)
		if idx < 0 {
			continue
		}
		name := r.Institution + " " + r.Season
		series[name] = append(series[name], plotter.XY{X: float64(idx), Y: r.TotalBillions})
	}

	names := make([]string, 0, len(series))
	for name := range series {
		names = append(names, name)
	}
	sort.Strings(names)

	for i, name := range names {
		points := series[name]
		sort.Slice(points, func(a, b int) bool { return points[a].X < points[b].X })

		line, err := plotter.NewLine(points)
		if err != nil {
			return nil, fmt.Errorf("series %s: %w", name, err)
		}
		line.Color = plotutil.Color(i)
		line.Dashes = plotutil.Dashes(i / len(plotutil.DefaultColors))
		line.Width = vg.Points(2)

		p.Add(line)
		p.Legend.Add(name, line)
	}
	p.Legend.Top = true

	return p, nil
}

// =============================================================================
// MARKET SHARE
// =============================================================================

// SharePlot draws one season's market share. Missing percentages are drawn
// as empty bars labelled "n/d".
func SharePlot(share aggregate.SeasonShare) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Participação por segmento - safra " + share.Season
	p.Title.TextStyle.Font.Size = vg.Points(16)
	p.Y.Label.Text = "% do total da safra"
	p.Y.Min = 0
	p.Y.Max = 100

	if len(share.Rows) == 0 {
		p.Title.Text = NoDataTitle
		return p, nil
	}

	values := make(plotter.Values, len(share.Rows))
	labels := make([]string, len(share.Rows))
	for i, row := range share.Rows {
		labels[i] = row.Institution
		if !row.SharePct.IsMissing() {
			values[i] = float64(row.SharePct)
		}
	}

	bars, err := plotter.NewBarChart(values, vg.Points(30))
	if err != nil {
		return nil, fmt.Errorf("bar chart: %w", err)
	}
	bars.Color = color.RGBA{R: 34, G: 139, B: 34, A: 255}
	bars.LineStyle.Width = vg.Length(0)
	p.Add(bars)

	p.NominalX(labels...)
	p.X.Tick.Label.Rotation = math.Pi / 6
	p.X.Tick.Label.XAlign = draw.XRight
	p.X.Tick.Label.YAlign = draw.YCenter

	for i, row := range share.Rows {
		text := "n/d"
		if !row.SharePct.IsMissing() {
			text = fmt.Sprintf("%.1f%%", float64(row.SharePct))
		}
		label, err := plotter.NewLabels(plotter.XYLabels{
			XYs:    []plotter.XY{{X: float64(i), Y: values[i] + 2}},
			Labels: []string{text},
		})
		if err != nil {
			return nil, fmt.Errorf("bar label: %w", err)
		}
		p.Add(label)
	}

	return p, nil
}

// =============================================================================
// OUTPUT
// =============================================================================

// SavePNG writes p to path at the default chart size.
func SavePNG(p *plot.Plot, path string) error {
	if err := p.Save(Width, Height, path); err != nil {
		return fmt.Errorf("save chart %s: %w", path, err)
	}
	return nil
}

// WritePNG encodes p as PNG into w.
func WritePNG(p *plot.Plot, w io.Writer) error {
	wt, err := p.WriterTo(Width, Height, "png")
	if err != nil {
		return fmt.Errorf("encode chart: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("write chart: %w", err)
	}
	return nil
}
