package render

import (
	"bytes"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jpmelo-tech/acompanhamento-safra/internal/aggregate"
	"github.com/jpmelo-tech/acompanhamento-safra/internal/season"
)

func TestEvolutionPlot(t *testing.T) {
	rows := []aggregate.EvolutionRow{
		{Institution: "A", Season: "2020-2021", Month: 8, TotalBillions: 1.2},
		{Institution: "A", Season: "2020-2021", Month: 2, TotalBillions: 0.4},
		{Institution: "B", Season: "2020-2021", Month: 8, TotalBillions: 2.5},
	}

	p, err := EvolutionPlot(rows, season.DefaultOrder)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WritePNG(p, &buf))
	_, err = png.Decode(&buf)
	assert.NoError(t, err)
}

func TestEvolutionPlot_Empty(t *testing.T) {
	p, err := EvolutionPlot(nil, season.DefaultOrder)
	require.NoError(t, err)
	assert.Equal(t, NoDataTitle, p.Title.Text)
}

func TestSharePlot(t *testing.T) {
	share := aggregate.SeasonShare{
		Season: "2020-2021",
		Total:  decimal.NewFromInt(400),
		Rows: []aggregate.ShareRow{
			{Institution: "B", RowTotal: decimal.NewFromInt(300), SharePct: 75},
			{Institution: "A", RowTotal: decimal.NewFromInt(100), SharePct: 25},
			{Institution: "C", SharePct: aggregate.MissingPercent()},
		},
	}

	p, err := SharePlot(share)
	require.NoError(t, err)
	assert.Contains(t, p.Title.Text, "2020-2021")

	path := filepath.Join(t.TempDir(), "share.png")
	require.NoError(t, SavePNG(p, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestSharePlot_Empty(t *testing.T) {
	p, err := SharePlot(aggregate.SeasonShare{Season: "2020-2021"})
	require.NoError(t, err)
	assert.Equal(t, NoDataTitle, p.Title.Text)
}
