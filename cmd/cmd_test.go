package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/jpmelo-tech/acompanhamento-safra/internal/export"
)

// writeFixture creates two CSV partitions, a config file pointing at them
// and an output directory, and returns the config path and output dir.
func writeFixture(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	data := filepath.Join(dir, "data")
	out := filepath.Join(dir, "out")
	require.NoError(t, os.MkdirAll(data, 0o755))

	files := map[string]string{
		"2020-2021": "AnoSafra;SegmentoIF;MesEmissao;VlCusteio\n2020-2021;A;8;100\n2020-2021;B;8;300\n",
		"2021-2022": "AnoSafra;SegmentoIF;MesEmissao;VlCusteio\n2021-2022;A;9;50\n",
	}
	for id, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(data, "credito_"+id+".csv"), []byte(body), 0o644))
	}

	cfg := fmt.Sprintf(`source:
  kind: dir
  dir: %q
  file_pattern: credito_{season}.csv
seasons: ["2020-2021", "2021-2022"]
output:
  dir: %q
  file_format: "{kind}_{run}"
logging:
  level: error
`, data, out)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))
	return path, out
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	_, err := rootCmd.ExecuteC()
	return buf.String(), err
}

func TestReportCommand(t *testing.T) {
	cfgPath, out := writeFixture(t)

	stdout, err := execute(t, "report", "--config", cfgPath, "--start", "julho", "--end", "12", "--charts")
	require.NoError(t, err)

	var workbook string
	for _, line := range strings.Split(strings.TrimSpace(stdout), "\n") {
		if strings.HasSuffix(line, ".xlsx") {
			workbook = line
		}
	}
	require.NotEmpty(t, workbook, stdout)
	assert.True(t, strings.HasPrefix(filepath.Base(workbook), "relatorio_"))

	f, err := excelize.OpenFile(workbook)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(export.EvolutionSheet)
	require.NoError(t, err)
	assert.Len(t, rows, 4, "header plus three evolution rows")

	share, err := f.GetRows("Safra 2020-2021")
	require.NoError(t, err)
	require.Len(t, share, 3)
	assert.Equal(t, "B", share[1][0])
	assert.Equal(t, "75", share[1][6])

	charts, err := filepath.Glob(filepath.Join(out, "charts", "*.png"))
	require.NoError(t, err)
	assert.Len(t, charts, 3, "evolution plus one share chart per season")

	summaries, err := filepath.Glob(filepath.Join(out, "resumo_*.txt"))
	require.NoError(t, err)
	assert.Len(t, summaries, 1)
}

func TestReportCommand_InvalidMonth(t *testing.T) {
	cfgPath, _ := writeFixture(t)

	_, err := execute(t, "report", "--config", cfgPath, "--start", "13", "--end", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid start month 13")
}

func TestInspectCommand(t *testing.T) {
	cfgPath, _ := writeFixture(t)

	stdout, err := execute(t, "inspect", "--config", cfgPath, "--rows", "2")
	require.NoError(t, err)

	assert.Contains(t, stdout, "3 row(s)")
	assert.Contains(t, stdout, "2 of 2 partition(s) loaded")
	assert.Contains(t, stdout, "Seasons:      2021-2022, 2020-2021")
	assert.Contains(t, stdout, "AMOUNT_FUNDING")
	assert.Contains(t, stdout, "300.00")
	assert.NotContains(t, stdout, "50.00", "preview stops after two rows")
}

func TestVersionCommand(t *testing.T) {
	stdout, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Acompanhamento Safra")
}
