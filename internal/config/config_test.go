package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "safra.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "http", cfg.Source.Kind)
	assert.Equal(t, DefaultBaseURL, cfg.Source.BaseURL)
	assert.Equal(t, 60*time.Second, cfg.Source.Timeout)
	assert.Equal(t, 4, cfg.Source.MaxConcurrency)
	assert.Equal(t, DefaultSeasons, cfg.Seasons)
	assert.Equal(t, 7, cfg.SeasonStartMonth)
	assert.True(t, cfg.FillSeason())
	assert.Equal(t, "matriz_de_dados_credito_rural_2020-2021.parquet", cfg.PartitionFile("2020-2021"))
	require.NoError(t, Validate(cfg))
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
source:
  kind: dir
  dir: ./data
  file_pattern: "credito_{season}.csv"
  timeout: 5s
seasons: ["2020-2021", "2021-2022"]
fill_season_from_partition: false
columns:
  institution: ["tipo_if"]
logging:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "dir", cfg.Source.Kind)
	assert.Equal(t, "./data", cfg.Source.Dir)
	assert.Equal(t, 5*time.Second, cfg.Source.Timeout)
	assert.Equal(t, []string{"2020-2021", "2021-2022"}, cfg.Seasons)
	assert.False(t, cfg.FillSeason())
	assert.Contains(t, cfg.Columns["institution"], "tipo_if")
	assert.Contains(t, cfg.Columns["institution"], "SegmentoIF", "defaults are kept")
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "credito_2021-2022.csv", cfg.PartitionFile("2021-2022"))
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, "source:\n  kind: dir\n  dir: ./data\n")
	t.Setenv("SAFRA_SOURCE_MAX_CONCURRENCY", "2")
	t.Setenv("SAFRA_SEASONS", "2023-2024,2024-2025")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Source.MaxConcurrency)
	assert.Equal(t, []string{"2023-2024", "2024-2025"}, cfg.Seasons)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown kind", "source:\n  kind: ftp\n"},
		{"dir without path", "source:\n  kind: dir\n"},
		{"gcs without bucket", "source:\n  kind: gcs\n"},
		{"pattern without placeholder", "source:\n  kind: dir\n  dir: x\n  file_pattern: data.parquet\n"},
		{"bad season start", "source:\n  kind: dir\n  dir: x\nseason_start_month: 13\n"},
		{"unknown canonical column", "source:\n  kind: dir\n  dir: x\ncolumns:\n  bogus: [a]\n"},
		{"bad log level", "source:\n  kind: dir\n  dir: x\nlogging:\n  level: loud\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
