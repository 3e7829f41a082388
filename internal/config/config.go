// =============================================================================
// Rural Credit Season Pipeline - Configuration Module
// =============================================================================
//
// This module is responsible for loading the pipeline configuration. A single
// YAML file describes where partitions live, which seasons to load, how raw
// column names map onto canonical ones, and where outputs go.
//
// CONFIGURATION SOURCES (later wins):
//   1. Built-in defaults (Default)
//   2. YAML file (--config)
//   3. Environment variables prefixed with SAFRA_ (e.g. SAFRA_SOURCE_KIND)
//
// EXAMPLE:
//   source:
//     kind: http
//     base_url: https://raw.githubusercontent.com/jpmelo-tech/acompanhamento-safra/main/
//     file_pattern: matriz_de_dados_credito_rural_{season}.parquet
//     timeout: 60s
//   seasons: ["2023-2024", "2024-2025"]
//   columns:
//     institution: ["SegmentoIF"]
//
// =============================================================================

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/jpmelo-tech/acompanhamento-safra/internal/table"
)

// EnvPrefix is the prefix for environment variable overrides.
const EnvPrefix = "SAFRA"

// SeasonPlaceholder is replaced by the partition id in Source.FilePattern.
const SeasonPlaceholder = "{season}"

// =============================================================================
// CONFIGURATION STRUCTURES
// =============================================================================

// Config holds the complete application configuration.
type Config struct {
	// Source describes where partition files are fetched from.
	Source SourceConfig `yaml:"source" envconfig:"SOURCE"`

	// Seasons lists the partition ids to load, in retrieval order.
	// Default: 2015-2016 through 2025-2026.
	Seasons []string `yaml:"seasons" envconfig:"SEASONS" validate:"min=1,dive,required"`

	// SeasonStartMonth is the first month of an agricultural season.
	// Default: 7 (July)
	SeasonStartMonth int `yaml:"season_start_month" envconfig:"SEASON_START_MONTH" validate:"min=1,max=12"`

	// FillSeasonFromPartition labels rows with the partition id when the
	// source has no season column or the cell is empty.
	// Default: true
	FillSeasonFromPartition *bool `yaml:"fill_season_from_partition" envconfig:"FILL_SEASON_FROM_PARTITION"`

	// Columns maps a canonical column name to the raw header names that
	// should be renamed to it. Entries are merged with DefaultColumnAliases.
	Columns map[string][]string `yaml:"columns" ignored:"true"`

	Output  OutputConfig  `yaml:"output" envconfig:"OUTPUT"`
	Logging LoggingConfig `yaml:"logging" envconfig:"LOGGING"`
	Server  ServerConfig  `yaml:"server" envconfig:"SERVER"`
}

// SourceConfig describes the partition source.
type SourceConfig struct {
	// Kind selects the source implementation: "dir", "http" or "gcs".
	Kind string `yaml:"kind" envconfig:"KIND" validate:"oneof=dir http gcs"`

	// Dir is the local directory holding partition files (kind: dir).
	Dir string `yaml:"dir" envconfig:"DIR" validate:"required_if=Kind dir"`

	// BaseURL is the URL prefix partition file names are appended to (kind: http).
	BaseURL string `yaml:"base_url" envconfig:"BASE_URL" validate:"required_if=Kind http,omitempty,url"`

	// Bucket and Prefix locate partition objects in Cloud Storage (kind: gcs).
	Bucket string `yaml:"bucket" envconfig:"BUCKET" validate:"required_if=Kind gcs"`
	Prefix string `yaml:"prefix" envconfig:"PREFIX"`

	// CredentialsFile is an optional service-account key for kind: gcs.
	CredentialsFile string `yaml:"credentials_file" envconfig:"CREDENTIALS_FILE"`

	// FilePattern builds the file name for a partition id.
	// Default: "matriz_de_dados_credito_rural_{season}.parquet"
	FilePattern string `yaml:"file_pattern" envconfig:"FILE_PATTERN" validate:"required"`

	// Timeout bounds the fetch of a single partition.
	// Default: 60s
	Timeout time.Duration `yaml:"timeout" envconfig:"TIMEOUT" validate:"gt=0"`

	// MaxConcurrency is the number of partitions fetched at once.
	// Default: 4
	MaxConcurrency int `yaml:"max_concurrency" envconfig:"MAX_CONCURRENCY" validate:"min=1,max=64"`

	// RequestsPerSecond throttles remote fetches. 0 disables throttling.
	RequestsPerSecond float64 `yaml:"requests_per_second" envconfig:"REQUESTS_PER_SECOND" validate:"gte=0"`
}

// OutputConfig controls report files.
type OutputConfig struct {
	// Dir is where workbooks, charts and logs are written.
	// Default: "./output"
	Dir string `yaml:"dir" envconfig:"DIR" validate:"required"`

	// FileFormat names output files. Placeholders: {kind}, {uuid},
	// {timestamp}, {date}. The extension is appended by the writer.
	// Default: "{kind}_{timestamp}"
	FileFormat string `yaml:"file_format" envconfig:"FILE_FORMAT" validate:"required"`

	// Charts enables PNG chart rendering next to the workbook.
	Charts bool `yaml:"charts" envconfig:"CHARTS"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	// Level is one of "debug", "info", "warn", "error".
	// Default: "info"
	Level string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn error"`

	// Format is "console" (human readable) or "json".
	// Default: "console"
	Format string `yaml:"format" envconfig:"FORMAT" validate:"oneof=console json"`

	// File is an optional path; when set logs are also appended there.
	File string `yaml:"file" envconfig:"FILE"`
}

// ServerConfig controls the HTTP API started by "serve".
type ServerConfig struct {
	// Addr is the listen address.
	// Default: ":8080"
	Addr string `yaml:"addr" envconfig:"ADDR" validate:"required"`

	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// DefaultSeasons are the published partitions.
var DefaultSeasons = []string{
	"2015-2016", "2016-2017", "2017-2018", "2018-2019", "2019-2020",
	"2020-2021", "2021-2022", "2022-2023", "2023-2024", "2024-2025", "2025-2026",
}

// DefaultBaseURL is where the published partitions are hosted.
const DefaultBaseURL = "https://raw.githubusercontent.com/jpmelo-tech/acompanhamento-safra/main/"

// DefaultColumnAliases lists raw header names known to appear in the
// published datasets, keyed by canonical column.
func DefaultColumnAliases() map[string][]string {
	return map[string][]string{
		table.ColumnSeason:               {"AnoSafra", "Safra", "ano_safra"},
		table.ColumnInstitution:          {"SegmentoIF", "Segmento", "segmento_if", "tipo_instituicao", "nomeIF"},
		table.ColumnState:                {"nomeUF", "UF", "cdEstado"},
		table.ColumnIssueMonth:           {"MesEmissao", "mes_emissao", "Mes"},
		table.ColumnIssueYear:            {"AnoEmissao", "ano_emissao", "Ano"},
		table.Funding.Column():           {"VlCusteio", "vl_custeio", "Custeio"},
		table.Investment.Column():        {"VlInvestimento", "vl_investimento", "Investimento"},
		table.Commercialization.Column(): {"VlComercializacao", "vl_comercializacao", "Comercializacao"},
		table.Industrialization.Column(): {"VlIndustrializacao", "vl_industrializacao", "Industrializacao"},
	}
}

// Default returns a configuration populated with default values only.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// applyDefaults sets default values for any unset configuration options.
func applyDefaults(cfg *Config) {
	if cfg.Source.Kind == "" {
		cfg.Source.Kind = "http"
	}
	if cfg.Source.Kind == "http" && cfg.Source.BaseURL == "" {
		cfg.Source.BaseURL = DefaultBaseURL
	}
	if cfg.Source.FilePattern == "" {
		cfg.Source.FilePattern = "matriz_de_dados_credito_rural_" + SeasonPlaceholder + ".parquet"
	}
	if cfg.Source.Timeout == 0 {
		cfg.Source.Timeout = 60 * time.Second
	}
	if cfg.Source.MaxConcurrency == 0 {
		cfg.Source.MaxConcurrency = 4
	}
	if len(cfg.Seasons) == 0 {
		cfg.Seasons = append([]string(nil), DefaultSeasons...)
	}
	if cfg.SeasonStartMonth == 0 {
		cfg.SeasonStartMonth = 7
	}
	if cfg.FillSeasonFromPartition == nil {
		fill := true
		cfg.FillSeasonFromPartition = &fill
	}
	cfg.Columns = mergeAliases(DefaultColumnAliases(), cfg.Columns)

	if cfg.Output.Dir == "" {
		cfg.Output.Dir = "./output"
	}
	if cfg.Output.FileFormat == "" {
		cfg.Output.FileFormat = "{kind}_{timestamp}"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 60 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}
}

// mergeAliases appends user aliases after the defaults for each canonical
// column, dropping duplicates.
func mergeAliases(defaults, user map[string][]string) map[string][]string {
	merged := make(map[string][]string, len(defaults))
	for canonical, aliases := range defaults {
		merged[canonical] = append([]string(nil), aliases...)
	}
	for canonical, aliases := range user {
		for _, alias := range aliases {
			if !containsFold(merged[canonical], alias) {
				merged[canonical] = append(merged[canonical], alias)
			}
		}
	}
	return merged
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

// =============================================================================
// CONFIGURATION LOADING
// =============================================================================

// Load reads the YAML file at path, applies environment overrides and
// defaults, and validates the result.
//
// PARAMETERS:
//   - path: The configuration file. An empty path skips the file.
//
// RETURNS:
//   - The validated configuration.
//   - An error if the file cannot be read, parsed or fails validation.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	applyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks struct constraints and cross-field rules.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return err
	}

	if !strings.Contains(cfg.Source.FilePattern, SeasonPlaceholder) {
		return fmt.Errorf("source.file_pattern %q must contain %s", cfg.Source.FilePattern, SeasonPlaceholder)
	}

	known := DefaultColumnAliases()
	for canonical := range cfg.Columns {
		if _, ok := known[canonical]; !ok {
			return fmt.Errorf("columns: unknown canonical column %q", canonical)
		}
	}

	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

// PartitionFile returns the file name for a partition id.
func (c *Config) PartitionFile(id string) string {
	return strings.ReplaceAll(c.Source.FilePattern, SeasonPlaceholder, id)
}

// FillSeason reports whether missing season labels are filled from the
// partition id.
func (c *Config) FillSeason() bool {
	return c.FillSeasonFromPartition == nil || *c.FillSeasonFromPartition
}
