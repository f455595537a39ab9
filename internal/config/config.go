// =============================================================================
// Warranty Orders - Configuration Module
// =============================================================================
//
// This module loads and validates the application configuration.
//
// CONFIGURATION SOURCES (later wins):
//   1. Built-in defaults (DefaultConfig)
//   2. The YAML file (config.yaml), decoded with yaml.v3
//   3. Flags and WARRANTY_* environment variables bound through viper
//      (ApplyOverrides)
//
// WHAT IS NOT CONFIGURABLE:
//   The business constants (status whitelist, year range, money tolerance,
//   serial epoch and bounds) are code constants. Downstream consumers depend
//   on their exact values.
//
// =============================================================================

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ginjaninja78/warranty-orders/internal/logging"
	"github.com/ginjaninja78/warranty-orders/internal/types"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	ErrInvalidDriver        = errors.New("invalid store driver")
	ErrMissingDSN           = errors.New("store dsn is required")
	ErrInvalidBatchSize     = errors.New("batch size must be positive")
	ErrInvalidReferenceDate = errors.New("invalid reference date")
	ErrUnknownField         = errors.New("unknown logical field")
	ErrInvalidConcurrency   = errors.New("max concurrency must be positive")
)

// Store drivers.
const (
	DriverNone     = "none"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// =============================================================================
// MAIN CONFIGURATION STRUCTURE
// =============================================================================

// MainConfig holds the global application configuration.
type MainConfig struct {
	// =========================================================================
	// DIRECTORY SETTINGS
	// =========================================================================

	// InputDir is scanned for *.xlsx and *.csv files.
	// Default: "./input"
	InputDir string `yaml:"input_dir"`

	// OutputDir receives reports and logs.
	// Default: "./output"
	OutputDir string `yaml:"output_dir"`

	// InputArchiveDir receives processed input files.
	// Default: "./input_archive"
	InputArchiveDir string `yaml:"input_archive_dir"`

	// =========================================================================
	// LOGGING SETTINGS
	// =========================================================================

	// LogFile is the log destination: "stderr", "stdout" or a file path.
	// Default: "stderr"
	LogFile string `yaml:"log_file"`

	// LogLevel controls verbosity: "debug", "info", "warn", "error".
	// Default: "info"
	LogLevel string `yaml:"log_level"`

	// LogFormat is "console" or "json".
	// Default: "console"
	LogFormat string `yaml:"log_format"`

	// =========================================================================
	// SECTIONS
	// =========================================================================

	Source     SourceConfig     `yaml:"source"`
	Rules      RulesConfig      `yaml:"rules"`
	Processing ProcessingConfig `yaml:"processing"`
	Output     OutputConfig     `yaml:"output"`
	Store      StoreConfig      `yaml:"store"`
	Server     ServerConfig     `yaml:"server"`
}

// SourceConfig describes where rows come from inside an input file.
type SourceConfig struct {
	// SheetName is the worksheet holding the orders. When it is missing
	// from a workbook, the first non-empty sheet is used.
	// Default: "Tabela"
	SheetName string `yaml:"sheet_name"`

	// Columns overrides the source column of individual logical fields.
	// Keys are logical field names (order_number, order_date, ...).
	Columns map[string]string `yaml:"columns"`

	// CSV contains settings for CSV inputs.
	CSV CSVSettings `yaml:"csv"`
}

// CSVSettings contains settings for parsing CSV exports.
type CSVSettings struct {
	// Delimiter separates fields. pt-BR exports commonly use ";".
	// Default: ","
	Delimiter string `yaml:"delimiter"`

	// LazyQuotes tolerates stray quotes inside unquoted fields.
	LazyQuotes bool `yaml:"lazy_quotes"`

	// KeepText disables number inference; every cell stays a string.
	// By default plain numbers ("45678", "150.5") become float64 so serial
	// dates behave like they do in workbooks.
	KeepText bool `yaml:"keep_text"`
}

// RulesConfig parameterizes the validator.
type RulesConfig struct {
	// FutureToleranceMonths is how many months past the reference month an
	// order may be dated within the reference year.
	// Default: 1
	FutureToleranceMonths *int `yaml:"future_tolerance_months"`

	// ReferenceDate (YYYY-MM-DD) pins "today" for the future-date guard.
	// Empty means the run date.
	ReferenceDate string `yaml:"reference_date"`
}

// ProcessingConfig controls concurrency and error behavior.
type ProcessingConfig struct {
	// MaxConcurrency is the number of files processed at once.
	// Default: 4
	MaxConcurrency int `yaml:"max_concurrency"`

	// Workers splits each sheet into this many row chunks. 1 is sequential.
	// Default: 1
	Workers int `yaml:"workers"`

	// ContinueOnError keeps processing other files after a failure.
	// Default: true
	ContinueOnError *bool `yaml:"continue_on_error"`

	// ArchiveInputs moves processed inputs to InputArchiveDir.
	ArchiveInputs bool `yaml:"archive_inputs"`
}

// OutputConfig selects the reports written per input file.
type OutputConfig struct {
	ResultsJSON    bool `yaml:"results_json"`
	ProcessedCSV   bool `yaml:"processed_csv"`
	RejectionsXLSX bool `yaml:"rejections_xlsx"`
	RejectionLog   bool `yaml:"rejection_log"`
	XMLExport      bool `yaml:"xml_export"`

	// NameFormat builds report file names.
	// Placeholders: {original}, {kind}, {timestamp}, {date}, {uuid}
	// Default: "{original}_{kind}_{timestamp}"
	NameFormat string `yaml:"output_name_format"`
}

// StoreConfig selects the relational store.
type StoreConfig struct {
	// Driver is "none", "postgres" or "sqlite".
	// Default: "none"
	Driver string `yaml:"driver"`

	// DSN is the postgres URL or the sqlite file path.
	DSN string `yaml:"dsn"`

	// BatchSize is the number of records per insert batch.
	// Default: 1000
	BatchSize int `yaml:"batch_size"`

	// ClearExisting empties service_orders before loading.
	ClearExisting bool `yaml:"clear_existing"`
}

// ServerConfig configures the HTTP upload API.
type ServerConfig struct {
	// ListenAddr is the address to bind.
	// Default: ":8080"
	ListenAddr string `yaml:"listen_addr"`

	// MaxUploadMB caps the upload size.
	// Default: 50
	MaxUploadMB int64 `yaml:"max_upload_mb"`
}

// =============================================================================
// LOADING
// =============================================================================

// DefaultConfig returns a configuration with every default applied.
func DefaultConfig() *MainConfig {
	cfg := &MainConfig{
		Output: OutputConfig{
			ResultsJSON:    true,
			ProcessedCSV:   true,
			RejectionsXLSX: true,
			RejectionLog:   true,
		},
	}
	applyMainConfigDefaults(cfg)
	return cfg
}

// LoadMainConfig loads the main configuration from a YAML file.
//
// PARAMETERS:
//   - path: The path to the configuration file.
//
// RETURNS:
//   - The validated configuration.
//   - An error if the file cannot be read, parsed or validated. A missing
//     file yields an error wrapping fs.ErrNotExist.
func LoadMainConfig(path string) (*MainConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyMainConfigDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyMainConfigDefaults sets default values for unset fields.
func applyMainConfigDefaults(cfg *MainConfig) {
	if cfg.InputDir == "" {
		cfg.InputDir = "./input"
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = "./output"
	}
	if cfg.InputArchiveDir == "" {
		cfg.InputArchiveDir = "./input_archive"
	}
	if cfg.LogFile == "" {
		cfg.LogFile = "stderr"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "console"
	}
	if cfg.Source.SheetName == "" {
		cfg.Source.SheetName = "Tabela"
	}
	if cfg.Source.CSV.Delimiter == "" {
		cfg.Source.CSV.Delimiter = ","
	}
	if cfg.Rules.FutureToleranceMonths == nil {
		tolerance := 1
		cfg.Rules.FutureToleranceMonths = &tolerance
	}
	if cfg.Processing.MaxConcurrency == 0 {
		cfg.Processing.MaxConcurrency = 4
	}
	if cfg.Processing.Workers == 0 {
		cfg.Processing.Workers = 1
	}
	if cfg.Processing.ContinueOnError == nil {
		cont := true
		cfg.Processing.ContinueOnError = &cont
	}
	if cfg.Output.NameFormat == "" {
		cfg.Output.NameFormat = "{original}_{kind}_{timestamp}"
	}
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = DriverNone
	}
	if cfg.Store.BatchSize == 0 {
		cfg.Store.BatchSize = 1000
	}
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8080"
	}
	if cfg.Server.MaxUploadMB == 0 {
		cfg.Server.MaxUploadMB = 50
	}
}

// Validate checks the configuration for consistency.
func (c *MainConfig) Validate() error {
	switch c.Store.Driver {
	case DriverNone:
	case DriverPostgres, DriverSQLite:
		if strings.TrimSpace(c.Store.DSN) == "" {
			return fmt.Errorf("%w for driver %s", ErrMissingDSN, c.Store.Driver)
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidDriver, c.Store.Driver)
	}

	if c.Store.BatchSize < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidBatchSize, c.Store.BatchSize)
	}
	if c.Processing.MaxConcurrency < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidConcurrency, c.Processing.MaxConcurrency)
	}

	if _, err := c.parseReferenceDate(); err != nil {
		return err
	}
	if _, err := c.FieldMapping(); err != nil {
		return err
	}

	return nil
}

// =============================================================================
// DERIVED SETTINGS
// =============================================================================

// FieldMapping returns the default column mapping with overrides applied.
func (c *MainConfig) FieldMapping() (types.FieldMapping, error) {
	mapping := types.DefaultFieldMapping()
	for key, column := range c.Source.Columns {
		field := types.LogicalField(strings.TrimSpace(key))
		if _, ok := mapping[field]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownField, key)
		}
		mapping[field] = strings.TrimSpace(column)
	}
	return mapping, nil
}

// ReferenceDate resolves the future-date reference. A configured date wins;
// otherwise now is used.
func (c *MainConfig) ReferenceDate(now time.Time) (time.Time, error) {
	ref, err := c.parseReferenceDate()
	if err != nil {
		return time.Time{}, err
	}
	if ref.IsZero() {
		return now, nil
	}
	return ref, nil
}

// FutureTolerance returns the configured tolerance in months.
func (c *MainConfig) FutureTolerance() int {
	if c.Rules.FutureToleranceMonths == nil {
		return 1
	}
	return *c.Rules.FutureToleranceMonths
}

// ContinueOnError reports whether a failing file should stop the run.
func (c *MainConfig) ContinueOnError() bool {
	return c.Processing.ContinueOnError == nil || *c.Processing.ContinueOnError
}

// Logging returns the logger configuration.
func (c *MainConfig) Logging() logging.Config {
	return logging.Config{
		Level:  c.LogLevel,
		Format: c.LogFormat,
		Output: c.LogFile,
	}
}

func (c *MainConfig) parseReferenceDate() (time.Time, error) {
	s := strings.TrimSpace(c.Rules.ReferenceDate)
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidReferenceDate, s)
	}
	return t, nil
}

// =============================================================================
// OVERRIDES
// =============================================================================

// ApplyOverrides lays non-empty viper values (bound flags and WARRANTY_*
// environment variables) over the file configuration and re-validates.
//
// KEYS:
//   log.level, log.format, log.file, store.driver, store.dsn,
//   server.listen_addr, rules.reference_date, processing.workers
func (c *MainConfig) ApplyOverrides(v *viper.Viper) error {
	if v == nil {
		return nil
	}

	overrideString := func(key string, dst *string) {
		if s := strings.TrimSpace(v.GetString(key)); s != "" {
			*dst = s
		}
	}

	overrideString("log.level", &c.LogLevel)
	overrideString("log.format", &c.LogFormat)
	overrideString("log.file", &c.LogFile)
	overrideString("store.driver", &c.Store.Driver)
	overrideString("store.dsn", &c.Store.DSN)
	overrideString("server.listen_addr", &c.Server.ListenAddr)
	overrideString("rules.reference_date", &c.Rules.ReferenceDate)

	if n := v.GetInt("processing.workers"); n > 0 {
		c.Processing.Workers = n
	}

	return c.Validate()
}

// EnsureDirectories creates the working directories.
func (c *MainConfig) EnsureDirectories() error {
	for _, dir := range []string{c.InputDir, c.OutputDir, c.InputArchiveDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
