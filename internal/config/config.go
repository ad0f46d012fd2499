// File: internal/config/config.go
package config

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment variable overrides, e.g.
// SCALPEL_TAINT_ANALYSIS_BRANCH_MERGE.
const EnvPrefix = "SCALPEL_TAINT"

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Database() DatabaseConfig
	Analysis() AnalysisConfig
	Output() OutputConfig

	SetAnalysisConcurrency(int)
	SetAnalysisFrontend(string)
	SetAnalysisPatternsFile(string)
	SetOutputFormat(string)
	SetOutputPath(string)
	SetOutputDir(string)
	SetDatabasePersist(bool)
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	DatabaseCfg DatabaseConfig `mapstructure:"database" yaml:"database"`
	AnalysisCfg AnalysisConfig `mapstructure:"analysis" yaml:"analysis"`
	OutputCfg   OutputConfig   `mapstructure:"output" yaml:"output"`
}

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig     { return c.LoggerCfg }
func (c *Config) Database() DatabaseConfig { return c.DatabaseCfg }
func (c *Config) Analysis() AnalysisConfig { return c.AnalysisCfg }
func (c *Config) Output() OutputConfig     { return c.OutputCfg }

// --- Interface Method Implementations (Setters) ---

// Setters exist for values that CLI flags override after the config is loaded.

func (c *Config) SetAnalysisConcurrency(n int)     { c.AnalysisCfg.Concurrency = n }
func (c *Config) SetAnalysisFrontend(s string)     { c.AnalysisCfg.Frontend = s }
func (c *Config) SetAnalysisPatternsFile(s string) { c.AnalysisCfg.PatternsFile = s }
func (c *Config) SetOutputFormat(s string)         { c.OutputCfg.Format = s }
func (c *Config) SetOutputPath(s string)           { c.OutputCfg.Path = s }
func (c *Config) SetOutputDir(s string)            { c.OutputCfg.Dir = s }
func (c *Config) SetDatabasePersist(b bool)        { c.DatabaseCfg.Persist = b }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// DatabaseConfig holds the database connection details.
type DatabaseConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
	// Persist stores every analysis run when set.
	Persist bool `mapstructure:"persist" yaml:"persist"`
}

// AnalysisConfig tunes the taint engine and the batch runner.
type AnalysisConfig struct {
	// Concurrency bounds how many programs are analyzed at once.
	Concurrency int `mapstructure:"concurrency" yaml:"concurrency"`
	// LoopPasses is how many times a while body is walked. Zero or less walks the
	// body once per statement it contains.
	LoopPasses int `mapstructure:"loop_passes" yaml:"loop_passes"`
	// BranchMerge is one of isolate, rollback or shared.
	BranchMerge       string   `mapstructure:"branch_merge" yaml:"branch_merge"`
	EqualityOperators []string `mapstructure:"equality_operators" yaml:"equality_operators"`
	// ExtendedSyntax lets logical operators, constructor calls and nested blocks
	// carry taint. Off, they are treated like any other unmodelled node.
	ExtendedSyntax bool `mapstructure:"extended_syntax" yaml:"extended_syntax"`
	// Frontend is one of auto, estree or treesitter.
	Frontend string `mapstructure:"frontend" yaml:"frontend"`
	// PatternsFile is a JSON or YAML catalog. Empty means the built-in catalog.
	PatternsFile string `mapstructure:"patterns_file" yaml:"patterns_file"`
}

// OutputConfig controls where and how results are written.
type OutputConfig struct {
	Format string `mapstructure:"format" yaml:"format"`
	// Path overrides the derived output file. Only valid for single-file runs.
	Path string `mapstructure:"path" yaml:"path"`
	// Dir, when set, receives derived output files instead of the input's directory.
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// NewDefaultConfig returns a Config populated with the defaults only.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "scalpel-taint")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Database --
	v.SetDefault("database.url", "")
	v.SetDefault("database.persist", false)

	// -- Analysis --
	v.SetDefault("analysis.concurrency", runtime.NumCPU())
	v.SetDefault("analysis.loop_passes", 1)
	v.SetDefault("analysis.branch_merge", "isolate")
	v.SetDefault("analysis.equality_operators", []string{"=="})
	v.SetDefault("analysis.extended_syntax", false)
	v.SetDefault("analysis.frontend", "auto")
	v.SetDefault("analysis.patterns_file", "")

	// -- Output --
	v.SetDefault("output.format", "json")
	v.SetDefault("output.path", "")
	v.SetDefault("output.dir", "")
}

// BindEnv wires SCALPEL_TAINT_* environment variables into v.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// NewConfigFromViper unmarshals and validates the configuration held by v.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Explicit binding so Unmarshal sees the variable even without a file value.
	_ = v.BindEnv("database.url", EnvPrefix+"_DATABASE_URL")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.DatabaseCfg.Persist && c.DatabaseCfg.URL == "" {
		return fmt.Errorf("database.url is required when database.persist is enabled")
	}
	if err := c.AnalysisCfg.Validate(); err != nil {
		return fmt.Errorf("analysis configuration invalid: %w", err)
	}
	if err := c.OutputCfg.Validate(); err != nil {
		return fmt.Errorf("output configuration invalid: %w", err)
	}
	return nil
}

// Validate checks the analysis settings. Policy and front end names are checked
// again where they are parsed; the checks here give early, config-keyed errors.
func (a *AnalysisConfig) Validate() error {
	if a.Concurrency <= 0 {
		return fmt.Errorf("analysis.concurrency must be a positive integer")
	}
	switch strings.ToLower(a.BranchMerge) {
	case "", "isolate", "rollback", "shared":
	default:
		return fmt.Errorf("analysis.branch_merge must be one of isolate, rollback, shared (got %q)", a.BranchMerge)
	}
	switch strings.ToLower(a.Frontend) {
	case "", "auto", "estree", "treesitter":
	default:
		return fmt.Errorf("analysis.frontend must be one of auto, estree, treesitter (got %q)", a.Frontend)
	}
	for _, op := range a.EqualityOperators {
		if strings.TrimSpace(op) == "" {
			return fmt.Errorf("analysis.equality_operators must not contain empty operators")
		}
	}
	return nil
}

// Validate checks the output settings.
func (o *OutputConfig) Validate() error {
	switch o.Format {
	case "json", "sarif", "stdout":
		return nil
	default:
		return fmt.Errorf("output.format must be one of json, sarif, stdout (got %q)", o.Format)
	}
}
