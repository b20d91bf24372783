package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/perfwatch/analyzer/pkg/analyzer"
)

// Config is the full engine configuration.
type Config struct {
	Analysis     AnalysisConfig     `yaml:"analysis" mapstructure:"analysis"`
	Optimization OptimizationConfig `yaml:"optimization" mapstructure:"optimization"`
	Benchmark    BenchmarkConfig    `yaml:"benchmark" mapstructure:"benchmark"`
	Storage      StorageConfig      `yaml:"storage" mapstructure:"storage"`
	Reporting    ReportingConfig    `yaml:"reporting" mapstructure:"reporting"`
	HTTP         HTTPConfig         `yaml:"http" mapstructure:"http"`
	Logging      LoggingConfig      `yaml:"logging" mapstructure:"logging"`
	Tracing      TracingConfig      `yaml:"tracing" mapstructure:"tracing"`
}

// AnalysisConfig drives the scheduler and the scoring layer.
type AnalysisConfig struct {
	Interval        time.Duration                  `yaml:"interval" mapstructure:"interval"`
	RetentionPeriod time.Duration                  `yaml:"retention_period" mapstructure:"retention_period"`
	SampleInterval  time.Duration                  `yaml:"sample_interval" mapstructure:"sample_interval"`
	TrendWindow     time.Duration                  `yaml:"trend_window" mapstructure:"trend_window"`
	Thresholds      map[string]analyzer.Thresholds `yaml:"thresholds" mapstructure:"thresholds"`
	// ThresholdOverrides points at an optional JSON document merged over
	// Thresholds at startup. Empty means no overrides.
	ThresholdOverrides string `yaml:"threshold_overrides" mapstructure:"threshold_overrides"`
}

// OptimizationConfig drives the executor and the auto-optimization gate.
type OptimizationConfig struct {
	AutoOptimization   bool          `yaml:"auto_optimization" mapstructure:"auto_optimization"`
	StabilizationDelay time.Duration `yaml:"stabilization_delay" mapstructure:"stabilization_delay"`
	Targets            []string      `yaml:"targets" mapstructure:"targets"`
	PlaybookPaths      []string      `yaml:"playbook_paths" mapstructure:"playbook_paths"`
}

// BenchmarkConfig drives the synthetic benchmark suite.
type BenchmarkConfig struct {
	Enabled      bool   `yaml:"enabled" mapstructure:"enabled"`
	BaselinePath string `yaml:"baseline_path" mapstructure:"baseline_path"`
}

// StorageConfig configures the durable archive. An empty database path
// disables archiving entirely.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path" mapstructure:"database_path"`
}

// ReportingConfig configures file-based report output.
type ReportingConfig struct {
	Enabled   bool   `yaml:"enabled" mapstructure:"enabled"`
	OutputDir string `yaml:"output_dir" mapstructure:"output_dir"`
}

// HTTPConfig configures the optional read-only HTTP surface. An empty
// address keeps it off.
type HTTPConfig struct {
	Address string `yaml:"address" mapstructure:"address"`
}

// LoggingConfig holds logging-related configuration.
type LoggingConfig struct {
	Level      string `yaml:"level" mapstructure:"level"`
	Format     string `yaml:"format" mapstructure:"format"`
	OutputFile string `yaml:"output_file" mapstructure:"output_file"`
}

// TracingConfig holds OpenTelemetry tracing configuration.
type TracingConfig struct {
	Enabled      bool   `yaml:"enabled" mapstructure:"enabled"`
	Exporter     string `yaml:"exporter" mapstructure:"exporter"` // stdout or otlp
	OTLPEndpoint string `yaml:"otlp_endpoint" mapstructure:"otlp_endpoint"`
	ServiceName  string `yaml:"service_name" mapstructure:"service_name"`
}

// DefaultConfig returns the shipped defaults.
func DefaultConfig() *Config {
	return &Config{
		Analysis: AnalysisConfig{
			Interval:        time.Minute,
			RetentionPeriod: 24 * time.Hour,
			SampleInterval:  15 * time.Second,
			TrendWindow:     time.Hour,
			Thresholds:      analyzer.DefaultThresholds(),
		},
		Optimization: OptimizationConfig{
			AutoOptimization:   false,
			StabilizationDelay: 30 * time.Second,
			Targets:            []string{"system", "application"},
		},
		Benchmark: BenchmarkConfig{
			Enabled:      true,
			BaselinePath: "/var/lib/perfwatch/baseline.json",
		},
		Storage: StorageConfig{
			DatabasePath: "/var/lib/perfwatch/analyzer.db",
		},
		Reporting: ReportingConfig{
			Enabled:   true,
			OutputDir: "/var/lib/perfwatch/reports",
		},
		HTTP: HTTPConfig{
			Address: "",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			Exporter:    "stdout",
			ServiceName: "perf-analyzerd",
		},
	}
}

// LoadConfig loads configuration from file and environment variables on
// top of the defaults.
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("perf-analyzerd")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("$HOME/.config/perfwatch")
		v.AddConfigPath("/etc/perfwatch")
	}

	v.SetEnvPrefix("PERFWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.Analysis.Interval <= 0 {
		return fmt.Errorf("analysis.interval must be positive")
	}
	if c.Analysis.RetentionPeriod <= 0 {
		return fmt.Errorf("analysis.retention_period must be positive")
	}
	if c.Analysis.SampleInterval <= 0 {
		return fmt.Errorf("analysis.sample_interval must be positive")
	}
	if c.Analysis.RetentionPeriod < c.Analysis.Interval {
		return fmt.Errorf("analysis.retention_period must cover at least one analysis interval")
	}
	if c.Optimization.StabilizationDelay < 0 {
		return fmt.Errorf("optimization.stabilization_delay cannot be negative")
	}

	for name, t := range c.Analysis.Thresholds {
		if t.LowerIsBetter {
			if !(t.Good <= t.Acceptable && t.Acceptable <= t.Poor) {
				return fmt.Errorf("thresholds for %s must satisfy good <= acceptable <= poor", name)
			}
		} else {
			if !(t.Good >= t.Acceptable && t.Acceptable >= t.Poor) {
				return fmt.Errorf("thresholds for %s must satisfy good >= acceptable >= poor", name)
			}
		}
	}

	switch c.Logging.Level {
	case "", "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown logging.level %q", c.Logging.Level)
	}

	switch c.Tracing.Exporter {
	case "", "stdout", "otlp":
	default:
		return fmt.Errorf("unknown tracing.exporter %q", c.Tracing.Exporter)
	}
	if c.Tracing.Enabled && c.Tracing.Exporter == "otlp" && c.Tracing.OTLPEndpoint == "" {
		return fmt.Errorf("tracing.otlp_endpoint required for the otlp exporter")
	}

	return nil
}

// SaveConfig writes the configuration to a YAML file.
func (c *Config) SaveConfig(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// CreateDirectories ensures every configured output directory exists.
func (c *Config) CreateDirectories() error {
	var dirs []string
	if c.Storage.DatabasePath != "" {
		dirs = append(dirs, filepath.Dir(c.Storage.DatabasePath))
	}
	if c.Benchmark.BaselinePath != "" {
		dirs = append(dirs, filepath.Dir(c.Benchmark.BaselinePath))
	}
	if c.Reporting.Enabled && c.Reporting.OutputDir != "" {
		dirs = append(dirs, c.Reporting.OutputDir)
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
