package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perfwatch/analyzer/pkg/analyzer"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, time.Minute, cfg.Analysis.Interval)
	assert.Equal(t, 24*time.Hour, cfg.Analysis.RetentionPeriod)
	assert.Equal(t, 30*time.Second, cfg.Optimization.StabilizationDelay)
	assert.False(t, cfg.Optimization.AutoOptimization)
	assert.NotEmpty(t, cfg.Analysis.Thresholds)
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "zero interval",
			mutate:  func(c *Config) { c.Analysis.Interval = 0 },
			wantErr: "analysis.interval",
		},
		{
			name:    "zero retention",
			mutate:  func(c *Config) { c.Analysis.RetentionPeriod = 0 },
			wantErr: "analysis.retention_period",
		},
		{
			name:    "zero sample interval",
			mutate:  func(c *Config) { c.Analysis.SampleInterval = 0 },
			wantErr: "analysis.sample_interval",
		},
		{
			name: "retention shorter than interval",
			mutate: func(c *Config) {
				c.Analysis.Interval = time.Hour
				c.Analysis.RetentionPeriod = time.Minute
			},
			wantErr: "retention_period",
		},
		{
			name:    "negative stabilization delay",
			mutate:  func(c *Config) { c.Optimization.StabilizationDelay = -time.Second },
			wantErr: "stabilization_delay",
		},
		{
			name: "inverted lower-is-better thresholds",
			mutate: func(c *Config) {
				c.Analysis.Thresholds[analyzer.MetricCPUUsage] = analyzer.Thresholds{
					Good: 90, Acceptable: 70, Poor: 50, LowerIsBetter: true,
				}
			},
			wantErr: "good <= acceptable <= poor",
		},
		{
			name: "inverted higher-is-better thresholds",
			mutate: func(c *Config) {
				c.Analysis.Thresholds[analyzer.MetricThroughput] = analyzer.Thresholds{
					Good: 100, Acceptable: 500, Poor: 1000,
				}
			},
			wantErr: "good >= acceptable >= poor",
		},
		{
			name:    "unknown log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: "logging.level",
		},
		{
			name:    "unknown tracing exporter",
			mutate:  func(c *Config) { c.Tracing.Exporter = "jaeger" },
			wantErr: "tracing.exporter",
		},
		{
			name: "otlp exporter without endpoint",
			mutate: func(c *Config) {
				c.Tracing.Enabled = true
				c.Tracing.Exporter = "otlp"
				c.Tracing.OTLPEndpoint = ""
			},
			wantErr: "otlp_endpoint",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSaveAndLoadConfigRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Analysis.Interval = 30 * time.Second
	cfg.Optimization.AutoOptimization = true
	cfg.HTTP.Address = "127.0.0.1:9090"

	path := filepath.Join(t.TempDir(), "perf-analyzerd.yaml")
	require.NoError(t, cfg.SaveConfig(path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, loaded.Analysis.Interval)
	assert.True(t, loaded.Optimization.AutoOptimization)
	assert.Equal(t, "127.0.0.1:9090", loaded.HTTP.Address)
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadThresholdOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "thresholds.json")
	doc := `{
		"cpu_usage": {"good": 40, "acceptable": 60, "poor": 80, "lower_is_better": true}
	}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	base := analyzer.DefaultThresholds()
	merged, err := LoadThresholdOverrides(path, base)
	require.NoError(t, err)

	assert.Equal(t, float64(40), merged[analyzer.MetricCPUUsage].Good)
	assert.Equal(t, float64(80), merged[analyzer.MetricCPUUsage].Poor)
	// Untouched metrics keep their base thresholds.
	assert.Equal(t, base[analyzer.MetricMemoryUsage], merged[analyzer.MetricMemoryUsage])
}

func TestApplyThresholdOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "thresholds.json")
	doc := `{
		"cpu_usage": {"good": 40, "acceptable": 60, "poor": 80, "lower_is_better": true}
	}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	cfg := DefaultConfig()
	cfg.Analysis.ThresholdOverrides = path
	require.NoError(t, cfg.ApplyThresholdOverrides())

	assert.Equal(t, float64(40), cfg.Analysis.Thresholds[analyzer.MetricCPUUsage].Good)
	assert.Equal(t, float64(80), cfg.Analysis.Thresholds[analyzer.MetricCPUUsage].Poor)
	// Untouched metrics keep the shipped defaults.
	assert.Equal(t, analyzer.DefaultThresholds()[analyzer.MetricMemoryUsage],
		cfg.Analysis.Thresholds[analyzer.MetricMemoryUsage])
}

func TestApplyThresholdOverridesNoPath(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.ApplyThresholdOverrides())
	assert.Equal(t, analyzer.DefaultThresholds(), analyzer.ThresholdSet(cfg.Analysis.Thresholds))
}

func TestApplyThresholdOverridesRejectsInvertedOrdering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "thresholds.json")
	// Schema-valid but semantically inverted for a lower-is-better metric.
	doc := `{
		"cpu_usage": {"good": 90, "acceptable": 70, "poor": 50, "lower_is_better": true}
	}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	cfg := DefaultConfig()
	cfg.Analysis.ThresholdOverrides = path
	err := cfg.ApplyThresholdOverrides()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "good <= acceptable <= poor")
}

func TestLoadThresholdOverridesRejectsBadDocument(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"missing required field", `{"cpu_usage": {"good": 40, "poor": 80}}`},
		{"non-numeric threshold", `{"cpu_usage": {"good": "low", "acceptable": 60, "poor": 80}}`},
		{"wrong top-level type", `[1, 2, 3]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "thresholds.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.doc), 0o644))

			_, err := LoadThresholdOverrides(path, analyzer.DefaultThresholds())
			assert.Error(t, err)
		})
	}
}

func TestCreateDirectories(t *testing.T) {
	base := t.TempDir()
	cfg := DefaultConfig()
	cfg.Storage.DatabasePath = filepath.Join(base, "db", "analyzer.db")
	cfg.Benchmark.BaselinePath = filepath.Join(base, "bench", "baseline.json")
	cfg.Reporting.OutputDir = filepath.Join(base, "reports")

	require.NoError(t, cfg.CreateDirectories())

	for _, dir := range []string{
		filepath.Join(base, "db"),
		filepath.Join(base, "bench"),
		filepath.Join(base, "reports"),
	} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}
