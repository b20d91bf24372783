package analyzer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/perfwatch/analyzer/pkg/metrics"
)

func TestTrendClassification(t *testing.T) {
	ta := NewTrendAnalyzer()

	tests := []struct {
		name     string
		values   []float64
		expected Trend
	}{
		{"rising step", []float64{10, 10, 10, 10, 10, 20, 20, 20, 20, 20}, TrendImproving},
		{"falling step", []float64{20, 20, 20, 20, 20, 10, 10, 10, 10, 10}, TrendDegrading},
		{"flat", []float64{10, 10, 10, 10, 10, 10, 10, 10, 10, 10}, TrendStable},
		{"within the 10 percent band", []float64{100, 100, 100, 100, 100, 105, 105, 105, 105, 105}, TrendStable},
		{"empty", nil, TrendStable},
		{"single value", []float64{42}, TrendStable},
		{"two values rising", []float64{10, 20}, TrendImproving},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ta.Analyze(tt.values))
		})
	}
}

func TestTrendChangeMagnitude(t *testing.T) {
	ta := NewTrendAnalyzer()

	change := ta.Change([]float64{10, 10, 10, 10, 10, 20, 20, 20, 20, 20})
	assert.InDelta(t, 1.0, change, 0.001)

	change = ta.Change([]float64{20, 20, 20, 20, 20, 10, 10, 10, 10, 10})
	assert.InDelta(t, -0.5, change, 0.001)
}

func TestAnalyzeSamplesOverallComposite(t *testing.T) {
	ta := NewTrendAnalyzer()

	samples := make([]metrics.Sample, 10)
	now := time.Now()
	for i := range samples {
		cpu := 20.0
		if i >= 5 {
			cpu = 60.0
		}
		samples[i] = metrics.Sample{
			Timestamp: now.Add(time.Duration(i) * time.Second),
			System:    metrics.SystemMetrics{CPUPercent: cpu, MemoryPercent: 30},
			Application: metrics.ApplicationMetrics{
				ResponseTimeMs: 100,
			},
		}
	}

	trends := ta.AnalyzeSamples(samples)
	assert.Equal(t, TrendImproving, trends[MetricCPUUsage])
	assert.Equal(t, TrendStable, trends[MetricMemoryUsage])
	assert.Equal(t, TrendStable, trends[MetricResponseTime])
	// Composite index moves from 50 to 63.3, a 26% rise.
	assert.Equal(t, TrendImproving, trends["overall"])
}

func TestCategoryTrend(t *testing.T) {
	ta := NewTrendAnalyzer()

	samples := make([]metrics.Sample, 10)
	for i := range samples {
		rt := 100.0
		if i >= 5 {
			rt = 300.0
		}
		samples[i] = metrics.Sample{Application: metrics.ApplicationMetrics{ResponseTimeMs: rt}}
	}

	assert.Equal(t, TrendImproving, ta.CategoryTrend(CategoryApplication, samples))
	assert.Equal(t, TrendStable, ta.CategoryTrend(CategorySystem, samples))
}
