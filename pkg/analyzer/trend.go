package analyzer

import (
	"github.com/perfwatch/analyzer/pkg/metrics"
)

const trendWindow = 5

// trendChangeThreshold is the relative change past which a trajectory
// stops being classified as stable.
const trendChangeThreshold = 0.10

// TrendAnalyzer classifies metric trajectories by comparing the mean of
// the most recent samples against the mean of the ones before them.
type TrendAnalyzer struct{}

// NewTrendAnalyzer returns a TrendAnalyzer.
func NewTrendAnalyzer() *TrendAnalyzer {
	return &TrendAnalyzer{}
}

// Change computes (recentAvg - olderAvg) / olderAvg over the series,
// splitting the last trendWindow values from the trendWindow before
// them. With fewer than 2 values the change is 0 by definition.
func (ta *TrendAnalyzer) Change(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}

	recentStart := len(values) - trendWindow
	if recentStart < 1 {
		recentStart = 1
	}
	olderStart := recentStart - trendWindow
	if olderStart < 0 {
		olderStart = 0
	}

	recentAvg := mean(values[recentStart:])
	olderAvg := mean(values[olderStart:recentStart])
	if olderAvg == 0 {
		return 0
	}
	return (recentAvg - olderAvg) / olderAvg
}

// Classify maps a relative change onto a Trend using the fixed 10% band.
func Classify(change float64) Trend {
	switch {
	case change > trendChangeThreshold:
		return TrendImproving
	case change < -trendChangeThreshold:
		return TrendDegrading
	default:
		return TrendStable
	}
}

// Analyze classifies a single metric series.
func (ta *TrendAnalyzer) Analyze(values []float64) Trend {
	return Classify(ta.Change(values))
}

// trackedMetric provides the per-metric trend series accessors.
var trackedMetrics = map[string]func(metrics.Sample) float64{
	MetricCPUUsage:       func(s metrics.Sample) float64 { return s.System.CPUPercent },
	MetricMemoryUsage:    func(s metrics.Sample) float64 { return s.System.MemoryPercent },
	MetricDiskUsage:      func(s metrics.Sample) float64 { return s.System.DiskPercent },
	MetricNetworkLatency: func(s metrics.Sample) float64 { return s.System.NetworkLatencyMs },
	MetricResponseTime:   func(s metrics.Sample) float64 { return s.Application.ResponseTimeMs },
	MetricThroughput:     func(s metrics.Sample) float64 { return s.Application.ThroughputPerMin },
	MetricErrorRate:      func(s metrics.Sample) float64 { return s.Application.ErrorRatePercent },
}

// AnalyzeSamples computes the trend of every tracked metric plus an
// overall trend over the composite index, the mean of cpu, memory and
// response time.
func (ta *TrendAnalyzer) AnalyzeSamples(samples []metrics.Sample) map[string]Trend {
	trends := make(map[string]Trend, len(trackedMetrics)+1)

	for name, accessor := range trackedMetrics {
		values := make([]float64, len(samples))
		for i, s := range samples {
			values[i] = accessor(s)
		}
		trends[name] = ta.Analyze(values)
	}

	composite := make([]float64, len(samples))
	for i, s := range samples {
		composite[i] = (s.System.CPUPercent + s.System.MemoryPercent + s.Application.ResponseTimeMs) / 3
	}
	trends["overall"] = ta.Analyze(composite)

	return trends
}

// CategoryTrend classifies the trajectory of a category's mean score
// proxy, using the first metric of the category as its representative
// series.
func (ta *TrendAnalyzer) CategoryTrend(category Category, samples []metrics.Sample) Trend {
	defs := categoryMetrics[category]
	if len(defs) == 0 {
		return TrendStable
	}
	values := make([]float64, len(samples))
	for i, s := range samples {
		values[i] = defs[0].value(s)
	}
	return ta.Analyze(values)
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
