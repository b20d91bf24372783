package analyzer

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/perfwatch/analyzer/pkg/metrics"
)

// Score maps a raw metric value onto 0-100 against its thresholds.
// Values at the good breakpoint score 100, acceptable 80, poor 60; past
// poor the score decays linearly with the relative overshoot and clamps
// at zero.
func Score(value float64, t Thresholds) float64 {
	if t.LowerIsBetter {
		switch {
		case value <= t.Good:
			return 100
		case value <= t.Acceptable:
			return 80
		case value <= t.Poor:
			return 60
		default:
			if t.Poor == 0 {
				return 0
			}
			return max0(40 - ((value-t.Poor)/t.Poor)*40)
		}
	}
	switch {
	case value >= t.Good:
		return 100
	case value >= t.Acceptable:
		return 80
	case value >= t.Poor:
		return 60
	default:
		if t.Poor == 0 {
			return 0
		}
		return max0(40 - ((t.Poor-value)/t.Poor)*40)
	}
}

func max0(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

// StatusFromScore applies the fixed cutoff table.
func StatusFromScore(score float64) Status {
	switch {
	case score >= 90:
		return StatusExcellent
	case score >= 80:
		return StatusGood
	case score >= 60:
		return StatusAcceptable
	case score >= 40:
		return StatusPoor
	default:
		return StatusCritical
	}
}

// categoryMetric binds a metric name to the accessor that pulls its value
// out of a sample.
type categoryMetric struct {
	name  string
	value func(metrics.Sample) float64
}

var categoryMetrics = map[Category][]categoryMetric{
	CategorySystem: {
		{MetricCPUUsage, func(s metrics.Sample) float64 { return s.System.CPUPercent }},
		{MetricMemoryUsage, func(s metrics.Sample) float64 { return s.System.MemoryPercent }},
		{MetricDiskUsage, func(s metrics.Sample) float64 { return s.System.DiskPercent }},
	},
	CategoryApplication: {
		{MetricResponseTime, func(s metrics.Sample) float64 { return s.Application.ResponseTimeMs }},
		{MetricThroughput, func(s metrics.Sample) float64 { return s.Application.ThroughputPerMin }},
		{MetricErrorRate, func(s metrics.Sample) float64 { return s.Application.ErrorRatePercent }},
	},
	CategoryResources: {
		{MetricMemoryUsage, func(s metrics.Sample) float64 { return s.System.MemoryPercent }},
		{MetricDiskUsage, func(s metrics.Sample) float64 { return s.System.DiskPercent }},
	},
	CategoryNetwork: {
		{MetricNetworkLatency, func(s metrics.Sample) float64 { return s.System.NetworkLatencyMs }},
	},
	CategoryAgents: {
		{MetricAgentHealth, func(s metrics.Sample) float64 { return s.Agents.AverageHealth * 100 }},
		{MetricAgentActivity, func(s metrics.Sample) float64 {
			if s.Agents.Total == 0 {
				return 100
			}
			return float64(s.Agents.Active) / float64(s.Agents.Total) * 100
		}},
	},
}

// Categories lists the scored metric groups in a stable order.
var Categories = []Category{
	CategorySystem,
	CategoryApplication,
	CategoryResources,
	CategoryNetwork,
	CategoryAgents,
}

// Scorer computes category scores from the latest sample.
type Scorer struct {
	thresholds ThresholdSet
}

// NewScorer builds a scorer over the given threshold set; missing metrics
// fall back to the defaults.
func NewScorer(thresholds ThresholdSet) *Scorer {
	merged := DefaultThresholds()
	for name, t := range thresholds {
		merged[name] = t
	}
	return &Scorer{thresholds: merged}
}

// Thresholds returns the threshold for a metric name.
func (sc *Scorer) Thresholds(metric string) (Thresholds, bool) {
	t, ok := sc.thresholds[metric]
	return t, ok
}

// ScoreCategory scores one metric group against the latest sample. A
// PerformanceIssue is raised for every metric scoring under 60, critical
// under 30 and high otherwise.
func (sc *Scorer) ScoreCategory(category Category, sample metrics.Sample) CategoryScore {
	defs := categoryMetrics[category]
	cs := CategoryScore{
		Category: category,
		Trend:    TrendStable,
		Metrics:  make([]MetricScore, 0, len(defs)),
	}
	if len(defs) == 0 {
		cs.Status = StatusAcceptable
		cs.Score = 60
		return cs
	}

	var sum float64
	for _, def := range defs {
		value := def.value(sample)
		t := sc.thresholds[def.name]
		score := Score(value, t)
		sum += score
		cs.Metrics = append(cs.Metrics, MetricScore{
			Metric: def.name,
			Value:  value,
			Score:  score,
			Status: StatusFromScore(score),
		})

		if score < 60 {
			severity := SeverityHigh
			if score < 30 {
				severity = SeverityCritical
			}
			cs.Issues = append(cs.Issues, PerformanceIssue{
				ID:              uuid.New().String(),
				Category:        category,
				Severity:        severity,
				Title:           fmt.Sprintf("%s outside acceptable range (%.1f)", def.name, value),
				AffectedMetrics: []string{def.name},
				DetectedAt:      sample.Timestamp,
			})
		}
	}

	cs.Score = sum / float64(len(defs))
	cs.Status = StatusFromScore(cs.Score)
	return cs
}

// ScoreAll scores every category and returns the map plus the unweighted
// mean across categories present.
func (sc *Scorer) ScoreAll(sample metrics.Sample) (map[Category]CategoryScore, float64) {
	scores := make(map[Category]CategoryScore, len(Categories))
	var sum float64
	for _, category := range Categories {
		cs := sc.ScoreCategory(category, sample)
		scores[category] = cs
		sum += cs.Score
	}
	return scores, sum / float64(len(Categories))
}
