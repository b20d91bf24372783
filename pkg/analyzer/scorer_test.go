package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/perfwatch/analyzer/pkg/metrics"
)

func TestScoreLowerIsBetter(t *testing.T) {
	thresholds := Thresholds{Good: 50, Acceptable: 70, Poor: 90, LowerIsBetter: true}

	tests := []struct {
		name     string
		value    float64
		expected float64
	}{
		{"at good", 50, 100},
		{"below good", 10, 100},
		{"at acceptable", 70, 80},
		{"between good and acceptable", 60, 80},
		{"at poor", 90, 60},
		{"between acceptable and poor", 85, 60},
		{"just past poor", 99, 36},
		{"double the poor threshold", 180, 0},
		{"far past poor clamps at zero", 500, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, Score(tt.value, thresholds), 0.001)
		})
	}
}

func TestScoreHigherIsBetter(t *testing.T) {
	thresholds := Thresholds{Good: 1000, Acceptable: 500, Poor: 100, LowerIsBetter: false}

	tests := []struct {
		name     string
		value    float64
		expected float64
	}{
		{"at good", 1000, 100},
		{"above good", 2000, 100},
		{"at acceptable", 500, 80},
		{"at poor", 100, 60},
		{"below poor", 50, 20},
		{"zero clamps", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, Score(tt.value, thresholds), 0.001)
		})
	}
}

func TestScoreNonIncreasingPastPoor(t *testing.T) {
	thresholds := Thresholds{Good: 50, Acceptable: 70, Poor: 90, LowerIsBetter: true}

	prev := Score(90, thresholds)
	for v := 91.0; v <= 300; v += 1 {
		s := Score(v, thresholds)
		assert.LessOrEqual(t, s, prev, "score must not increase at value %.0f", v)
		prev = s
	}
}

func TestStatusFromScoreBoundaries(t *testing.T) {
	tests := []struct {
		score    float64
		expected Status
	}{
		{100, StatusExcellent},
		{90, StatusExcellent},
		{89.999, StatusGood},
		{80, StatusGood},
		{60, StatusAcceptable},
		{59.999, StatusPoor},
		{40, StatusPoor},
		{39.999, StatusCritical},
		{0, StatusCritical},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, StatusFromScore(tt.score), "score %v", tt.score)
	}
}

// Direction is explicit per metric. Flipping LowerIsBetter inverts the
// whole scale, so a saturated value grades excellent instead of
// critical; this pins the effect so a flip is always a deliberate act.
func TestScoreDirectionInversion(t *testing.T) {
	base := Thresholds{Good: 50, Acceptable: 70, Poor: 90, LowerIsBetter: true}
	assert.Equal(t, float64(0), Score(200, base))

	inverted := base
	inverted.LowerIsBetter = false
	assert.Equal(t, float64(100), Score(200, inverted))
	assert.Equal(t, StatusExcellent, StatusFromScore(Score(200, inverted)))
}

func TestScoreCategoryIssues(t *testing.T) {
	scorer := NewScorer(nil)
	// Response time at 2500ms scores 0 (critical); cpu at 95 scores just
	// under 40 (high); memory and disk stay clean.
	sample := metrics.Sample{
		System: metrics.SystemMetrics{
			CPUPercent:    95,
			MemoryPercent: 60,
			DiskPercent:   50,
		},
		Application: metrics.ApplicationMetrics{
			ResponseTimeMs:   2500,
			ThroughputPerMin: 2000,
			ErrorRatePercent: 0.5,
		},
	}

	system := scorer.ScoreCategory(CategorySystem, sample)
	assert.Equal(t, CategorySystem, system.Category)
	assert.Len(t, system.Metrics, 3)
	assert.Len(t, system.Issues, 1)
	assert.Equal(t, SeverityHigh, system.Issues[0].Severity)
	assert.Equal(t, []string{MetricCPUUsage}, system.Issues[0].AffectedMetrics)
	assert.NotEmpty(t, system.Issues[0].ID)

	app := scorer.ScoreCategory(CategoryApplication, sample)
	assert.Len(t, app.Issues, 1)
	assert.Equal(t, SeverityCritical, app.Issues[0].Severity)
	assert.Equal(t, []string{MetricResponseTime}, app.Issues[0].AffectedMetrics)
}

func TestScoreAllOverallIsUnweightedMean(t *testing.T) {
	scorer := NewScorer(nil)
	sample := metrics.Sample{
		System:      metrics.SystemMetrics{CPUPercent: 10, MemoryPercent: 10, DiskPercent: 10, NetworkLatencyMs: 10},
		Application: metrics.ApplicationMetrics{ResponseTimeMs: 100, ThroughputPerMin: 2000, ErrorRatePercent: 0.1},
		Agents:      metrics.AgentMetrics{Total: 10, Active: 10, AverageHealth: 0.95},
	}

	scores, overall := scorer.ScoreAll(sample)
	assert.Len(t, scores, len(Categories))

	var sum float64
	for _, cs := range scores {
		sum += cs.Score
		assert.GreaterOrEqual(t, cs.Score, float64(0))
		assert.LessOrEqual(t, cs.Score, float64(100))
	}
	assert.InDelta(t, sum/float64(len(Categories)), overall, 0.001)
	assert.Equal(t, float64(100), overall)
}
