package analyzer

import "time"

// Status is the health tier derived from a 0-100 score.
type Status string

const (
	StatusExcellent  Status = "excellent"
	StatusGood       Status = "good"
	StatusAcceptable Status = "acceptable"
	StatusPoor       Status = "poor"
	StatusCritical   Status = "critical"
)

// Severity grades issues and bottlenecks.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Priority ranks recommendations.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// RiskLevel grades the execution risk of a recommendation.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Trend classifies a metric's recent trajectory.
type Trend string

const (
	TrendImproving Trend = "improving"
	TrendStable    Trend = "stable"
	TrendDegrading Trend = "degrading"
)

// Category names one scored metric group.
type Category string

const (
	CategorySystem      Category = "system"
	CategoryApplication Category = "application"
	CategoryResources   Category = "resources"
	CategoryNetwork     Category = "network"
	CategoryAgents      Category = "agents"
)

// Thresholds holds the three scoring breakpoints for one metric plus its
// direction. With LowerIsBetter set, values at or under Good score 100;
// otherwise values at or over Good score 100.
type Thresholds struct {
	Good          float64 `json:"good" yaml:"good" mapstructure:"good"`
	Acceptable    float64 `json:"acceptable" yaml:"acceptable" mapstructure:"acceptable"`
	Poor          float64 `json:"poor" yaml:"poor" mapstructure:"poor"`
	LowerIsBetter bool    `json:"lower_is_better" yaml:"lower_is_better" mapstructure:"lower_is_better"`
}

// ThresholdSet maps metric names to their thresholds.
type ThresholdSet map[string]Thresholds

// Well-known metric names used by the default threshold set and the
// bottleneck rule table.
const (
	MetricCPUUsage       = "cpu_usage"
	MetricMemoryUsage    = "memory_usage"
	MetricDiskUsage      = "disk_usage"
	MetricNetworkLatency = "network_latency"
	MetricResponseTime   = "response_time"
	MetricThroughput     = "throughput"
	MetricErrorRate      = "error_rate"
	MetricAgentHealth    = "agent_health"
	MetricAgentActivity  = "agent_activity"
)

// DefaultThresholds returns the shipped threshold set. Direction is
// explicit for every metric; the engine never guesses it.
func DefaultThresholds() ThresholdSet {
	return ThresholdSet{
		MetricCPUUsage:       {Good: 50, Acceptable: 70, Poor: 90, LowerIsBetter: true},
		MetricMemoryUsage:    {Good: 60, Acceptable: 75, Poor: 90, LowerIsBetter: true},
		MetricDiskUsage:      {Good: 70, Acceptable: 85, Poor: 95, LowerIsBetter: true},
		MetricNetworkLatency: {Good: 50, Acceptable: 150, Poor: 500, LowerIsBetter: true},
		MetricResponseTime:   {Good: 200, Acceptable: 500, Poor: 1000, LowerIsBetter: true},
		MetricThroughput:     {Good: 1000, Acceptable: 500, Poor: 100, LowerIsBetter: false},
		MetricErrorRate:      {Good: 1, Acceptable: 3, Poor: 5, LowerIsBetter: true},
		MetricAgentHealth:    {Good: 90, Acceptable: 75, Poor: 50, LowerIsBetter: false},
		MetricAgentActivity:  {Good: 80, Acceptable: 60, Poor: 30, LowerIsBetter: false},
	}
}

// MetricScore is one metric's contribution to a category score.
type MetricScore struct {
	Metric string  `json:"metric"`
	Value  float64 `json:"value"`
	Score  float64 `json:"score"`
	Status Status  `json:"status"`
}

// PerformanceIssue flags a metric scoring below the acceptable tier.
type PerformanceIssue struct {
	ID              string    `json:"id"`
	Category        Category  `json:"category"`
	Severity        Severity  `json:"severity"`
	Title           string    `json:"title"`
	AffectedMetrics []string  `json:"affected_metrics"`
	DetectedAt      time.Time `json:"detected_at"`
}

// CategoryScore aggregates one metric group for one analysis cycle.
type CategoryScore struct {
	Category Category           `json:"category"`
	Score    float64            `json:"score"`
	Status   Status             `json:"status"`
	Metrics  []MetricScore      `json:"metrics"`
	Trend    Trend              `json:"trend"`
	Issues   []PerformanceIssue `json:"issues,omitempty"`
}

// Bottleneck records a metric breaching its poor threshold in the latest
// sample. It exists only within the analysis that produced it.
type Bottleneck struct {
	ID               string   `json:"id"`
	Type             string   `json:"type"`
	Severity         Severity `json:"severity"`
	Impact           float64  `json:"impact"` // 0..100
	DetectingMetrics []string `json:"detecting_metrics"`
	Recommendations  []string `json:"recommendations"`
	EstimatedCost    float64  `json:"estimated_cost"`
}

// ImpactEstimate scores the expected gain of a recommendation per axis.
type ImpactEstimate struct {
	Performance     float64 `json:"performance"`
	Cost            float64 `json:"cost"`
	Reliability     float64 `json:"reliability"`
	Maintainability float64 `json:"maintainability"`
}

// EffortEstimate sizes the work a recommendation implies, in hours.
type EffortEstimate struct {
	Implementation float64 `json:"implementation"`
	Testing        float64 `json:"testing"`
	Maintenance    float64 `json:"maintenance"`
}

// RiskAssessment gates automatic execution.
type RiskAssessment struct {
	Level      RiskLevel `json:"level"`
	Factors    []string  `json:"factors,omitempty"`
	Mitigation []string  `json:"mitigation,omitempty"`
}

// ImplementationPlan lists the opaque named steps an executor will run.
type ImplementationPlan struct {
	Steps        []string `json:"steps"`
	Timeline     string   `json:"timeline"`
	Resources    []string `json:"resources,omitempty"`
	Dependencies []string `json:"dependencies,omitempty"`
}

// ValidationPlan describes how success is judged after execution.
type ValidationPlan struct {
	Metrics  []string `json:"metrics"`
	Tests    []string `json:"tests,omitempty"`
	Criteria []string `json:"criteria,omitempty"`
}

// Recommendation is a ranked, annotated remediation suggestion.
// Generated fresh each cycle; ids are stable only within a cycle.
type Recommendation struct {
	ID             string             `json:"id"`
	Title          string             `json:"title"`
	Category       Category           `json:"category"`
	Priority       Priority           `json:"priority"`
	Impact         ImpactEstimate     `json:"impact"`
	Effort         EffortEstimate     `json:"effort"`
	Risk           RiskAssessment     `json:"risk"`
	Implementation ImplementationPlan `json:"implementation"`
	Validation     ValidationPlan     `json:"validation"`
	EstimatedCost  float64            `json:"estimated_cost"`
}

// AutoExecutable reports whether the scheduler may run this
// recommendation without external approval.
func (r Recommendation) AutoExecutable() bool {
	return r.Priority == PriorityHigh && r.Risk.Level == RiskLow
}
