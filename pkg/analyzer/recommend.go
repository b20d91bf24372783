package analyzer

import (
	"fmt"

	"github.com/rs/zerolog/log"
)

// recommendationScoreGate is the category score under which a broad
// optimization recommendation is generated.
const recommendationScoreGate = 70

// RecommendationEngine turns low category scores and detected
// bottlenecks into ranked remediation suggestions. Each cycle is a fresh
// computation; ids repeat across cycles for the same condition.
type RecommendationEngine struct{}

// NewRecommendationEngine returns a RecommendationEngine.
func NewRecommendationEngine() *RecommendationEngine {
	return &RecommendationEngine{}
}

// Generate produces the cycle's recommendation list: one system entry if
// the system score is under the gate, one application entry likewise,
// and exactly one fix-<id> entry per detected bottleneck.
func (re *RecommendationEngine) Generate(categories map[Category]CategoryScore, bottlenecks []Bottleneck) []Recommendation {
	var recs []Recommendation

	if cs, ok := categories[CategorySystem]; ok && cs.Score < recommendationScoreGate {
		recs = append(recs, systemRecommendation(cs))
	}
	if cs, ok := categories[CategoryApplication]; ok && cs.Score < recommendationScoreGate {
		recs = append(recs, applicationRecommendation(cs))
	}
	for _, b := range bottlenecks {
		recs = append(recs, bottleneckRecommendation(b))
	}

	if len(recs) > 0 {
		log.Info().Int("count", len(recs)).Msg("Generated optimization recommendations")
	}
	return recs
}

func systemRecommendation(cs CategoryScore) Recommendation {
	return Recommendation{
		ID:       "system-optimization",
		Title:    "Optimize system resource usage",
		Category: CategorySystem,
		Priority: priorityFromScore(cs.Score),
		Impact: ImpactEstimate{
			Performance:     70,
			Cost:            40,
			Reliability:     60,
			Maintainability: 30,
		},
		Effort: EffortEstimate{
			Implementation: 16,
			Testing:        8,
			Maintenance:    2,
		},
		Risk: RiskAssessment{
			Level:      RiskLow,
			Factors:    []string{"Tuning is reversible", "No code changes required"},
			Mitigation: []string{"Apply one knob at a time", "Watch the next analysis cycles"},
		},
		Implementation: ImplementationPlan{
			Steps: []string{
				"tune-resource-limits",
				"rebalance-workers",
				"enable-result-cache",
			},
			Timeline:  "1-2 days",
			Resources: []string{"platform engineer"},
		},
		Validation: ValidationPlan{
			Metrics:  []string{MetricCPUUsage, MetricMemoryUsage},
			Tests:    []string{"load-smoke"},
			Criteria: []string{"system category score back above 70"},
		},
		EstimatedCost: 1200,
	}
}

func applicationRecommendation(cs CategoryScore) Recommendation {
	return Recommendation{
		ID:       "application-optimization",
		Title:    "Optimize application performance",
		Category: CategoryApplication,
		Priority: priorityFromScore(cs.Score),
		Impact: ImpactEstimate{
			Performance:     80,
			Cost:            30,
			Reliability:     70,
			Maintainability: 40,
		},
		Effort: EffortEstimate{
			Implementation: 24,
			Testing:        12,
			Maintenance:    4,
		},
		Risk: RiskAssessment{
			Level:      RiskMedium,
			Factors:    []string{"Touches request handling paths"},
			Mitigation: []string{"Canary the change", "Keep the previous build deployable"},
		},
		Implementation: ImplementationPlan{
			Steps: []string{
				"profile-request-path",
				"add-response-cache",
				"tune-connection-pool",
			},
			Timeline:     "3-5 days",
			Resources:    []string{"backend engineer"},
			Dependencies: []string{"profiling access in production"},
		},
		Validation: ValidationPlan{
			Metrics:  []string{MetricResponseTime, MetricErrorRate, MetricThroughput},
			Tests:    []string{"latency-regression"},
			Criteria: []string{"p95 response time under the acceptable threshold"},
		},
		EstimatedCost: 2400,
	}
}

// bottleneckRecommendation derives a fix entry directly from the
// bottleneck's impact and estimated cost.
func bottleneckRecommendation(b Bottleneck) Recommendation {
	return Recommendation{
		ID:       fmt.Sprintf("fix-%s", b.ID),
		Title:    fmt.Sprintf("Remediate %s bottleneck", b.Type),
		Category: CategorySystem,
		Priority: priorityFromSeverity(b.Severity),
		Impact: ImpactEstimate{
			Performance:     b.Impact,
			Cost:            b.Impact / 2,
			Reliability:     b.Impact * 0.75,
			Maintainability: 20,
		},
		Effort: EffortEstimate{
			Implementation: b.EstimatedCost / 100,
			Testing:        b.EstimatedCost / 250,
			Maintenance:    2,
		},
		Risk: RiskAssessment{
			Level:      riskFromSeverity(b.Severity),
			Factors:    []string{fmt.Sprintf("%s already breaching its poor threshold", b.DetectingMetrics[0])},
			Mitigation: []string{"Capture before/after metrics around every step"},
		},
		Implementation: ImplementationPlan{
			Steps:    remediationSteps(b),
			Timeline: "1-3 days",
		},
		Validation: ValidationPlan{
			Metrics:  append([]string(nil), b.DetectingMetrics...),
			Criteria: []string{fmt.Sprintf("%s back under its poor threshold", b.DetectingMetrics[0])},
		},
		EstimatedCost: b.EstimatedCost,
	}
}

func remediationSteps(b Bottleneck) []string {
	steps := make([]string, 0, len(b.Recommendations))
	for i := range b.Recommendations {
		steps = append(steps, fmt.Sprintf("%s-step-%d", b.ID, i+1))
	}
	return steps
}

func priorityFromScore(score float64) Priority {
	switch {
	case score < 40:
		return PriorityCritical
	case score < 55:
		return PriorityHigh
	default:
		return PriorityMedium
	}
}

func priorityFromSeverity(severity Severity) Priority {
	switch severity {
	case SeverityCritical:
		return PriorityCritical
	case SeverityHigh:
		return PriorityHigh
	case SeverityMedium:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

func riskFromSeverity(severity Severity) RiskLevel {
	switch severity {
	case SeverityCritical:
		return RiskHigh
	case SeverityHigh:
		return RiskMedium
	default:
		return RiskLow
	}
}
