package analyzer

import (
	"github.com/rs/zerolog/log"

	"github.com/perfwatch/analyzer/pkg/metrics"
)

// bottleneckRule is one entry of the closed detection table. Detection is
// a strict comparison of the latest sample's value against the metric's
// poor threshold; extending detection means adding rules, not tuning a
// model.
type bottleneckRule struct {
	id          string
	typ         string
	metric      string
	value       func(metrics.Sample) float64
	severity    Severity
	impact      float64
	cost        float64
	remediation []string
}

var bottleneckRules = []bottleneckRule{
	{
		id:       "cpu-bottleneck",
		typ:      "cpu",
		metric:   MetricCPUUsage,
		value:    func(s metrics.Sample) float64 { return s.System.CPUPercent },
		severity: SeverityHigh,
		impact:   80,
		cost:     2000,
		remediation: []string{
			"Profile hot paths and reduce per-request CPU work",
			"Scale out CPU-bound workers",
			"Enable result caching for repeated computations",
		},
	},
	{
		id:       "memory-bottleneck",
		typ:      "memory",
		metric:   MetricMemoryUsage,
		value:    func(s metrics.Sample) float64 { return s.System.MemoryPercent },
		severity: SeverityHigh,
		impact:   75,
		cost:     1500,
		remediation: []string{
			"Hunt allocation hot spots and pool reusable buffers",
			"Lower in-memory cache sizes or add eviction",
			"Raise memory limits on the host",
		},
	},
	{
		id:       "response-time-bottleneck",
		typ:      "application",
		metric:   MetricResponseTime,
		value:    func(s metrics.Sample) float64 { return s.Application.ResponseTimeMs },
		severity: SeverityCritical,
		impact:   85,
		cost:     3000,
		remediation: []string{
			"Add request-level tracing to find the slow stage",
			"Introduce response caching for hot endpoints",
			"Batch or parallelize downstream calls",
		},
	},
	{
		id:       "error-rate-bottleneck",
		typ:      "reliability",
		metric:   MetricErrorRate,
		value:    func(s metrics.Sample) float64 { return s.Application.ErrorRatePercent },
		severity: SeverityCritical,
		impact:   90,
		cost:     2500,
		remediation: []string{
			"Correlate error spikes with recent deployments",
			"Add retries with backoff on transient failures",
			"Tighten input validation at the boundary",
		},
	},
	{
		id:       "disk-bottleneck",
		typ:      "disk",
		metric:   MetricDiskUsage,
		value:    func(s metrics.Sample) float64 { return s.System.DiskPercent },
		severity: SeverityMedium,
		impact:   60,
		cost:     1000,
		remediation: []string{
			"Rotate and compress logs",
			"Prune stale artifacts and temp files",
			"Expand the volume",
		},
	},
}

// BottleneckDetector flags metrics breaching their poor threshold in the
// latest sample only.
type BottleneckDetector struct {
	thresholds ThresholdSet
}

// NewBottleneckDetector builds a detector over the given threshold set;
// missing metrics fall back to the defaults.
func NewBottleneckDetector(thresholds ThresholdSet) *BottleneckDetector {
	merged := DefaultThresholds()
	for name, t := range thresholds {
		merged[name] = t
	}
	return &BottleneckDetector{thresholds: merged}
}

// Detect runs the rule table against the latest sample. Comparison is
// strict: a value exactly at the poor threshold does not trigger.
func (d *BottleneckDetector) Detect(sample metrics.Sample) []Bottleneck {
	var found []Bottleneck
	for _, rule := range bottleneckRules {
		t, ok := d.thresholds[rule.metric]
		if !ok {
			continue
		}
		value := rule.value(sample)
		breached := value > t.Poor
		if !t.LowerIsBetter {
			breached = value < t.Poor
		}
		if !breached {
			continue
		}

		found = append(found, Bottleneck{
			ID:               rule.id,
			Type:             rule.typ,
			Severity:         rule.severity,
			Impact:           rule.impact,
			DetectingMetrics: []string{rule.metric},
			Recommendations:  append([]string(nil), rule.remediation...),
			EstimatedCost:    rule.cost,
		})

		log.Warn().
			Str("bottleneck", rule.id).
			Str("metric", rule.metric).
			Float64("value", value).
			Float64("poor_threshold", t.Poor).
			Msg("Bottleneck detected")
	}
	return found
}
