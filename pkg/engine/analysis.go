package engine

import (
	"time"

	"github.com/perfwatch/analyzer/pkg/analyzer"
	"github.com/perfwatch/analyzer/pkg/benchmark"
	"github.com/perfwatch/analyzer/pkg/optimizer"
)

// Analysis is the aggregate produced by one scheduler cycle. It is
// immutable once assembled; every accessor hands out copies.
type Analysis struct {
	Timestamp       time.Time                                   `json:"timestamp"`
	Period          time.Duration                               `json:"period"`
	OverallScore    float64                                     `json:"overall_score"`
	Status          analyzer.Status                             `json:"status"`
	Categories      map[analyzer.Category]analyzer.CategoryScore `json:"categories"`
	Bottlenecks     []analyzer.Bottleneck                       `json:"bottlenecks"`
	Recommendations []analyzer.Recommendation                   `json:"recommendations"`
	Trends          map[string]analyzer.Trend                   `json:"trends"`
	Benchmarks      []benchmark.Result                          `json:"benchmarks,omitempty"`
	ShutdownReport  bool                                        `json:"shutdown_report,omitempty"`
}

func (a *Analysis) clone() *Analysis {
	if a == nil {
		return nil
	}
	out := &Analysis{
		Timestamp:      a.Timestamp,
		Period:         a.Period,
		OverallScore:   a.OverallScore,
		Status:         a.Status,
		ShutdownReport: a.ShutdownReport,
	}
	out.Categories = make(map[analyzer.Category]analyzer.CategoryScore, len(a.Categories))
	for k, v := range a.Categories {
		out.Categories[k] = v
	}
	out.Bottlenecks = append([]analyzer.Bottleneck(nil), a.Bottlenecks...)
	out.Recommendations = append([]analyzer.Recommendation(nil), a.Recommendations...)
	out.Trends = make(map[string]analyzer.Trend, len(a.Trends))
	for k, v := range a.Trends {
		out.Trends[k] = v
	}
	out.Benchmarks = append([]benchmark.Result(nil), a.Benchmarks...)
	return out
}

// FailedOptimization is the payload of optimization:failed events.
type FailedOptimization struct {
	Recommendation analyzer.Recommendation           `json:"recommendation"`
	Record         optimizer.ImplementedOptimization `json:"record"`
	Error          string                            `json:"error"`
}

// ROISummary aggregates return-on-investment figures over the
// optimization history.
type ROISummary struct {
	TotalInvestment float64 `json:"total_investment"`
	TotalSavings    float64 `json:"total_savings"`
	PaybackPeriod   float64 `json:"payback_period"`
	ROIPercent      float64 `json:"roi_percent"`
}

// OptimizationReport summarizes all executed optimizations.
type OptimizationReport struct {
	GeneratedAt   time.Time                           `json:"generated_at"`
	Total         int                                 `json:"total"`
	Succeeded     int                                 `json:"succeeded"`
	Failed        int                                 `json:"failed"`
	ROI           ROISummary                          `json:"roi"`
	Optimizations []optimizer.ImplementedOptimization `json:"optimizations"`
}

// buildReport computes the ROI summary: investment is the summed cost,
// savings the summed improvement values, roi savings over investment in
// percent. Zero denominators yield zeros rather than infinities.
func buildReport(history []optimizer.ImplementedOptimization) OptimizationReport {
	report := OptimizationReport{
		GeneratedAt:   time.Now(),
		Total:         len(history),
		Optimizations: history,
	}

	for _, opt := range history {
		switch opt.Status {
		case optimizer.OptimizationSuccess:
			report.Succeeded++
		case optimizer.OptimizationFailed:
			report.Failed++
		}
		report.ROI.TotalInvestment += opt.Cost
		for _, delta := range opt.Improvement {
			report.ROI.TotalSavings += delta
		}
	}

	if report.ROI.TotalSavings != 0 {
		report.ROI.PaybackPeriod = report.ROI.TotalInvestment / report.ROI.TotalSavings
	}
	if report.ROI.TotalInvestment != 0 {
		report.ROI.ROIPercent = report.ROI.TotalSavings / report.ROI.TotalInvestment * 100
	}
	return report
}
