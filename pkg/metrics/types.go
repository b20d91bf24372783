package metrics

import "time"

// SystemMetrics holds host-level utilization figures for one sample.
type SystemMetrics struct {
	CPUPercent       float64 `json:"cpu_percent"`
	MemoryPercent    float64 `json:"memory_percent"`
	DiskPercent      float64 `json:"disk_percent"`
	NetworkLatencyMs float64 `json:"network_latency_ms"`
}

// ApplicationMetrics holds workload-level figures for one sample.
type ApplicationMetrics struct {
	ResponseTimeMs    float64 `json:"response_time_ms"`
	ThroughputPerMin  float64 `json:"throughput_per_min"`
	ErrorRatePercent  float64 `json:"error_rate_percent"`
	ActiveConnections int     `json:"active_connections"`
}

// AgentMetrics describes the agent fleet attached to the host process.
type AgentMetrics struct {
	Total         int     `json:"total"`
	Active        int     `json:"active"`
	AverageHealth float64 `json:"average_health"` // 0..1
}

// Sample is one point-in-time measurement produced by an external
// collector. Samples are immutable once stored.
type Sample struct {
	Timestamp   time.Time          `json:"timestamp"`
	System      SystemMetrics      `json:"system"`
	Application ApplicationMetrics `json:"application"`
	Agents      AgentMetrics       `json:"agents"`
}

// Flatten returns the sample's numeric fields keyed by dotted path. The
// optimizer uses this shape to diff before/after snapshots.
func (s Sample) Flatten() map[string]float64 {
	return map[string]float64{
		"system.cpu":                    s.System.CPUPercent,
		"system.memory":                 s.System.MemoryPercent,
		"system.disk":                   s.System.DiskPercent,
		"system.network_latency":        s.System.NetworkLatencyMs,
		"application.response_time":     s.Application.ResponseTimeMs,
		"application.throughput":        s.Application.ThroughputPerMin,
		"application.error_rate":        s.Application.ErrorRatePercent,
		"application.active_connections": float64(s.Application.ActiveConnections),
		"agents.total":                  float64(s.Agents.Total),
		"agents.active":                 float64(s.Agents.Active),
		"agents.average_health":         s.Agents.AverageHealth,
	}
}
