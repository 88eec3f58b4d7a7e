// Package metrics holds the Prometheus instruments for the data steward.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the integrity engine.
type Metrics struct {
	RunsStarted         prometheus.Counter
	RunsCompleted       prometheus.Counter
	RunsFailed          prometheus.Counter
	RunDuration         prometheus.Histogram
	FindingsByPolicy    *prometheus.CounterVec
	RemediationsApplied prometheus.Counter
	CoverageGaps        prometheus.Gauge
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		RunsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "steward_audit_runs_started_total",
			Help: "Total number of audit runs started.",
		}),
		RunsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "steward_audit_runs_completed_total",
			Help: "Total number of audit runs that reached completed status.",
		}),
		RunsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "steward_audit_runs_failed_total",
			Help: "Total number of audit runs that reached failed status.",
		}),
		RunDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "steward_audit_run_duration_seconds",
			Help:    "Wall-clock duration of audit runs.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		FindingsByPolicy: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "steward_audit_findings_total",
			Help: "Findings recorded per policy.",
		}, []string{"policy"}),
		RemediationsApplied: promauto.NewCounter(prometheus.CounterOpts{
			Name: "steward_remediations_applied_total",
			Help: "Remediation actions applied by auto-fix policies.",
		}),
		CoverageGaps: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "steward_coverage_gaps",
			Help: "Elections in the coverage window lacking linked candidates, as of the last audit.",
		}),
	}
}

// RunStarted counts a run entering the running state.
func (m *Metrics) RunStarted() {
	if m == nil {
		return
	}
	m.RunsStarted.Inc()
}

// AddRemediations counts applied auto-fix actions.
func (m *Metrics) AddRemediations(n int) {
	if m == nil || n == 0 {
		return
	}
	m.RemediationsApplied.Add(float64(n))
}

// SetCoverageGaps records the gap count from the latest coverage sweep.
func (m *Metrics) SetCoverageGaps(n int) {
	if m == nil {
		return
	}
	m.CoverageGaps.Set(float64(n))
}

// ObserveRun records one finished run.
func (m *Metrics) ObserveRun(duration time.Duration, failed bool) {
	if m == nil {
		return
	}
	m.RunDuration.Observe(duration.Seconds())
	if failed {
		m.RunsFailed.Inc()
		return
	}
	m.RunsCompleted.Inc()
}

// AddFindings bumps the per-policy finding counter.
func (m *Metrics) AddFindings(policy string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.FindingsByPolicy.WithLabelValues(policy).Add(float64(n))
}
