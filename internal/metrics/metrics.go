// Package metrics collects Prometheus counters and histograms for flow, node
// and cache activity, and writes them to a node-exporter textfile after each
// command.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"memeflow/internal/cache"
	"memeflow/internal/services"
)

const namespace = "memeflow"

// Metrics owns a private registry. All methods are safe on a nil receiver,
// which disables collection.
type Metrics struct {
	registry *prometheus.Registry

	flowRuns     *prometheus.CounterVec
	flowDuration *prometheus.HistogramVec
	nodeRuns     *prometheus.CounterVec
	nodeDuration *prometheus.HistogramVec
	nodeRetries  *prometheus.CounterVec
	cacheLookups *prometheus.CounterVec
}

// New creates and registers the metric set.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		flowRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "flow",
			Name:      "runs_total",
			Help:      "Flow executions by terminal status.",
		}, []string{"flow", "status"}),
		flowDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "flow",
			Name:      "duration_seconds",
			Help:      "Wall time of flow executions.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"flow"}),
		nodeRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "node",
			Name:      "runs_total",
			Help:      "Node executions by outcome (ok or the failure kind).",
		}, []string{"flow", "node", "outcome"}),
		nodeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "node",
			Name:      "duration_seconds",
			Help:      "Node execution time including retries.",
			Buckets:   []float64{0.05, 0.25, 1, 5, 15, 30, 60, 180},
		}, []string{"flow", "node"}),
		nodeRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "node",
			Name:      "retries_total",
			Help:      "Retries scheduled after transient node failures.",
		}, []string{"flow", "node", "reason"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Cache lookups by key, policy and outcome.",
		}, []string{"key", "policy", "outcome"}),
	}
	m.registry.MustRegister(m.flowRuns, m.flowDuration, m.nodeRuns, m.nodeDuration, m.nodeRetries, m.cacheLookups)
	return m
}

// Registry exposes the underlying registry for gathering.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveCacheLookup implements cache.Recorder.
func (m *Metrics) ObserveCacheLookup(key string, policy cache.Policy, reason cache.Reason) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(key, string(policy), string(reason)).Inc()
}

// ObserveNode records one finished node execution.
func (m *Metrics) ObserveNode(flow, node string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = string(services.KindOf(err))
	}
	m.nodeRuns.WithLabelValues(flow, node, outcome).Inc()
	m.nodeDuration.WithLabelValues(flow, node).Observe(duration.Seconds())
}

// ObserveRetry records a scheduled retry.
func (m *Metrics) ObserveRetry(flow, node string, err error) {
	if m == nil {
		return
	}
	reason := string(services.ReasonOf(err))
	if reason == "" {
		reason = "unknown"
	}
	m.nodeRetries.WithLabelValues(flow, node, reason).Inc()
}

// ObserveFlow records a terminal flow status.
func (m *Metrics) ObserveFlow(flow, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.flowRuns.WithLabelValues(flow, status).Inc()
	m.flowDuration.WithLabelValues(flow).Observe(duration.Seconds())
}

// WriteTextfile writes every collected series to path in the text
// exposition format. An empty path is a no-op.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
