// Package metrics records run metrics on a private prometheus registry and
// exports them for the node-exporter textfile collector.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Run outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeNoop    = "noop"
	OutcomeFailure = "failure"
)

// Metrics holds the collectors for one run. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	reg          *prometheus.Registry
	runs         *prometheus.CounterVec
	changed      *prometheus.CounterVec
	filesFetched prometheus.Counter
	bytesFetched prometheus.Counter
	stepDuration *prometheus.HistogramVec
}

// New creates and registers the collectors.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "registry_manager",
				Name:      "runs_total",
				Help:      "Registry update runs by outcome.",
			},
			[]string{"outcome"},
		),
		changed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "registry_manager",
				Name:      "extensions_changed_total",
				Help:      "Extensions added to or updated in the registry.",
			},
			[]string{"kind"},
		),
		filesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "registry_manager",
			Name:      "files_fetched_total",
			Help:      "Extension files fetched from the source repository.",
		}),
		bytesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "registry_manager",
			Name:      "fetched_bytes_total",
			Help:      "Decoded bytes of extension files fetched.",
		}),
		stepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "registry_manager",
				Name:      "step_duration_seconds",
				Help:      "Duration of each pipeline step in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"step"},
		),
	}
	m.reg.MustRegister(m.runs, m.changed, m.filesFetched, m.bytesFetched, m.stepDuration)
	return m
}

// RunFinished counts a completed run.
func (m *Metrics) RunFinished(outcome string) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(outcome).Inc()
}

// ExtensionChanged counts an added or updated extension.
func (m *Metrics) ExtensionChanged(kind string) {
	if m == nil {
		return
	}
	m.changed.WithLabelValues(kind).Inc()
}

// FileFetched counts one fetched file of the given decoded size.
func (m *Metrics) FileFetched(size int) {
	if m == nil {
		return
	}
	m.filesFetched.Inc()
	m.bytesFetched.Add(float64(size))
}

// ObserveStep records how long a pipeline step took.
func (m *Metrics) ObserveStep(step string, d time.Duration) {
	if m == nil {
		return
	}
	m.stepDuration.WithLabelValues(step).Observe(d.Seconds())
}

// Gatherer exposes the private registry.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	if m == nil {
		return prometheus.NewRegistry()
	}
	return m.reg
}

// WriteTextfile writes all metrics in the text exposition format to path.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Gatherer())
}
