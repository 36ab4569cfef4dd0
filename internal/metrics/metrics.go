// Package metrics exposes receiver counters in Prometheus format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sweeney/rf-receiver/internal/logic"
)

const namespace = "rf_receiver"

// Metrics holds the collectors for one receiver process.
// Each instance has its own registry so tests do not share state.
type Metrics struct {
	Registry *prometheus.Registry

	Edges          *prometheus.CounterVec
	Duplicates     *prometheus.CounterVec
	UnknownLines   prometheus.Counter
	Dropped        prometheus.Counter
	Level          *prometheus.GaugeVec
	HistorySamples prometheus.Gauge
}

// New creates and registers the receiver collectors.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Edges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "edges_total",
			Help:      "Level changes applied to a channel.",
		}, []string{"channel", "level"}),
		Duplicates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicate_edges_total",
			Help:      "Edges that repeated the channel's current level.",
		}, []string{"channel"}),
		UnknownLines: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unknown_line_edges_total",
			Help:      "Edges received on lines with no registered channel.",
		}),
		Dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_transitions_total",
			Help:      "Transitions not forwarded because the queue was full.",
		}),
		Level: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "channel_level",
			Help:      "Current channel level (1 = HIGH).",
		}, []string{"channel"}),
		HistorySamples: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "history_samples",
			Help:      "Samples held in the in-memory history.",
		}),
	}

	m.Registry.MustRegister(
		m.Edges,
		m.Duplicates,
		m.UnknownLines,
		m.Dropped,
		m.Level,
		m.HistorySamples,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// Export every channel from the start, not only after its first edge.
	for _, c := range logic.Channels {
		m.Level.WithLabelValues(c.Key()).Set(0)
	}
	return m
}

// ObserveEdge records an applied edge.
func (m *Metrics) ObserveEdge(c logic.Channel, prev, level bool) {
	if m == nil {
		return
	}
	if prev == level {
		m.Duplicates.WithLabelValues(c.Key()).Inc()
		return
	}
	m.Edges.WithLabelValues(c.Key(), logic.LevelString(level)).Inc()
	m.Level.WithLabelValues(c.Key()).Set(boolGauge(level))
}

// ObserveUnknownLine records an edge on an unregistered line.
func (m *Metrics) ObserveUnknownLine() {
	if m == nil {
		return
	}
	m.UnknownLines.Inc()
}

// ObserveDropped records a transition dropped from a full queue.
func (m *Metrics) ObserveDropped() {
	if m == nil {
		return
	}
	m.Dropped.Inc()
}

// SetHistorySamples records the history length.
func (m *Metrics) SetHistorySamples(n int) {
	if m == nil {
		return
	}
	m.HistorySamples.Set(float64(n))
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
