package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusObserver turns tool events into counters and a duration histogram.
type PrometheusObserver struct {
	registry    *prometheus.Registry
	invocations *prometheus.CounterVec
	polls       *prometheus.CounterVec
	artifacts   *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	events      *prometheus.CounterVec
}

func NewPrometheusObserver(registry *prometheus.Registry) *PrometheusObserver {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	p := &PrometheusObserver{
		registry: registry,
		invocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sapa",
			Name:      "tool_invocations_total",
			Help:      "Tool invocations by tool and terminal status.",
		}, []string{"tool", "status"}),
		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sapa",
			Name:      "tool_polls_total",
			Help:      "Status polls issued for long-running tools.",
		}, []string{"tool"}),
		artifacts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sapa",
			Name:      "tool_artifacts_total",
			Help:      "Artifact persistence outcomes.",
		}, []string{"tool", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sapa",
			Name:      "tool_duration_seconds",
			Help:      "Wall time from dispatch to terminal status.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 15, 30, 60, 150},
		}, []string{"tool"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sapa",
			Name:      "events_total",
			Help:      "Other assistant events by name.",
		}, []string{"name"}),
	}
	registry.MustRegister(p.invocations, p.polls, p.artifacts, p.duration, p.events)
	return p
}

func (p *PrometheusObserver) RecordEvent(ev MetricsEvent) {
	tool := ev.Tags["tool"]
	switch ev.Name {
	case EventToolFinished:
		p.invocations.WithLabelValues(tool, ev.Tags["status"]).Inc()
		p.duration.WithLabelValues(tool).Observe(ev.Value)
	case EventToolPoll:
		p.polls.WithLabelValues(tool).Inc()
	case EventToolArtifact:
		p.artifacts.WithLabelValues(tool, ev.Tags["outcome"]).Inc()
	case EventToolStarted:
	default:
		p.events.WithLabelValues(ev.Name).Inc()
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (p *PrometheusObserver) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests and custom collectors.
func (p *PrometheusObserver) Registry() *prometheus.Registry { return p.registry }
