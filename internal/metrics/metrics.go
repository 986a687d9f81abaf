// Package metrics holds the Prometheus collectors of the harvester service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for Metrics.Messages.
const (
	OutcomeObserved = "observed"
	OutcomeEmpty    = "empty"
	OutcomeInvalid  = "invalid"
)

// Metrics groups the service collectors on a private registry.
type Metrics struct {
	Registry *prometheus.Registry

	Messages        *prometheus.CounterVec
	SchemaChanges   *prometheus.CounterVec
	PublishFailures *prometheus.CounterVec
	QueueDepth      *prometheus.GaugeVec
	ProcessSeconds  *prometheus.HistogramVec
}

// New creates the collectors. Go and process collectors are registered when
// defaultCollectors is true.
func New(defaultCollectors bool) *Metrics {
	registry := prometheus.NewRegistry()
	if defaultCollectors {
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	m := &Metrics{
		Registry: registry,
		Messages: counterVec("harvester_messages_total",
			"Messages consumed, by topic and outcome.", []string{"topic", "outcome"}),
		SchemaChanges: counterVec("harvester_schema_changes_total",
			"Schema revisions published, by topic.", []string{"topic"}),
		PublishFailures: counterVec("harvester_publish_failures_total",
			"Failed attempts to publish a schema, by topic.", []string{"topic"}),
		QueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "harvester_queue_depth",
			Help: "Messages waiting in a topic queue.",
		}, []string{"topic"}),
		ProcessSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "harvester_process_seconds",
			Help:    "Time to fold one message into the topic schema.",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5},
		}, []string{"topic"}),
	}
	registry.MustRegister(m.Messages, m.SchemaChanges, m.PublishFailures, m.QueueDepth, m.ProcessSeconds)
	return m
}

func counterVec(name, help string, labels []string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: help}, labels)
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
