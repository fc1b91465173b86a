package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pbx-control/internal/routing"
)

// Metrics owns a private registry so tests and multiple servers never collide
// on the global one.
type Metrics struct {
	registry *prometheus.Registry

	documents *prometheus.CounterVec
	latency   *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		documents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pbx_documents_compiled_total",
			Help: "Instruction documents compiled, by section and outcome",
		}, []string{"section", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pbx_xml_lookup_duration_seconds",
			Help:    "Time spent answering switch XML lookups",
			Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"section"}),
	}
	m.registry.MustRegister(
		m.documents,
		m.latency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// DocumentCompiled implements routing.Observer.
func (m *Metrics) DocumentCompiled(section string, outcome routing.Outcome) {
	m.documents.WithLabelValues(section, string(outcome)).Inc()
}

// ObserveLookup records how long one switch lookup took to answer.
func (m *Metrics) ObserveLookup(section string, d time.Duration) {
	m.latency.WithLabelValues(section).Observe(d.Seconds())
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

var _ routing.Observer = (*Metrics)(nil)
