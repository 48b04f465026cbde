package prometheus

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AltairaLabs/InterviewKit/runtime/version"
)

// Exporter owns the registry scraped on the server's /metrics route.
type Exporter struct {
	registry *prometheus.Registry
}

// ExporterOption configures an Exporter.
type ExporterOption func(*prometheus.Registry)

// WithBuildInfo exports an interviewkit_build_info gauge set to 1 and
// labelled with the binary's version and commit.
func WithBuildInfo(info version.Info) ExporterOption {
	return func(reg *prometheus.Registry) {
		g := prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "build_info",
			Help:        "Build information of the running interview server",
			ConstLabels: prometheus.Labels{"version": info.Version, "commit": info.Commit},
		})
		g.Set(1)
		reg.MustRegister(g)
	}
}

// NewExporter creates a registry holding the interview metrics and the Go
// runtime and process collectors.
func NewExporter(opts ...ExporterOption) *Exporter {
	reg := prometheus.NewRegistry()
	reg.MustRegister(allMetrics...)
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	for _, opt := range opts {
		opt(reg)
	}
	return &Exporter{registry: reg}
}

// NewExporterWithRegistry creates an exporter over a caller-owned registry.
// Interview metrics are not registered automatically.
func NewExporterWithRegistry(registry *prometheus.Registry) *Exporter {
	return &Exporter{registry: registry}
}

// Registry returns the underlying Prometheus registry.
func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}

// Handler serves the registry in the OpenMetrics or text format.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		Registry:          e.registry,
	})
}

// Register adds a collector to the registry.
func (e *Exporter) Register(c prometheus.Collector) error {
	return e.registry.Register(c)
}
