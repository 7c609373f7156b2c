package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type BuildInfo struct {
	Version   string
	Revision  string
	Branch    string
	BuildDate string
}

// Provider owns a dedicated registry for the standalone metrics listener.
// It carries the runtime collectors, detailed build info and every
// service metric defined in this package.
type Provider struct {
	reg *prometheus.Registry
}

func NewProvider(b BuildInfo) *Provider {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	build := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_build_details",
			Help: "Build details for this binary (value is always 1).",
		},
		[]string{"version", "revision", "branch", "build_date"},
	)
	reg.MustRegister(build)
	if b.Version == "" {
		b.Version = "dev"
	}
	build.WithLabelValues(b.Version, b.Revision, b.Branch, b.BuildDate).Set(1)

	reg.MustRegister(serviceCollectors()...)
	return &Provider{reg: reg}
}

func (p *Provider) Handler() http.Handler {
	return promhttp.HandlerFor(p.reg, promhttp.HandlerOpts{})
}

func (p *Provider) Registerer() prometheus.Registerer { return p.reg }
