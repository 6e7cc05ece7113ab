// Package exporters serves collected metrics over HTTP.
package exporters

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/smazurov/camsnap/internal/version"
)

var registerBuildInfo sync.Once

// HTTPHandler serves every promauto metric plus camsnap_build_info in the
// Prometheus text or OpenMetrics format, whichever the scraper asks for.
func HTTPHandler() http.Handler {
	registerBuildInfo.Do(func() {
		v := version.Get()
		prometheus.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "camsnap",
			Name:      "build_info",
			Help:      "Build metadata, always 1",
			ConstLabels: prometheus.Labels{
				"version":    v.Version,
				"commit":     v.GitCommit,
				"go_version": v.GoVersion,
			},
		}, func() float64 { return 1 }))
	})

	return promhttp.InstrumentMetricHandler(prometheus.DefaultRegisterer,
		promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{
			EnableOpenMetrics: true,
		}))
}
