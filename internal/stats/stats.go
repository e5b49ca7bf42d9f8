package stats

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type StatsProvider interface {
	Incr(name string)
	Decr(name string)
	RegisterMetric(name, help string)
}

// StatsUpdater exposes named gauges over a Prometheus registry. Metrics are
// registered once at startup; Incr/Decr are safe from any goroutine.
type StatsUpdater struct {
	registry *prometheus.Registry
	mu       sync.RWMutex
	gauges   map[string]prometheus.Gauge
}

func NewStatsUpdater(mux *http.ServeMux) *StatsUpdater {
	su := &StatsUpdater{
		registry: prometheus.NewRegistry(),
		gauges:   make(map[string]prometheus.Gauge),
	}

	su.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	mux.Handle("GET /metrics", promhttp.HandlerFor(su.registry, promhttp.HandlerOpts{}))

	return su
}

func (su *StatsUpdater) RegisterMetric(name, help string) {
	g := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: name,
		Help: help,
	})
	su.registry.MustRegister(g)

	su.mu.Lock()
	su.gauges[name] = g
	su.mu.Unlock()
}

func (su *StatsUpdater) get(name string) prometheus.Gauge {
	su.mu.RLock()
	defer su.mu.RUnlock()

	g, ok := su.gauges[name]
	if !ok {
		panic("metric not found: " + name)
	}
	return g
}

func (su *StatsUpdater) Incr(name string) {
	su.get(name).Inc()
}

func (su *StatsUpdater) Decr(name string) {
	su.get(name).Dec()
}
