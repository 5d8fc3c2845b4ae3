package directory

import "github.com/prometheus/client_golang/prometheus"

type cacheMetrics struct {
	size  prometheus.Gauge
	loads *prometheus.CounterVec
}

func newCacheMetrics(reg prometheus.Registerer) *cacheMetrics {
	m := &cacheMetrics{
		size: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chatgw_directory_users",
			Help: "Users currently held in the directory cache.",
		}),
		loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatgw_directory_loads_total",
			Help: "Directory load attempts by outcome (ok, discarded, error).",
		}, []string{"outcome"}),
	}
	if reg != nil {
		reg.MustRegister(m.size, m.loads)
	}
	return m
}
