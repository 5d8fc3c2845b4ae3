package presence

import "github.com/prometheus/client_golang/prometheus"

type registryMetrics struct {
	online     prometheus.Gauge
	deliveries *prometheus.CounterVec
}

func newRegistryMetrics(reg prometheus.Registerer) *registryMetrics {
	m := &registryMetrics{
		online: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chatgw_presence_online",
			Help: "Users with a registered push connection.",
		}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatgw_presence_deliveries_total",
			Help: "Point-to-point push attempts by outcome (delivered, offline, dropped).",
		}, []string{"outcome"}),
	}
	if reg != nil {
		reg.MustRegister(m.online, m.deliveries)
	}
	return m
}
