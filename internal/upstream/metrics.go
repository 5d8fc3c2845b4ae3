package upstream

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sakif/chat-gateway/internal/apperror"
)

type clientMetrics struct {
	latency *prometheus.HistogramVec
}

func newClientMetrics(reg prometheus.Registerer) *clientMetrics {
	m := &clientMetrics{
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "chatgw_upstream_request_seconds",
			Help:    "Latency of chat platform calls by operation and outcome.",
			Buckets: []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"op", "outcome"}),
	}
	if reg != nil {
		reg.MustRegister(m.latency)
	}
	return m
}

func (m *clientMetrics) observe(op string, err error, d time.Duration) {
	m.latency.WithLabelValues(op, outcome(err)).Observe(d.Seconds())
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, apperror.ErrUnavailable):
		return "unavailable"
	default:
		return "rejected"
	}
}
