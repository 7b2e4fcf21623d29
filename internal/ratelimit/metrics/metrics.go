package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	ChecksTotal *prometheus.CounterVec
	ResetsTotal prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ChecksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "checkin_ratelimit_checks_total",
			Help: "Per-attendee rate limit checks by outcome",
		}, []string{"outcome"}),
		ResetsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "checkin_ratelimit_resets_total",
			Help: "Total number of admin rate limit resets",
		}),
	}
}

func (m *Metrics) IncrementAllowed() {
	if m == nil {
		return
	}
	m.ChecksTotal.WithLabelValues("allowed").Inc()
}

func (m *Metrics) IncrementDenied() {
	if m == nil {
		return
	}
	m.ChecksTotal.WithLabelValues("denied").Inc()
}

func (m *Metrics) IncrementResets() {
	if m == nil {
		return
	}
	m.ResetsTotal.Inc()
}
