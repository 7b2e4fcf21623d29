package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for RecordVisit.
const (
	OutcomeRecorded     = "recorded"
	OutcomeDeduplicated = "deduplicated"
	OutcomeRateLimited  = "rate_limited"
	OutcomeBusiness     = "business_rejected"
	OutcomeUnavailable  = "unavailable"
	OutcomeInvalid      = "invalid"
)

type Metrics struct {
	VisitsTotal       *prometheus.CounterVec
	RecordDuration    prometheus.Histogram
	TxAttempts        prometheus.Histogram
	TxConflictsTotal  prometheus.Counter
	BreakerState      *prometheus.GaugeVec
	BreakerTripsTotal prometheus.Counter
	EventsDropped     prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		VisitsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "checkin_visits_total",
			Help: "Visit submissions by outcome",
		}, []string{"outcome"}),
		RecordDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "checkin_visit_record_duration_seconds",
			Help:    "End to end latency of RecordVisit",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		TxAttempts: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "checkin_visit_tx_attempts",
			Help:    "Transaction attempts needed per recorded visit",
			Buckets: []float64{1, 2, 3, 4, 5, 8},
		}),
		TxConflictsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "checkin_visit_tx_conflicts_total",
			Help: "Transaction attempts aborted by a concurrent writer",
		}),
		BreakerState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "checkin_circuit_breaker_state",
			Help: "1 for the breaker's current state, 0 otherwise",
		}, []string{"breaker", "state"}),
		BreakerTripsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "checkin_circuit_breaker_trips_total",
			Help: "Times the visit store breaker opened",
		}),
		EventsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "checkin_visit_events_dropped_total",
			Help: "visit.recorded events that could not be published",
		}),
	}
}

func (m *Metrics) ObserveVisit(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.VisitsTotal.WithLabelValues(outcome).Inc()
	m.RecordDuration.Observe(d.Seconds())
}

func (m *Metrics) ObserveAttempts(n int) {
	if m == nil {
		return
	}
	m.TxAttempts.Observe(float64(n))
}

func (m *Metrics) IncrementConflicts() {
	if m == nil {
		return
	}
	m.TxConflictsTotal.Inc()
}

// SetBreakerState marks state as the only active state of breaker.
func (m *Metrics) SetBreakerState(breaker string, state string) {
	if m == nil {
		return
	}
	for _, s := range []string{"closed", "open", "half_open"} {
		v := 0.0
		if s == state {
			v = 1
		}
		m.BreakerState.WithLabelValues(breaker, s).Set(v)
	}
	if state == "open" {
		m.BreakerTripsTotal.Inc()
	}
}

func (m *Metrics) IncrementEventsDropped() {
	if m == nil {
		return
	}
	m.EventsDropped.Inc()
}
