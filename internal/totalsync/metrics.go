package totalsync

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts synchronizer activity. A nil *Metrics records nothing.
type Metrics struct {
	writes    *prometheus.CounterVec
	coalesced prometheus.Counter
	inFlight  prometheus.Gauge
}

// NewMetrics registers the synchronizer collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		writes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "printdesk",
			Subsystem: "totals_sync",
			Name:      "writes_total",
			Help:      "Document totals writes by trigger and result.",
		}, []string{"trigger", "result"}),
		coalesced: f.NewCounter(prometheus.CounterOpts{
			Namespace: "printdesk",
			Subsystem: "totals_sync",
			Name:      "coalesced_total",
			Help:      "Totals changes folded into an already pending write.",
		}),
		inFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "printdesk",
			Subsystem: "totals_sync",
			Name:      "writes_in_flight",
			Help:      "Document totals writes currently awaiting the store.",
		}),
	}
}

func (m *Metrics) observeWrite(forced bool, err error) {
	if m == nil {
		return
	}
	trigger := "debounce"
	if forced {
		trigger = "flush"
	}
	result := "committed"
	if err != nil {
		result = "failed"
	}
	m.writes.WithLabelValues(trigger, result).Inc()
}

func (m *Metrics) observeCoalesced() {
	if m == nil {
		return
	}
	m.coalesced.Inc()
}

func (m *Metrics) writeStarted() {
	if m == nil {
		return
	}
	m.inFlight.Inc()
}

func (m *Metrics) writeFinished() {
	if m == nil {
		return
	}
	m.inFlight.Dec()
}
