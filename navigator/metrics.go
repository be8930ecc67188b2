package navigator

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts prefetch outcomes and progress saves.
type Metrics struct {
	PrefetchTotal *prometheus.CounterVec
	SavesTotal    *prometheus.CounterVec
}

// NewMetrics registers the navigator collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	prefetch := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reader_prefetch_total",
			Help: "Next-chapter prefetches by outcome.",
		},
		[]string{"outcome"},
	)
	saves := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reader_progress_saves_total",
			Help: "Reading progress writes by trigger.",
		},
		[]string{"trigger"},
	)
	reg.MustRegister(prefetch, saves)
	return &Metrics{PrefetchTotal: prefetch, SavesTotal: saves}
}

func (m *Metrics) IncPrefetch(outcome string) {
	if m == nil {
		return
	}
	m.PrefetchTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncSave(trigger string) {
	if m == nil {
		return
	}
	m.SavesTotal.WithLabelValues(trigger).Inc()
}
