package rbac

import "github.com/prometheus/client_golang/prometheus"

const (
	cacheHit  = "hit"
	cacheMiss = "miss"
)

// Metrics counts authorization decisions and cache lookups.
type Metrics struct {
	decisions    *prometheus.CounterVec
	cacheLookups *prometheus.CounterVec
}

// NewMetrics registers the rbac collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hms_authz_decisions_total",
			Help: "Authorization decisions by outcome.",
		}, []string{"outcome"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hms_authz_cache_lookups_total",
			Help: "Permission cache lookups by result.",
		}, []string{"result"}),
	}
	if reg != nil {
		reg.MustRegister(m.decisions, m.cacheLookups)
	}
	return m
}

func (m *Metrics) observeDecision(o Outcome) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(o.String()).Inc()
}

func (m *Metrics) observeCache(result string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}
