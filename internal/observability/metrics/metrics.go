package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/fx"
)

// Module provides the registry and engine metrics.
var Module = fx.Module("observability.metrics",
	fx.Provide(NewRegistry),
	fx.Provide(New),
)

func NewRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	return registry
}

// Metrics counts lifecycle outcomes. Services treat it as optional so tests
// can run without a registry.
type Metrics struct {
	transitions *prometheus.CounterVec
	failures    *prometheus.CounterVec
}

func New(registry *prometheus.Registry) (*Metrics, error) {
	m := &Metrics{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "holdpay",
			Name:      "transitions_total",
			Help:      "Successful lifecycle transitions by entity and target status.",
		}, []string{"entity", "transition"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "holdpay",
			Name:      "transition_failures_total",
			Help:      "Rejected operations by entity and error code.",
		}, []string{"entity", "code"}),
	}

	for _, collector := range []prometheus.Collector{m.transitions, m.failures} {
		if err := registry.Register(collector); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) ObserveTransition(entity, transition string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(entity, transition).Inc()
}

func (m *Metrics) ObserveFailure(entity, code string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(entity, code).Inc()
}
