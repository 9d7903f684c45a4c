package arrangement

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "arrangement"

type metrics struct {
	collections        prometheus.Gauge
	traces             *prometheus.GaugeVec
	maintenance        prometheus.Counter
	compactionRequests prometheus.Counter
	callbacksReleased  prometheus.Counter
}

func newMetrics() *metrics {
	return &metrics{
		collections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "collections",
			Help:      "Number of collections with at least one registered arrangement.",
		}),
		traces: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "traces",
			Help:      "Number of registered arrangements by kind.",
		}, []string{"kind"}),
		maintenance: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "maintenance_total",
			Help:      "Number of maintenance sweeps performed.",
		}),
		compactionRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "compaction_requests_total",
			Help:      "Number of logical compaction requests applied to a registered collection.",
		}),
		callbacksReleased: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "callbacks_released_total",
			Help:      "Number of delete callbacks released on retirement.",
		}),
	}
}

func (m *metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{m.collections, m.traces, m.maintenance, m.compactionRequests,
		m.callbacksReleased}
}

// register adds the collectors to the registerer. Collectors already registered by another
// manager are shared.
func (m *metrics) register(reg prometheus.Registerer) error {
	for i, c := range m.collectors() {
		err := reg.Register(c)
		if err == nil {
			continue
		}
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			return err
		}
		switch i {
		case 0:
			m.collections = are.ExistingCollector.(prometheus.Gauge)
		case 1:
			m.traces = are.ExistingCollector.(*prometheus.GaugeVec)
		case 2:
			m.maintenance = are.ExistingCollector.(prometheus.Counter)
		case 3:
			m.compactionRequests = are.ExistingCollector.(prometheus.Counter)
		case 4:
			m.callbacksReleased = are.ExistingCollector.(prometheus.Counter)
		}
	}
	return nil
}
