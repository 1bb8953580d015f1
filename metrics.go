package agentz

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/zoobzio/agentz/attributes"
)

const metricsNamespace = "agentz"

// Outcome label values.
const (
	outcomeFinished  = "finished"
	outcomeIgnored   = "ignored"
	outcomeRenamed   = "renamed"
	outcomeUnchanged = "unchanged"
)

// Metrics holds the agent's supportability counters.
type Metrics struct {
	attributesDropped *prometheus.CounterVec
	names             *prometheus.CounterVec
	transactions      *prometheus.CounterVec
	handlerDrops      prometheus.Counter
	ruleFallbacks     prometheus.Counter
}

// NewMetrics registers the supportability counters with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		attributesDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "attributes_dropped_total",
				Help:      "Attribute writes discarded, by scope and reason",
			},
			[]string{"scope", "reason"},
		),
		names: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "names_normalized_total",
				Help:      "Names passed through the normalization rules, by outcome",
			},
			[]string{"outcome"},
		),
		transactions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "transactions_total",
				Help:      "Transactions ended, by outcome",
			},
			[]string{"outcome"},
		),
		handlerDrops: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "handler_queue_dropped_total",
			Help:      "Async transaction deliveries dropped because the worker queue was full",
		}),
		ruleFallbacks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "normalization_rule_fallbacks_total",
			Help:      "Normalization rules that failed to compile and match everything",
		}),
	}
}

func (m *Metrics) attributeDropped(scope string, reason attributes.DropReason) {
	m.attributesDropped.WithLabelValues(scope, string(reason)).Inc()
}
