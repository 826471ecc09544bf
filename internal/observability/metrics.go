package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors of the server. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	decisions     *prometheus.CounterVec
	ruleEvals     *prometheus.CounterVec
	publishes     *prometheus.CounterVec
	dropped       *prometheus.CounterVec
	subscribers   *prometheus.GaugeVec
	subscriptions prometheus.Counter
}

// NewMetrics registers the collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		decisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bookfeed_permission_decisions_total",
				Help: "Permission decisions by type, field and outcome",
			},
			[]string{"type", "field", "decision"},
		),
		ruleEvals: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bookfeed_rule_evaluations_total",
				Help: "Rule evaluations by rule name and cache outcome",
			},
			[]string{"rule", "cache"},
		),
		publishes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bookfeed_topic_publishes_total",
				Help: "Payloads published per topic",
			},
			[]string{"topic"},
		),
		dropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bookfeed_topic_deliveries_dropped_total",
				Help: "Deliveries dropped because a subscriber buffer was full",
			},
			[]string{"topic"},
		),
		subscribers: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "bookfeed_topic_subscribers",
				Help: "Current number of subscribers per topic",
			},
			[]string{"topic"},
		),
		subscriptions: factory.NewCounter(prometheus.CounterOpts{
			Name: "bookfeed_subscriptions_established_total",
			Help: "Subscription streams opened by clients",
		}),
	}
}

// RecordDecision counts one permission decision.
func (m *Metrics) RecordDecision(typeName, fieldName, decision string) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(typeName, fieldName, decision).Inc()
}

// RecordRuleEvaluation counts one rule evaluation; cache is "hit" or "miss".
func (m *Metrics) RecordRuleEvaluation(rule, cache string) {
	if m == nil {
		return
	}
	m.ruleEvals.WithLabelValues(rule, cache).Inc()
}

// RecordPublish counts a publish and the deliveries it dropped.
func (m *Metrics) RecordPublish(topic string, dropped int) {
	if m == nil {
		return
	}
	m.publishes.WithLabelValues(topic).Inc()
	if dropped > 0 {
		m.dropped.WithLabelValues(topic).Add(float64(dropped))
	}
}

// SetSubscribers sets the current subscriber count of a topic.
func (m *Metrics) SetSubscribers(topic string, n int) {
	if m == nil {
		return
	}
	m.subscribers.WithLabelValues(topic).Set(float64(n))
}

// RecordSubscription counts one established subscription stream.
func (m *Metrics) RecordSubscription() {
	if m == nil {
		return
	}
	m.subscriptions.Inc()
}
