package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics implements MetricsCollector on top of a Prometheus
// registry. Counters live under the "redeliver" namespace.
type PrometheusMetrics struct {
	received      prometheus.Counter
	processed     prometheus.Counter
	failed        prometheus.Counter
	retried       prometheus.Counter
	deadLettered  prometheus.Counter
	published     prometheus.Counter
	publishFailed prometheus.Counter
}

func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	factory := promauto.With(reg)

	return &PrometheusMetrics{
		received: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "redeliver",
			Name:      "messages_received_total",
			Help:      "Total number of messages fetched from the source topic",
		}),
		processed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "redeliver",
			Name:      "messages_processed_total",
			Help:      "Total number of messages handled successfully",
		}),
		failed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "redeliver",
			Name:      "handler_failures_total",
			Help:      "Total number of failed handler invocations",
		}),
		retried: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "redeliver",
			Name:      "retries_total",
			Help:      "Total number of retry attempts scheduled",
		}),
		deadLettered: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "redeliver",
			Name:      "dead_lettered_total",
			Help:      "Total number of messages routed to a dead-letter topic",
		}),
		published: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "redeliver",
			Name:      "publishes_total",
			Help:      "Total number of confirmed publishes",
		}),
		publishFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "redeliver",
			Name:      "publish_failures_total",
			Help:      "Total number of failed publish attempts",
		}),
	}
}

func (m *PrometheusMetrics) IncReceived() {
	m.received.Inc()
}

func (m *PrometheusMetrics) IncProcessed() {
	m.processed.Inc()
}

func (m *PrometheusMetrics) IncFailed() {
	m.failed.Inc()
}

func (m *PrometheusMetrics) IncRetried() {
	m.retried.Inc()
}

func (m *PrometheusMetrics) IncDeadLettered() {
	m.deadLettered.Inc()
}

func (m *PrometheusMetrics) IncPublished() {
	m.published.Inc()
}

func (m *PrometheusMetrics) IncPublishFailed() {
	m.publishFailed.Inc()
}
