package monitor

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/wfunc/gardien/classifier"
	"github.com/wfunc/gardien/quest"
	"github.com/wfunc/gardien/services"
)

type Metrics struct {
	OnlinePlayers      prometheus.Gauge
	MessagesReceived   prometheus.Counter
	MessageLatency     prometheus.Histogram
	Validations        *prometheus.CounterVec
	ClassifierLatency  prometheus.Histogram
	ClassifierFailures *prometheus.CounterVec
	GlobalKeys         prometheus.Gauge
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		OnlinePlayers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "online_players",
			Help:      "Number of connected sessions",
		}),
		MessagesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Total number of messages received",
		}),
		MessageLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "message_latency_seconds",
			Help:      "Message processing latency",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 10),
		}),
		Validations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validations_total",
			Help:      "Quest submissions by rule type and outcome",
		}, []string{"rule", "outcome"}),
		ClassifierLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "classifier_latency_seconds",
			Help:      "Image classification latency",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 9),
		}),
		ClassifierFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classifier_failures_total",
			Help:      "Image classifications that produced no verdict",
		}, []string{"reason"}),
		GlobalKeys: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "global_keys",
			Help:      "Number of distinct keys found by anyone",
		}),
	}
}

// Monitor owns a registry so several instances can coexist in one process.
type Monitor struct {
	metrics   *Metrics
	registry  *prometheus.Registry
	startTime time.Time
}

func NewMonitor(namespace string) *Monitor {
	m := &Monitor{
		metrics:   NewMetrics(namespace),
		registry:  prometheus.NewRegistry(),
		startTime: time.Now(),
	}
	uptime := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "uptime_seconds",
		Help:      "Seconds since the server started",
	}, func() float64 { return time.Since(m.startTime).Seconds() })

	m.registry.MustRegister(
		m.metrics.OnlinePlayers,
		m.metrics.MessagesReceived,
		m.metrics.MessageLatency,
		m.metrics.Validations,
		m.metrics.ClassifierLatency,
		m.metrics.ClassifierFailures,
		m.metrics.GlobalKeys,
		uptime,
		collectors.NewGoCollector(),
	)
	return m
}

func (m *Monitor) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Monitor) Registry() *prometheus.Registry { return m.registry }

func (m *Monitor) IncOnlinePlayers() {
	m.metrics.OnlinePlayers.Inc()
}

func (m *Monitor) DecOnlinePlayers() {
	m.metrics.OnlinePlayers.Dec()
}

func (m *Monitor) IncMessagesReceived() {
	m.metrics.MessagesReceived.Inc()
}

func (m *Monitor) ObserveMessageLatency(duration time.Duration) {
	m.metrics.MessageLatency.Observe(duration.Seconds())
}

func (m *Monitor) ObserveValidation(rule quest.ValidationType, outcome services.ResultKind) {
	m.metrics.Validations.WithLabelValues(string(rule), string(outcome)).Inc()
}

func (m *Monitor) ObserveClassification(d time.Duration, err error) {
	m.metrics.ClassifierLatency.Observe(d.Seconds())
	switch {
	case err == nil:
	case errors.Is(err, classifier.ErrMalformed):
		m.metrics.ClassifierFailures.WithLabelValues("malformed").Inc()
	default:
		m.metrics.ClassifierFailures.WithLabelValues("unavailable").Inc()
	}
}

// Listener keeps the global key gauge current.
func (m *Monitor) Listener() services.Listener {
	return func(e services.Event) {
		if e.Kind == services.EventKeysChanged {
			m.metrics.GlobalKeys.Set(float64(len(e.Keys)))
		}
	}
}
