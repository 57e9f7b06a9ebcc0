package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "admissions_bot"

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	crmCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "crm_calls_total",
			Help:      "CRM API calls by operation and result.",
		},
		[]string{"op", "result"},
	)

	crmLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "crm_call_duration_seconds",
			Help:      "CRM API call latency.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Scheduled notifications by kind and result.",
		},
		[]string{"kind", "result"},
	)

	sweepDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sweep_duration_seconds",
			Help:      "Duration of one scheduler sweep.",
			Buckets:   prometheus.DefBuckets,
		},
	)

	outboxResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "crm_outbox_tasks_total",
			Help:      "CRM outbox task outcomes.",
		},
		[]string{"task_type", "result"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, crmCalls, crmLatency, notifications, sweepDuration, outboxResults)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

// ObserveCRMCall records one CRM request. result is ok, transient or permanent.
func ObserveCRMCall(op, result string, d time.Duration) {
	crmCalls.WithLabelValues(op, result).Inc()
	crmLatency.WithLabelValues(op).Observe(d.Seconds())
}

// IncNotification counts a reminder, followup or attendance check dispatch.
func IncNotification(kind, result string) {
	notifications.WithLabelValues(kind, result).Inc()
}

func ObserveSweep(d time.Duration) {
	sweepDuration.Observe(d.Seconds())
}

func IncOutbox(taskType, result string) {
	outboxResults.WithLabelValues(taskType, result).Inc()
}
