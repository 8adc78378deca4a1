package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Poller metrics
	ProbesTotal      *prometheus.CounterVec
	ProbeDuration    prometheus.Histogram
	StateTransitions *prometheus.CounterVec
	DevicesTracked   prometheus.Gauge

	// Classifier metrics
	EventsClassified *prometheus.CounterVec
	EventsDropped    prometheus.Counter
	EventsReplayed   prometheus.Counter

	// Router metrics
	JobsCreated    *prometheus.CounterVec
	TemplateErrors prometheus.Counter

	// Dispatcher metrics
	JobsDelivered   prometheus.Counter
	JobsFailed      prometheus.Counter
	DeliveryRetries prometheus.Counter
	DeliveryLatency prometheus.Histogram
	QueueDepth      prometheus.Gauge
}

// NewMetrics creates and registers all application metrics
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ProbesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "device_probes_total",
			Help:      "Total number of device health probes",
		}, []string{"result"}),
		ProbeDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "device_probe_duration_seconds",
			Help:      "Duration of device health probes",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}),
		StateTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "device_state_transitions_total",
			Help:      "Total number of device connection state transitions",
		}, []string{"from", "to"}),
		DevicesTracked: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "devices_tracked",
			Help:      "Current number of devices with an active poll worker",
		}),
		EventsClassified: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_classified_total",
			Help:      "Total number of raw events classified into facts",
		}, []string{"kind"}),
		EventsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Total number of malformed raw events dropped",
		}),
		EventsReplayed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_replayed_total",
			Help:      "Total number of duplicate raw events ignored on replay",
		}),
		JobsCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_jobs_created_total",
			Help:      "Total number of dispatch jobs created per notification kind",
		}, []string{"kind"}),
		TemplateErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "template_errors_total",
			Help:      "Total number of jobs failed on template rendering",
		}),
		JobsDelivered: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_jobs_delivered_total",
			Help:      "Total number of jobs delivered to the provider",
		}),
		JobsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_jobs_failed_total",
			Help:      "Total number of jobs that reached failed-permanent",
		}),
		DeliveryRetries: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_retries_total",
			Help:      "Total number of delivery retry attempts",
		}),
		DeliveryLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_delivery_duration_seconds",
			Help:      "Time spent delivering a message to the provider",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		QueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dispatch_queue_depth",
			Help:      "Current number of jobs waiting for a delivery worker",
		}),
	}
}

// NewTestMetrics creates an unregistered metrics set for use in tests where
// promauto's default registry would collide across packages.
func NewTestMetrics() *Metrics {
	return &Metrics{
		ProbesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "device_probes_total", Help: "test",
		}, []string{"result"}),
		ProbeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "device_probe_duration_seconds", Help: "test",
		}),
		StateTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "device_state_transitions_total", Help: "test",
		}, []string{"from", "to"}),
		DevicesTracked: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "devices_tracked", Help: "test",
		}),
		EventsClassified: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "events_classified_total", Help: "test",
		}, []string{"kind"}),
		EventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "events_dropped_total", Help: "test",
		}),
		EventsReplayed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "events_replayed_total", Help: "test",
		}),
		JobsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatch_jobs_created_total", Help: "test",
		}, []string{"kind"}),
		TemplateErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "template_errors_total", Help: "test",
		}),
		JobsDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_jobs_delivered_total", Help: "test",
		}),
		JobsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_jobs_failed_total", Help: "test",
		}),
		DeliveryRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_retries_total", Help: "test",
		}),
		DeliveryLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "dispatch_delivery_duration_seconds", Help: "test",
		}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dispatch_queue_depth", Help: "test",
		}),
	}
}
