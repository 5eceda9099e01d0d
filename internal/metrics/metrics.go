package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the service
	Registry = prometheus.NewRegistry()
	// HTTPRequests counts requests by method, path, and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// WebhookDeliveries counts webhook delivery outcomes by event type and status
	WebhookDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "webhook_deliveries_total", Help: "Webhook deliveries by event type and status."},
		[]string{"event_type", "status"},
	)
	// WebhookLatency tracks webhook delivery latencies in milliseconds
	WebhookLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "webhook_delivery_latency_ms", Help: "Webhook delivery latency in ms.", Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000, 10000}},
		[]string{"event_type", "status"},
	)
	// WebhookInFlight is the number of deliveries currently waiting on a subscriber
	WebhookInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "webhook_deliveries_in_flight", Help: "Webhook deliveries currently in flight."},
	)
	// SubscriptionsDisabled counts auto-disables triggered by the failure threshold
	SubscriptionsDisabled = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "webhook_subscriptions_disabled_total", Help: "Subscriptions auto-disabled after consecutive failures."},
	)
	// DispatchErrors counts engine-side errors by stage (lookup, log, persist)
	DispatchErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "webhook_dispatch_errors_total", Help: "Dispatch pipeline errors by stage."},
		[]string{"stage"},
	)
)

// RegisterDefault registers collectors on Registry once.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(WebhookDeliveries)
		Registry.MustRegister(WebhookLatency)
		Registry.MustRegister(WebhookInFlight)
		Registry.MustRegister(SubscriptionsDisabled)
		Registry.MustRegister(DispatchErrors)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once

// Status maps a delivery result to the status label value.
func Status(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
