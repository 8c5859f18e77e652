// Package metrics records device call counts and latencies for Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "karotz"

// Recorder implements karotz.Observer on its own registry.
type Recorder struct {
	registry *prometheus.Registry
	Requests *prometheus.CounterVec
	Latency  *prometheus.HistogramVec
	Polls    *prometheus.CounterVec
	Commands *prometheus.CounterVec
}

// New creates a Recorder with all collectors registered.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		Requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "device_requests_total",
				Help:      "Device API calls by endpoint and outcome.",
			},
			[]string{"endpoint", "outcome"},
		),
		Latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "device_request_duration_seconds",
				Help:      "Device API call latency.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
		Polls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "status_polls_total",
				Help:      "Status polls by result.",
			},
			[]string{"result"},
		),
		Commands: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bridge_commands_total",
				Help:      "MQTT commands handled by the bridge.",
			},
			[]string{"command", "result"},
		),
	}
	r.registry.MustRegister(r.Requests, r.Latency, r.Polls, r.Commands)
	return r
}

// ObserveCall records one completed device call.
func (r *Recorder) ObserveCall(endpoint, outcome string, elapsed time.Duration) {
	r.Requests.WithLabelValues(endpoint, outcome).Inc()
	r.Latency.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

// ObservePoll records a status poll result ("ok" or "error").
func (r *Recorder) ObservePoll(ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	r.Polls.WithLabelValues(result).Inc()
}

// ObserveCommand records one bridge command. result is "ok", "error" or
// "throttled".
func (r *Recorder) ObserveCommand(command, result string) {
	r.Commands.WithLabelValues(command, result).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
