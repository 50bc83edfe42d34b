package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name:        "novagate_build_info",
			Help:        "Build information",
			ConstLabels: prometheus.Labels{"component": "gateway"},
		},
		[]string{"date", "sha", "version"},
	)

	generateRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "novagate_generate_requests_total",
			Help: "Generate requests by mode and terminal outcome",
		},
		[]string{"mode", "outcome"},
	)

	relayInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "novagate_relay_inflight",
			Help: "Number of upstream relays in progress",
		},
	)

	relayDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "novagate_relay_duration_seconds",
			Help:    "Time from upstream dispatch to the end of the client response",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"mode"},
	)

	relayBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "novagate_relay_bytes_total",
			Help: "Bytes relayed from upstreams to clients",
		},
		[]string{"mode"},
	)

	upstreamStatus = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "novagate_upstream_responses_total",
			Help: "Upstream responses by mode and HTTP status",
		},
		[]string{"mode", "code"},
	)

	exports = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "novagate_exports_total",
			Help: "Tabular exports by format and outcome",
		},
		[]string{"format", "outcome"},
	)

	healthChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "novagate_health_checks_total",
			Help: "Upstream health passthrough calls by outcome",
		},
		[]string{"outcome"},
	)
)

// Register registers all metrics with the provided registerer.
func Register(r prometheus.Registerer) {
	r.MustRegister(buildInfo, generateRequests, relayInflight, relayDuration, relayBytes, upstreamStatus, exports, healthChecks)
}

// SetServerBuildInfo sets the build info metric for the gateway.
func SetServerBuildInfo(version, sha, date string) {
	buildInfo.WithLabelValues(date, sha, version).Set(1)
}

// RecordGenerate counts one generate request with its terminal outcome.
// Unregistered modes are folded into a single label value.
func RecordGenerate(mode, outcome string) {
	if mode == "" {
		mode = "invalid"
	}
	generateRequests.WithLabelValues(mode, outcome).Inc()
}

// RelayStart increments the in-flight relay gauge.
func RelayStart() { relayInflight.Inc() }

// RelayEnd decrements the in-flight gauge and records duration and volume.
func RelayEnd(mode string, d time.Duration, bytes int64) {
	relayInflight.Dec()
	relayDuration.WithLabelValues(mode).Observe(d.Seconds())
	if bytes > 0 {
		relayBytes.WithLabelValues(mode).Add(float64(bytes))
	}
}

// RecordUpstreamStatus counts an upstream response status.
func RecordUpstreamStatus(mode string, code int) {
	upstreamStatus.WithLabelValues(mode, strconv.Itoa(code)).Inc()
}

// RecordExport counts one export request.
func RecordExport(format string, success bool) {
	exports.WithLabelValues(format, outcome(success)).Inc()
}

// RecordHealthCheck counts one health passthrough call.
func RecordHealthCheck(success bool) {
	healthChecks.WithLabelValues(outcome(success)).Inc()
}

func outcome(success bool) string {
	if success {
		return "success"
	}
	return "error"
}
