package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wxdash",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total dashboard HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "wxdash",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Dashboard HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
	messagesIn = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wxdash",
			Subsystem: "session",
			Name:      "messages_received_total",
			Help:      "Decoded inbound messages by kind.",
		},
		[]string{"kind"},
	)
	decodeErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "wxdash",
			Subsystem: "session",
			Name:      "decode_errors_total",
			Help:      "Inbound payloads dropped because they could not be decoded.",
		},
	)
	sends = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wxdash",
			Subsystem: "session",
			Name:      "sends_total",
			Help:      "Outbound frame writes by result.",
		},
		[]string{"result"},
	)
	reconnects = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "wxdash",
			Subsystem: "session",
			Name:      "reconnects_scheduled_total",
			Help:      "Reconnect attempts scheduled after a close.",
		},
	)
	connState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "wxdash",
			Subsystem: "session",
			Name:      "state",
			Help:      "1 for the current connection state, 0 otherwise.",
		},
		[]string{"state"},
	)
	requests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wxdash",
			Subsystem: "dispatch",
			Name:      "requests_total",
			Help:      "Requests built by the dispatcher by kind and result.",
		},
		[]string{"kind", "result"},
	)
	cachedStations = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "wxdash",
			Subsystem: "cache",
			Name:      "stations",
			Help:      "Stations with a cached reading.",
		},
	)
	knownStations = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "wxdash",
			Subsystem: "cache",
			Name:      "known_stations",
			Help:      "Stations with a display name from a station list.",
		},
	)

	connStates = []string{"disconnected", "connecting", "open", "closing"}
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests, httpDuration,
			messagesIn, decodeErrors, sends, reconnects, connState,
			requests, cachedStations, knownStations,
		)
	})
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}

func RecordMessageIn(kind string) {
	RegisterMetrics()
	messagesIn.WithLabelValues(kind).Inc()
}

func RecordDecodeError() {
	RegisterMetrics()
	decodeErrors.Inc()
}

func RecordSend(success bool) {
	RegisterMetrics()
	result := "ok"
	if !success {
		result = "error"
	}
	sends.WithLabelValues(result).Inc()
}

func RecordReconnectScheduled() {
	RegisterMetrics()
	reconnects.Inc()
}

// RecordConnectionState sets the gauge for state to 1 and every other known
// state to 0.
func RecordConnectionState(state string) {
	RegisterMetrics()
	for _, s := range connStates {
		v := 0.0
		if s == state {
			v = 1
		}
		connState.WithLabelValues(s).Set(v)
	}
}

func RecordRequest(kind, result string) {
	RegisterMetrics()
	requests.WithLabelValues(kind, result).Inc()
}

func SetCachedStations(n int) {
	RegisterMetrics()
	cachedStations.Set(float64(n))
}

func SetKnownStations(n int) {
	RegisterMetrics()
	knownStations.Set(float64(n))
}
