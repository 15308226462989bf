package auth

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Refresh triggers
const (
	triggerProactive    = "proactive"
	triggerUnauthorized = "unauthorized"
	triggerTokenSource  = "token_source"
)

// Refresh outcomes
const (
	outcomeSuccess   = "success"
	outcomeReused    = "reused"
	outcomeExpired   = "session_expired"
	outcomeTransient = "transient"
	outcomeNoToken   = "no_refresh_token"
	outcomeError     = "error"
)

// Metrics holds the Prometheus metrics for the request executor.
// A nil *Metrics records nothing.
type Metrics struct {
	RefreshTotal  *prometheus.CounterVec
	SharedWaits   prometheus.Counter
	RetriesTotal  prometheus.Counter
	RequestsTotal *prometheus.CounterVec
}

// NewMetrics creates and registers the metrics with the given registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		RefreshTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "propman",
				Subsystem: "session",
				Name:      "refresh_total",
				Help:      "Token refresh operations, by trigger and outcome",
			},
			[]string{"trigger", "outcome"},
		),
		SharedWaits: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "propman",
				Subsystem: "session",
				Name:      "refresh_shared_waits_total",
				Help:      "Callers that waited on a refresh started by another caller",
			},
		),
		RetriesTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "propman",
				Subsystem: "session",
				Name:      "retries_total",
				Help:      "Requests re-sent after a 401 and a successful refresh",
			},
		),
		RequestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "propman",
				Subsystem: "session",
				Name:      "requests_total",
				Help:      "HTTP requests sent by the executor, by status class",
			},
			[]string{"status_class"}, // 2xx, 4xx, 5xx...
		),
	}
}

func (m *Metrics) refresh(trigger, outcome string) {
	if m == nil {
		return
	}
	m.RefreshTotal.WithLabelValues(trigger, outcome).Inc()
}

func (m *Metrics) sharedWait() {
	if m == nil {
		return
	}
	m.SharedWaits.Inc()
}

func (m *Metrics) retry() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}

func (m *Metrics) response(statusCode int) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(strconv.Itoa(statusCode/100) + "xx").Inc()
}
