package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes prometheus collectors for the auth subsystem.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ErrorsTotal     *prometheus.CounterVec
	LoginsTotal     *prometheus.CounterVec
	DenialsTotal    *prometheus.CounterVec
	OtpIssuedTotal  prometheus.Counter
}

// NewMetrics registers collectors on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "codex_http_requests_total",
			Help: "Total HTTP requests by route, method and status",
		}, []string{"route", "method", "status"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "codex_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		ErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "codex_http_errors_total",
			Help: "Total error responses by route and error code",
		}, []string{"route", "method", "code"}),
		LoginsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "codex_auth_logins_total",
			Help: "Login attempts by credential kind and outcome",
		}, []string{"kind", "outcome"}),
		DenialsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "codex_authz_denials_total",
			Help: "Authorization denials by reason",
		}, []string{"reason"}),
		OtpIssuedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "codex_auth_otp_issued_total",
			Help: "One-time codes issued",
		}),
	}
}

// RecordRequest increments request counters.
func (m *Metrics) RecordRequest(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(route).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(route, method, code string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(route, method, code).Inc()
}

// RecordLogin tracks a login attempt outcome.
func (m *Metrics) RecordLogin(kind, outcome string) {
	if m == nil {
		return
	}
	m.LoginsTotal.WithLabelValues(kind, outcome).Inc()
}

// RecordDenial tracks an authorization denial.
func (m *Metrics) RecordDenial(reason string) {
	if m == nil {
		return
	}
	m.DenialsTotal.WithLabelValues(reason).Inc()
}

// RecordOtpIssued tracks issued one-time codes.
func (m *Metrics) RecordOtpIssued() {
	if m == nil {
		return
	}
	m.OtpIssuedTotal.Inc()
}
