// Package metrics holds the gateway's Prometheus collectors.
//
// Metrics collected:
//   - gateway_gate_decisions_total: routing gate decisions by action
//   - gateway_session_operations_total: session lifecycle calls by operation and outcome
//   - gateway_identity_call_duration_seconds: identity provider latency by call and outcome
//   - gateway_guard_denials_total: protected-resource guard rejections by mode
//
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Config configures the collectors.
type Config struct {
	// Namespace is the metrics namespace (default: "gateway").
	Namespace string

	// Buckets are the histogram buckets for identity provider calls.
	// Default: prometheus.DefBuckets
	Buckets []float64
}

type Option func(*Config)

func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

func WithBuckets(buckets []float64) Option {
	return func(c *Config) {
		c.Buckets = buckets
	}
}

type Metrics struct {
	gateDecisions     *prometheus.CounterVec
	sessionOperations *prometheus.CounterVec
	identityDuration  *prometheus.HistogramVec
	guardDenials      *prometheus.CounterVec
}

// New registers the collectors with reg. Registration panics on duplicates, so
// each registry gets one Metrics.
func New(reg prometheus.Registerer, opts ...Option) *Metrics {
	config := Config{
		Namespace: "gateway",
		Buckets:   prometheus.DefBuckets,
	}
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(reg)

	return &Metrics{
		gateDecisions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "gate_decisions_total",
			Help:      "Total number of routing gate decisions",
		}, []string{"action"}),

		sessionOperations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "session_operations_total",
			Help:      "Total number of session lifecycle operations",
		}, []string{"operation", "outcome"}),

		identityDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Name:      "identity_call_duration_seconds",
			Help:      "Identity provider call duration in seconds",
			Buckets:   config.Buckets,
		}, []string{"call", "outcome"}),

		guardDenials: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "guard_denials_total",
			Help:      "Total number of requests rejected by the protected-resource guard",
		}, []string{"mode"}),
	}
}

func (m *Metrics) GateDecision(action string) {
	if m == nil {
		return
	}
	m.gateDecisions.WithLabelValues(action).Inc()
}

func (m *Metrics) SessionOperation(operation, outcome string) {
	if m == nil {
		return
	}
	m.sessionOperations.WithLabelValues(operation, outcome).Inc()
}

// ObserveIdentityCall has the shape of an identity provider observer.
func (m *Metrics) ObserveIdentityCall(call string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.identityDuration.WithLabelValues(call, Outcome(err)).Observe(elapsed.Seconds())
}

func (m *Metrics) GuardDenied(mode string) {
	if m == nil {
		return
	}
	m.guardDenials.WithLabelValues(mode).Inc()
}

// Outcome is the outcome label for err.
func Outcome(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeSuccess
}
