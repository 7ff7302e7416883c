// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"strconv"

	"github.com/kylejryan/insurance-ops/internal/lifecycle"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	TransitionsTotal *prometheus.CounterVec
	RequestsTotal    *prometheus.CounterVec
}

// New creates and registers the collectors with reg.
func New(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		TransitionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transitions_total",
				Help:      "Lifecycle transitions attempted, by outcome (ok, rejected, error)",
			},
			[]string{"entity", "action", "result"},
		),
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
	}
}

// Transition implements lifecycle.Observer.
func (m *Metrics) Transition(e lifecycle.Entity, a lifecycle.Action, result string) {
	m.TransitionsTotal.WithLabelValues(string(e), string(a), result).Inc()
}

// Request records one served HTTP request.
func (m *Metrics) Request(method, route string, status int) {
	m.RequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}
