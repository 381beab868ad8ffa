// Package metrics holds the Prometheus collectors shared by the transports.
package metrics

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/and161185/account-keeper/internal/errs"
)

// Metrics counts externalized errors and request outcomes.
type Metrics struct {
	Errors   *prometheus.CounterVec
	Requests *prometheus.CounterVec
	gatherer prometheus.Gatherer
}

// New registers the collectors on reg. A nil reg uses a fresh registry.
func New(reg *prometheus.Registry) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "account",
			Name:      "errors_total",
			Help:      "Errors returned to clients, by code, layer and severity.",
		}, []string{"code", "layer", "severity"}),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "account",
			Name:      "requests_total",
			Help:      "Handled requests by transport, operation and HTTP status.",
		}, []string{"transport", "operation", "status"}),
		gatherer: reg,
	}
	for _, c := range []prometheus.Collector{m.Errors, m.Requests} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register collector: %w", err)
		}
	}
	return m, nil
}

// ObserveError counts one externalized error. A nil receiver is a no-op.
func (m *Metrics) ObserveError(ae *errs.AppError) {
	if m == nil || ae == nil {
		return
	}
	m.Errors.WithLabelValues(ae.Code(), ae.Layer().String(), ae.Severity().String()).Inc()
}

// ObserveRequest counts one handled request.
func (m *Metrics) ObserveRequest(transport, operation string, status int) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(transport, operation, strconv.Itoa(status)).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
