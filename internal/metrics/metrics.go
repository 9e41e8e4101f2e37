// Package metrics exposes Prometheus counters for the view-model engine.
// Each Metrics owns a private registry so tests and multiple engines never
// collide on the global default registerer.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "gigs"

// Metrics holds the engine's counters.
type Metrics struct {
	Registry *prometheus.Registry

	APIRequests        *prometheus.CounterVec
	ConcertsSkipped    prometheus.Counter
	OptimisticRollback *prometheus.CounterVec
	RefreshFailures    *prometheus.CounterVec
}

// New creates a Metrics bound to a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		APIRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_requests_total",
				Help:      "Backend requests by endpoint label and outcome",
			},
			[]string{"label", "outcome"},
		),
		ConcertsSkipped: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "concerts_skipped_total",
				Help:      "Concert records dropped during load (missing or duplicate id)",
			},
		),
		OptimisticRollback: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "optimistic_rollbacks_total",
				Help:      "Optimistic local changes reverted after a backend failure",
			},
			[]string{"kind"},
		),
		RefreshFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "refresh_failures_total",
				Help:      "Failed loads during refresh, by source",
			},
			[]string{"source"},
		),
	}
}

// Noop returns a Metrics whose registry is never exposed. Callers that do
// not care about instrumentation pass this instead of nil.
func Noop() *Metrics { return New() }

// Counters flattens every counter sample into name{labels} -> value, for
// the CLI status command.
func (m *Metrics) Counters() (map[string]float64, error) {
	families, err := m.Registry.Gather()
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64)
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			if metric.GetCounter() == nil {
				continue
			}
			key := mf.GetName()
			if labels := metric.GetLabel(); len(labels) > 0 {
				key += "{"
				for i, lp := range labels {
					if i > 0 {
						key += ","
					}
					key += lp.GetName() + "=" + lp.GetValue()
				}
				key += "}"
			}
			out[key] = metric.GetCounter().GetValue()
		}
	}
	return out, nil
}
