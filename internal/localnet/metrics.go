package localnet

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	transactions *prometheus.CounterVec
	slot         prometheus.Gauge
	requests     *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "localnet",
			Name:      "transactions_total",
			Help:      "Transactions submitted to the validator by result.",
		}, []string{"result"}),
		slot: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "localnet",
			Name:      "slot",
			Help:      "Current slot.",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "localnet",
			Name:      "rpc_requests_total",
			Help:      "JSON-RPC requests served by method.",
		}, []string{"method"}),
	}
	if reg == nil {
		return m
	}
	m.transactions = register(reg, m.transactions)
	m.slot = register(reg, m.slot)
	m.requests = register(reg, m.requests)
	return m
}

// register adds c to reg, reusing an identical collector registered earlier.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing
			}
		}
	}
	return c
}
