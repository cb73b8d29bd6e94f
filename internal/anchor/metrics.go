package anchor

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

func rpcLatency(reg prometheus.Registerer) *prometheus.HistogramVec {
	h := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "anchor",
		Name:      "rpc_duration_seconds",
		Help:      "Latency of JSON-RPC calls issued by the client.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "outcome"})
	if reg == nil {
		return h
	}
	if err := reg.Register(h); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing
			}
		}
	}
	return h
}
